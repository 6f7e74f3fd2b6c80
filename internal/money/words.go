package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	unitWords    = []string{"", "um", "dois", "três", "quatro", "cinco", "seis", "sete", "oito", "nove"}
	teenWords    = []string{"dez", "onze", "doze", "treze", "quatorze", "quinze", "dezesseis", "dezessete", "dezoito", "dezenove"}
	tenWords     = []string{"", "", "vinte", "trinta", "quarenta", "cinquenta", "sessenta", "setenta", "oitenta", "noventa"}
	hundredWords = []string{"", "cento", "duzentos", "trezentos", "quatrocentos", "quinhentos", "seiscentos", "setecentos", "oitocentos", "novecentos"}
)

type scale struct {
	value    int64
	singular string
	plural   string
}

var scales = []scale{
	{value: 1_000_000_000, singular: "bilhão", plural: "bilhões"},
	{value: 1_000_000, singular: "milhão", plural: "milhões"},
	{value: 1_000, singular: "mil", plural: "mil"},
}

// SpellOut writes the amount in Brazilian Portuguese words, upper case, as
// printed on promissory notes: 153.50 becomes
// "CENTO E CINQUENTA E TRÊS REAIS E CINQUENTA CENTAVOS".
func SpellOut(amount decimal.Decimal) string {
	amount = RoundCents(amount.Abs())
	reais := amount.IntPart()
	centavos := amount.Sub(decimal.NewFromInt(reais)).Mul(hundred).IntPart()

	if reais == 0 && centavos == 0 {
		return "ZERO REAIS"
	}

	parts := make([]string, 0, 2)
	if reais > 0 {
		words := integerWords(reais)
		switch {
		case reais == 1:
			words += " real"
		case reais%1_000_000 == 0:
			words += " de reais"
		default:
			words += " reais"
		}
		parts = append(parts, words)
	}
	if centavos > 0 {
		words := belowThousand(centavos)
		if centavos == 1 {
			words += " centavo"
		} else {
			words += " centavos"
		}
		parts = append(parts, words)
	}
	return strings.ToUpper(strings.Join(parts, " e "))
}

func integerWords(n int64) string {
	groups := make([]string, 0, 4)
	remainder := n
	for _, sc := range scales {
		count := remainder / sc.value
		if count == 0 {
			continue
		}
		remainder %= sc.value
		switch {
		case sc.value == 1_000 && count == 1:
			groups = append(groups, "mil")
		case count == 1:
			groups = append(groups, "um "+sc.singular)
		default:
			groups = append(groups, belowThousand(count)+" "+sc.plural)
		}
	}

	if remainder > 0 {
		tail := belowThousand(remainder)
		if len(groups) > 0 && (remainder < 100 || remainder%100 == 0) {
			groups = append(groups, "e "+tail)
		} else {
			groups = append(groups, tail)
		}
	}
	return strings.Join(groups, " ")
}

func belowThousand(n int64) string {
	if n == 100 {
		return "cem"
	}
	words := make([]string, 0, 3)
	if n >= 100 {
		words = append(words, hundredWords[n/100])
		n %= 100
	}
	switch {
	case n >= 20:
		words = append(words, tenWords[n/10])
		if n%10 > 0 {
			words = append(words, unitWords[n%10])
		}
	case n >= 10:
		words = append(words, teenWords[n-10])
	case n > 0:
		words = append(words, unitWords[n])
	}
	return strings.Join(words, " e ")
}
