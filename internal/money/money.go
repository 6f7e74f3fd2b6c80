// Package money parses and formats the Brazilian real amounts and
// percentage rates used throughout the shop.
package money

import (
	"strings"

	"github.com/shopspring/decimal"

	"kombatmoto/backend/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Parse reads a locale formatted decimal such as "12,50", "1.234,56",
// "12.50" or "R$ 12,50".
//
// A lone dot is ambiguous. Without a currency prefix it is a decimal point
// ("1.000" is one). After "R$" a dot followed by exactly three digits is a
// thousands separator ("R$ 1.000" is one thousand).
func Parse(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	prefixed := strings.HasPrefix(s, "R$")
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if s == "" {
		return decimal.Zero, domain.NewValidationError("amount", "valor vazio")
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return decimal.Zero, domain.NewValidationError("amount", "valor inválido: "+raw)
		}
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	case prefixed && lastDot >= 0 && len(s)-lastDot-1 == 3:
		s = strings.Replace(s, ".", "", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, domain.NewValidationError("amount", "valor inválido: "+raw)
	}
	return d, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(raw string) decimal.Decimal {
	d, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return d
}

// RoundCents rounds half away from zero to two places.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percent returns amount * rate / 100.
func Percent(amount decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred)
}

// Format renders two decimals with a dot separator, e.g. "153.50".
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatBRL renders "1.234,56".
func FormatBRL(d decimal.Decimal) string {
	fixed := RoundCents(d).StringFixed(2)
	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String() + "," + frac
	if negative {
		return "-" + out
	}
	return out
}
