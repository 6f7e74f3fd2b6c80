// Package notify renders the WhatsApp texts the shop sends to customers and
// distributors. It only builds text and links; nothing is sent from here.
package notify

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"kombatmoto/backend/internal/domain"
	"kombatmoto/backend/internal/money"
)

const DefaultShopName = "Kombat Moto Peças"

const dateLayout = "02/01/2006"

// Builder carries the shop name that signs every message.
type Builder struct {
	ShopName string
}

func NewBuilder(shopName string) Builder {
	if strings.TrimSpace(shopName) == "" {
		shopName = DefaultShopName
	}
	return Builder{ShopName: shopName}
}

// BuildMessage renders a collection reminder for the bucket. The amount is
// the receivable's original total.
func (b Builder) BuildMessage(rec domain.Receivable, cust domain.Customer, bucket domain.ReminderBucket) string {
	total := money.Format(rec.OriginalAmount)
	due := rec.DueDate.Format(dateLayout)

	var body string
	switch bucket {
	case domain.BucketBeforeDue:
		body = fmt.Sprintf("Este é um lembrete amigável de que sua fatura no valor de R$ %s vence em %s.", total, due)
	case domain.BucketOnDue:
		body = fmt.Sprintf("Sua fatura no valor de R$ %s vence hoje, %s.", total, due)
	default:
		body = fmt.Sprintf("Sua fatura no valor de R$ %s venceu em %s. Por favor, regularize o pagamento o mais breve possível.", total, due)
	}

	return fmt.Sprintf("Olá %s,\n%s\n\nObrigado!\n%s", displayName(cust, rec), body, b.ShopName)
}

// WhatsAppLink builds a wa.me deep link. Non digits are stripped from the
// phone; an empty phone yields a link that lets the operator pick a contact.
func WhatsAppLink(phone string, text string) string {
	digits := Digits(phone)
	return fmt.Sprintf("https://wa.me/%s?text=%s", digits, url.QueryEscape(text))
}

func Digits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CatalogMessage lists in-stock products of a category with their sale price.
func (b Builder) CatalogMessage(category string, products []domain.Product) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s - Catálogo de %s*\n\n", b.ShopName, titleCase(category))
	for _, p := range products {
		fmt.Fprintf(&sb, "✅ %s: R$ %s\n", p.Description, money.Format(p.SalePrice))
	}
	sb.WriteString("\n_Valores sujeitos a alteração e disponibilidade de estoque._\n")
	sb.WriteString("_Entre em contato para mais informações!_")
	return sb.String()
}

// PurchaseOrderMessage renders the order text sent to a distributor.
func (b Builder) PurchaseOrderMessage(po domain.PurchaseOrder, at time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*PEDIDO DE PEÇAS - %s*\n", strings.ToUpper(b.ShopName))
	fmt.Fprintf(&sb, "Data: %s\n", at.Format(dateLayout))
	fmt.Fprintf(&sb, "Pedido ID: %s\n\n", po.ID)
	sb.WriteString("*ITENS:*\n")
	for _, item := range po.Items {
		fmt.Fprintf(&sb, "- %dx %s\n", item.Quantity, item.Description)
	}
	sb.WriteString("\nFavor confirmar recebimento e informar previsão de entrega.")
	return sb.String()
}

// RevisionMessage invites the customer to book the next scheduled revision.
func (b Builder) RevisionMessage(cust domain.Customer, moto domain.Motorcycle, nextKm int) string {
	model := strings.TrimSpace(moto.Model)
	if model == "" {
		model = "moto"
	}
	return fmt.Sprintf(
		"Olá %s, aqui é da %s. Sua %s (Placa %s) está com a revisão de %d km próxima. Vamos agendar?",
		cust.Name, b.ShopName, model, moto.Plate, nextKm,
	)
}

// CreditLimitAlert explains a rejected credit sale to the operator.
func CreditLimitAlert(cust domain.Customer, limitErr *domain.CreditLimitExceededError) string {
	return fmt.Sprintf(
		"Limite de crédito excedido para %s!\nLimite: R$ %s\nDívida atual: R$ %s\nEsta venda: R$ %s",
		cust.Name,
		money.FormatBRL(limitErr.Limit),
		money.FormatBRL(limitErr.CurrentDebt),
		money.FormatBRL(limitErr.Proposed),
	)
}

func displayName(cust domain.Customer, rec domain.Receivable) string {
	if strings.TrimSpace(cust.Name) != "" {
		return cust.Name
	}
	return rec.CustomerName
}

func titleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
	return string(runes)
}
