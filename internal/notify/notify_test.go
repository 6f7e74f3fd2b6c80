package notify

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kombatmoto/backend/internal/domain"
)

func receivable() domain.Receivable {
	return domain.Receivable{
		SaleID:         "sale-1",
		CustomerName:   "Cliente Balcão",
		OriginalAmount: decimal.RequireFromString("153.5"),
		DueDate:        time.Date(2024, 4, 9, 0, 0, 0, 0, time.UTC),
		PaymentStatus:  domain.PaymentPending,
	}
}

func TestBuildMessagePerBucket(t *testing.T) {
	b := NewBuilder("Kombat Moto")
	cust := domain.Customer{Name: "João da Silva"}

	before := b.BuildMessage(receivable(), cust, domain.BucketBeforeDue)
	assert.True(t, strings.HasPrefix(before, "Olá João da Silva,\n"))
	assert.Contains(t, before, "R$ 153.50 vence em 09/04/2024")
	assert.True(t, strings.HasSuffix(before, "Obrigado!\nKombat Moto"))

	assert.Contains(t, b.BuildMessage(receivable(), cust, domain.BucketOnDue), "vence hoje, 09/04/2024")
	assert.Contains(t, b.BuildMessage(receivable(), cust, domain.BucketOverdue), "venceu em 09/04/2024")
}

func TestBuildMessageFallsBackToSaleName(t *testing.T) {
	msg := NewBuilder("").BuildMessage(receivable(), domain.Customer{}, domain.BucketOnDue)
	assert.True(t, strings.HasPrefix(msg, "Olá Cliente Balcão,"))
	assert.True(t, strings.HasSuffix(msg, DefaultShopName))
}

func TestWhatsAppLink(t *testing.T) {
	link := WhatsAppLink("(11) 98888-7777", "Olá & até")
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "wa.me", parsed.Host)
	assert.Equal(t, "/11988887777", parsed.Path)
	assert.Equal(t, "Olá & até", parsed.Query().Get("text"))

	assert.True(t, strings.HasPrefix(WhatsAppLink("", "oi"), "https://wa.me/?text="))
}

func TestCatalogMessage(t *testing.T) {
	msg := NewBuilder("Kombat Moto").CatalogMessage("freios", []domain.Product{
		{Description: "Pastilha de Freio Dianteira", SalePrice: decimal.RequireFromString("39.9")},
	})
	assert.True(t, strings.HasPrefix(msg, "*Kombat Moto - Catálogo de Freios*"))
	assert.Contains(t, msg, "✅ Pastilha de Freio Dianteira: R$ 39.90")
}

func TestPurchaseOrderMessage(t *testing.T) {
	po := domain.PurchaseOrder{
		ID:    "po-1",
		Items: []domain.PurchaseOrderItem{{Description: "Vela de Ignição", Quantity: 10}},
	}
	msg := NewBuilder("Kombat Moto").PurchaseOrderMessage(po, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	assert.Contains(t, msg, "*PEDIDO DE PEÇAS - KOMBAT MOTO*")
	assert.Contains(t, msg, "Data: 10/03/2024")
	assert.Contains(t, msg, "Pedido ID: po-1")
	assert.Contains(t, msg, "- 10x Vela de Ignição")
}

func TestRevisionMessageAndCreditAlert(t *testing.T) {
	b := NewBuilder("Kombat Moto")
	msg := b.RevisionMessage(domain.Customer{Name: "Maria"}, domain.Motorcycle{Plate: "ABC1D23"}, 9000)
	assert.Contains(t, msg, "Sua moto (Placa ABC1D23) está com a revisão de 9000 km")

	alert := CreditLimitAlert(domain.Customer{Name: "Maria"}, &domain.CreditLimitExceededError{
		Limit:       decimal.RequireFromString("1000"),
		CurrentDebt: decimal.RequireFromString("950"),
		Proposed:    decimal.RequireFromString("1234.5"),
	})
	assert.Contains(t, alert, "Limite: R$ 1.000,00")
	assert.Contains(t, alert, "Esta venda: R$ 1.234,50")
}
