package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kombatmoto/backend/internal/clock"
	"kombatmoto/backend/internal/domain"
	"kombatmoto/backend/internal/store"
	"kombatmoto/backend/internal/store/memory"
)

var testNow = time.Date(2024, time.March, 10, 14, 0, 0, 0, time.UTC)

type countingCache struct {
	values map[string]domain.DashboardStats
	sets   int
	dels   int
}

func (c *countingCache) Get(_ context.Context, key string) (*domain.DashboardStats, bool, error) {
	v, ok := c.values[key]
	if !ok {
		return nil, false, nil
	}
	return &v, true, nil
}

func (c *countingCache) Set(_ context.Context, key string, value *domain.DashboardStats, _ time.Duration) error {
	c.values[key] = *value
	c.sets++
	return nil
}

func (c *countingCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.values, k)
	}
	c.dels++
	return nil
}

func newTestService(t *testing.T) (*Service, *memory.Store, *countingCache) {
	t.Helper()
	repo := memory.NewSeeded()
	dashboard := &countingCache{values: make(map[string]domain.DashboardStats)}
	svc := New(repo, Options{
		Clock:    clock.Fixed(testNow),
		ShopName: "Kombat Moto Peças",
		Cache:    dashboard,
	})
	return svc, repo, dashboard
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func operatorCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "balcao", Role: domain.RoleOperator})
}

func id(v int64) *int64 { return &v }

func TestCreateCustomerAppliesDefaultRates(t *testing.T) {
	svc, _, _ := newTestService(t)

	customer, err := svc.CreateCustomer(operatorCtx(), domain.CustomerCreateRequest{
		Name:        "  Pedro Santos ",
		WhatsApp:    "(11) 95555-4444",
		CreditLimit: decimal.RequireFromString("300"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Pedro Santos", customer.Name)
	assert.True(t, customer.FineRate.Equal(decimal.NewFromInt(2)))
	assert.True(t, customer.InterestRate.Equal(decimal.NewFromInt(1)))

	_, err = svc.CreateCustomer(operatorCtx(), domain.CustomerCreateRequest{Name: "Sem Zap"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	negative := decimal.RequireFromString("-1")
	_, err = svc.CreateCustomer(operatorCtx(), domain.CustomerCreateRequest{Name: "X", WhatsApp: "11", FineRate: &negative})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestZeroDefaultRatesAreKept(t *testing.T) {
	zero := decimal.Zero
	svc := New(memory.NewSeeded(), Options{
		Clock:               clock.Fixed(testNow),
		DefaultFineRate:     &zero,
		DefaultInterestRate: &zero,
	})

	customer, err := svc.CreateCustomer(operatorCtx(), domain.CustomerCreateRequest{
		Name:        "Oficina Sem Juros",
		WhatsApp:    "(11) 94444-3333",
		CreditLimit: decimal.RequireFromString("300"),
	})
	require.NoError(t, err)
	assert.True(t, customer.FineRate.IsZero(), "fine rate %s", customer.FineRate)
	assert.True(t, customer.InterestRate.IsZero(), "interest rate %s", customer.InterestRate)
}

func TestLateEveningCreditSaleDueDateUsesShopDate(t *testing.T) {
	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	svc := New(memory.NewSeeded(), Options{
		Clock: clock.Fixed(time.Date(2024, time.January, 1, 22, 0, 0, 0, saoPaulo)),
	})

	sale, err := svc.CreateCounterSale(operatorCtx(), domain.CounterSaleRequest{
		CustomerID:    id(1),
		Items:         []domain.SaleItemRequest{{ProductID: id(3), Quantity: 1}},
		PaymentMethod: domain.PaymentCredit,
	})
	require.NoError(t, err)
	require.NotNil(t, sale.DueDate)
	assert.Equal(t, "2024-01-31", sale.DueDate.Format(time.DateOnly))
}

func TestUpdateCustomerTermsRequiresAdmin(t *testing.T) {
	svc, _, _ := newTestService(t)
	limit := decimal.RequireFromString("800")

	_, err := svc.UpdateCustomerTerms(operatorCtx(), 1, domain.CustomerTermsRequest{CreditLimit: &limit})
	assert.True(t, IsAdminRequired(err))

	updated, err := svc.UpdateCustomerTerms(adminCtx(), 1, domain.CustomerTermsRequest{CreditLimit: &limit})
	require.NoError(t, err)
	assert.Equal(t, "800.00", updated.CreditLimit.StringFixed(2))
}

func TestCounterSaleCashIsPaidAndMovesStock(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := operatorCtx()

	sale, err := svc.CreateCounterSale(ctx, domain.CounterSaleRequest{
		Items:         []domain.SaleItemRequest{{ProductID: id(1), Quantity: 2}},
		PaymentMethod: domain.PaymentCash,
	})
	require.NoError(t, err)
	assert.Equal(t, "Consumidor Final", sale.CustomerName)
	assert.Equal(t, domain.PaymentPaid, sale.PaymentStatus)
	require.NotNil(t, sale.PaidDate)
	assert.Equal(t, "70.00", sale.Total.StringFixed(2))
	assert.Len(t, sale.ID, 9)

	product, err := repo.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 38, product.Stock)
}

func TestCounterSaleRejectsUnknownPaymentMethod(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.CreateCounterSale(operatorCtx(), domain.CounterSaleRequest{
		Items:         []domain.SaleItemRequest{{ProductID: id(1), Quantity: 1}},
		PaymentMethod: "boleto",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreditSaleAboveLimitLeavesNoTrace(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := operatorCtx()

	_, err := svc.CreateCounterSale(ctx, domain.CounterSaleRequest{
		CustomerID:    id(1),
		Items:         []domain.SaleItemRequest{{ProductID: id(2), Quantity: 3}},
		PaymentMethod: domain.PaymentCredit,
	})
	var limitErr *domain.CreditLimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "569.70", limitErr.Proposed.StringFixed(2))
	assert.Equal(t, "500.00", limitErr.Limit.StringFixed(2))

	product, err := repo.GetProduct(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 8, product.Stock)

	open, err := svc.ListReceivables(ctx, id(1), domain.PaymentPending)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestCreditSaleWithoutCustomerIsValidationError(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.CreateCounterSale(operatorCtx(), domain.CounterSaleRequest{
		Items:         []domain.SaleItemRequest{{ProductID: id(1), Quantity: 1}},
		PaymentMethod: domain.PaymentCredit,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestInsufficientStock(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.CreateCounterSale(operatorCtx(), domain.CounterSaleRequest{
		Items:         []domain.SaleItemRequest{{ProductID: id(2), Quantity: 9}},
		PaymentMethod: domain.PaymentPix,
	})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)
}

func TestServiceOrderCommissionAndMotoDetails(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := operatorCtx()

	sale, err := svc.CreateServiceOrder(ctx, domain.ServiceOrderRequest{
		CustomerID:         id(1),
		MotorcycleID:       id(1),
		CurrentKm:          9100,
		MechanicID:         id(1),
		Items:              []domain.SaleItemRequest{{ProductID: id(1), Quantity: 1}},
		Services:           []domain.SaleServiceRequest{{FixedServiceID: 1, Quantity: 1}},
		LaborValue:         decimal.RequireFromString("100"),
		ServiceDescription: "Troca de óleo",
		PaymentMethod:      domain.PaymentPix,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.SaleWorkshop, sale.Type)
	assert.Equal(t, domain.ServiceOpen, sale.Status)
	assert.Equal(t, "135.00", sale.Total.StringFixed(2))
	assert.Equal(t, "60.00", sale.Commission.StringFixed(2))
	assert.Equal(t, "Carlos", sale.MechanicName)
	assert.Equal(t, "Honda CG 160 (ABC1D23) - KM: 9100", sale.MotoDetails)
	assert.Equal(t, "João da Silva", sale.CustomerName)

	moto, err := repo.GetMotorcycle(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 9100, moto.CurrentKm)
}

func TestServiceOrderWithoutMechanicHasNoCommission(t *testing.T) {
	svc, _, _ := newTestService(t)
	sale, err := svc.CreateServiceOrder(operatorCtx(), domain.ServiceOrderRequest{
		LaborValue:    decimal.RequireFromString("80"),
		PaymentMethod: domain.PaymentCash,
	})
	require.NoError(t, err)
	assert.Equal(t, "Cliente O.S.", sale.CustomerName)
	assert.True(t, sale.Commission.IsZero())
}

func TestServiceOrderStatusNeverGoesBack(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := operatorCtx()

	sale, err := svc.CreateServiceOrder(ctx, domain.ServiceOrderRequest{
		LaborValue:    decimal.RequireFromString("50"),
		PaymentMethod: domain.PaymentCash,
	})
	require.NoError(t, err)

	updated, err := svc.UpdateServiceOrderStatus(ctx, sale.ID, domain.ServiceReady)
	require.NoError(t, err)
	assert.Equal(t, domain.ServiceReady, updated.Status)

	_, err = svc.UpdateServiceOrderStatus(ctx, sale.ID, domain.ServiceInProgress)
	assert.ErrorIs(t, err, domain.ErrValidation)

	updated, err = svc.UpdateServiceOrderStatus(ctx, sale.ID, domain.ServiceDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.ServiceDelivered, updated.Status)
}

func TestPromissoryNoteSpellsAmount(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := operatorCtx()

	sale, err := svc.CreateServiceOrder(ctx, domain.ServiceOrderRequest{
		CustomerID:    id(1),
		LaborValue:    decimal.RequireFromString("153.50"),
		PaymentMethod: domain.PaymentCredit,
		DueDate:       "2024-04-10",
	})
	require.NoError(t, err)

	note, err := svc.PromissoryNote(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "CENTO E CINQUENTA E TRÊS REAIS E CINQUENTA CENTAVOS", note.AmountInWords)
	assert.Equal(t, "João da Silva", note.Debtor)
	assert.Equal(t, "123.456.789-00", note.DebtorCPF)
	assert.Equal(t, "Kombat Moto Peças", note.Payee)
	assert.Equal(t, "2024-04-10", note.DueDate.Format(time.DateOnly))

	cash, err := svc.CreateCounterSale(ctx, domain.CounterSaleRequest{
		Items:         []domain.SaleItemRequest{{ProductID: id(1), Quantity: 1}},
		PaymentMethod: domain.PaymentCash,
	})
	require.NoError(t, err)
	_, err = svc.PromissoryNote(ctx, cash.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSettleAndRescheduleReceivable(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := operatorCtx()

	sale, err := svc.CreateCounterSale(ctx, domain.CounterSaleRequest{
		CustomerID:    id(2),
		Items:         []domain.SaleItemRequest{{ProductID: id(3), Quantity: 2}},
		PaymentMethod: domain.PaymentCredit,
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-04-09", sale.DueDate.Format(time.DateOnly))

	view, err := svc.RescheduleReceivable(ctx, sale.ID, "2024-04-20")
	require.NoError(t, err)
	assert.Equal(t, "2024-04-20", view.DueDate.Format(time.DateOnly))

	_, err = svc.RescheduleReceivable(ctx, sale.ID, "20/04/2024")
	assert.ErrorIs(t, err, domain.ErrValidation)

	settled, err := svc.SettleReceivable(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, settled.PaymentStatus)
	assert.Equal(t, domain.AgingPaid, settled.Aging.Status)

	_, err = svc.RescheduleReceivable(ctx, sale.ID, "2024-05-01")
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestDeleteSaleRequiresAdminAndRestocks(t *testing.T) {
	svc, repo, _ := newTestService(t)

	sale, err := svc.CreateCounterSale(operatorCtx(), domain.CounterSaleRequest{
		Items:         []domain.SaleItemRequest{{ProductID: id(5), Quantity: 4}},
		PaymentMethod: domain.PaymentCard,
	})
	require.NoError(t, err)

	_, err = svc.DeleteSale(operatorCtx(), sale.ID, "lançado errado")
	assert.True(t, IsAdminRequired(err))

	_, err = svc.DeleteSale(adminCtx(), sale.ID, " ")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.DeleteSale(adminCtx(), sale.ID, "lançado errado")
	require.NoError(t, err)

	product, err := repo.GetProduct(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 30, product.Stock)

	_, err = svc.GetSale(context.Background(), sale.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	logs, err := svc.ListAuditLogs(adminCtx(), "2024-03-10", 50)
	require.NoError(t, err)
	actions := make([]string, 0, len(logs))
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	assert.Contains(t, actions, "sale_delete")
}

func TestCashSessionExpectedBalance(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := operatorCtx()

	opened, err := svc.OpenCashSession(ctx, domain.CashSessionOpenRequest{OpeningBalance: decimal.RequireFromString("100")})
	require.NoError(t, err)
	assert.Equal(t, "balcao", opened.Session.OpenedBy)

	_, err = svc.OpenCashSession(ctx, domain.CashSessionOpenRequest{OpeningBalance: decimal.Zero})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = svc.CreateCounterSale(ctx, domain.CounterSaleRequest{
		Items:         []domain.SaleItemRequest{{ProductID: id(1), Quantity: 1}},
		PaymentMethod: domain.PaymentCash,
	})
	require.NoError(t, err)
	_, err = svc.CreateCounterSale(ctx, domain.CounterSaleRequest{
		Items:         []domain.SaleItemRequest{{ProductID: id(1), Quantity: 1}},
		PaymentMethod: domain.PaymentPix,
	})
	require.NoError(t, err)

	_, err = svc.AddCashMovement(ctx, domain.CashMovementRequest{Type: domain.CashSupply, Amount: decimal.RequireFromString("50"), Description: "troco"})
	require.NoError(t, err)
	_, err = svc.AddCashMovement(ctx, domain.CashMovementRequest{Type: domain.CashWithdrawal, Amount: decimal.RequireFromString("20"), Description: "lanche"})
	require.NoError(t, err)
	_, err = svc.AddCashMovement(ctx, domain.CashMovementRequest{Type: domain.CashWithdrawal, Amount: decimal.Zero, Description: "zero"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	closed, err := svc.CloseCashSession(ctx, domain.CashSessionCloseRequest{ClosingBalance: decimal.RequireFromString("160")})
	require.NoError(t, err)
	assert.Equal(t, domain.CashSessionClosed, closed.Session.Status)
	assert.Equal(t, "35.00", closed.CashSales.StringFixed(2))
	assert.Equal(t, "165.00", closed.Session.ExpectedBalance.StringFixed(2))
	assert.Equal(t, "-5.00", closed.Session.Difference.StringFixed(2))

	_, err = svc.ActiveCashSession(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCatalogMessageListsInStockOnly(t *testing.T) {
	svc, _, _ := newTestService(t)

	catalog, err := svc.CatalogMessage(context.Background(), "freios")
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.Products)
	assert.True(t, strings.HasPrefix(catalog.Message, "*Kombat Moto Peças - Catálogo de Freios*"))
	assert.Contains(t, catalog.Message, "✅ Pastilha de Freio Dianteira: R$ 39.90")
	assert.Contains(t, catalog.Link, "https://wa.me/?text=")

	_, err = svc.CatalogMessage(context.Background(), "carenagem")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProductWritesRequireAdmin(t *testing.T) {
	svc, _, _ := newTestService(t)
	req := domain.ProductCreateRequest{
		Description: "Retrovisor",
		Category:    "acessorios",
		SalePrice:   decimal.RequireFromString("45"),
		Stock:       3,
	}

	_, err := svc.CreateProduct(operatorCtx(), req)
	assert.True(t, IsAdminRequired(err))

	created, err := svc.CreateProduct(adminCtx(), req)
	require.NoError(t, err)
	assert.Equal(t, "UN", created.Unit)

	price := decimal.RequireFromString("49.90")
	updated, err := svc.UpdateProduct(adminCtx(), created.ID, domain.ProductUpdateRequest{SalePrice: &price})
	require.NoError(t, err)
	assert.Equal(t, "49.90", updated.SalePrice.StringFixed(2))

	restocked, err := svc.AddStock(adminCtx(), created.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 10, restocked.Stock)

	logs, err := svc.ListAuditLogs(adminCtx(), "2024-03-10", 50)
	require.NoError(t, err)
	found := false
	for _, l := range logs {
		if l.Action == "product_price_change" {
			found = true
			assert.Equal(t, "old=45.00,new=49.90", l.Detail)
		}
	}
	assert.True(t, found)
}

func TestPurchaseOrderLifecycle(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := adminCtx()

	distributor, err := svc.CreateDistributor(ctx, domain.DistributorCreateRequest{Name: "Moto Peças Sul", Phone: "(51) 3333-2222"})
	require.NoError(t, err)

	po, err := svc.CreatePurchaseOrder(ctx, domain.PurchaseOrderCreateRequest{
		DistributorID: distributor.ID,
		Items: []domain.PurchaseOrderItem{
			{ProductID: id(3), Quantity: 5},
			{Description: "Manete de freio", Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseOrderPending, po.Status)
	assert.Equal(t, "Pastilha de Freio Dianteira", po.Items[0].Description)

	sent, err := svc.SendPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseOrderSent, sent.PurchaseOrder.Status)
	assert.Contains(t, sent.Message, "*PEDIDO DE PEÇAS - KOMBAT MOTO PEÇAS*")
	assert.Contains(t, sent.Message, "- 5x Pastilha de Freio Dianteira")
	assert.True(t, strings.HasPrefix(sent.Link, "https://wa.me/5133332222?text="))

	received, err := svc.ReceivePurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseOrderReceived, received.Status)
	assert.Equal(t, "admin", received.ReceivedBy)

	product, err := repo.GetProduct(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 30, product.Stock)

	_, err = svc.ReceivePurchaseOrder(ctx, po.ID)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestDashboardIsCachedAndInvalidated(t *testing.T) {
	svc, _, dashboard := newTestService(t)
	ctx := operatorCtx()

	_, err := svc.CreateCounterSale(ctx, domain.CounterSaleRequest{
		Items:         []domain.SaleItemRequest{{ProductID: id(1), Quantity: 3}},
		PaymentMethod: domain.PaymentCash,
	})
	require.NoError(t, err)

	stats, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", stats.Date)
	assert.Equal(t, "105.00", stats.Revenue.StringFixed(2))
	assert.Equal(t, 1, stats.RevisionsDue)
	require.NotEmpty(t, stats.TopProducts)
	assert.Equal(t, "Óleo Motor 10W30 1L", stats.TopProducts[0].Description)
	assert.Equal(t, 1, dashboard.sets)

	_, err = svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dashboard.sets)

	_, err = svc.CreateCounterSale(ctx, domain.CounterSaleRequest{
		Items:         []domain.SaleItemRequest{{ProductID: id(1), Quantity: 1}},
		PaymentMethod: domain.PaymentCash,
	})
	require.NoError(t, err)

	stats, err = svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, dashboard.sets)
	assert.Equal(t, "140.00", stats.Revenue.StringFixed(2))
}

func TestMechanicCommissionReport(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := operatorCtx()

	for _, labor := range []string{"100", "40"} {
		_, err := svc.CreateServiceOrder(ctx, domain.ServiceOrderRequest{
			MechanicID:    id(1),
			LaborValue:    decimal.RequireFromString(labor),
			PaymentMethod: domain.PaymentPix,
		})
		require.NoError(t, err)
	}

	report, err := svc.MechanicCommissionReport(ctx, "week")
	require.NoError(t, err)
	require.Len(t, report.Mechanics, 1)
	assert.Equal(t, 2, report.Mechanics[0].Services)
	assert.Equal(t, "70.00", report.TotalCommission.StringFixed(2))
	assert.Equal(t, "70.00", report.NetShop.StringFixed(2))

	_, err = svc.MechanicCommissionReport(ctx, "year")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRevisionReminders(t *testing.T) {
	svc, _, _ := newTestService(t)

	due, err := svc.RevisionReminders(context.Background())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "ABC1D23", due[0].Motorcycle.Plate)
	assert.Equal(t, 9000, due[0].NextRevisionKm)
	assert.Contains(t, due[0].Message, "revisão de 9000 km")
}

func TestCreateMotorcycleNormalizesPlate(t *testing.T) {
	svc, _, _ := newTestService(t)

	moto, err := svc.CreateMotorcycle(operatorCtx(), domain.MotorcycleCreateRequest{
		CustomerID: 2,
		Model:      "Honda Biz 125",
		Plate:      "qwe-1a23",
		CurrentKm:  500,
	})
	require.NoError(t, err)
	assert.Equal(t, "QWE1A23", moto.Plate)

	_, err = svc.CreateMotorcycle(operatorCtx(), domain.MotorcycleCreateRequest{CustomerID: 2, Model: "Outra", Plate: "QWE1A23"})
	assert.True(t, errors.Is(err, store.ErrConflict))
}
