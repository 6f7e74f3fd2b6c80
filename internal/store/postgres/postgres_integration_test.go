package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kombatmoto/backend/internal/domain"
	"kombatmoto/backend/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("KOMBAT_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set KOMBAT_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func seedCreditFixture(t *testing.T, s *Store, limit string, stock int) (*domain.Customer, *domain.Product) {
	t.Helper()
	ctx := context.Background()
	stamp := time.Now().UnixNano()

	customer, err := s.CreateCustomer(ctx, domain.Customer{
		Name:         fmt.Sprintf("Cliente IT %d", stamp),
		WhatsApp:     "11999990000",
		CreditLimit:  decimal.RequireFromString(limit),
		FineRate:     decimal.NewFromInt(2),
		InterestRate: decimal.NewFromInt(1),
	})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	product, err := s.CreateProduct(ctx, domain.Product{
		Description: "Pastilha IT",
		SKU:         fmt.Sprintf("IT-%d", stamp),
		Category:    "freios",
		Unit:        "PAR",
		SalePrice:   decimal.RequireFromString("50.00"),
		Stock:       stock,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE customer_id = $1`, customer.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, product.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, customer.ID)
	})
	return customer, product
}

func creditSale(customer *domain.Customer, product *domain.Product, qty int) domain.Sale {
	due := time.Now().UTC().AddDate(0, 0, 30)
	return domain.Sale{
		CustomerID:    &customer.ID,
		CustomerName:  customer.Name,
		Items:         []domain.SaleItem{{ProductID: &product.ID, Description: product.Description, Quantity: qty, Price: product.SalePrice}},
		Total:         product.SalePrice.Mul(decimal.NewFromInt(int64(qty))),
		PaymentMethod: domain.PaymentCredit,
		Type:          domain.SaleCounter,
		PaymentStatus: domain.PaymentPending,
		DueDate:       &due,
	}
}

func TestCreateSaleRejectsCreditAboveLimitAtomically(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	customer, product := seedCreditFixture(t, s, "100.00", 10)

	if _, err := s.CreateSale(ctx, creditSale(customer, product, 2)); err != nil {
		t.Fatalf("first credit sale at limit: %v", err)
	}

	_, err := s.CreateSale(ctx, creditSale(customer, product, 1))
	var limitErr *domain.CreditLimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected credit limit error, got %v", err)
	}
	if !limitErr.CurrentDebt.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("unexpected current debt %s", limitErr.CurrentDebt)
	}

	after, err := s.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Stock != 8 {
		t.Fatalf("rejected sale must not move stock, got %d", after.Stock)
	}

	open, err := s.ListReceivables(ctx, domain.ReceivableFilter{CustomerID: &customer.ID, Status: domain.PaymentPending})
	if err != nil {
		t.Fatalf("list receivables: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected one open receivable, got %d", len(open))
	}
}

func TestSettleIsIdempotentAndDeleteRestocks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	customer, product := seedCreditFixture(t, s, "500.00", 5)

	sale, err := s.CreateSale(ctx, creditSale(customer, product, 3))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	first, err := s.SettleReceivable(ctx, sale.ID, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	second, err := s.SettleReceivable(ctx, sale.ID, time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("settle again: %v", err)
	}
	if !first.PaidDate.Equal(*second.PaidDate) {
		t.Fatalf("second settle changed paid date: %s vs %s", first.PaidDate, second.PaidDate)
	}

	if _, err := s.RescheduleReceivable(ctx, sale.ID, time.Now().AddDate(0, 1, 0)); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict rescheduling a paid receivable, got %v", err)
	}

	if _, err := s.DeleteSale(ctx, sale.ID); err != nil {
		t.Fatalf("delete sale: %v", err)
	}
	after, err := s.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Stock != 5 {
		t.Fatalf("expected stock restored to 5, got %d", after.Stock)
	}
	if _, err := s.GetSale(ctx, sale.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected deleted sale to be gone, got %v", err)
	}
}

func TestCreateSaleInsufficientStock(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	customer, product := seedCreditFixture(t, s, "1000.00", 1)

	if _, err := s.CreateSale(ctx, creditSale(customer, product, 2)); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}
