package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kombatmoto/backend/internal/domain"
	"kombatmoto/backend/internal/notify"
	"kombatmoto/backend/internal/store"
	"kombatmoto/backend/internal/store/memory"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

func (c *stepClock) set(y int, m time.Month, d int) {
	c.now = time.Date(y, m, d, 10, 30, 0, 0, time.UTC)
}

type fixture struct {
	ledger   *Ledger
	repo     *memory.Store
	clock    *stepClock
	customer *domain.Customer
}

func newFixture(t *testing.T, limit string) fixture {
	t.Helper()
	repo := memory.New()
	clk := &stepClock{}
	clk.set(2024, time.January, 1)

	customer, err := repo.CreateCustomer(context.Background(), domain.Customer{
		Name:         "João da Silva",
		WhatsApp:     "(11) 98888-7777",
		CreditLimit:  decimal.RequireFromString(limit),
		FineRate:     decimal.NewFromInt(2),
		InterestRate: decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	return fixture{
		ledger:   New(repo, clk, notify.NewBuilder("Kombat Moto Peças"), 30),
		repo:     repo,
		clock:    clk,
		customer: customer,
	}
}

func (f fixture) creditSale(amount string, due *time.Time) domain.Sale {
	total := decimal.RequireFromString(amount)
	return domain.Sale{
		CustomerID:    &f.customer.ID,
		CustomerName:  f.customer.Name,
		Items:         []domain.SaleItem{{Description: "Peça avulsa", Quantity: 1, Price: total}},
		Total:         total,
		PaymentMethod: domain.PaymentCredit,
		Type:          domain.SaleCounter,
		DueDate:       due,
	}
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestOpenDefaultsDueDateAndPending(t *testing.T) {
	f := newFixture(t, "500")

	sale, err := f.ledger.Open(context.Background(), f.creditSale("150.00", nil))
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentPending, sale.PaymentStatus)
	assert.Nil(t, sale.PaidDate)
	require.NotNil(t, sale.DueDate)
	assert.Equal(t, "2024-01-31", sale.DueDate.Format("2006-01-02"))
}

func TestOpenCountsDueDateFromShopDate(t *testing.T) {
	f := newFixture(t, "500")
	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	// 22:00 local is already the next day in UTC.
	f.clock.now = time.Date(2024, time.January, 1, 22, 0, 0, 0, saoPaulo)

	sale := f.creditSale("150.00", nil)
	sale.CreatedAt = f.clock.now.UTC()
	created, err := f.ledger.Open(context.Background(), sale)
	require.NoError(t, err)
	require.NotNil(t, created.DueDate)
	assert.Equal(t, "2024-01-31", created.DueDate.Format("2006-01-02"))

	f.clock.now = time.Date(2024, time.January, 31, 21, 30, 0, 0, saoPaulo)
	view, err := f.ledger.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgingDueToday, view.Aging.Status)
}

func TestOpenValidatesCreditSale(t *testing.T) {
	f := newFixture(t, "500")
	ctx := context.Background()

	walkIn := f.creditSale("10.00", nil)
	walkIn.CustomerID = nil
	_, err := f.ledger.Open(ctx, walkIn)
	assert.ErrorIs(t, err, domain.ErrValidation)

	zero := f.creditSale("0", nil)
	_, err = f.ledger.Open(ctx, zero)
	assert.ErrorIs(t, err, domain.ErrValidation)

	cash := f.creditSale("10.00", nil)
	cash.PaymentMethod = domain.PaymentCash
	_, err = f.ledger.Open(ctx, cash)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestOpenRejectsAboveLimitWithoutWriting(t *testing.T) {
	f := newFixture(t, "500")
	ctx := context.Background()

	_, err := f.ledger.Open(ctx, f.creditSale("500.00", nil))
	require.NoError(t, err)

	_, err = f.ledger.Open(ctx, f.creditSale("0.01", nil))
	var limitErr *domain.CreditLimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.True(t, limitErr.CurrentDebt.Equal(decimal.RequireFromString("500")))
	assert.True(t, limitErr.Proposed.Equal(decimal.RequireFromString("0.01")))

	open, err := f.ledger.ListOpen(ctx, &f.customer.ID)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestOpenAcceptsExactlyAtLimit(t *testing.T) {
	f := newFixture(t, "500")
	ctx := context.Background()

	_, err := f.ledger.Open(ctx, f.creditSale("499.99", nil))
	require.NoError(t, err)
	_, err = f.ledger.Open(ctx, f.creditSale("0.01", nil))
	require.NoError(t, err)

	statement, err := f.ledger.Statement(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Equal(t, "500.00", statement.CurrentDebt.StringFixed(2))
	assert.True(t, statement.RemainingCredit.IsZero())
}

func TestSettledCreditFreesLimit(t *testing.T) {
	f := newFixture(t, "500")
	ctx := context.Background()

	sale, err := f.ledger.Open(ctx, f.creditSale("500.00", nil))
	require.NoError(t, err)
	_, err = f.ledger.Settle(ctx, sale.ID)
	require.NoError(t, err)

	_, err = f.ledger.Open(ctx, f.creditSale("500.00", nil))
	assert.NoError(t, err)
}

func TestListOpenComputesChargesForToday(t *testing.T) {
	f := newFixture(t, "500")
	ctx := context.Background()

	_, err := f.ledger.Open(ctx, f.creditSale("150.00", date(2024, time.January, 1)))
	require.NoError(t, err)

	f.clock.set(2024, time.January, 11)
	open, err := f.ledger.ListOpen(ctx, nil)
	require.NoError(t, err)
	require.Len(t, open, 1)

	snap := open[0].Aging
	assert.Equal(t, domain.AgingOverdue, snap.Status)
	assert.Equal(t, 10, snap.DaysLate)
	assert.Equal(t, "3.00", snap.Fine.StringFixed(2))
	assert.Equal(t, "0.50", snap.Interest.StringFixed(2))
	assert.Equal(t, "153.50", snap.TotalDue.StringFixed(2))

	f.clock.set(2024, time.January, 1)
	open, err = f.ledger.ListOpen(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.AgingDueToday, open[0].Aging.Status)
	assert.Equal(t, "150.00", open[0].Aging.TotalDue.StringFixed(2))
}

func TestSettleIsIdempotent(t *testing.T) {
	f := newFixture(t, "500")
	ctx := context.Background()

	sale, err := f.ledger.Open(ctx, f.creditSale("80.00", nil))
	require.NoError(t, err)

	f.clock.set(2024, time.January, 5)
	first, err := f.ledger.Settle(ctx, sale.ID)
	require.NoError(t, err)

	f.clock.set(2024, time.January, 20)
	second, err := f.ledger.Settle(ctx, sale.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentPaid, second.PaymentStatus)
	require.NotNil(t, second.PaidDate)
	assert.True(t, first.PaidDate.Equal(*second.PaidDate))
	assert.Equal(t, "80.00", second.Aging.TotalDue.StringFixed(2))
}

func TestSettleAfterOverdueKeepsOriginalAmount(t *testing.T) {
	f := newFixture(t, "500")
	ctx := context.Background()

	sale, err := f.ledger.Open(ctx, f.creditSale("150.00", date(2024, time.January, 12)))
	require.NoError(t, err)

	f.clock.set(2024, time.February, 1)
	_, err = f.ledger.Settle(ctx, sale.ID)
	require.NoError(t, err)

	f.clock.set(2024, time.June, 30)
	view, err := f.ledger.Get(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgingPaid, view.Aging.Status)
	assert.True(t, view.Aging.Fine.IsZero())
	assert.True(t, view.Aging.Interest.IsZero())
	assert.Equal(t, "150.00", view.Aging.TotalDue.StringFixed(2))
}

func TestSettleUnknownSale(t *testing.T) {
	f := newFixture(t, "500")
	_, err := f.ledger.Settle(context.Background(), "NOPE")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestRescheduleMovesDueDateOfPendingOnly(t *testing.T) {
	f := newFixture(t, "500")
	ctx := context.Background()

	sale, err := f.ledger.Open(ctx, f.creditSale("100.00", date(2024, time.January, 5)))
	require.NoError(t, err)

	f.clock.set(2024, time.January, 10)
	view, err := f.ledger.Reschedule(ctx, sale.ID, *date(2024, time.January, 20))
	require.NoError(t, err)
	assert.Equal(t, domain.AgingOnTime, view.Aging.Status)
	assert.Equal(t, "2024-01-20", view.DueDate.Format("2006-01-02"))

	_, err = f.ledger.Settle(ctx, sale.ID)
	require.NoError(t, err)
	_, err = f.ledger.Reschedule(ctx, sale.ID, *date(2024, time.February, 20))
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestRemindersPickQualifyingBuckets(t *testing.T) {
	f := newFixture(t, "5000")
	ctx := context.Background()

	f.clock.set(2024, time.March, 1)
	for _, due := range []*time.Time{
		date(2024, time.March, 12),
		date(2024, time.March, 3),
		date(2024, time.March, 10),
		date(2024, time.March, 2),
	} {
		_, err := f.ledger.Open(ctx, f.creditSale("100.00", due))
		require.NoError(t, err)
	}

	f.clock.set(2024, time.March, 10)
	reminders, err := f.ledger.Reminders(ctx)
	require.NoError(t, err)

	buckets := make(map[domain.ReminderBucket]int)
	for _, r := range reminders {
		buckets[r.Bucket]++
		assert.Equal(t, "11988887777", r.Phone)
		assert.Contains(t, r.Link, "https://wa.me/11988887777?text=")
		assert.Contains(t, r.Message, "Olá João da Silva,")
	}
	assert.Equal(t, map[domain.ReminderBucket]int{
		domain.BucketBeforeDue: 1,
		domain.BucketOnDue:     1,
		domain.BucketOverdue:   2,
	}, buckets)
}

func TestDelinquencySumsOverduePrincipal(t *testing.T) {
	f := newFixture(t, "5000")
	ctx := context.Background()

	_, err := f.ledger.Open(ctx, f.creditSale("100.00", date(2024, time.January, 5)))
	require.NoError(t, err)
	_, err = f.ledger.Open(ctx, f.creditSale("40.00", date(2024, time.January, 8)))
	require.NoError(t, err)
	_, err = f.ledger.Open(ctx, f.creditSale("900.00", date(2024, time.February, 1)))
	require.NoError(t, err)

	f.clock.set(2024, time.January, 10)
	total, count, err := f.ledger.Delinquency(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, "140.00", total.StringFixed(2))
}
