package aging

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kombatmoto/backend/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func pending(amount string, due time.Time) domain.Receivable {
	return domain.Receivable{
		SaleID:         "sale-1",
		CustomerID:     1,
		OriginalAmount: decimal.RequireFromString(amount),
		DueDate:        due,
		PaymentStatus:  domain.PaymentPending,
	}
}

var customer = domain.Customer{
	ID:           1,
	Name:         "João da Silva",
	FineRate:     decimal.NewFromInt(2),
	InterestRate: decimal.NewFromInt(1),
}

func TestEvaluateOnTimeAndDueToday(t *testing.T) {
	rec := pending("100", day(2024, 3, 10))

	snap := Evaluate(rec, customer, day(2024, 3, 5))
	assert.Equal(t, domain.AgingOnTime, snap.Status)
	assert.True(t, snap.TotalDue.Equal(rec.OriginalAmount))

	snap = Evaluate(rec, customer, day(2024, 3, 10))
	assert.Equal(t, domain.AgingDueToday, snap.Status)
	assert.True(t, snap.Fine.IsZero())
	assert.Zero(t, snap.DaysLate)
}

func TestEvaluateOverdueAccruesFineAndInterest(t *testing.T) {
	rec := pending("100", day(2024, 3, 1))

	snap := Evaluate(rec, customer, day(2024, 3, 11)).Rounded()
	assert.Equal(t, domain.AgingOverdue, snap.Status)
	assert.Equal(t, 10, snap.DaysLate)
	assert.Equal(t, "2.00", snap.Fine.StringFixed(2))
	assert.Equal(t, "0.33", snap.Interest.StringFixed(2))
	assert.Equal(t, "102.33", snap.TotalDue.StringFixed(2))
}

func TestEvaluateTenDaysLateOnOneFifty(t *testing.T) {
	rec := pending("150.00", day(2024, 1, 1))

	snap := Evaluate(rec, customer, day(2024, 1, 11)).Rounded()
	assert.Equal(t, domain.AgingOverdue, snap.Status)
	assert.Equal(t, 10, snap.DaysLate)
	assert.Equal(t, "3.00", snap.Fine.StringFixed(2))
	assert.Equal(t, "0.50", snap.Interest.StringFixed(2))
	assert.Equal(t, "153.50", snap.TotalDue.StringFixed(2))

	due := Evaluate(rec, customer, day(2024, 1, 1))
	assert.Equal(t, domain.AgingDueToday, due.Status)
	assert.Equal(t, "150.00", due.TotalDue.StringFixed(2))
}

func TestEvaluateChargesAcrossDays(t *testing.T) {
	due := day(2024, 1, 1)
	rec := pending("150.00", due)
	flatFine := rec.OriginalAmount.Mul(customer.FineRate).Div(decimal.NewFromInt(100))

	prev := Evaluate(rec, customer, due.AddDate(0, 0, -5))
	for offset := -4; offset <= 60; offset++ {
		today := due.AddDate(0, 0, offset)
		snap := Evaluate(rec, customer, today)

		if offset > 0 {
			assert.True(t, snap.Interest.GreaterThan(prev.Interest), "interest must grow on %s", today.Format(time.DateOnly))
			assert.True(t, snap.Fine.Equal(flatFine), "fine on %s is %s", today.Format(time.DateOnly), snap.Fine)
		} else {
			assert.True(t, snap.Interest.Equal(prev.Interest), "interest moved before due on %s", today.Format(time.DateOnly))
			assert.True(t, snap.Fine.IsZero(), "fine before due on %s", today.Format(time.DateOnly))
		}
		assert.True(t, snap.TotalDue.Equal(rec.OriginalAmount.Add(snap.Fine).Add(snap.Interest)))
		prev = snap
	}
}

func TestEvaluateReadsRatesLive(t *testing.T) {
	rec := pending("100", day(2024, 3, 1))
	raised := customer
	raised.FineRate = decimal.NewFromInt(5)

	before := Evaluate(rec, customer, day(2024, 3, 2))
	after := Evaluate(rec, raised, day(2024, 3, 2))
	assert.True(t, after.Fine.GreaterThan(before.Fine))
}

func TestEvaluatePaidIgnoresCharges(t *testing.T) {
	rec := pending("80", day(2024, 1, 1))
	rec.PaymentStatus = domain.PaymentPaid

	snap := Evaluate(rec, customer, day(2024, 6, 1))
	assert.Equal(t, domain.AgingPaid, snap.Status)
	assert.True(t, snap.TotalDue.Equal(rec.OriginalAmount))
	assert.Zero(t, snap.DaysLate)
}

func TestDaysBetweenIgnoresClockAndDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	from := time.Date(2024, 3, 9, 23, 0, 0, 0, ny)
	to := time.Date(2024, 3, 11, 1, 0, 0, 0, ny)
	assert.Equal(t, 2, DaysBetween(from, to))
	assert.Equal(t, -2, DaysBetween(to, from))

	sp, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	assert.Equal(t, 0, DaysBetween(day(2024, 3, 10), time.Date(2024, 3, 10, 22, 0, 0, 0, sp)))
}

func TestBucket(t *testing.T) {
	due := day(2024, 3, 10)
	cases := []struct {
		today  time.Time
		bucket domain.ReminderBucket
		ok     bool
	}{
		{day(2024, 3, 7), "", false},
		{day(2024, 3, 8), domain.BucketBeforeDue, true},
		{day(2024, 3, 9), "", false},
		{day(2024, 3, 10), domain.BucketOnDue, true},
		{day(2024, 3, 15), domain.BucketOverdue, true},
	}
	for _, tc := range cases {
		bucket, ok := Bucket(due, tc.today)
		assert.Equal(t, tc.ok, ok, tc.today.Format("2006-01-02"))
		assert.Equal(t, tc.bucket, bucket, tc.today.Format("2006-01-02"))
	}
}

func TestDelinquent(t *testing.T) {
	rec := pending("50", day(2024, 3, 10))
	assert.False(t, Delinquent(rec, day(2024, 3, 10)))
	assert.True(t, Delinquent(rec, day(2024, 3, 11)))

	rec.PaymentStatus = domain.PaymentPaid
	assert.False(t, Delinquent(rec, day(2024, 4, 1)))
}
