// Package aging classifies receivables and accrues late charges.
//
// Charges are never persisted. Every read of a receivable runs through
// Evaluate with the current date, reading the customer's rates live.
package aging

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"kombatmoto/backend/internal/domain"
	"kombatmoto/backend/internal/money"
)

var daysPerMonth = decimal.NewFromInt(30)

// Evaluate computes the collection state of rec as of today.
//
// A paid receivable always reports its original amount. Past the due date a
// flat fine of fineRate% applies once, plus simple interest of
// interestRate%/30 per day late. Amounts keep full precision; use
// AgingSnapshot.Rounded for display.
func Evaluate(rec domain.Receivable, cust domain.Customer, today time.Time) domain.AgingSnapshot {
	if rec.PaymentStatus == domain.PaymentPaid {
		return domain.AgingSnapshot{
			Status:   domain.AgingPaid,
			Fine:     decimal.Zero,
			Interest: decimal.Zero,
			TotalDue: rec.OriginalAmount,
		}
	}

	diff := DaysBetween(rec.DueDate, today)
	switch {
	case diff < 0:
		return notYetDue(rec, domain.AgingOnTime)
	case diff == 0:
		return notYetDue(rec, domain.AgingDueToday)
	}

	fine := money.Percent(rec.OriginalAmount, cust.FineRate)
	interest := money.Percent(rec.OriginalAmount, cust.InterestRate).
		Div(daysPerMonth).
		Mul(decimal.NewFromInt(int64(diff)))

	return domain.AgingSnapshot{
		Status:   domain.AgingOverdue,
		Fine:     fine,
		Interest: interest,
		DaysLate: diff,
		TotalDue: rec.OriginalAmount.Add(fine).Add(interest),
	}
}

func notYetDue(rec domain.Receivable, status domain.AgingStatus) domain.AgingSnapshot {
	return domain.AgingSnapshot{
		Status:   status,
		Fine:     decimal.Zero,
		Interest: decimal.Zero,
		TotalDue: rec.OriginalAmount,
	}
}

// DaysBetween returns ceil(to - from) in days after truncating both to
// calendar midnight. Each side keeps the civil date of its own location, so
// a DATE column read back as UTC midnight compares correctly with a local
// today.
func DaysBetween(from time.Time, to time.Time) int {
	f := civil(from)
	t := civil(to)
	return int(math.Ceil(t.Sub(f).Hours() / 24))
}

// civil moves a date to midnight UTC so daylight saving shifts never
// produce fractional days.
func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Bucket picks the reminder bucket for a pending receivable. Only the exact
// day two days before the due date qualifies as before-due; days further out
// produce no reminder.
func Bucket(due time.Time, today time.Time) (domain.ReminderBucket, bool) {
	diff := DaysBetween(due, today)
	switch {
	case diff == -2:
		return domain.BucketBeforeDue, true
	case diff == 0:
		return domain.BucketOnDue, true
	case diff > 0:
		return domain.BucketOverdue, true
	}
	return "", false
}

// Delinquent reports whether the receivable is overdue as of today.
func Delinquent(rec domain.Receivable, today time.Time) bool {
	return rec.PaymentStatus == domain.PaymentPending && DaysBetween(rec.DueDate, today) > 0
}
