// Package credit enforces customer credit limits on new credit sales.
package credit

import (
	"github.com/shopspring/decimal"

	"kombatmoto/backend/internal/domain"
)

// CurrentDebt sums the principal of pending receivables. Accrued fines and
// interest never count against the limit.
func CurrentDebt(open []domain.Receivable) decimal.Decimal {
	total := decimal.Zero
	for _, rec := range open {
		if rec.PaymentStatus != domain.PaymentPending {
			continue
		}
		total = total.Add(rec.OriginalAmount)
	}
	return total
}

// Authorize accepts a proposed credit sale iff current debt plus the
// proposed amount stays within the customer's limit. Reaching the limit
// exactly is allowed.
func Authorize(cust *domain.Customer, open []domain.Receivable, proposed decimal.Decimal) error {
	if cust == nil {
		return domain.NewValidationError("customer_id", "venda fiado exige cliente cadastrado")
	}
	if !proposed.IsPositive() {
		return domain.NewValidationError("total", "valor da venda deve ser maior que zero")
	}

	debt := CurrentDebt(open)
	if debt.Add(proposed).GreaterThan(cust.CreditLimit) {
		return &domain.CreditLimitExceededError{
			Limit:       cust.CreditLimit,
			CurrentDebt: debt,
			Proposed:    proposed,
		}
	}
	return nil
}

// Remaining is the credit still available, never negative.
func Remaining(cust domain.Customer, open []domain.Receivable) decimal.Decimal {
	left := cust.CreditLimit.Sub(CurrentDebt(open))
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}
