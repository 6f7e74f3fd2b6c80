package credit

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kombatmoto/backend/internal/domain"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func openBook() []domain.Receivable {
	return []domain.Receivable{
		{SaleID: "a", OriginalAmount: d("200"), PaymentStatus: domain.PaymentPending},
		{SaleID: "b", OriginalAmount: d("100"), PaymentStatus: domain.PaymentPaid},
	}
}

func TestCurrentDebtCountsOnlyPending(t *testing.T) {
	assert.Equal(t, "200.00", CurrentDebt(openBook()).StringFixed(2))
	assert.True(t, CurrentDebt(nil).IsZero())
}

func TestAuthorizeAllowsReachingTheLimit(t *testing.T) {
	cust := &domain.Customer{Name: "Maria", CreditLimit: d("500")}
	assert.NoError(t, Authorize(cust, openBook(), d("300")))
}

func TestAuthorizeRejectsAboveLimit(t *testing.T) {
	cust := &domain.Customer{Name: "Maria", CreditLimit: d("500")}

	err := Authorize(cust, openBook(), d("300.01"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCreditLimitExceeded))

	var limitErr *domain.CreditLimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "500.00", limitErr.Limit.StringFixed(2))
	assert.Equal(t, "200.00", limitErr.CurrentDebt.StringFixed(2))
	assert.Equal(t, "300.01", limitErr.Proposed.StringFixed(2))
}

func TestAuthorizeValidation(t *testing.T) {
	assert.ErrorIs(t, Authorize(nil, nil, d("10")), domain.ErrValidation)

	cust := &domain.Customer{CreditLimit: d("500")}
	assert.ErrorIs(t, Authorize(cust, nil, decimal.Zero), domain.ErrValidation)
	assert.ErrorIs(t, Authorize(cust, nil, d("-1")), domain.ErrValidation)
}

func TestRemainingNeverNegative(t *testing.T) {
	assert.Equal(t, "300.00", Remaining(domain.Customer{CreditLimit: d("500")}, openBook()).StringFixed(2))
	assert.True(t, Remaining(domain.Customer{CreditLimit: d("150")}, openBook()).IsZero())
}
