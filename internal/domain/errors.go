package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrCreditLimitExceeded = errors.New("credit limit exceeded")
	ErrPersistence         = errors.New("persistence failure")
)

// ValidationError reports a malformed or missing field. Nothing is written
// when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func NewValidationError(field string, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// CreditLimitExceededError carries the three amounts the operator needs to
// understand a rejected credit sale.
type CreditLimitExceededError struct {
	Limit       decimal.Decimal
	CurrentDebt decimal.Decimal
	Proposed    decimal.Decimal
}

func (e *CreditLimitExceededError) Error() string {
	return fmt.Sprintf(
		"limite de crédito excedido: limite R$ %s / dívida atual R$ %s / esta venda R$ %s",
		e.Limit.StringFixed(2), e.CurrentDebt.StringFixed(2), e.Proposed.StringFixed(2),
	)
}

func (e *CreditLimitExceededError) Unwrap() error {
	return ErrCreditLimitExceeded
}

// PersistenceError wraps a row store fault. Callers must not retry
// automatically.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// Persistence wraps err unless it is nil or already domain-classified.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrCreditLimitExceeded) || errors.Is(err, ErrPersistence) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
