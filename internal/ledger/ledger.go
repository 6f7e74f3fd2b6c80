// Package ledger owns the receivable lifecycle of credit sales: opening them
// under the customer's credit limit, settling, rescheduling and reading them
// back with charges computed for the current day.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"kombatmoto/backend/internal/aging"
	"kombatmoto/backend/internal/clock"
	"kombatmoto/backend/internal/credit"
	"kombatmoto/backend/internal/domain"
	"kombatmoto/backend/internal/logger"
	"kombatmoto/backend/internal/notify"
	"kombatmoto/backend/internal/store"
)

const DefaultDueDays = 30

type Ledger struct {
	repo           store.Repository
	clock          clock.Clock
	notifier       notify.Builder
	defaultDueDays int
	log            zerolog.Logger
}

func New(repo store.Repository, clk clock.Clock, notifier notify.Builder, defaultDueDays int) *Ledger {
	if defaultDueDays < 1 {
		defaultDueDays = DefaultDueDays
	}
	return &Ledger{
		repo:           repo,
		clock:          clk,
		notifier:       notifier,
		defaultDueDays: defaultDueDays,
		log:            logger.WithComponent("ledger"),
	}
}

// Today is the civil date the ledger evaluates charges against.
func (l *Ledger) Today() time.Time {
	return clock.Today(l.clock)
}

// Open persists a credit sale together with its receivable. The store runs
// the credit limit check inside the same write, so a rejected sale leaves no
// trace.
func (l *Ledger) Open(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if !sale.IsCredit() {
		return nil, domain.NewValidationError("payment_method", "receivable requires a credit sale")
	}
	if sale.CustomerID == nil {
		return nil, domain.NewValidationError("customer_id", "venda fiado exige cliente cadastrado")
	}
	if !sale.Total.IsPositive() {
		return nil, domain.NewValidationError("total", "valor da venda deve ser maior que zero")
	}

	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = l.clock.Now()
	}
	if sale.DueDate == nil {
		// CreatedAt is stored in UTC; the due date counts from the shop's civil date.
		local := sale.CreatedAt.In(l.clock.Now().Location())
		due := clock.Midnight(local).AddDate(0, 0, l.defaultDueDays)
		sale.DueDate = &due
	} else {
		due := clock.Midnight(*sale.DueDate)
		sale.DueDate = &due
	}
	sale.PaymentStatus = domain.PaymentPending
	sale.PaidDate = nil

	created, err := l.repo.CreateSale(ctx, sale)
	if err != nil {
		var limitErr *domain.CreditLimitExceededError
		if errors.As(err, &limitErr) {
			l.log.Info().
				Int64("customer_id", *sale.CustomerID).
				Str("limit", limitErr.Limit.StringFixed(2)).
				Str("current_debt", limitErr.CurrentDebt.StringFixed(2)).
				Str("proposed", limitErr.Proposed.StringFixed(2)).
				Msg("credit sale rejected")
		}
		return nil, err
	}

	l.log.Info().
		Str("sale_id", created.ID).
		Int64("customer_id", *created.CustomerID).
		Str("amount", created.Total.StringFixed(2)).
		Time("due_date", *created.DueDate).
		Msg("receivable opened")
	return created, nil
}

// Settle marks the receivable paid as of now. Settling an already paid
// receivable returns it unchanged with its original paid date.
func (l *Ledger) Settle(ctx context.Context, saleID string) (*domain.ReceivableView, error) {
	sale, err := l.repo.SettleReceivable(ctx, saleID, l.clock.Now())
	if err != nil {
		return nil, err
	}
	view, err := l.viewOf(ctx, sale)
	if err != nil {
		return nil, err
	}
	l.log.Info().Str("sale_id", saleID).Time("paid_date", *sale.PaidDate).Msg("receivable settled")
	return view, nil
}

func (l *Ledger) Get(ctx context.Context, saleID string) (*domain.ReceivableView, error) {
	sale, err := l.repo.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return l.viewOf(ctx, sale)
}

// Reschedule moves the due date of a pending receivable.
func (l *Ledger) Reschedule(ctx context.Context, saleID string, dueDate time.Time) (*domain.ReceivableView, error) {
	if dueDate.IsZero() {
		return nil, domain.NewValidationError("due_date", "data de vencimento obrigatória")
	}
	sale, err := l.repo.RescheduleReceivable(ctx, saleID, clock.Midnight(dueDate))
	if err != nil {
		return nil, err
	}
	return l.viewOf(ctx, sale)
}

// ListOpen returns pending receivables, optionally for one customer, each
// with a snapshot computed for today.
func (l *Ledger) ListOpen(ctx context.Context, customerID *int64) ([]domain.ReceivableView, error) {
	return l.list(ctx, domain.ReceivableFilter{CustomerID: customerID, Status: domain.PaymentPending})
}

// List returns receivables in any status matching filter.
func (l *Ledger) List(ctx context.Context, filter domain.ReceivableFilter) ([]domain.ReceivableView, error) {
	return l.list(ctx, filter)
}

func (l *Ledger) list(ctx context.Context, filter domain.ReceivableFilter) ([]domain.ReceivableView, error) {
	receivables, err := l.repo.ListReceivables(ctx, filter)
	if err != nil {
		return nil, err
	}

	today := l.Today()
	customers := make(map[int64]domain.Customer, 8)
	views := make([]domain.ReceivableView, 0, len(receivables))
	for _, rec := range receivables {
		cust, err := l.customer(ctx, customers, rec.CustomerID)
		if err != nil {
			return nil, err
		}
		views = append(views, evaluate(rec, cust, today))
	}
	return views, nil
}

// Statement summarises what a customer owes today.
func (l *Ledger) Statement(ctx context.Context, customerID int64) (*domain.CustomerStatement, error) {
	cust, err := l.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	open, err := l.repo.ListReceivables(ctx, domain.ReceivableFilter{CustomerID: &customerID, Status: domain.PaymentPending})
	if err != nil {
		return nil, err
	}

	today := l.Today()
	statement := domain.CustomerStatement{
		Customer:        *cust,
		Open:            make([]domain.ReceivableView, 0, len(open)),
		CurrentDebt:     credit.CurrentDebt(open),
		TotalDue:        decimal.Zero,
		RemainingCredit: credit.Remaining(*cust, open),
	}
	for _, rec := range open {
		snapshot := aging.Evaluate(rec, *cust, today)
		statement.TotalDue = statement.TotalDue.Add(snapshot.TotalDue)
		statement.Open = append(statement.Open, domain.ReceivableView{Receivable: rec, Aging: snapshot.Rounded()})
	}
	statement.TotalDue = statement.TotalDue.Round(2)
	return &statement, nil
}

// Reminders builds the collection messages due today. Receivables whose
// customer has no WhatsApp number still get a message; the link then opens
// the contact picker.
func (l *Ledger) Reminders(ctx context.Context) ([]domain.Reminder, error) {
	open, err := l.repo.ListReceivables(ctx, domain.ReceivableFilter{Status: domain.PaymentPending})
	if err != nil {
		return nil, err
	}

	today := l.Today()
	customers := make(map[int64]domain.Customer, 8)
	reminders := make([]domain.Reminder, 0, len(open))
	for _, rec := range open {
		bucket, ok := aging.Bucket(rec.DueDate, today)
		if !ok {
			continue
		}
		cust, err := l.customer(ctx, customers, rec.CustomerID)
		if err != nil {
			return nil, err
		}
		msg := l.notifier.BuildMessage(rec, cust, bucket)
		reminders = append(reminders, domain.Reminder{
			Receivable: evaluate(rec, cust, today),
			Bucket:     bucket,
			Phone:      notify.Digits(cust.WhatsApp),
			Message:    msg,
			Link:       notify.WhatsAppLink(cust.WhatsApp, msg),
		})
	}
	return reminders, nil
}

// Delinquency sums the principal of overdue receivables and counts them.
func (l *Ledger) Delinquency(ctx context.Context) (decimal.Decimal, int, error) {
	open, err := l.repo.ListReceivables(ctx, domain.ReceivableFilter{Status: domain.PaymentPending})
	if err != nil {
		return decimal.Zero, 0, err
	}
	today := l.Today()
	total := decimal.Zero
	count := 0
	for _, rec := range open {
		if aging.Delinquent(rec, today) {
			total = total.Add(rec.OriginalAmount)
			count++
		}
	}
	return total, count, nil
}

func (l *Ledger) viewOf(ctx context.Context, sale *domain.Sale) (*domain.ReceivableView, error) {
	rec, ok := sale.Receivable()
	if !ok {
		return nil, fmt.Errorf("sale %s has no receivable: %w", sale.ID, store.ErrNotFound)
	}
	cust, err := l.repo.GetCustomer(ctx, rec.CustomerID)
	if err != nil {
		return nil, err
	}
	view := evaluate(rec, *cust, l.Today())
	return &view, nil
}

func (l *Ledger) customer(ctx context.Context, cache map[int64]domain.Customer, id int64) (domain.Customer, error) {
	if cust, ok := cache[id]; ok {
		return cust, nil
	}
	cust, err := l.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("customer %d: %w", id, err)
	}
	cache[id] = *cust
	return *cust, nil
}

func evaluate(rec domain.Receivable, cust domain.Customer, today time.Time) domain.ReceivableView {
	return domain.ReceivableView{Receivable: rec, Aging: aging.Evaluate(rec, cust, today).Rounded()}
}
