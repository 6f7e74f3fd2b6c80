package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"kombatmoto/backend/internal/domain"
	"kombatmoto/backend/internal/money"
	"kombatmoto/backend/internal/xid"
)

func (s *Service) OpenCashSession(ctx context.Context, req domain.CashSessionOpenRequest) (domain.CashSessionResponse, error) {
	if req.OpeningBalance.IsNegative() {
		return domain.CashSessionResponse{}, domain.NewValidationError("opening_balance", "saldo inicial não pode ser negativo")
	}

	session, err := s.repo.OpenCashSession(ctx, domain.CashSession{
		ID:             xid.New("cash"),
		OpenedBy:       actorName(ctx),
		OpeningBalance: money.RoundCents(req.OpeningBalance),
		Status:         domain.CashSessionOpen,
		OpenedAt:       s.clock.Now().UTC(),
	})
	if err != nil {
		return domain.CashSessionResponse{}, err
	}

	s.logAudit(ctx, "cash_open", "cash_session", session.ID,
		fmt.Sprintf("opening=%s", session.OpeningBalance.StringFixed(2)))
	return domain.CashSessionResponse{Session: *session, Movements: []domain.CashMovement{}, CashSales: decimal.Zero}, nil
}

func (s *Service) ActiveCashSession(ctx context.Context) (domain.CashSessionResponse, error) {
	session, err := s.repo.GetActiveCashSession(ctx)
	if err != nil {
		return domain.CashSessionResponse{}, err
	}
	return s.cashSessionResponse(ctx, *session)
}

func (s *Service) AddCashMovement(ctx context.Context, req domain.CashMovementRequest) (domain.CashMovement, error) {
	if req.Type != domain.CashSupply && req.Type != domain.CashWithdrawal {
		return domain.CashMovement{}, domain.NewValidationError("type", "tipo deve ser supply ou withdrawal")
	}
	if !req.Amount.IsPositive() {
		return domain.CashMovement{}, domain.NewValidationError("amount", "valor deve ser maior que zero")
	}
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return domain.CashMovement{}, domain.NewValidationError("description", "descrição obrigatória")
	}

	session, err := s.repo.GetActiveCashSession(ctx)
	if err != nil {
		return domain.CashMovement{}, err
	}

	movement, err := s.repo.AddCashMovement(ctx, domain.CashMovement{
		ID:          xid.New("mov"),
		SessionID:   session.ID,
		Type:        req.Type,
		Amount:      money.RoundCents(req.Amount),
		Description: req.Description,
		CreatedBy:   actorName(ctx),
		CreatedAt:   s.clock.Now().UTC(),
	})
	if err != nil {
		return domain.CashMovement{}, err
	}

	s.logAudit(ctx, "cash_movement", "cash_session", session.ID,
		fmt.Sprintf("type=%s,amount=%s", movement.Type, movement.Amount.StringFixed(2)))
	return *movement, nil
}

// CloseCashSession closes the open session. Expected balance is the opening
// balance plus cash sales since opening plus supplies minus withdrawals.
func (s *Service) CloseCashSession(ctx context.Context, req domain.CashSessionCloseRequest) (domain.CashSessionResponse, error) {
	if req.ClosingBalance.IsNegative() {
		return domain.CashSessionResponse{}, domain.NewValidationError("closing_balance", "saldo final não pode ser negativo")
	}

	session, err := s.repo.GetActiveCashSession(ctx)
	if err != nil {
		return domain.CashSessionResponse{}, err
	}
	summary, err := s.cashSessionResponse(ctx, *session)
	if err != nil {
		return domain.CashSessionResponse{}, err
	}

	expected := expectedBalance(*session, summary.Movements, summary.CashSales)
	closing := money.RoundCents(req.ClosingBalance)
	difference := closing.Sub(expected)
	closedAt := s.clock.Now().UTC()

	session.ClosingBalance = &closing
	session.ExpectedBalance = &expected
	session.Difference = &difference
	session.Notes = strings.TrimSpace(req.Notes)
	session.ClosedAt = &closedAt

	closed, err := s.repo.CloseCashSession(ctx, *session)
	if err != nil {
		return domain.CashSessionResponse{}, err
	}

	event := s.log.Info()
	if !difference.IsZero() {
		event = s.log.Warn()
	}
	event.Str("session_id", closed.ID).
		Str("expected", expected.StringFixed(2)).
		Str("closing", closing.StringFixed(2)).
		Str("difference", difference.StringFixed(2)).
		Msg("cash session closed")

	s.logAudit(ctx, "cash_close", "cash_session", closed.ID,
		fmt.Sprintf("expected=%s,closing=%s,difference=%s", expected.StringFixed(2), closing.StringFixed(2), difference.StringFixed(2)))

	summary.Session = *closed
	return summary, nil
}

func (s *Service) cashSessionResponse(ctx context.Context, session domain.CashSession) (domain.CashSessionResponse, error) {
	movements, err := s.repo.ListCashMovements(ctx, session.ID)
	if err != nil {
		return domain.CashSessionResponse{}, err
	}
	sales, err := s.repo.ListSales(ctx, domain.SaleFilter{PaymentMethod: domain.PaymentCash, From: session.OpenedAt})
	if err != nil {
		return domain.CashSessionResponse{}, err
	}

	cashSales := decimal.Zero
	for _, sale := range sales {
		cashSales = cashSales.Add(sale.Total)
	}
	return domain.CashSessionResponse{Session: session, Movements: movements, CashSales: money.RoundCents(cashSales)}, nil
}

func expectedBalance(session domain.CashSession, movements []domain.CashMovement, cashSales decimal.Decimal) decimal.Decimal {
	expected := session.OpeningBalance.Add(cashSales)
	for _, m := range movements {
		switch m.Type {
		case domain.CashSupply:
			expected = expected.Add(m.Amount)
		case domain.CashWithdrawal:
			expected = expected.Sub(m.Amount)
		}
	}
	return money.RoundCents(expected)
}

func actorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok && actor.Username != "" {
		return actor.Username
	}
	return "system"
}
