package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kombatmoto/backend/internal/domain"
	"kombatmoto/backend/internal/money"
	"kombatmoto/backend/internal/store"
)

const (
	walkInCustomerName       = "Consumidor Final"
	serviceOrderCustomerName = "Cliente O.S."
)

var laborCommissionRate = decimal.RequireFromString("0.5")

func (s *Service) CreateCounterSale(ctx context.Context, req domain.CounterSaleRequest) (domain.Sale, error) {
	if !req.PaymentMethod.Valid() {
		return domain.Sale{}, domain.NewValidationError("payment_method", "forma de pagamento inválida")
	}
	if len(req.Items) == 0 {
		return domain.Sale{}, domain.NewValidationError("items", "venda sem itens")
	}

	items, itemsTotal, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return domain.Sale{}, err
	}
	name, err := s.resolveCustomerName(ctx, req.CustomerID, req.CustomerName, walkInCustomerName)
	if err != nil {
		return domain.Sale{}, err
	}

	sale := domain.Sale{
		CustomerID:    req.CustomerID,
		CustomerName:  name,
		Items:         items,
		LaborValue:    decimal.Zero,
		Commission:    decimal.Zero,
		Total:         itemsTotal,
		PaymentMethod: req.PaymentMethod,
		Type:          domain.SaleCounter,
		CreatedAt:     s.clock.Now().UTC(),
	}
	return s.recordSale(ctx, sale, req.DueDate)
}

func (s *Service) CreateServiceOrder(ctx context.Context, req domain.ServiceOrderRequest) (domain.Sale, error) {
	if !req.PaymentMethod.Valid() {
		return domain.Sale{}, domain.NewValidationError("payment_method", "forma de pagamento inválida")
	}
	if req.LaborValue.IsNegative() {
		return domain.Sale{}, domain.NewValidationError("labor_value", "mão de obra não pode ser negativa")
	}
	if req.CurrentKm < 0 {
		return domain.Sale{}, domain.NewValidationError("current_km", "quilometragem inválida")
	}

	items, itemsTotal, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return domain.Sale{}, err
	}
	services, payouts, err := s.resolveServices(ctx, req.Services)
	if err != nil {
		return domain.Sale{}, err
	}
	name, err := s.resolveCustomerName(ctx, req.CustomerID, req.CustomerName, serviceOrderCustomerName)
	if err != nil {
		return domain.Sale{}, err
	}

	labor := money.RoundCents(req.LaborValue)
	total := itemsTotal.Add(labor)
	if len(items) == 0 && len(services) == 0 && !labor.IsPositive() {
		return domain.Sale{}, domain.NewValidationError("items", "ordem de serviço vazia")
	}

	sale := domain.Sale{
		CustomerID:         req.CustomerID,
		CustomerName:       name,
		Items:              items,
		Services:           services,
		LaborValue:         labor,
		Commission:         decimal.Zero,
		Total:              total,
		PaymentMethod:      req.PaymentMethod,
		Type:               domain.SaleWorkshop,
		Status:             domain.ServiceOpen,
		ServiceDescription: strings.TrimSpace(req.ServiceDescription),
		CreatedAt:          s.clock.Now().UTC(),
	}

	if req.MechanicID != nil {
		mechanic, err := s.repo.GetMechanic(ctx, *req.MechanicID)
		if err != nil {
			return domain.Sale{}, fmt.Errorf("mechanic %d: %w", *req.MechanicID, err)
		}
		sale.MechanicID = &mechanic.ID
		sale.MechanicName = mechanic.Name
		sale.Commission = money.RoundCents(payouts.Add(labor.Mul(laborCommissionRate)))
	}

	var moto *domain.Motorcycle
	if req.MotorcycleID != nil {
		moto, err = s.repo.GetMotorcycle(ctx, *req.MotorcycleID)
		if err != nil {
			return domain.Sale{}, fmt.Errorf("motorcycle %d: %w", *req.MotorcycleID, err)
		}
		km := moto.CurrentKm
		if req.CurrentKm > 0 {
			km = req.CurrentKm
		}
		sale.MotorcycleID = &moto.ID
		sale.MotoDetails = fmt.Sprintf("%s (%s) - KM: %d", moto.Model, moto.Plate, km)
	}

	created, err := s.recordSale(ctx, sale, req.DueDate)
	if err != nil {
		return domain.Sale{}, err
	}

	if moto != nil && req.CurrentKm > moto.CurrentKm {
		if _, err := s.repo.UpdateMotorcycleKm(ctx, moto.ID, req.CurrentKm); err != nil {
			s.log.Warn().Err(err).
				Int64("motorcycle_id", moto.ID).
				Int("current_km", req.CurrentKm).
				Msg("failed to update motorcycle km")
		}
	}
	return created, nil
}

// recordSale writes a priced sale. Credit sales open a receivable through the
// ledger; anything else is paid on the spot.
func (s *Service) recordSale(ctx context.Context, sale domain.Sale, rawDueDate string) (domain.Sale, error) {
	var created *domain.Sale
	var err error
	if sale.IsCredit() {
		if strings.TrimSpace(rawDueDate) != "" {
			due, err := s.ParseDate("due_date", rawDueDate)
			if err != nil {
				return domain.Sale{}, err
			}
			sale.DueDate = &due
		}
		created, err = s.ledger.Open(ctx, sale)
	} else {
		paidAt := sale.CreatedAt
		sale.PaymentStatus = domain.PaymentPaid
		sale.PaidDate = &paidAt
		created, err = s.repo.CreateSale(ctx, sale)
	}
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateDashboard(ctx)
	s.logAudit(ctx, "sale_create", "sale", created.ID,
		fmt.Sprintf("type=%s,method=%s,total=%s", created.Type, created.PaymentMethod, created.Total.StringFixed(2)))
	return *created, nil
}

func (s *Service) priceItems(ctx context.Context, reqs []domain.SaleItemRequest) ([]domain.SaleItem, decimal.Decimal, error) {
	ids := make([]int64, 0, len(reqs))
	for _, item := range reqs {
		if item.ProductID == nil {
			return nil, decimal.Zero, domain.NewValidationError("product_id", "item sem produto")
		}
		if item.Quantity < 1 {
			return nil, decimal.Zero, domain.NewValidationError("quantity", "quantidade deve ser maior que zero")
		}
		ids = append(ids, *item.ProductID)
	}
	if len(ids) == 0 {
		return nil, decimal.Zero, nil
	}

	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, err
	}

	items := make([]domain.SaleItem, 0, len(reqs))
	total := decimal.Zero
	for _, req := range reqs {
		product, ok := products[*req.ProductID]
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("product %d: %w", *req.ProductID, store.ErrNotFound)
		}
		item := domain.SaleItem{
			ProductID:   req.ProductID,
			Description: product.Description,
			Quantity:    req.Quantity,
			Price:       product.SalePrice,
		}
		total = total.Add(item.Subtotal())
		items = append(items, item)
	}
	return items, money.RoundCents(total), nil
}

func (s *Service) resolveServices(ctx context.Context, reqs []domain.SaleServiceRequest) ([]domain.SaleService, decimal.Decimal, error) {
	if len(reqs) == 0 {
		return nil, decimal.Zero, nil
	}
	ids := make([]int64, 0, len(reqs))
	for _, svc := range reqs {
		if svc.Quantity < 1 {
			return nil, decimal.Zero, domain.NewValidationError("quantity", "quantidade deve ser maior que zero")
		}
		ids = append(ids, svc.FixedServiceID)
	}
	catalog, err := s.repo.GetFixedServicesByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, err
	}

	services := make([]domain.SaleService, 0, len(reqs))
	payouts := decimal.Zero
	for _, req := range reqs {
		fixed, ok := catalog[req.FixedServiceID]
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("fixed service %d: %w", req.FixedServiceID, store.ErrNotFound)
		}
		services = append(services, domain.SaleService{
			FixedServiceID: fixed.ID,
			Name:           fixed.Name,
			Quantity:       req.Quantity,
			Payout:         fixed.Payout,
		})
		payouts = payouts.Add(fixed.Payout.Mul(decimal.NewFromInt(int64(req.Quantity))))
	}
	return services, payouts, nil
}

func (s *Service) resolveCustomerName(ctx context.Context, customerID *int64, name string, fallback string) (string, error) {
	name = strings.TrimSpace(name)
	if customerID == nil {
		if name == "" {
			return fallback, nil
		}
		return name, nil
	}
	customer, err := s.repo.GetCustomer(ctx, *customerID)
	if err != nil {
		return "", fmt.Errorf("customer %d: %w", *customerID, err)
	}
	return customer.Name, nil
}

// UpdateServiceOrderStatus moves a workshop order forward. Steps may be
// skipped; going back is rejected.
func (s *Service) UpdateServiceOrderStatus(ctx context.Context, id string, status domain.ServiceStatus) (domain.Sale, error) {
	if status.Rank() == 0 {
		return domain.Sale{}, domain.NewValidationError("status", "status inválido")
	}
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	if sale.Type != domain.SaleWorkshop {
		return domain.Sale{}, domain.NewValidationError("status", "venda de balcão não tem status de serviço")
	}
	if status.Rank() < sale.Status.Rank() {
		return domain.Sale{}, domain.NewValidationError("status", fmt.Sprintf("não é possível voltar de %s para %s", sale.Status, status))
	}
	if status == sale.Status {
		return *sale, nil
	}

	updated, err := s.repo.UpdateSaleStatus(ctx, id, status)
	if err != nil {
		return domain.Sale{}, err
	}
	s.invalidateDashboard(ctx)
	s.logAudit(ctx, "service_order_status", "sale", id, fmt.Sprintf("from=%s,to=%s", sale.Status, status))
	return *updated, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 200
	}
	return s.repo.ListSales(ctx, filter)
}

// DeleteSale removes a sale with its receivable and returns the items to
// stock. The manager PIN is checked by the caller.
func (s *Service) DeleteSale(ctx context.Context, id string, reason string) (domain.Sale, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Sale{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Sale{}, domain.NewValidationError("reason", "motivo obrigatório")
	}

	deleted, err := s.repo.DeleteSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	s.invalidateDashboard(ctx)
	s.logAudit(ctx, "sale_delete", "sale", id,
		fmt.Sprintf("total=%s,method=%s,reason=%s", deleted.Total.StringFixed(2), deleted.PaymentMethod, reason))
	return *deleted, nil
}

func (s *Service) ListReceivables(ctx context.Context, customerID *int64, status domain.PaymentStatus) ([]domain.ReceivableView, error) {
	switch status {
	case "", domain.PaymentPending, domain.PaymentPaid:
	default:
		return nil, domain.NewValidationError("status", "status inválido")
	}
	views, err := s.ledger.List(ctx, domain.ReceivableFilter{CustomerID: customerID, Status: status})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(views, func(a, b domain.ReceivableView) int {
		return a.DueDate.Compare(b.DueDate)
	})
	return views, nil
}

func (s *Service) GetReceivable(ctx context.Context, saleID string) (domain.ReceivableView, error) {
	view, err := s.ledger.Get(ctx, saleID)
	if err != nil {
		return domain.ReceivableView{}, err
	}
	return *view, nil
}

func (s *Service) SettleReceivable(ctx context.Context, saleID string) (domain.ReceivableView, error) {
	view, err := s.ledger.Settle(ctx, saleID)
	if err != nil {
		return domain.ReceivableView{}, err
	}
	s.invalidateDashboard(ctx)
	s.logAudit(ctx, "receivable_settle", "sale", saleID,
		fmt.Sprintf("amount=%s,paid_date=%s", view.OriginalAmount.StringFixed(2), view.PaidDate.Format(time.DateOnly)))
	return *view, nil
}

func (s *Service) RescheduleReceivable(ctx context.Context, saleID string, rawDueDate string) (domain.ReceivableView, error) {
	due, err := s.ParseDate("due_date", rawDueDate)
	if err != nil {
		return domain.ReceivableView{}, err
	}
	view, err := s.ledger.Reschedule(ctx, saleID, due)
	if err != nil {
		return domain.ReceivableView{}, err
	}
	s.invalidateDashboard(ctx)
	s.logAudit(ctx, "receivable_reschedule", "sale", saleID, fmt.Sprintf("due_date=%s", due.Format(time.DateOnly)))
	return *view, nil
}

func (s *Service) Reminders(ctx context.Context) ([]domain.Reminder, error) {
	return s.ledger.Reminders(ctx)
}

// PromissoryNote drafts the promissory note of a pending credit sale.
func (s *Service) PromissoryNote(ctx context.Context, saleID string) (domain.PromissoryNote, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return domain.PromissoryNote{}, err
	}
	rec, ok := sale.Receivable()
	if !ok {
		return domain.PromissoryNote{}, domain.NewValidationError("sale_id", "venda não é fiado")
	}
	customer, err := s.repo.GetCustomer(ctx, rec.CustomerID)
	if err != nil {
		return domain.PromissoryNote{}, err
	}

	address := strings.TrimSpace(customer.Address)
	for _, part := range []string{customer.Neighborhood, customer.City} {
		if strings.TrimSpace(part) != "" {
			address += " - " + strings.TrimSpace(part)
		}
	}
	return domain.PromissoryNote{
		Number:        rec.SaleID,
		Payee:         s.notifier.ShopName,
		Debtor:        customer.Name,
		DebtorCPF:     customer.CPF,
		DebtorAddress: strings.TrimPrefix(address, " - "),
		Amount:        money.RoundCents(rec.OriginalAmount),
		AmountInWords: money.SpellOut(rec.OriginalAmount),
		DueDate:       rec.DueDate,
		IssueDate:     rec.SaleDate,
	}, nil
}

// IsAdminRequired reports whether err is a role rejection.
func IsAdminRequired(err error) bool {
	return errors.Is(err, ErrAdminRequired)
}
