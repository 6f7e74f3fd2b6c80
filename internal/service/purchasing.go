package service

import (
	"context"
	"fmt"
	"strings"

	"kombatmoto/backend/internal/domain"
	"kombatmoto/backend/internal/notify"
	"kombatmoto/backend/internal/xid"
)

func (s *Service) CreateDistributor(ctx context.Context, req domain.DistributorCreateRequest) (domain.Distributor, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Distributor{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" || notify.Digits(req.Phone) == "" {
		return domain.Distributor{}, domain.NewValidationError("phone", "nome e telefone são obrigatórios")
	}

	saved, err := s.repo.CreateDistributor(ctx, domain.Distributor{
		ID:        xid.New("dist"),
		Name:      req.Name,
		Phone:     req.Phone,
		Contact:   strings.TrimSpace(req.Contact),
		CreatedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return domain.Distributor{}, err
	}
	s.logAudit(ctx, "distributor_create", "distributor", saved.ID, saved.Name)
	return *saved, nil
}

func (s *Service) ListDistributors(ctx context.Context) ([]domain.Distributor, error) {
	return s.repo.ListDistributors(ctx)
}

func (s *Service) CreatePurchaseOrder(ctx context.Context, req domain.PurchaseOrderCreateRequest) (domain.PurchaseOrder, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.PurchaseOrder{}, err
	}
	if strings.TrimSpace(req.DistributorID) == "" || len(req.Items) == 0 {
		return domain.PurchaseOrder{}, domain.NewValidationError("items", "distribuidor e itens são obrigatórios")
	}
	if _, err := s.repo.GetDistributor(ctx, req.DistributorID); err != nil {
		return domain.PurchaseOrder{}, fmt.Errorf("distributor %s: %w", req.DistributorID, err)
	}

	items := make([]domain.PurchaseOrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return domain.PurchaseOrder{}, domain.NewValidationError("quantity", "quantidade deve ser maior que zero")
		}
		item.Description = strings.TrimSpace(item.Description)
		if item.ProductID != nil {
			product, err := s.repo.GetProduct(ctx, *item.ProductID)
			if err != nil {
				return domain.PurchaseOrder{}, fmt.Errorf("product %d: %w", *item.ProductID, err)
			}
			if item.Description == "" {
				item.Description = product.Description
			}
		}
		if item.Description == "" {
			return domain.PurchaseOrder{}, domain.NewValidationError("description", "item sem descrição")
		}
		items = append(items, item)
	}

	saved, err := s.repo.CreatePurchaseOrder(ctx, domain.PurchaseOrder{
		ID:            xid.New("po"),
		DistributorID: req.DistributorID,
		Status:        domain.PurchaseOrderPending,
		Items:         items,
		CreatedAt:     s.clock.Now().UTC(),
	})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	s.logAudit(ctx, "purchase_order_create", "purchase_order", saved.ID, fmt.Sprintf("items=%d", len(saved.Items)))
	return *saved, nil
}

func (s *Service) ListPurchaseOrders(ctx context.Context, status string) ([]domain.PurchaseOrder, error) {
	st := domain.PurchaseOrderStatus(strings.ToLower(strings.TrimSpace(status)))
	switch st {
	case "", domain.PurchaseOrderPending, domain.PurchaseOrderSent, domain.PurchaseOrderReceived:
	default:
		return nil, domain.NewValidationError("status", "status inválido")
	}
	return s.repo.ListPurchaseOrders(ctx, st, 200)
}

// SendPurchaseOrder marks the order sent and returns the WhatsApp text for
// the distributor.
func (s *Service) SendPurchaseOrder(ctx context.Context, id string) (domain.PurchaseOrderSendResponse, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.PurchaseOrderSendResponse{}, err
	}
	now := s.clock.Now()
	po, err := s.repo.MarkPurchaseOrderSent(ctx, id, now.UTC())
	if err != nil {
		return domain.PurchaseOrderSendResponse{}, err
	}
	distributor, err := s.repo.GetDistributor(ctx, po.DistributorID)
	if err != nil {
		return domain.PurchaseOrderSendResponse{}, err
	}

	msg := s.notifier.PurchaseOrderMessage(*po, now)
	s.logAudit(ctx, "purchase_order_send", "purchase_order", po.ID, fmt.Sprintf("distributor=%s", distributor.Name))
	return domain.PurchaseOrderSendResponse{
		PurchaseOrder: *po,
		Message:       msg,
		Link:          notify.WhatsAppLink(distributor.Phone, msg),
	}, nil
}

func (s *Service) ReceivePurchaseOrder(ctx context.Context, id string) (domain.PurchaseOrder, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.PurchaseOrder{}, err
	}
	received, err := s.repo.ReceivePurchaseOrder(ctx, id, actorName(ctx), s.clock.Now().UTC())
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	s.invalidateDashboard(ctx)
	s.logAudit(ctx, "purchase_order_receive", "purchase_order", received.ID, fmt.Sprintf("received_by=%s", received.ReceivedBy))
	return *received, nil
}
