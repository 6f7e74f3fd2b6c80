package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"kombatmoto/backend/internal/cache"
	"kombatmoto/backend/internal/clock"
	"kombatmoto/backend/internal/domain"
	"kombatmoto/backend/internal/ledger"
	"kombatmoto/backend/internal/logger"
	"kombatmoto/backend/internal/money"
	"kombatmoto/backend/internal/notify"
	"kombatmoto/backend/internal/revision"
	"kombatmoto/backend/internal/store"
	"kombatmoto/backend/internal/xid"
)

var ErrAdminRequired = errors.New("admin role required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Clock               clock.Clock
	ShopName            string
	Cache               cache.DashboardCache
	CacheTTL            time.Duration
	DefaultDueDays      int
	// Nil rates fall back to 2% fine and 1% monthly interest. Zero is a valid
	// policy and is kept.
	DefaultFineRate     *decimal.Decimal
	DefaultInterestRate *decimal.Decimal
	RevisionIntervalKm  int
	RevisionWindowKm    int
}

type Service struct {
	repo                store.Repository
	ledger              *ledger.Ledger
	revisions           *revision.Engine
	notifier            notify.Builder
	cache               cache.DashboardCache
	cacheTTL            time.Duration
	clock               clock.Clock
	defaultFineRate     decimal.Decimal
	defaultInterestRate decimal.Decimal
	log                 zerolog.Logger
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopDashboardCache{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 20 * time.Second
	}
	if opts.RevisionIntervalKm <= 0 {
		opts.RevisionIntervalKm = revision.DefaultIntervalKm
		if opts.RevisionWindowKm <= 0 {
			opts.RevisionWindowKm = revision.DefaultWindowKm
		}
	}
	fineRate, interestRate := decimal.NewFromInt(2), decimal.NewFromInt(1)
	if opts.DefaultFineRate != nil {
		fineRate = *opts.DefaultFineRate
	}
	if opts.DefaultInterestRate != nil {
		interestRate = *opts.DefaultInterestRate
	}

	notifier := notify.NewBuilder(opts.ShopName)
	return &Service{
		repo:                repo,
		ledger:              ledger.New(repo, opts.Clock, notifier, opts.DefaultDueDays),
		revisions:           revision.NewEngine(opts.RevisionIntervalKm, opts.RevisionWindowKm, notifier),
		notifier:            notifier,
		cache:               opts.Cache,
		cacheTTL:            opts.CacheTTL,
		clock:               opts.Clock,
		defaultFineRate:     fineRate,
		defaultInterestRate: interestRate,
		log:                 logger.WithComponent("service"),
	}
}

func (s *Service) Ledger() *ledger.Ledger {
	return s.ledger
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.WhatsApp = strings.TrimSpace(req.WhatsApp)
	if req.Name == "" {
		return domain.Customer{}, domain.NewValidationError("name", "nome obrigatório")
	}
	if notify.Digits(req.WhatsApp) == "" {
		return domain.Customer{}, domain.NewValidationError("whatsapp", "WhatsApp obrigatório")
	}
	if req.CreditLimit.IsNegative() {
		return domain.Customer{}, domain.NewValidationError("credit_limit", "limite não pode ser negativo")
	}

	fineRate := s.defaultFineRate
	if req.FineRate != nil {
		fineRate = *req.FineRate
	}
	interestRate := s.defaultInterestRate
	if req.InterestRate != nil {
		interestRate = *req.InterestRate
	}
	if err := validateRates(fineRate, interestRate); err != nil {
		return domain.Customer{}, err
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:         req.Name,
		CPF:          strings.TrimSpace(req.CPF),
		WhatsApp:     req.WhatsApp,
		Address:      strings.TrimSpace(req.Address),
		Neighborhood: strings.TrimSpace(req.Neighborhood),
		City:         strings.TrimSpace(req.City),
		ZipCode:      strings.TrimSpace(req.ZipCode),
		CreditLimit:  money.RoundCents(req.CreditLimit),
		FineRate:     fineRate,
		InterestRate: interestRate,
		CreatedAt:    s.clock.Now().UTC(),
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", "customer", fmt.Sprint(created.ID),
		fmt.Sprintf("name=%s,limit=%s", created.Name, created.CreditLimit.StringFixed(2)))
	return *created, nil
}

// UpdateCustomerTerms changes the credit limit and late charge rates. New
// rates apply to every open receivable on its next read.
func (s *Service) UpdateCustomerTerms(ctx context.Context, id int64, req domain.CustomerTermsRequest) (domain.Customer, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Customer{}, err
	}

	existing, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	updated := *existing
	if req.CreditLimit != nil {
		if req.CreditLimit.IsNegative() {
			return domain.Customer{}, domain.NewValidationError("credit_limit", "limite não pode ser negativo")
		}
		updated.CreditLimit = money.RoundCents(*req.CreditLimit)
	}
	if req.FineRate != nil {
		updated.FineRate = *req.FineRate
	}
	if req.InterestRate != nil {
		updated.InterestRate = *req.InterestRate
	}
	if err := validateRates(updated.FineRate, updated.InterestRate); err != nil {
		return domain.Customer{}, err
	}

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}
	s.invalidateDashboard(ctx)
	s.logAudit(ctx, "customer_terms_update", "customer", fmt.Sprint(saved.ID),
		fmt.Sprintf("limit=%s,fine=%s,interest=%s", saved.CreditLimit.StringFixed(2), saved.FineRate, saved.InterestRate))
	return *saved, nil
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) CustomerStatement(ctx context.Context, id int64) (domain.CustomerStatement, error) {
	statement, err := s.ledger.Statement(ctx, id)
	if err != nil {
		return domain.CustomerStatement{}, err
	}
	return *statement, nil
}

func (s *Service) CreateMotorcycle(ctx context.Context, req domain.MotorcycleCreateRequest) (domain.Motorcycle, error) {
	req.Model = strings.TrimSpace(req.Model)
	req.Plate = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(req.Plate), "-", ""))
	if req.CustomerID < 1 {
		return domain.Motorcycle{}, domain.NewValidationError("customer_id", "cliente obrigatório")
	}
	if req.Model == "" || req.Plate == "" {
		return domain.Motorcycle{}, domain.NewValidationError("plate", "modelo e placa são obrigatórios")
	}
	if req.CurrentKm < 0 {
		return domain.Motorcycle{}, domain.NewValidationError("current_km", "quilometragem inválida")
	}

	created, err := s.repo.CreateMotorcycle(ctx, domain.Motorcycle{
		CustomerID: req.CustomerID,
		Model:      req.Model,
		Plate:      req.Plate,
		Year:       req.Year,
		CurrentKm:  req.CurrentKm,
		CreatedAt:  s.clock.Now().UTC(),
	})
	if err != nil {
		return domain.Motorcycle{}, err
	}
	s.logAudit(ctx, "motorcycle_create", "motorcycle", fmt.Sprint(created.ID), fmt.Sprintf("plate=%s", created.Plate))
	return *created, nil
}

func (s *Service) ListMotorcycles(ctx context.Context, customerID *int64) ([]domain.Motorcycle, error) {
	return s.repo.ListMotorcycles(ctx, customerID)
}

func (s *Service) UpdateMotorcycleKm(ctx context.Context, id int64, km int) (domain.Motorcycle, error) {
	if km < 0 {
		return domain.Motorcycle{}, domain.NewValidationError("current_km", "quilometragem inválida")
	}
	moto, err := s.repo.UpdateMotorcycleKm(ctx, id, km)
	if err != nil {
		return domain.Motorcycle{}, err
	}
	s.invalidateDashboard(ctx)
	return *moto, nil
}

// RevisionReminders lists motorcycles inside the revision window with the
// invitation text for their owners.
func (s *Service) RevisionReminders(ctx context.Context) ([]domain.RevisionDue, error) {
	motos, err := s.repo.ListMotorcycles(ctx, nil)
	if err != nil {
		return nil, err
	}
	customers, err := s.customerIndex(ctx)
	if err != nil {
		return nil, err
	}
	return s.revisions.Due(motos, customers), nil
}

func (s *Service) ListProducts(ctx context.Context, category string) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, strings.TrimSpace(category))
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Description = strings.TrimSpace(req.Description)
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	if req.Description == "" || req.Category == "" {
		return domain.Product{}, domain.NewValidationError("description", "descrição e categoria são obrigatórias")
	}
	if !req.SalePrice.IsPositive() || req.PurchasePrice.IsNegative() {
		return domain.Product{}, domain.NewValidationError("sale_price", "preço inválido")
	}
	if req.Stock < 0 || req.MinStock < 0 {
		return domain.Product{}, domain.NewValidationError("stock", "estoque inválido")
	}
	unit := strings.ToUpper(strings.TrimSpace(req.Unit))
	if unit == "" {
		unit = "UN"
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Description:   req.Description,
		SKU:           req.SKU,
		Barcode:       strings.TrimSpace(req.Barcode),
		Category:      req.Category,
		Unit:          unit,
		PurchasePrice: money.RoundCents(req.PurchasePrice),
		SalePrice:     money.RoundCents(req.SalePrice),
		Stock:         req.Stock,
		MinStock:      req.MinStock,
		CreatedAt:     s.clock.Now().UTC(),
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateDashboard(ctx)
	s.logAudit(ctx, "product_create", "product", fmt.Sprint(created.ID),
		fmt.Sprintf("description=%s,price=%s,stock=%d", created.Description, created.SalePrice.StringFixed(2), created.Stock))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if description == "" {
			return domain.Product{}, domain.NewValidationError("description", "descrição obrigatória")
		}
		updated.Description = description
	}
	if req.Category != nil {
		category := strings.ToLower(strings.TrimSpace(*req.Category))
		if category == "" {
			return domain.Product{}, domain.NewValidationError("category", "categoria obrigatória")
		}
		updated.Category = category
	}
	if req.Unit != nil && strings.TrimSpace(*req.Unit) != "" {
		updated.Unit = strings.ToUpper(strings.TrimSpace(*req.Unit))
	}
	if req.PurchasePrice != nil {
		if req.PurchasePrice.IsNegative() {
			return domain.Product{}, domain.NewValidationError("purchase_price", "preço inválido")
		}
		updated.PurchasePrice = money.RoundCents(*req.PurchasePrice)
	}
	if req.SalePrice != nil {
		if !req.SalePrice.IsPositive() {
			return domain.Product{}, domain.NewValidationError("sale_price", "preço inválido")
		}
		updated.SalePrice = money.RoundCents(*req.SalePrice)
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return domain.Product{}, domain.NewValidationError("min_stock", "estoque mínimo inválido")
		}
		updated.MinStock = *req.MinStock
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	if !existing.SalePrice.Equal(saved.SalePrice) {
		s.logAudit(ctx, "product_price_change", "product", fmt.Sprint(saved.ID),
			fmt.Sprintf("old=%s,new=%s", existing.SalePrice.StringFixed(2), saved.SalePrice.StringFixed(2)))
	}
	s.invalidateDashboard(ctx)
	s.logAudit(ctx, "product_update", "product", fmt.Sprint(saved.ID),
		fmt.Sprintf("price=%s,min_stock=%d", saved.SalePrice.StringFixed(2), saved.MinStock))
	return *saved, nil
}

// AddStock books a manual stock entry for one product.
func (s *Service) AddStock(ctx context.Context, id int64, qty int) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if qty < 1 {
		return domain.Product{}, domain.NewValidationError("quantity", "quantidade deve ser maior que zero")
	}
	if err := s.repo.IncreaseStock(ctx, []domain.StockAdjustment{{ProductID: id, Qty: qty}}); err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidateDashboard(ctx)
	s.logAudit(ctx, "stock_increase", "product", fmt.Sprint(id), fmt.Sprintf("qty=%d,stock=%d", qty, product.Stock))
	return *product, nil
}

// CatalogMessage builds the shareable listing of in-stock products of a
// category. A category with nothing in stock is reported as not found.
func (s *Service) CatalogMessage(ctx context.Context, category string) (domain.CatalogMessage, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return domain.CatalogMessage{}, domain.NewValidationError("category", "categoria obrigatória")
	}
	products, err := s.repo.ListProducts(ctx, category)
	if err != nil {
		return domain.CatalogMessage{}, err
	}
	inStock := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.Stock > 0 {
			inStock = append(inStock, p)
		}
	}
	if len(inStock) == 0 {
		return domain.CatalogMessage{}, fmt.Errorf("catalog %s: %w", category, store.ErrNotFound)
	}

	msg := s.notifier.CatalogMessage(category, inStock)
	return domain.CatalogMessage{
		Category: category,
		Products: len(inStock),
		Message:  msg,
		Link:     notify.WhatsAppLink("", msg),
	}, nil
}

func (s *Service) CreateMechanic(ctx context.Context, req domain.MechanicCreateRequest) (domain.Mechanic, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Mechanic{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Mechanic{}, domain.NewValidationError("name", "nome obrigatório")
	}
	created, err := s.repo.CreateMechanic(ctx, domain.Mechanic{
		Name:      req.Name,
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return domain.Mechanic{}, err
	}
	s.logAudit(ctx, "mechanic_create", "mechanic", fmt.Sprint(created.ID), created.Name)
	return *created, nil
}

func (s *Service) ListMechanics(ctx context.Context) ([]domain.Mechanic, error) {
	return s.repo.ListMechanics(ctx)
}

func (s *Service) CreateFixedService(ctx context.Context, req domain.FixedServiceCreateRequest) (domain.FixedService, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.FixedService{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.FixedService{}, domain.NewValidationError("name", "nome obrigatório")
	}
	if req.Price.IsNegative() || req.Payout.IsNegative() {
		return domain.FixedService{}, domain.NewValidationError("payout", "valores não podem ser negativos")
	}
	created, err := s.repo.CreateFixedService(ctx, domain.FixedService{
		Name:      req.Name,
		Price:     money.RoundCents(req.Price),
		Payout:    money.RoundCents(req.Payout),
		CreatedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return domain.FixedService{}, err
	}
	s.logAudit(ctx, "fixed_service_create", "fixed_service", fmt.Sprint(created.ID),
		fmt.Sprintf("name=%s,payout=%s", created.Name, created.Payout.StringFixed(2)))
	return *created, nil
}

func (s *Service) ListFixedServices(ctx context.Context) ([]domain.FixedService, error) {
	return s.repo.ListFixedServices(ctx)
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.clock.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := s.ParseDate("date", date)
		if err != nil {
			return nil, err
		}
		from = parsed
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.clock.Now().UTC(),
	}); err != nil {
		s.log.Warn().Err(err).
			Str("action", action).
			Str("entity", entityType+"/"+entityID).
			Msg("failed to write audit log")
	}
}

func (s *Service) customerIndex(ctx context.Context) (map[int64]domain.Customer, error) {
	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[int64]domain.Customer, len(customers))
	for _, c := range customers {
		index[c.ID] = c
	}
	return index, nil
}

// ParseDate reads YYYY-MM-DD as a civil date in the shop's location.
func (s *Service) ParseDate(field string, raw string) (time.Time, error) {
	parsed, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), s.clock.Now().Location())
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, "data inválida, use AAAA-MM-DD")
	}
	return parsed, nil
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrAdminRequired
	}
	return nil
}

func validateRates(fine decimal.Decimal, interest decimal.Decimal) error {
	if fine.IsNegative() {
		return domain.NewValidationError("fine_rate", "multa não pode ser negativa")
	}
	if interest.IsNegative() {
		return domain.NewValidationError("interest_rate", "juros não podem ser negativos")
	}
	return nil
}
