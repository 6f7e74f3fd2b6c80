package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"kombatmoto/backend/internal/credit"
	"kombatmoto/backend/internal/domain"
	"kombatmoto/backend/internal/logger"
	"kombatmoto/backend/internal/store"
	"kombatmoto/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	seq             map[string]int64
	customers       map[int64]domain.Customer
	motorcycles     map[int64]domain.Motorcycle
	products        map[int64]domain.Product
	mechanics       map[int64]domain.Mechanic
	fixedServices   map[int64]domain.FixedService
	sales           map[string]*domain.Sale
	cashSessions    map[string]domain.CashSession
	activeSessionID string
	cashMovements   map[string][]domain.CashMovement
	distributors    map[string]domain.Distributor
	purchaseOrders  map[string]domain.PurchaseOrder
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
	log             zerolog.Logger
}

func New() *Store {
	return &Store{
		seq:             make(map[string]int64),
		customers:       make(map[int64]domain.Customer),
		motorcycles:     make(map[int64]domain.Motorcycle),
		products:        make(map[int64]domain.Product),
		mechanics:       make(map[int64]domain.Mechanic),
		fixedServices:   make(map[int64]domain.FixedService),
		sales:           make(map[string]*domain.Sale),
		cashSessions:    make(map[string]domain.CashSession),
		cashMovements:   make(map[string][]domain.CashMovement),
		distributors:    make(map[string]domain.Distributor),
		purchaseOrders:  make(map[string]domain.PurchaseOrder),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
		log:             logger.WithComponent("memory-store"),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_OPERATOR_PASSWORD;
// hardcoded dev defaults are used when they are unset. The server never uses
// these accounts when DATABASE_URL is set.
func (s *Store) seedUsers() {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	operatorPwd := envOr("SEED_OPERATOR_PASSWORD", "operator123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_OPERATOR_PASSWORD") == "" {
		s.log.Warn().Msg("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_OPERATOR_PASSWORD to override")
	}

	now := time.Now().UTC()
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"balcao", operatorPwd, domain.RoleOperator},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			s.log.Fatal().Err(err).Str("username", u.username).Msg("failed to hash seed password")
		}
		s.usersByUsername[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with a small demo catalog, customers, mechanics
// and the dev user accounts.
func NewSeeded() *Store {
	s := New()
	s.seedUsers()

	now := time.Now().UTC()
	products := []domain.Product{
		{Description: "Óleo Motor 10W30 1L", SKU: "OLEO-10W30", Category: "lubrificantes", Unit: "UN", PurchasePrice: dec("22.00"), SalePrice: dec("35.00"), Stock: 40, MinStock: 10},
		{Description: "Kit Relação CG 160", SKU: "REL-CG160", Category: "transmissao", Unit: "KIT", PurchasePrice: dec("110.00"), SalePrice: dec("189.90"), Stock: 8, MinStock: 2},
		{Description: "Pastilha de Freio Dianteira", SKU: "PAST-DIANT", Category: "freios", Unit: "PAR", PurchasePrice: dec("18.50"), SalePrice: dec("39.90"), Stock: 25, MinStock: 5},
		{Description: "Câmara de Ar Aro 18", SKU: "CAM-18", Category: "pneus", Unit: "UN", PurchasePrice: dec("16.00"), SalePrice: dec("29.90"), Stock: 15, MinStock: 4},
		{Description: "Vela de Ignição", SKU: "VELA-CPR8", Category: "eletrica", Unit: "UN", PurchasePrice: dec("9.00"), SalePrice: dec("19.90"), Stock: 30, MinStock: 6},
		{Description: "Filtro de Ar Titan 150", SKU: "FILT-TIT150", Category: "filtros", Unit: "UN", PurchasePrice: dec("14.00"), SalePrice: dec("27.50"), Stock: 12, MinStock: 3},
	}
	for _, p := range products {
		p.ID = s.nextID("product")
		p.CreatedAt = now
		s.products[p.ID] = p
	}

	customers := []domain.Customer{
		{Name: "João da Silva", CPF: "123.456.789-00", WhatsApp: "(11) 98888-7777", Address: "Rua das Flores, 100", Neighborhood: "Centro", City: "São Paulo", CreditLimit: dec("500.00")},
		{Name: "Maria Oliveira", CPF: "987.654.321-00", WhatsApp: "(11) 97777-6666", Address: "Av. Brasil, 2000", Neighborhood: "Jardim", City: "São Paulo", CreditLimit: dec("1000.00")},
	}
	for _, c := range customers {
		c.ID = s.nextID("customer")
		c.FineRate = dec("2")
		c.InterestRate = dec("1")
		c.CreatedAt = now
		s.customers[c.ID] = c
	}

	s.motorcycles[s.nextID("motorcycle")] = domain.Motorcycle{ID: 1, CustomerID: 1, Model: "Honda CG 160", Plate: "ABC1D23", Year: 2021, CurrentKm: 8700, CreatedAt: now}
	s.motorcycles[s.nextID("motorcycle")] = domain.Motorcycle{ID: 2, CustomerID: 2, Model: "Yamaha Fazer 250", Plate: "XYZ9K87", Year: 2019, CurrentKm: 12100, CreatedAt: now}

	s.mechanics[s.nextID("mechanic")] = domain.Mechanic{ID: 1, Name: "Carlos", Phone: "(11) 96666-5555", CreatedAt: now}

	services := []domain.FixedService{
		{Name: "Troca de óleo", Price: dec("20.00"), Payout: dec("10.00")},
		{Name: "Troca de relação", Price: dec("60.00"), Payout: dec("30.00")},
		{Name: "Regulagem de freio", Price: dec("25.00"), Payout: dec("12.00")},
	}
	for _, fs := range services {
		fs.ID = s.nextID("fixed_service")
		fs.CreatedAt = now
		s.fixedServices[fs.ID] = fs
	}

	return s
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func (s *Store) nextID(kind string) int64 {
	s.seq[kind]++
	return s.seq[kind]
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer.ID = s.nextID("customer")
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return customers, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.customers[customer.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	customer.CreatedAt = existing.CreatedAt
	s.customers[customer.ID] = customer
	updated := customer
	return &updated, nil
}

func (s *Store) CreateMotorcycle(_ context.Context, moto domain.Motorcycle) (*domain.Motorcycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[moto.CustomerID]; !exists {
		return nil, fmt.Errorf("customer %d: %w", moto.CustomerID, store.ErrNotFound)
	}
	for _, m := range s.motorcycles {
		if strings.EqualFold(m.Plate, moto.Plate) {
			return nil, store.ErrConflict
		}
	}
	moto.ID = s.nextID("motorcycle")
	if moto.CreatedAt.IsZero() {
		moto.CreatedAt = time.Now().UTC()
	}
	s.motorcycles[moto.ID] = moto
	created := moto
	return &created, nil
}

func (s *Store) GetMotorcycle(_ context.Context, id int64) (*domain.Motorcycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	moto, exists := s.motorcycles[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &moto, nil
}

func (s *Store) ListMotorcycles(_ context.Context, customerID *int64) ([]domain.Motorcycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	motos := make([]domain.Motorcycle, 0, len(s.motorcycles))
	for _, m := range s.motorcycles {
		if customerID != nil && m.CustomerID != *customerID {
			continue
		}
		motos = append(motos, m)
	}
	slices.SortFunc(motos, func(a, b domain.Motorcycle) int {
		return cmpInt64(a.ID, b.ID)
	})
	return motos, nil
}

func (s *Store) UpdateMotorcycleKm(_ context.Context, id int64, km int) (*domain.Motorcycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	moto, exists := s.motorcycles[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	moto.CurrentKm = km
	s.motorcycles[id] = moto
	return &moto, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.SKU != "" {
		for _, p := range s.products {
			if strings.EqualFold(p.SKU, product.SKU) {
				return nil, store.ErrConflict
			}
		}
	}
	product.ID = s.nextID("product")
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []int64) (map[int64]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[int64]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) ListProducts(_ context.Context, category string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Description, b.Description)
		}
		return cmpString(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.Stock = existing.Stock
	product.CreatedAt = existing.CreatedAt
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) IncreaseStock(_ context.Context, adjustments []domain.StockAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, adj := range adjustments {
		if _, exists := s.products[adj.ProductID]; !exists {
			return fmt.Errorf("product %d: %w", adj.ProductID, store.ErrNotFound)
		}
	}
	s.applyStockLocked(adjustments)
	return nil
}

func (s *Store) applyStockLocked(adjustments []domain.StockAdjustment) {
	for _, adj := range adjustments {
		p := s.products[adj.ProductID]
		p.Stock += adj.Qty
		s.products[adj.ProductID] = p
	}
}

func (s *Store) CreateMechanic(_ context.Context, mechanic domain.Mechanic) (*domain.Mechanic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mechanic.ID = s.nextID("mechanic")
	if mechanic.CreatedAt.IsZero() {
		mechanic.CreatedAt = time.Now().UTC()
	}
	s.mechanics[mechanic.ID] = mechanic
	created := mechanic
	return &created, nil
}

func (s *Store) GetMechanic(_ context.Context, id int64) (*domain.Mechanic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mechanic, exists := s.mechanics[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &mechanic, nil
}

func (s *Store) ListMechanics(_ context.Context) ([]domain.Mechanic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mechanics := make([]domain.Mechanic, 0, len(s.mechanics))
	for _, m := range s.mechanics {
		mechanics = append(mechanics, m)
	}
	slices.SortFunc(mechanics, func(a, b domain.Mechanic) int {
		return cmpString(a.Name, b.Name)
	})
	return mechanics, nil
}

func (s *Store) CreateFixedService(_ context.Context, svc domain.FixedService) (*domain.FixedService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	svc.ID = s.nextID("fixed_service")
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = time.Now().UTC()
	}
	s.fixedServices[svc.ID] = svc
	created := svc
	return &created, nil
}

func (s *Store) GetFixedServicesByIDs(_ context.Context, ids []int64) (map[int64]domain.FixedService, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[int64]domain.FixedService, len(ids))
	for _, id := range ids {
		if fs, ok := s.fixedServices[id]; ok {
			result[id] = fs
		}
	}
	return result, nil
}

func (s *Store) ListFixedServices(_ context.Context) ([]domain.FixedService, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	services := make([]domain.FixedService, 0, len(s.fixedServices))
	for _, fs := range s.fixedServices {
		services = append(services, fs)
	}
	slices.SortFunc(services, func(a, b domain.FixedService) int {
		return cmpString(a.Name, b.Name)
	})
	return services, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" {
		sale.ID = xid.SaleCode()
		for s.sales[sale.ID] != nil {
			sale.ID = xid.SaleCode()
		}
	} else if s.sales[sale.ID] != nil {
		return nil, store.ErrConflict
	}

	needed := make(map[int64]int, len(sale.Items))
	for _, item := range sale.Items {
		if item.ProductID == nil {
			continue
		}
		if _, exists := s.products[*item.ProductID]; !exists {
			return nil, fmt.Errorf("product %d: %w", *item.ProductID, store.ErrNotFound)
		}
		needed[*item.ProductID] += item.Quantity
	}
	for id, qty := range needed {
		if s.products[id].Stock < qty {
			return nil, fmt.Errorf("%s: %w", s.products[id].Description, store.ErrInsufficientStock)
		}
	}

	if sale.IsCredit() {
		if sale.CustomerID == nil {
			return nil, domain.NewValidationError("customer_id", "venda fiado exige cliente cadastrado")
		}
		customer, exists := s.customers[*sale.CustomerID]
		if !exists {
			return nil, fmt.Errorf("customer %d: %w", *sale.CustomerID, store.ErrNotFound)
		}
		if err := credit.Authorize(&customer, s.pendingReceivablesLocked(customer.ID), sale.Total); err != nil {
			return nil, err
		}
	}

	adjustments := make([]domain.StockAdjustment, 0, len(needed))
	for id, qty := range needed {
		adjustments = append(adjustments, domain.StockAdjustment{ProductID: id, Qty: -qty})
	}
	s.applyStockLocked(adjustments)

	s.sales[sale.ID] = cloneSale(&sale)
	return cloneSale(&sale), nil
}

func (s *Store) pendingReceivablesLocked(customerID int64) []domain.Receivable {
	open := make([]domain.Receivable, 0, 4)
	for _, sale := range s.sales {
		rec, ok := sale.Receivable()
		if !ok || rec.CustomerID != customerID || rec.PaymentStatus != domain.PaymentPending {
			continue
		}
		open = append(open, rec)
	}
	return open
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.sales[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if !matchesSaleFilter(sale, filter) {
			continue
		}
		sales = append(sales, *cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return b.CreatedAt.Compare(a.CreatedAt)
		}
		return cmpString(a.ID, b.ID)
	})
	if filter.Limit > 0 && len(sales) > filter.Limit {
		sales = sales[:filter.Limit]
	}
	return sales, nil
}

func matchesSaleFilter(sale *domain.Sale, filter domain.SaleFilter) bool {
	if filter.CustomerID != nil && (sale.CustomerID == nil || *sale.CustomerID != *filter.CustomerID) {
		return false
	}
	if filter.Type != "" && sale.Type != filter.Type {
		return false
	}
	if filter.PaymentMethod != "" && sale.PaymentMethod != filter.PaymentMethod {
		return false
	}
	if filter.PaymentStatus != "" && sale.PaymentStatus != filter.PaymentStatus {
		return false
	}
	if !filter.From.IsZero() && sale.CreatedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && !sale.CreatedAt.Before(filter.To) {
		return false
	}
	return true
}

func (s *Store) UpdateSaleStatus(_ context.Context, id string, status domain.ServiceStatus) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.sales[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	sale.Status = status
	return cloneSale(sale), nil
}

func (s *Store) DeleteSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.sales[id]
	if !exists {
		return nil, store.ErrNotFound
	}

	restock := make([]domain.StockAdjustment, 0, len(sale.Items))
	for _, item := range sale.Items {
		if item.ProductID == nil {
			continue
		}
		if _, ok := s.products[*item.ProductID]; !ok {
			continue
		}
		restock = append(restock, domain.StockAdjustment{ProductID: *item.ProductID, Qty: item.Quantity})
	}
	s.applyStockLocked(restock)
	delete(s.sales, id)
	return cloneSale(sale), nil
}

func (s *Store) ListReceivables(_ context.Context, filter domain.ReceivableFilter) ([]domain.Receivable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	receivables := make([]domain.Receivable, 0, 16)
	for _, sale := range s.sales {
		rec, ok := sale.Receivable()
		if !ok {
			continue
		}
		if filter.CustomerID != nil && rec.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Status != "" && rec.PaymentStatus != filter.Status {
			continue
		}
		receivables = append(receivables, rec)
	}
	slices.SortFunc(receivables, func(a, b domain.Receivable) int {
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Compare(b.DueDate)
		}
		return cmpString(a.SaleID, b.SaleID)
	})
	return receivables, nil
}

func (s *Store) SettleReceivable(_ context.Context, saleID string, paidAt time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.sales[saleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if !sale.IsCredit() {
		return nil, domain.NewValidationError("sale_id", "venda não é fiado")
	}
	if sale.PaymentStatus == domain.PaymentPaid {
		return cloneSale(sale), nil
	}
	sale.PaymentStatus = domain.PaymentPaid
	paid := paidAt
	sale.PaidDate = &paid
	return cloneSale(sale), nil
}

func (s *Store) RescheduleReceivable(_ context.Context, saleID string, dueDate time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.sales[saleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if !sale.IsCredit() {
		return nil, domain.NewValidationError("sale_id", "venda não é fiado")
	}
	if sale.PaymentStatus == domain.PaymentPaid {
		return nil, store.ErrConflict
	}
	due := dueDate
	sale.DueDate = &due
	return cloneSale(sale), nil
}

func (s *Store) OpenCashSession(_ context.Context, session domain.CashSession) (*domain.CashSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeSessionID != "" {
		return nil, store.ErrConflict
	}
	session.Status = domain.CashSessionOpen
	s.cashSessions[session.ID] = session
	s.activeSessionID = session.ID
	created := session
	return &created, nil
}

func (s *Store) GetActiveCashSession(_ context.Context) (*domain.CashSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.activeSessionID == "" {
		return nil, store.ErrNotFound
	}
	session := s.cashSessions[s.activeSessionID]
	return &session, nil
}

func (s *Store) AddCashMovement(_ context.Context, movement domain.CashMovement) (*domain.CashMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.cashSessions[movement.SessionID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if session.Status != domain.CashSessionOpen {
		return nil, store.ErrConflict
	}
	s.cashMovements[movement.SessionID] = append(s.cashMovements[movement.SessionID], movement)
	created := movement
	return &created, nil
}

func (s *Store) ListCashMovements(_ context.Context, sessionID string) ([]domain.CashMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	movements := make([]domain.CashMovement, len(s.cashMovements[sessionID]))
	copy(movements, s.cashMovements[sessionID])
	return movements, nil
}

func (s *Store) CloseCashSession(_ context.Context, session domain.CashSession) (*domain.CashSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.cashSessions[session.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if existing.Status != domain.CashSessionOpen || s.activeSessionID != session.ID {
		return nil, store.ErrConflict
	}
	session.Status = domain.CashSessionClosed
	s.cashSessions[session.ID] = session
	s.activeSessionID = ""
	closed := session
	return &closed, nil
}

func (s *Store) CreateDistributor(_ context.Context, distributor domain.Distributor) (*domain.Distributor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.distributors[distributor.ID]; exists {
		return nil, store.ErrConflict
	}
	s.distributors[distributor.ID] = distributor
	created := distributor
	return &created, nil
}

func (s *Store) GetDistributor(_ context.Context, id string) (*domain.Distributor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	distributor, exists := s.distributors[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &distributor, nil
}

func (s *Store) ListDistributors(_ context.Context) ([]domain.Distributor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	distributors := make([]domain.Distributor, 0, len(s.distributors))
	for _, d := range s.distributors {
		distributors = append(distributors, d)
	}
	slices.SortFunc(distributors, func(a, b domain.Distributor) int {
		return cmpString(a.Name, b.Name)
	})
	return distributors, nil
}

func (s *Store) CreatePurchaseOrder(_ context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.distributors[po.DistributorID]; !exists {
		return nil, fmt.Errorf("distributor %s: %w", po.DistributorID, store.ErrNotFound)
	}
	if _, exists := s.purchaseOrders[po.ID]; exists {
		return nil, store.ErrConflict
	}
	s.purchaseOrders[po.ID] = clonePurchaseOrder(po)
	created := clonePurchaseOrder(po)
	return &created, nil
}

func (s *Store) GetPurchaseOrder(_ context.Context, id string) (*domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	po, exists := s.purchaseOrders[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := clonePurchaseOrder(po)
	return &found, nil
}

func (s *Store) ListPurchaseOrders(_ context.Context, status domain.PurchaseOrderStatus, limit int) ([]domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	pos := make([]domain.PurchaseOrder, 0, len(s.purchaseOrders))
	for _, po := range s.purchaseOrders {
		if status != "" && po.Status != status {
			continue
		}
		pos = append(pos, clonePurchaseOrder(po))
	}
	slices.SortFunc(pos, func(a, b domain.PurchaseOrder) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(pos) > limit {
		pos = pos[:limit]
	}
	return pos, nil
}

func (s *Store) MarkPurchaseOrderSent(_ context.Context, id string, sentAt time.Time) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	po, exists := s.purchaseOrders[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	switch po.Status {
	case domain.PurchaseOrderReceived:
		return nil, store.ErrConflict
	case domain.PurchaseOrderPending:
		at := sentAt
		po.Status = domain.PurchaseOrderSent
		po.SentAt = &at
		s.purchaseOrders[id] = po
	}
	sent := clonePurchaseOrder(po)
	return &sent, nil
}

func (s *Store) ReceivePurchaseOrder(_ context.Context, id string, receivedBy string, receivedAt time.Time) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	po, exists := s.purchaseOrders[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if po.Status == domain.PurchaseOrderReceived {
		return nil, store.ErrConflict
	}

	adjustments := make([]domain.StockAdjustment, 0, len(po.Items))
	for _, item := range po.Items {
		if item.ProductID == nil {
			continue
		}
		if _, ok := s.products[*item.ProductID]; !ok {
			continue
		}
		adjustments = append(adjustments, domain.StockAdjustment{ProductID: *item.ProductID, Qty: item.Quantity})
	}
	s.applyStockLocked(adjustments)

	at := receivedAt
	po.Status = domain.PurchaseOrderReceived
	po.ReceivedAt = &at
	po.ReceivedBy = receivedBy
	s.purchaseOrders[id] = po
	received := clonePurchaseOrder(po)
	return &received, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	logs := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(logs) < limit; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return domain.NewValidationError("username", "usuário e senha são obrigatórios")
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleOperator
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return domain.NewValidationError("password", "senha obrigatória")
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cmpInt64(a int64, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	dup.Items = make([]domain.SaleItem, len(src.Items))
	copy(dup.Items, src.Items)
	if src.Services != nil {
		dup.Services = make([]domain.SaleService, len(src.Services))
		copy(dup.Services, src.Services)
	}
	if src.DueDate != nil {
		due := *src.DueDate
		dup.DueDate = &due
	}
	if src.PaidDate != nil {
		paid := *src.PaidDate
		dup.PaidDate = &paid
	}
	return &dup
}

func clonePurchaseOrder(src domain.PurchaseOrder) domain.PurchaseOrder {
	dup := src
	items := make([]domain.PurchaseOrderItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return dup
}
