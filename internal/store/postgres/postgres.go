package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"kombatmoto/backend/internal/credit"
	"kombatmoto/backend/internal/domain"
	"kombatmoto/backend/internal/store"
	"kombatmoto/backend/internal/xid"
)

//go:embed schema.sql
var schema string

const dateLayout = "2006-01-02"

type Store struct {
	db *sql.DB
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, domain.Persistence("open", err)
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(16)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, domain.Persistence("ping", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return domain.Persistence("migrate", err)
	}
	return nil
}

const customerColumns = `id, name, COALESCE(cpf,''), whatsapp, COALESCE(address,''), COALESCE(neighborhood,''),
	COALESCE(city,''), COALESCE(zip_code,''), credit_limit, fine_rate, interest_rate, created_at`

func scanCustomer(row interface{ Scan(...any) error }) (domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.Name, &c.CPF, &c.WhatsApp, &c.Address, &c.Neighborhood,
		&c.City, &c.ZipCode, &c.CreditLimit, &c.FineRate, &c.InterestRate, &c.CreatedAt)
	c.CreatedAt = c.CreatedAt.UTC()
	return c, err
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (name, cpf, whatsapp, address, neighborhood, city, zip_code,
			credit_limit, fine_rate, interest_rate, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id
	`, customer.Name, nullIfEmpty(customer.CPF), customer.WhatsApp, nullIfEmpty(customer.Address),
		nullIfEmpty(customer.Neighborhood), nullIfEmpty(customer.City), nullIfEmpty(customer.ZipCode),
		customer.CreditLimit, customer.FineRate, customer.InterestRate, customer.CreatedAt).Scan(&customer.ID)
	if err != nil {
		return nil, fail("create customer", err)
	}
	return &customer, nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	customer, err := scanCustomer(s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil {
		return nil, fail("get customer", err)
	}
	return &customer, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY lower(name), id`)
	if err != nil {
		return nil, fail("list customers", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fail("list customers", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("list customers", err)
	}
	return customers, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	updated, err := scanCustomer(s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET name = $2, cpf = $3, whatsapp = $4, address = $5, neighborhood = $6, city = $7,
			zip_code = $8, credit_limit = $9, fine_rate = $10, interest_rate = $11
		WHERE id = $1
		RETURNING `+customerColumns,
		customer.ID, customer.Name, nullIfEmpty(customer.CPF), customer.WhatsApp, nullIfEmpty(customer.Address),
		nullIfEmpty(customer.Neighborhood), nullIfEmpty(customer.City), nullIfEmpty(customer.ZipCode),
		customer.CreditLimit, customer.FineRate, customer.InterestRate))
	if err != nil {
		return nil, fail("update customer", err)
	}
	return &updated, nil
}

const motorcycleColumns = `id, customer_id, model, plate, COALESCE(year,0), current_km, created_at`

func scanMotorcycle(row interface{ Scan(...any) error }) (domain.Motorcycle, error) {
	var m domain.Motorcycle
	err := row.Scan(&m.ID, &m.CustomerID, &m.Model, &m.Plate, &m.Year, &m.CurrentKm, &m.CreatedAt)
	m.CreatedAt = m.CreatedAt.UTC()
	return m, err
}

func (s *Store) CreateMotorcycle(ctx context.Context, moto domain.Motorcycle) (*domain.Motorcycle, error) {
	if moto.CreatedAt.IsZero() {
		moto.CreatedAt = time.Now().UTC()
	}
	var year any
	if moto.Year > 0 {
		year = moto.Year
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO motorcycles (customer_id, model, plate, year, current_km, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, moto.CustomerID, moto.Model, moto.Plate, year, moto.CurrentKm, moto.CreatedAt).Scan(&moto.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("customer %d: %w", moto.CustomerID, store.ErrNotFound)
		}
		return nil, fail("create motorcycle", err)
	}
	return &moto, nil
}

func (s *Store) GetMotorcycle(ctx context.Context, id int64) (*domain.Motorcycle, error) {
	moto, err := scanMotorcycle(s.db.QueryRowContext(ctx, `SELECT `+motorcycleColumns+` FROM motorcycles WHERE id = $1`, id))
	if err != nil {
		return nil, fail("get motorcycle", err)
	}
	return &moto, nil
}

func (s *Store) ListMotorcycles(ctx context.Context, customerID *int64) ([]domain.Motorcycle, error) {
	var filter any
	if customerID != nil {
		filter = *customerID
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+motorcycleColumns+`
		FROM motorcycles
		WHERE $1::bigint IS NULL OR customer_id = $1
		ORDER BY id
	`, filter)
	if err != nil {
		return nil, fail("list motorcycles", err)
	}
	defer rows.Close()

	motos := make([]domain.Motorcycle, 0, 32)
	for rows.Next() {
		m, err := scanMotorcycle(rows)
		if err != nil {
			return nil, fail("list motorcycles", err)
		}
		motos = append(motos, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("list motorcycles", err)
	}
	return motos, nil
}

func (s *Store) UpdateMotorcycleKm(ctx context.Context, id int64, km int) (*domain.Motorcycle, error) {
	moto, err := scanMotorcycle(s.db.QueryRowContext(ctx, `
		UPDATE motorcycles SET current_km = $2 WHERE id = $1
		RETURNING `+motorcycleColumns, id, km))
	if err != nil {
		return nil, fail("update motorcycle km", err)
	}
	return &moto, nil
}

const productColumns = `id, description, COALESCE(sku,''), COALESCE(barcode,''), category, unit,
	purchase_price, sale_price, stock, min_stock, created_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Description, &p.SKU, &p.Barcode, &p.Category, &p.Unit,
		&p.PurchasePrice, &p.SalePrice, &p.Stock, &p.MinStock, &p.CreatedAt)
	p.CreatedAt = p.CreatedAt.UTC()
	return p, err
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (description, sku, barcode, category, unit, purchase_price, sale_price,
			stock, min_stock, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id
	`, product.Description, nullIfEmpty(product.SKU), nullIfEmpty(product.Barcode), product.Category,
		product.Unit, product.PurchasePrice, product.SalePrice, product.Stock, product.MinStock,
		product.CreatedAt).Scan(&product.ID)
	if err != nil {
		return nil, fail("create product", err)
	}
	return &product, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, fail("get product", err)
	}
	return &product, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	result := make(map[int64]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fail("get products", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fail("get products", err)
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fail("get products", err)
	}
	return result, nil
}

func (s *Store) ListProducts(ctx context.Context, category string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE $1 = '' OR lower(category) = lower($1)
		ORDER BY category, description
	`, category)
	if err != nil {
		return nil, fail("list products", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fail("list products", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("list products", err)
	}
	return products, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	updated, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET description = $2, category = $3, unit = $4, purchase_price = $5, sale_price = $6, min_stock = $7
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.Description, product.Category, product.Unit, product.PurchasePrice,
		product.SalePrice, product.MinStock))
	if err != nil {
		return nil, fail("update product", err)
	}
	return &updated, nil
}

func (s *Store) IncreaseStock(ctx context.Context, adjustments []domain.StockAdjustment) error {
	if len(adjustments) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fail("increase stock", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := applyStock(ctx, tx, adjustments); err != nil {
		return fail("increase stock", err)
	}
	if err := tx.Commit(); err != nil {
		return fail("increase stock", err)
	}
	return nil
}

func applyStock(ctx context.Context, q querier, adjustments []domain.StockAdjustment) error {
	for _, adj := range adjustments {
		res, err := q.ExecContext(ctx, `UPDATE products SET stock = stock + $1 WHERE id = $2`, adj.Qty, adj.ProductID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("product %d: %w", adj.ProductID, store.ErrNotFound)
		}
	}
	return nil
}

func (s *Store) CreateMechanic(ctx context.Context, mechanic domain.Mechanic) (*domain.Mechanic, error) {
	if mechanic.CreatedAt.IsZero() {
		mechanic.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO mechanics (name, phone, created_at) VALUES ($1,$2,$3) RETURNING id
	`, mechanic.Name, nullIfEmpty(mechanic.Phone), mechanic.CreatedAt).Scan(&mechanic.ID)
	if err != nil {
		return nil, fail("create mechanic", err)
	}
	return &mechanic, nil
}

func (s *Store) GetMechanic(ctx context.Context, id int64) (*domain.Mechanic, error) {
	var m domain.Mechanic
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(phone,''), created_at FROM mechanics WHERE id = $1
	`, id).Scan(&m.ID, &m.Name, &m.Phone, &m.CreatedAt)
	if err != nil {
		return nil, fail("get mechanic", err)
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

func (s *Store) ListMechanics(ctx context.Context) ([]domain.Mechanic, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, COALESCE(phone,''), created_at FROM mechanics ORDER BY name`)
	if err != nil {
		return nil, fail("list mechanics", err)
	}
	defer rows.Close()

	mechanics := make([]domain.Mechanic, 0, 8)
	for rows.Next() {
		var m domain.Mechanic
		if err := rows.Scan(&m.ID, &m.Name, &m.Phone, &m.CreatedAt); err != nil {
			return nil, fail("list mechanics", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		mechanics = append(mechanics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("list mechanics", err)
	}
	return mechanics, nil
}

func (s *Store) CreateFixedService(ctx context.Context, svc domain.FixedService) (*domain.FixedService, error) {
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO fixed_services (name, price, payout, created_at) VALUES ($1,$2,$3,$4) RETURNING id
	`, svc.Name, svc.Price, svc.Payout, svc.CreatedAt).Scan(&svc.ID)
	if err != nil {
		return nil, fail("create fixed service", err)
	}
	return &svc, nil
}

func (s *Store) GetFixedServicesByIDs(ctx context.Context, ids []int64) (map[int64]domain.FixedService, error) {
	result := make(map[int64]domain.FixedService, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, payout, created_at FROM fixed_services WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fail("get fixed services", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fs domain.FixedService
		if err := rows.Scan(&fs.ID, &fs.Name, &fs.Price, &fs.Payout, &fs.CreatedAt); err != nil {
			return nil, fail("get fixed services", err)
		}
		result[fs.ID] = fs
	}
	if err := rows.Err(); err != nil {
		return nil, fail("get fixed services", err)
	}
	return result, nil
}

func (s *Store) ListFixedServices(ctx context.Context) ([]domain.FixedService, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, price, payout, created_at FROM fixed_services ORDER BY name`)
	if err != nil {
		return nil, fail("list fixed services", err)
	}
	defer rows.Close()

	services := make([]domain.FixedService, 0, 16)
	for rows.Next() {
		var fs domain.FixedService
		if err := rows.Scan(&fs.ID, &fs.Name, &fs.Price, &fs.Payout, &fs.CreatedAt); err != nil {
			return nil, fail("list fixed services", err)
		}
		fs.CreatedAt = fs.CreatedAt.UTC()
		services = append(services, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("list fixed services", err)
	}
	return services, nil
}

// CreateSale writes the sale, its lines and the stock decrement in one
// serializable transaction. Credit sales lock the customer row first so two
// concurrent sales for the same customer cannot both pass the limit check.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fail("create sale", err)
	}
	defer func() { _ = pgTx.Rollback() }()

	if sale.ID == "" {
		sale.ID = xid.SaleCode()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	if sale.IsCredit() {
		if sale.CustomerID == nil {
			return nil, domain.NewValidationError("customer_id", "venda fiado exige cliente cadastrado")
		}
		customer, err := scanCustomer(pgTx.QueryRowContext(ctx, `
			SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR UPDATE
		`, *sale.CustomerID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("customer %d: %w", *sale.CustomerID, store.ErrNotFound)
			}
			return nil, fail("create sale", err)
		}
		open, err := pendingReceivables(ctx, pgTx, customer.ID)
		if err != nil {
			return nil, fail("create sale", err)
		}
		if err := credit.Authorize(&customer, open, sale.Total); err != nil {
			return nil, err
		}
	}

	needed := make(map[int64]int, len(sale.Items))
	ids := make([]int64, 0, len(sale.Items))
	for _, item := range sale.Items {
		if item.ProductID == nil {
			continue
		}
		if _, seen := needed[*item.ProductID]; !seen {
			ids = append(ids, *item.ProductID)
		}
		needed[*item.ProductID] += item.Quantity
	}
	if len(ids) > 0 {
		slices.Sort(ids)
		stockRows, err := pgTx.QueryContext(ctx, `
			SELECT id, description, stock FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE
		`, ids)
		if err != nil {
			return nil, fail("create sale", err)
		}
		found := make(map[int64]struct{}, len(ids))
		for stockRows.Next() {
			var id int64
			var description string
			var stock int
			if err := stockRows.Scan(&id, &description, &stock); err != nil {
				_ = stockRows.Close()
				return nil, fail("create sale", err)
			}
			found[id] = struct{}{}
			if stock < needed[id] {
				_ = stockRows.Close()
				return nil, fmt.Errorf("%s: %w", description, store.ErrInsufficientStock)
			}
		}
		if err := stockRows.Err(); err != nil {
			_ = stockRows.Close()
			return nil, fail("create sale", err)
		}
		_ = stockRows.Close()
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				return nil, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
			}
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (
			id, customer_id, customer_name, labor_value, mechanic_id, mechanic_name, commission,
			total, payment_method, type, status, motorcycle_id, moto_details, service_description,
			payment_status, due_date, paid_date, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`, sale.ID, nullInt64(sale.CustomerID), sale.CustomerName, sale.LaborValue, nullInt64(sale.MechanicID),
		nullIfEmpty(sale.MechanicName), sale.Commission, sale.Total, sale.PaymentMethod, sale.Type,
		nullIfEmpty(string(sale.Status)), nullInt64(sale.MotorcycleID), nullIfEmpty(sale.MotoDetails),
		nullIfEmpty(sale.ServiceDescription), sale.PaymentStatus, nullDate(sale.DueDate),
		nullTime(sale.PaidDate), sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, fail("create sale", err)
	}

	for i, item := range sale.Items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, line_no, product_id, description, quantity, price)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, sale.ID, i+1, nullInt64(item.ProductID), item.Description, item.Quantity, item.Price)
		if err != nil {
			return nil, fail("create sale", err)
		}
	}
	for i, svc := range sale.Services {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_services (sale_id, line_no, fixed_service_id, name, quantity, payout)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, sale.ID, i+1, svc.FixedServiceID, svc.Name, svc.Quantity, svc.Payout)
		if err != nil {
			return nil, fail("create sale", err)
		}
	}

	decrements := make([]domain.StockAdjustment, 0, len(ids))
	for _, id := range ids {
		decrements = append(decrements, domain.StockAdjustment{ProductID: id, Qty: -needed[id]})
	}
	if err := applyStock(ctx, pgTx, decrements); err != nil {
		return nil, fail("create sale", err)
	}

	if err := pgTx.Commit(); err != nil {
		return nil, fail("create sale", err)
	}
	return &sale, nil
}

func pendingReceivables(ctx context.Context, q querier, customerID int64) ([]domain.Receivable, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, total
		FROM sales
		WHERE customer_id = $1 AND payment_method = 'credit' AND payment_status = 'pending'
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	open := make([]domain.Receivable, 0, 8)
	for rows.Next() {
		rec := domain.Receivable{CustomerID: customerID, PaymentStatus: domain.PaymentPending}
		if err := rows.Scan(&rec.SaleID, &rec.OriginalAmount); err != nil {
			return nil, err
		}
		open = append(open, rec)
	}
	return open, rows.Err()
}

const saleColumns = `id, customer_id, customer_name, labor_value, mechanic_id, COALESCE(mechanic_name,''),
	commission, total, payment_method, type, COALESCE(status,''), motorcycle_id, COALESCE(moto_details,''),
	COALESCE(service_description,''), payment_status, due_date, paid_date, created_at`

func scanSale(row interface{ Scan(...any) error }) (*domain.Sale, error) {
	var (
		sale        domain.Sale
		customerID  sql.NullInt64
		mechanicID  sql.NullInt64
		motoID      sql.NullInt64
		status      string
		dueDate     sql.NullTime
		paidDate    sql.NullTime
		paymentMeth string
		saleType    string
		payStatus   string
	)
	err := row.Scan(&sale.ID, &customerID, &sale.CustomerName, &sale.LaborValue, &mechanicID, &sale.MechanicName,
		&sale.Commission, &sale.Total, &paymentMeth, &saleType, &status, &motoID, &sale.MotoDetails,
		&sale.ServiceDescription, &payStatus, &dueDate, &paidDate, &sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	sale.CustomerID = int64Ptr(customerID)
	sale.MechanicID = int64Ptr(mechanicID)
	sale.MotorcycleID = int64Ptr(motoID)
	sale.PaymentMethod = domain.PaymentMethod(paymentMeth)
	sale.Type = domain.SaleType(saleType)
	sale.Status = domain.ServiceStatus(status)
	sale.PaymentStatus = domain.PaymentStatus(payStatus)
	if dueDate.Valid {
		due := civilDate(dueDate.Time)
		sale.DueDate = &due
	}
	if paidDate.Valid {
		paid := paidDate.Time.UTC()
		sale.PaidDate = &paid
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	return &sale, nil
}

func (s *Store) loadSaleLines(ctx context.Context, q querier, sales []*domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	ids := make([]string, 0, len(sales))
	byID := make(map[string]*domain.Sale, len(sales))
	for _, sale := range sales {
		ids = append(ids, sale.ID)
		byID[sale.ID] = sale
		sale.Items = make([]domain.SaleItem, 0, 4)
	}

	itemRows, err := q.QueryContext(ctx, `
		SELECT sale_id, product_id, description, quantity, price
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, line_no
	`, ids)
	if err != nil {
		return err
	}
	for itemRows.Next() {
		var saleID string
		var productID sql.NullInt64
		var item domain.SaleItem
		if err := itemRows.Scan(&saleID, &productID, &item.Description, &item.Quantity, &item.Price); err != nil {
			_ = itemRows.Close()
			return err
		}
		item.ProductID = int64Ptr(productID)
		byID[saleID].Items = append(byID[saleID].Items, item)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return err
	}
	_ = itemRows.Close()

	svcRows, err := q.QueryContext(ctx, `
		SELECT sale_id, fixed_service_id, name, quantity, payout
		FROM sale_services
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, line_no
	`, ids)
	if err != nil {
		return err
	}
	defer svcRows.Close()
	for svcRows.Next() {
		var saleID string
		var svc domain.SaleService
		if err := svcRows.Scan(&saleID, &svc.FixedServiceID, &svc.Name, &svc.Quantity, &svc.Payout); err != nil {
			return err
		}
		byID[saleID].Services = append(byID[saleID].Services, svc)
	}
	return svcRows.Err()
}

func (s *Store) getSale(ctx context.Context, q querier, id string, lock bool) (*domain.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	sale, err := scanSale(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := s.loadSaleLines(ctx, q, []*domain.Sale{sale}); err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	sale, err := s.getSale(ctx, s.db, id, false)
	if err != nil {
		return nil, fail("get sale", err)
	}
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	conds := make([]string, 0, 6)
	args := make([]any, 0, 7)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.CustomerID != nil {
		add("customer_id = $%d", *filter.CustomerID)
	}
	if filter.Type != "" {
		add("type = $%d", string(filter.Type))
	}
	if filter.PaymentMethod != "" {
		add("payment_method = $%d", string(filter.PaymentMethod))
	}
	if filter.PaymentStatus != "" {
		add("payment_status = $%d", string(filter.PaymentStatus))
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at < $%d", filter.To)
	}

	query := `SELECT ` + saleColumns + ` FROM sales`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fail("list sales", err)
	}
	ptrs := make([]*domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fail("list sales", err)
		}
		ptrs = append(ptrs, sale)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fail("list sales", err)
	}
	_ = rows.Close()

	if err := s.loadSaleLines(ctx, s.db, ptrs); err != nil {
		return nil, fail("list sales", err)
	}
	sales := make([]domain.Sale, 0, len(ptrs))
	for _, sale := range ptrs {
		sales = append(sales, *sale)
	}
	return sales, nil
}

func (s *Store) UpdateSaleStatus(ctx context.Context, id string, status domain.ServiceStatus) (*domain.Sale, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE sales SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return nil, fail("update sale status", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, fail("update sale status", err)
	} else if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetSale(ctx, id)
}

// DeleteSale removes the sale with its lines and receivable and returns the
// linked products to stock.
func (s *Store) DeleteSale(ctx context.Context, id string) (*domain.Sale, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fail("delete sale", err)
	}
	defer func() { _ = pgTx.Rollback() }()

	sale, err := s.getSale(ctx, pgTx, id, true)
	if err != nil {
		return nil, fail("delete sale", err)
	}

	restock := make([]domain.StockAdjustment, 0, len(sale.Items))
	for _, item := range sale.Items {
		if item.ProductID == nil {
			continue
		}
		restock = append(restock, domain.StockAdjustment{ProductID: *item.ProductID, Qty: item.Quantity})
	}
	if err := applyStock(ctx, pgTx, restock); err != nil {
		return nil, fail("delete sale", err)
	}
	if _, err := pgTx.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id); err != nil {
		return nil, fail("delete sale", err)
	}

	if err := pgTx.Commit(); err != nil {
		return nil, fail("delete sale", err)
	}
	return sale, nil
}

func (s *Store) ListReceivables(ctx context.Context, filter domain.ReceivableFilter) ([]domain.Receivable, error) {
	var customerID any
	if filter.CustomerID != nil {
		customerID = *filter.CustomerID
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, customer_name, total, created_at, due_date, payment_status, paid_date
		FROM sales
		WHERE payment_method = 'credit'
			AND ($1::bigint IS NULL OR customer_id = $1)
			AND ($2 = '' OR payment_status = $2)
		ORDER BY due_date, id
	`, customerID, string(filter.Status))
	if err != nil {
		return nil, fail("list receivables", err)
	}
	defer rows.Close()

	receivables := make([]domain.Receivable, 0, 32)
	for rows.Next() {
		var rec domain.Receivable
		var status string
		var paidDate sql.NullTime
		if err := rows.Scan(&rec.SaleID, &rec.CustomerID, &rec.CustomerName, &rec.OriginalAmount,
			&rec.SaleDate, &rec.DueDate, &status, &paidDate); err != nil {
			return nil, fail("list receivables", err)
		}
		rec.PaymentStatus = domain.PaymentStatus(status)
		rec.SaleDate = rec.SaleDate.UTC()
		rec.DueDate = civilDate(rec.DueDate)
		if paidDate.Valid {
			paid := paidDate.Time.UTC()
			rec.PaidDate = &paid
		}
		receivables = append(receivables, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("list receivables", err)
	}
	return receivables, nil
}

// SettleReceivable marks a pending credit sale as paid. A sale already paid
// is returned unchanged.
func (s *Store) SettleReceivable(ctx context.Context, saleID string, paidAt time.Time) (*domain.Sale, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fail("settle receivable", err)
	}
	defer func() { _ = pgTx.Rollback() }()

	sale, err := s.getSale(ctx, pgTx, saleID, true)
	if err != nil {
		return nil, fail("settle receivable", err)
	}
	if !sale.IsCredit() {
		return nil, domain.NewValidationError("sale_id", "venda não é fiado")
	}
	if sale.PaymentStatus == domain.PaymentPaid {
		return sale, nil
	}

	paid := paidAt.UTC()
	if _, err := pgTx.ExecContext(ctx, `
		UPDATE sales SET payment_status = 'paid', paid_date = $2 WHERE id = $1
	`, saleID, paid); err != nil {
		return nil, fail("settle receivable", err)
	}
	if err := pgTx.Commit(); err != nil {
		return nil, fail("settle receivable", err)
	}
	sale.PaymentStatus = domain.PaymentPaid
	sale.PaidDate = &paid
	return sale, nil
}

func (s *Store) RescheduleReceivable(ctx context.Context, saleID string, dueDate time.Time) (*domain.Sale, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fail("reschedule receivable", err)
	}
	defer func() { _ = pgTx.Rollback() }()

	sale, err := s.getSale(ctx, pgTx, saleID, true)
	if err != nil {
		return nil, fail("reschedule receivable", err)
	}
	if !sale.IsCredit() {
		return nil, domain.NewValidationError("sale_id", "venda não é fiado")
	}
	if sale.PaymentStatus == domain.PaymentPaid {
		return nil, store.ErrConflict
	}

	if _, err := pgTx.ExecContext(ctx, `UPDATE sales SET due_date = $2 WHERE id = $1`, saleID, dueDate.Format(dateLayout)); err != nil {
		return nil, fail("reschedule receivable", err)
	}
	if err := pgTx.Commit(); err != nil {
		return nil, fail("reschedule receivable", err)
	}
	due := civilDate(dueDate)
	sale.DueDate = &due
	return sale, nil
}

const cashSessionColumns = `id, opened_by, opening_balance, closing_balance, expected_balance, difference,
	COALESCE(notes,''), status, opened_at, closed_at`

func scanCashSession(row interface{ Scan(...any) error }) (*domain.CashSession, error) {
	var (
		session  domain.CashSession
		closing  decimal.NullDecimal
		expected decimal.NullDecimal
		diff     decimal.NullDecimal
		status   string
		closedAt sql.NullTime
	)
	if err := row.Scan(&session.ID, &session.OpenedBy, &session.OpeningBalance, &closing, &expected, &diff,
		&session.Notes, &status, &session.OpenedAt, &closedAt); err != nil {
		return nil, err
	}
	session.Status = domain.CashSessionStatus(status)
	session.ClosingBalance = decimalPtr(closing)
	session.ExpectedBalance = decimalPtr(expected)
	session.Difference = decimalPtr(diff)
	session.OpenedAt = session.OpenedAt.UTC()
	if closedAt.Valid {
		t := closedAt.Time.UTC()
		session.ClosedAt = &t
	}
	return &session, nil
}

func (s *Store) OpenCashSession(ctx context.Context, session domain.CashSession) (*domain.CashSession, error) {
	session.Status = domain.CashSessionOpen
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_sessions (id, opened_by, opening_balance, status, opened_at)
		VALUES ($1,$2,$3,$4,$5)
	`, session.ID, session.OpenedBy, session.OpeningBalance, string(session.Status), session.OpenedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, fail("open cash session", err)
	}
	return &session, nil
}

func (s *Store) GetActiveCashSession(ctx context.Context) (*domain.CashSession, error) {
	session, err := scanCashSession(s.db.QueryRowContext(ctx, `
		SELECT `+cashSessionColumns+` FROM cash_sessions WHERE status = 'open'
	`))
	if err != nil {
		return nil, fail("get active cash session", err)
	}
	return session, nil
}

func (s *Store) AddCashMovement(ctx context.Context, movement domain.CashMovement) (*domain.CashMovement, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_movements (id, session_id, type, amount, description, created_by, created_at)
		SELECT $1::text, $2::text, $3::text, $4::numeric, $5::text, $6::text, $7::timestamptz
		WHERE EXISTS (SELECT 1 FROM cash_sessions WHERE id = $2 AND status = 'open')
	`, movement.ID, movement.SessionID, string(movement.Type), movement.Amount,
		nullIfEmpty(movement.Description), movement.CreatedBy, movement.CreatedAt)
	if err != nil {
		return nil, fail("add cash movement", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, fail("add cash movement", err)
	} else if affected == 0 {
		return nil, store.ErrConflict
	}
	return &movement, nil
}

func (s *Store) ListCashMovements(ctx context.Context, sessionID string) ([]domain.CashMovement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, type, amount, COALESCE(description,''), created_by, created_at
		FROM cash_movements
		WHERE session_id = $1
		ORDER BY created_at
	`, sessionID)
	if err != nil {
		return nil, fail("list cash movements", err)
	}
	defer rows.Close()

	movements := make([]domain.CashMovement, 0, 16)
	for rows.Next() {
		var m domain.CashMovement
		var kind string
		if err := rows.Scan(&m.ID, &m.SessionID, &kind, &m.Amount, &m.Description, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, fail("list cash movements", err)
		}
		m.Type = domain.CashMovementType(kind)
		m.CreatedAt = m.CreatedAt.UTC()
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("list cash movements", err)
	}
	return movements, nil
}

func (s *Store) CloseCashSession(ctx context.Context, session domain.CashSession) (*domain.CashSession, error) {
	closed, err := scanCashSession(s.db.QueryRowContext(ctx, `
		UPDATE cash_sessions
		SET closing_balance = $2, expected_balance = $3, difference = $4, notes = $5,
			status = 'closed', closed_at = $6
		WHERE id = $1 AND status = 'open'
		RETURNING `+cashSessionColumns,
		session.ID, nullDecimal(session.ClosingBalance), nullDecimal(session.ExpectedBalance),
		nullDecimal(session.Difference), nullIfEmpty(session.Notes), nullTime(session.ClosedAt)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrConflict
		}
		return nil, fail("close cash session", err)
	}
	return closed, nil
}

func (s *Store) CreateDistributor(ctx context.Context, distributor domain.Distributor) (*domain.Distributor, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO distributors (id, name, phone, contact, created_at) VALUES ($1,$2,$3,$4,$5)
	`, distributor.ID, distributor.Name, distributor.Phone, nullIfEmpty(distributor.Contact), distributor.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, fail("create distributor", err)
	}
	return &distributor, nil
}

func (s *Store) GetDistributor(ctx context.Context, id string) (*domain.Distributor, error) {
	var d domain.Distributor
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, COALESCE(contact,''), created_at FROM distributors WHERE id = $1
	`, id).Scan(&d.ID, &d.Name, &d.Phone, &d.Contact, &d.CreatedAt)
	if err != nil {
		return nil, fail("get distributor", err)
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return &d, nil
}

func (s *Store) ListDistributors(ctx context.Context) ([]domain.Distributor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, COALESCE(contact,''), created_at FROM distributors ORDER BY name
	`)
	if err != nil {
		return nil, fail("list distributors", err)
	}
	defer rows.Close()

	distributors := make([]domain.Distributor, 0, 16)
	for rows.Next() {
		var d domain.Distributor
		if err := rows.Scan(&d.ID, &d.Name, &d.Phone, &d.Contact, &d.CreatedAt); err != nil {
			return nil, fail("list distributors", err)
		}
		d.CreatedAt = d.CreatedAt.UTC()
		distributors = append(distributors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("list distributors", err)
	}
	return distributors, nil
}

func (s *Store) CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fail("create purchase order", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchase_orders (id, distributor_id, status, created_at) VALUES ($1,$2,$3,$4)
	`, po.ID, po.DistributorID, string(po.Status), po.CreatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, store.ErrConflict
		case isForeignKeyViolation(err):
			return nil, fmt.Errorf("distributor %s: %w", po.DistributorID, store.ErrNotFound)
		}
		return nil, fail("create purchase order", err)
	}
	for i, item := range po.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO purchase_order_items (purchase_order_id, line_no, product_id, description, quantity)
			VALUES ($1,$2,$3,$4,$5)
		`, po.ID, i+1, nullInt64(item.ProductID), item.Description, item.Quantity)
		if err != nil {
			return nil, fail("create purchase order", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fail("create purchase order", err)
	}
	return &po, nil
}

func (s *Store) getPurchaseOrder(ctx context.Context, q querier, id string, lock bool) (*domain.PurchaseOrder, error) {
	query := `
		SELECT id, distributor_id, status, created_at, sent_at, received_at, COALESCE(received_by,'')
		FROM purchase_orders WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var po domain.PurchaseOrder
	var status string
	var sentAt, receivedAt sql.NullTime
	if err := q.QueryRowContext(ctx, query, id).Scan(&po.ID, &po.DistributorID, &status, &po.CreatedAt,
		&sentAt, &receivedAt, &po.ReceivedBy); err != nil {
		return nil, err
	}
	po.Status = domain.PurchaseOrderStatus(status)
	po.CreatedAt = po.CreatedAt.UTC()
	if sentAt.Valid {
		t := sentAt.Time.UTC()
		po.SentAt = &t
	}
	if receivedAt.Valid {
		t := receivedAt.Time.UTC()
		po.ReceivedAt = &t
	}

	rows, err := q.QueryContext(ctx, `
		SELECT product_id, description, quantity
		FROM purchase_order_items
		WHERE purchase_order_id = $1
		ORDER BY line_no
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	po.Items = make([]domain.PurchaseOrderItem, 0, 8)
	for rows.Next() {
		var item domain.PurchaseOrderItem
		var productID sql.NullInt64
		if err := rows.Scan(&productID, &item.Description, &item.Quantity); err != nil {
			return nil, err
		}
		item.ProductID = int64Ptr(productID)
		po.Items = append(po.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &po, nil
}

func (s *Store) GetPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	po, err := s.getPurchaseOrder(ctx, s.db, id, false)
	if err != nil {
		return nil, fail("get purchase order", err)
	}
	return po, nil
}

func (s *Store) ListPurchaseOrders(ctx context.Context, status domain.PurchaseOrderStatus, limit int) ([]domain.PurchaseOrder, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM purchase_orders
		WHERE $1 = '' OR status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, fail("list purchase orders", err)
	}
	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fail("list purchase orders", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fail("list purchase orders", err)
	}
	_ = rows.Close()

	pos := make([]domain.PurchaseOrder, 0, len(ids))
	for _, id := range ids {
		po, err := s.getPurchaseOrder(ctx, s.db, id, false)
		if err != nil {
			return nil, fail("list purchase orders", err)
		}
		pos = append(pos, *po)
	}
	return pos, nil
}

func (s *Store) MarkPurchaseOrderSent(ctx context.Context, id string, sentAt time.Time) (*domain.PurchaseOrder, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE purchase_orders SET status = 'sent', sent_at = $2 WHERE id = $1 AND status = 'pending'
	`, id, sentAt)
	if err != nil {
		return nil, fail("send purchase order", err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return nil, fail("send purchase order", err)
	}
	po, err := s.GetPurchaseOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.Status == domain.PurchaseOrderReceived {
		return nil, store.ErrConflict
	}
	return po, nil
}

// ReceivePurchaseOrder closes the order and adds its linked quantities to
// stock. Receiving twice is a conflict.
func (s *Store) ReceivePurchaseOrder(ctx context.Context, id string, receivedBy string, receivedAt time.Time) (*domain.PurchaseOrder, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fail("receive purchase order", err)
	}
	defer func() { _ = tx.Rollback() }()

	po, err := s.getPurchaseOrder(ctx, tx, id, true)
	if err != nil {
		return nil, fail("receive purchase order", err)
	}
	if po.Status == domain.PurchaseOrderReceived {
		return nil, store.ErrConflict
	}

	adjustments := make([]domain.StockAdjustment, 0, len(po.Items))
	for _, item := range po.Items {
		if item.ProductID == nil {
			continue
		}
		adjustments = append(adjustments, domain.StockAdjustment{ProductID: *item.ProductID, Qty: item.Quantity})
	}
	if err := applyStock(ctx, tx, adjustments); err != nil {
		return nil, fail("receive purchase order", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE purchase_orders SET status = 'received', received_at = $2, received_by = $3 WHERE id = $1
	`, id, receivedAt, receivedBy); err != nil {
		return nil, fail("receive purchase order", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fail("receive purchase order", err)
	}

	at := receivedAt.UTC()
	po.Status = domain.PurchaseOrderReceived
	po.ReceivedAt = &at
	po.ReceivedBy = receivedBy
	return po, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID,
		nullIfEmpty(entry.Detail), entry.CreatedAt)
	return fail("create audit log", err)
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, COALESCE(detail,''), created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, fail("list audit logs", err)
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, fail("list audit logs", err)
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("list audit logs", err)
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return domain.NewValidationError("username", "usuário e senha são obrigatórios")
	}
	if user.Role == "" {
		user.Role = domain.RoleOperator
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, true, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return fail("create user", err)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, fail("list users", err)
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, fail("list users", err)
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("list users", err)
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return domain.NewValidationError("password", "senha obrigatória")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return fail("update user password", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fail("update user password", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// fail maps driver errors onto the store contract. Missing rows become
// ErrNotFound, serialization aborts and unique violations become ErrConflict,
// store sentinels and domain errors pass through, and anything else is a
// PersistenceError.
func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return store.ErrNotFound
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrConflict):
		return err
	case isSerializationFailure(err), isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, store.ErrConflict)
	}
	return domain.Persistence(op, err)
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == "23505"
}

func isForeignKeyViolation(err error) bool {
	return pgCode(err) == "23503"
}

func isSerializationFailure(err error) bool {
	code := pgCode(err)
	return code == "40001" || code == "40P01"
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// civilDate keeps the calendar date of a DATE column as UTC midnight.
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func decimalPtr(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullInt64(val *int64) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullDecimal(val *decimal.Decimal) any {
	if val == nil {
		return nil
	}
	return *val
}

// nullDate sends the civil date as text so the session time zone never
// shifts it.
func nullDate(val *time.Time) any {
	if val == nil {
		return nil
	}
	return val.Format(dateLayout)
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
