package store

import (
	"context"
	"errors"
	"time"

	"kombatmoto/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("conflict")
)

// Repository is the row store behind the service. CreateSale is atomic: the
// stock check, the credit limit check for credit sales, the sale row and the
// stock decrement are written together or not at all.
type Repository interface {
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)

	CreateMotorcycle(ctx context.Context, moto domain.Motorcycle) (*domain.Motorcycle, error)
	GetMotorcycle(ctx context.Context, id int64) (*domain.Motorcycle, error)
	ListMotorcycles(ctx context.Context, customerID *int64) ([]domain.Motorcycle, error)
	UpdateMotorcycleKm(ctx context.Context, id int64, km int) (*domain.Motorcycle, error)

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error)
	ListProducts(ctx context.Context, category string) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	IncreaseStock(ctx context.Context, adjustments []domain.StockAdjustment) error

	CreateMechanic(ctx context.Context, mechanic domain.Mechanic) (*domain.Mechanic, error)
	GetMechanic(ctx context.Context, id int64) (*domain.Mechanic, error)
	ListMechanics(ctx context.Context) ([]domain.Mechanic, error)
	CreateFixedService(ctx context.Context, svc domain.FixedService) (*domain.FixedService, error)
	GetFixedServicesByIDs(ctx context.Context, ids []int64) (map[int64]domain.FixedService, error)
	ListFixedServices(ctx context.Context) ([]domain.FixedService, error)

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
	UpdateSaleStatus(ctx context.Context, id string, status domain.ServiceStatus) (*domain.Sale, error)
	DeleteSale(ctx context.Context, id string) (*domain.Sale, error)

	ListReceivables(ctx context.Context, filter domain.ReceivableFilter) ([]domain.Receivable, error)
	SettleReceivable(ctx context.Context, saleID string, paidAt time.Time) (*domain.Sale, error)
	RescheduleReceivable(ctx context.Context, saleID string, dueDate time.Time) (*domain.Sale, error)

	OpenCashSession(ctx context.Context, session domain.CashSession) (*domain.CashSession, error)
	GetActiveCashSession(ctx context.Context) (*domain.CashSession, error)
	AddCashMovement(ctx context.Context, movement domain.CashMovement) (*domain.CashMovement, error)
	ListCashMovements(ctx context.Context, sessionID string) ([]domain.CashMovement, error)
	CloseCashSession(ctx context.Context, session domain.CashSession) (*domain.CashSession, error)

	CreateDistributor(ctx context.Context, distributor domain.Distributor) (*domain.Distributor, error)
	GetDistributor(ctx context.Context, id string) (*domain.Distributor, error)
	ListDistributors(ctx context.Context) ([]domain.Distributor, error)
	CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, status domain.PurchaseOrderStatus, limit int) ([]domain.PurchaseOrder, error)
	MarkPurchaseOrderSent(ctx context.Context, id string, sentAt time.Time) (*domain.PurchaseOrder, error)
	ReceivePurchaseOrder(ctx context.Context, id string, receivedBy string, receivedAt time.Time) (*domain.PurchaseOrder, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
