package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentPix    PaymentMethod = "pix"
	PaymentCard   PaymentMethod = "card"
	PaymentCash   PaymentMethod = "cash"
	PaymentCredit PaymentMethod = "credit"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentPix, PaymentCard, PaymentCash, PaymentCredit:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

type SaleType string

const (
	SaleCounter  SaleType = "counter"
	SaleWorkshop SaleType = "workshop"
)

type ServiceStatus string

const (
	ServiceOpen       ServiceStatus = "open"
	ServiceInProgress ServiceStatus = "in_progress"
	ServiceReady      ServiceStatus = "ready"
	ServiceDelivered  ServiceStatus = "delivered"
)

// Rank orders service statuses so transitions can be checked for going
// backward.
func (s ServiceStatus) Rank() int {
	switch s {
	case ServiceOpen:
		return 1
	case ServiceInProgress:
		return 2
	case ServiceReady:
		return 3
	case ServiceDelivered:
		return 4
	}
	return 0
}

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

type Customer struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	CPF          string          `json:"cpf,omitempty"`
	WhatsApp     string          `json:"whatsapp"`
	Address      string          `json:"address,omitempty"`
	Neighborhood string          `json:"neighborhood,omitempty"`
	City         string          `json:"city,omitempty"`
	ZipCode      string          `json:"zip_code,omitempty"`
	CreditLimit  decimal.Decimal `json:"credit_limit"`
	FineRate     decimal.Decimal `json:"fine_rate"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	CreatedAt    time.Time       `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name         string           `json:"name"`
	CPF          string           `json:"cpf"`
	WhatsApp     string           `json:"whatsapp"`
	Address      string           `json:"address"`
	Neighborhood string           `json:"neighborhood"`
	City         string           `json:"city"`
	ZipCode      string           `json:"zip_code"`
	CreditLimit  decimal.Decimal  `json:"credit_limit"`
	FineRate     *decimal.Decimal `json:"fine_rate,omitempty"`
	InterestRate *decimal.Decimal `json:"interest_rate,omitempty"`
}

type CustomerTermsRequest struct {
	CreditLimit  *decimal.Decimal `json:"credit_limit,omitempty"`
	FineRate     *decimal.Decimal `json:"fine_rate,omitempty"`
	InterestRate *decimal.Decimal `json:"interest_rate,omitempty"`
}

type Motorcycle struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	Model      string    `json:"model"`
	Plate      string    `json:"plate"`
	Year       int       `json:"year,omitempty"`
	CurrentKm  int       `json:"current_km"`
	CreatedAt  time.Time `json:"created_at"`
}

type MotorcycleCreateRequest struct {
	CustomerID int64  `json:"customer_id"`
	Model      string `json:"model"`
	Plate      string `json:"plate"`
	Year       int    `json:"year"`
	CurrentKm  int    `json:"current_km"`
}

type MotorcycleKmRequest struct {
	CurrentKm int `json:"current_km"`
}

type Product struct {
	ID            int64           `json:"id"`
	Description   string          `json:"description"`
	SKU           string          `json:"sku,omitempty"`
	Barcode       string          `json:"barcode,omitempty"`
	Category      string          `json:"category"`
	Unit          string          `json:"unit"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	Stock         int             `json:"stock"`
	MinStock      int             `json:"min_stock"`
	CreatedAt     time.Time       `json:"created_at"`
}

type ProductCreateRequest struct {
	Description   string          `json:"description"`
	SKU           string          `json:"sku"`
	Barcode       string          `json:"barcode"`
	Category      string          `json:"category"`
	Unit          string          `json:"unit"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	Stock         int             `json:"stock"`
	MinStock      int             `json:"min_stock"`
}

type ProductUpdateRequest struct {
	Description   *string          `json:"description,omitempty"`
	Category      *string          `json:"category,omitempty"`
	Unit          *string          `json:"unit,omitempty"`
	PurchasePrice *decimal.Decimal `json:"purchase_price,omitempty"`
	SalePrice     *decimal.Decimal `json:"sale_price,omitempty"`
	MinStock      *int             `json:"min_stock,omitempty"`
}

type StockAdjustment struct {
	ProductID int64
	Qty       int
}

type StockIncreaseRequest struct {
	Quantity int `json:"quantity"`
}

// CatalogMessage is a ready to share WhatsApp listing of one category.
type CatalogMessage struct {
	Category string `json:"category"`
	Products int    `json:"products"`
	Message  string `json:"message"`
	Link     string `json:"link"`
}

type Mechanic struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type MechanicCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// FixedService is a catalog labor item with a fixed mechanic payout.
type FixedService struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Payout    decimal.Decimal `json:"payout"`
	CreatedAt time.Time       `json:"created_at"`
}

type FixedServiceCreateRequest struct {
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Payout decimal.Decimal `json:"payout"`
}

type SaleItem struct {
	ProductID   *int64          `json:"product_id,omitempty"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

func (i SaleItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type SaleService struct {
	FixedServiceID int64           `json:"fixed_service_id"`
	Name           string          `json:"name"`
	Quantity       int             `json:"quantity"`
	Payout         decimal.Decimal `json:"payout"`
}

// Sale is a counter sale or workshop service order. When paid on credit the
// sale row also carries its receivable: PaymentStatus, DueDate and PaidDate.
type Sale struct {
	ID                 string          `json:"id"`
	CustomerID         *int64          `json:"customer_id,omitempty"`
	CustomerName       string          `json:"customer_name"`
	Items              []SaleItem      `json:"items"`
	Services           []SaleService   `json:"services,omitempty"`
	LaborValue         decimal.Decimal `json:"labor_value"`
	MechanicID         *int64          `json:"mechanic_id,omitempty"`
	MechanicName       string          `json:"mechanic_name,omitempty"`
	Commission         decimal.Decimal `json:"commission"`
	Total              decimal.Decimal `json:"total"`
	PaymentMethod      PaymentMethod   `json:"payment_method"`
	Type               SaleType        `json:"type"`
	Status             ServiceStatus   `json:"status,omitempty"`
	MotorcycleID       *int64          `json:"motorcycle_id,omitempty"`
	MotoDetails        string          `json:"moto_details,omitempty"`
	ServiceDescription string          `json:"service_description,omitempty"`
	PaymentStatus      PaymentStatus   `json:"payment_status"`
	DueDate            *time.Time      `json:"due_date,omitempty"`
	PaidDate           *time.Time      `json:"paid_date,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

func (s Sale) IsCredit() bool {
	return s.PaymentMethod == PaymentCredit
}

// Receivable projects the credit facet of a sale. ok is false for sales not
// paid on credit.
func (s Sale) Receivable() (Receivable, bool) {
	if !s.IsCredit() || s.CustomerID == nil || s.DueDate == nil {
		return Receivable{}, false
	}
	return Receivable{
		SaleID:         s.ID,
		CustomerID:     *s.CustomerID,
		CustomerName:   s.CustomerName,
		OriginalAmount: s.Total,
		SaleDate:       s.CreatedAt,
		DueDate:        *s.DueDate,
		PaymentStatus:  s.PaymentStatus,
		PaidDate:       s.PaidDate,
	}, true
}

type SaleItemRequest struct {
	ProductID *int64 `json:"product_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

type SaleServiceRequest struct {
	FixedServiceID int64 `json:"fixed_service_id"`
	Quantity       int   `json:"quantity"`
}

type CounterSaleRequest struct {
	CustomerID    *int64            `json:"customer_id,omitempty"`
	CustomerName  string            `json:"customer_name"`
	Items         []SaleItemRequest `json:"items"`
	PaymentMethod PaymentMethod     `json:"payment_method"`
	DueDate       string            `json:"due_date,omitempty"`
}

type ServiceOrderRequest struct {
	CustomerID         *int64               `json:"customer_id,omitempty"`
	CustomerName       string               `json:"customer_name"`
	MotorcycleID       *int64               `json:"motorcycle_id,omitempty"`
	CurrentKm          int                  `json:"current_km"`
	MechanicID         *int64               `json:"mechanic_id,omitempty"`
	Items              []SaleItemRequest    `json:"items"`
	Services           []SaleServiceRequest `json:"services"`
	LaborValue         decimal.Decimal      `json:"labor_value"`
	ServiceDescription string               `json:"service_description"`
	PaymentMethod      PaymentMethod        `json:"payment_method"`
	DueDate            string               `json:"due_date,omitempty"`
}

type SaleStatusRequest struct {
	Status ServiceStatus `json:"status"`
}

type SaleDeleteRequest struct {
	ManagerPIN string `json:"manager_pin"`
	Reason     string `json:"reason"`
}

type SaleFilter struct {
	CustomerID    *int64
	Type          SaleType
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	From          time.Time
	To            time.Time
	Limit         int
}

// Receivable is the credit facet of a sale. Fine, interest and total due are
// never stored; see AgingSnapshot.
type Receivable struct {
	SaleID         string          `json:"sale_id"`
	CustomerID     int64           `json:"customer_id"`
	CustomerName   string          `json:"customer_name"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	SaleDate       time.Time       `json:"sale_date"`
	DueDate        time.Time       `json:"due_date"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	PaidDate       *time.Time      `json:"paid_date,omitempty"`
}

type ReceivableFilter struct {
	CustomerID *int64
	Status     PaymentStatus
}

type AgingStatus string

const (
	AgingPaid     AgingStatus = "paid"
	AgingOnTime   AgingStatus = "on_time"
	AgingDueToday AgingStatus = "due_today"
	AgingOverdue  AgingStatus = "overdue"
)

type AgingSnapshot struct {
	Status   AgingStatus     `json:"status"`
	Fine     decimal.Decimal `json:"fine"`
	Interest decimal.Decimal `json:"interest"`
	DaysLate int             `json:"days_late"`
	TotalDue decimal.Decimal `json:"total_due"`
}

// Rounded returns the snapshot with every amount rounded to cents.
func (a AgingSnapshot) Rounded() AgingSnapshot {
	a.Fine = a.Fine.Round(2)
	a.Interest = a.Interest.Round(2)
	a.TotalDue = a.TotalDue.Round(2)
	return a
}

type ReceivableView struct {
	Receivable
	Aging AgingSnapshot `json:"aging"`
}

type ReminderBucket string

const (
	BucketBeforeDue ReminderBucket = "before_due"
	BucketOnDue     ReminderBucket = "on_due"
	BucketOverdue   ReminderBucket = "overdue"
)

type Reminder struct {
	Receivable ReceivableView `json:"receivable"`
	Bucket     ReminderBucket `json:"bucket"`
	Phone      string         `json:"phone"`
	Message    string         `json:"message"`
	Link       string         `json:"link"`
}

type CustomerStatement struct {
	Customer        Customer         `json:"customer"`
	Open            []ReceivableView `json:"open"`
	CurrentDebt     decimal.Decimal  `json:"current_debt"`
	TotalDue        decimal.Decimal  `json:"total_due"`
	RemainingCredit decimal.Decimal  `json:"remaining_credit"`
}

type DueDateRequest struct {
	DueDate string `json:"due_date"`
}

type PromissoryNote struct {
	Number        string          `json:"number"`
	Payee         string          `json:"payee"`
	Debtor        string          `json:"debtor"`
	DebtorCPF     string          `json:"debtor_cpf,omitempty"`
	DebtorAddress string          `json:"debtor_address,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	AmountInWords string          `json:"amount_in_words"`
	DueDate       time.Time       `json:"due_date"`
	IssueDate     time.Time       `json:"issue_date"`
}

type CashSessionStatus string

const (
	CashSessionOpen   CashSessionStatus = "open"
	CashSessionClosed CashSessionStatus = "closed"
)

type CashSession struct {
	ID              string            `json:"id"`
	OpenedBy        string            `json:"opened_by"`
	OpeningBalance  decimal.Decimal   `json:"opening_balance"`
	ClosingBalance  *decimal.Decimal  `json:"closing_balance,omitempty"`
	ExpectedBalance *decimal.Decimal  `json:"expected_balance,omitempty"`
	Difference      *decimal.Decimal  `json:"difference,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	Status          CashSessionStatus `json:"status"`
	OpenedAt        time.Time         `json:"opened_at"`
	ClosedAt        *time.Time        `json:"closed_at,omitempty"`
}

type CashMovementType string

const (
	CashSupply     CashMovementType = "supply"
	CashWithdrawal CashMovementType = "withdrawal"
)

type CashMovement struct {
	ID          string           `json:"id"`
	SessionID   string           `json:"session_id"`
	Type        CashMovementType `json:"type"`
	Amount      decimal.Decimal  `json:"amount"`
	Description string           `json:"description"`
	CreatedBy   string           `json:"created_by"`
	CreatedAt   time.Time        `json:"created_at"`
}

type CashSessionOpenRequest struct {
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

type CashMovementRequest struct {
	Type        CashMovementType `json:"type"`
	Amount      decimal.Decimal  `json:"amount"`
	Description string           `json:"description"`
}

type CashSessionCloseRequest struct {
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	Notes          string          `json:"notes"`
}

type CashSessionResponse struct {
	Session   CashSession     `json:"session"`
	Movements []CashMovement  `json:"movements"`
	CashSales decimal.Decimal `json:"cash_sales"`
}

type Distributor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Contact   string    `json:"contact,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type DistributorCreateRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Contact string `json:"contact"`
}

type PurchaseOrderStatus string

const (
	PurchaseOrderPending  PurchaseOrderStatus = "pending"
	PurchaseOrderSent     PurchaseOrderStatus = "sent"
	PurchaseOrderReceived PurchaseOrderStatus = "received"
)

type PurchaseOrderItem struct {
	ProductID   *int64 `json:"product_id,omitempty"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
}

type PurchaseOrder struct {
	ID            string              `json:"id"`
	DistributorID string              `json:"distributor_id"`
	Status        PurchaseOrderStatus `json:"status"`
	Items         []PurchaseOrderItem `json:"items"`
	CreatedAt     time.Time           `json:"created_at"`
	SentAt        *time.Time          `json:"sent_at,omitempty"`
	ReceivedAt    *time.Time          `json:"received_at,omitempty"`
	ReceivedBy    string              `json:"received_by,omitempty"`
}

type PurchaseOrderCreateRequest struct {
	DistributorID string              `json:"distributor_id"`
	Items         []PurchaseOrderItem `json:"items"`
}

type PurchaseOrderSendResponse struct {
	PurchaseOrder PurchaseOrder `json:"purchase_order"`
	Message       string        `json:"message"`
	Link          string        `json:"link"`
}

type RevisionDue struct {
	Motorcycle     Motorcycle `json:"motorcycle"`
	Customer       Customer   `json:"customer"`
	NextRevisionKm int        `json:"next_revision_km"`
	KmRemaining    int        `json:"km_remaining"`
	Message        string     `json:"message"`
	Link           string     `json:"link"`
}

type ProductRanking struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
}

type DashboardStats struct {
	Date                 string           `json:"date"`
	Revenue              decimal.Decimal  `json:"revenue"`
	Delinquency          decimal.Decimal  `json:"delinquency"`
	OpenReceivables      int              `json:"open_receivables"`
	OpenServiceOrders    int              `json:"open_service_orders"`
	TopProducts          []ProductRanking `json:"top_products"`
	AverageCounterTicket decimal.Decimal  `json:"average_counter_ticket"`
	AverageServiceTicket decimal.Decimal  `json:"average_service_ticket"`
	LowStockProducts     int              `json:"low_stock_products"`
	RevisionsDue         int              `json:"revisions_due"`
}

type CommissionPeriod string

const (
	PeriodWeek      CommissionPeriod = "week"
	PeriodFortnight CommissionPeriod = "fortnight"
	PeriodMonth     CommissionPeriod = "month"
	PeriodAll       CommissionPeriod = "all"
)

type MechanicCommission struct {
	MechanicID   int64           `json:"mechanic_id"`
	MechanicName string          `json:"mechanic_name"`
	Services     int             `json:"services"`
	Total        decimal.Decimal `json:"total"`
	Commission   decimal.Decimal `json:"commission"`
}

type CommissionReport struct {
	Period          CommissionPeriod     `json:"period"`
	From            *time.Time           `json:"from,omitempty"`
	Mechanics       []MechanicCommission `json:"mechanics"`
	TotalServices   decimal.Decimal      `json:"total_services"`
	TotalCommission decimal.Decimal      `json:"total_commission"`
	NetShop         decimal.Decimal      `json:"net_shop"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type OperatorCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type OperatorUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
