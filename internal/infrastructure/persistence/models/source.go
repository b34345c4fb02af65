package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerModel is the persistence model for customer master records. The
// reconciliation engine only reads it; customers are maintained by the
// upstream order entry system.
type CustomerModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Name      string    `gorm:"type:varchar(200);not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ProductModel is the persistence model for product master records.
type ProductModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Name      string    `gorm:"type:varchar(200);not null"`
	SKU       string    `gorm:"type:varchar(50);not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// SalesOrderModel is the persistence model for sales order headers.
type SalesOrderModel struct {
	ID               uuid.UUID             `gorm:"type:uuid;primary_key"`
	OrderNumber      string                `gorm:"type:varchar(50);not null;uniqueIndex"`
	OrderDate        time.Time             `gorm:"not null;index"`
	CustomerID       uuid.UUID             `gorm:"type:uuid;not null;index"`
	PONumber         string                `gorm:"type:varchar(100)"`
	PODate           *time.Time            `gorm:""`
	SalesPerson      string                `gorm:"type:varchar(200)"`
	SalesPersonEmail string                `gorm:"type:varchar(200)"`
	Items            []SalesOrderItemModel `gorm:"foreignKey:OrderID;references:ID"`
	CreatedAt        time.Time             `gorm:"not null"`
	UpdatedAt        time.Time             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SalesOrderModel) TableName() string {
	return "sales_orders"
}

// SalesOrderItemModel is the persistence model for sales order lines. Each
// line carries the ordered quantity for one product; dispatched quantities
// are derived from invoice allocations, never stored here.
type SalesOrderItemModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedAt time.Time       `gorm:"not null"`
	UpdatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SalesOrderItemModel) TableName() string {
	return "sales_order_items"
}

// InvoiceModel is the persistence model for invoice headers.
type InvoiceModel struct {
	ID            uuid.UUID          `gorm:"type:uuid;primary_key"`
	InvoiceNumber string             `gorm:"type:varchar(50);not null;uniqueIndex"`
	InvoiceDate   time.Time          `gorm:"not null;index"`
	Items         []InvoiceItemModel `gorm:"foreignKey:InvoiceID;references:ID"`
	CreatedAt     time.Time          `gorm:"not null"`
	UpdatedAt     time.Time          `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// InvoiceItemModel is the persistence model for invoice lines. Each line
// allocates a dispatched quantity against one sales order line.
type InvoiceItemModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	SalesOrderItemID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedAt        time.Time       `gorm:"not null"`
	UpdatedAt        time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// SourceModels lists every source table model, in dependency order, for
// test-database migration.
func SourceModels() []any {
	return []any{
		&CustomerModel{},
		&ProductModel{},
		&SalesOrderModel{},
		&SalesOrderItemModel{},
		&InvoiceModel{},
		&InvoiceItemModel{},
	}
}
