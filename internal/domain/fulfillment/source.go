package fulfillment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SourceOrderLine is one sales order line as read from the source records,
// flattened with its order header and the referenced customer and product.
// CustomerKnown/ProductKnown are false when the referenced record no longer
// exists; such lines are excluded from aggregation with a warning.
type SourceOrderLine struct {
	SalesOrderID     uuid.UUID
	SalesOrderNumber string
	OrderDate        time.Time
	OrderLineID      uuid.UUID
	PONumber         string
	PODate           *time.Time
	CustomerID       uuid.UUID
	CustomerName     string
	CustomerKnown    bool
	ProductID        uuid.UUID
	ProductName      string
	ProductSKU       string
	ProductKnown     bool
	Quantity         decimal.Decimal
	SalesPerson      string
	SalesPersonEmail string
}

// SourceInvoiceAllocation is one invoice line quantity allocated against a
// sales order line.
type SourceInvoiceAllocation struct {
	InvoiceID     uuid.UUID
	InvoiceNumber string
	InvoiceDate   time.Time
	OrderLineID   uuid.UUID
	Quantity      decimal.Decimal
}

// SourceReader is the read-only port to the underlying order and invoice
// records. Every call takes the same as-of cutoff so one aggregation sees a
// consistent point-in-time view across both record types. The cutoff is
// inclusive of the whole as-of day.
type SourceReader interface {
	// OrderLines returns all order lines whose order date is on or before asOf.
	OrderLines(ctx context.Context, asOf time.Time) ([]SourceOrderLine, error)
	// InvoiceAllocations returns all invoice line allocations whose invoice
	// date is on or before asOf.
	InvoiceAllocations(ctx context.Context, asOf time.Time) ([]SourceInvoiceAllocation, error)
}
