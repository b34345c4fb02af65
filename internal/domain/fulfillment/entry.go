package fulfillment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DispatchStatus classifies an entry by its ordered vs. dispatched quantities.
// It is recomputed from the totals on every aggregation and never stored.
type DispatchStatus string

const (
	DispatchStatusPending    DispatchStatus = "PENDING"
	DispatchStatusPartial    DispatchStatus = "PARTIALLY_DISPATCHED"
	DispatchStatusFull       DispatchStatus = "FULLY_DISPATCHED"
	DispatchStatusOver       DispatchStatus = "OVER_DISPATCHED"
	DispatchStatusNoActivity DispatchStatus = "NO_ACTIVITY"
)

// DisplayName returns the human-readable form used by the export surface.
func (s DispatchStatus) DisplayName() string {
	switch s {
	case DispatchStatusPending:
		return "Pending"
	case DispatchStatusPartial:
		return "Partially Dispatched"
	case DispatchStatusFull:
		return "Fully Dispatched"
	case DispatchStatusOver:
		return "Over-Dispatched"
	default:
		return "No Activity"
	}
}

// ClassifyDispatchStatus derives the dispatch status from the entry totals.
// Equality is evaluated within tolerance because quantities are decimal and
// dispatch records may carry rounding from unit conversions.
func ClassifyDispatchStatus(ordered, dispatched, tolerance decimal.Decimal) DispatchStatus {
	switch {
	case dispatched.Sub(ordered).Abs().LessThanOrEqual(tolerance) && ordered.IsPositive():
		return DispatchStatusFull
	case dispatched.GreaterThan(ordered):
		return DispatchStatusOver
	case dispatched.IsPositive() && dispatched.LessThan(ordered):
		return DispatchStatusPartial
	case ordered.IsPositive():
		return DispatchStatusPending
	default:
		return DispatchStatusNoActivity
	}
}

// PORef is one purchase order funding an entry.
type PORef struct {
	PONumber string          `json:"po_number"`
	PODate   *time.Time      `json:"po_date,omitempty"`
	OrderID  uuid.UUID       `json:"order_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// InvoiceAllocation is a dispatch recognized against an order line through
// invoicing. There is no separate shipped-but-not-invoiced state in this model.
type InvoiceAllocation struct {
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceDate   time.Time       `json:"invoice_date"`
	Quantity      decimal.Decimal `json:"quantity"`
}

// OrderLine is one sales order line contributing to an entry.
type OrderLine struct {
	SalesOrderID       uuid.UUID           `json:"sales_order_id"`
	SalesOrderNumber   string              `json:"sales_order_number"`
	SalesOrderDate     time.Time           `json:"sales_order_date"`
	SalesOrderItemID   uuid.UUID           `json:"sales_order_item_id"`
	OrderedQuantity    decimal.Decimal     `json:"ordered_quantity"`
	DispatchedQuantity decimal.Decimal     `json:"dispatched_quantity"`
	PendingQuantity    decimal.Decimal     `json:"pending_quantity"`
	Invoices           []InvoiceAllocation `json:"invoices"`
}

// Entry is the reconciled fulfillment record for one (customer, product) pair
// as of a given date. It is a computed view rebuilt from source orders and
// invoices on every cache miss, never persisted.
type Entry struct {
	CustomerID       uuid.UUID       `json:"customer_id"`
	CustomerName     string          `json:"customer_name"`
	ProductID        uuid.UUID       `json:"product_id"`
	ProductName      string          `json:"product_name"`
	ProductSKU       string          `json:"product_sku,omitempty"`
	PrimaryPONumber  string          `json:"primary_po_number,omitempty"`
	PrimaryPODate    *time.Time      `json:"primary_po_date,omitempty"`
	AllPOs           []PORef         `json:"all_pos"`
	TotalOrdered     decimal.Decimal `json:"total_order_received"`
	TotalDispatched  decimal.Decimal `json:"total_dispatched"`
	TotalPending     decimal.Decimal `json:"total_pending"`
	DispatchStatus   DispatchStatus  `json:"dispatch_status"`
	HasAnomaly       bool            `json:"has_anomaly"`
	AnomalyMessage   string          `json:"anomaly_message,omitempty"`
	Exceptions       []ExceptionType `json:"exception_types,omitempty"`
	SalesPerson      string          `json:"sales_person,omitempty"`
	SalesPersonEmail string          `json:"sales_person_email,omitempty"`
	LineItems        []OrderLine     `json:"line_items"`
}

// AllocationCount returns the number of invoice allocations feeding the entry.
func (e *Entry) AllocationCount() int {
	n := 0
	for i := range e.LineItems {
		n += len(e.LineItems[i].Invoices)
	}
	return n
}

// OldestOrderDate returns the order date of the oldest contributing line,
// or nil when the entry has no lines.
func (e *Entry) OldestOrderDate() *time.Time {
	var oldest *time.Time
	for i := range e.LineItems {
		d := e.LineItems[i].SalesOrderDate
		if oldest == nil || d.Before(*oldest) {
			oldest = &d
		}
	}
	return oldest
}

// HasException reports whether the entry carries the given exception type.
func (e *Entry) HasException(t ExceptionType) bool {
	for _, et := range e.Exceptions {
		if et == t {
			return true
		}
	}
	return false
}
