package persistence

import (
	"context"
	"time"

	appfulfillment "github.com/fulfillment/backend/internal/application/fulfillment"
	"github.com/fulfillment/backend/internal/domain/fulfillment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormSourceReader implements fulfillment.SourceReader over the order and
// invoice tables. All reads are point-in-time: rows dated after the as-of
// cutoff are invisible to the aggregation.
type GormSourceReader struct {
	db *gorm.DB
}

// NewGormSourceReader creates a new GormSourceReader
func NewGormSourceReader(db *gorm.DB) *GormSourceReader {
	return &GormSourceReader{db: db}
}

// asOfCutoff returns the exclusive upper bound for an inclusive as-of day.
func asOfCutoff(asOf time.Time) time.Time {
	return appfulfillment.NormalizeAsOfDate(asOf).AddDate(0, 0, 1)
}

// OrderLines returns all order lines whose order date falls on or before the
// as-of day. Customers and products are left-joined so lines referencing
// deleted master records come back with their Known flags unset instead of
// disappearing from the result.
func (r *GormSourceReader) OrderLines(ctx context.Context, asOf time.Time) ([]fulfillment.SourceOrderLine, error) {
	type lineRow struct {
		SalesOrderID     uuid.UUID
		SalesOrderNumber string
		OrderDate        time.Time
		OrderLineID      uuid.UUID
		PONumber         string
		PODate           *time.Time
		CustomerID       uuid.UUID
		CustomerName     *string
		ProductID        uuid.UUID
		ProductName      *string
		ProductSKU       *string
		Quantity         decimal.Decimal
		SalesPerson      string
		SalesPersonEmail string
	}

	var rows []lineRow
	err := r.db.WithContext(ctx).
		Table("sales_order_items soi").
		Select(`
			so.id as sales_order_id,
			so.order_number as sales_order_number,
			so.order_date as order_date,
			soi.id as order_line_id,
			so.po_number as po_number,
			so.po_date as po_date,
			so.customer_id as customer_id,
			c.name as customer_name,
			soi.product_id as product_id,
			p.name as product_name,
			p.sku as product_sku,
			soi.quantity as quantity,
			so.sales_person as sales_person,
			so.sales_person_email as sales_person_email
		`).
		Joins("JOIN sales_orders so ON so.id = soi.order_id").
		Joins("LEFT JOIN customers c ON c.id = so.customer_id").
		Joins("LEFT JOIN products p ON p.id = soi.product_id").
		Where("so.order_date < ?", asOfCutoff(asOf)).
		Order("so.order_date ASC, soi.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	lines := make([]fulfillment.SourceOrderLine, len(rows))
	for i, row := range rows {
		line := fulfillment.SourceOrderLine{
			SalesOrderID:     row.SalesOrderID,
			SalesOrderNumber: row.SalesOrderNumber,
			OrderDate:        row.OrderDate,
			OrderLineID:      row.OrderLineID,
			PONumber:         row.PONumber,
			PODate:           row.PODate,
			CustomerID:       row.CustomerID,
			ProductID:        row.ProductID,
			Quantity:         row.Quantity,
			SalesPerson:      row.SalesPerson,
			SalesPersonEmail: row.SalesPersonEmail,
		}
		if row.CustomerName != nil {
			line.CustomerKnown = true
			line.CustomerName = *row.CustomerName
		}
		if row.ProductName != nil {
			line.ProductKnown = true
			line.ProductName = *row.ProductName
			if row.ProductSKU != nil {
				line.ProductSKU = *row.ProductSKU
			}
		}
		lines[i] = line
	}
	return lines, nil
}

// InvoiceAllocations returns all invoice line allocations whose invoice date
// falls on or before the as-of day.
func (r *GormSourceReader) InvoiceAllocations(ctx context.Context, asOf time.Time) ([]fulfillment.SourceInvoiceAllocation, error) {
	type allocationRow struct {
		InvoiceID     uuid.UUID
		InvoiceNumber string
		InvoiceDate   time.Time
		OrderLineID   uuid.UUID
		Quantity      decimal.Decimal
	}

	var rows []allocationRow
	err := r.db.WithContext(ctx).
		Table("invoice_items ii").
		Select(`
			inv.id as invoice_id,
			inv.invoice_number as invoice_number,
			inv.invoice_date as invoice_date,
			ii.sales_order_item_id as order_line_id,
			ii.quantity as quantity
		`).
		Joins("JOIN invoices inv ON inv.id = ii.invoice_id").
		Where("inv.invoice_date < ?", asOfCutoff(asOf)).
		Order("inv.invoice_date ASC, ii.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	allocations := make([]fulfillment.SourceInvoiceAllocation, len(rows))
	for i, row := range rows {
		allocations[i] = fulfillment.SourceInvoiceAllocation{
			InvoiceID:     row.InvoiceID,
			InvoiceNumber: row.InvoiceNumber,
			InvoiceDate:   row.InvoiceDate,
			OrderLineID:   row.OrderLineID,
			Quantity:      row.Quantity,
		}
	}
	return allocations, nil
}
