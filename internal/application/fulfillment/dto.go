package fulfillment

import (
	"time"

	"github.com/fulfillment/backend/internal/domain/fulfillment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RegisterFilter narrows the register view.
type RegisterFilter struct {
	// IncludeAnomalies keeps anomalous entries in the result. When false,
	// entries with HasAnomaly are dropped.
	IncludeAnomalies bool
	// ExceptionType, when set, keeps only entries carrying that exception.
	ExceptionType *fulfillment.ExceptionType
}

// DefaultRegisterFilter returns the filter used when no parameters are given.
func DefaultRegisterFilter() RegisterFilter {
	return RegisterFilter{IncludeAnomalies: true}
}

// RegisterResult is the detailed audit register projection.
type RegisterResult struct {
	Data           []fulfillment.Entry `json:"data"`
	AsOfDate       time.Time           `json:"as_of_date"`
	TotalEntries   int                 `json:"total_entries"`
	AnomaliesCount int                 `json:"anomalies_count"`
	GeneratedAt    time.Time           `json:"generated_at"`
}

// BacklogRow is one entry reduced to the fields a backlog summary needs.
type BacklogRow struct {
	CustomerID      uuid.UUID       `json:"customer_id"`
	CustomerName    string          `json:"customer_name"`
	ProductID       uuid.UUID       `json:"product_id"`
	ProductName     string          `json:"product_name"`
	ProductSKU      string          `json:"product_sku,omitempty"`
	PrimaryPONumber string          `json:"primary_po_number,omitempty"`
	PrimaryPODate   *time.Time      `json:"primary_po_date,omitempty"`
	TotalOrdered    decimal.Decimal `json:"total_order_received"`
	TotalDispatched decimal.Decimal `json:"total_dispatched"`
	TotalPending    decimal.Decimal `json:"total_pending"`
	SalesPerson     string          `json:"sales_person,omitempty"`
}

// BacklogSummary aggregates the backlog rows.
type BacklogSummary struct {
	TotalEntries    int             `json:"total_entries"`
	TotalOrdered    decimal.Decimal `json:"total_ordered"`
	TotalDispatched decimal.Decimal `json:"total_dispatched"`
	TotalPending    decimal.Decimal `json:"total_pending"`
}

// BacklogResult is the consolidated backlog projection: only entries with
// pending quantity, without status and anomaly noise.
type BacklogResult struct {
	Data        []BacklogRow   `json:"data"`
	Summary     BacklogSummary `json:"summary"`
	AsOfDate    time.Time      `json:"as_of_date"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// ProductPlanningSignal groups a product's monthly buckets.
type ProductPlanningSignal struct {
	ProductID   uuid.UUID                    `json:"product_id"`
	ProductName string                       `json:"product_name"`
	ProductSKU  string                       `json:"product_sku,omitempty"`
	Months      []fulfillment.PlanningBucket `json:"months"`
}

// PlanningResult is the forward-looking monthly planning projection.
type PlanningResult struct {
	Data        []ProductPlanningSignal `json:"data"`
	AsOfDate    time.Time               `json:"as_of_date"`
	GeneratedAt time.Time               `json:"generated_at"`
}
