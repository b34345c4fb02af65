package fulfillment

import (
	"context"
	"time"

	"github.com/fulfillment/backend/internal/domain/fulfillment"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ViewService derives the three consumer-facing projections from one
// canonical snapshot. All three surfaces are thin read-only shapes over the
// same aggregation result.
type ViewService struct {
	cache  *SnapshotCache
	logger *zap.Logger
}

// NewViewService creates a view service over the snapshot cache.
func NewViewService(cache *SnapshotCache, logger *zap.Logger) *ViewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewService{cache: cache, logger: logger}
}

// Register returns the detailed audit register, optionally filtered by
// anomaly inclusion and exception type.
func (s *ViewService) Register(ctx context.Context, asOf time.Time, filter RegisterFilter) (*RegisterResult, error) {
	snap, err := s.cache.Get(ctx, asOf)
	if err != nil {
		return nil, err
	}

	entries := make([]fulfillment.Entry, 0, len(snap.Entries))
	anomalies := 0
	for i := range snap.Entries {
		entry := &snap.Entries[i]
		if !filter.IncludeAnomalies && entry.HasAnomaly {
			continue
		}
		if filter.ExceptionType != nil && !entry.HasException(*filter.ExceptionType) {
			continue
		}
		entries = append(entries, *entry)
		if entry.HasAnomaly {
			anomalies++
		}
	}

	return &RegisterResult{
		Data:           entries,
		AsOfDate:       snap.AsOf,
		TotalEntries:   len(entries),
		AnomaliesCount: anomalies,
		GeneratedAt:    time.Now().UTC(),
	}, nil
}

// Backlog returns only entries with pending quantity, reduced to the backlog
// shape, plus the aggregate summary.
func (s *ViewService) Backlog(ctx context.Context, asOf time.Time) (*BacklogResult, error) {
	snap, err := s.cache.Get(ctx, asOf)
	if err != nil {
		return nil, err
	}

	summary := BacklogSummary{
		TotalOrdered:    decimal.Zero,
		TotalDispatched: decimal.Zero,
		TotalPending:    decimal.Zero,
	}

	rows := make([]BacklogRow, 0)
	for i := range snap.Entries {
		entry := &snap.Entries[i]
		if !entry.TotalPending.IsPositive() {
			continue
		}
		rows = append(rows, BacklogRow{
			CustomerID:      entry.CustomerID,
			CustomerName:    entry.CustomerName,
			ProductID:       entry.ProductID,
			ProductName:     entry.ProductName,
			ProductSKU:      entry.ProductSKU,
			PrimaryPONumber: entry.PrimaryPONumber,
			PrimaryPODate:   entry.PrimaryPODate,
			TotalOrdered:    entry.TotalOrdered,
			TotalDispatched: entry.TotalDispatched,
			TotalPending:    entry.TotalPending,
			SalesPerson:     entry.SalesPerson,
		})
		summary.TotalOrdered = summary.TotalOrdered.Add(entry.TotalOrdered)
		summary.TotalDispatched = summary.TotalDispatched.Add(entry.TotalDispatched)
		summary.TotalPending = summary.TotalPending.Add(entry.TotalPending)
	}
	summary.TotalEntries = len(rows)

	return &BacklogResult{
		Data:        rows,
		Summary:     summary,
		AsOfDate:    snap.AsOf,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// Planning re-buckets the snapshot's order lines into monthly demand signals
// grouped by product, independent of customer.
func (s *ViewService) Planning(ctx context.Context, asOf time.Time) (*PlanningResult, error) {
	snap, err := s.cache.Get(ctx, asOf)
	if err != nil {
		return nil, err
	}

	buckets := fulfillment.BuildPlanningBuckets(snap.Entries)

	signals := make([]ProductPlanningSignal, 0)
	for _, b := range buckets {
		if n := len(signals); n > 0 && signals[n-1].ProductID == b.ProductID {
			signals[n-1].Months = append(signals[n-1].Months, b)
			continue
		}
		signals = append(signals, ProductPlanningSignal{
			ProductID:   b.ProductID,
			ProductName: b.ProductName,
			ProductSKU:  b.ProductSKU,
			Months:      []fulfillment.PlanningBucket{b},
		})
	}

	return &PlanningResult{
		Data:        signals,
		AsOfDate:    snap.AsOf,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
