package fulfillment

import (
	"context"
	"sort"
	"time"

	"github.com/fulfillment/backend/internal/domain/fulfillment"
	"github.com/fulfillment/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AggregationService builds the reconciled fulfillment entries from source
// order and invoice records. Aggregate is a pure function of the source data
// at the cutoff; caching is the caller's concern.
type AggregationService struct {
	source   fulfillment.SourceReader
	detector *fulfillment.AnomalyDetector
	logger   *zap.Logger
}

// AggregationServiceOption is a functional option for AggregationService.
type AggregationServiceOption func(*AggregationService)

// WithAggregationLogger sets the logger.
func WithAggregationLogger(logger *zap.Logger) AggregationServiceOption {
	return func(s *AggregationService) {
		s.logger = logger
	}
}

// NewAggregationService creates an aggregation service.
func NewAggregationService(source fulfillment.SourceReader, detector *fulfillment.AnomalyDetector, opts ...AggregationServiceOption) *AggregationService {
	s := &AggregationService{
		source:   source,
		detector: detector,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeAsOfDate truncates the as-of date to UTC day granularity. All
// snapshot keys and source cutoffs use this normalized value so the same
// calendar day always hits the same snapshot.
func NormalizeAsOfDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type pairKey struct {
	customerID uuid.UUID
	productID  uuid.UUID
}

// Aggregate builds one fulfillment entry per (customer, product) pair as of
// the given date. The as-of date must not be in the future.
func (s *AggregationService) Aggregate(ctx context.Context, asOf time.Time) ([]fulfillment.Entry, error) {
	asOf = NormalizeAsOfDate(asOf)
	if asOf.After(NormalizeAsOfDate(time.Now())) {
		return nil, shared.ErrFutureAsOfDate
	}

	lines, err := s.source.OrderLines(ctx, asOf)
	if err != nil {
		s.logger.Error("failed to fetch order lines", zap.Time("as_of", asOf), zap.Error(err))
		return nil, shared.ErrSourceUnavailable
	}

	allocations, err := s.source.InvoiceAllocations(ctx, asOf)
	if err != nil {
		s.logger.Error("failed to fetch invoice allocations", zap.Time("as_of", asOf), zap.Error(err))
		return nil, shared.ErrSourceUnavailable
	}

	allocationsByLine := make(map[uuid.UUID][]fulfillment.SourceInvoiceAllocation, len(allocations))
	for _, a := range allocations {
		allocationsByLine[a.OrderLineID] = append(allocationsByLine[a.OrderLineID], a)
	}

	groups := make(map[pairKey]*fulfillment.Entry)
	pos := make(map[pairKey][]poCandidate)
	for _, src := range lines {
		if !src.CustomerKnown || !src.ProductKnown {
			// Data-integrity gap: a reporting tool prefers a partial result
			// over failing the whole computation.
			s.logger.Warn("excluding order line with dangling reference",
				zap.String("order_line_id", src.OrderLineID.String()),
				zap.String("sales_order_number", src.SalesOrderNumber),
				zap.Bool("customer_known", src.CustomerKnown),
				zap.Bool("product_known", src.ProductKnown),
			)
			continue
		}

		key := pairKey{customerID: src.CustomerID, productID: src.ProductID}
		entry, ok := groups[key]
		if !ok {
			entry = &fulfillment.Entry{
				CustomerID:       src.CustomerID,
				CustomerName:     src.CustomerName,
				ProductID:        src.ProductID,
				ProductName:      src.ProductName,
				ProductSKU:       src.ProductSKU,
				SalesPerson:      src.SalesPerson,
				SalesPersonEmail: src.SalesPersonEmail,
				TotalOrdered:     decimal.Zero,
				TotalDispatched:  decimal.Zero,
				TotalPending:     decimal.Zero,
			}
			groups[key] = entry
		}

		line := s.buildOrderLine(src, allocationsByLine[src.OrderLineID])
		entry.LineItems = append(entry.LineItems, line)

		if src.PONumber != "" {
			pos[key] = append(pos[key], poCandidate{
				poNumber: src.PONumber,
				poDate:   src.PODate,
				orderID:  src.SalesOrderID,
				lineID:   src.OrderLineID,
				quantity: src.Quantity,
			})
		}
	}

	entries := make([]fulfillment.Entry, 0, len(groups))
	for key, entry := range groups {
		entry.AllPOs = mergePOs(pos[key])
		s.finalizeEntry(entry, asOf)
		entries = append(entries, *entry)
	}

	sortEntries(entries)

	s.logger.Debug("aggregation complete",
		zap.Time("as_of", asOf),
		zap.Int("entries", len(entries)),
		zap.Int("order_lines", len(lines)),
		zap.Int("allocations", len(allocations)),
	)

	return entries, nil
}

// buildOrderLine folds the invoice allocations into one order line.
func (s *AggregationService) buildOrderLine(src fulfillment.SourceOrderLine, allocs []fulfillment.SourceInvoiceAllocation) fulfillment.OrderLine {
	line := fulfillment.OrderLine{
		SalesOrderID:       src.SalesOrderID,
		SalesOrderNumber:   src.SalesOrderNumber,
		SalesOrderDate:     src.OrderDate,
		SalesOrderItemID:   src.OrderLineID,
		OrderedQuantity:    src.Quantity,
		DispatchedQuantity: decimal.Zero,
		Invoices:           make([]fulfillment.InvoiceAllocation, 0, len(allocs)),
	}

	for _, a := range allocs {
		line.DispatchedQuantity = line.DispatchedQuantity.Add(a.Quantity)
		line.Invoices = append(line.Invoices, fulfillment.InvoiceAllocation{
			InvoiceID:     a.InvoiceID,
			InvoiceNumber: a.InvoiceNumber,
			InvoiceDate:   a.InvoiceDate,
			Quantity:      a.Quantity,
		})
	}

	sort.Slice(line.Invoices, func(i, j int) bool {
		if !line.Invoices[i].InvoiceDate.Equal(line.Invoices[j].InvoiceDate) {
			return line.Invoices[i].InvoiceDate.Before(line.Invoices[j].InvoiceDate)
		}
		return line.Invoices[i].InvoiceNumber < line.Invoices[j].InvoiceNumber
	})

	line.PendingQuantity = line.OrderedQuantity.Sub(line.DispatchedQuantity)
	if line.PendingQuantity.IsNegative() {
		line.PendingQuantity = decimal.Zero
	}

	return line
}

// finalizeEntry orders the lines, derives the totals and the primary PO, and
// runs anomaly detection.
func (s *AggregationService) finalizeEntry(entry *fulfillment.Entry, asOf time.Time) {
	sort.Slice(entry.LineItems, func(i, j int) bool {
		a, b := &entry.LineItems[i], &entry.LineItems[j]
		if !a.SalesOrderDate.Equal(b.SalesOrderDate) {
			return a.SalesOrderDate.Before(b.SalesOrderDate)
		}
		return a.SalesOrderItemID.String() < b.SalesOrderItemID.String()
	})

	entry.TotalOrdered = decimal.Zero
	entry.TotalDispatched = decimal.Zero
	for i := range entry.LineItems {
		entry.TotalOrdered = entry.TotalOrdered.Add(entry.LineItems[i].OrderedQuantity)
		entry.TotalDispatched = entry.TotalDispatched.Add(entry.LineItems[i].DispatchedQuantity)
	}

	// Pending never goes negative: over-dispatch surfaces only through the
	// status and anomaly flags.
	entry.TotalPending = entry.TotalOrdered.Sub(entry.TotalDispatched)
	if entry.TotalPending.IsNegative() {
		entry.TotalPending = decimal.Zero
	}

	if len(entry.AllPOs) > 0 {
		entry.PrimaryPONumber = entry.AllPOs[0].PONumber
		entry.PrimaryPODate = entry.AllPOs[0].PODate
	}

	entry.DispatchStatus = fulfillment.ClassifyDispatchStatus(
		entry.TotalOrdered, entry.TotalDispatched, s.detector.Config().RoundingTolerance)

	result := s.detector.Detect(entry, asOf)
	entry.HasAnomaly = result.HasAnomaly
	entry.AnomalyMessage = result.Message
	entry.Exceptions = result.Exceptions
}

// poCandidate is a PO reference from one contributing order line before
// merging and ordering.
type poCandidate struct {
	poNumber string
	poDate   *time.Time
	orderID  uuid.UUID
	lineID   uuid.UUID
	quantity decimal.Decimal
}

// mergePOs builds the ordered PO list for an entry. Candidates sharing an
// order and PO number merge into one reference with summed quantity. The
// first reference is the primary PO: earliest PO date wins, dateless POs sort
// last, ties fall to the lowest contributing order line identifier.
func mergePOs(candidates []poCandidate) []fulfillment.PORef {
	if len(candidates) == 0 {
		return nil
	}

	type poKey struct {
		orderID  uuid.UUID
		poNumber string
	}
	type merged struct {
		ref       fulfillment.PORef
		minLineID string
	}

	index := make(map[poKey]int)
	refs := make([]merged, 0, len(candidates))

	for _, c := range candidates {
		key := poKey{orderID: c.orderID, poNumber: c.poNumber}
		if i, ok := index[key]; ok {
			refs[i].ref.Quantity = refs[i].ref.Quantity.Add(c.quantity)
			if lid := c.lineID.String(); lid < refs[i].minLineID {
				refs[i].minLineID = lid
			}
			continue
		}
		index[key] = len(refs)
		refs = append(refs, merged{
			ref: fulfillment.PORef{
				PONumber: c.poNumber,
				PODate:   c.poDate,
				OrderID:  c.orderID,
				Quantity: c.quantity,
			},
			minLineID: c.lineID.String(),
		})
	}

	sort.Slice(refs, func(i, j int) bool {
		di, dj := refs[i].ref.PODate, refs[j].ref.PODate
		switch {
		case di == nil && dj != nil:
			return false
		case di != nil && dj == nil:
			return true
		case di != nil && dj != nil && !di.Equal(*dj):
			return di.Before(*dj)
		}
		return refs[i].minLineID < refs[j].minLineID
	})

	result := make([]fulfillment.PORef, len(refs))
	for i := range refs {
		result[i] = refs[i].ref
	}
	return result
}

func sortEntries(entries []fulfillment.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := &entries[i], &entries[j]
		if a.CustomerName != b.CustomerName {
			return a.CustomerName < b.CustomerName
		}
		if a.ProductName != b.ProductName {
			return a.ProductName < b.ProductName
		}
		if a.CustomerID != b.CustomerID {
			return a.CustomerID.String() < b.CustomerID.String()
		}
		return a.ProductID.String() < b.ProductID.String()
	})
}
