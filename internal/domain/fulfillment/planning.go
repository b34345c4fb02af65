package fulfillment

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlanningBucket is confirmed demand for one product landing in one calendar
// month, independent of customer. Buckets are derived by re-bucketing order
// lines by the month of their order date; they are never persisted.
type PlanningBucket struct {
	ProductID    uuid.UUID       `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductSKU   string          `json:"product_sku,omitempty"`
	Month        string          `json:"month"` // YYYY-MM
	Ordered      decimal.Decimal `json:"ordered"`
	Dispatched   decimal.Decimal `json:"dispatched"`
	Pending      decimal.Decimal `json:"pending"`
	OrderCount   int             `json:"order_count"`
	OrderNumbers []string        `json:"order_numbers"`
}

// MonthKey formats a date as the planning bucket key.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// BuildPlanningBuckets re-buckets the entries' order lines by product and by
// calendar month of the order date. Dispatched quantity follows the order
// line's month, answering "how much demand landed in month M", not when the
// dispatch happened. Buckets are sorted by product name then month.
func BuildPlanningBuckets(entries []Entry) []PlanningBucket {
	type bucketKey struct {
		productID uuid.UUID
		month     string
	}

	buckets := make(map[bucketKey]*PlanningBucket)
	orders := make(map[bucketKey]map[string]struct{})

	for ei := range entries {
		entry := &entries[ei]
		for li := range entry.LineItems {
			line := &entry.LineItems[li]
			key := bucketKey{productID: entry.ProductID, month: MonthKey(line.SalesOrderDate)}

			b, ok := buckets[key]
			if !ok {
				b = &PlanningBucket{
					ProductID:   entry.ProductID,
					ProductName: entry.ProductName,
					ProductSKU:  entry.ProductSKU,
					Month:       key.month,
					Ordered:     decimal.Zero,
					Dispatched:  decimal.Zero,
					Pending:     decimal.Zero,
				}
				buckets[key] = b
				orders[key] = make(map[string]struct{})
			}

			b.Ordered = b.Ordered.Add(line.OrderedQuantity)
			b.Dispatched = b.Dispatched.Add(line.DispatchedQuantity)
			b.Pending = b.Pending.Add(line.PendingQuantity)
			orders[key][line.SalesOrderNumber] = struct{}{}
		}
	}

	result := make([]PlanningBucket, 0, len(buckets))
	for key, b := range buckets {
		numbers := make([]string, 0, len(orders[key]))
		for n := range orders[key] {
			numbers = append(numbers, n)
		}
		sort.Strings(numbers)
		b.OrderNumbers = numbers
		b.OrderCount = len(numbers)
		result = append(result, *b)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ProductName != result[j].ProductName {
			return result[i].ProductName < result[j].ProductName
		}
		if result[i].ProductID != result[j].ProductID {
			return result[i].ProductID.String() < result[j].ProductID.String()
		}
		return result[i].Month < result[j].Month
	})

	return result
}
