package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fulfillment/backend/internal/domain/fulfillment"
	"github.com/fulfillment/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ExportFormat selects the export encoding.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatJSON ExportFormat = "json"
)

// ParseExportFormat validates a wire-level format value. Empty defaults to CSV.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(s) {
	case "", "csv":
		return ExportFormatCSV, nil
	case "json":
		return ExportFormatJSON, nil
	default:
		return "", shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("unsupported export format %q", s))
	}
}

// unitOfMeasure is the constant unit column carried by every export row.
const unitOfMeasure = "MTS"

// csvHeader is the fixed export column order. Changing it breaks downstream
// spreadsheet consumers.
var csvHeader = []string{
	"Customer ID",
	"Customer Name",
	"Product ID",
	"Product Name",
	"Product SKU",
	"Primary PO Number",
	"Primary PO Date",
	"Total Order Received (MTS)",
	"Total Dispatched (MTS)",
	"Total Pending (MTS)",
	"Dispatch Status",
	"Has Anomaly",
	"Anomaly Message",
	"Sales Person",
	"Sales Person Email",
	"Unit of Measure",
	"Sales Order ID",
	"Sales Order Number",
	"Sales Order Date",
	"Sales Order Item ID",
	"Ordered Quantity (MTS)",
	"Dispatched Quantity (MTS)",
	"Pending Quantity (MTS)",
	"Invoice ID",
	"Invoice Number",
	"Invoice Date",
	"Invoice Quantity (MTS)",
}

// ExportDocument is the JSON export payload, mirroring the entry nesting
// (entry → line items → invoices) without flattening.
type ExportDocument struct {
	AsOfDate      time.Time           `json:"as_of_date"`
	GeneratedAt   time.Time           `json:"generated_at"`
	UnitOfMeasure string              `json:"unit_of_measure"`
	TotalEntries  int                 `json:"total_entries"`
	Entries       []fulfillment.Entry `json:"entries"`
}

// Export is one rendered export artifact.
type Export struct {
	ContentType string
	Filename    string
	Content     []byte
}

// ExportService renders the register snapshot as CSV or JSON.
type ExportService struct {
	cache  *SnapshotCache
	logger *zap.Logger
}

// NewExportService creates an export service over the snapshot cache.
func NewExportService(cache *SnapshotCache, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{cache: cache, logger: logger}
}

// Export renders the snapshot for the as-of date in the requested format.
func (s *ExportService) Export(ctx context.Context, asOf time.Time, format ExportFormat) (*Export, error) {
	snap, err := s.cache.Get(ctx, asOf)
	if err != nil {
		return nil, err
	}

	stamp := snap.AsOf.Format("2006-01-02")

	switch format {
	case ExportFormatJSON:
		doc := ExportDocument{
			AsOfDate:      snap.AsOf,
			GeneratedAt:   time.Now().UTC(),
			UnitOfMeasure: unitOfMeasure,
			TotalEntries:  len(snap.Entries),
			Entries:       snap.Entries,
		}
		content, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return &Export{
			ContentType: "application/json",
			Filename:    fmt.Sprintf("fulfillment_register_%s.json", stamp),
			Content:     content,
		}, nil
	default:
		return &Export{
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("fulfillment_register_%s.csv", stamp),
			Content:     renderCSV(snap.Entries),
		}, nil
	}
}

// renderCSV flattens entries into one row per invoice allocation, falling
// back to one row per order line without allocations, and one summary row for
// an entry without lines. Row count per entry is therefore
// max(1, Σ lines max(1, len(invoices))).
func renderCSV(entries []fulfillment.Entry) []byte {
	var buf bytes.Buffer
	writeCSVRow(&buf, csvHeader)

	for i := range entries {
		entry := &entries[i]
		if len(entry.LineItems) == 0 {
			writeCSVRow(&buf, entryColumns(entry, nil, nil))
			continue
		}
		for li := range entry.LineItems {
			line := &entry.LineItems[li]
			if len(line.Invoices) == 0 {
				writeCSVRow(&buf, entryColumns(entry, line, nil))
				continue
			}
			for ii := range line.Invoices {
				writeCSVRow(&buf, entryColumns(entry, line, &line.Invoices[ii]))
			}
		}
	}

	return buf.Bytes()
}

func entryColumns(entry *fulfillment.Entry, line *fulfillment.OrderLine, inv *fulfillment.InvoiceAllocation) []string {
	cols := []string{
		entry.CustomerID.String(),
		quoteText(entry.CustomerName),
		entry.ProductID.String(),
		quoteText(entry.ProductName),
		quoteText(entry.ProductSKU),
		quoteText(entry.PrimaryPONumber),
		formatDatePtr(entry.PrimaryPODate),
		entry.TotalOrdered.StringFixed(2),
		entry.TotalDispatched.StringFixed(2),
		entry.TotalPending.StringFixed(2),
		quoteText(entry.DispatchStatus.DisplayName()),
		formatBool(entry.HasAnomaly),
		quoteText(entry.AnomalyMessage),
		quoteText(entry.SalesPerson),
		quoteText(entry.SalesPersonEmail),
		unitOfMeasure,
	}

	if line != nil {
		cols = append(cols,
			line.SalesOrderID.String(),
			quoteText(line.SalesOrderNumber),
			line.SalesOrderDate.Format("2006-01-02"),
			line.SalesOrderItemID.String(),
			line.OrderedQuantity.StringFixed(2),
			line.DispatchedQuantity.StringFixed(2),
			line.PendingQuantity.StringFixed(2),
		)
	} else {
		cols = append(cols, "", "", "", "", "", "", "")
	}

	if inv != nil {
		cols = append(cols,
			inv.InvoiceID.String(),
			quoteText(inv.InvoiceNumber),
			inv.InvoiceDate.Format("2006-01-02"),
			inv.Quantity.StringFixed(2),
		)
	} else {
		cols = append(cols, "", "", "", "")
	}

	return cols
}

// writeCSVRow joins pre-escaped columns. Free-text columns arrive already
// quote-wrapped from quoteText; identifiers, dates and numbers are written
// bare.
func writeCSVRow(buf *bytes.Buffer, cols []string) {
	buf.WriteString(strings.Join(cols, ","))
	buf.WriteString("\r\n")
}

// quoteText quote-wraps a free-text field, doubling embedded quotes.
func quoteText(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func formatBool(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
