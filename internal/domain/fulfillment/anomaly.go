package fulfillment

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExceptionType identifies one anomaly rule an entry can match.
type ExceptionType string

const (
	// ExceptionOverDispatch flags dispatched quantity exceeding ordered quantity.
	ExceptionOverDispatch ExceptionType = "over_dispatch"
	// ExceptionDelayedDispatch flags pending quantity against an order older
	// than the staleness threshold.
	ExceptionDelayedDispatch ExceptionType = "delayed_dispatch"
	// ExceptionExcessivePartial flags many small partial dispatches against
	// one entry.
	ExceptionExcessivePartial ExceptionType = "excessive_partial"
)

// ParseExceptionType validates a wire-level exception type value.
func ParseExceptionType(s string) (ExceptionType, bool) {
	switch ExceptionType(s) {
	case ExceptionOverDispatch, ExceptionDelayedDispatch, ExceptionExcessivePartial:
		return ExceptionType(s), true
	default:
		return "", false
	}
}

// AnomalyConfig holds the externalized rule thresholds. The original system
// kept these as implicit constants; they are configuration here so boundary
// values can be exercised deterministically in tests.
type AnomalyConfig struct {
	// StalenessDays is how old the oldest contributing order may be, relative
	// to the as-of date, before a pending entry counts as delayed.
	StalenessDays int
	// FragmentationThreshold is the number of distinct invoice allocations
	// above which a partially dispatched entry counts as excessively split.
	FragmentationThreshold int
	// RoundingTolerance absorbs decimal rounding when comparing ordered and
	// dispatched quantities.
	RoundingTolerance decimal.Decimal
}

// DefaultAnomalyConfig returns the documented defaults: 30 days staleness,
// more than 5 allocations counts as fragmented, 0.001 quantity tolerance.
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		StalenessDays:          30,
		FragmentationThreshold: 5,
		RoundingTolerance:      decimal.NewFromFloat(0.001),
	}
}

// DetectionResult is the outcome of evaluating one entry.
type DetectionResult struct {
	HasAnomaly bool
	Message    string
	Exceptions []ExceptionType
}

// AnomalyDetector evaluates entries against the configured rule thresholds.
// An entry may match several exception types at once.
type AnomalyDetector struct {
	config AnomalyConfig
}

// NewAnomalyDetector creates a detector with the given thresholds.
func NewAnomalyDetector(config AnomalyConfig) *AnomalyDetector {
	if config.StalenessDays <= 0 {
		config.StalenessDays = DefaultAnomalyConfig().StalenessDays
	}
	if config.FragmentationThreshold <= 0 {
		config.FragmentationThreshold = DefaultAnomalyConfig().FragmentationThreshold
	}
	if !config.RoundingTolerance.IsPositive() {
		config.RoundingTolerance = DefaultAnomalyConfig().RoundingTolerance
	}
	return &AnomalyDetector{config: config}
}

// Config returns the effective thresholds.
func (d *AnomalyDetector) Config() AnomalyConfig {
	return d.config
}

// Detect evaluates the entry as of the given date.
func (d *AnomalyDetector) Detect(entry *Entry, asOf time.Time) DetectionResult {
	var (
		exceptions []ExceptionType
		messages   []string
	)

	if entry.DispatchStatus == DispatchStatusOver {
		exceptions = append(exceptions, ExceptionOverDispatch)
		messages = append(messages, fmt.Sprintf(
			"dispatched %s exceeds ordered %s",
			entry.TotalDispatched.StringFixed(2), entry.TotalOrdered.StringFixed(2)))
	}

	if entry.TotalPending.IsPositive() {
		if oldest := entry.OldestOrderDate(); oldest != nil {
			age := asOf.Sub(*oldest)
			if age > time.Duration(d.config.StalenessDays)*24*time.Hour {
				exceptions = append(exceptions, ExceptionDelayedDispatch)
				messages = append(messages, fmt.Sprintf(
					"pending %s against order dated %s, older than %d days",
					entry.TotalPending.StringFixed(2), oldest.Format("2006-01-02"), d.config.StalenessDays))
			}
		}
	}

	if entry.DispatchStatus == DispatchStatusPartial {
		if n := entry.AllocationCount(); n > d.config.FragmentationThreshold {
			exceptions = append(exceptions, ExceptionExcessivePartial)
			messages = append(messages, fmt.Sprintf(
				"%d partial dispatches exceed threshold of %d", n, d.config.FragmentationThreshold))
		}
	}

	return DetectionResult{
		HasAnomaly: len(exceptions) > 0,
		Message:    strings.Join(messages, "; "),
		Exceptions: exceptions,
	}
}
