package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appfulfillment "github.com/fulfillment/backend/internal/application/fulfillment"
	domain "github.com/fulfillment/backend/internal/domain/fulfillment"
	"github.com/fulfillment/backend/internal/domain/shared"
	"github.com/fulfillment/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureEntries() []domain.Entry {
	jan := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	return []domain.Entry{
		{
			CustomerID:      uuid.New(),
			CustomerName:    "Acme Industries",
			ProductID:       uuid.New(),
			ProductName:     "Alloy Rod",
			ProductSKU:      "AR-10",
			TotalOrdered:    decimal.RequireFromString("100"),
			TotalDispatched: decimal.RequireFromString("100"),
			DispatchStatus:  domain.DispatchStatusFull,
		},
		{
			CustomerID:     uuid.New(),
			CustomerName:   "Borealis Ltd",
			ProductID:      uuid.New(),
			ProductName:    "Binding Wire",
			TotalOrdered:   decimal.RequireFromString("80"),
			TotalPending:   decimal.RequireFromString("80"),
			DispatchStatus: domain.DispatchStatusPending,
			HasAnomaly:     true,
			AnomalyMessage: "pending older than 30 days",
			Exceptions:     []domain.ExceptionType{domain.ExceptionDelayedDispatch},
			LineItems: []domain.OrderLine{
				{
					SalesOrderID:     uuid.New(),
					SalesOrderNumber: "SO-002",
					SalesOrderDate:   jan,
					SalesOrderItemID: uuid.New(),
					OrderedQuantity:  decimal.RequireFromString("80"),
					PendingQuantity:  decimal.RequireFromString("80"),
				},
			},
		},
	}
}

// newFulfillmentRouter builds a gin engine with the handler mounted the way
// the server does it.
func newFulfillmentRouter(t *testing.T, opts ...FulfillmentHandlerOption) (*gin.Engine, *appfulfillment.SnapshotCache) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	today := appfulfillment.NormalizeAsOfDate(time.Now().UTC())
	cache := appfulfillment.NewSnapshotCache(func(_ context.Context, asOf time.Time) ([]domain.Entry, error) {
		if asOf.After(today) {
			return nil, shared.ErrFutureAsOfDate
		}
		return fixtureEntries(), nil
	})

	h := NewFulfillmentHandler(
		appfulfillment.NewViewService(cache, nil),
		appfulfillment.NewExportService(cache, nil),
		cache,
		opts...,
	)

	engine := gin.New()
	api := engine.Group("/api/v1")
	h.RegisterRoutes(api)
	return engine, cache
}

func doRequest(t *testing.T, engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(method, path, nil)
	require.NoError(t, err)
	engine.ServeHTTP(w, req)
	return w
}

func TestFulfillmentHandler_GetRegister(t *testing.T) {
	engine, _ := newFulfillmentRouter(t)

	t.Run("returns full register by default", func(t *testing.T) {
		w := doRequest(t, engine, http.MethodGet, "/api/v1/fulfillment/register")
		assert.Equal(t, http.StatusOK, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)

		data := resp.Data.(map[string]interface{})
		assert.EqualValues(t, 2, data["total_entries"])
		assert.EqualValues(t, 1, data["anomalies_count"])
	})

	t.Run("excludes anomalies on request", func(t *testing.T) {
		w := doRequest(t, engine, http.MethodGet, "/api/v1/fulfillment/register?includeAnomalies=false")
		assert.Equal(t, http.StatusOK, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data := resp.Data.(map[string]interface{})
		assert.EqualValues(t, 1, data["total_entries"])
		assert.EqualValues(t, 0, data["anomalies_count"])
	})

	t.Run("filters by exception type", func(t *testing.T) {
		w := doRequest(t, engine, http.MethodGet, "/api/v1/fulfillment/register?exceptionType=delayed_dispatch")
		assert.Equal(t, http.StatusOK, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data := resp.Data.(map[string]interface{})
		assert.EqualValues(t, 1, data["total_entries"])
	})

	t.Run("rejects unknown exception type", func(t *testing.T) {
		w := doRequest(t, engine, http.MethodGet, "/api/v1/fulfillment/register?exceptionType=bogus")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects malformed asOfDate", func(t *testing.T) {
		w := doRequest(t, engine, http.MethodGet, "/api/v1/fulfillment/register?asOfDate=31-01-2026")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects future asOfDate", func(t *testing.T) {
		future := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
		w := doRequest(t, engine, http.MethodGet, "/api/v1/fulfillment/register?asOfDate="+future)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeFutureAsOfDate, resp.Error.Code)
	})
}

func TestFulfillmentHandler_GetBacklog(t *testing.T) {
	engine, _ := newFulfillmentRouter(t)

	w := doRequest(t, engine, http.MethodGet, "/api/v1/fulfillment/backlog")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})

	// Only the entry with pending quantity appears.
	rows := data["data"].([]interface{})
	assert.Len(t, rows, 1)
}

func TestFulfillmentHandler_GetPlanning(t *testing.T) {
	engine, _ := newFulfillmentRouter(t)

	w := doRequest(t, engine, http.MethodGet, "/api/v1/fulfillment/planning")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestFulfillmentHandler_ExportRegister(t *testing.T) {
	engine, _ := newFulfillmentRouter(t)

	t.Run("csv by default", func(t *testing.T) {
		w := doRequest(t, engine, http.MethodGet, "/api/v1/fulfillment/export")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
		assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")
		assert.Contains(t, w.Body.String(), "Customer ID")
	})

	t.Run("json on request", func(t *testing.T) {
		w := doRequest(t, engine, http.MethodGet, "/api/v1/fulfillment/export?format=json")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), ".json")
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		w := doRequest(t, engine, http.MethodGet, "/api/v1/fulfillment/export?format=xlsx")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("configured default format applies when none is requested", func(t *testing.T) {
		jsonEngine, _ := newFulfillmentRouter(t, WithDefaultExportFormat(appfulfillment.ExportFormatJSON))

		w := doRequest(t, jsonEngine, http.MethodGet, "/api/v1/fulfillment/export")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), ".json")

		// An explicit format still wins over the configured default.
		w = doRequest(t, jsonEngine, http.MethodGet, "/api/v1/fulfillment/export?format=csv")
		assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	})
}

func TestFulfillmentHandler_InvalidateCache(t *testing.T) {
	engine, cache := newFulfillmentRouter(t)

	// Warm the cache, then invalidate.
	warm := doRequest(t, engine, http.MethodGet, "/api/v1/fulfillment/register")
	require.Equal(t, http.StatusOK, warm.Code)

	w := doRequest(t, engine, http.MethodPost, "/api/v1/fulfillment/cache/invalidate")
	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Invalidations)
	assert.Equal(t, 0, stats.Cached)
}
