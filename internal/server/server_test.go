package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"smart-parking/internal/parking"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	server *Server
	clock  *testClock
	spans  *tracetest.SpanRecorder
}

func newTestEnv(t *testing.T, capacity int) *testEnv {
	t.Helper()

	clock := &testClock{now: time.Date(2024, time.March, 5, 9, 15, 0, 0, time.Local)}
	ledger, err := parking.NewLedger(capacity, parking.WithClock(clock.Now))
	require.NoError(t, err)

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	telemetry := parking.NewTelemetryProviderFrom("smart-parking-test", tp, mp)
	t.Cleanup(func() { _ = telemetry.Shutdown(context.Background()) })

	instrumented, err := parking.NewInstrumentedLedger(ledger, telemetry)
	require.NoError(t, err)

	srv := NewServer(Options{
		Port:        "0",
		ServiceName: "smart-parking-test",
		Ledger:      instrumented,
		Telemetry:   telemetry,
	})
	return &testEnv{server: srv, clock: clock, spans: spans}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) park(t *testing.T, plate, owner, category string) ParkResponse {
	t.Helper()
	form := url.Values{"plate": {plate}, "owner": {owner}, "type": {category}}
	rec := e.do(t, http.MethodPost, "/park", form.Encode())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ParkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func assertStandardHeaders(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "close", rec.Header().Get("Connection"))
	assert.Equal(t, strconv.Itoa(rec.Body.Len()), rec.Header().Get("Content-Length"))
}

func TestParkAndCapacity(t *testing.T) {
	env := newTestEnv(t, 1)

	first := env.park(t, "AB1", "Alice", "Car")
	assert.True(t, first.Success)
	assert.Equal(t, "Vehicle parked successfully", first.Message)
	assert.Equal(t, 1, first.Slot)
	assert.Empty(t, first.Code)

	second := env.park(t, "CD2", "Bob", "Bike")
	assert.False(t, second.Success)
	assert.Equal(t, "Parking lot full", second.Message)
	assert.Equal(t, CodeAtCapacity, second.Code)
	assert.Zero(t, second.Slot)
}

func TestParkDuplicatePlate(t *testing.T) {
	env := newTestEnv(t, 3)

	require.True(t, env.park(t, "AB1", "Alice", "Car").Success)
	dup := env.park(t, "AB1", "Alice", "Car")

	assert.False(t, dup.Success)
	assert.Equal(t, "Vehicle already parked", dup.Message)
	assert.Equal(t, CodeAlreadyParked, dup.Code)
}

func TestParkDecodesFormEncoding(t *testing.T) {
	env := newTestEnv(t, 2)

	rec := env.do(t, http.MethodPost, "/park", "plate=MH12+AB%261&owner=Jo%C3%A3o+Silva&type=Truck")
	require.Equal(t, http.StatusOK, rec.Code)

	vehicle := env.find(t, "MH12 AB&1")
	assert.Equal(t, "João Silva", vehicle.Owner)
	assert.Equal(t, "Truck", vehicle.Type)
}

func TestParkAcceptsSemicolonInPlate(t *testing.T) {
	env := newTestEnv(t, 2)

	rec := env.do(t, http.MethodPost, "/park", "plate=X;Y&owner=Bo&type=Car")
	var resp ParkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	doc := env.data(t)
	require.Len(t, doc.Vehicles, 1)
	assert.Equal(t, "X;Y", doc.Vehicles[0].Plate)
	assert.Equal(t, "Bo", doc.Vehicles[0].Owner)
}

func TestParkIgnoresContentType(t *testing.T) {
	env := newTestEnv(t, 2)

	req := httptest.NewRequest(http.MethodPost, "/park", strings.NewReader("plate=AB1&owner=Alice&type=Car"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	var resp ParkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestParkInvalidBody(t *testing.T) {
	env := newTestEnv(t, 2)

	rec := env.do(t, http.MethodPost, "/park", "plate=%zz")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ParkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid request body", resp.Message)
	assert.Equal(t, CodeInvalidRequest, resp.Code)
	assert.Zero(t, env.data(t).Total)
}

func TestExit(t *testing.T) {
	env := newTestEnv(t, 2)
	require.True(t, env.park(t, "AB1", "Alice", "Car").Success)

	env.clock.Advance(25 * time.Minute)
	rec := env.do(t, http.MethodPost, "/exit", "plate=AB1")
	require.Equal(t, http.StatusOK, rec.Code)
	assertStandardHeaders(t, rec)
	assert.Contains(t, rec.Body.String(), `"fee":20.00`)

	var resp FeeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Vehicle exited successfully", resp.Message)
	assert.Equal(t, Amount(20), resp.Fee)

	again := env.do(t, http.MethodPost, "/exit", "plate=AB1")
	assert.Contains(t, again.Body.String(), `"success":false`)
	assert.Contains(t, again.Body.String(), `"message":"Vehicle not found"`)
	assert.Contains(t, again.Body.String(), `"fee":0.00`)
	assert.Contains(t, again.Body.String(), `"code":"not_found"`)
}

func TestExitUnknownPlateOnEmptyLot(t *testing.T) {
	env := newTestEnv(t, 2)

	rec := env.do(t, http.MethodPost, "/exit", "plate=ZZ9")

	var resp FeeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "Vehicle not found", resp.Message)
	assert.Zero(t, resp.Fee)
}

func TestAvailableRecoversAfterExit(t *testing.T) {
	env := newTestEnv(t, 1)
	require.True(t, env.park(t, "AB1", "Alice", "Car").Success)
	assert.Equal(t, 0, env.data(t).Available)

	env.do(t, http.MethodPost, "/exit", "plate=AB1")

	doc := env.data(t)
	assert.Equal(t, 1, doc.Available)
	assert.Equal(t, 0, doc.Occupied)
	assert.Equal(t, 1, doc.Total)

	next := env.park(t, "CD2", "Bob", "Bike")
	assert.True(t, next.Success)
	assert.Equal(t, 2, next.Slot)
}

func TestFeeQuote(t *testing.T) {
	env := newTestEnv(t, 2)
	require.True(t, env.park(t, "TR1", "Tom", "Truck").Success)
	env.clock.Advance(150 * time.Minute)

	rec := env.do(t, http.MethodGet, "/fee?plate=TR1", "")
	assert.Contains(t, rec.Body.String(), `"fee":75.00`)
	assert.Contains(t, rec.Body.String(), `"message":"Fee calculated"`)

	missing := env.do(t, http.MethodGet, "/fee?plate=NOPE", "")
	assert.Contains(t, missing.Body.String(), `"code":"not_found"`)

	// Quoting does not release.
	assert.Equal(t, 1, env.data(t).Occupied)
}

func (e *testEnv) data(t *testing.T) SnapshotDocument {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/data", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assertStandardHeaders(t, rec)

	var doc SnapshotDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	return doc
}

func (e *testEnv) find(t *testing.T, plate string) VehicleDocument {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/find/"+url.PathEscape(plate), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Success bool            `json:"success"`
		Data    VehicleDocument `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	return resp.Data
}

func TestDataDocument(t *testing.T) {
	env := newTestEnv(t, 5)
	require.True(t, env.park(t, "C1", "Ann", "Car").Success)
	require.True(t, env.park(t, "B1", "Ben", "Bike").Success)
	require.True(t, env.park(t, "V1", "Val", "Van").Success)
	env.clock.Advance(2 * time.Hour)
	env.do(t, http.MethodPost, "/exit", "plate=C1")

	doc := env.data(t)
	assert.Equal(t, 5, doc.Capacity)
	assert.Equal(t, 2, doc.Occupied)
	assert.Equal(t, 3, doc.Available)
	assert.Equal(t, 3, doc.Total)
	assert.Equal(t, StatsDocument{Cars: 1, Bikes: 1, Trucks: 0, Active: 2, Revenue: 40}, doc.Stats)

	require.Len(t, doc.Vehicles, 3)
	exited := doc.Vehicles[0]
	assert.Equal(t, 1, exited.Slot)
	assert.False(t, exited.Parked)
	assert.Equal(t, "2024-03-05 09:15:00", exited.Entry)
	assert.Equal(t, "2024-03-05 11:15:00", exited.Exit)

	parked := doc.Vehicles[2]
	assert.Equal(t, "Van", parked.Type)
	assert.True(t, parked.Parked)
	assert.Equal(t, "-", parked.Exit)

	rec := env.do(t, http.MethodGet, "/data", "")
	assert.Contains(t, rec.Body.String(), `"revenue":40.00`)
}

func TestDataIsIdempotent(t *testing.T) {
	env := newTestEnv(t, 3)
	env.park(t, "AB1", "Alice", "Car")

	first := env.do(t, http.MethodGet, "/data", "").Body.String()
	second := env.do(t, http.MethodGet, "/data", "").Body.String()
	assert.Equal(t, first, second)
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t, 4)
	env.park(t, "AB1", "<script>alert(1)</script>", "Car")

	rec := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assertStandardHeaders(t, rec)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "<!DOCTYPE html>")
	assert.Contains(t, body, `id="capacity">4<`)
	assert.Contains(t, body, `id="usage-percent">25%<`)
	assert.Contains(t, body, "fetch('/data')")
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, "&lt;script&gt;alert(1)&lt;/script&gt;")
}

func TestFindByPlate(t *testing.T) {
	env := newTestEnv(t, 3)
	env.park(t, "AB1", "Alice", "Car")

	vehicle := env.find(t, "AB1")
	assert.Equal(t, 1, vehicle.Slot)
	assert.Equal(t, "Alice", vehicle.Owner)

	rec := env.do(t, http.MethodGet, "/find/NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "Vehicle not found", resp.Error)
	require.NotNil(t, resp.Meta)
	assert.NotEmpty(t, resp.Meta.RequestID)
	assert.NotEmpty(t, resp.Meta.TraceID)
}

func TestUnknownRoutes(t *testing.T) {
	env := newTestEnv(t, 2)

	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/nope"},
		{http.MethodGet, "/park"},
		{http.MethodPost, "/data"},
		{http.MethodDelete, "/"},
	} {
		rec := env.do(t, tc.method, tc.target, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tc.method, tc.target)
		assert.Equal(t, "404 Not Found", rec.Body.String())
		assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
		assertStandardHeaders(t, rec)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, 7)
	env.park(t, "AB1", "Alice", "Car")

	rec := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "smart-parking-test", health.Service)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	metrics := env.do(t, http.MethodGet, "/metrics", "").Body.String()
	assert.Contains(t, metrics, "smart_parking_capacity 7")
	assert.Contains(t, metrics, "smart_parking_active_vehicles 1")
	assert.Contains(t, metrics, "smart_parking_visits_total 1")
}

func TestRequestsAreTraced(t *testing.T) {
	env := newTestEnv(t, 2)
	env.park(t, "AB1", "Alice", "Car")

	var names []string
	for _, span := range env.spans.Ended() {
		names = append(names, span.Name())
	}
	assert.Contains(t, names, "ledger.admit")
	assert.Contains(t, names, "POST /park")
}

func TestAmountMarshalJSON(t *testing.T) {
	for amount, want := range map[Amount]string{0: "0.00", 20: "20.00", 12.5: "12.50", 33.333: "33.33"} {
		got, err := json.Marshal(amount)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestUsagePercent(t *testing.T) {
	assert.Equal(t, 0, usagePercent(0, 0))
	assert.Equal(t, 33, usagePercent(1, 3))
	assert.Equal(t, 67, usagePercent(2, 3))
	assert.Equal(t, 100, usagePercent(4, 4))
}
