package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/factory-data-core/internal/apperr"
	"github.com/nerrad567/factory-data-core/internal/auth"
	"github.com/nerrad567/factory-data-core/internal/factorydata"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/config"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/database"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/logging"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/metrics"
	"github.com/nerrad567/factory-data-core/internal/swm"
	_ "github.com/nerrad567/factory-data-core/migrations"
)

const (
	testSecret = "test-secret-key-at-least-32-characters-long"
	testVin    = "1HGCM82633A004352"
)

// fakeMirror returns canned SWM results.
type fakeMirror struct {
	mu        sync.Mutex
	createErr error
	updateOK  bool
	deleteOK  bool
	deleted   []string
}

func (m *fakeMirror) CreateVehicle(context.Context, swm.CreateVehicleRequest) (bool, error) {
	return m.createErr == nil, m.createErr
}

func (m *fakeMirror) UpdateVehicle(context.Context, swm.UpdateVehicleRequest) (bool, error) {
	return m.updateOK, nil
}

func (m *fakeMirror) DeleteVehicle(_ context.Context, req swm.DeleteVehicleRequest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, req.Vin)
	return m.deleteOK, nil
}

// fakeCheck is a HealthChecker returning err.
type fakeCheck struct{ err error }

func (c fakeCheck) HealthCheck(context.Context) error { return c.err }

type testEnv struct {
	srv     *Server
	handler http.Handler
	mirror  *fakeMirror
	db      *database.DB
}

// testServer creates a Server over a real service backed by in-memory SQLite.
func testServer(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(database.Config{Path: ":memory:", BusyTimeout: 1})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})
	if _, err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	repo := factorydata.NewSQLiteRepository(db.DB)
	validator := factorydata.NewValidator(config.FactoryDataConfig{
		AllowedDeviceTypes: []string{"dashcam", "telematics", "obd"},
		ImeiMinLength:      3,
		SerialMinLength:    6,
		DefaultPageSize:    20,
		MaxPageSize:        5000,
	}, factorydata.NewSQLiteMandatoryParams(db.DB), repo)
	mirror := &fakeMirror{updateOK: true, deleteOK: true}
	svc := factorydata.NewService(validator, repo, mirror, nil, nil)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testSecret, AccessTokenTTL: 15},
		},
		Logger:  logging.Discard(),
		Service: svc,
		Metrics: metrics.New(),
		Checks: map[string]HealthChecker{
			"database": db,
			"mqtt":     fakeCheck{err: errors.New("mqtt: client not connected")},
		},
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &testEnv{srv: srv, handler: srv.Handler(), mirror: mirror, db: db}
}

func tokenFor(t *testing.T, role auth.Role) string {
	t.Helper()
	token, err := auth.GenerateToken(auth.TokenParams{Subject: "line-admin", Role: role, TTL: time.Hour}, testSecret)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return token
}

// do performs a request with a bearer token for role; an empty role sends
// no Authorization header.
func (e *testEnv) do(t *testing.T, method, path string, role auth.Role, body any) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, role))
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)

	var env Envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("response is not an envelope: %v (%s)", err, w.Body.String())
		}
	}
	return w, env
}

func dashcamBody(serial, imei string) map[string]string {
	return map[string]string{
		"manufacturing_date": "2026/01/15",
		"model":              "DC-200",
		"imei":               imei,
		"serial_number":      serial,
		"platform_version":   "1.4.2",
		"iccid":              "8944500102198304826",
		"record_date":        "2026/02/01",
		"device_type":        "dashcam",
		"region":             "EU",
	}
}

func obdBody(serial, imei, vin string) map[string]string {
	return map[string]string{
		"model":         "OBD-7",
		"imei":          imei,
		"serial_number": serial,
		"device_type":   "obd",
		"region":        "US",
		"vin":           vin,
	}
}

// dataMap re-decodes envelope data into a generic map.
func dataMap(t *testing.T, env Envelope) map[string]any {
	t.Helper()
	raw, _ := json.Marshal(env.Data)
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("data is not an object: %v", err)
	}
	return m
}

// ─── Health & Metrics ─────────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp struct {
		Status     string            `json:"status"`
		Version    string            `json:"version"`
		Components map[string]string `json:"components"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Version != "test" {
		t.Errorf("health = %+v", resp)
	}
	if resp.Components["database"] != "ok" {
		t.Errorf("database = %q, want ok", resp.Components["database"])
	}
	if !strings.HasPrefix(resp.Components["mqtt"], "unhealthy") {
		t.Errorf("mqtt = %q, want unhealthy", resp.Components["mqtt"])
	}
}

func TestHealthDatabaseDown(t *testing.T) {
	env := testServer(t)
	env.db.Close() //nolint:errcheck // Simulate outage

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want 503", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := testServer(t)
	env.do(t, http.MethodGet, "/api/v1/factory-data", auth.RoleViewer, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	body := w.Body.String()
	want := `factorydata_http_requests_total{method="GET",route="/api/v1/factory-data`
	if !strings.Contains(body, want) {
		t.Errorf("metrics missing %q", want)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("metrics missing Go runtime collector")
	}
}

// ─── Auth ─────────────────────────────────────────────────────────

func TestAuth(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		role       auth.Role
		header     string
		wantStatus int
		wantCode   string
	}{
		{"no token", http.MethodGet, "/api/v1/factory-data", "", "", http.StatusUnauthorized, apperr.ErrUnauthorized.Code},
		{"garbage token", http.MethodGet, "/api/v1/factory-data", "", "Bearer nope", http.StatusUnauthorized, apperr.ErrUnauthorized.Code},
		{"basic scheme", http.MethodGet, "/api/v1/factory-data", "", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, apperr.ErrUnauthorized.Code},
		{"viewer cannot create", http.MethodPost, "/api/v1/factory-data", auth.RoleViewer, "", http.StatusForbidden, apperr.ErrForbidden.Code},
		{"operator cannot delete", http.MethodDelete, "/api/v1/vehicles/" + testVin, auth.RoleOperator, "", http.StatusForbidden, apperr.ErrForbidden.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}"))
			if tt.role != "" {
				req.Header.Set("Authorization", "Bearer "+tokenFor(t, tt.role))
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			env.handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp Envelope
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	env := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/factory-data", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, auth.RoleViewer))
	req.Header.Set(requestIDHeader, "trace-me-123")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if got := w.Header().Get(requestIDHeader); got != "trace-me-123" {
		t.Errorf("X-Request-ID = %q, want trace-me-123", got)
	}
	var resp Envelope
	json.Unmarshal(w.Body.Bytes(), &resp) //nolint:errcheck // asserted below
	if resp.RequestID != "trace-me-123" {
		t.Errorf("request_id = %q, want trace-me-123", resp.RequestID)
	}

	_, generated := env.do(t, http.MethodGet, "/api/v1/factory-data", auth.RoleViewer, nil)
	if len(generated.RequestID) != 36 {
		t.Errorf("generated request_id = %q, want a UUID", generated.RequestID)
	}
}

// ─── Create ───────────────────────────────────────────────────────

func TestCreateDashcam(t *testing.T) {
	env := testServer(t)

	w, resp := env.do(t, http.MethodPost, "/api/v1/factory-data", auth.RoleOperator, dashcamBody("DC0001", "356938035643809"))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", w.Code, w.Body.String())
	}
	if resp.Code != codeSuccess || resp.Reason != reasonSuccess {
		t.Errorf("envelope = %+v", resp)
	}

	data := dataMap(t, resp)
	record, _ := data["record"].(map[string]any)
	if record["serial_number"] != "DC0001" || record["state"] != "PROVISIONED" {
		t.Errorf("record = %v", record)
	}
	if record["factory_admin"] != "line-admin" {
		t.Errorf("factory_admin = %v, want token subject", record["factory_admin"])
	}
	if data["mirror"] != "skipped" {
		t.Errorf("mirror = %v, want skipped", data["mirror"])
	}

	hw, history := env.do(t, http.MethodGet, "/api/v1/factory-data/DC0001/history", auth.RoleViewer, nil)
	if hw.Code != http.StatusOK {
		t.Fatalf("history status = %d", hw.Code)
	}
	entries, _ := history.Data.([]any)
	if len(entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(entries))
	}
	if entries[0].(map[string]any)["action"] != "PROVISIONED" {
		t.Errorf("history action = %v", entries[0])
	}
}

func TestCreateErrors(t *testing.T) {
	env := testServer(t)
	env.do(t, http.MethodPost, "/api/v1/factory-data", auth.RoleOperator, dashcamBody("DC0001", "356938035643809"))

	missing := dashcamBody("DC0002", "356938035643810")
	delete(missing, "iccid")

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"duplicate serial", dashcamBody("DC0001", "356938035643810"), http.StatusConflict, apperr.ErrAlreadyExists.Code},
		{"mandatory missing", missing, http.StatusBadRequest, apperr.ErrMandatoryMissing.Code},
		{"bad imei", dashcamBody("DC0003", "12345"), http.StatusBadRequest, apperr.ErrInvalidImei.Code},
		{"unknown device type", map[string]string{"device_type": "toaster", "serial_number": "TS0001"}, http.StatusBadRequest, apperr.ErrInvalidDeviceType.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := env.do(t, http.MethodPost, "/api/v1/factory-data", auth.RoleOperator, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
			if resp.Data != nil {
				t.Errorf("data = %v, want none on validation failure", resp.Data)
			}
		})
	}
}

func TestCreateInvalidJSON(t *testing.T) {
	env := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/factory-data", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, auth.RoleOperator))
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if strings.Contains(w.Body.String(), "invalid character") {
		t.Error("decoder error leaked into response")
	}
}

func TestCreateMirrorFailureReturnsRecord(t *testing.T) {
	env := testServer(t)
	env.mirror.createErr = apperr.ErrSwmCreate.Wrap(errors.New("connection refused"))

	w, resp := env.do(t, http.MethodPost, "/api/v1/factory-data", auth.RoleOperator, obdBody("OB0001", "356938035643811", testVin))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 (%s)", w.Code, w.Body.String())
	}
	if resp.Code != apperr.ErrSwmCreate.Code {
		t.Errorf("code = %q", resp.Code)
	}
	if len(resp.Errors) != 1 || resp.Errors[0].Component != "swm" {
		t.Errorf("errors = %+v, want one swm entry", resp.Errors)
	}
	if strings.Contains(w.Body.String(), "connection refused") {
		t.Error("cause leaked into response")
	}

	record, _ := dataMap(t, resp)["record"].(map[string]any)
	if record["serial_number"] != "OB0001" {
		t.Errorf("record = %v, want the committed record", record)
	}
}

func TestCreateSessionFailure(t *testing.T) {
	env := testServer(t)
	env.mirror.createErr = apperr.ErrSessionNull

	w, resp := env.do(t, http.MethodPost, "/api/v1/factory-data", auth.RoleOperator, obdBody("OB0001", "356938035643811", testVin))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if resp.Reason != "SESSION_NULL" {
		t.Errorf("reason = %q", resp.Reason)
	}
}

func TestCreateGuest(t *testing.T) {
	env := testServer(t)

	noVin := obdBody("OB0001", "356938035643811", "")
	w, resp := env.do(t, http.MethodPost, "/api/v1/factory-data/guest", auth.RoleOperator, noVin)
	if w.Code != http.StatusBadRequest || resp.Code != apperr.ErrInvalidVin.Code {
		t.Fatalf("guest without vin: status = %d code = %q", w.Code, resp.Code)
	}

	w, resp = env.do(t, http.MethodPost, "/api/v1/factory-data/guest", auth.RoleOperator, obdBody("OB0001", "356938035643811", testVin))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", w.Code, w.Body.String())
	}
	if dataMap(t, resp)["mirror"] != "mirrored" {
		t.Errorf("mirror = %v, want mirrored", dataMap(t, resp)["mirror"])
	}
}

// ─── Search ───────────────────────────────────────────────────────

func seed(t *testing.T, env *testEnv) {
	t.Helper()
	for _, body := range []any{
		dashcamBody("DC0001", "356938035643801"),
		dashcamBody("DC0002", "356938035643802"),
		dashcamBody("DC0003", "356938035643803"),
		obdBody("OB0001", "356938035643804", testVin),
	} {
		if w, _ := env.do(t, http.MethodPost, "/api/v1/factory-data", auth.RoleOperator, body); w.Code != http.StatusCreated {
			t.Fatalf("seed status = %d (%s)", w.Code, w.Body.String())
		}
	}
}

func TestSearch(t *testing.T) {
	env := testServer(t)
	seed(t, env)

	tests := []struct {
		name      string
		query     string
		wantCount int64
		wantItems int
		wantFirst bool
		wantLast  bool
	}{
		{"all", "", 4, 4, true, true},
		{"by serial", "?input_type=serial_number&input=DC0002", 1, 1, true, true},
		{"by imei list", "?input_type=imei&input=356938035643801,356938035643804", 2, 2, true, true},
		{"by device type like", "?like_fields=device_type&like_values=dash", 3, 3, true, true},
		{"first page", "?size=2&page=1&sort_by=serial_number&order_by=desc", 4, 2, true, false},
		{"last page", "?size=2&page=2", 4, 2, false, true},
		{"state filter", "?state=decommissioned", 0, 0, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := env.do(t, http.MethodGet, "/api/v1/factory-data"+tt.query, auth.RoleViewer, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
			}
			if resp.Pagination == nil {
				t.Fatal("pagination missing")
			}
			if resp.Pagination.Count != tt.wantCount {
				t.Errorf("count = %d, want %d", resp.Pagination.Count, tt.wantCount)
			}
			if resp.Pagination.FirstPage != tt.wantFirst || resp.Pagination.LastPage != tt.wantLast {
				t.Errorf("pagination = %+v", resp.Pagination)
			}
			items, _ := resp.Data.([]any)
			if len(items) != tt.wantItems {
				t.Errorf("items = %d, want %d", len(items), tt.wantItems)
			}
		})
	}
}

func TestSearchSortOrder(t *testing.T) {
	env := testServer(t)
	seed(t, env)

	_, resp := env.do(t, http.MethodGet, "/api/v1/factory-data?size=2&sort_by=serial_number&order_by=desc", auth.RoleViewer, nil)
	items, _ := resp.Data.([]any)
	if len(items) != 2 {
		t.Fatalf("items = %d", len(items))
	}
	if got := items[0].(map[string]any)["serial_number"]; got != "OB0001" {
		t.Errorf("first serial = %v, want OB0001", got)
	}
}

func TestSearchValidation(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		name     string
		query    string
		wantCode string
	}{
		{"page zero", "?page=0", apperr.ErrInvalidPage.Code},
		{"size too large", "?size=5001", apperr.ErrInvalidSize.Code},
		{"bad sort", "?sort_by=password", apperr.ErrInvalidSortField.Code},
		{"bad input type", "?input_type=colour&input=red", apperr.ErrInvalidInputType.Code},
		{"bad state", "?state=exploded", apperr.ErrInvalidState.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := env.do(t, http.MethodGet, "/api/v1/factory-data"+tt.query, auth.RoleViewer, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestCountAndStateCount(t *testing.T) {
	env := testServer(t)
	seed(t, env)

	_, resp := env.do(t, http.MethodGet, "/api/v1/factory-data/count?like_fields=device_type&like_values=obd", auth.RoleViewer, nil)
	if got := dataMap(t, resp)["count"]; got != float64(1) {
		t.Errorf("count = %v, want 1", got)
	}

	if w, _ := env.do(t, http.MethodDelete, "/api/v1/vehicles/"+testVin, auth.RoleAdmin, nil); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}

	_, resp = env.do(t, http.MethodGet, "/api/v1/factory-data/state-count", auth.RoleViewer, nil)
	states := dataMap(t, resp)
	want := map[string]float64{"PROVISIONED": 3, "DECOMMISSIONED": 1, "ACTIVE": 0, "SUSPENDED": 0}
	for state, n := range want {
		if states[state] != n {
			t.Errorf("state %s = %v, want %v", state, states[state], n)
		}
	}
}

func TestHistoryValidation(t *testing.T) {
	env := testServer(t)

	w, resp := env.do(t, http.MethodGet, "/api/v1/factory-data/DC0001/history?limit=abc", auth.RoleViewer, nil)
	if w.Code != http.StatusBadRequest || resp.Code != apperr.ErrInvalidRequest.Code {
		t.Errorf("bad limit: status = %d code = %q", w.Code, resp.Code)
	}

	w, resp = env.do(t, http.MethodGet, "/api/v1/factory-data/a-b/history", auth.RoleViewer, nil)
	if w.Code != http.StatusBadRequest || resp.Code != apperr.ErrInvalidSerial.Code {
		t.Errorf("bad serial: status = %d code = %q", w.Code, resp.Code)
	}
}

// ─── Vehicles ─────────────────────────────────────────────────────

func TestUpdateVehicle(t *testing.T) {
	env := testServer(t)
	seed(t, env)

	w, resp := env.do(t, http.MethodPut, "/api/v1/vehicles/"+testVin, auth.RoleAdmin, map[string]string{"region": "APAC"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	record, _ := dataMap(t, resp)["record"].(map[string]any)
	if record["region"] != "APAC" {
		t.Errorf("region = %v, want APAC", record["region"])
	}

	w, resp = env.do(t, http.MethodPut, "/api/v1/vehicles/"+testVin, auth.RoleAdmin, map[string]string{})
	if w.Code != http.StatusBadRequest || resp.Code != apperr.ErrInvalidRequest.Code {
		t.Errorf("empty patch: status = %d code = %q", w.Code, resp.Code)
	}
}

func TestUpdateVehicleUnconfirmed(t *testing.T) {
	env := testServer(t)
	seed(t, env)
	env.mirror.updateOK = false

	w, resp := env.do(t, http.MethodPut, "/api/v1/vehicles/"+testVin, auth.RoleAdmin, map[string]string{"region": "APAC"})
	if w.Code != http.StatusBadGateway || resp.Code != apperr.ErrSwmUpdate.Code {
		t.Fatalf("status = %d code = %q, want 502 %s", w.Code, resp.Code, apperr.ErrSwmUpdate.Code)
	}
	if resp.Data == nil {
		t.Error("committed record missing from partial response")
	}
}

func TestDeleteVehicle(t *testing.T) {
	tests := []struct {
		name       string
		deleteOK   bool
		wantMirror string
	}{
		{"mirrored", true, "mirrored"},
		{"unknown to swm", false, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t)
			seed(t, env)
			env.mirror.deleteOK = tt.deleteOK

			w, resp := env.do(t, http.MethodDelete, "/api/v1/vehicles/"+strings.ToLower(testVin), auth.RoleAdmin, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
			}
			data := dataMap(t, resp)
			if data["mirror"] != tt.wantMirror {
				t.Errorf("mirror = %v, want %s", data["mirror"], tt.wantMirror)
			}
			record, _ := data["record"].(map[string]any)
			if record["state"] != "DECOMMISSIONED" {
				t.Errorf("state = %v, want DECOMMISSIONED", record["state"])
			}
			if len(env.mirror.deleted) != 1 || env.mirror.deleted[0] != testVin {
				t.Errorf("mirror deletes = %v", env.mirror.deleted)
			}
		})
	}
}

func TestDeleteVehicleNotFound(t *testing.T) {
	env := testServer(t)

	w, resp := env.do(t, http.MethodDelete, "/api/v1/vehicles/"+testVin, auth.RoleAdmin, nil)
	if w.Code != http.StatusNotFound || resp.Code != apperr.ErrNotFound.Code {
		t.Errorf("status = %d code = %q, want 404 %s", w.Code, resp.Code, apperr.ErrNotFound.Code)
	}
}

// ─── Server lifecycle ─────────────────────────────────────────────

func TestNewRequiresDeps(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{}},
		{"no service", Deps{Logger: logging.Discard()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  *apperr.Error
		want int
	}{
		{apperr.ErrInvalidPage, http.StatusBadRequest},
		{apperr.ErrAlreadyExists.Withf("dup"), http.StatusConflict},
		{apperr.ErrNotFound, http.StatusNotFound},
		{apperr.ErrDatabase, http.StatusInternalServerError},
		{apperr.ErrSwmDelete, http.StatusBadGateway},
		{apperr.ErrSessionNull, http.StatusServiceUnavailable},
		{apperr.ErrUnauthorized, http.StatusUnauthorized},
		{apperr.ErrForbidden, http.StatusForbidden},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%s) = %d, want %d", tt.err.Code, got, tt.want)
		}
	}
}

func TestCloseNotStarted(t *testing.T) {
	env := testServer(t)
	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() should fail before Start()")
	}
}
