package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgAuth "github.com/khatabill/khatabill-backend/pkg/auth"
	"github.com/khatabill/khatabill-backend/pkg/config"
	"github.com/khatabill/khatabill-backend/pkg/db/testdb"
	pkgerrors "github.com/khatabill/khatabill-backend/pkg/errors"
	"github.com/khatabill/khatabill-backend/pkg/logger"
)

type memoryRedis struct {
	mu       sync.Mutex
	data     map[string]string
	counters map[string]int64
	pingErr  error
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}, counters: map[string]int64{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string {
	return "test:idempotency:" + scope + ":" + id
}

func (m *memoryRedis) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

func (m *memoryRedis) Ping(context.Context) error {
	return m.pingErr
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

var testNow = time.Date(2026, 10, 18, 9, 15, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "khatabill-identity", ExpirationMinutes: 30},
		Billing: config.BillingConfig{
			FreeInvoiceQuota: 10,
			AmountPlaces:     2,
		},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"http://localhost:4200"}},
		RateLimit: config.RateLimitConfig{Window: time.Minute, WriteLimit: 100, PerIPLimit: 1000},
	}
}

type testServer struct {
	handler  http.Handler
	cfg      *config.Config
	redis    *memoryRedis
	registry *prometheus.Registry
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	client := testdb.Open(t)
	logg := logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard})
	registry := prometheus.NewRegistry()
	svc, err := NewServices(client, cfg.Billing, logg, registry, func() time.Time { return testNow })
	require.NoError(t, err)

	store := newMemoryRedis()
	return &testServer{
		handler:  NewRouter(cfg, logg, client, store, registry, svc),
		cfg:      cfg,
		redis:    store,
		registry: registry,
	}
}

func (s *testServer) token(t *testing.T, shop uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(s.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:      uuid.New(),
		ShopOwnerID: shop,
	})
	require.NoError(t, err)
	return token
}

type call struct {
	method string
	path   string
	token  string
	key    string
	body   any
}

func (s *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.key != "" {
		req.Header.Set("Idempotency-Key", c.key)
	}
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)
	return resp
}

func decodeData[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope), resp.Body.String())
	return envelope.Data
}

type apiError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) apiError {
	t.Helper()
	var envelope struct {
		Error apiError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope), resp.Body.String())
	return envelope.Error
}

type idView struct {
	ID uuid.UUID `json:"id"`
}

type invoiceResp struct {
	ID            uuid.UUID       `json:"id"`
	Number        string          `json:"number"`
	CustomerName  string          `json:"customer_name"`
	PaymentMethod string          `json:"payment_method"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	CGST          decimal.Decimal `json:"cgst"`
	SGST          decimal.Decimal `json:"sgst"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	Items         []struct {
		Name      string          `json:"name"`
		Quantity  int             `json:"quantity"`
		LineTotal decimal.Decimal `json:"line_total"`
	} `json:"items"`
}

func (s *testServer) seedCustomerAndItem(t *testing.T, token string, stock int) (uuid.UUID, uuid.UUID) {
	t.Helper()
	resp := s.do(t, call{method: http.MethodPost, path: "/api/v1/customers", token: token, body: map[string]any{
		"name": "Meena", "phone": "9000000001",
	}})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	customer := decodeData[idView](t, resp)

	resp = s.do(t, call{method: http.MethodPost, path: "/api/v1/catalog/items", token: token, body: map[string]any{
		"name": "Pen", "hsn_code": "9608", "price": "10", "gst_rate": "18", "stock_qty": stock, "low_stock_threshold": 2,
	}})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	item := decodeData[idView](t, resp)
	return customer.ID, item.ID
}

func invoiceBody(customerID, itemID uuid.UUID, method string, qty int) map[string]any {
	return map[string]any{
		"customer_id":    customerID,
		"payment_method": method,
		"lines": []map[string]any{{
			"catalog_item_id": itemID,
			"name":            "Pen",
			"hsn_code":        "9608",
			"unit_price":      "10",
			"quantity":        qty,
			"gst_rate":        "18",
		}},
	}
}

func TestHealthEndpointsAreUnauthenticated(t *testing.T) {
	srv := newTestServer(t, testConfig())

	resp := srv.do(t, call{method: http.MethodGet, path: "/health/live"})
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "test", resp.Header().Get("X-Khatabill-Env"))

	resp = srv.do(t, call{method: http.MethodGet, path: "/health/ready"})
	assert.Equal(t, http.StatusOK, resp.Code)

	srv.redis.pingErr = errors.New("connection refused")
	resp = srv.do(t, call{method: http.MethodGet, path: "/health/ready"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, "redis", decodeError(t, resp).Details["dependency"])
}

func TestReadinessWithoutRedis(t *testing.T) {
	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard})
	handler := NewRouter(cfg, logg, stubPinger{err: errors.New("db down")}, nil, nil, Services{})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestAPIRejectsMissingAndForeignTokens(t *testing.T) {
	srv := newTestServer(t, testConfig())

	resp := srv.do(t, call{method: http.MethodGet, path: "/api/v1/dashboard"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	other := srv.cfg.JWT
	other.Secret = "someone-else"
	forged, err := pkgAuth.MintAccessToken(other, time.Now(), pkgAuth.AccessTokenPayload{ShopOwnerID: uuid.New()})
	require.NoError(t, err)
	resp = srv.do(t, call{method: http.MethodGet, path: "/api/v1/dashboard", token: forged})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestPostInvoiceEndToEnd(t *testing.T) {
	srv := newTestServer(t, testConfig())
	shop := uuid.New()
	token := srv.token(t, shop)
	customerID, itemID := srv.seedCustomerAndItem(t, token, 10)

	body := invoiceBody(customerID, itemID, "credit", 2)
	body["grand_total"] = "999"

	resp := srv.do(t, call{method: http.MethodPost, path: "/api/v1/invoices", token: token, key: "sale-1", body: body})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	posted := decodeData[invoiceResp](t, resp)
	assert.Equal(t, "20261018-0001", posted.Number)
	assert.Equal(t, "CREDIT", posted.PaymentMethod)
	assert.Equal(t, "20.00", posted.Subtotal.StringFixed(2))
	assert.Equal(t, "1.80", posted.CGST.StringFixed(2))
	assert.Equal(t, "1.80", posted.SGST.StringFixed(2))
	assert.Equal(t, "23.60", posted.GrandTotal.StringFixed(2))
	require.Len(t, posted.Items, 1)
	assert.Equal(t, 2, posted.Items[0].Quantity)

	replay := srv.do(t, call{method: http.MethodPost, path: "/api/v1/invoices", token: token, key: "sale-1", body: body})
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, posted.Number, decodeData[invoiceResp](t, replay).Number)

	changed := invoiceBody(customerID, itemID, "credit", 3)
	resp = srv.do(t, call{method: http.MethodPost, path: "/api/v1/invoices", token: token, key: "sale-1", body: changed})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), decodeError(t, resp).Code)

	resp = srv.do(t, call{method: http.MethodPost, path: "/api/v1/invoices", token: token, body: body})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = srv.do(t, call{method: http.MethodGet, path: "/api/v1/invoices", token: token})
	require.Equal(t, http.StatusOK, resp.Code)
	list := decodeData[struct {
		Invoices []invoiceResp `json:"invoices"`
	}](t, resp)
	assert.Len(t, list.Invoices, 1)

	resp = srv.do(t, call{method: http.MethodGet, path: "/api/v1/invoices/" + posted.Number, token: token})
	require.Equal(t, http.StatusOK, resp.Code)
	detail := decodeData[invoiceResp](t, resp)
	assert.Equal(t, "Meena", detail.CustomerName)
	assert.Equal(t, "23.60", detail.GrandTotal.StringFixed(2))

	resp = srv.do(t, call{method: http.MethodGet, path: "/api/v1/ledger/customers/" + customerID.String() + "/balance", token: token})
	require.Equal(t, http.StatusOK, resp.Code)
	balance := decodeData[struct {
		Balance decimal.Decimal `json:"balance"`
	}](t, resp)
	assert.Equal(t, "23.60", balance.Balance.StringFixed(2))

	resp = srv.do(t, call{method: http.MethodPost, path: "/api/v1/ledger/payments", token: token, key: "pay-1", body: map[string]any{
		"customer_id": customerID, "amount": "10", "description": "cash at counter",
	}})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = srv.do(t, call{method: http.MethodGet, path: "/api/v1/ledger/customers/" + customerID.String() + "/history", token: token})
	require.Equal(t, http.StatusOK, resp.Code)
	history := decodeData[[]struct {
		Type   string          `json:"type"`
		Amount decimal.Decimal `json:"amount"`
	}](t, resp)
	require.Len(t, history, 2)

	resp = srv.do(t, call{method: http.MethodGet, path: "/api/v1/ledger/balances", token: token})
	require.Equal(t, http.StatusOK, resp.Code)
	balances := decodeData[[]struct {
		CustomerName string          `json:"customer_name"`
		Balance      decimal.Decimal `json:"balance"`
	}](t, resp)
	require.Len(t, balances, 1)
	assert.Equal(t, "13.60", balances[0].Balance.StringFixed(2))

	resp = srv.do(t, call{method: http.MethodGet, path: "/api/v1/dashboard", token: token})
	require.Equal(t, http.StatusOK, resp.Code)
	summary := decodeData[struct {
		InvoiceCount      int64           `json:"invoice_count"`
		OutstandingCredit decimal.Decimal `json:"outstanding_credit"`
	}](t, resp)
	assert.Equal(t, int64(1), summary.InvoiceCount)
	assert.Equal(t, "13.60", summary.OutstandingCredit.StringFixed(2))

	resp = srv.do(t, call{method: http.MethodGet, path: "/api/v1/subscription/quota", token: token})
	require.Equal(t, http.StatusOK, resp.Code)
	quota := decodeData[struct {
		Allowed bool `json:"allowed"`
	}](t, resp)
	assert.True(t, quota.Allowed)

	resp = srv.do(t, call{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `invoice_posted_total{payment_method="CREDIT"} 1`)
}

func TestPostInvoiceInsufficientStock(t *testing.T) {
	srv := newTestServer(t, testConfig())
	token := srv.token(t, uuid.New())
	customerID, itemID := srv.seedCustomerAndItem(t, token, 3)

	resp := srv.do(t, call{method: http.MethodPost, path: "/api/v1/invoices", token: token, key: "big-sale", body: invoiceBody(customerID, itemID, "CASH", 5)})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	apiErr := decodeError(t, resp)
	assert.Equal(t, string(pkgerrors.CodeInsufficient), apiErr.Code)
	assert.EqualValues(t, 3, apiErr.Details["available"])
	assert.EqualValues(t, 5, apiErr.Details["requested"])

	resp = srv.do(t, call{method: http.MethodGet, path: "/api/v1/catalog/low-stock", token: token})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decodeData[[]idView](t, resp))
}

func TestPostInvoiceValidationErrors(t *testing.T) {
	srv := newTestServer(t, testConfig())
	token := srv.token(t, uuid.New())
	customerID, itemID := srv.seedCustomerAndItem(t, token, 3)

	bad := invoiceBody(customerID, itemID, "BARTER", 1)
	resp := srv.do(t, call{method: http.MethodPost, path: "/api/v1/invoices", token: token, key: "k1", body: bad})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), decodeError(t, resp).Code)

	zeroQty := invoiceBody(customerID, itemID, "CASH", 0)
	resp = srv.do(t, call{method: http.MethodPost, path: "/api/v1/invoices", token: token, key: "k2", body: zeroQty})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, decodeError(t, resp).Details, "lines[0].quantity")
}

func TestCatalogStockAdministration(t *testing.T) {
	srv := newTestServer(t, testConfig())
	token := srv.token(t, uuid.New())
	_, itemID := srv.seedCustomerAndItem(t, token, 5)

	resp := srv.do(t, call{method: http.MethodPut, path: "/api/v1/catalog/items/" + itemID.String() + "/stock", token: token, body: map[string]any{"quantity": 1}})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = srv.do(t, call{method: http.MethodGet, path: "/api/v1/catalog/low-stock", token: token})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decodeData[[]idView](t, resp), 1)

	resp = srv.do(t, call{method: http.MethodPost, path: "/api/v1/catalog/items/" + itemID.String() + "/restock", token: token, body: map[string]any{"quantity": 9}})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	item := decodeData[struct {
		StockQty int  `json:"stock_qty"`
		LowStock bool `json:"low_stock"`
	}](t, resp)
	assert.Equal(t, 10, item.StockQty)
	assert.False(t, item.LowStock)

	resp = srv.do(t, call{method: http.MethodPost, path: "/api/v1/catalog/items/not-a-uuid/restock", token: token, body: map[string]any{"quantity": 1}})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestTenantsCannotSeeEachOther(t *testing.T) {
	srv := newTestServer(t, testConfig())
	owner := srv.token(t, uuid.New())
	customerID, _ := srv.seedCustomerAndItem(t, owner, 1)

	resp := srv.do(t, call{method: http.MethodGet, path: "/api/v1/customers/" + customerID.String(), token: owner})
	assert.Equal(t, http.StatusOK, resp.Code)

	intruder := srv.token(t, uuid.New())
	resp = srv.do(t, call{method: http.MethodGet, path: "/api/v1/customers/" + customerID.String(), token: intruder})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestWriteRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.WriteLimit = 1
	srv := newTestServer(t, cfg)
	token := srv.token(t, uuid.New())

	body := map[string]any{"name": "Ravi"}
	resp := srv.do(t, call{method: http.MethodPost, path: "/api/v1/customers", token: token, body: body})
	assert.Equal(t, http.StatusCreated, resp.Code)

	resp = srv.do(t, call{method: http.MethodPost, path: "/api/v1/customers", token: token, body: body})
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.True(t, strings.Contains(resp.Body.String(), string(pkgerrors.CodeRateLimit)))
}
