package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"currency-rates-service/internal/application"
	"currency-rates-service/internal/domain"
	"currency-rates-service/internal/infrastructure/memstore"
	"currency-rates-service/internal/infrastructure/metrics"
	"currency-rates-service/internal/infrastructure/provider"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type failingSource struct{ name string }

func (f failingSource) Name() string { return f.name }
func (f failingSource) FetchRates(context.Context, []domain.CurrencyCode) (map[domain.CurrencyCode]float64, error) {
	return nil, errors.New("unreachable")
}

type memIdem struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *memIdem) TryReserve(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *memIdem) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, key)
	return nil
}

type fixture struct {
	h     http.Handler
	store *memstore.Store
	srv   *Server
}

func setup(t *testing.T, sources []application.RateSource, cfg RouterConfig) fixture {
	t.Helper()
	store := memstore.New()
	svc := application.NewRatesService(store, sources, application.WithIdempotency(&memIdem{seen: map[string]bool{}}))
	_, err := svc.Seed(context.Background())
	require.NoError(t, err)
	srv := NewServer(svc)
	h, err := NewRouter(srv, cfg)
	require.NoError(t, err)
	return fixture{h: h, store: store, srv: srv}
}

func do(h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	f := setup(t, nil, RouterConfig{})
	rec := do(f.h, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	require.NotEmpty(t, rec.Header().Get("X-Trace-Id"))
}

func TestReadyz_FailingCheck(t *testing.T) {
	f := setup(t, nil, RouterConfig{})
	f.srv.SetReadyCheck(func(ctx context.Context) error { return errors.New("db down") })
	h, err := NewRouter(f.srv, RouterConfig{})
	require.NoError(t, err)

	rec := do(h, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"code":503,"message":"db not ready"}`, rec.Body.String())
}

func TestListCurrencyRates(t *testing.T) {
	f := setup(t, nil, RouterConfig{})
	rec := do(f.h, http.MethodGet, "/api/currency-rates", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rates []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rates))
	require.Len(t, rates, len(domain.TrackedCurrencies))
	require.Equal(t, "aed", rates[0]["currency_code"])
	require.Contains(t, rates[0], "change_percentage")
}

func TestUpdateRate_ArchivesPreviousRate(t *testing.T) {
	f := setup(t, nil, RouterConfig{})

	rec := do(f.h, http.MethodPost, "/api/update-rate", map[string]any{"currency_code": "usd", "rate": 550}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success          bool    `json:"success"`
		Rate             float64 `json:"rate"`
		ChangePercentage float64 `json:"changePercentage"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, 550.0, resp.Rate)
	require.InDelta(t, 3.7736, resp.ChangePercentage, 0.0001)

	rec = do(f.h, http.MethodGet, "/api/currency-history/USD", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist []struct {
		Rate             float64 `json:"rate"`
		ChangePercentage float64 `json:"change_percentage"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist, 1)
	require.Equal(t, 530.0, hist[0].Rate)
	require.Equal(t, 0.0, hist[0].ChangePercentage)
}

func TestUpdateRate_Errors(t *testing.T) {
	f := setup(t, nil, RouterConfig{})

	cases := []struct {
		name string
		body any
		code int
	}{
		{"untracked currency", map[string]any{"currency_code": "xyz", "rate": 10}, http.StatusNotFound},
		{"missing rate", map[string]any{"currency_code": "usd"}, http.StatusBadRequest},
		{"negative rate", map[string]any{"currency_code": "usd", "rate": -1}, http.StatusBadRequest},
		{"bad code", map[string]any{"currency_code": "us1", "rate": 10}, http.StatusBadRequest},
		{"four letter code", map[string]any{"currency_code": "usdx", "rate": 10}, http.StatusBadRequest},
		{"not json", "oops", http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := do(f.h, http.MethodPost, "/api/update-rate", c.body, nil)
			require.Equal(t, c.code, rec.Code, rec.Body.String())
			var e struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
			require.Equal(t, c.code, e.Code)
		})
	}

	cur, err := f.store.GetCurrent(context.Background(), "usd")
	require.NoError(t, err)
	require.Equal(t, 530.0, cur.Rate)
}

func TestUpdateRate_DuplicateIdempotencyKey(t *testing.T) {
	f := setup(t, nil, RouterConfig{})
	hdr := map[string]string{"X-Idempotency-Key": "k1"}
	body := map[string]any{"currency_code": "eur", "rate": 600}

	require.Equal(t, http.StatusOK, do(f.h, http.MethodPost, "/api/update-rate", body, hdr).Code)
	require.Equal(t, http.StatusConflict, do(f.h, http.MethodPost, "/api/update-rate", body, hdr).Code)

	hist, err := f.store.ListHistory(context.Background(), "eur", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
}

func TestUpdateRatesAuto_AllSourcesFail(t *testing.T) {
	f := setup(t, []application.RateSource{failingSource{"primary"}, failingSource{"secondary"}}, RouterConfig{})

	rec := do(f.h, http.MethodPost, "/api/update-rates-auto", nil, nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, false, resp["success"])
	require.NotEmpty(t, resp["message"])
	require.NotContains(t, resp, "source")

	hist, err := f.store.ListHistory(context.Background(), "usd", 10)
	require.NoError(t, err)
	require.Empty(t, hist)
}

func TestUpdateRatesAuto_FallsBackToSecondSource(t *testing.T) {
	rates := map[domain.CurrencyCode]float64{"usd": 540, "sar": 142}
	f := setup(t, []application.RateSource{failingSource{"primary"}, provider.NewFake(rates)}, RouterConfig{})

	rec := do(f.h, http.MethodPost, "/api/update-rates-auto", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success bool   `json:"success"`
		Source  string `json:"source"`
		Updated int    `json:"updated"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "fake", resp.Source)
	require.Equal(t, 2, resp.Updated)

	cur, err := f.store.GetCurrent(context.Background(), "usd")
	require.NoError(t, err)
	require.Equal(t, 540.0, cur.Rate)
}

func TestListCurrencyRates_StoreError(t *testing.T) {
	f := setup(t, nil, RouterConfig{})
	f.store.Err = errors.New("disk on fire")
	rec := do(f.h, http.MethodGet, "/api/currency-rates", nil, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStaticPages(t *testing.T) {
	f := setup(t, nil, RouterConfig{})
	for _, p := range []string{"/", "/about", "/contact", "/admin", "/swagger"} {
		rec := do(f.h, http.MethodGet, p, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code, p)
		require.Contains(t, rec.Header().Get("Content-Type"), "text/html", p)
	}
}

func TestRateLimit(t *testing.T) {
	f := setup(t, nil, RouterConfig{RateLimit: "2-M"})
	require.Equal(t, http.StatusOK, do(f.h, http.MethodGet, "/api/currency-rates", nil, nil).Code)
	require.Equal(t, http.StatusOK, do(f.h, http.MethodGet, "/api/currency-rates", nil, nil).Code)
	require.Equal(t, http.StatusTooManyRequests, do(f.h, http.MethodGet, "/api/currency-rates", nil, nil).Code)
	// Probes are not limited.
	require.Equal(t, http.StatusOK, do(f.h, http.MethodGet, "/healthz", nil, nil).Code)
}

func TestRateLimit_InvalidFormat(t *testing.T) {
	store := memstore.New()
	_, err := NewRouter(NewServer(application.NewRatesService(store, nil)), RouterConfig{RateLimit: "lots"})
	require.Error(t, err)
}

func TestCORS_Preflight(t *testing.T) {
	f := setup(t, nil, RouterConfig{CORSOrigins: []string{"https://rates.example"}})
	req := httptest.NewRequest(http.MethodOptions, "/api/update-rate", nil)
	req.Header.Set("Origin", "https://rates.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	require.Equal(t, "https://rates.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	f := setup(t, nil, RouterConfig{Metrics: m})
	require.Equal(t, http.StatusOK, do(f.h, http.MethodGet, "/api/currency-rates", nil, nil).Code)

	rec := do(f.h, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `route="/api/currency-rates"`)
}
