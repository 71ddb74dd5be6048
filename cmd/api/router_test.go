package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/noah-isme/kasir-kopi/internal/app"
	"github.com/noah-isme/kasir-kopi/internal/config"
	"github.com/noah-isme/kasir-kopi/internal/ratelimit"
)

func newTestRouter(t *testing.T, writesPerMinute int) http.Handler {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := &config.Config{
		AppEnv:              "test",
		StoreDriver:         config.DriverMemory,
		RedisURL:            "redis://" + mr.Addr(),
		Location:            time.UTC,
		StoreTxMaxAttempts:  5,
		CartSessionTTL:      time.Hour,
		CatalogCacheTTL:     time.Minute,
		AnalyticsCacheTTL:   time.Minute,
		IdempotencyTTL:      time.Hour,
		WriteLimitPerMinute: writesPerMinute,
		AlertUniqueWindow:   time.Minute,
		AuditEnabled:        true,
	}
	deps, err := app.New(context.Background(), cfg, zerolog.Nop(), false)
	require.NoError(t, err)
	t.Cleanup(deps.Close)

	return newRouter(deps, routerOptions{Limiter: ratelimit.StoreLimiter{Store: memory.NewStore()}})
}

func call(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Station-ID", "bar-1")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func dataID(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.ID)
	return body.Data.ID
}

func TestRouterSellsThroughSession(t *testing.T) {
	h := newTestRouter(t, 100)

	rec := call(t, h, http.MethodPost, "/api/v1/ingredients", `{"name":"Coffee Beans","stock":"1000","unit":"gram","minStock":"100"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	beansID := dataID(t, rec)

	rec = call(t, h, http.MethodPost, "/api/v1/products", `{"name":"Espresso","price":15000,"category":"Kopi","recipe":[{"ingredientId":"`+beansID+`","ingredientName":"Coffee Beans","quantity":"18","unit":"gram"}]}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	espressoID := dataID(t, rec)

	for i := 0; i < 2; i++ {
		rec = call(t, h, http.MethodPost, "/api/v1/sessions/bar-1/cart/items", `{"productId":"`+espressoID+`"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	require.Contains(t, rec.Body.String(), `"total":30000`)

	key := map[string]string{"Idempotency-Key": "pay-1"}
	rec = call(t, h, http.MethodPost, "/api/v1/sessions/bar-1/checkout", `{"total":30000,"amountPaid":50000}`, key)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"change":20000`)
	require.Contains(t, rec.Body.String(), `"stationId":"bar-1"`)

	rec = call(t, h, http.MethodPost, "/api/v1/sessions/bar-1/checkout", `{"total":30000,"amountPaid":50000}`, key)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "IDEMPOTENT_REPLAY")

	rec = call(t, h, http.MethodGet, "/api/v1/sessions/bar-1/cart", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total":0`)

	rec = call(t, h, http.MethodGet, "/api/v1/ingredients/"+beansID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"stock":"964"`)

	rec = call(t, h, http.MethodGet, "/api/v1/transactions", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"totalAmount":30000`)

	rec = call(t, h, http.MethodGet, "/api/v1/audit-logs?resource=ingredients", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"action":"POST /api/v1/ingredients`)
	require.Contains(t, rec.Body.String(), `"stationId":"bar-1"`)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = call(t, h, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterLimitsWritesPerStation(t *testing.T) {
	h := newTestRouter(t, 1)

	rec := call(t, h, http.MethodPost, "/api/v1/sessions/bar-1/cart/items", `{"productId":"missing"}`, nil)
	require.NotEqual(t, http.StatusTooManyRequests, rec.Code)

	rec = call(t, h, http.MethodPost, "/api/v1/sessions/bar-1/cart/items", `{"productId":"missing"}`, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = call(t, h, http.MethodGet, "/api/v1/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
