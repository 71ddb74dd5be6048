package cart_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kasir-kopi/internal/cart"
	"github.com/noah-isme/kasir-kopi/internal/catalog"
)

type stubProducts map[string]catalog.Product

func (s stubProducts) Get(_ context.Context, id string) (catalog.Product, error) {
	p, ok := s[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func sessionRequest(method, target, body string, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	routeCtx := chi.NewRouteContext()
	for k, v := range params {
		routeCtx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestCartHandlers(t *testing.T) {
	sessions, _ := newSessions(t)
	h := &cart.Handler{Sessions: sessions, Products: stubProducts{"latte": latte(), "croissant": croissant()}}
	params := map[string]string{cart.SessionParam: "kasir-1"}

	rec := httptest.NewRecorder()
	h.AddItem(rec, sessionRequest(http.MethodPost, "/", `{"productId":"latte","variant":"Large","modifiers":["Extra Shot"]}`, params))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"total":12500`)

	rec = httptest.NewRecorder()
	h.AddItem(rec, sessionRequest(http.MethodPost, "/", `{"productId":"latte"}`, params))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_OPTION")

	rec = httptest.NewRecorder()
	h.AddItem(rec, sessionRequest(http.MethodPost, "/", `{"productId":"gone"}`, params))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.UpdateQuantity(rec, sessionRequest(http.MethodPatch, "/", `{"delta":2}`, map[string]string{cart.SessionParam: "kasir-1", "index": "0"}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total":37500`)

	rec = httptest.NewRecorder()
	h.UpdateQuantity(rec, sessionRequest(http.MethodPatch, "/", `{"delta":-1}`, map[string]string{cart.SessionParam: "kasir-1", "index": "x"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	sess, err := sessions.Load(context.Background(), "kasir-1")
	require.NoError(t, err)
	sess.Bind("tab-1", sess.Cart)
	require.NoError(t, sessions.Save(context.Background(), sess))

	rec = httptest.NewRecorder()
	h.AddItem(rec, sessionRequest(http.MethodPost, "/", `{"productId":"croissant"}`, params))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "TAB_BOUND")

	rec = httptest.NewRecorder()
	h.Clear(rec, sessionRequest(http.MethodDelete, "/", "", params))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "tabId")

	rec = httptest.NewRecorder()
	h.Get(rec, sessionRequest(http.MethodGet, "/", "", params))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"items":[]`)
}
