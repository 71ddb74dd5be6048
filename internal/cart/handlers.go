package cart

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/kasir-kopi/internal/catalog"
	"github.com/noah-isme/kasir-kopi/internal/common"
)

// SessionParam is the chi URL parameter carrying the session id.
const SessionParam = "sessionID"

// ProductSource resolves live products by id.
type ProductSource interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

// Handler wires checkout sessions to HTTP.
type Handler struct {
	Sessions *SessionStore
	Products ProductSource
}

// Routes mounts the cart endpoints below /sessions/{sessionID}.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/cart", h.Get)
	r.Delete("/cart", h.Clear)
	r.Post("/cart/items", h.AddItem)
	r.Patch("/cart/items/{index}", h.UpdateQuantity)
}

// View renders a session for API responses.
func View(sess *Session) map[string]any {
	lines := sess.Cart.Lines()
	if lines == nil {
		lines = []Line{}
	}
	view := map[string]any{
		"id":    sess.ID,
		"items": lines,
		"total": sess.Cart.Total(),
	}
	if sess.TabID != "" {
		view["tabId"] = sess.TabID
	}
	return view
}

// Get returns the session cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Load(r.Context(), chi.URLParam(r, SessionParam))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": View(sess)})
}

// AddItem adds one configured unit of a product.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProductID string   `json:"productId" validate:"required"`
		Variant   string   `json:"variant"`
		Modifiers []string `json:"modifiers"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.Validate(payload); err != nil {
		common.WriteError(w, err)
		return
	}
	sess, err := h.Sessions.Load(r.Context(), chi.URLParam(r, SessionParam))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if sess.TabID != "" {
		common.WriteError(w, ErrTabBound)
		return
	}
	product, err := h.Products.Get(r.Context(), payload.ProductID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := sess.Cart.AddItem(product, payload.Variant, payload.Modifiers); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Sessions.Save(r.Context(), sess); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": View(sess)})
}

// UpdateQuantity applies a signed delta to one line.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid line index", nil)
		return
	}
	var payload struct {
		Delta int `json:"delta" validate:"required"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.Validate(payload); err != nil {
		common.WriteError(w, err)
		return
	}
	sess, err := h.Sessions.Load(r.Context(), chi.URLParam(r, SessionParam))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if sess.TabID != "" {
		common.WriteError(w, ErrTabBound)
		return
	}
	if err := sess.Cart.UpdateQuantity(index, payload.Delta); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Sessions.Save(r.Context(), sess); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": View(sess)})
}

// Clear empties the cart and releases a restored tab. The tab itself stays open.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Load(r.Context(), chi.URLParam(r, SessionParam))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	sess.Reset()
	if err := h.Sessions.Save(r.Context(), sess); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": View(sess)})
}
