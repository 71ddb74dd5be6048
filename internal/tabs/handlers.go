package tabs

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/kasir-kopi/internal/cart"
	"github.com/noah-isme/kasir-kopi/internal/common"
	"github.com/noah-isme/kasir-kopi/internal/pricing"
)

// Handler exposes open tab endpoints.
type Handler struct {
	Manager  *Manager
	Sessions *cart.SessionStore
}

// Routes mounts /tabs.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/close", h.Close)
}

// SessionRoutes mounts the tab actions of /sessions/{sessionID}.
func (h *Handler) SessionRoutes(r chi.Router) {
	r.Post("/hold", h.Hold)
	r.Post("/restore/{id}", h.Restore)
}

// List handles GET /api/v1/tabs.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tabs, err := h.Manager.ListOpen(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": tabs})
}

// Get handles GET /api/v1/tabs/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tab, err := h.Manager.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": tab})
}

// Close handles POST /api/v1/tabs/{id}/close.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AmountPaid pricing.Money `json:"amountPaid" validate:"gte=0"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.Validate(payload); err != nil {
		common.WriteError(w, err)
		return
	}
	trx, err := h.Manager.CloseByID(r.Context(), chi.URLParam(r, "id"), payload.AmountPaid)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": trx})
}

// Hold handles POST /api/v1/sessions/{sessionID}/hold: the session cart
// becomes an open tab and the session is reset.
func (h *Handler) Hold(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CustomerName string        `json:"customerName"`
		Total        pricing.Money `json:"total" validate:"gte=0"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.Validate(payload); err != nil {
		common.WriteError(w, err)
		return
	}
	ctx := r.Context()
	sess, err := h.Sessions.Load(ctx, chi.URLParam(r, cart.SessionParam))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if sess.TabID != "" {
		common.WriteError(w, cart.ErrTabBound)
		return
	}
	tab, err := h.Manager.Create(ctx, sess.Cart, payload.Total, payload.CustomerName)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	sess.Reset()
	if err := h.Sessions.Save(ctx, sess); err != nil {
		h.Manager.Log.Error().Err(err).Str("session_id", sess.ID).Msg("reset session after hold failed")
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": tab})
}

// Restore handles POST /api/v1/sessions/{sessionID}/restore/{id}: the tab's
// lines are loaded into the session for review and payment. An abandoned tab
// clears the session.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := h.Sessions.Load(ctx, chi.URLParam(r, cart.SessionParam))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	tab, err := h.Manager.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	restored, warnings, err := h.Manager.Restore(ctx, tab)
	if errors.Is(err, ErrTabAbandoned) {
		sess.Reset()
		if saveErr := h.Sessions.Save(ctx, sess); saveErr != nil {
			common.WriteError(w, saveErr)
			return
		}
		common.JSONError(w, http.StatusConflict, "TAB_ABANDONED", err.Error(), map[string]any{"warnings": warnings})
		return
	}
	if err != nil {
		common.WriteError(w, err)
		return
	}
	sess.Bind(tab.ID, restored)
	if err := h.Sessions.Save(ctx, sess); err != nil {
		common.WriteError(w, err)
		return
	}
	if warnings == nil {
		warnings = []ProductUnavailableWarning{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":     cart.View(sess),
		"warnings": warnings,
	})
}
