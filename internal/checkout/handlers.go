package checkout

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kasir-kopi/internal/cart"
	"github.com/noah-isme/kasir-kopi/internal/common"
	"github.com/noah-isme/kasir-kopi/internal/pricing"
	"github.com/noah-isme/kasir-kopi/internal/sales"
)

// TabCloser settles an open tab restored into a session.
type TabCloser interface {
	CloseByID(ctx context.Context, id string, amountPaid pricing.Money) (sales.Transaction, error)
}

// Handler exposes the pay endpoint of a checkout session.
type Handler struct {
	Engine   *Engine
	Sessions *cart.SessionStore
	Tabs     TabCloser
	Log      zerolog.Logger
}

type payRequest struct {
	Total      pricing.Money `json:"total" validate:"gte=0"`
	AmountPaid pricing.Money `json:"amountPaid" validate:"gte=0"`
}

// Routes mounts the checkout endpoint below /sessions/{sessionID}.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/checkout", h.Checkout)
}

// Checkout settles the session cart, or closes the open tab it was restored
// from, then resets the session.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var payload payRequest
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

	var trx sales.Transaction
	if sess.TabID != "" && h.Tabs != nil {
		trx, err = h.Tabs.CloseByID(ctx, sess.TabID, payload.AmountPaid)
	} else {
		trx, err = h.Engine.Settle(ctx, sess.Cart, payload.Total, payload.AmountPaid)
	}
	if err != nil {
		common.WriteError(w, err)
		return
	}

	sess.Reset()
	if err := h.Sessions.Save(ctx, sess); err != nil {
		// the sale is committed; a stale cart is recoverable by clearing it
		h.Log.Error().Err(err).Str("session_id", sess.ID).Msg("reset session after checkout failed")
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": trx})
}
