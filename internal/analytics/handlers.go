package analytics

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/kasir-kopi/internal/common"
)

// Handler exposes analytics read endpoints.
type Handler struct {
	Svc *Service
}

// Routes mounts /analytics.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/daily", h.Daily)
	r.Get("/sales", h.Sales)
}

// Daily returns the dashboard summary for ?date=YYYY-MM-DD, today by default.
func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return
	}
	day := h.Svc.now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := h.Svc.ParseDay(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid date", nil)
			return
		}
		day = parsed
	}
	summary, err := h.Svc.Daily(r.Context(), day)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

// Sales returns one summary per day for ?days=N.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return
	}
	days := common.AtoiDefault(r.URL.Query().Get("days"), 0)
	if days < 0 || days > 90 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "days must be between 1 and 90", nil)
		return
	}
	rows, err := h.Svc.SalesRange(r.Context(), days)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}
