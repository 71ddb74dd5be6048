package alerts

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/kasir-kopi/internal/common"
)

// Handler exposes recorded alerts.
type Handler struct {
	Svc *Service
}

// Routes mounts /alerts.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
}

// List returns recent alerts, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 50)
	if limit <= 0 || limit > common.MaxPerPage {
		limit = 50
	}
	items, err := h.Svc.List(r.Context(), limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}
