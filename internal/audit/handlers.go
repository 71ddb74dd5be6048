package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/kasir-kopi/internal/common"
)

// Handler exposes HTTP endpoints for working with audit entries.
type Handler struct {
	Service Service
}

// Routes mounts /audit-logs.
func (h Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
}

// List returns recent entries, filtered by ?resource=.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Service.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 50)
	if limit <= 0 || limit > common.MaxPerPage {
		limit = 50
	}
	rows, err := h.Service.List(r.Context(), r.URL.Query().Get("resource"), limit)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit entries", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}
