package sales

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/kasir-kopi/internal/common"
)

// Handler exposes read-only sale endpoints.
type Handler struct {
	Svc *Service
}

// Routes mounts the transaction endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/today", h.Today)
	r.Get("/{id}", h.Get)
}

// List handles GET /api/v1/transactions?page=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var p common.Pagination
	p.Page, p.PerPage = common.ParsePagination(r, 20)
	txs, err := h.Svc.List(r.Context(), p.Fetch())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	page := common.Window(&p, txs)
	common.JSON(w, http.StatusOK, map[string]any{"data": page, "pagination": p})
}

// Today handles GET /api/v1/transactions/today.
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Svc.Today(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":    txs,
		"summary": Summarize(txs),
	})
}

// Get handles GET /api/v1/transactions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": t})
}
