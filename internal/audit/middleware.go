package audit

import (
	"context"
	"net/http"

	"github.com/noah-isme/kasir-kopi/internal/obs"
)

// HTTPRecorder records write requests after they have been handled.
type HTTPRecorder struct {
	Service Service
	OnError func(error)
}

// Middleware audits every non-read request that reaches next.
func (r HTTPRecorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !r.Service.Enabled {
			next.ServeHTTP(w, req)
			return
		}
		switch req.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, req)
			return
		}
		recorder := obs.NewStatusRecorder(w)
		next.ServeHTTP(recorder, req)

		// the client may already be gone; the entry must still be written
		ctx := context.WithoutCancel(req.Context())
		if err := r.Service.Record(ctx, req, recorder.Status()); err != nil && r.OnError != nil {
			r.OnError(err)
		}
	})
}
