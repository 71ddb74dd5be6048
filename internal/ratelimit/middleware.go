package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/kasir-kopi/internal/common"
)

// Config selects the key and the budget of a limited route group.
type Config struct {
	// Key defaults to common.StationKey.
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
	// WritesOnly leaves GET, HEAD and OPTIONS requests unlimited.
	WritesOnly bool
}

func (c Config) key(r *http.Request) string {
	if c.Key != nil {
		return c.Key(r)
	}
	return common.StationKey(r)
}

func (c Config) exempt(r *http.Request) bool {
	if !c.WritesOnly {
		return false
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// Handler rejects requests over budget with 429 RATE_LIMITED.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

// Middleware counts each non-exempt request. When the limiter itself fails
// the request goes through and OnError is told.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil || h.Config.exempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		d, err := h.Limiter.Take(r.Context(), h.Config.key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		hdr := w.Header()
		hdr.Set("X-RateLimit-Limit", strconv.Itoa(max(d.Limit, 0)))
		hdr.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Reset.IsZero() {
			hdr.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
		}
		if !d.Allowed {
			hdr.Set("Retry-After", strconv.Itoa(d.RetryAfter(time.Now())))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests from this station", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
