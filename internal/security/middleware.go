// Package security holds HTTP hardening middleware for the register API.
package security

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/noah-isme/kasir-kopi/internal/common"
)

// DefaultMaxBody bounds request payloads when BodyLimit.Max is unset. A
// cart with every product of the menu stays far below it.
const DefaultMaxBody int64 = 1 << 20

// BodyLimit enforces a maximum request payload size.
type BodyLimit struct {
	Max int64
}

func (b BodyLimit) max() int64 {
	if b.Max <= 0 {
		return DefaultMaxBody
	}
	return b.Max
}

// Middleware rejects oversized requests with 413 before any handler decodes them.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		limit := b.max()
		if r.ContentLength > limit {
			tooLarge(w, limit)
			return
		}
		buf, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
		_ = r.Body.Close()
		if err != nil && !errors.Is(err, io.EOF) {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
			return
		}
		if int64(len(buf)) > limit {
			tooLarge(w, limit)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(buf))
		r.ContentLength = int64(len(buf))
		next.ServeHTTP(w, r)
	})
}

func tooLarge(w http.ResponseWriter, limit int64) {
	common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large",
		map[string]string{"maxBytes": strconv.FormatInt(limit, 10)})
}

// Headers attaches standard security headers to API responses.
type Headers struct {
	HSTSMaxAge int
}

// Middleware sets the headers. HSTS is only sent over TLS.
func (h Headers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "no-referrer")
		headers.Set("Cache-Control", "no-store")
		if r.TLS != nil && h.HSTSMaxAge > 0 {
			headers.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(h.HSTSMaxAge))
		}
		next.ServeHTTP(w, r)
	})
}
