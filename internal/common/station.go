package common

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type ctxKey string

const stationIDKey ctxKey = "pos/station-id"

// StationHeader identifies the cashier station issuing a request.
const StationHeader = "X-Station-ID"

// WithStationID stores the cashier station identifier on the provided context.
func WithStationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, stationIDKey, id)
}

// StationID extracts the cashier station identifier from the context if present.
func StationID(ctx context.Context) (string, bool) {
	v := ctx.Value(stationIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// StationMiddleware copies the station header into the request context.
func StationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(StationHeader)); id != "" {
			r = r.WithContext(WithStationID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// StationKey returns the station id, falling back to the client address.
func StationKey(r *http.Request) string {
	if id, ok := StationID(r.Context()); ok {
		return "station:" + id
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		host = strings.TrimSpace(r.RemoteAddr)
	}
	return "ip:" + host
}
