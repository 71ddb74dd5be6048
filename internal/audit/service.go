// Package audit keeps a trail of back-office changes to products and
// ingredients.
package audit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/noah-isme/kasir-kopi/internal/common"
	"github.com/noah-isme/kasir-kopi/internal/docstore"
)

// Collection holds audit entries.
const Collection = "auditLogs"

// Entry is one audited request.
type Entry struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resourceType"`
	ResourceID   string    `json:"resourceId,omitempty"`
	StationID    string    `json:"stationId,omitempty"`
	Method       string    `json:"method"`
	Path         string    `json:"path"`
	Status       int       `json:"status"`
	RequestID    string    `json:"requestId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Service persists audit entries for critical back-office flows.
type Service struct {
	Store   docstore.Store
	Enabled bool
}

// Record persists an entry describing req once it has been handled.
func (s Service) Record(ctx context.Context, req *http.Request, status int) error {
	if !s.Enabled {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}
	route := ""
	if rc := chi.RouteContext(req.Context()); rc != nil {
		route = rc.RoutePattern()
	}
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	if status == 0 {
		status = http.StatusOK
	}
	station, _ := common.StationID(req.Context())

	ref := docstore.NewRef(Collection)
	entry := Entry{
		ID:           ref.ID,
		Action:       strings.ToUpper(req.Method) + " " + route,
		ResourceType: resourceType(route),
		ResourceID:   chi.URLParam(req, "id"),
		StationID:    station,
		Method:       req.Method,
		Path:         req.URL.Path,
		Status:       status,
		RequestID:    middleware.GetReqID(req.Context()),
	}
	if _, err := s.Store.Put(ctx, ref, entry); err != nil {
		return fmt.Errorf("audit: save entry: %w", err)
	}
	return nil
}

// List returns recent entries, newest first, optionally for one resource type.
func (s Service) List(ctx context.Context, resource string, limit int) ([]Entry, error) {
	q := docstore.Query{Collection: Collection, Desc: true, Limit: limit}
	if resource = strings.TrimSpace(resource); resource != "" {
		q.Where = []docstore.Filter{{Field: "resourceType", Value: resource}}
	}
	docs, err := s.Store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return docstore.DecodeAll[Entry](docs)
}

// resourceType derives "ingredients" from "/api/v1/ingredients/{id}".
func resourceType(route string) string {
	segments := strings.Split(strings.Trim(route, "/"), "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		segments = segments[2:]
	}
	if len(segments) == 0 || segments[0] == "" {
		return "unknown"
	}
	return segments[0]
}
