// Package products serves the catalog endpoints.
package products

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"bookstore/internal/domain"
	gw "bookstore/internal/gateway"
)

// Catalog lists the items a caller may see.
type Catalog interface {
	VisibleItems(ctx context.Context, id domain.Identity) ([]domain.Item, error)
}

// ReadyCheck reports whether a dependency can serve traffic.
type ReadyCheck func(ctx context.Context) error

// Router serves the product endpoints and the health checks.
type Router struct {
	mux     *http.ServeMux
	catalog Catalog
	checks  map[string]ReadyCheck
	logger  *slog.Logger
}

// NewRouter creates the router. checks are run by /readyz, keyed by the name
// reported when one fails.
func NewRouter(catalog Catalog, checks map[string]ReadyCheck, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		mux:     http.NewServeMux(),
		catalog: catalog,
		checks:  checks,
		logger:  logger,
	}

	r.mux.HandleFunc("GET /product", r.list)
	r.mux.HandleFunc("GET /product/{id}", r.get)
	r.mux.HandleFunc("GET /healthz", r.healthz)
	r.mux.HandleFunc("GET /readyz", r.readyz)
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

type listResponse struct {
	Products []domain.Item `json:"products"`
}

type itemResponse struct {
	Product *domain.Item `json:"product"`
}

func (r *Router) list(w http.ResponseWriter, req *http.Request) {
	items, ok := r.visible(w, req)
	if !ok {
		return
	}
	r.logger.Info("returning product list",
		"count", len(items),
		"request_id", gw.RequestIDFromContext(req.Context()),
	)
	r.writeJSON(w, http.StatusOK, listResponse{Products: items})
}

// get returns one item, or a null product when the item does not exist or
// the caller may not see it. Both cases look the same to the caller.
func (r *Router) get(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	items, ok := r.visible(w, req)
	if !ok {
		return
	}

	resp := itemResponse{}
	for i := range items {
		if items[i].ID == id {
			resp.Product = &items[i]
			break
		}
	}
	r.writeJSON(w, http.StatusOK, resp)
}

func (r *Router) visible(w http.ResponseWriter, req *http.Request) ([]domain.Item, bool) {
	caller := gw.IdentityFromContext(req.Context())
	items, err := r.catalog.VisibleItems(req.Context(), caller)
	if err != nil {
		r.writeError(w, req, err)
		return nil, false
	}
	if items == nil {
		items = []domain.Item{}
	}
	return items, true
}

func (r *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	r.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) readyz(w http.ResponseWriter, req *http.Request) {
	for name, check := range r.checks {
		if err := check(req.Context()); err != nil {
			r.logger.Warn("readiness check failed", "check", name, "error", err)
			r.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"check":  name,
			})
			return
		}
	}
	r.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (r *Router) writeError(w http.ResponseWriter, req *http.Request, err error) {
	status, resp := http.StatusInternalServerError, domain.ErrorResponse{
		Error:   "internal_error",
		Message: "an unexpected error occurred",
	}
	if errors.Is(err, domain.ErrServiceUnavailable) {
		status, resp = http.StatusServiceUnavailable, domain.ErrorResponse{
			Error:   "service_unavailable",
			Message: "authorization service unavailable, try again later",
		}
	}
	r.logger.Error("resolving visible products",
		"error", err,
		"status", status,
		"request_id", gw.RequestIDFromContext(req.Context()),
	)
	r.writeJSON(w, status, resp)
}

func (r *Router) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		r.logger.Error("encoding response", "error", err)
	}
}
