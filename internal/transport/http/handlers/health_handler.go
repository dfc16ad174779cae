package handlers

import (
	"context"
	"net/http"
	"time"

	httperrors "github.com/GK-FY/bulk/internal/transport/http/errors"
)

type HealthCheck func(ctx context.Context) error

// HealthHandler reports each named dependency. A failing check degrades the
// status but keeps the endpoint at 200, since the process keeps serving from
// memory when a store is down.
type HealthHandler struct {
	checks map[string]HealthCheck
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	httperrors.Write(w, http.StatusOK, map[string]any{
		"ok":     true,
		"status": status,
		"deps":   deps,
	})
}
