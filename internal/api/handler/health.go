package handler

import (
	"net/http"

	"github.com/cutroom/floor-service/internal/api"
)

// HealthHandler reports whether the database is reachable
type HealthHandler struct {
	check func(r *http.Request) error
}

func NewHealthHandler(check func(r *http.Request) error) *HealthHandler {
	return &HealthHandler{check: check}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.check(r); err != nil {
		api.Fail(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	api.OK(w, http.StatusOK, map[string]string{"status": "ok"})
}
