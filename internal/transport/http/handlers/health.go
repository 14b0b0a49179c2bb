package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	applogger "github.com/starcoex/auth-platform/internal/infra/logger"
)

// HealthHandler exposes liveness and readiness information.
type HealthHandler struct {
	startedAt time.Time
	checks    []readinessCheck
}

type readinessCheck struct {
	name  string
	check func(ctx context.Context) error
}

// HealthOption customizes the health handler.
type HealthOption func(*HealthHandler)

// WithReadinessCheck registers a dependency probe executed by the readiness endpoint.
func WithReadinessCheck(name string, check func(ctx context.Context) error) HealthOption {
	return func(h *HealthHandler) {
		if name == "" || check == nil {
			return
		}
		h.checks = append(h.checks, readinessCheck{name: name, check: check})
	}
}

// NewHealthHandler builds a new health handler instance.
func NewHealthHandler(opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{startedAt: time.Now().UTC()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Status godoc
// @Summary Service health check
// @Description Returns the status and start time of the service.
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /healthz [get]
func (h *HealthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		StartedAt: h.startedAt,
	})
}

// Readiness godoc
// @Summary Service readiness check
// @Description Probes backing dependencies and reports their status.
// @Tags Health
// @Produce json
// @Success 200 {object} ReadyResponse
// @Failure 503 {object} ReadyResponse
// @Router /readyz [get]
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := make(map[string]string, len(h.checks))

	for _, probe := range h.checks {
		if err := probe.check(ctx); err != nil {
			applogger.WithContext(c.Request.Context()).Warn("readiness probe failed",
				zap.String("dependency", probe.name), zap.Error(err))
			checks[probe.name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[probe.name] = "ok"
	}

	c.JSON(code, ReadyResponse{Status: status, Checks: checks})
}
