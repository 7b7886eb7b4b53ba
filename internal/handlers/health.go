package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/forwardbot/internal/healthcheck"
)

// HealthHandler serves liveness and the runtime check report.
type HealthHandler struct {
	checkers []healthcheck.Checker
}

func NewHealthHandler(checkers ...healthcheck.Checker) *HealthHandler {
	return &HealthHandler{checkers: checkers}
}

func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.HEAD("/health", h.Alive)
	e.GET("/health", h.Health)
}

func (h *HealthHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Alive answers load balancer probes without running the checks.
func (h *HealthHandler) Alive(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// Health godoc
// @Summary Runtime health checks
// @Description Gateway connection and routing table checks. Responds 503 when any check errors.
// @Tags health
// @Success 200 {object} healthcheck.Report
// @Failure 503 {object} healthcheck.Report
// @Router /health [get]
func (h *HealthHandler) Health(c echo.Context) error {
	report := healthcheck.Run(c.Request().Context(), h.checkers...)
	code := http.StatusOK
	if report.Status == healthcheck.StatusError {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, report)
}
