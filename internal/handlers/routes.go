package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/forwardbot/internal/mirror"
)

// RoutingService exposes the routing table to the admin API.
type RoutingService interface {
	Snapshot() mirror.Snapshot
	Status() mirror.RefreshStatus
	Refresh(ctx context.Context) (uint64, error)
}

type RoutesHandler struct {
	service RoutingService
	logger  *slog.Logger
}

type RoutesResponse struct {
	Status mirror.RefreshStatus `json:"status"`
	Table  mirror.Snapshot      `json:"table"`
}

type RefreshResponse struct {
	Version uint64               `json:"version"`
	Status  mirror.RefreshStatus `json:"status"`
}

func NewRoutesHandler(log *slog.Logger, service RoutingService) *RoutesHandler {
	if log == nil {
		log = slog.Default()
	}
	return &RoutesHandler{
		service: service,
		logger:  log.With(slog.String("handler", "routes")),
	}
}

func (h *RoutesHandler) Register(e *echo.Echo) {
	group := e.Group("/routes")
	group.GET("", h.ListRoutes)
	group.POST("/refresh", h.RefreshRoutes)
}

// ListRoutes godoc
// @Summary Current routing table
// @Description Token-free snapshot of the installed routing table with refresh status
// @Tags routes
// @Success 200 {object} RoutesResponse
// @Router /routes [get]
func (h *RoutesHandler) ListRoutes(c echo.Context) error {
	return c.JSON(http.StatusOK, RoutesResponse{
		Status: h.service.Status(),
		Table:  h.service.Snapshot(),
	})
}

// RefreshRoutes godoc
// @Summary Rebuild the routing table
// @Description Runs discovery and endpoint resolution and installs the result. The previous table keeps serving on failure.
// @Tags routes
// @Success 200 {object} RefreshResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /routes/refresh [post]
func (h *RoutesHandler) RefreshRoutes(c echo.Context) error {
	version, err := h.service.Refresh(c.Request().Context())
	if err != nil {
		if errors.Is(err, mirror.ErrRefreshInProgress) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		h.logger.Warn("manual refresh failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, RefreshResponse{
		Version: version,
		Status:  h.service.Status(),
	})
}
