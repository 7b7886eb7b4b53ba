package routingchecker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/memohai/forwardbot/internal/healthcheck"
	"github.com/memohai/forwardbot/internal/mirror"
)

const (
	checkTypeRoutingTable = "routing.table"
	timeLayout            = "2006-01-02T15:04:05Z"
)

// StatusSource reads the routing table refresh status.
type StatusSource interface {
	Status() mirror.RefreshStatus
}

// Checker reports whether a routing table is installed and whether the last
// refresh succeeded.
type Checker struct {
	logger *slog.Logger
	source StatusSource
}

// NewChecker creates a routing table health checker.
func NewChecker(log *slog.Logger, source StatusSource) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		logger: log.With(slog.String("checker", "healthcheck_routing")),
		source: source,
	}
}

// ListChecks evaluates the refresh status.
func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	if c.source == nil {
		c.logger.Warn("routing healthcheck dependency is unavailable")
		return []healthcheck.CheckResult{{
			ID:      checkTypeRoutingTable,
			Type:    checkTypeRoutingTable,
			Status:  healthcheck.StatusWarn,
			Summary: "Routing checker service is not available.",
			Detail:  "status source is nil",
		}}
	}

	status := c.source.Status()
	item := healthcheck.CheckResult{
		ID:       checkTypeRoutingTable,
		Type:     checkTypeRoutingTable,
		Subtitle: fmt.Sprintf("version %d", status.Version),
		Metadata: map[string]any{
			"state":                string(status.State),
			"version":              status.Version,
			"routes":               status.Routes,
			"consecutive_failures": status.ConsecutiveFails,
		},
	}
	if !status.LastFinishedAt.IsZero() {
		item.Metadata["last_finished_at"] = status.LastFinishedAt.UTC().Format(timeLayout)
	}
	lastErr := strings.TrimSpace(status.LastError)

	switch {
	case status.ConfigurationError:
		item.Status = healthcheck.StatusError
		item.Summary = "Bot lacks permission in a mirrored guild."
		item.Detail = lastErr
	case status.Version == 0 && lastErr != "":
		item.Status = healthcheck.StatusError
		item.Summary = "No routing table installed; last refresh failed."
		item.Detail = lastErr
	case status.Version == 0:
		item.Status = healthcheck.StatusUnknown
		item.Summary = "Routing table not built yet."
	case lastErr != "":
		item.Status = healthcheck.StatusWarn
		item.Summary = fmt.Sprintf("Serving version %d; last refresh failed.", status.Version)
		item.Detail = lastErr
	default:
		item.Status = healthcheck.StatusOK
		item.Summary = fmt.Sprintf("Routing %d source channels.", status.Routes)
	}
	return []healthcheck.CheckResult{item}
}
