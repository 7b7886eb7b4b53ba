package gatewaychecker

import (
	"context"
	"log/slog"

	"github.com/memohai/forwardbot/internal/healthcheck"
)

const checkTypeGateway = "discord.gateway"

// ConnectionObserver reports whether the gateway session is ready.
type ConnectionObserver interface {
	Connected() bool
}

// Checker evaluates the Discord gateway connection.
type Checker struct {
	logger   *slog.Logger
	observer ConnectionObserver
}

// NewChecker creates a gateway health checker.
func NewChecker(log *slog.Logger, observer ConnectionObserver) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		logger:   log.With(slog.String("checker", "healthcheck_gateway")),
		observer: observer,
	}
}

func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	if c.observer == nil {
		c.logger.Warn("gateway healthcheck dependency is unavailable")
		return []healthcheck.CheckResult{{
			ID:      checkTypeGateway,
			Type:    checkTypeGateway,
			Status:  healthcheck.StatusWarn,
			Summary: "Gateway checker service is not available.",
			Detail:  "connection observer is nil",
		}}
	}
	if c.observer.Connected() {
		return []healthcheck.CheckResult{{
			ID:      checkTypeGateway,
			Type:    checkTypeGateway,
			Status:  healthcheck.StatusOK,
			Summary: "Discord gateway is connected.",
		}}
	}
	return []healthcheck.CheckResult{{
		ID:      checkTypeGateway,
		Type:    checkTypeGateway,
		Status:  healthcheck.StatusError,
		Summary: "Discord gateway is disconnected.",
	}}
}
