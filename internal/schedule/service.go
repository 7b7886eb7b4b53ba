// Package schedule runs the optional periodic routing table refresh.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/memohai/forwardbot/internal/mirror"
)

// Triggerer queues a routing table refresh.
type Triggerer interface {
	Trigger(trigger mirror.Trigger)
}

type Service struct {
	cron      *cron.Cron
	spec      string
	schedule  cron.Schedule
	triggerer Triggerer
	logger    *slog.Logger
	entryID   cron.EntryID
}

// NewService parses spec with the standard five-field cron syntax, which
// also accepts descriptors such as "@hourly" and "@every 30m". An empty spec
// disables the schedule.
func NewService(log *slog.Logger, triggerer Triggerer, spec string) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		spec:      strings.TrimSpace(spec),
		triggerer: triggerer,
		logger:    log.With(slog.String("service", "schedule")),
	}
	if s.spec != "" {
		schedule, err := cron.ParseStandard(s.spec)
		if err != nil {
			return nil, fmt.Errorf("parse refresh schedule %q: %w", s.spec, err)
		}
		s.schedule = schedule
	}
	cronLog := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog)),
	)
	return s, nil
}

func (s *Service) Enabled() bool {
	return s.schedule != nil
}

// Bootstrap registers the refresh job and starts the scheduler.
func (s *Service) Bootstrap(ctx context.Context) error {
	if !s.Enabled() {
		s.logger.Info("scheduled refresh disabled")
		return nil
	}
	s.entryID = s.cron.Schedule(s.schedule, cron.FuncJob(s.fire))
	s.cron.Start()
	s.logger.Info("scheduled refresh enabled",
		slog.String("schedule", s.spec),
		slog.Time("next", s.schedule.Next(time.Now())),
	)
	return nil
}

// Stop stops the scheduler and waits for a running job until ctx is done.
func (s *Service) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) fire() {
	s.logger.Debug("scheduled refresh fired")
	s.triggerer.Trigger(mirror.TriggerSchedule)
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, slog.Any("error", err))...)
}
