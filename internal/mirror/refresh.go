package mirror

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle state of the routing table.
type State string

const (
	StateEmpty     State = "empty"
	StateBuilding  State = "building"
	StateInstalled State = "installed"
)

// Trigger names what caused a refresh.
type Trigger string

const (
	TriggerStartup        Trigger = "startup"
	TriggerChannelCreated Trigger = "channel_created"
	TriggerSchedule       Trigger = "schedule"
	TriggerManual         Trigger = "manual"
)

// MappingSource computes the channel mapping for a sender/receiver pair.
type MappingSource interface {
	Discover(ctx context.Context, sender, receiver CommunityID) (ChannelMapping, error)
}

// EndpointSource resolves the delivery endpoint of a destination channel.
type EndpointSource interface {
	Resolve(ctx context.Context, channel ChannelID) (DeliveryEndpoint, error)
}

// RefresherConfig names the mirrored communities.
type RefresherConfig struct {
	Sender   CommunityID
	Receiver CommunityID
	// EndpointConcurrency bounds concurrent endpoint resolution. Defaults to 4.
	EndpointConcurrency int
}

// RefreshStatus describes the latest refresh attempt.
type RefreshStatus struct {
	State              State         `json:"state"`
	Version            uint64        `json:"version"`
	Routes             int           `json:"routes"`
	LastTrigger        Trigger       `json:"last_trigger,omitempty"`
	LastRefreshID      string        `json:"last_refresh_id,omitempty"`
	LastStartedAt      time.Time     `json:"last_started_at,omitempty"`
	LastFinishedAt     time.Time     `json:"last_finished_at,omitempty"`
	LastDuration       time.Duration `json:"last_duration,omitempty"`
	LastError          string        `json:"last_error,omitempty"`
	ConfigurationError bool          `json:"configuration_error,omitempty"`
	ConsecutiveFails   int           `json:"consecutive_failures"`
}

// Refresher rebuilds the routing table and installs it atomically. Builds
// are serialized; the installed table keeps serving while a build runs and
// after a build fails.
type Refresher struct {
	mappings  MappingSource
	endpoints EndpointSource
	table     *Table
	cfg       RefresherConfig
	logger    *slog.Logger

	buildMu  sync.Mutex
	statusMu sync.RWMutex
	status   RefreshStatus

	triggers chan Trigger
	loopOnce sync.Once
}

func NewRefresher(log *slog.Logger, mappings MappingSource, endpoints EndpointSource, table *Table, cfg RefresherConfig) *Refresher {
	if log == nil {
		log = slog.Default()
	}
	if table == nil {
		table = NewTable()
	}
	if cfg.EndpointConcurrency <= 0 {
		cfg.EndpointConcurrency = 4
	}
	return &Refresher{
		mappings:  mappings,
		endpoints: endpoints,
		table:     table,
		cfg:       cfg,
		logger:    log.With(slog.String("component", "refresh")),
		status:    RefreshStatus{State: StateEmpty},
		triggers:  make(chan Trigger, 1),
	}
}

// Table returns the table this refresher installs into.
func (r *Refresher) Table() *Table {
	return r.table
}

// Status returns a copy of the latest refresh status.
func (r *Refresher) Status() RefreshStatus {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	return r.status
}

// Refresh runs one full rebuild and returns the installed version. It waits
// for a build already in progress to finish first.
func (r *Refresher) Refresh(ctx context.Context, trigger Trigger) (uint64, error) {
	r.buildMu.Lock()
	defer r.buildMu.Unlock()
	return r.run(ctx, trigger)
}

// TryRefresh is Refresh without waiting: it returns ErrRefreshInProgress when
// another build holds the lock.
func (r *Refresher) TryRefresh(ctx context.Context, trigger Trigger) (uint64, error) {
	if !r.buildMu.TryLock() {
		return 0, ErrRefreshInProgress
	}
	defer r.buildMu.Unlock()
	return r.run(ctx, trigger)
}

// Trigger queues an asynchronous refresh for the loop started by Start.
// Triggers that arrive while one is already queued are coalesced.
func (r *Refresher) Trigger(trigger Trigger) {
	select {
	case r.triggers <- trigger:
	default:
		r.logger.Debug("refresh already queued", slog.String("trigger", string(trigger)))
	}
}

// Start consumes queued triggers until ctx is done. Calling it more than
// once has no effect.
func (r *Refresher) Start(ctx context.Context) {
	r.loopOnce.Do(func() {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case trigger := <-r.triggers:
					// Errors are logged and recorded in Status by run.
					_, _ = r.Refresh(ctx, trigger)
				}
			}
		}()
	})
}

func (r *Refresher) run(ctx context.Context, trigger Trigger) (uint64, error) {
	refreshID := uuid.NewString()
	log := r.logger.With(
		slog.String("refresh_id", refreshID),
		slog.String("trigger", string(trigger)),
	)
	started := time.Now()

	r.statusMu.Lock()
	previous := r.status.State
	r.status.State = StateBuilding
	r.status.LastTrigger = trigger
	r.status.LastRefreshID = refreshID
	r.status.LastStartedAt = started.UTC()
	r.statusMu.Unlock()

	log.Info("refresh started")
	next, err := r.build(ctx)
	var version uint64
	if err == nil {
		version, err = r.table.Replace(next)
		if err != nil {
			err = &RefreshError{Stage: StageInstall, Err: err}
		}
	}
	finished := time.Now()

	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	r.status.LastFinishedAt = finished.UTC()
	r.status.LastDuration = finished.Sub(started)
	if err != nil {
		r.status.State = previous
		r.status.LastError = err.Error()
		r.status.ConfigurationError = IsConfigurationError(err)
		r.status.ConsecutiveFails++
		log.Error("refresh aborted, previous routing table kept",
			slog.Uint64("serving_version", r.table.Read().Version()),
			slog.Bool("configuration_error", r.status.ConfigurationError),
			slog.Any("error", err),
		)
		return 0, err
	}
	r.status.State = StateInstalled
	r.status.Version = version
	r.status.Routes = next.Len()
	r.status.LastError = ""
	r.status.ConfigurationError = false
	r.status.ConsecutiveFails = 0
	log.Info("routing table installed",
		slog.Uint64("version", version),
		slog.Int("routes", next.Len()),
		slog.Duration("duration", r.status.LastDuration),
	)
	return version, nil
}

func (r *Refresher) build(ctx context.Context) (*RoutingTable, error) {
	if r.mappings == nil || r.endpoints == nil {
		return nil, &RefreshError{Stage: StageDiscovery, Err: errors.New("refresher not configured")}
	}
	mapping, err := r.mappings.Discover(ctx, r.cfg.Sender, r.cfg.Receiver)
	if err != nil {
		return nil, &RefreshError{Stage: StageDiscovery, Err: err}
	}

	destinations := mapping.Destinations()
	endpoints := make(map[ChannelID]DeliveryEndpoint, len(destinations))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.EndpointConcurrency)
	for _, dst := range destinations {
		g.Go(func() error {
			ep, err := r.endpoints.Resolve(gctx, dst)
			if err != nil {
				return err
			}
			mu.Lock()
			endpoints[dst] = ep
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &RefreshError{Stage: StageEndpoints, Err: err}
	}

	table, err := NewRoutingTable(mapping, endpoints)
	if err != nil {
		return nil, &RefreshError{Stage: StageInstall, Err: err}
	}
	return table, nil
}
