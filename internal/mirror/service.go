package mirror

import (
	"context"
	"log/slog"
)

// Service routes platform events to the refresher and the relay.
type Service struct {
	refresher *Refresher
	relay     *Relay
	sender    CommunityID
	logger    *slog.Logger
}

func NewService(log *slog.Logger, refresher *Refresher, relay *Relay, sender CommunityID) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		refresher: refresher,
		relay:     relay,
		sender:    sender,
		logger:    log.With(slog.String("component", "mirror")),
	}
}

// Start runs the refresh loop until ctx is done.
func (s *Service) Start(ctx context.Context) {
	s.refresher.Start(ctx)
}

// OnReady schedules the startup rebuild. The platform may deliver Ready again
// after a reconnect; each delivery rebuilds.
func (s *Service) OnReady(ctx context.Context) {
	s.logger.Info("ready, scheduling routing table build")
	s.refresher.Trigger(TriggerStartup)
}

// OnChannelCreated schedules a full rebuild when the sender community gains
// a relayable channel.
func (s *Service) OnChannelCreated(ctx context.Context, community CommunityID, channel ChannelDescriptor) {
	if community != s.sender || channel.Category {
		return
	}
	s.logger.Info("source channel created, scheduling refresh",
		slog.String("channel_id", channel.ID.String()),
		slog.String("name", channel.Name),
	)
	s.refresher.Trigger(TriggerChannelCreated)
}

// OnMessage relays msg when it was posted in the sender community.
func (s *Service) OnMessage(ctx context.Context, msg SourceMessage) {
	if msg.CommunityID != s.sender {
		return
	}
	result := s.relay.HandleMessage(ctx, msg)
	if failed := result.Failed(); failed > 0 {
		s.logger.Warn("message partially relayed",
			slog.String("channel_id", msg.ChannelID.String()),
			slog.String("message_id", msg.ID),
			slog.Int("delivered", result.Delivered()),
			slog.Int("failed", failed),
		)
	}
}

// Refresh rebuilds synchronously; used by the admin API.
func (s *Service) Refresh(ctx context.Context) (uint64, error) {
	return s.refresher.TryRefresh(ctx, TriggerManual)
}

// Snapshot returns the installed table view.
func (s *Service) Snapshot() Snapshot {
	return s.refresher.Table().Read().Snapshot()
}

// Status returns the refresher status.
func (s *Service) Status() RefreshStatus {
	return s.refresher.Status()
}
