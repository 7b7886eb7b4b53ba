package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DiscoveryPlan is the result of matching sender channels against receiver
// channels without touching the platform.
type DiscoveryPlan struct {
	// Mapping holds sender channels that already have a mirror.
	Mapping ChannelMapping
	// Missing lists sender channels that need a mirror, in listing order.
	Missing []ChannelDescriptor
}

// PlanMapping matches every non-category sender channel to the first
// non-category receiver channel whose name contains the sender id. Matching
// on the embedded id tolerates renamed mirrors; ids are unique, names are not.
func PlanMapping(sender, receiver []ChannelDescriptor) DiscoveryPlan {
	targets := relayable(receiver)
	plan := DiscoveryPlan{Mapping: ChannelMapping{}}
	for _, src := range relayable(sender) {
		if _, dup := plan.Mapping[src.ID]; dup {
			continue
		}
		if dst, ok := findMirror(src.ID, targets); ok {
			plan.Mapping[src.ID] = []ChannelID{dst.ID}
			continue
		}
		if containsChannel(plan.Missing, src.ID) {
			continue
		}
		plan.Missing = append(plan.Missing, src)
	}
	return plan
}

func relayable(channels []ChannelDescriptor) []ChannelDescriptor {
	out := make([]ChannelDescriptor, 0, len(channels))
	for _, ch := range channels {
		if ch.Category || strings.TrimSpace(ch.ID.String()) == "" {
			continue
		}
		out = append(out, ch)
	}
	return out
}

func findMirror(id ChannelID, receiver []ChannelDescriptor) (ChannelDescriptor, bool) {
	needle := id.String()
	for _, ch := range receiver {
		if strings.Contains(ch.Name, needle) {
			return ch, true
		}
	}
	return ChannelDescriptor{}, false
}

func containsChannel(list []ChannelDescriptor, id ChannelID) bool {
	for _, ch := range list {
		if ch.ID == id {
			return true
		}
	}
	return false
}

// Discovery builds the channel mapping between the sender and receiver
// communities, creating mirror channels where none exist.
type Discovery struct {
	directory ChannelDirectory
	logger    *slog.Logger
}

func NewDiscovery(log *slog.Logger, directory ChannelDirectory) *Discovery {
	if log == nil {
		log = slog.Default()
	}
	return &Discovery{
		directory: directory,
		logger:    log.With(slog.String("component", "discovery")),
	}
}

// Plan lists both communities concurrently and matches them.
func (d *Discovery) Plan(ctx context.Context, sender, receiver CommunityID) (DiscoveryPlan, error) {
	if d.directory == nil {
		return DiscoveryPlan{}, fmt.Errorf("channel directory not configured")
	}
	var senderChannels, receiverChannels []ChannelDescriptor
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := d.directory.ListChannels(gctx, sender)
		if err != nil {
			return platformErr("list sender channels "+sender.String(), err)
		}
		senderChannels = items
		return nil
	})
	g.Go(func() error {
		items, err := d.directory.ListChannels(gctx, receiver)
		if err != nil {
			return platformErr("list receiver channels "+receiver.String(), err)
		}
		receiverChannels = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return DiscoveryPlan{}, err
	}
	return PlanMapping(senderChannels, receiverChannels), nil
}

// Discover returns a complete mapping for every relayable sender channel. Any
// creation failure aborts discovery; no partial mapping is returned.
func (d *Discovery) Discover(ctx context.Context, sender, receiver CommunityID) (ChannelMapping, error) {
	plan, err := d.Plan(ctx, sender, receiver)
	if err != nil {
		return nil, err
	}
	mapping := plan.Mapping
	for _, src := range plan.Missing {
		name := MirrorName(src)
		created, err := d.directory.CreateChannel(ctx, receiver, name, src.Kind)
		if err != nil {
			if IsConfigurationError(err) {
				d.logger.Error("missing permission to create mirror channel, fix the bot role in the receiver guild",
					slog.String("guild_id", receiver.String()),
					slog.String("name", name),
					slog.Any("error", err),
				)
			}
			return nil, platformErr(fmt.Sprintf("create mirror channel %q", name), err)
		}
		d.logger.Info("mirror channel created",
			slog.String("source_channel_id", src.ID.String()),
			slog.String("channel_id", created.ID.String()),
			slog.String("name", created.Name),
		)
		mapping[src.ID] = []ChannelID{created.ID}
	}
	return mapping, nil
}
