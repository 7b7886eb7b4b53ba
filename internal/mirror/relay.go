package mirror

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// RouteReader resolves the routes of a source channel.
type RouteReader interface {
	Lookup(src ChannelID) ([]Route, error)
}

// DeliveryResult is the outcome of one push.
type DeliveryResult struct {
	Channel ChannelID
	Err     error
}

// RelayResult summarizes one relayed source message.
type RelayResult struct {
	SourceChannel ChannelID
	MessageID     string
	Attachments   int
	Deliveries    []DeliveryResult
}

func (r RelayResult) Delivered() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Err == nil {
			n++
		}
	}
	return n
}

func (r RelayResult) Failed() int {
	return len(r.Deliveries) - r.Delivered()
}

// BuildRelayMessage translates a source message and its proxied files into
// the payload pushed to each destination.
func BuildRelayMessage(msg SourceMessage, files []File) RelayMessage {
	avatar := strings.TrimSpace(msg.Author.AvatarURL)
	if avatar == "" {
		avatar = DefaultAvatarURL
	}
	var embeds []Embed
	if len(msg.Embeds) > 0 {
		embeds = append(embeds, msg.Embeds...)
	}
	return RelayMessage{
		Username:  msg.Author.Name,
		AvatarURL: avatar,
		Content:   msg.Content,
		Embeds:    embeds,
		Files:     files,
	}
}

// Relay forwards source messages to every mapped destination.
type Relay struct {
	routes      RouteReader
	attachments AttachmentProxy
	pusher      Pusher
	logger      *slog.Logger
}

func NewRelay(log *slog.Logger, routes RouteReader, attachments AttachmentProxy, pusher Pusher) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		routes:      routes,
		attachments: attachments,
		pusher:      pusher,
		logger:      log.With(slog.String("component", "relay")),
	}
}

// HandleMessage relays msg to each destination concurrently. Unmapped
// channels are ignored. A failed push is logged and reported in the result;
// it does not affect the other destinations and is not retried.
func (r *Relay) HandleMessage(ctx context.Context, msg SourceMessage) RelayResult {
	result := RelayResult{SourceChannel: msg.ChannelID, MessageID: msg.ID}
	if r.routes == nil || r.pusher == nil {
		r.logger.Warn("relay not configured", slog.String("channel_id", msg.ChannelID.String()))
		return result
	}
	routes, err := r.routes.Lookup(msg.ChannelID)
	if errors.Is(err, ErrLookupMiss) {
		return result
	}
	if err != nil {
		r.logger.Error("route lookup failed",
			slog.String("channel_id", msg.ChannelID.String()),
			slog.Any("error", err),
		)
		return result
	}

	var files []File
	if len(msg.Attachments) > 0 && r.attachments != nil {
		files = r.attachments.FetchAll(ctx, msg.Attachments)
	}
	result.Attachments = len(files)

	payload := BuildRelayMessage(msg, files)
	if payload.IsEmpty() {
		r.logger.Warn("nothing to relay",
			slog.String("channel_id", msg.ChannelID.String()),
			slog.String("message_id", msg.ID),
			slog.Int("attachments_requested", len(msg.Attachments)),
		)
		return result
	}

	result.Deliveries = make([]DeliveryResult, len(routes))
	var wg sync.WaitGroup
	for i, route := range routes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.pusher.Push(ctx, route.Endpoint, payload)
			result.Deliveries[i] = DeliveryResult{Channel: route.Channel, Err: err}
			if err != nil {
				r.logger.Error("relay push failed",
					slog.String("source_channel_id", msg.ChannelID.String()),
					slog.String("channel_id", route.Channel.String()),
					slog.String("message_id", msg.ID),
					slog.Any("error", err),
				)
				return
			}
			r.logger.Debug("relayed",
				slog.String("source_channel_id", msg.ChannelID.String()),
				slog.String("channel_id", route.Channel.String()),
				slog.String("message_id", msg.ID),
				slog.Int("files", len(payload.Files)),
			)
		}()
	}
	wg.Wait()
	return result
}
