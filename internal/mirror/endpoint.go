package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultEndpointName is the display name of webhooks created by the resolver.
const DefaultEndpointName = "Forward Bot"

// SelectEndpoint returns the first endpoint that carries a token.
func SelectEndpoint(endpoints []Endpoint) (Endpoint, bool) {
	for _, ep := range endpoints {
		if ep.HasToken() {
			return ep, true
		}
	}
	return Endpoint{}, false
}

// EndpointResolver finds or creates the webhook used to push into a
// destination channel. Webhooks are never deleted.
type EndpointResolver struct {
	service     EndpointService
	displayName string
	logger      *slog.Logger
}

func NewEndpointResolver(log *slog.Logger, service EndpointService, displayName string) *EndpointResolver {
	if log == nil {
		log = slog.Default()
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = DefaultEndpointName
	}
	return &EndpointResolver{
		service:     service,
		displayName: displayName,
		logger:      log.With(slog.String("component", "endpoint_resolver")),
	}
}

// Resolve returns a usable endpoint for channel, creating at most one webhook.
func (r *EndpointResolver) Resolve(ctx context.Context, channel ChannelID) (DeliveryEndpoint, error) {
	if r.service == nil {
		return DeliveryEndpoint{}, fmt.Errorf("endpoint service not configured")
	}
	existing, err := r.service.ListEndpoints(ctx, channel)
	if err != nil {
		return DeliveryEndpoint{}, platformErr("list webhooks "+channel.String(), err)
	}
	if ep, ok := SelectEndpoint(existing); ok {
		return DeliveryEndpoint{ChannelID: channel, EndpointID: ep.ID, Token: ep.Token}, nil
	}

	created, err := r.service.CreateEndpoint(ctx, channel, r.displayName)
	if err != nil {
		return DeliveryEndpoint{}, platformErr("create webhook "+channel.String(), err)
	}
	if !created.HasToken() {
		return DeliveryEndpoint{}, platformErr("create webhook "+channel.String(), fmt.Errorf("webhook %s returned without token", created.ID))
	}
	r.logger.Info("webhook created",
		slog.String("channel_id", channel.String()),
		slog.String("webhook_id", created.ID),
	)
	return DeliveryEndpoint{ChannelID: channel, EndpointID: created.ID, Token: created.Token}, nil
}
