// Package discord binds the mirror domain to the Discord REST API and gateway.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/memohai/forwardbot/internal/mirror"
)

// restSession is the subset of *discordgo.Session used for REST calls.
type restSession interface {
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	GuildChannelCreate(guildID, name string, ctype discordgo.ChannelType, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelWebhooks(channelID string, options ...discordgo.RequestOption) ([]*discordgo.Webhook, error)
	WebhookCreate(channelID, name, avatar string, options ...discordgo.RequestOption) (*discordgo.Webhook, error)
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Client implements mirror.ChannelDirectory, mirror.EndpointService and
// mirror.Pusher on top of a discordgo session.
type Client struct {
	session restSession
	logger  *slog.Logger
}

func NewClient(log *slog.Logger, session restSession) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		session: session,
		logger:  log.With(slog.String("adapter", "discord")),
	}
}

func (c *Client) ListChannels(ctx context.Context, community mirror.CommunityID) ([]mirror.ChannelDescriptor, error) {
	channels, err := c.session.GuildChannels(community.String(), discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]mirror.ChannelDescriptor, 0, len(channels))
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		out = append(out, channelDescriptor(ch))
	}
	return out, nil
}

func (c *Client) CreateChannel(ctx context.Context, community mirror.CommunityID, name string, kind mirror.ChannelKind) (mirror.ChannelDescriptor, error) {
	ch, err := c.session.GuildChannelCreate(community.String(), name, discordgo.ChannelType(kind), discordgo.WithContext(ctx))
	if err != nil {
		return mirror.ChannelDescriptor{}, mapError(err)
	}
	if ch == nil {
		return mirror.ChannelDescriptor{}, errors.New("discord returned no channel")
	}
	return channelDescriptor(ch), nil
}

func (c *Client) ListEndpoints(ctx context.Context, channel mirror.ChannelID) ([]mirror.Endpoint, error) {
	hooks, err := c.session.ChannelWebhooks(channel.String(), discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]mirror.Endpoint, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		out = append(out, endpoint(hook))
	}
	return out, nil
}

func (c *Client) CreateEndpoint(ctx context.Context, channel mirror.ChannelID, displayName string) (mirror.Endpoint, error) {
	hook, err := c.session.WebhookCreate(channel.String(), displayName, "", discordgo.WithContext(ctx))
	if err != nil {
		return mirror.Endpoint{}, mapError(err)
	}
	if hook == nil {
		return mirror.Endpoint{}, errors.New("discord returned no webhook")
	}
	return endpoint(hook), nil
}

// Push executes the webhook of ep with msg.
func (c *Client) Push(ctx context.Context, ep mirror.DeliveryEndpoint, msg mirror.RelayMessage) error {
	if !ep.HasToken() {
		return fmt.Errorf("webhook %s has no token", ep.EndpointID)
	}
	params := webhookParams(msg)
	if _, err := c.session.WebhookExecute(ep.EndpointID, ep.Token, false, params, discordgo.WithContext(ctx)); err != nil {
		return mapError(err)
	}
	return nil
}

// mapError marks missing permission and access failures with
// mirror.ErrPermissionDenied.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return err
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
			return fmt.Errorf("%w: %w", mirror.ErrPermissionDenied, err)
		}
	}
	if restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %w", mirror.ErrPermissionDenied, err)
	}
	return err
}

func channelDescriptor(ch *discordgo.Channel) mirror.ChannelDescriptor {
	return mirror.ChannelDescriptor{
		ID:       mirror.ChannelID(ch.ID),
		Name:     ch.Name,
		Kind:     mirror.ChannelKind(ch.Type),
		Category: ch.Type == discordgo.ChannelTypeGuildCategory,
	}
}

func endpoint(hook *discordgo.Webhook) mirror.Endpoint {
	return mirror.Endpoint{
		ID:    hook.ID,
		Name:  hook.Name,
		Token: hook.Token,
	}
}

const (
	maxContentLength  = 2000
	maxUsernameLength = 80
	fallbackUsername  = "Unknown"
)

func webhookParams(msg mirror.RelayMessage) *discordgo.WebhookParams {
	params := &discordgo.WebhookParams{
		Content:   truncateRunes(msg.Content, maxContentLength),
		Username:  webhookUsername(msg.Username),
		AvatarURL: msg.AvatarURL,
		// Relayed mentions must not ping the destination guild.
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}},
	}
	for _, e := range msg.Embeds {
		if embed := toDiscordEmbed(e); embed != nil {
			params.Embeds = append(params.Embeds, embed)
		}
	}
	for _, f := range msg.Files {
		params.Files = append(params.Files, &discordgo.File{
			Name:        f.Name,
			ContentType: f.ContentType,
			Reader:      bytes.NewReader(f.Data),
		})
	}
	return params
}

func webhookUsername(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallbackUsername
	}
	return truncateRunes(name, maxUsernameLength)
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-3]) + "..."
}
