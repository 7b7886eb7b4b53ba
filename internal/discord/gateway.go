package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/memohai/forwardbot/internal/mirror"
)

// Intents are the gateway intents the relay needs: guild channel events,
// guild messages and their content.
const Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

const (
	inboundDedupTTL   = time.Minute
	inboundSweepEvery = 15 * time.Second

	pingCommandName        = "ping"
	pingCommandDescription = "Use this to check if the bot is alive"
	pingReply              = "Pong"
)

// Events receives translated gateway events.
type Events interface {
	OnReady(ctx context.Context)
	OnChannelCreated(ctx context.Context, community mirror.CommunityID, channel mirror.ChannelDescriptor)
	OnMessage(ctx context.Context, msg mirror.SourceMessage)
}

type commandRegistrar interface {
	ApplicationCommandCreate(appID string, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
}

type interactionResponder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// NewSession creates a bot session with Intents set. The connection is
// opened by Gateway.Open.
func NewSession(token string) (*discordgo.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("discord token is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = Intents
	return session, nil
}

type GatewayOptions struct {
	// RegisterCommands registers the global /ping command on Ready.
	RegisterCommands bool
}

// Gateway forwards gateway events from a session to Events.
type Gateway struct {
	session *discordgo.Session
	events  Events
	opts    GatewayOptions
	logger  *slog.Logger

	mu       sync.Mutex
	removers []func()
	ctx      context.Context
	cancel   context.CancelFunc

	seenMu    sync.Mutex
	seen      map[string]time.Time
	lastSweep time.Time
}

func NewGateway(log *slog.Logger, session *discordgo.Session, events Events, opts GatewayOptions) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		session: session,
		events:  events,
		opts:    opts,
		logger:  log.With(slog.String("adapter", "discord")),
		seen:    make(map[string]time.Time),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Open registers the handlers and connects. Handlers keep running after ctx
// is done; Close stops them.
func (g *Gateway) Open(ctx context.Context) error {
	if g.session == nil {
		return errors.New("discord session is nil")
	}
	g.mu.Lock()
	g.removers = append(g.removers,
		g.session.AddHandler(g.onReady),
		g.session.AddHandler(g.onChannelCreate),
		g.session.AddHandler(g.onMessageCreate),
		g.session.AddHandler(g.onInteractionCreate),
	)
	g.mu.Unlock()

	if err := g.session.Open(); err != nil {
		g.removeHandlers()
		return fmt.Errorf("discord open connection: %w", err)
	}
	g.logger.Info("gateway connected")
	return nil
}

// Close removes the handlers, cancels in-flight relays and disconnects.
func (g *Gateway) Close() error {
	g.removeHandlers()
	g.cancel()
	if g.session == nil {
		return nil
	}
	g.logger.Info("gateway closing")
	return g.session.Close()
}

// Connected reports whether the session has completed its handshake.
func (g *Gateway) Connected() bool {
	if g.session == nil {
		return false
	}
	g.session.RLock()
	defer g.session.RUnlock()
	return g.session.DataReady
}

func (g *Gateway) removeHandlers() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, remove := range g.removers {
		remove()
	}
	g.removers = nil
}

func (g *Gateway) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if r.User != nil {
		g.logger.Info("ready",
			slog.String("user", r.User.Username),
			slog.Int("guilds", len(r.Guilds)),
		)
	}
	g.events.OnReady(g.ctx)
	if g.opts.RegisterCommands && s != nil {
		g.registerCommands(s, applicationID(r))
	}
}

func (g *Gateway) registerCommands(reg commandRegistrar, appID string) {
	if appID == "" {
		g.logger.Warn("skip command registration: unknown application id")
		return
	}
	if _, err := reg.ApplicationCommandCreate(appID, "", pingCommand(), discordgo.WithContext(g.ctx)); err != nil {
		g.logger.Error("register command failed", slog.String("command", pingCommandName), slog.Any("error", err))
	}
}

func (g *Gateway) onChannelCreate(_ *discordgo.Session, c *discordgo.ChannelCreate) {
	if c == nil || c.Channel == nil {
		return
	}
	g.events.OnChannelCreated(g.ctx, mirror.CommunityID(c.GuildID), channelDescriptor(c.Channel))
}

func (g *Gateway) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.GuildID == "" {
		return
	}
	if g.ctx.Err() != nil {
		return
	}
	if g.isDuplicateInbound(m.ID) {
		return
	}
	g.events.OnMessage(g.ctx, sourceMessage(m.Message))
}

func (g *Gateway) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	g.handleInteraction(s, i)
}

func (g *Gateway) handleInteraction(r interactionResponder, i *discordgo.InteractionCreate) {
	if i == nil || i.Interaction == nil || i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.ApplicationCommandData().Name != pingCommandName {
		return
	}
	if err := r.InteractionRespond(i.Interaction, pingResponse(), discordgo.WithContext(g.ctx)); err != nil {
		g.logger.Error("ping reply failed", slog.Any("error", err))
	}
}

// isDuplicateInbound reports whether messageID was seen within
// inboundDedupTTL. Reconnects may replay recent MESSAGE_CREATE events.
func (g *Gateway) isDuplicateInbound(messageID string) bool {
	return g.isDuplicateAt(messageID, time.Now().UTC())
}

func (g *Gateway) isDuplicateAt(messageID string, now time.Time) bool {
	if strings.TrimSpace(messageID) == "" {
		return false
	}
	expireBefore := now.Add(-inboundDedupTTL)

	g.seenMu.Lock()
	defer g.seenMu.Unlock()

	if now.Sub(g.lastSweep) >= inboundSweepEvery {
		for key, seenAt := range g.seen {
			if seenAt.Before(expireBefore) {
				delete(g.seen, key)
			}
		}
		g.lastSweep = now
	}
	if seenAt, ok := g.seen[messageID]; ok && !seenAt.Before(expireBefore) {
		return true
	}
	g.seen[messageID] = now
	return false
}

func applicationID(r *discordgo.Ready) string {
	if r == nil {
		return ""
	}
	if r.Application != nil && r.Application.ID != "" {
		return r.Application.ID
	}
	if r.User != nil {
		return r.User.ID
	}
	return ""
}

func pingCommand() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        pingCommandName,
		Description: pingCommandDescription,
	}
}

func pingResponse() *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: pingReply,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
}
