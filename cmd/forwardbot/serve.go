package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/forwardbot/internal/config"
	"github.com/memohai/forwardbot/internal/discord"
	"github.com/memohai/forwardbot/internal/handlers"
	gatewaychecker "github.com/memohai/forwardbot/internal/healthcheck/checkers/gateway"
	routingchecker "github.com/memohai/forwardbot/internal/healthcheck/checkers/routing"
	"github.com/memohai/forwardbot/internal/logger"
	"github.com/memohai/forwardbot/internal/media"
	"github.com/memohai/forwardbot/internal/mirror"
	"github.com/memohai/forwardbot/internal/schedule"
	"github.com/memohai/forwardbot/internal/server"
)

func newServeCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and relay messages",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(*cfgPath)
		},
	}
}

func runServe(cfgPath string) error {
	app := fx.New(
		fx.Provide(
			func() (config.Config, error) { return loadConfig(cfgPath) },
			provideLogger,
			provideSession,
			provideDiscordClient,
			provideAttachmentProxy,
			mirror.NewTable,
			provideRefresher,
			provideRelay,
			provideMirrorService,
			provideGateway,
			provideScheduleService,
			provideServerHandler(provideHealthHandler),
			provideServerHandler(provideRoutesHandler),
			provideServerHandler(provideAuthHandler),
			provideServer,
		),
		fx.Invoke(
			startMirrorService,
			startGateway,
			startScheduleService,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideSession(cfg config.Config) (*discordgo.Session, error) {
	return discord.NewSession(cfg.Discord.Token)
}

func provideDiscordClient(log *slog.Logger, session *discordgo.Session) *discord.Client {
	return discord.NewClient(log, session)
}

func provideAttachmentProxy(log *slog.Logger, cfg config.Config) *media.Proxy {
	return media.NewProxy(log, nil, cfg.Attachments.MaxBytes, cfg.Attachments.AttachmentTimeout())
}

func provideRefresher(log *slog.Logger, client *discord.Client, table *mirror.Table, cfg config.Config) *mirror.Refresher {
	return mirror.NewRefresher(
		log,
		mirror.NewDiscovery(log, client),
		mirror.NewEndpointResolver(log, client, cfg.Discord.WebhookName),
		table,
		mirror.RefresherConfig{
			Sender:              mirror.CommunityID(cfg.Discord.SenderGuildID),
			Receiver:            mirror.CommunityID(cfg.Discord.ReceiverGuildID),
			EndpointConcurrency: cfg.Refresh.EndpointConcurrency,
		},
	)
}

func provideRelay(log *slog.Logger, table *mirror.Table, proxy *media.Proxy, client *discord.Client) *mirror.Relay {
	return mirror.NewRelay(log, table, proxy, client)
}

func provideMirrorService(log *slog.Logger, refresher *mirror.Refresher, relay *mirror.Relay, cfg config.Config) *mirror.Service {
	return mirror.NewService(log, refresher, relay, mirror.CommunityID(cfg.Discord.SenderGuildID))
}

func provideGateway(log *slog.Logger, session *discordgo.Session, svc *mirror.Service, cfg config.Config) *discord.Gateway {
	return discord.NewGateway(log, session, svc, discord.GatewayOptions{
		RegisterCommands: cfg.Discord.RegisterCommands,
	})
}

func provideScheduleService(log *slog.Logger, refresher *mirror.Refresher, cfg config.Config) (*schedule.Service, error) {
	return schedule.NewService(log, refresher, cfg.Refresh.Schedule)
}

func provideHealthHandler(log *slog.Logger, gateway *discord.Gateway, refresher *mirror.Refresher) *handlers.HealthHandler {
	return handlers.NewHealthHandler(
		gatewaychecker.NewChecker(log, gateway),
		routingchecker.NewChecker(log, refresher),
	)
}

func provideRoutesHandler(log *slog.Logger, svc *mirror.Service) *handlers.RoutesHandler {
	return handlers.NewRoutesHandler(log, svc)
}

func provideAuthHandler(cfg config.Config) (*handlers.AuthHandler, error) {
	ttl, err := cfg.Admin.TokenTTL()
	if err != nil {
		return nil, err
	}
	return handlers.NewAuthHandler(cfg.Admin.JWTSecret, ttl), nil
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Admin.JWTSecret, params.ServerHandlers...)
}

func startMirrorService(lc fx.Lifecycle, svc *mirror.Service) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { svc.Start(ctx); return nil },
		OnStop:  func(_ context.Context) error { cancel(); return nil },
	})
}

func startGateway(lc fx.Lifecycle, gateway *discord.Gateway) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return gateway.Open(ctx) },
		OnStop:  func(_ context.Context) error { return gateway.Close() },
	})
}

func startScheduleService(lc fx.Lifecycle, scheduleService *schedule.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return scheduleService.Bootstrap(ctx) },
		OnStop:  func(ctx context.Context) error { return scheduleService.Stop(ctx) },
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config) {
	if !cfg.Server.Enabled {
		logger.Info("admin server disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("admin server listening", slog.String("addr", cfg.Server.Addr))
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
