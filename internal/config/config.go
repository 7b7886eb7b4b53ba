package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath          = "config.toml"
	DefaultHTTPAddr            = ":8080"
	DefaultWebhookName         = "Forward Bot"
	DefaultEndpointConcurrency = 4
	DefaultAttachmentMaxBytes  = 25 * 1024 * 1024
	DefaultAttachmentTimeout   = 60
	DefaultJWTExpiresIn        = "24h"
)

type Config struct {
	Log         LogConfig         `toml:"log"`
	Discord     DiscordConfig     `toml:"discord"`
	Refresh     RefreshConfig     `toml:"refresh"`
	Attachments AttachmentsConfig `toml:"attachments"`
	Server      ServerConfig      `toml:"server"`
	Admin       AdminConfig       `toml:"admin"`
}

type LogConfig struct {
	Level  string `toml:"level" env:"FORWARDBOT_LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	Format string `toml:"format" env:"FORWARDBOT_LOG_FORMAT" validate:"oneof=text json"`
}

type DiscordConfig struct {
	// Token is the bot token. DISCORD_TOKEN matches the secret name used by
	// existing deployments.
	Token            string `toml:"token" env:"DISCORD_TOKEN" validate:"required"`
	SenderGuildID    string `toml:"sender_guild_id" env:"FORWARDBOT_SENDER_GUILD_ID" validate:"required,numeric"`
	ReceiverGuildID  string `toml:"receiver_guild_id" env:"FORWARDBOT_RECEIVER_GUILD_ID" validate:"required,numeric,nefield=SenderGuildID"`
	WebhookName      string `toml:"webhook_name" env:"FORWARDBOT_WEBHOOK_NAME" validate:"required,max=80"`
	RegisterCommands bool   `toml:"register_commands" env:"FORWARDBOT_REGISTER_COMMANDS"`
}

type RefreshConfig struct {
	// Schedule is an optional cron expression for periodic rebuilds. Empty disables it.
	Schedule            string `toml:"schedule" env:"FORWARDBOT_REFRESH_SCHEDULE"`
	EndpointConcurrency int    `toml:"endpoint_concurrency" env:"FORWARDBOT_REFRESH_ENDPOINT_CONCURRENCY" validate:"min=1,max=32"`
}

type AttachmentsConfig struct {
	MaxBytes       int64 `toml:"max_bytes" env:"FORWARDBOT_ATTACHMENTS_MAX_BYTES" validate:"gt=0"`
	TimeoutSeconds int   `toml:"timeout_seconds" env:"FORWARDBOT_ATTACHMENTS_TIMEOUT_SECONDS" validate:"min=0"`
}

type ServerConfig struct {
	Enabled bool   `toml:"enabled" env:"FORWARDBOT_SERVER_ENABLED"`
	Addr    string `toml:"addr" env:"FORWARDBOT_SERVER_ADDR" validate:"required_if=Enabled true"`
}

type AdminConfig struct {
	JWTSecret    string `toml:"jwt_secret" env:"FORWARDBOT_ADMIN_JWT_SECRET"`
	JWTExpiresIn string `toml:"jwt_expires_in" env:"FORWARDBOT_ADMIN_JWT_EXPIRES_IN"`
}

// AttachmentTimeout returns the per-fetch timeout; zero means no client-side limit.
func (c AttachmentsConfig) AttachmentTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c AdminConfig) TokenTTL() (time.Duration, error) {
	raw := strings.TrimSpace(c.JWTExpiresIn)
	if raw == "" {
		raw = DefaultJWTExpiresIn
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid jwt_expires_in: %w", err)
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("jwt_expires_in must be positive")
	}
	return ttl, nil
}

// Default returns the configuration used before the file and environment are applied.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Discord: DiscordConfig{
			WebhookName:      DefaultWebhookName,
			RegisterCommands: true,
		},
		Refresh: RefreshConfig{
			EndpointConcurrency: DefaultEndpointConcurrency,
		},
		Attachments: AttachmentsConfig{
			MaxBytes:       DefaultAttachmentMaxBytes,
			TimeoutSeconds: DefaultAttachmentTimeout,
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Admin: AdminConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
	}
}

// Load reads the TOML file at path (a missing file is not an error), overlays
// environment variables and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Server.Enabled && strings.TrimSpace(c.Admin.JWTSecret) == "" {
		return fmt.Errorf("invalid config: admin.jwt_secret is required when server is enabled")
	}
	if _, err := c.Admin.TokenTTL(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
