// Package config loads client and gateway settings from an optional YAML
// file with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/planningpoker/go/internal/issues"
	"github.com/mcdev12/planningpoker/go/internal/retry"
	"github.com/mcdev12/planningpoker/go/internal/session"
	"gopkg.in/yaml.v3"
)

// Change feed modes.
const (
	FeedListen = "listen"
	FeedPoll   = "poll"
	FeedMemory = "memory"
)

// Presence transports.
const (
	PresenceMemory    = "memory"
	PresenceNATS      = "nats"
	PresenceWebSocket = "websocket"
)

type FeedConfig struct {
	Mode             string        `yaml:"mode"`
	NotifyChannel    string        `yaml:"notify_channel"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	FallbackInterval time.Duration `yaml:"fallback_interval"`
}

type PresenceConfig struct {
	Transport  string        `yaml:"transport"`
	NATSURL    string        `yaml:"nats_url"`
	TTL        time.Duration `yaml:"ttl"`
	GatewayURL string        `yaml:"gateway_url"`
}

type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
}

type Config struct {
	GameID         string         `yaml:"game_id"`
	ActivationMode string         `yaml:"activation_mode"`
	ResyncInterval time.Duration  `yaml:"resync_interval"`
	ProfilePath    string         `yaml:"profile_path"`
	LogLevel       string         `yaml:"log_level"`
	GatewayPort    int            `yaml:"gateway_port"`
	MetricsAddr    string         `yaml:"metrics_addr"`
	Feed           FeedConfig     `yaml:"feed"`
	Presence       PresenceConfig `yaml:"presence"`
	Retry          RetryConfig    `yaml:"retry"`
	Policy         session.Policy `yaml:"policy"`
}

// Default returns the settings used when neither file nor environment set
// a value.
func Default() Config {
	r := retry.DefaultConfig()
	return Config{
		ActivationMode: "procedure",
		ResyncInterval: 30 * time.Second,
		ProfilePath:    defaultProfilePath(),
		LogLevel:       "info",
		GatewayPort:    8081,
		Feed: FeedConfig{
			Mode:             FeedListen,
			NotifyChannel:    "poker_changes",
			PollInterval:     2 * time.Second,
			FallbackInterval: 30 * time.Second,
		},
		Presence: PresenceConfig{
			Transport:  PresenceMemory,
			NATSURL:    "nats://localhost:4222",
			TTL:        30 * time.Second,
			GatewayURL: "ws://localhost:8081/ws/presence",
		},
		Retry: RetryConfig{
			MaxRetries: r.MaxRetries,
			BaseDelay:  r.BaseDelay,
			MaxDelay:   r.MaxDelay,
		},
		Policy: session.DefaultPolicy(),
	}
}

// Load reads path (if non-empty and present), then applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.GameID = getEnv("GAME_ID", c.GameID)
	c.ActivationMode = getEnv("ACTIVATION_MODE", c.ActivationMode)
	c.ResyncInterval = getEnvAsDuration("RESYNC_INTERVAL", c.ResyncInterval)
	c.ProfilePath = getEnv("PROFILE_PATH", c.ProfilePath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.GatewayPort = getEnvAsInt("GATEWAY_PORT", c.GatewayPort)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)

	c.Feed.Mode = getEnv("FEED_MODE", c.Feed.Mode)
	c.Feed.NotifyChannel = getEnv("NOTIFY_CHANNEL", c.Feed.NotifyChannel)
	c.Feed.PollInterval = getEnvAsDuration("POLL_INTERVAL", c.Feed.PollInterval)
	c.Feed.FallbackInterval = getEnvAsDuration("FALLBACK_INTERVAL", c.Feed.FallbackInterval)

	c.Presence.Transport = getEnv("PRESENCE_TRANSPORT", c.Presence.Transport)
	c.Presence.NATSURL = getEnv("NATS_URL", c.Presence.NATSURL)
	c.Presence.TTL = getEnvAsDuration("PRESENCE_TTL", c.Presence.TTL)
	c.Presence.GatewayURL = getEnv("PRESENCE_GATEWAY_URL", c.Presence.GatewayURL)

	c.Retry.MaxRetries = getEnvAsInt("RETRY_MAX", c.Retry.MaxRetries)
	c.Retry.BaseDelay = getEnvAsDuration("RETRY_BASE_DELAY", c.Retry.BaseDelay)

	c.Policy.MinVotesToReveal = getEnvAsInt("REVEAL_MIN_VOTES", c.Policy.MinVotesToReveal)
	c.Policy.SpectatorsCanControl = getEnvAsBool("SPECTATORS_CAN_CONTROL", c.Policy.SpectatorsCanControl)
}

// Validate checks enumerated settings. GameID is not required here since
// the gateway has no room of its own.
func (c *Config) Validate() error {
	switch c.Feed.Mode {
	case FeedListen, FeedPoll, FeedMemory:
	default:
		return fmt.Errorf("unknown feed mode %q", c.Feed.Mode)
	}
	switch c.Presence.Transport {
	case PresenceMemory, PresenceNATS, PresenceWebSocket:
	default:
		return fmt.Errorf("unknown presence transport %q", c.Presence.Transport)
	}
	if _, err := c.Activation(); err != nil {
		return err
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry max must not be negative")
	}
	if c.Policy.MinVotesToReveal < 0 {
		return fmt.Errorf("reveal min votes must not be negative")
	}
	return nil
}

// EnsureGameID fills in a fresh room id when none was configured and
// reports whether it did.
func (c *Config) EnsureGameID() bool {
	if strings.TrimSpace(c.GameID) != "" {
		return false
	}
	c.GameID = NewGameID()
	return true
}

// NewGameID returns a short random room id that is easy to share.
func NewGameID() string {
	return "room-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Activation maps ActivationMode to the issues repository setting.
func (c *Config) Activation() (issues.ActivationMode, error) {
	switch strings.ToLower(c.ActivationMode) {
	case "", "procedure":
		return issues.ActivateProcedure, nil
	case "steps":
		return issues.ActivateSteps, nil
	default:
		return "", fmt.Errorf("unknown activation mode %q", c.ActivationMode)
	}
}

func (c *Config) RetryConfig() retry.Config {
	return retry.Config{
		MaxRetries: c.Retry.MaxRetries,
		BaseDelay:  c.Retry.BaseDelay,
		MaxDelay:   c.Retry.MaxDelay,
	}
}

// SessionConfig builds the controller settings for the configured room.
func (c *Config) SessionConfig() session.Config {
	cfg := session.DefaultConfig(c.GameID)
	cfg.Policy = c.Policy
	cfg.ResyncInterval = c.ResyncInterval
	return cfg
}

func defaultProfilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".planningpoker.yaml"
	}
	return filepath.Join(dir, "planningpoker", "profile.yaml")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
