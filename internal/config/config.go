// Package config gathers the voice client's settings from a .env file, the
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/1ureka/proxvoice/internal/signaling"
)

// Config stores every parameter the client needs to join voice chat.
type Config struct {
	RelayURL    string        `env:"PROXVOICE_RELAY_URL"`  // voice relay; normally sent by the unlock packet
	SocketURL   string        `env:"PROXVOICE_SOCKET_URL"` // plugin websocket
	ServerKey   string        `env:"PROXVOICE_SERVER_KEY"`
	PlayerUUID  uuid.UUID     `env:"PROXVOICE_PLAYER_UUID"`
	PlayerName  string        `env:"PROXVOICE_PLAYER_NAME"`
	StreamKey   string        `env:"PROXVOICE_STREAM_KEY"` // with RelayURL, enables voice without waiting for unlock
	Radius      int           `env:"PROXVOICE_RADIUS, default=25"`
	PrefsPath   string        `env:"PROXVOICE_PREFS_PATH"`
	ICEServers  []string      `env:"PROXVOICE_ICE_SERVERS"`
	SwitchDelay time.Duration `env:"PROXVOICE_SWITCH_DELAY, default=3500ms"`
	MetricsAddr string        `env:"PROXVOICE_METRICS_ADDR"`
	Debug       bool          `env:"PROXVOICE_DEBUG"`
}

// Load reads .env (if present), the environment, then args.
func Load(ctx context.Context, args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return load(ctx, args, envconfig.OsLookuper())
}

func load(ctx context.Context, args []string, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	flags := flag.NewFlagSet("proxvoice", flag.ContinueOnError)
	flags.StringVar(&cfg.RelayURL, "relay", cfg.RelayURL, "Voice relay URL (with trailing slash)")
	flags.StringVar(&cfg.SocketURL, "socket", cfg.SocketURL, "Plugin websocket URL")
	flags.StringVar(&cfg.ServerKey, "server-key", cfg.ServerKey, "Public key of the game server")
	flags.StringVar(&cfg.PlayerName, "name", cfg.PlayerName, "Local player name")
	flags.StringVar(&cfg.StreamKey, "stream-key", cfg.StreamKey, "Session stream key")
	flags.IntVar(&cfg.Radius, "radius", cfg.Radius, "Audible radius in blocks")
	flags.StringVar(&cfg.PrefsPath, "prefs", cfg.PrefsPath, "Preference file path")
	flags.DurationVar(&cfg.SwitchDelay, "switch-delay", cfg.SwitchDelay, "Wait before restarting the microphone after a device change")
	flags.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Serve Prometheus metrics on this address")
	flags.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")
	flags.Func("uuid", "Local player UUID", func(s string) error {
		id, err := uuid.Parse(s)
		if err != nil {
			return err
		}
		cfg.PlayerUUID = id
		return nil
	})
	flags.Func("ice", "Comma-separated ICE server URLs (empty disables STUN)", func(s string) error {
		cfg.ICEServers = []string{}
		for _, u := range strings.Split(s, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.ICEServers = append(cfg.ICEServers, u)
			}
		}
		return nil
	})

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first missing or invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.SocketURL == "":
		return errors.New("missing plugin socket URL (-socket or PROXVOICE_SOCKET_URL)")
	case c.ServerKey == "":
		return errors.New("missing server key (-server-key or PROXVOICE_SERVER_KEY)")
	case c.PlayerUUID == uuid.Nil:
		return errors.New("missing player UUID (-uuid or PROXVOICE_PLAYER_UUID)")
	case c.PlayerName == "":
		return errors.New("missing player name (-name or PROXVOICE_PLAYER_NAME)")
	case c.Radius < 1:
		return fmt.Errorf("invalid radius %d: must be at least 1 block", c.Radius)
	case c.SwitchDelay < 0:
		return fmt.Errorf("invalid switch delay %s", c.SwitchDelay)
	}

	if _, err := url.Parse(c.SocketURL); err != nil {
		return fmt.Errorf("invalid socket URL: %w", err)
	}
	if c.RelayURL != "" {
		if u, err := url.Parse(c.RelayURL); err != nil || u.Host == "" {
			return fmt.Errorf("invalid relay URL: %s", c.RelayURL)
		}
	}
	return nil
}

// Session returns the relay identity for this configuration.
func (c *Config) Session() signaling.Session {
	return signaling.Session{
		ServerKey:  c.ServerKey,
		PlayerUUID: c.PlayerUUID,
		PlayerName: c.PlayerName,
	}
}

// Standalone reports whether voice can be enabled without an unlock packet.
func (c *Config) Standalone() bool {
	return c.RelayURL != "" && c.StreamKey != ""
}
