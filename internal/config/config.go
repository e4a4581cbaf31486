package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	// DefaultAddr is the default TCP address the WebSocket and HTTP server listens on.
	DefaultAddr = ":7300"
	// DefaultGRPCAddr is the default spectator listener. Empty disables gRPC.
	DefaultGRPCAddr = ":7301"
	// DefaultPingInterval controls the keepalive cadence for WebSocket connections.
	DefaultPingInterval = 30 * time.Second
	// DefaultMaxPayloadBytes limits inbound WebSocket frame size.
	DefaultMaxPayloadBytes int64 = 64 << 10
	// DefaultMaxSessions bounds concurrent play sessions. Zero disables the limit.
	DefaultMaxSessions = 64
	// DefaultTickRate is the simulation frequency in hertz.
	DefaultTickRate = 60.0
	// DefaultSnapshotRate is how often frames are pushed to clients in hertz.
	DefaultSnapshotRate = 30.0
	// DefaultInputMaxAge sheds look and fire commands older than this.
	DefaultInputMaxAge = 250 * time.Millisecond
	// DefaultInputMinInterval spaces droppable commands from one client.
	DefaultInputMinInterval = 4 * time.Millisecond

	// DefaultSessionWindow bounds how frequently new sessions may be opened.
	DefaultSessionWindow = time.Minute
	// DefaultSessionBurst sets how many sessions may be opened per window.
	DefaultSessionBurst = 30

	// DefaultReplayMaxMatches caps the retained replay bundles.
	DefaultReplayMaxMatches = 20
	// DefaultReplayMaxAge expires replay bundles.
	DefaultReplayMaxAge = 72 * time.Hour
	// DefaultReplayCleanInterval is the cadence of the retention sweep.
	DefaultReplayCleanInterval = 10 * time.Minute

	// DefaultLogLevel controls verbosity for server logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "neonrange.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
)

// Config captures all runtime tunables for the range server.
type Config struct {
	Address          string        `env:"RANGE_ADDR" envDefault:":7300"`
	GRPCAddress      string        `env:"RANGE_GRPC_ADDR" envDefault:":7301"`
	AllowedOrigins   []string      `env:"RANGE_ALLOWED_ORIGINS" envSeparator:","`
	MaxPayloadBytes  int64         `env:"RANGE_MAX_PAYLOAD_BYTES" envDefault:"65536"`
	PingInterval     time.Duration `env:"RANGE_PING_INTERVAL" envDefault:"30s"`
	MaxSessions      int           `env:"RANGE_MAX_SESSIONS" envDefault:"64"`
	TickRate         float64       `env:"RANGE_TICK_HZ" envDefault:"60"`
	SnapshotRate     float64       `env:"RANGE_SNAPSHOT_HZ" envDefault:"30"`
	InputMaxAge      time.Duration `env:"RANGE_INPUT_MAX_AGE" envDefault:"250ms"`
	InputMinInterval time.Duration `env:"RANGE_INPUT_MIN_INTERVAL" envDefault:"4ms"`
	TLSCertPath      string        `env:"RANGE_TLS_CERT"`
	TLSKeyPath       string        `env:"RANGE_TLS_KEY"`
	AdminToken       string        `env:"RANGE_ADMIN_TOKEN"`
	SessionWindow    time.Duration `env:"RANGE_SESSION_WINDOW" envDefault:"1m"`
	SessionBurst     int           `env:"RANGE_SESSION_BURST" envDefault:"30"`
	Auth             AuthConfig
	Spectate         SpectateConfig
	Replay           ReplayConfig
	Store            StoreConfig
	Logging          LoggingConfig
}

// AuthConfig enables JWT checks on WebSocket upgrades when a secret is set.
type AuthConfig struct {
	JWTSecret string `env:"RANGE_JWT_SECRET"`
	Issuer    string `env:"RANGE_JWT_ISSUER"`
	Audience  string `env:"RANGE_JWT_AUDIENCE"`
}

// Enabled reports whether tokens are required.
func (c AuthConfig) Enabled() bool { return c.JWTSecret != "" }

// SpectateConfig guards the gRPC spectator stream.
type SpectateConfig struct {
	SharedSecret string `env:"RANGE_SPECTATE_SECRET"`
}

// ReplayConfig controls optional session recording.
type ReplayConfig struct {
	Directory     string        `env:"RANGE_REPLAY_DIR"`
	MaxMatches    int           `env:"RANGE_REPLAY_MAX_MATCHES" envDefault:"20"`
	MaxAge        time.Duration `env:"RANGE_REPLAY_MAX_AGE" envDefault:"72h"`
	CleanInterval time.Duration `env:"RANGE_REPLAY_CLEAN_INTERVAL" envDefault:"10m"`
}

// StoreConfig enables the SQLite run history when a path is set.
type StoreConfig struct {
	Path string `env:"RANGE_STORE_PATH"`
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string `env:"RANGE_LOG_LEVEL" envDefault:"info"`
	Path       string `env:"RANGE_LOG_PATH" envDefault:"neonrange.log"`
	MaxSizeMB  int    `env:"RANGE_LOG_MAX_SIZE_MB" envDefault:"100"`
	MaxBackups int    `env:"RANGE_LOG_MAX_BACKUPS" envDefault:"10"`
	MaxAgeDays int    `env:"RANGE_LOG_MAX_AGE_DAYS" envDefault:"7"`
	Compress   bool   `env:"RANGE_LOG_COMPRESS" envDefault:"true"`
}

// Load reads the server configuration from environment variables, applying sane defaults
// and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{}
	//1.- Decode every tagged field; parse failures are reported together by the env package.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.normalise()

	//2.- Validate semantic constraints and aggregate the problems into one error.
	if problems := cfg.validate(); len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}
	return cfg, nil
}

func (c *Config) normalise() {
	c.Address = strings.TrimSpace(c.Address)
	c.GRPCAddress = strings.TrimSpace(c.GRPCAddress)
	c.TLSCertPath = strings.TrimSpace(c.TLSCertPath)
	c.TLSKeyPath = strings.TrimSpace(c.TLSKeyPath)
	c.AdminToken = strings.TrimSpace(c.AdminToken)
	c.Replay.Directory = strings.TrimSpace(c.Replay.Directory)
	c.Store.Path = strings.TrimSpace(c.Store.Path)
	c.Logging.Level = strings.TrimSpace(c.Logging.Level)
	c.Logging.Path = strings.TrimSpace(c.Logging.Path)
	origins := make([]string, 0, len(c.AllowedOrigins))
	for _, origin := range c.AllowedOrigins {
		if item := strings.TrimSpace(origin); item != "" {
			origins = append(origins, item)
		}
	}
	if len(origins) == 0 {
		origins = nil
	}
	c.AllowedOrigins = origins
}

func (c *Config) validate() []string {
	var problems []string
	if c.Address == "" {
		problems = append(problems, "RANGE_ADDR must not be empty")
	}
	if c.MaxPayloadBytes <= 0 {
		problems = append(problems, fmt.Sprintf("RANGE_MAX_PAYLOAD_BYTES must be a positive integer, got %d", c.MaxPayloadBytes))
	}
	if c.PingInterval <= 0 {
		problems = append(problems, fmt.Sprintf("RANGE_PING_INTERVAL must be a positive duration, got %s", c.PingInterval))
	}
	if c.MaxSessions < 0 {
		problems = append(problems, fmt.Sprintf("RANGE_MAX_SESSIONS must be a non-negative integer, got %d", c.MaxSessions))
	}
	if c.TickRate <= 0 || c.TickRate > 1000 {
		problems = append(problems, fmt.Sprintf("RANGE_TICK_HZ must be within (0, 1000], got %g", c.TickRate))
	}
	if c.SnapshotRate <= 0 || c.SnapshotRate > c.TickRate {
		problems = append(problems, fmt.Sprintf("RANGE_SNAPSHOT_HZ must be positive and not exceed RANGE_TICK_HZ, got %g", c.SnapshotRate))
	}
	if c.InputMaxAge < 0 || c.InputMinInterval < 0 {
		problems = append(problems, "RANGE_INPUT_MAX_AGE and RANGE_INPUT_MIN_INTERVAL must be non-negative")
	}
	if c.SessionWindow <= 0 {
		problems = append(problems, fmt.Sprintf("RANGE_SESSION_WINDOW must be a positive duration, got %s", c.SessionWindow))
	}
	if c.SessionBurst <= 0 {
		problems = append(problems, fmt.Sprintf("RANGE_SESSION_BURST must be a positive integer, got %d", c.SessionBurst))
	}
	if c.Replay.MaxMatches < 0 {
		problems = append(problems, fmt.Sprintf("RANGE_REPLAY_MAX_MATCHES must be a non-negative integer, got %d", c.Replay.MaxMatches))
	}
	if c.Replay.MaxAge < 0 || c.Replay.CleanInterval <= 0 {
		problems = append(problems, "RANGE_REPLAY_MAX_AGE must be non-negative and RANGE_REPLAY_CLEAN_INTERVAL positive")
	}
	if c.Logging.MaxSizeMB <= 0 {
		problems = append(problems, fmt.Sprintf("RANGE_LOG_MAX_SIZE_MB must be a positive integer, got %d", c.Logging.MaxSizeMB))
	}
	if c.Logging.MaxBackups < 0 {
		problems = append(problems, fmt.Sprintf("RANGE_LOG_MAX_BACKUPS must be a non-negative integer, got %d", c.Logging.MaxBackups))
	}
	if c.Logging.MaxAgeDays < 0 {
		problems = append(problems, fmt.Sprintf("RANGE_LOG_MAX_AGE_DAYS must be a non-negative integer, got %d", c.Logging.MaxAgeDays))
	}
	if (c.TLSCertPath == "") != (c.TLSKeyPath == "") {
		problems = append(problems, "RANGE_TLS_CERT and RANGE_TLS_KEY must be provided together")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 16 {
		problems = append(problems, "RANGE_JWT_SECRET must be at least 16 bytes")
	}
	return problems
}

// TLSEnabled reports whether the listener should serve TLS.
func (c *Config) TLSEnabled() bool {
	return c != nil && c.TLSCertPath != "" && c.TLSKeyPath != ""
}
