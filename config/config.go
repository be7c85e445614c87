package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Subaru-PFS/tron-actorcore-sub000/errors"
)

// Hub transport selectors.
const (
	TransportTCP       = "tcp"
	TransportNATS      = "nats"
	TransportWebSocket = "websocket"
)

// Duration is a time.Duration that marshals as a duration string
// ("1.3s") and also accepts a bare number of seconds.
type Duration time.Duration

// Std returns the standard library form.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalJSON renders the duration string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts "1.3s" or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("bad duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var sec float64
	if err := json.Unmarshal(data, &sec); err != nil {
		return fmt.Errorf("duration must be a string or seconds: %s", data)
	}
	*d = Duration(time.Duration(sec * float64(time.Second)))
	return nil
}

// Config is the complete client configuration.
type Config struct {
	// Name is the commander prefix on outgoing lines.
	Name string `json:"name"`

	Hub          HubConfig          `json:"hub"`
	Dispatcher   DispatcherConfig   `json:"dispatcher"`
	Dictionaries DictionariesConfig `json:"dictionaries"`
	Metrics      MetricsConfig      `json:"metrics,omitempty"`
	Log          LogConfig          `json:"log,omitempty"`
}

// HubConfig selects and addresses the hub transport.
type HubConfig struct {
	Transport string `json:"transport"`

	// Addr is host:port for tcp, a nats:// URL for nats, and a ws://
	// or wss:// URL for websocket.
	Addr string `json:"addr"`

	// NATSPrefix namespaces the hub subjects on the nats transport.
	NATSPrefix string `json:"nats_prefix,omitempty"`

	// Identity selects this client's reply subject on the nats
	// transport; defaults to Name.
	Identity string `json:"identity,omitempty"`

	DialTimeout Duration `json:"dial_timeout,omitempty"`
}

// DispatcherConfig tunes the dispatcher loops.
type DispatcherConfig struct {
	// Cmdr is the commander ID used for reply matching until the hub
	// assigns one at login.
	Cmdr string `json:"cmdr,omitempty"`

	IncludeName    bool `json:"include_name"`
	DelayCallbacks bool `json:"delay_callbacks,omitempty"`

	RefreshInterval  Duration `json:"refresh_interval,omitempty"`
	TimeoutInterval  Duration `json:"timeout_interval,omitempty"`
	RefreshTimeLimit Duration `json:"refresh_time_limit,omitempty"`
}

// DictionariesConfig locates keyword dictionary files.
type DictionariesConfig struct {
	// Dirs are searched in order for "<actor>.toml".
	Dirs []string `json:"dirs"`

	// Preload lists actors whose dictionaries load at startup instead
	// of on first use.
	Preload []string `json:"preload,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn, error
	Format string `json:"format,omitempty"` // text, json
}

// DefaultConfig returns the built-in defaults: a TCP hub on localhost
// with the stock dispatcher intervals.
func DefaultConfig() *Config {
	return &Config{
		Name: "client",
		Hub: HubConfig{
			Transport:   TransportTCP,
			Addr:        "localhost:6093",
			DialTimeout: Duration(10 * time.Second),
		},
		Dispatcher: DispatcherConfig{
			Cmdr:             "me.me",
			IncludeName:      true,
			RefreshInterval:  Duration(time.Second),
			TimeoutInterval:  Duration(1300 * time.Millisecond),
			RefreshTimeLimit: Duration(20 * time.Second),
		},
		Metrics: MetricsConfig{
			Port: 9090,
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFile reads path over the defaults, applies environment
// overrides, and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "LoadFile", "read "+path)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapInvalid(err, "config", "LoadFile", "parse "+path)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays the supported environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("ACTORCORE_NAME"); v != "" {
		c.Name = v
	}
	if v := os.Getenv("ACTORCORE_HUB_ADDR"); v != "" {
		c.Hub.Addr = v
	}
	if v := os.Getenv("ACTORCORE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("ACTORCORE_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Metrics.Port = port
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	fail := func(format string, args ...any) error {
		return errors.WrapInvalid(
			fmt.Errorf("%w: "+format, append([]any{errors.ErrInvalidConfig}, args...)...),
			"config.Config", "Validate", "validate configuration")
	}

	if c.Name == "" {
		return fail("name is required")
	}
	switch c.Hub.Transport {
	case TransportTCP, TransportNATS, TransportWebSocket:
	default:
		return fail("unknown hub transport %q", c.Hub.Transport)
	}
	if c.Hub.Addr == "" {
		return fail("hub addr is required")
	}
	if c.Hub.Transport == TransportNATS && c.Hub.NATSPrefix == "" {
		return fail("nats_prefix is required on the nats transport")
	}
	if c.Hub.DialTimeout < 0 {
		return fail("dial_timeout must not be negative")
	}

	if c.Dispatcher.RefreshInterval <= 0 {
		return fail("refresh_interval must be positive")
	}
	if c.Dispatcher.TimeoutInterval <= 0 {
		return fail("timeout_interval must be positive")
	}
	if c.Dispatcher.RefreshTimeLimit <= 0 {
		return fail("refresh_time_limit must be positive")
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fail("metrics port %d out of range", c.Metrics.Port)
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fail("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fail("unknown log format %q", c.Log.Format)
	}
	return nil
}

// IdentityOrDefault returns the reply-subject identity, defaulting to
// the client name.
func (h HubConfig) IdentityOrDefault(name string) string {
	if h.Identity != "" {
		return h.Identity
	}
	return name
}
