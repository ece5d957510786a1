package config

import "time"

// Broker kinds.
const (
	BrokerLocal = "local"
	BrokerRedis = "redis"
)

// Config holds relay server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	// Echo delivers every message back to its sender as well.
	Echo            bool          `mapstructure:"echo" yaml:"echo"`
	SessionBuffer   int           `mapstructure:"session_buffer" yaml:"session_buffer"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	Broker          BrokerConfig  `mapstructure:"broker" yaml:"broker"`
}

// BrokerConfig selects the fan-out backend.
type BrokerConfig struct {
	Kind     string `mapstructure:"kind" yaml:"kind"`
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url"`
	Channel  string `mapstructure:"channel" yaml:"channel"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8000",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		Echo:              true,
		SessionBuffer:     64,
		MaxMessageBytes:   64 << 10,
		WriteTimeout:      5 * time.Second,
		AllowedOrigins:    []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		Broker: BrokerConfig{
			Kind:     BrokerLocal,
			RedisURL: "redis://localhost:6379/0",
			Channel:  "wirechat:messages",
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Echo is a plain bool and is never overridden here; callers set it explicitly.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.SessionBuffer != 0 {
		c.SessionBuffer = other.SessionBuffer
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if len(other.AllowedOrigins) > 0 {
		c.AllowedOrigins = other.AllowedOrigins
	}
	if other.Broker.Kind != "" {
		c.Broker.Kind = other.Broker.Kind
	}
	if other.Broker.RedisURL != "" {
		c.Broker.RedisURL = other.Broker.RedisURL
	}
	if other.Broker.Channel != "" {
		c.Broker.Channel = other.Broker.Channel
	}
}

// ClientConfig holds terminal client configuration values.
type ClientConfig struct {
	URL       string          `mapstructure:"url" yaml:"url"`
	Role      string          `mapstructure:"role" yaml:"role"`
	LogLevel  string          `mapstructure:"log_level" yaml:"log_level"`
	Reconnect ReconnectConfig `mapstructure:"reconnect" yaml:"reconnect"`
}

// ReconnectConfig controls automatic reconnection with capped exponential backoff.
type ReconnectConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	MinBackoff time.Duration `mapstructure:"min_backoff" yaml:"min_backoff"`
	MaxBackoff time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
}

// DefaultClient returns client configuration defaults.
func DefaultClient() ClientConfig {
	return ClientConfig{
		URL:      "ws://localhost:8000/ws",
		Role:     "developer",
		LogLevel: "warn",
		Reconnect: ReconnectConfig{
			Enabled:    true,
			MinBackoff: 500 * time.Millisecond,
			MaxBackoff: 30 * time.Second,
		},
	}
}
