package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigDefaultPath    = "WIRECHAT_CONFIG_DEFAULT_PATH"
	defaultConfigName       = "config.yaml"
	defaultClientConfigName = "chat.yaml"
	envPrefix               = "WIRECHAT"
)

// Load builds relay configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := newViper()
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("echo", cfg.Echo)
	v.SetDefault("session_buffer", cfg.SessionBuffer)
	v.SetDefault("max_message_bytes", cfg.MaxMessageBytes)
	v.SetDefault("write_timeout", cfg.WriteTimeout)
	v.SetDefault("allowed_origins", cfg.AllowedOrigins)
	v.SetDefault("broker.kind", cfg.Broker.Kind)
	v.SetDefault("broker.redis_url", cfg.Broker.RedisURL)
	v.SetDefault("broker.channel", cfg.Broker.Channel)

	configPath := resolveConfigPath(explicitPath, defaultConfigName)
	if err := readConfig(logger, v, configPath, cfg); err != nil {
		return cfg, configPath, err
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, configPath, err
	}

	return cfg, configPath, nil
}

// LoadClient builds terminal client configuration with the same precedence as Load.
func LoadClient(logger *zerolog.Logger, explicitPath string) (ClientConfig, string, error) {
	cfg := DefaultClient()

	v := newViper()
	v.SetDefault("url", cfg.URL)
	v.SetDefault("role", cfg.Role)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("reconnect.enabled", cfg.Reconnect.Enabled)
	v.SetDefault("reconnect.min_backoff", cfg.Reconnect.MinBackoff)
	v.SetDefault("reconnect.max_backoff", cfg.Reconnect.MaxBackoff)

	configPath := resolveConfigPath(explicitPath, defaultClientConfigName)
	if err := readConfig(logger, v, configPath, cfg); err != nil {
		return cfg, configPath, err
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal client config: %w", err)
	}

	return cfg, configPath, nil
}

// Validate rejects configurations the relay cannot run with.
func (c Config) Validate() error {
	switch c.Broker.Kind {
	case BrokerLocal:
	case BrokerRedis:
		if c.Broker.RedisURL == "" {
			return errors.New("broker.redis_url is required for the redis broker")
		}
		if c.Broker.Channel == "" {
			return errors.New("broker.channel is required for the redis broker")
		}
	default:
		return fmt.Errorf("unknown broker kind %q", c.Broker.Kind)
	}
	if c.SessionBuffer <= 0 {
		return fmt.Errorf("session_buffer must be positive, got %d", c.SessionBuffer)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func readConfig(logger *zerolog.Logger, v *viper.Viper, configPath string, defaults any) error {
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read config: %w", err)
		}
		if writeErr := writeDefaultConfig(configPath, defaults); writeErr != nil && logger != nil {
			logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
		} else if logger != nil {
			logger.Info().Str("path", configPath).Msg("created default config")
		}
		// try reading again in case it was just written
		if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
			logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
		}
	}
	return nil
}

func resolveConfigPath(explicitPath, name string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, name)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return name
	}
	return filepath.Join(cwd, name)
}

func writeDefaultConfig(path string, cfg any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
