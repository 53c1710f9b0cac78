// Package config loads dashfin settings from defaults, an optional YAML
// file, a .env file and DASHFIN_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "DASHFIN"

// ErrMissingConfig is returned by Validate when a required key is unset
var ErrMissingConfig = errors.New("missing required configuration")

type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Identify IdentifyConfig `mapstructure:"identify"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

// StoreConfig locates the database. Key is the access key of a hosted
// postgres store and is never logged.
type StoreConfig struct {
	URL string `mapstructure:"url"`
	Key string `mapstructure:"key"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AuthConfig struct {
	Required      bool `mapstructure:"required"`
	RehashOnStart bool `mapstructure:"rehash_on_start"`
}

type WebhookConfig struct {
	// DefaultUser is the display name stored on transactions whose phone
	// does not belong to a registered user
	DefaultUser string `mapstructure:"default_user"`
}

type IdentifyConfig struct {
	HighAmountCard string `mapstructure:"high_amount_card"`
	LowAmountCard  string `mapstructure:"low_amount_card"`
}

type JobsConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.url", "")
	v.SetDefault("store.key", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("auth.required", true)
	v.SetDefault("auth.rehash_on_start", true)
	v.SetDefault("webhook.default_user", "Bruno Costa")
	v.SetDefault("identify.high_amount_card", "1")
	v.SetDefault("identify.low_amount_card", "3")
	v.SetDefault("jobs.poll_interval", 2*time.Second)
}

// Load builds the configuration. file may be empty, in which case
// ./dashfin.yaml is read if present. overrides (typically command-line
// flags) win over every other source; empty string values are ignored.
func Load(file string, overrides map[string]any) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("dashfin")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	for key, value := range overrides {
		if s, ok := value.(string); ok && s == "" {
			continue
		}
		v.Set(key, value)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Validate checks the settings needed to reach the store
func (c Config) Validate() error {
	if strings.TrimSpace(c.Store.URL) == "" {
		return fmt.Errorf("%w: store.url (%s_STORE_URL)", ErrMissingConfig, EnvPrefix)
	}
	if c.Store.IsPostgres() && c.Store.Key == "" {
		return fmt.Errorf("%w: store.key (%s_STORE_KEY) is required for postgres", ErrMissingConfig, EnvPrefix)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}

func (s StoreConfig) IsPostgres() bool {
	return strings.HasPrefix(s.URL, "postgres://") || strings.HasPrefix(s.URL, "postgresql://")
}
