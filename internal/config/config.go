package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	// DefaultRetryCount is the acquisition attempt budget used when the
	// configured value is missing or unparsable.
	DefaultRetryCount = 3
	// DefaultRetryInterval is the fixed sleep between attempts.
	DefaultRetryInterval = 5 * time.Second
	// DefaultCoordinationEnabled is used when the coordination flag is
	// neither "true" nor "false".
	DefaultCoordinationEnabled = false
)

// Config holds all configuration for the lock module.
// The mapstructure tags are used by Viper to unmarshal the data.
type Config struct {
	RetryCount            int           `mapstructure:"-" validate:"gte=1"`
	RetryInterval         time.Duration `mapstructure:"-" validate:"gt=0"`
	CoordinationEnabled   bool          `mapstructure:"-"`
	CoordinationNamespace string        `mapstructure:"coordination_namespace" validate:"required"`
	EtcdEndpoints         []string      `mapstructure:"etcd_endpoints"`
	EtcdTimeout           time.Duration `mapstructure:"etcd_timeout" validate:"gt=0"`
	SessionTTL            time.Duration `mapstructure:"session_ttl" validate:"gt=0"`
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("retry_count", DefaultRetryCount)
	v.SetDefault("retry_interval", DefaultRetryInterval.String())
	v.SetDefault("coordination_enabled", "")
	v.SetDefault("coordination_namespace", "/table-lock/locks")
	v.SetDefault("etcd_endpoints", []string{"127.0.0.1:2379"})
	v.SetDefault("etcd_timeout", "5s")
	v.SetDefault("session_ttl", "10s")

	// Set config file details
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Read environment variables
	v.SetEnvPrefix("tablelock")
	v.AutomaticEnv()

	// Read the config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; rely on defaults and env vars.
		} else {
			return nil, err
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates a populated viper instance. Split out
// from Load so tests can feed values directly.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// The retry settings are parsed by hand: an unparsable value falls back
	// to the default constant rather than failing the whole load.
	cfg.RetryCount = parseRetryCount(v.GetString("retry_count"))
	cfg.RetryInterval = parseRetryInterval(v.GetString("retry_interval"))
	cfg.CoordinationEnabled = parseTriState(v.GetString("coordination_enabled"))

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parseRetryCount parses the attempt budget, defaulting when the value is
// not a positive integer.
func parseRetryCount(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return DefaultRetryCount
	}
	return n
}

// parseRetryInterval parses the inter-attempt sleep. A bare integer is read
// as seconds; otherwise the value must be a duration string. Anything else
// falls back to the default.
func parseRetryInterval(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 1 {
			return DefaultRetryInterval
		}
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return DefaultRetryInterval
	}
	return d
}

// parseTriState maps the coordination flag to a boolean: "false" disables,
// "true" enables, anything else falls back to the built-in default.
func parseTriState(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "false":
		return false
	case "true":
		return true
	default:
		return DefaultCoordinationEnabled
	}
}
