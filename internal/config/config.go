package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every runtime setting of the journal API.
type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	Debug           bool          `mapstructure:"DEBUG"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	DBDriver string `mapstructure:"DB_DRIVER"`
	DBDSN    string `mapstructure:"DB_DSN"`

	JWTSecret   string        `mapstructure:"JWT_SECRET"`
	TokenTTL    time.Duration `mapstructure:"TOKEN_TTL"`
	DemoMode    bool          `mapstructure:"DEMO_MODE"`
	DemoOwnerID string        `mapstructure:"DEMO_OWNER_ID"`

	AllowedOrigins []string `mapstructure:"ALLOWED_ORIGINS"`
	RateLimitAuth  float64  `mapstructure:"RATE_LIMIT_AUTH"` // requests per minute
	RateLimitAPI   float64  `mapstructure:"RATE_LIMIT_API"`  // requests per minute

	RedisAddr         string        `mapstructure:"REDIS_ADDR"`
	RedisPassword     string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB           int           `mapstructure:"REDIS_DB"`
	AnalyticsCacheTTL time.Duration `mapstructure:"ANALYTICS_CACHE_TTL"`

	NATSURL           string `mapstructure:"NATS_URL"`
	NATSSubjectPrefix string `mapstructure:"NATS_SUBJECT_PREFIX"`

	// ReconcileInterval of 0 disables the background balance check
	ReconcileInterval time.Duration `mapstructure:"RECONCILE_INTERVAL"`
}

const defaultJWTSecret = "journal-dev-secret"

// Load reads configuration from environment variables and an optional app.env
// file in the working directory (or the file at path when non-empty).
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("app")
		v.SetConfigType("env")
	}
	v.AutomaticEnv()
	setDefaults(v)

	err := v.ReadInConfig()
	// A missing config file is fine, env vars and defaults still apply
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		if path != "" {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.AllowedOrigins = splitList(v.GetString("ALLOWED_ORIGINS"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DEBUG", false)
	v.SetDefault("SHUTDOWN_TIMEOUT", 5*time.Second)
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "journal.db?_foreign_keys=on")
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("TOKEN_TTL", 24*time.Hour)
	v.SetDefault("DEMO_MODE", false)
	v.SetDefault("DEMO_OWNER_ID", "demo-owner")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001,http://127.0.0.1:3000,http://127.0.0.1:3001")
	v.SetDefault("RATE_LIMIT_AUTH", 10)
	v.SetDefault("RATE_LIMIT_API", 300)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ANALYTICS_CACHE_TTL", 5*time.Minute)
	v.SetDefault("NATS_URL", "")
	v.SetDefault("NATS_SUBJECT_PREFIX", "journal")
	v.SetDefault("RECONCILE_INTERVAL", 15*time.Minute)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q: must be sqlite or postgres", c.DBDriver)
	}
	if c.DBDSN == "" {
		return errors.New("DB_DSN is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("invalid TOKEN_TTL %s", c.TokenTTL)
	}
	if c.ReconcileInterval < 0 {
		return fmt.Errorf("invalid RECONCILE_INTERVAL %s", c.ReconcileInterval)
	}
	if c.DemoMode && c.DemoOwnerID == "" {
		return errors.New("DEMO_OWNER_ID is required when DEMO_MODE is enabled")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
