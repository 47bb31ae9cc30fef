package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig is shared by all three services; each binary reads the sections
// it needs. Values come exclusively from the environment.
type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	Gateway   GatewaySettings   `mapstructure:"gateway"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	CORS      CORSSettings      `mapstructure:"cors"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`

	// Retry wrapper tuning; see infra/database.
	RetryMaxAttempts      int           `mapstructure:"retry_max_attempts"`
	RetryInitialDelay     time.Duration `mapstructure:"retry_initial_delay"`
	RetryMaxDelay         time.Duration `mapstructure:"retry_max_delay"`
	RetryBackoffMultipler float64       `mapstructure:"retry_backoff_multiplier"`

	// AllowDegradedStart lets the process serve traffic when the initial
	// connectivity probe fails; per-call retry self-heals.
	AllowDegradedStart bool          `mapstructure:"allow_degraded_start"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
}

type RedisSettings struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	DB               int           `mapstructure:"db"`
	Password         string        `mapstructure:"password"`
	TLSEnabled       bool          `mapstructure:"tls_enabled"`
	TokenCachePrefix string        `mapstructure:"token_cache_prefix"`
	ClaimsCacheTTL   time.Duration `mapstructure:"claims_cache_ttl"`
	UserCacheTTL     time.Duration `mapstructure:"user_cache_ttl"`
	RateLimitPrefix  string        `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures the audit event producer. Empty broker list means
// the logging stub publisher is used instead.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

type JWTSettings struct {
	// Secret signs access tokens; RefreshSecret signs refresh tokens. The two
	// signing domains never accept each other's tokens.
	Secret          string        `mapstructure:"secret"`
	RefreshSecret   string        `mapstructure:"refresh_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// GatewaySettings configures the API gateway process.
type GatewaySettings struct {
	LoginServiceURL     string        `mapstructure:"login_service_url"`
	MainServiceURL      string        `mapstructure:"main_service_url"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
	HealthCheckTimeout  time.Duration `mapstructure:"health_check_timeout"`
	APIKeys             []string      `mapstructure:"api_keys"`
}

// RateLimitSettings tunes the three fixed-window tiers: a general limit on
// all traffic, a tighter limit on credential endpoints, and a wide limit on
// read-only traffic.
type RateLimitSettings struct {
	Window      time.Duration `mapstructure:"window"`
	GeneralMax  int           `mapstructure:"general_max"`
	AuthMax     int           `mapstructure:"auth_max"`
	ReadOnlyMax int           `mapstructure:"read_only_max"`
}

type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type CORSSettings struct {
	Origins []string `mapstructure:"origins"`
}

// Load reads configuration from INDICATOR_-prefixed (or bare) environment
// variables with defaults suitable for local development.
func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("INDICATOR")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.retry_max_attempts",
		"postgres.retry_initial_delay",
		"postgres.retry_max_delay",
		"postgres.retry_backoff_multiplier",
		"postgres.allow_degraded_start",
		"postgres.connect_timeout",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.token_cache_prefix",
		"redis.claims_cache_ttl",
		"redis.user_cache_ttl",
		"redis.rate_limit_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"jwt.secret",
		"jwt.refresh_secret",
		"jwt.access_token_ttl",
		"jwt.refresh_token_ttl",
		"gateway.login_service_url",
		"gateway.main_service_url",
		"gateway.health_check_interval",
		"gateway.health_check_timeout",
		"gateway.api_keys",
		"rate_limit.window",
		"rate_limit.general_max",
		"rate_limit.auth_max",
		"rate_limit.read_only_max",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"cors.origins",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations that cannot produce a working service.
func (c *AppConfig) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.JWT.RefreshSecret == "" {
		return fmt.Errorf("jwt.refresh_secret is required")
	}
	if c.JWT.Secret == c.JWT.RefreshSecret {
		return fmt.Errorf("jwt.secret and jwt.refresh_secret must differ")
	}
	if c.JWT.AccessTokenTTL <= 0 || c.JWT.RefreshTokenTTL <= c.JWT.AccessTokenTTL {
		return fmt.Errorf("jwt.refresh_token_ttl must exceed jwt.access_token_ttl")
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("app.port must be a valid port, got %d", c.App.Port)
	}
	if c.Gateway.HealthCheckInterval <= 0 {
		return fmt.Errorf("gateway.health_check_interval must be positive")
	}
	return nil
}

// IsProduction reports whether the process runs with production settings.
func (c *AppConfig) IsProduction() bool {
	return c.App.Env == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "indicator-backend")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 5300)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "indicator")
	v.SetDefault("postgres.password", "indicator_password")
	v.SetDefault("postgres.database", "indicator")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.retry_max_attempts", 5)
	v.SetDefault("postgres.retry_initial_delay", "1s")
	v.SetDefault("postgres.retry_max_delay", "30s")
	v.SetDefault("postgres.retry_backoff_multiplier", 2.0)
	v.SetDefault("postgres.allow_degraded_start", false)
	v.SetDefault("postgres.connect_timeout", "5s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.token_cache_prefix", "indicator:token")
	v.SetDefault("redis.claims_cache_ttl", "1m")
	v.SetDefault("redis.user_cache_ttl", "5m")
	v.SetDefault("redis.rate_limit_prefix", "indicator:rate-limit")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "indicator")
	v.SetDefault("kafka.async", true)

	v.SetDefault("jwt.secret", "default_secret_key")
	v.SetDefault("jwt.refresh_secret", "default_refresh_secret_key")
	v.SetDefault("jwt.access_token_ttl", "15m")
	v.SetDefault("jwt.refresh_token_ttl", "168h")

	v.SetDefault("gateway.login_service_url", "http://localhost:5301")
	v.SetDefault("gateway.main_service_url", "http://localhost:5300")
	v.SetDefault("gateway.health_check_interval", "30s")
	v.SetDefault("gateway.health_check_timeout", "5s")
	v.SetDefault("gateway.api_keys", []string{})

	v.SetDefault("rate_limit.window", "15m")
	v.SetDefault("rate_limit.general_max", 100)
	v.SetDefault("rate_limit.auth_max", 10)
	v.SetDefault("rate_limit.read_only_max", 1000)

	v.SetDefault("argon2.memory", 65536)
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("cors.origins", []string{"http://localhost:5173"})
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "INDICATOR_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
