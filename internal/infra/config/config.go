package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	TOTP      TOTPSettings      `mapstructure:"totp"`
	GRPC      GRPCSettings      `mapstructure:"grpc"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
}

type AppSettings struct {
	Name           string   `mapstructure:"name"`
	Env            string   `mapstructure:"env"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// IsProduction reports whether cookies must carry the Secure attribute.
func (s AppSettings) IsProduction() bool {
	return s.Env == "production"
}

type GRPCSettings struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and TLS.
type RedisSettings struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	DB              int    `mapstructure:"db"`
	Password        string `mapstructure:"password"`
	TLSEnabled      bool   `mapstructure:"tls_enabled"`
	ChallengePrefix string `mapstructure:"challenge_prefix"`
	RateLimitPrefix string `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures the Kafka producer; empty brokers fall back to a
// logging stub publisher.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// JWTSettings carries per-purpose signing secrets and the expiry tiers.
// Each token purpose uses a disjoint secret, so a token minted for one
// purpose fails verification when presented for another.
type JWTSettings struct {
	Issuer                 string        `mapstructure:"issuer"`
	AccessSecret           string        `mapstructure:"access_secret"`
	RefreshSecret          string        `mapstructure:"refresh_secret"`
	ActivationSecret       string        `mapstructure:"activation_secret"`
	TwoFactorSecret        string        `mapstructure:"two_factor_secret"`
	AccessTTL              time.Duration `mapstructure:"access_ttl"`
	AccessRememberMeTTL    time.Duration `mapstructure:"access_remember_me_ttl"`
	RefreshTTL             time.Duration `mapstructure:"refresh_ttl"`
	RefreshRememberMeTTL   time.Duration `mapstructure:"refresh_remember_me_ttl"`
	ActivationTTL          time.Duration `mapstructure:"activation_ttl"`
	TwoFactorChallengeTTL  time.Duration `mapstructure:"two_factor_challenge_ttl"`
	RefreshRotationEnabled bool          `mapstructure:"refresh_rotation_enabled"`
}

// AccessTokenTTL resolves the access expiry tier for the remember-me flag.
func (s JWTSettings) AccessTokenTTL(rememberMe bool) time.Duration {
	if rememberMe && s.AccessRememberMeTTL > 0 {
		return s.AccessRememberMeTTL
	}
	return s.AccessTTL
}

// RefreshTokenTTL resolves the refresh expiry tier for the remember-me flag.
func (s JWTSettings) RefreshTokenTTL(rememberMe bool) time.Duration {
	if rememberMe && s.RefreshRememberMeTTL > 0 {
		return s.RefreshRememberMeTTL
	}
	return s.RefreshTTL
}

// TOTPSettings configures the two-factor engine.
type TOTPSettings struct {
	Issuer      string        `mapstructure:"issuer"`
	Digits      int           `mapstructure:"digits"`
	Period      time.Duration `mapstructure:"period"`
	Skew        int           `mapstructure:"skew"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// TelemetrySettings configures metrics and tracing export. Tracing is active
// only when an OTLP endpoint is set.
type TelemetrySettings struct {
	MetricsPort  int     `mapstructure:"metrics_port"`
	ServiceName  string  `mapstructure:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// RateLimitSettings configures rate limiting windows and max attempts per endpoint.
type RateLimitSettings struct {
	WindowDuration           time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts         int           `mapstructure:"login_max_attempts"`
	TwoFactorMaxAttempts     int           `mapstructure:"two_factor_max_attempts"`
	RegisterMaxAttempts      int           `mapstructure:"register_max_attempts"`
	PasswordResetMaxAttempts int           `mapstructure:"password_reset_max_attempts"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AUTH")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.allowed_origins",
		"grpc.host",
		"grpc.port",
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
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.challenge_prefix",
		"redis.rate_limit_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"jwt.issuer",
		"jwt.access_secret",
		"jwt.refresh_secret",
		"jwt.activation_secret",
		"jwt.two_factor_secret",
		"jwt.access_ttl",
		"jwt.access_remember_me_ttl",
		"jwt.refresh_ttl",
		"jwt.refresh_remember_me_ttl",
		"jwt.activation_ttl",
		"jwt.two_factor_challenge_ttl",
		"jwt.refresh_rotation_enabled",
		"totp.issuer",
		"totp.digits",
		"totp.period",
		"totp.skew",
		"totp.max_attempts",
		"telemetry.metrics_port",
		"telemetry.service_name",
		"telemetry.otlp_endpoint",
		"telemetry.sampling_rate",
		"rate_limit.window_duration",
		"rate_limit.login_max_attempts",
		"rate_limit.two_factor_max_attempts",
		"rate_limit.register_max_attempts",
		"rate_limit.password_reset_max_attempts",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *AppConfig) error {
	secrets := map[string]string{
		"jwt.access_secret":     cfg.JWT.AccessSecret,
		"jwt.refresh_secret":    cfg.JWT.RefreshSecret,
		"jwt.activation_secret": cfg.JWT.ActivationSecret,
		"jwt.two_factor_secret": cfg.JWT.TwoFactorSecret,
	}

	seen := make(map[string]string, len(secrets))
	for key, secret := range secrets {
		if strings.TrimSpace(secret) == "" {
			return fmt.Errorf("config: %s is required", key)
		}
		if other, dup := seen[secret]; dup {
			return fmt.Errorf("config: %s and %s must not share a secret", key, other)
		}
		seen[secret] = key
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "auth-platform")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.allowed_origins", []string{"*"})

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "auth")
	v.SetDefault("postgres.password", "auth_password")
	v.SetDefault("postgres.database", "auth")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.challenge_prefix", "auth:2fa-challenge")
	v.SetDefault("redis.rate_limit_prefix", "auth:rate-limit")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "auth")
	v.SetDefault("kafka.async", true)

	v.SetDefault("jwt.issuer", "auth-platform")
	v.SetDefault("jwt.access_secret", "")
	v.SetDefault("jwt.refresh_secret", "")
	v.SetDefault("jwt.activation_secret", "")
	v.SetDefault("jwt.two_factor_secret", "")
	v.SetDefault("jwt.access_ttl", "30m")
	v.SetDefault("jwt.access_remember_me_ttl", "24h")
	v.SetDefault("jwt.refresh_ttl", "168h")
	v.SetDefault("jwt.refresh_remember_me_ttl", "720h")
	v.SetDefault("jwt.activation_ttl", "10m")
	v.SetDefault("jwt.two_factor_challenge_ttl", "5m")
	v.SetDefault("jwt.refresh_rotation_enabled", true)

	v.SetDefault("totp.issuer", "Starcoex")
	v.SetDefault("totp.digits", 6)
	v.SetDefault("totp.period", "30s")
	v.SetDefault("totp.skew", 1)
	v.SetDefault("totp.max_attempts", 5)

	v.SetDefault("telemetry.metrics_port", 9090)
	v.SetDefault("telemetry.service_name", "auth-platform")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 10)
	v.SetDefault("rate_limit.two_factor_max_attempts", 10)
	v.SetDefault("rate_limit.register_max_attempts", 5)
	v.SetDefault("rate_limit.password_reset_max_attempts", 5)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}
