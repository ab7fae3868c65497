package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App             AppConfig
	Service         ServiceConfig
	DB              DBConfig
	Redis           RedisConfig
	JWT             JWTConfig
	RedeemRateLimit RedeemRateLimitConfig
	FeatureFlags    FeatureFlagsConfig
	Redemption      RedemptionConfig
	GCP             GCPConfig
	PubSub          PubSubConfig
	Outbox          OutboxConfig
	Cron            CronConfig
}

// Load reads the process environment. A .env file, when wanted, must be
// loaded into the environment first.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.resolveDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate reports every out-of-range setting at once.
func (c *Config) validate() error {
	var err error
	check := func(bad bool, format string, args ...any) {
		if bad {
			err = multierr.Append(err, fmt.Errorf(format, args...))
		}
	}
	check(c.JWT.ExpirationMinutes <= 0, "%s must be positive", EnvJWTExp)
	check(c.Redemption.VoucherCodeLength < minVoucherCodeLength || c.Redemption.VoucherCodeLength > maxVoucherCodeLength,
		"voucher code length must be within [%d, %d], got %d", minVoucherCodeLength, maxVoucherCodeLength, c.Redemption.VoucherCodeLength)
	check(c.RedeemRateLimit.Window < 0, "%s must not be negative", EnvRedeemRLWindow)
	check(c.Outbox.BatchSize <= 0, "outbox batch size must be positive")
	check(c.Outbox.MaxAttempts <= 0, "outbox max attempts must be positive")
	return err
}

type AppConfig struct {
	Env          string   `envconfig:"PROMOREDEEM_APP_ENV" required:"true"`
	Port         string   `envconfig:"PROMOREDEEM_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"PROMOREDEEM_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"PROMOREDEEM_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"PROMOREDEEM_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PROMOREDEEM_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PROMOREDEEM_DB_DSN"`
	Driver string `envconfig:"PROMOREDEEM_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PROMOREDEEM_DB_HOST"`
	LegacyPort     int    `envconfig:"PROMOREDEEM_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PROMOREDEEM_DB_USER"`
	LegacyPassword string `envconfig:"PROMOREDEEM_DB_PASSWORD"`
	LegacyName     string `envconfig:"PROMOREDEEM_DB_NAME"`
	LegacySSLMode  string `envconfig:"PROMOREDEEM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PROMOREDEEM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PROMOREDEEM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PROMOREDEEM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PROMOREDEEM_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"PROMOREDEEM_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PROMOREDEEM_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PROMOREDEEM_REDIS_ADDR"`
	Password     string        `envconfig:"PROMOREDEEM_REDIS_PASSWORD"`
	DB           int           `envconfig:"PROMOREDEEM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PROMOREDEEM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PROMOREDEEM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PROMOREDEEM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PROMOREDEEM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PROMOREDEEM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PROMOREDEEM_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PROMOREDEEM_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PROMOREDEEM_JWT_EXPIRATION_MINUTES" default:"60"`
	RequireSession    bool   `envconfig:"PROMOREDEEM_JWT_REQUIRE_SESSION" default:"false"`
}

// RedeemRateLimitConfig bounds how many redemption attempts a single actor can
// make per window, which caps code guessing.
type RedeemRateLimitConfig struct {
	Window     time.Duration `envconfig:"PROMOREDEEM_REDEEM_RATE_LIMIT_WINDOW" default:"1m"`
	ActorLimit int           `envconfig:"PROMOREDEEM_REDEEM_RATE_LIMIT_ACTOR_LIMIT" default:"30"`
	IPLimit    int           `envconfig:"PROMOREDEEM_REDEEM_RATE_LIMIT_IP_LIMIT" default:"120"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PROMOREDEEM_AUTO_MIGRATE" default:"false"`
}

type RedemptionConfig struct {
	VoucherCodeLength int           `envconfig:"PROMOREDEEM_VOUCHER_CODE_LENGTH" default:"10"`
	VoucherTTL        time.Duration `envconfig:"PROMOREDEEM_VOUCHER_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PROMOREDEEM_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PROMOREDEEM_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PROMOREDEEM_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	RedemptionTopic string `envconfig:"PROMOREDEEM_PUBSUB_REDEMPTION_TOPIC" default:"redemption-events"`
	PointsTopic     string `envconfig:"PROMOREDEEM_PUBSUB_POINTS_TOPIC" default:"points-events"`
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"PROMOREDEEM_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"PROMOREDEEM_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"PROMOREDEEM_OUTBOX_MAX_ATTEMPTS" default:"10"`
	MetricsAddr    string `envconfig:"PROMOREDEEM_OUTBOX_METRICS_ADDR"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"PROMOREDEEM_CRON_INTERVAL" default:"24h"`
	OutboxRetentionDays int           `envconfig:"PROMOREDEEM_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	LedgerAuditLimit    int           `envconfig:"PROMOREDEEM_CRON_LEDGER_AUDIT_LIMIT" default:"500"`
}

// resolveDSN assembles a postgres URL from the split DB_* variables when
// DB_DSN is unset.
func (db *DBConfig) resolveDSN() error {
	if db.DSN != "" {
		return nil
	}
	parts := []struct{ env, value string }{
		{EnvDBHost, db.LegacyHost},
		{EnvDBUser, db.LegacyUser},
		{EnvDBName, db.LegacyName},
	}
	var missing []string
	for _, p := range parts {
		if p.value == "" {
			missing = append(missing, p.env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("set %s or all of %s (missing %s)", EnvDBDSN,
			strings.Join([]string{EnvDBHost, EnvDBUser, EnvDBName}, ", "), strings.Join(missing, ", "))
	}

	dsn := url.URL{
		Scheme: "postgres",
		User:   url.User(db.LegacyUser),
		Host:   net.JoinHostPort(db.LegacyHost, strconv.Itoa(db.LegacyPort)),
		Path:   db.LegacyName,
	}
	if db.LegacyPassword != "" {
		dsn.User = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	if db.LegacySSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.LegacySSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}
