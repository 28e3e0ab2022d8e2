package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Billing      BillingConfig
	CORS         CORSConfig
	RateLimit    RateLimitConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Maintenance  MaintenanceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Billing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KHATABILL_APP_ENV" required:"true"`
	Port         string `envconfig:"KHATABILL_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KHATABILL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KHATABILL_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"KHATABILL_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"KHATABILL_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"KHATABILL_DB_DSN"`
	Driver string `envconfig:"KHATABILL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KHATABILL_DB_HOST"`
	LegacyPort     int    `envconfig:"KHATABILL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KHATABILL_DB_USER"`
	LegacyPassword string `envconfig:"KHATABILL_DB_PASSWORD"`
	LegacyName     string `envconfig:"KHATABILL_DB_NAME"`
	LegacySSLMode  string `envconfig:"KHATABILL_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"KHATABILL_SQLITE_PATH" default:"khatabill.db"`

	MaxOpenConns    int           `envconfig:"KHATABILL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KHATABILL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KHATABILL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KHATABILL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery logs statements slower than this as warnings; zero disables.
	SlowQuery time.Duration `envconfig:"KHATABILL_DB_SLOW_QUERY" default:"0"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KHATABILL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KHATABILL_REDIS_ADDR"`
	Password     string        `envconfig:"KHATABILL_REDIS_PASSWORD"`
	DB           int           `envconfig:"KHATABILL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KHATABILL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KHATABILL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KHATABILL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KHATABILL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KHATABILL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig carries the verification settings for tokens minted by the
// identity service.
type JWTConfig struct {
	Secret            string `envconfig:"KHATABILL_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"KHATABILL_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"KHATABILL_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"KHATABILL_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"KHATABILL_AUTO_MIGRATE" default:"false"`
}

// BillingConfig controls subscription limits and invoice presentation.
type BillingConfig struct {
	FreeInvoiceQuota int `envconfig:"KHATABILL_FREE_INVOICE_QUOTA" default:"10"`
	AmountPlaces     int `envconfig:"KHATABILL_AMOUNT_PLACES" default:"2"`
}

func (b BillingConfig) validate() error {
	if b.FreeInvoiceQuota < 0 {
		return fmt.Errorf("%s must be >= 0", EnvFreeInvoiceQuota)
	}
	if b.AmountPlaces < 0 || b.AmountPlaces > 6 {
		return fmt.Errorf("%s must be between 0 and 6", EnvAmountPlaces)
	}
	return nil
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"KHATABILL_CORS_ALLOWED_ORIGINS" default:"http://localhost:4200"`
}

// RateLimitConfig throttles posting endpoints per shop owner.
type RateLimitConfig struct {
	Window     time.Duration `envconfig:"KHATABILL_RATE_LIMIT_WINDOW" default:"1m"`
	WriteLimit int           `envconfig:"KHATABILL_RATE_LIMIT_WRITES" default:"120"`
	PerIPLimit int           `envconfig:"KHATABILL_RATE_LIMIT_PER_IP" default:"600"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"KHATABILL_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"KHATABILL_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"KHATABILL_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	InvoiceTopic string `envconfig:"KHATABILL_PUBSUB_INVOICE_TOPIC" default:"khatabill-invoice-events"`
	LedgerTopic  string `envconfig:"KHATABILL_PUBSUB_LEDGER_TOPIC" default:"khatabill-ledger-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"KHATABILL_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"KHATABILL_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"KHATABILL_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// MaintenanceConfig drives the maintenance worker's retention jobs.
type MaintenanceConfig struct {
	Interval            time.Duration `envconfig:"KHATABILL_MAINTENANCE_INTERVAL" default:"24h"`
	OutboxRetentionDays int           `envconfig:"KHATABILL_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQRetentionDays    int           `envconfig:"KHATABILL_OUTBOX_DLQ_RETENTION_DAYS" default:"90"`
	// MetricsAddr serves /metrics for the worker when set, e.g. ":9091".
	MetricsAddr string `envconfig:"KHATABILL_MAINTENANCE_METRICS_ADDR"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
