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
	DB           DBConfig
	Redis        RedisConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Sheets       SheetsConfig
	Reconcile    ReconcileConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PLATETRACK_APP_ENV" required:"true"`
	Port         string `envconfig:"PLATETRACK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PLATETRACK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PLATETRACK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PLATETRACK_DB_DSN"`
	Driver string `envconfig:"PLATETRACK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PLATETRACK_DB_HOST"`
	LegacyPort     int    `envconfig:"PLATETRACK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PLATETRACK_DB_USER"`
	LegacyPassword string `envconfig:"PLATETRACK_DB_PASSWORD"`
	LegacyName     string `envconfig:"PLATETRACK_DB_NAME"`
	LegacySSLMode  string `envconfig:"PLATETRACK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PLATETRACK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PLATETRACK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PLATETRACK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PLATETRACK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PLATETRACK_REDIS_URL"`
	Address      string        `envconfig:"PLATETRACK_REDIS_ADDR"`
	Password     string        `envconfig:"PLATETRACK_REDIS_PASSWORD"`
	DB           int           `envconfig:"PLATETRACK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PLATETRACK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PLATETRACK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PLATETRACK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PLATETRACK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PLATETRACK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint is configured at all. The API can
// run without Redis; it just loses transport-level idempotency replay.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type GCPConfig struct {
	ProjectID       string `envconfig:"PLATETRACK_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"PLATETRACK_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	LedgerEventsTopic string `envconfig:"PLATETRACK_PUBSUB_LEDGER_EVENTS_TOPIC" default:"pt-ledger-events"`
}

type SheetsConfig struct {
	SpreadsheetID string `envconfig:"PLATETRACK_SHEETS_SPREADSHEET_ID"`
	ReadRange     string `envconfig:"PLATETRACK_SHEETS_READ_RANGE" default:"Roster!A:F"`
}

// Enabled reports whether the roster sheet source is configured.
func (s SheetsConfig) Enabled() bool {
	return strings.TrimSpace(s.SpreadsheetID) != ""
}

type ReconcileConfig struct {
	BatchSize int `envconfig:"PLATETRACK_RECONCILE_BATCH_SIZE" default:"100"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PLATETRACK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PLATETRACK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PLATETRACK_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PLATETRACK_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
