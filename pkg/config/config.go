package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App              AppConfig
	Service          ServiceConfig
	DB               DBConfig
	Redis            RedisConfig
	JWT              JWTConfig
	FeatureFlags     FeatureFlagsConfig
	GCP              GCPConfig
	Storage          StorageConfig
	Migration        MigrationConfig
	LocalCompression LocalCompressionConfig
	Optimizer        OptimizerConfig
	Cron             CronConfig
	Admin            AdminConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STORYTELLING_APP_ENV" required:"true"`
	Port         string `envconfig:"STORYTELLING_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STORYTELLING_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STORYTELLING_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STORYTELLING_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STORYTELLING_DB_DSN"`
	Driver string `envconfig:"STORYTELLING_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STORYTELLING_DB_HOST"`
	LegacyPort     int    `envconfig:"STORYTELLING_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STORYTELLING_DB_USER"`
	LegacyPassword string `envconfig:"STORYTELLING_DB_PASSWORD"`
	LegacyName     string `envconfig:"STORYTELLING_DB_NAME"`
	LegacySSLMode  string `envconfig:"STORYTELLING_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STORYTELLING_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STORYTELLING_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STORYTELLING_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STORYTELLING_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"STORYTELLING_DB_SLOW_QUERY" default:"2s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STORYTELLING_REDIS_URL"`
	Address      string        `envconfig:"STORYTELLING_REDIS_ADDR"`
	Password     string        `envconfig:"STORYTELLING_REDIS_PASSWORD"`
	DB           int           `envconfig:"STORYTELLING_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STORYTELLING_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STORYTELLING_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STORYTELLING_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STORYTELLING_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STORYTELLING_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"STORYTELLING_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STORYTELLING_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STORYTELLING_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool   `envconfig:"STORYTELLING_USE_SQLITE" default:"false"`
	AutoMigrate bool   `envconfig:"STORYTELLING_AUTO_MIGRATE" default:"false"`
	ObjectStore string `envconfig:"STORYTELLING_OBJECT_STORE" default:"gcs"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STORYTELLING_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STORYTELLING_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STORYTELLING_GOOGLE_APPLICATION_CREDENTIALS"`
}

// StorageConfig names the buckets each image collection lives in and the
// optional CDN fronting them.
type StorageConfig struct {
	CoversBucket string        `envconfig:"STORYTELLING_STORAGE_COVERS_BUCKET" default:"story-covers"`
	PagesBucket  string        `envconfig:"STORYTELLING_STORAGE_PAGES_BUCKET" default:"story-pages"`
	CoversURL    string        `envconfig:"STORYTELLING_STORAGE_COVERS_URL"`
	PagesURL     string        `envconfig:"STORYTELLING_STORAGE_PAGES_URL"`
	PublicURL    string        `envconfig:"STORYTELLING_STORAGE_PUBLIC_URL"`
	Endpoint     string        `envconfig:"STORYTELLING_STORAGE_ENDPOINT" default:"https://storage.googleapis.com"`
	Timeout      time.Duration `envconfig:"STORYTELLING_STORAGE_TIMEOUT" default:"30s"`
}

type MigrationConfig struct {
	BatchSize    int `envconfig:"STORYTELLING_MIGRATION_BATCH_SIZE" default:"50"`
	MaxBatchSize int `envconfig:"STORYTELLING_MIGRATION_MAX_BATCH_SIZE" default:"1000"`
}

type LocalCompressionConfig struct {
	BatchSize      int `envconfig:"STORYTELLING_LOCAL_COMPRESSION_BATCH_SIZE" default:"20"`
	Quality        int `envconfig:"STORYTELLING_LOCAL_COMPRESSION_QUALITY" default:"80"`
	CoverMaxWidth  int `envconfig:"STORYTELLING_LOCAL_COMPRESSION_COVER_MAX_WIDTH" default:"1200"`
	CoverMaxHeight int `envconfig:"STORYTELLING_LOCAL_COMPRESSION_COVER_MAX_HEIGHT" default:"800"`
	PageMaxWidth   int `envconfig:"STORYTELLING_LOCAL_COMPRESSION_PAGE_MAX_WIDTH" default:"800"`
	PageMaxHeight  int `envconfig:"STORYTELLING_LOCAL_COMPRESSION_PAGE_MAX_HEIGHT" default:"600"`
}

type OptimizerConfig struct {
	APIKey      string        `envconfig:"STORYTELLING_TINYPNG_API_KEY"`
	Endpoint    string        `envconfig:"STORYTELLING_TINYPNG_ENDPOINT" default:"https://api.tinify.com/shrink"`
	Timeout     time.Duration `envconfig:"STORYTELLING_TINYPNG_TIMEOUT" default:"60s"`
	MinBytes    int64         `envconfig:"STORYTELLING_OPTIMIZER_MIN_BYTES" default:"5000"`
	MinGainPerc float64       `envconfig:"STORYTELLING_OPTIMIZER_MIN_GAIN_PERCENT" default:"5"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"STORYTELLING_CRON_INTERVAL" default:"24h"`
	LockTTL    time.Duration `envconfig:"STORYTELLING_CRON_LOCK_TTL" default:"25h"`
	JobTimeout time.Duration `envconfig:"STORYTELLING_CRON_JOB_TIMEOUT" default:"6h"`
	Jobs       []string      `envconfig:"STORYTELLING_CRON_JOBS" default:"local_compression"`
}

type AdminConfig struct {
	CORSOrigins       []string      `envconfig:"STORYTELLING_ADMIN_CORS_ORIGINS"`
	TriggerRateLimit  int           `envconfig:"STORYTELLING_ADMIN_TRIGGER_RATE_LIMIT" default:"10"`
	TriggerRateWindow time.Duration `envconfig:"STORYTELLING_ADMIN_TRIGGER_RATE_WINDOW" default:"1m"`
}

func (db *DBConfig) ensureDSN(sqlite bool) error {
	if db.DSN != "" {
		return nil
	}
	if sqlite {
		db.DSN = defaultSQLiteDSN
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
