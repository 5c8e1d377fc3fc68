package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	Service ServiceConfig
	DB      DBConfig
	Redis   RedisConfig
	VAT     VATConfig
	Cron    CronConfig
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
	Env          string `envconfig:"ACTED_APP_ENV" required:"true"`
	Port         string `envconfig:"ACTED_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ACTED_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ACTED_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"ACTED_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ACTED_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ACTED_DB_DSN"`
	Driver string `envconfig:"ACTED_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"ACTED_DB_HOST"`
	Port     int    `envconfig:"ACTED_DB_PORT" default:"5432"`
	User     string `envconfig:"ACTED_DB_USER"`
	Password string `envconfig:"ACTED_DB_PASSWORD"`
	Name     string `envconfig:"ACTED_DB_NAME"`
	SSLMode  string `envconfig:"ACTED_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ACTED_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ACTED_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ACTED_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ACTED_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ACTED_REDIS_URL"`
	Address      string        `envconfig:"ACTED_REDIS_ADDR"`
	Password     string        `envconfig:"ACTED_REDIS_PASSWORD"`
	DB           int           `envconfig:"ACTED_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ACTED_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ACTED_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ACTED_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ACTED_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ACTED_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// VATConfig carries the tunables of the VAT calculation core.
type VATConfig struct {
	AuditRetentionDays int    `envconfig:"ACTED_VAT_AUDIT_RETENTION_DAYS" default:"730"`
	ContextVersion     string `envconfig:"ACTED_VAT_CONTEXT_VERSION" default:"1.0"`
	RaiseOnError       bool   `envconfig:"ACTED_VAT_RAISE_ON_ERROR" default:"false"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"ACTED_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"ACTED_CRON_LOCK_TTL" default:"25h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
