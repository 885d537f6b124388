package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

// MinJWTSecretLength is the shortest accepted signing key.
const MinJWTSecretLength = 32

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Store    StoreConfig    `yaml:"store"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Redis    RedisConfig    `yaml:"redis"`
	Logger   LoggerConfig   `yaml:"logger"`
	Auth     AuthConfig     `yaml:"auth"`
	Catalog  CatalogConfig  `yaml:"catalog"`
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `yaml:"name"`
	Env                   string `yaml:"env"`
	Host                  string `yaml:"host"`
	Port                  string `yaml:"port"`
	Version               string `yaml:"version"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	MaxConns       int32  `yaml:"max_conns"`
	MinConns       int32  `yaml:"min_conns"`
	RunMigrations  bool   `yaml:"run_migrations"`
	ConnMaxIdleSec int32  `yaml:"conn_max_idle_seconds"`
	ConnMaxLifeSec int32  `yaml:"conn_max_life_seconds"`
}

// SQLiteConfig holds the embedded database location.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `yaml:"level"`
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret              string `yaml:"jwt_secret"`
	JWTIssuer              string `yaml:"jwt_issuer"`
	AccessTokenTTLMinutes  int    `yaml:"access_token_ttl_minutes"`
	BcryptCost             int    `yaml:"bcrypt_cost"`
	LoginMaxAttempts       int    `yaml:"login_max_attempts"`
	LoginWindowMinutes     int    `yaml:"login_window_minutes"`
	BootstrapAdminUsername string `yaml:"bootstrap_admin_username"`
	BootstrapAdminPassword string `yaml:"bootstrap_admin_password"`
}

// CatalogConfig tunes the catalog read path.
type CatalogConfig struct {
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

// Load reads configuration from an optional YAML file named by CONFIG_FILE and
// then from environment variables, which take precedence. The result is
// validated; callers treat an error as fatal.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:                  "catalog-service",
			Env:                   "development",
			Host:                  "0.0.0.0",
			Port:                  "8080",
			Version:               "dev",
			RequestTimeoutSeconds: 30,
		},
		Store: StoreConfig{Driver: StoreDriverPostgres},
		Postgres: PostgresConfig{
			MaxConns:       10,
			MinConns:       2,
			RunMigrations:  true,
			ConnMaxIdleSec: 30,
			ConnMaxLifeSec: 300,
		},
		SQLite: SQLiteConfig{Path: "catalog.db"},
		Logger: LoggerConfig{Level: "info"},
		Auth: AuthConfig{
			JWTIssuer:             "catalog-service",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            12,
			LoginMaxAttempts:      5,
			LoginWindowMinutes:    15,
		},
		Catalog: CatalogConfig{CacheTTLSeconds: 60},
	}
}

func loadFile(path string, cfg *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	env := &envReader{}

	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnv("APP_PORT", cfg.App.Port)
	cfg.App.Version = getEnv("APP_VERSION", cfg.App.Version)
	cfg.App.RequestTimeoutSeconds = env.getInt("HTTP_REQUEST_TIMEOUT_SECONDS", cfg.App.RequestTimeoutSeconds)

	cfg.Store.Driver = getEnv("STORE_DRIVER", cfg.Store.Driver)

	cfg.Postgres.DSN = getEnv("POSTGRES_DSN", cfg.Postgres.DSN)
	cfg.Postgres.MaxConns = env.getInt32("POSTGRES_MAX_CONNS", cfg.Postgres.MaxConns)
	cfg.Postgres.MinConns = env.getInt32("POSTGRES_MIN_CONNS", cfg.Postgres.MinConns)
	cfg.Postgres.RunMigrations = env.getBool("POSTGRES_RUN_MIGRATIONS", cfg.Postgres.RunMigrations)
	cfg.Postgres.ConnMaxIdleSec = env.getInt32("POSTGRES_CONN_MAX_IDLE_SECONDS", cfg.Postgres.ConnMaxIdleSec)
	cfg.Postgres.ConnMaxLifeSec = env.getInt32("POSTGRES_CONN_MAX_LIFE_SECONDS", cfg.Postgres.ConnMaxLifeSec)

	cfg.SQLite.Path = getEnv("SQLITE_PATH", cfg.SQLite.Path)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = env.getInt("REDIS_DB", cfg.Redis.DB)

	cfg.Logger.Level = getEnv("LOG_LEVEL", cfg.Logger.Level)

	cfg.Auth.JWTSecret = getEnv("AUTH_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTIssuer = getEnv("AUTH_JWT_ISSUER", cfg.Auth.JWTIssuer)
	cfg.Auth.AccessTokenTTLMinutes = env.getInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", cfg.Auth.AccessTokenTTLMinutes)
	cfg.Auth.BcryptCost = env.getInt("AUTH_BCRYPT_COST", cfg.Auth.BcryptCost)
	cfg.Auth.LoginMaxAttempts = env.getInt("AUTH_LOGIN_MAX_ATTEMPTS", cfg.Auth.LoginMaxAttempts)
	cfg.Auth.LoginWindowMinutes = env.getInt("AUTH_LOGIN_WINDOW_MINUTES", cfg.Auth.LoginWindowMinutes)
	cfg.Auth.BootstrapAdminUsername = getEnv("AUTH_BOOTSTRAP_ADMIN_USERNAME", cfg.Auth.BootstrapAdminUsername)
	cfg.Auth.BootstrapAdminPassword = getEnv("AUTH_BOOTSTRAP_ADMIN_PASSWORD", cfg.Auth.BootstrapAdminPassword)

	cfg.Catalog.CacheTTLSeconds = env.getInt("CATALOG_CACHE_TTL_SECONDS", cfg.Catalog.CacheTTLSeconds)
	return errors.Join(env.errs...)
}

// Validate reports configuration that must stop the process from starting.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres store"))
		}
	case StoreDriverSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite store"))
		}
	case StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
	} else if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		errs = append(errs, fmt.Errorf("AUTH_JWT_SECRET must be at least %d bytes", MinJWTSecretLength))
	}
	if c.Auth.AccessTokenTTLMinutes <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TOKEN_TTL_MINUTES must be positive"))
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("AUTH_BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the fixed token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// LoginWindow returns the period over which failed logins are counted.
func (a AuthConfig) LoginWindow() time.Duration {
	return time.Duration(a.LoginWindowMinutes) * time.Minute
}

// CacheTTL returns how long catalog entries stay cached. Zero disables caching.
func (c CatalogConfig) CacheTTL() time.Duration {
	if c.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// envReader parses typed environment values and collects every value that
// does not parse. applyEnv reports them together.
type envReader struct {
	errs []error
}

func (r *envReader) getInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s %q: must be an integer", key, val))
		return fallback
	}
	return parsed
}

func (r *envReader) getInt32(key string, fallback int32) int32 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(val, 10, 32)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s %q: must be a 32-bit integer", key, val))
		return fallback
	}
	return int32(parsed)
}

func (r *envReader) getBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s %q: must be a boolean", key, val))
		return fallback
	}
	return parsed
}
