package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. Values come from built-in
// defaults, then an optional YAML file named by BOARDSYNC_CONFIG, then
// environment variables.
type Config struct {
	Database   DatabaseConfig `yaml:"database"`
	Redis      RedisConfig    `yaml:"redis"`
	JWT        JWTConfig      `yaml:"jwt"`
	Server     ServerConfig   `yaml:"server"`
	Sync       SyncConfig     `yaml:"sync"`
	Client     ClientConfig   `yaml:"client"`
	Log        LogConfig      `yaml:"log"`
	SelfHosted bool           `yaml:"selfHosted"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"` //nolint:gosec // G117: DB connection config
	DBName   string `yaml:"dbName"`
	SSLMode  string `yaml:"sslMode"`
	MaxConns int    `yaml:"maxConns"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"` //nolint:gosec // G117: Redis connection config
	DB       int    `yaml:"db"`
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret   string        `yaml:"secret"` //nolint:gosec // G117: JWT signing secret config
	TokenTTL time.Duration `yaml:"tokenTTL"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	CORSOrigins  []string      `yaml:"corsOrigins"`
	RateLimit    float64       `yaml:"rateLimit"`
	RateBurst    int           `yaml:"rateBurst"`
}

// SyncConfig tunes the sync engine and the commit endpoint.
type SyncConfig struct {
	FlushInterval time.Duration `yaml:"flushInterval"`
	CommitTimeout time.Duration `yaml:"commitTimeout"`
	BatchLimit    int           `yaml:"batchLimit"`
	BackoffBase   time.Duration `yaml:"backoffBase"`
	BackoffMax    time.Duration `yaml:"backoffMax"`
	EchoTTL       time.Duration `yaml:"echoTTL"`
	LeaveTimeout  time.Duration `yaml:"leaveTimeout"`
}

// ClientConfig is used by the watch and apply commands.
type ClientConfig struct {
	ServerURL string `yaml:"serverURL"`
	Token     string `yaml:"token"` //nolint:gosec // G117: client bearer token
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "boardsync",
			DBName:   "boardsync_dev",
			SSLMode:  "disable",
			MaxConns: 25,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		JWT: JWTConfig{
			TokenTTL: 24 * time.Hour,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			CORSOrigins:  []string{"http://localhost:5173"},
			RateLimit:    50,
			RateBurst:    100,
		},
		Sync: SyncConfig{
			FlushInterval: 50 * time.Millisecond,
			CommitTimeout: 10 * time.Second,
			BatchLimit:    500,
			BackoffBase:   time.Second,
			BackoffMax:    30 * time.Second,
			EchoTTL:       10 * time.Second,
			LeaveTimeout:  3 * time.Second,
		},
		Client: ClientConfig{
			ServerURL: "http://localhost:8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration for the server.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// LoadClient reads configuration for client commands, which need neither
// the database nor a signing secret.
func LoadClient() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("config.LoadClient: %w", err)
	}

	err = cfg.validateSync()
	if err != nil {
		return nil, fmt.Errorf("config.LoadClient: %w", err)
	}

	return cfg, nil
}

func load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("BOARDSYNC_CONFIG"); path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readFile overlays the YAML file at path onto c. Keys absent from the
// file keep their current values.
func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

//nolint:funlen // one line per variable
func (c *Config) applyEnv() error {
	var err error

	if c.Database.Port, err = getEnvInt("BOARDSYNC_DB_PORT", c.Database.Port); err != nil {
		return err
	}
	if c.Database.MaxConns, err = getEnvInt("BOARDSYNC_DB_MAX_CONNS", c.Database.MaxConns); err != nil {
		return err
	}
	if c.Redis.DB, err = getEnvInt("BOARDSYNC_REDIS_DB", c.Redis.DB); err != nil {
		return err
	}
	if c.JWT.TokenTTL, err = getEnvDuration("BOARDSYNC_JWT_TOKEN_TTL", c.JWT.TokenTTL); err != nil {
		return err
	}
	if c.Server.ReadTimeout, err = getEnvDuration("BOARDSYNC_SERVER_READ_TIMEOUT", c.Server.ReadTimeout); err != nil {
		return err
	}
	if c.Server.WriteTimeout, err = getEnvDuration("BOARDSYNC_SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout); err != nil {
		return err
	}
	if c.Server.RateLimit, err = getEnvFloat("BOARDSYNC_RATE_LIMIT", c.Server.RateLimit); err != nil {
		return err
	}
	if c.Server.RateBurst, err = getEnvInt("BOARDSYNC_RATE_BURST", c.Server.RateBurst); err != nil {
		return err
	}
	if c.Sync.FlushInterval, err = getEnvDuration("BOARDSYNC_FLUSH_INTERVAL", c.Sync.FlushInterval); err != nil {
		return err
	}
	if c.Sync.CommitTimeout, err = getEnvDuration("BOARDSYNC_COMMIT_TIMEOUT", c.Sync.CommitTimeout); err != nil {
		return err
	}
	if c.Sync.BatchLimit, err = getEnvInt("BOARDSYNC_BATCH_LIMIT", c.Sync.BatchLimit); err != nil {
		return err
	}
	if c.Sync.BackoffBase, err = getEnvDuration("BOARDSYNC_BACKOFF_BASE", c.Sync.BackoffBase); err != nil {
		return err
	}
	if c.Sync.BackoffMax, err = getEnvDuration("BOARDSYNC_BACKOFF_MAX", c.Sync.BackoffMax); err != nil {
		return err
	}
	if c.Sync.EchoTTL, err = getEnvDuration("BOARDSYNC_ECHO_TTL", c.Sync.EchoTTL); err != nil {
		return err
	}
	if c.Sync.LeaveTimeout, err = getEnvDuration("BOARDSYNC_LEAVE_TIMEOUT", c.Sync.LeaveTimeout); err != nil {
		return err
	}
	if c.SelfHosted, err = getEnvBool("BOARDSYNC_SELF_HOSTED", c.SelfHosted); err != nil {
		return err
	}

	c.Database.Host = getEnv("BOARDSYNC_DB_HOST", c.Database.Host)
	c.Database.User = getEnv("BOARDSYNC_DB_USER", c.Database.User)
	c.Database.Password = getEnv("BOARDSYNC_DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("BOARDSYNC_DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("BOARDSYNC_DB_SSLMODE", c.Database.SSLMode)
	c.Redis.Addr = getEnv("BOARDSYNC_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("BOARDSYNC_REDIS_PASSWORD", c.Redis.Password)
	c.JWT.Secret = getEnv("BOARDSYNC_JWT_SECRET", c.JWT.Secret)
	c.Server.Addr = getEnv("BOARDSYNC_SERVER_ADDR", c.Server.Addr)
	c.Server.CORSOrigins = getEnvList("BOARDSYNC_CORS_ORIGINS", c.Server.CORSOrigins)
	c.Client.ServerURL = getEnv("BOARDSYNC_SERVER_URL", c.Client.ServerURL)
	c.Client.Token = getEnv("BOARDSYNC_TOKEN", c.Client.Token)
	c.Log.Level = getEnv("BOARDSYNC_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("BOARDSYNC_LOG_FORMAT", c.Log.Format)

	return nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("BOARDSYNC_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("BOARDSYNC_JWT_SECRET must be at least 32 characters")
	}

	// DB SSL mode warning for non-self-hosted deployments.
	if c.Database.SSLMode == "disable" && !c.SelfHosted {
		log.Warn().Msg("BOARDSYNC_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("BOARDSYNC_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("BOARDSYNC_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.JWT.TokenTTL <= 0 {
		return fmt.Errorf("BOARDSYNC_JWT_TOKEN_TTL must be positive, got %s", c.JWT.TokenTTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("BOARDSYNC_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("BOARDSYNC_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.RateLimit <= 0 || c.Server.RateBurst < 1 {
		return fmt.Errorf("BOARDSYNC_RATE_LIMIT and BOARDSYNC_RATE_BURST must be positive, got %g/%d", c.Server.RateLimit, c.Server.RateBurst)
	}

	return c.validateSync()
}

func (c *Config) validateSync() error {
	if c.Sync.FlushInterval <= 0 {
		return fmt.Errorf("BOARDSYNC_FLUSH_INTERVAL must be positive, got %s", c.Sync.FlushInterval)
	}
	if c.Sync.BatchLimit < 1 {
		return fmt.Errorf("BOARDSYNC_BATCH_LIMIT must be >= 1, got %d", c.Sync.BatchLimit)
	}
	if c.Sync.BackoffBase <= 0 || c.Sync.BackoffMax < c.Sync.BackoffBase {
		return fmt.Errorf("BOARDSYNC_BACKOFF_BASE must be positive and at most BOARDSYNC_BACKOFF_MAX, got %s/%s", c.Sync.BackoffBase, c.Sync.BackoffMax)
	}
	if c.Sync.EchoTTL <= 0 {
		return fmt.Errorf("BOARDSYNC_ECHO_TTL must be positive, got %s", c.Sync.EchoTTL)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
