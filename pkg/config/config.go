package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Elo          EloConfig
	Events       EventsConfig
	Availability AvailabilityConfig
	Jobs         JobsConfig
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	Schema        string
	MaxOpenConns  int
	MaxIdleConns  int
	RunMigrations bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EloConfig tunes the rating update.
type EloConfig struct {
	BaselineRating float64
	KFactor        float64
}

// EventsConfig controls notification delivery after commits.
type EventsConfig struct {
	Enabled        bool
	WorkflowURL    string
	WebhookTimeout time.Duration
	Workers        int
	MaxRetries     int
	RetryDelay     time.Duration
	DrainTimeout   time.Duration
	DeadLetterKey  string
	ChannelPrefix  string
}

// AvailabilityConfig governs the availability cache.
type AvailabilityConfig struct {
	CacheTTL time.Duration
}

// JobsConfig bounds job claiming.
type JobsConfig struct {
	MaxWorkload int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:          v.GetString("DB_HOST"),
		Port:          v.GetInt("DB_PORT"),
		User:          v.GetString("DB_USER"),
		Password:      v.GetString("DB_PASSWORD"),
		Name:          v.GetString("DB_NAME"),
		SSLMode:       v.GetString("DB_SSL_MODE"),
		Schema:        v.GetString("DB_SCHEMA"),
		MaxOpenConns:  v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:  v.GetInt("DB_MAX_IDLE_CONNS"),
		RunMigrations: v.GetBool("DB_RUN_MIGRATIONS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Elo = EloConfig{
		BaselineRating: v.GetFloat64("ELO_BASELINE_RATING"),
		KFactor:        v.GetFloat64("ELO_K_FACTOR"),
	}
	if cfg.Elo.BaselineRating <= 0 {
		cfg.Elo.BaselineRating = 1200
	}
	if cfg.Elo.KFactor <= 0 {
		cfg.Elo.KFactor = 32
	}

	cfg.Events = EventsConfig{
		Enabled:        v.GetBool("ENABLE_EVENTS"),
		WorkflowURL:    strings.TrimRight(v.GetString("WORKFLOW_WEBHOOK_URL"), "/"),
		WebhookTimeout: parseDuration(v.GetString("WORKFLOW_WEBHOOK_TIMEOUT"), 5*time.Second),
		Workers:        v.GetInt("EVENTS_WORKERS"),
		MaxRetries:     v.GetInt("EVENTS_MAX_RETRIES"),
		RetryDelay:     parseDuration(v.GetString("EVENTS_RETRY_DELAY"), 2*time.Second),
		DrainTimeout:   parseDuration(v.GetString("EVENTS_DRAIN_TIMEOUT"), 10*time.Second),
		DeadLetterKey:  v.GetString("EVENTS_DEAD_LETTER_KEY"),
		ChannelPrefix:  v.GetString("EVENTS_CHANNEL_PREFIX"),
	}

	cfg.Availability = AvailabilityConfig{
		CacheTTL: parseDuration(v.GetString("AVAILABILITY_CACHE_TTL"), 15*time.Minute),
	}

	cfg.Jobs = JobsConfig{
		MaxWorkload: v.GetInt("JOBS_MAX_WORKLOAD"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "user_management")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_SCHEMA", "user_management")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_RUN_MIGRATIONS", true)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "user-management-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ELO_BASELINE_RATING", 1200)
	v.SetDefault("ELO_K_FACTOR", 32)

	v.SetDefault("ENABLE_EVENTS", true)
	v.SetDefault("WORKFLOW_WEBHOOK_URL", "http://localhost:5678")
	v.SetDefault("WORKFLOW_WEBHOOK_TIMEOUT", "5s")
	v.SetDefault("EVENTS_WORKERS", 2)
	v.SetDefault("EVENTS_MAX_RETRIES", 3)
	v.SetDefault("EVENTS_RETRY_DELAY", "2s")
	v.SetDefault("EVENTS_DRAIN_TIMEOUT", "10s")
	v.SetDefault("EVENTS_DEAD_LETTER_KEY", "events:dead_letter")
	v.SetDefault("EVENTS_CHANNEL_PREFIX", "")

	v.SetDefault("AVAILABILITY_CACHE_TTL", "15m")
	v.SetDefault("JOBS_MAX_WORKLOAD", 5)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
