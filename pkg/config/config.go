package config

import (
	"errors"
	"fmt"
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

// Identity provider kinds.
const (
	IdentityFirebase = "firebase"
	IdentityLocal    = "local"
)

// Configuration errors reported by Validate.
var (
	ErrMissingFirebaseProject = errors.New("config: FIREBASE_PROJECT_ID is required for the firebase identity provider")
	ErrMissingLocalSecret     = errors.New("config: IDENTITY_LOCAL_SECRET is required for the local identity provider")
	ErrUnknownIdentity        = errors.New("config: IDENTITY_PROVIDER must be firebase or local")
	ErrBypassInProduction     = errors.New("config: AUTH_BYPASS cannot be enabled in production")
	ErrInvalidPort            = errors.New("config: PORT must be between 1 and 65535")
)

type Config struct {
	Env        string
	Port       int
	APIPrefix  string
	AuthBypass bool

	Database   DatabaseConfig
	Redis      RedisConfig
	Identity   IdentityConfig
	CORS       CORSConfig
	Log        LogConfig
	Cache      CacheConfig
	Attendance AttendanceConfig
	Scheduler  SchedulerConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// IdentityConfig selects and configures the bearer token verifier.
type IdentityConfig struct {
	Provider        string
	ProjectID       string
	CredentialsFile string
	LocalSecret     string
	LocalIssuer     string
	LocalTokenTTL   time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig tunes list caching backed by Redis.
type CacheConfig struct {
	TTL time.Duration
}

// AttendanceConfig controls the bulk update contract.
type AttendanceConfig struct {
	StrictBulk bool
}

// SchedulerConfig toggles automatic session creation.
type SchedulerConfig struct {
	Enabled  bool
	Schedule string
	Timezone string
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

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.AuthBypass = v.GetBool("AUTH_BYPASS")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_CACHE"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Identity = IdentityConfig{
		Provider:        strings.ToLower(v.GetString("IDENTITY_PROVIDER")),
		ProjectID:       v.GetString("FIREBASE_PROJECT_ID"),
		CredentialsFile: v.GetString("FIREBASE_CREDENTIALS_FILE"),
		LocalSecret:     v.GetString("IDENTITY_LOCAL_SECRET"),
		LocalIssuer:     v.GetString("IDENTITY_LOCAL_ISSUER"),
		LocalTokenTTL:   parseDuration(v.GetString("IDENTITY_LOCAL_TOKEN_TTL"), time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("FRONTEND_ORIGIN"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		TTL: parseDuration(v.GetString("CACHE_TTL"), 2*time.Minute),
	}

	cfg.Attendance = AttendanceConfig{
		StrictBulk: v.GetBool("ATTENDANCE_STRICT_BULK"),
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:  v.GetBool("ENABLE_SESSION_SCHEDULER"),
		Schedule: v.GetString("SESSION_SCHEDULER_CRON"),
		Timezone: v.GetString("SESSION_SCHEDULER_TZ"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports the first missing or contradictory setting.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.AuthBypass && c.Env == EnvProduction {
		return ErrBypassInProduction
	}
	switch c.Identity.Provider {
	case IdentityFirebase:
		if c.Identity.ProjectID == "" && !c.AuthBypass {
			return ErrMissingFirebaseProject
		}
	case IdentityLocal:
		if c.Identity.LocalSecret == "" {
			return ErrMissingLocalSecret
		}
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownIdentity, c.Identity.Provider)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 4000)
	v.SetDefault("API_PREFIX", "/api")
	v.SetDefault("AUTH_BYPASS", false)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "meemli")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", "2m")

	v.SetDefault("IDENTITY_PROVIDER", IdentityFirebase)
	v.SetDefault("FIREBASE_PROJECT_ID", "")
	v.SetDefault("FIREBASE_CREDENTIALS_FILE", "")
	v.SetDefault("IDENTITY_LOCAL_SECRET", "")
	v.SetDefault("IDENTITY_LOCAL_ISSUER", "meemli-local")
	v.SetDefault("IDENTITY_LOCAL_TOKEN_TTL", "1h")

	v.SetDefault("FRONTEND_ORIGIN", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ATTENDANCE_STRICT_BULK", false)

	v.SetDefault("ENABLE_SESSION_SCHEDULER", false)
	v.SetDefault("SESSION_SCHEDULER_CRON", "0 5 * * *")
	v.SetDefault("SESSION_SCHEDULER_TZ", "America/Los_Angeles")
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
