package config

import (
	"errors"
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

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	SMTP       SMTPConfig
	Attendance AttendanceConfig
	Alerts     AlertsConfig
	Audit      AuditConfig
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
}

type RedisConfig struct {
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

// SMTPConfig carries outbound mail settings for the low-attendance notifier.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// AttendanceConfig tunes the ledger and report engine.
type AttendanceConfig struct {
	// DefaultRequiredPercentage applies when a class has no threshold of its own.
	DefaultRequiredPercentage float64
	// HistoryEpoch is the lower bound used by the "all" self-history period.
	HistoryEpoch time.Time
	// ReportCacheTTL bounds staleness of cached report payloads. Summaries are
	// never cached; only read-only report responses are.
	ReportCacheTTL time.Duration
}

// AlertsConfig governs the low-attendance alert dispatcher.
type AlertsConfig struct {
	Enabled    bool
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// AuditConfig governs the fire-and-forget audit trail writer.
type AuditConfig struct {
	Enabled bool
	Workers int
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.SMTP = SMTPConfig{
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		Username: v.GetString("SMTP_USER"),
		Password: v.GetString("SMTP_PASSWORD"),
		From:     v.GetString("SMTP_FROM_EMAIL"),
		FromName: v.GetString("SMTP_FROM_NAME"),
	}

	epoch, err := time.Parse("2006-01-02", v.GetString("ATTENDANCE_HISTORY_EPOCH"))
	if err != nil {
		epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	cfg.Attendance = AttendanceConfig{
		DefaultRequiredPercentage: v.GetFloat64("ATTENDANCE_DEFAULT_REQUIRED_PERCENTAGE"),
		HistoryEpoch:              epoch,
		ReportCacheTTL:            parseDuration(v.GetString("ATTENDANCE_REPORT_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Alerts = AlertsConfig{
		Enabled:    v.GetBool("ENABLE_ALERTS"),
		Workers:    v.GetInt("ALERT_WORKERS"),
		MaxRetries: v.GetInt("ALERT_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("ALERT_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Audit = AuditConfig{
		Enabled: v.GetBool("ENABLE_AUDIT_LOG"),
		Workers: v.GetInt("AUDIT_WORKERS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "presensia")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "1h")
	v.SetDefault("JWT_ISSUER", "presensia")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM_EMAIL", "")
	v.SetDefault("SMTP_FROM_NAME", "QR Attendance System")

	v.SetDefault("ATTENDANCE_DEFAULT_REQUIRED_PERCENTAGE", 75.0)
	v.SetDefault("ATTENDANCE_HISTORY_EPOCH", "2000-01-01")
	v.SetDefault("ATTENDANCE_REPORT_CACHE_TTL", "5m")

	v.SetDefault("ENABLE_ALERTS", true)
	v.SetDefault("ALERT_WORKERS", 2)
	v.SetDefault("ALERT_MAX_RETRIES", 3)
	v.SetDefault("ALERT_RETRY_DELAY", "5s")

	v.SetDefault("ENABLE_AUDIT_LOG", true)
	v.SetDefault("AUDIT_WORKERS", 1)
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
