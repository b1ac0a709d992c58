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

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Academic      AcademicConfig
	Notifications NotificationsConfig
	Cache         CacheConfig
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

// AcademicConfig carries the tunable enrollment and grading rules.
type AcademicConfig struct {
	CreditCap               int
	PassingGrade            float64
	GradeMin                float64
	GradeMax                float64
	CommunityServicePercent float64
	CommunityServiceKeyword string
	RiskRequiredScore       float64
	LowProgressPercent      float64
}

// NotificationsConfig configures the async notification dispatcher.
type NotificationsConfig struct {
	Enabled        bool
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	Workers        int
	BufferSize     int
	MaxRetries     int
	RetryDelay     time.Duration
}

// CacheConfig tunes cached read models.
type CacheConfig struct {
	ProgressTTL time.Duration
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
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Academic = AcademicConfig{
		CreditCap:               v.GetInt("ACADEMIC_CREDIT_CAP"),
		PassingGrade:            v.GetFloat64("ACADEMIC_PASSING_GRADE"),
		GradeMin:                v.GetFloat64("ACADEMIC_GRADE_MIN"),
		GradeMax:                v.GetFloat64("ACADEMIC_GRADE_MAX"),
		CommunityServicePercent: v.GetFloat64("ACADEMIC_COMMUNITY_SERVICE_PERCENT"),
		CommunityServiceKeyword: v.GetString("ACADEMIC_COMMUNITY_SERVICE_KEYWORD"),
		RiskRequiredScore:       v.GetFloat64("ACADEMIC_RISK_REQUIRED_SCORE"),
		LowProgressPercent:      v.GetFloat64("ACADEMIC_LOW_PROGRESS_PERCENT"),
	}

	cfg.Notifications = NotificationsConfig{
		Enabled:        v.GetBool("NOTIFICATIONS_ENABLED"),
		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
		FromEmail:      v.GetString("NOTIFICATIONS_FROM_EMAIL"),
		FromName:       v.GetString("NOTIFICATIONS_FROM_NAME"),
		Workers:        v.GetInt("NOTIFICATIONS_WORKERS"),
		BufferSize:     v.GetInt("NOTIFICATIONS_BUFFER_SIZE"),
		MaxRetries:     v.GetInt("NOTIFICATIONS_MAX_RETRIES"),
		RetryDelay:     parseDuration(v.GetString("NOTIFICATIONS_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Cache = CacheConfig{
		ProgressTTL: parseDuration(v.GetString("CACHE_PROGRESS_TTL"), 10*time.Minute),
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
	v.SetDefault("DB_NAME", "academic")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "academic-api")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ACADEMIC_CREDIT_CAP", 35)
	v.SetDefault("ACADEMIC_PASSING_GRADE", 10.0)
	v.SetDefault("ACADEMIC_GRADE_MIN", 1.0)
	v.SetDefault("ACADEMIC_GRADE_MAX", 20.0)
	v.SetDefault("ACADEMIC_COMMUNITY_SERVICE_PERCENT", 50.0)
	v.SetDefault("ACADEMIC_COMMUNITY_SERVICE_KEYWORD", "community service")
	v.SetDefault("ACADEMIC_RISK_REQUIRED_SCORE", 15.0)
	v.SetDefault("ACADEMIC_LOW_PROGRESS_PERCENT", 25.0)

	v.SetDefault("NOTIFICATIONS_ENABLED", true)
	v.SetDefault("NOTIFICATIONS_FROM_EMAIL", "no-reply@sismepa.edu")
	v.SetDefault("NOTIFICATIONS_FROM_NAME", "SISMEPA Academic Office")
	v.SetDefault("NOTIFICATIONS_WORKERS", 2)
	v.SetDefault("NOTIFICATIONS_BUFFER_SIZE", 64)
	v.SetDefault("NOTIFICATIONS_MAX_RETRIES", 3)
	v.SetDefault("NOTIFICATIONS_RETRY_DELAY", "5s")

	v.SetDefault("CACHE_PROGRESS_TTL", "10m")
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
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
