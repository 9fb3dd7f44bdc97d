// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret                     string  `mapstructure:"JWT_SECRET"`
	JWTIssuer                     string  `mapstructure:"JWT_ISSUER"`
	JWTAudience                   string  `mapstructure:"JWT_AUDIENCE"`
	JWTTTLMinutes                 int     `mapstructure:"JWT_TTL_MINUTES"`
	Port                          string  `mapstructure:"PORT"`
	AppURL                        string  `mapstructure:"APP_URL"`
	DBHost                        string  `mapstructure:"DB_HOST"`
	DBPort                        string  `mapstructure:"DB_PORT"`
	DBUser                        string  `mapstructure:"DB_USER"`
	DBPassword                    string  `mapstructure:"DB_PASSWORD"`
	DBName                        string  `mapstructure:"DB_NAME"`
	DBSSLMode                     string  `mapstructure:"DB_SSLMODE"`
	DBSchemaMode                  string  `mapstructure:"DB_SCHEMA_MODE"`
	DBMaxOpenConns                int     `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns                int     `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes      int     `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	RedisURL                      string  `mapstructure:"REDIS_URL"`
	AllowedOrigins                string  `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags                  string  `mapstructure:"FEATURE_FLAGS"`
	Env                           string  `mapstructure:"APP_ENV"`
	RequireEmailVerification      bool    `mapstructure:"REQUIRE_EMAIL_VERIFICATION"`
	SMTPHost                      string  `mapstructure:"SMTP_HOST"`
	SMTPPort                      int     `mapstructure:"SMTP_PORT"`
	SMTPUsername                  string  `mapstructure:"SMTP_USERNAME"`
	SMTPPassword                  string  `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom                      string  `mapstructure:"SMTP_FROM"`
	GoogleClientID                string  `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret            string  `mapstructure:"GOOGLE_CLIENT_SECRET"`
	ElasticAddr                   string  `mapstructure:"ELASTIC_ADDR"`
	ElasticUsername               string  `mapstructure:"ELASTIC_USERNAME"`
	ElasticPassword               string  `mapstructure:"ELASTIC_PASSWORD"`
	ElasticIndex                  string  `mapstructure:"ELASTIC_INDEX"`
	AdminName                     string  `mapstructure:"ADMIN_NAME"`
	AdminEmail                    string  `mapstructure:"ADMIN_EMAIL"`
	AdminPassword                 string  `mapstructure:"ADMIN_PASSWORD"`
	TracingEnabled                bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter               string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint                  string  `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TracingSampleRatio            float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
	RateLimitAuthPerMinute        int     `mapstructure:"RATE_LIMIT_AUTH_PER_MINUTE"`
	RateLimitWritePerMinute       int     `mapstructure:"RATE_LIMIT_WRITE_PER_MINUTE"`
	RateLimitGlobalPerMinute      int     `mapstructure:"RATE_LIMIT_GLOBAL_PER_MINUTE"`
	VerificationTokenTTLHours     int     `mapstructure:"VERIFICATION_TOKEN_TTL_HOURS"`
	GracefulShutdownTimeoutSecs   int     `mapstructure:"GRACEFUL_SHUTDOWN_TIMEOUT_SECONDS"`
	SlowQueryThresholdMillis      int     `mapstructure:"SLOW_QUERY_THRESHOLD_MS"`
	DBAutoMigrateAllowDestructive bool    `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// Initial read to get APP_ENV if set in base config
	// We intentionally ignore this error as the config file may not exist yet
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_URL", "http://localhost:8375")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "inkwell")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE", false)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("JWT_ISSUER", "inkwell-api")
	viper.SetDefault("JWT_AUDIENCE", "inkwell-app")
	viper.SetDefault("JWT_TTL_MINUTES", 60*24*7)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("FEATURE_FLAGS", "search_index=on")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("REQUIRE_EMAIL_VERIFICATION", true)
	viper.SetDefault("SMTP_HOST", "")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("SMTP_USERNAME", "")
	viper.SetDefault("SMTP_PASSWORD", "")
	viper.SetDefault("SMTP_FROM", "Inkwell <no-reply@inkwell.local>")
	viper.SetDefault("GOOGLE_CLIENT_ID", "")
	viper.SetDefault("GOOGLE_CLIENT_SECRET", "")
	viper.SetDefault("ELASTIC_ADDR", "")
	viper.SetDefault("ELASTIC_USERNAME", "")
	viper.SetDefault("ELASTIC_PASSWORD", "")
	viper.SetDefault("ELASTIC_INDEX", "posts")
	viper.SetDefault("ADMIN_NAME", "Admin")
	viper.SetDefault("ADMIN_EMAIL", "")
	viper.SetDefault("ADMIN_PASSWORD", "")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
	viper.SetDefault("RATE_LIMIT_AUTH_PER_MINUTE", 10)
	viper.SetDefault("RATE_LIMIT_WRITE_PER_MINUTE", 30)
	viper.SetDefault("RATE_LIMIT_GLOBAL_PER_MINUTE", 300)
	viper.SetDefault("VERIFICATION_TOKEN_TTL_HOURS", 24)
	viper.SetDefault("GRACEFUL_SHUTDOWN_TIMEOUT_SECONDS", 10)
	viper.SetDefault("SLOW_QUERY_THRESHOLD_MS", 200)
}

func (c *Config) normalize() {
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBSchemaMode = strings.ToLower(strings.TrimSpace(c.DBSchemaMode))
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.AppURL = strings.TrimRight(strings.TrimSpace(c.AppURL), "/")
}

// IsProduction reports whether the production profile is active.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// GoogleOAuthEnabled reports whether Google sign-in credentials are present.
func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	if c.DBConnMaxLifetimeMinutes <= 0 {
		return errors.New("DB_CONN_MAX_LIFETIME_MINUTES must be positive")
	}
	if c.JWTTTLMinutes < 0 {
		return errors.New("JWT_TTL_MINUTES must not be negative")
	}
	if c.TracingSampleRatio < 0 || c.TracingSampleRatio > 1 {
		return errors.New("TRACING_SAMPLE_RATIO must be between 0 and 1")
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	// Strict checks for production
	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else {
		// Development/Test warnings
		if len(c.JWTSecret) < 32 {
			log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
		}
	}

	return nil
}
