// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	SecretToken string `mapstructure:"SECRET_TOKEN"`
	JWTIssuer   string `mapstructure:"JWT_ISSUER"`
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`

	Port           string `mapstructure:"PORT"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`
	Env            string `mapstructure:"APP_ENV"`

	EmailVerificationEnabled bool   `mapstructure:"EMAIL_VERIFICATION_ENABLED"`
	ClientURL                string `mapstructure:"CLIENT_URL"`
	AdminEmail               string `mapstructure:"ADMIN_EMAIL"`

	UploadDir      string `mapstructure:"UPLOAD_DIR"`
	MaxAvatarBytes int64  `mapstructure:"MAX_AVATAR_BYTES"`
	MaxPageSize    int    `mapstructure:"MAX_PAGE_SIZE"`

	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
	TracingEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables always win.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read profile config 'config.%s.yml': %w", env, err)
			}
		} else {
			log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
		}
	}

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "inkwell")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("SECRET_TOKEN", "")
	viper.SetDefault("JWT_ISSUER", "inkwell-api")
	viper.SetDefault("JWT_AUDIENCE", "inkwell-client")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	viper.SetDefault("FEATURE_FLAGS", "")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("EMAIL_VERIFICATION_ENABLED", true)
	viper.SetDefault("CLIENT_URL", "http://localhost:3000")
	viper.SetDefault("ADMIN_EMAIL", "")
	viper.SetDefault("UPLOAD_DIR", "uploads")
	viper.SetDefault("MAX_AVATAR_BYTES", 5*1024*1024)
	viper.SetDefault("MAX_PAGE_SIZE", 50)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

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

func (c *Config) normalize() {
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.ClientURL = strings.TrimRight(strings.TrimSpace(c.ClientURL), "/")
}

// SigningSecret returns the first non-empty token secret: JWT_SECRET, then SECRET_TOKEN.
func (c *Config) SigningSecret() string {
	if s := strings.TrimSpace(c.JWTSecret); s != "" {
		return s
	}
	return strings.TrimSpace(c.SecretToken)
}

// TokenTTL is the lifetime of issued access tokens.
func (c *Config) TokenTTL() time.Duration {
	return 7 * 24 * time.Hour
}

// IsProduction reports whether APP_ENV names a production profile.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	secret := c.SigningSecret()
	if secret == "" {
		return errors.New("JWT_SECRET or SECRET_TOKEN is required")
	}
	if c.MaxAvatarBytes <= 0 {
		return errors.New("MAX_AVATAR_BYTES must be positive")
	}
	if c.MaxPageSize < 1 {
		return errors.New("MAX_PAGE_SIZE must be at least 1")
	}

	if c.IsProduction() {
		if secret == defaultJWTSecret {
			return errors.New("JWT secret must be changed from the default value in production")
		}
		if len(secret) < 32 {
			return errors.New("JWT secret must be at least 32 characters in production")
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
		if c.EmailVerificationEnabled && c.ClientURL == "" {
			return errors.New("CLIENT_URL is required when email verification is enabled")
		}
	} else if len(secret) < 32 {
		log.Println("WARNING: JWT secret is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
