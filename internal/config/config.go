package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	AppName                 string   `mapstructure:"APP_NAME"`
	Debug                   bool     `mapstructure:"DEBUG"`
	Environment             string   `mapstructure:"ENVIRONMENT"`
	Port                    string   `mapstructure:"PORT"`
	DatabaseURL             string   `mapstructure:"DATABASE_URL"`
	DBMaxConns              int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns              int32    `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir           string   `mapstructure:"MIGRATIONS_DIR"`
	SecretKey               string   `mapstructure:"SECRET_KEY"`
	JWTAlgorithm            string   `mapstructure:"JWT_ALGORITHM"`
	JWTExpireHours          int      `mapstructure:"JWT_EXPIRE_HOURS"`
	PhotosPath              string   `mapstructure:"PHOTOS_PATH"`
	MaxPhotoSizeMB          int      `mapstructure:"MAX_PHOTO_SIZE_MB"`
	PhotoQuality            int      `mapstructure:"PHOTO_QUALITY"`
	CORSOrigins             []string `mapstructure:"CORS_ORIGINS"`
	AdminUsername           string   `mapstructure:"ADMIN_USERNAME"`
	AdminPassword           string   `mapstructure:"ADMIN_PASSWORD"`
	LogLevel                string   `mapstructure:"LOG_LEVEL"`
	RateLimitPerMinute      int      `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	RateLimitLoginPerMinute int      `mapstructure:"RATE_LIMIT_LOGIN_PER_MINUTE"`
	RedisURL                string   `mapstructure:"REDIS_URL"`
	StorageBackend          string   `mapstructure:"STORAGE_BACKEND"`
	S3Bucket                string   `mapstructure:"S3_BUCKET"`
	S3Prefix                string   `mapstructure:"S3_PREFIX"`
	AWSRegion               string   `mapstructure:"AWS_REGION"`
}

var envKeys = []string{
	"APP_NAME", "DEBUG", "ENVIRONMENT", "PORT",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
	"SECRET_KEY", "JWT_ALGORITHM", "JWT_EXPIRE_HOURS",
	"PHOTOS_PATH", "MAX_PHOTO_SIZE_MB", "PHOTO_QUALITY",
	"CORS_ORIGINS", "ADMIN_USERNAME", "ADMIN_PASSWORD", "LOG_LEVEL",
	"RATE_LIMIT_PER_MINUTE", "RATE_LIMIT_LOGIN_PER_MINUTE", "REDIS_URL",
	"STORAGE_BACKEND", "S3_BUCKET", "S3_PREFIX", "AWS_REGION",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("APP_NAME", "Laser Clinic API")
	v.SetDefault("DEBUG", false)
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("PORT", "8000")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("JWT_ALGORITHM", "HS256")
	v.SetDefault("JWT_EXPIRE_HOURS", 8)
	v.SetDefault("PHOTOS_PATH", "./data/photos")
	v.SetDefault("MAX_PHOTO_SIZE_MB", 10)
	v.SetDefault("PHOTO_QUALITY", 85)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 120)
	v.SetDefault("RATE_LIMIT_LOGIN_PER_MINUTE", 5)
	v.SetDefault("STORAGE_BACKEND", "fs")
	v.SetDefault("AWS_REGION", "eu-west-3")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Environment == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// MaxPhotoBytes is the upload ceiling applied to photos and documents.
func (c *Config) MaxPhotoBytes() int64 {
	return int64(c.MaxPhotoSizeMB) * 1024 * 1024
}

// SigningKey returns the HMAC key for session tokens. Outside production an
// empty SECRET_KEY falls back to a fixed development key.
func (c *Config) SigningKey() []byte {
	if c.SecretKey == "" {
		return []byte("dev-insecure-secret")
	}
	return []byte(c.SecretKey)
}

// Validate checks that the configuration is safe to run. Production refuses
// to start without a signing key or with debug enabled.
func (c *Config) Validate() error {
	switch c.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be development, staging or production, got %q", c.Environment)
	}
	if c.JWTAlgorithm != "HS256" {
		return fmt.Errorf("JWT_ALGORITHM must be HS256, got %q", c.JWTAlgorithm)
	}
	if c.IsProduction() {
		if c.SecretKey == "" {
			return fmt.Errorf("SECRET_KEY is required in production")
		}
		if c.Debug {
			return fmt.Errorf("DEBUG must be false in production")
		}
	}
	if c.JWTExpireHours <= 0 {
		return fmt.Errorf("JWT_EXPIRE_HOURS must be positive")
	}
	if c.MaxPhotoSizeMB <= 0 {
		return fmt.Errorf("MAX_PHOTO_SIZE_MB must be positive")
	}
	switch c.StorageBackend {
	case "fs":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND is \"s3\"")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be \"fs\" or \"s3\", got %q", c.StorageBackend)
	}
	return nil
}
