package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr string
	LogLevel   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	RedisAddr  string

	// Token signing configuration. AccessSecret and RefreshSecret must be
	// distinct: sharing one secret collapses the access/refresh token
	// classes into a single verification domain.
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	// Stylist (chat completion API) configuration
	StylistAPIKey  string
	StylistBaseURL string
	StylistModel   string

	// Object storage configuration
	StorageBackend string // "minio" or "s3"
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3UsePathStyle bool
	PublicMediaURL string

	CORSOrigins []string
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first, if present.
func Load() *Config {
	_ = godotenv.Load()

	accessMinutes, _ := strconv.Atoi(getEnvOrDefault("ACCESS_TOKEN_EXPIRE_MINUTES", "30"))
	if accessMinutes <= 0 {
		accessMinutes = 30
	}
	refreshDays, _ := strconv.Atoi(getEnvOrDefault("REFRESH_TOKEN_EXPIRE_DAYS", "30"))
	if refreshDays <= 0 {
		refreshDays = 30
	}

	minioUseSSL, _ := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", "false"))
	s3PathStyle, _ := strconv.ParseBool(getEnvOrDefault("S3_USE_PATH_STYLE", "true"))

	return &Config{
		ServerAddr: getEnvOrDefault("SERVER_ADDR", ":8080"),
		LogLevel:   getEnvOrDefault("LOG_LEVEL", "info"),
		DBHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:     getEnvOrDefault("DB_PORT", "5432"),
		DBUser:     getEnvOrDefault("DB_USER", "stylevault"),
		DBPassword: getEnvOrDefault("DB_PASSWORD", "stylevault_dev_password"),
		DBName:     getEnvOrDefault("DB_NAME", "stylevault"),
		RedisAddr:  getEnvOrDefault("REDIS_ADDR", "localhost:6379"),

		AccessSecret:  os.Getenv("SECRET_KEY"),
		RefreshSecret: os.Getenv("REFRESH_SECRET_KEY"),
		AccessTTL:     time.Duration(accessMinutes) * time.Minute,
		RefreshTTL:    time.Duration(refreshDays) * 24 * time.Hour,

		StylistAPIKey:  os.Getenv("STYLIST_API_KEY"),
		StylistBaseURL: getEnvOrDefault("STYLIST_BASE_URL", "https://api.openai.com/v1"),
		StylistModel:   getEnvOrDefault("STYLIST_MODEL", "gpt-4"),

		StorageBackend: getEnvOrDefault("STORAGE_BACKEND", "minio"),
		MinioEndpoint:  getEnvOrDefault("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:    getEnvOrDefault("MINIO_BUCKET", "wardrobe-images"),
		MinioUseSSL:    minioUseSSL,
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3Region:       getEnvOrDefault("S3_REGION", "us-east-1"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3Bucket:       getEnvOrDefault("S3_BUCKET", "wardrobe-images"),
		S3UsePathStyle: s3PathStyle,
		PublicMediaURL: os.Getenv("PUBLIC_MEDIA_URL"),

		CORSOrigins: []string{getEnvOrDefault("CORS_ORIGIN", "*")},
	}
}

// Validate rejects configurations that would silently weaken the token
// scheme. A missing refresh secret historically fell back to the access
// secret; that fallback is now a startup error.
func (c *Config) Validate() error {
	if c.AccessSecret == "" {
		return errors.New("SECRET_KEY is required")
	}
	if c.RefreshSecret == "" {
		return errors.New("REFRESH_SECRET_KEY is required; falling back to SECRET_KEY is not supported")
	}
	if c.RefreshSecret == c.AccessSecret {
		return errors.New("REFRESH_SECRET_KEY must differ from SECRET_KEY")
	}
	if c.StorageBackend != "minio" && c.StorageBackend != "s3" {
		return fmt.Errorf("unknown STORAGE_BACKEND %q (want minio or s3)", c.StorageBackend)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
