package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// DatabaseConfig holds metadata database connection settings.
// Driver selects the backend: "sqlite" uses Path, "postgres" uses the host/port fields.
type DatabaseConfig struct {
	Driver             string `env:"DB_DRIVER" env-default:"sqlite"`
	Path               string `env:"DB_PATH" env-default:"./database/database.db"`
	Host               string `env:"DB_HOST"`
	Port               string `env:"DB_PORT" env-default:"5432"`
	User               string `env:"DB_USER"`
	Password           string `env:"DB_PASSWORD"`
	Name               string `env:"DB_NAME"`
	SSLMode            string `env:"DB_SSLMODE" env-default:"disable"`
	MaxOpenConns       int    `env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns       int    `env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetimeSec int    `env:"DB_CONN_MAX_LIFETIME_SEC" env-default:"300"`
}

// StorageConfig selects the blob backend. Root is the upload directory for the fs driver.
type StorageConfig struct {
	Driver string `env:"STORAGE_DRIVER" env-default:"fs"`
	Root   string `env:"STORAGE_ROOT" env-default:"./uploads"`
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET"`
	UseSSL    bool   `env:"MINIO_USE_SSL" env-default:"false"`
}

// UploadConfig is the intake policy. AllowedTypes entries have the form "mime:ext".
type UploadConfig struct {
	MaxBytes      int64    `env:"UPLOAD_MAX_BYTES" env-default:"10485760"`
	AllowedTypes  []string `env:"UPLOAD_ALLOWED_TYPES" env-default:"application/pdf:.pdf" env-separator:","`
	VerifyContent bool     `env:"UPLOAD_VERIFY_CONTENT" env-default:"true"`
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost  string `env:"APP_HOST"`
	Port     string `env:"PORT" env-default:"8080"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	Database DatabaseConfig
	Storage  StorageConfig
	MinIO    MinIOConfig
	Upload   UploadConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() (*AppConfig, error) {
	var cfg AppConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if cfg.Upload.MaxBytes <= 0 {
		return nil, fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", cfg.Upload.MaxBytes)
	}
	return &cfg, nil
}
