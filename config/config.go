package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	BlobBackendB2     = "b2"
	BlobBackendMinio  = "minio"
	BlobBackendMemory = "memory"

	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Store selects the persistence gateway: "mongo" or "memory".
	Store        string
	MongoURI     string
	DatabaseName string

	JWTSecret     string
	JWTExpiration time.Duration

	BlobBackend string

	B2ApplicationKeyID string
	B2ApplicationKey   string
	B2BucketName       string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// RedisURL enables the shared entry lock. Empty means in-process locks.
	RedisURL    string
	LockTimeout time.Duration

	MaxFileSize    int64
	RequestTimeout time.Duration

	AllowedOrigins []string
}

// LoadEnvFiles loads the first .env found in the usual locations. A missing
// file is not an error; the process environment is used as is.
func LoadEnvFiles(logger *zap.Logger) {
	pwd, err := os.Getwd()
	if err != nil {
		logger.Warn("could not get working directory", zap.Error(err))
		return
	}

	envPaths := []string{
		".env",
		"../.env",
		filepath.Join(pwd, ".env"),
		filepath.Join(filepath.Dir(pwd), ".env"),
	}

	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		absPath, _ := filepath.Abs(envPath)
		if err := godotenv.Load(envPath); err != nil {
			logger.Warn("failed to load .env", zap.String("path", absPath), zap.Error(err))
			continue
		}
		logger.Info("loaded environment file", zap.String("path", absPath))
		return
	}
	logger.Info("no .env file found, using system environment variables")
}

func LoadConfig() (*Config, error) {
	var errs []string
	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Store:        strings.ToLower(getEnv("STORE", StoreMongo)),
		MongoURI:     getEnvAny([]string{"MONGO_URI", "MONGODB_URI"}, "mongodb://localhost:27017"),
		DatabaseName: getEnv("DATABASE_NAME", "cloudbox"),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTExpiration: parseDuration("JWT_EXPIRATION", "24h", &errs),

		BlobBackend: strings.ToLower(getEnv("BLOB_BACKEND", BlobBackendB2)),

		B2ApplicationKeyID: getEnvAny([]string{"B2_APPLICATION_KEY_ID", "B2_KEY_ID", "BACKBLAZE_KEY_ID"}, ""),
		B2ApplicationKey:   getEnvAny([]string{"B2_APPLICATION_KEY", "B2_APP_KEY", "BACKBLAZE_APP_KEY"}, ""),
		B2BucketName:       getEnvAny([]string{"B2_BUCKET_NAME", "B2_BUCKET", "BACKBLAZE_BUCKET"}, ""),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "cloudbox"),
		MinioUseSSL:    parseBool("MINIO_USE_SSL", "false", &errs),

		RedisURL:    getEnv("REDIS_URL", ""),
		LockTimeout: parseDuration("LOCK_TIMEOUT", "10s", &errs),

		MaxFileSize:    parseInt64("MAX_FILE_SIZE", "104857600", &errs),
		RequestTimeout: parseDuration("REQUEST_TIMEOUT", "60s", &errs),

		AllowedOrigins: parseStringSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the settings required by the selected backends are
// present.
func (c *Config) Validate() error {
	var missing []string
	require := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	require("JWT_SECRET", c.JWTSecret)

	switch c.Store {
	case StoreMongo:
		require("MONGO_URI", c.MongoURI)
		require("DATABASE_NAME", c.DatabaseName)
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE %q", c.Store)
	}

	switch c.BlobBackend {
	case BlobBackendB2:
		require("B2_APPLICATION_KEY_ID", c.B2ApplicationKeyID)
		require("B2_APPLICATION_KEY", c.B2ApplicationKey)
		require("B2_BUCKET_NAME", c.B2BucketName)
	case BlobBackendMinio:
		require("MINIO_ENDPOINT", c.MinioEndpoint)
		require("MINIO_ACCESS_KEY", c.MinioAccessKey)
		require("MINIO_SECRET_KEY", c.MinioSecretKey)
		require("MINIO_BUCKET", c.MinioBucket)
	case BlobBackendMemory:
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	return nil
}

// LogFields describes the configuration with secrets masked.
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("port", c.Port),
		zap.String("env", c.Env),
		zap.String("store", c.Store),
		zap.String("database", c.DatabaseName),
		zap.String("mongo_uri", maskConnectionString(c.MongoURI)),
		zap.String("jwt_secret", maskSecret(c.JWTSecret)),
		zap.Duration("jwt_expiration", c.JWTExpiration),
		zap.String("blob_backend", c.BlobBackend),
		zap.String("b2_key_id", maskSecret(c.B2ApplicationKeyID)),
		zap.String("b2_bucket", c.B2BucketName),
		zap.String("minio_endpoint", c.MinioEndpoint),
		zap.String("minio_access_key", maskSecret(c.MinioAccessKey)),
		zap.String("redis_url", maskConnectionString(c.RedisURL)),
		zap.Int64("max_file_size", c.MaxFileSize),
		zap.Strings("allowed_origins", c.AllowedOrigins),
	}
}

func maskSecret(secret string) string {
	if secret == "" {
		return "[NOT SET]"
	}
	if len(secret) <= 8 {
		return "[HIDDEN]"
	}
	return secret[:4] + "***" + secret[len(secret)-4:]
}

func maskConnectionString(uri string) string {
	if uri == "" {
		return "[NOT SET]"
	}
	if strings.Contains(uri, "@") {
		parts := strings.Split(uri, "@")
		if len(parts) >= 2 {
			return "[CREDENTIALS_HIDDEN]@" + parts[len(parts)-1]
		}
	}
	return uri
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAny(keys []string, defaultValue string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return defaultValue
}

func parseInt64(key, defaultValue string, errs *[]string) int64 {
	s := getEnv(key, defaultValue)
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %q is not an integer", key, s))
	}
	return i
}

func parseDuration(key, defaultValue string, errs *[]string) time.Duration {
	s := getEnv(key, defaultValue)
	d, err := time.ParseDuration(s)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %q is not a duration", key, s))
	}
	return d
}

func parseBool(key, defaultValue string, errs *[]string) bool {
	s := getEnv(key, defaultValue)
	b, err := strconv.ParseBool(s)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %q is not a boolean", key, s))
	}
	return b
}

func CreateContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func parseStringSlice(s string) []string {
	if s == "" {
		return []string{}
	}

	parts := strings.Split(s, ",")
	var result []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
