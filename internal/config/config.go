package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	ApplicationName    string
	ConnectTimeoutSec  int
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PresignExpiry time.Duration
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret     string
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
}

// CacheConfig selects the authenticated-user cache. An empty RedisURL keeps it in-process.
type CacheConfig struct {
	RedisURL  string
	PoolSize  int
	KeyPrefix string
	TTL       time.Duration
	LRUSize   int
}

// InferenceConfig selects and tunes the detection provider.
type InferenceConfig struct {
	// Mode is "simulated" (default) or "remote".
	Mode                   string
	RemoteURL              string
	Timeout                time.Duration
	TumourDelay            time.Duration
	BiomarkerDelay         time.Duration
	Seed                   int64
	BreakerMaxRequests     int
	BreakerInterval        time.Duration
	BreakerOpenTimeout     time.Duration
	BreakerFailureRatio    float64
	BreakerMinimumRequests int
	// StaleAfter is how long a Processing claim may go untouched before another attempt takes it over.
	StaleAfter time.Duration
}

// UploadConfig bounds MRI uploads.
type UploadConfig struct {
	MaxFileSize      int64
	AllowedMimeTypes []string
}

// RateLimitConfig throttles the analysis endpoints.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// TracingConfig mirrors the standard OTEL_* variables the exporter honours.
type TracingConfig struct {
	Disabled    bool
	ServiceName string
	Environment string
	// Protocol is "grpc" or "http/protobuf".
	Protocol   string
	Endpoint   string
	Sampler    string
	SamplerArg float64
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost   string
	Port      string
	Timezone  string
	LogLevel  string
	Database  DatabaseConfig
	MinIO     MinIOConfig
	Auth      AuthConfig
	Cache     CacheConfig
	Inference InferenceConfig
	Upload    UploadConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig
}

// Location resolves the configured timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:  getEnv("APP_HOST", "localhost:8080"),
		Port:     getEnv("PORT", "8080"),
		Timezone: getEnv("APP_TIMEZONE", "UTC"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			ApplicationName:    getEnv("DB_APPLICATION_NAME", "tumourscan"),
			ConnectTimeoutSec:  getEnvInt("DB_CONNECT_TIMEOUT_SEC", 5),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:      getEnv("MINIO_ENDPOINT", ""),
			AccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey:     getEnv("MINIO_SECRET_KEY", ""),
			Bucket:        getEnv("MINIO_BUCKET", "mri-images"),
			UseSSL:        getEnvBool("MINIO_USE_SSL", false),
			PresignExpiry: getEnvDuration("MINIO_PRESIGN_EXPIRY", time.Hour),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			Issuer:        getEnv("JWT_ISSUER", "tumourscan"),
			Audience:      getEnv("JWT_AUDIENCE", "tumourscan-api"),
			TokenTTL:      getEnvDuration("JWT_EXPIRE", 24*time.Hour),
		},
		Cache: CacheConfig{
			RedisURL:  getEnv("REDIS_URL", ""),
			PoolSize:  getEnvInt("REDIS_POOL_SIZE", 10),
			KeyPrefix: getEnv("CACHE_KEY_PREFIX", "tumourscan:"),
			TTL:       getEnvDuration("AUTH_USER_CACHE_TTL", time.Minute),
			LRUSize:   getEnvInt("AUTH_USER_CACHE_SIZE", 256),
		},
		Inference: InferenceConfig{
			Mode:                   getEnv("INFERENCE_MODE", "simulated"),
			RemoteURL:              getEnv("INFERENCE_URL", ""),
			Timeout:                getEnvDuration("INFERENCE_TIMEOUT", 10*time.Second),
			TumourDelay:            getEnvDuration("INFERENCE_TUMOUR_DELAY", 2*time.Second),
			BiomarkerDelay:         getEnvDuration("INFERENCE_BIOMARKER_DELAY", 1500*time.Millisecond),
			Seed:                   getEnvInt64("INFERENCE_SEED", 0),
			BreakerMaxRequests:     getEnvInt("INFERENCE_BREAKER_MAX_REQUESTS", 5),
			BreakerInterval:        getEnvDuration("INFERENCE_BREAKER_INTERVAL", 30*time.Second),
			BreakerOpenTimeout:     getEnvDuration("INFERENCE_BREAKER_TIMEOUT", 60*time.Second),
			BreakerFailureRatio:    getEnvFloat("INFERENCE_BREAKER_FAILURE_RATIO", 0.6),
			BreakerMinimumRequests: getEnvInt("INFERENCE_BREAKER_MIN_REQUESTS", 3),
			StaleAfter:             getEnvDuration("INFERENCE_STALE_AFTER", 5*time.Minute),
		},
		Upload: UploadConfig{
			MaxFileSize:      getEnvInt64("MAX_FILE_SIZE", 50*1024*1024),
			AllowedMimeTypes: getEnvList("ALLOWED_FILE_TYPES", []string{"image/jpeg", "image/png", "application/dicom"}),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("ANALYSIS_RATE_LIMIT_RPS", 5),
			Burst:             getEnvInt("ANALYSIS_RATE_LIMIT_BURST", 10),
		},
		Tracing: TracingConfig{
			Disabled:    getEnvBool("OTEL_SDK_DISABLED", false),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "tumourscan"),
			Environment: getEnv("APP_ENV", "development"),
			Protocol:    getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "")),
			Sampler:     getEnv("OTEL_TRACES_SAMPLER", "parentbased_traceidratio"),
			SamplerArg:  getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

// getEnvDuration accepts Go duration strings ("1500ms", "2s").
func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
