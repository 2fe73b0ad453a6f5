package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	ServiceName string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	BatchServiceURL string
	UserServiceURL  string
	GatewayTimeout  time.Duration

	BreakerFailureRate     float64
	BreakerMinimumRequests uint32
	BreakerWindow          time.Duration
	BreakerOpenTimeout     time.Duration
	BreakerHalfOpenCalls   uint32

	RetryMaxAttempts     int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMaxElapsed      time.Duration

	StudentCacheTTL time.Duration
	FanOutLimit     int

	SubmitRateLimit  int
	SubmitRateWindow time.Duration

	NATSURL          string
	NATSSubject      string
	RabbitMQURL      string
	RabbitMQExchange string
	RabbitMQRoute    string

	StorageDriver          string
	StorageLocalRoot       string
	MinIOEndpoint          string
	MinIOAccessKey         string
	MinIOSecretKey         string
	MinIOBucket            string
	MinIOUseSSL            bool
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	UploadMaxBytes         int64
	UploadExtensions       []string
}

// Storage drivers understood by Load.
const (
	StorageLocal      = "local"
	StorageMinIO      = "minio"
	StorageCloudinary = "cloudinary"
)

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Assignment API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("service.name", "assignment-service")
	v.SetDefault("gateway.timeout", "3s")
	v.SetDefault("breaker.failure_rate", 50)
	v.SetDefault("breaker.minimum_requests", 5)
	v.SetDefault("breaker.window", "30s")
	v.SetDefault("breaker.open_timeout", "15s")
	v.SetDefault("breaker.half_open_calls", 1)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_interval", "100ms")
	v.SetDefault("retry.max_interval", "1s")
	v.SetDefault("retry.max_elapsed", "5s")
	v.SetDefault("cache.student_ttl", "10m")
	v.SetDefault("fanout.limit", 8)
	v.SetDefault("submit.rate_limit", 10)
	v.SetDefault("submit.rate_window", "1m")
	v.SetDefault("nats.subject", "notifications.assignment")
	v.SetDefault("rabbitmq.exchange", "notifications")
	v.SetDefault("rabbitmq.routing_key", "assignment")
	v.SetDefault("storage.driver", StorageLocal)
	v.SetDefault("storage.local_root", "./data/submissions")
	v.SetDefault("minio.bucket", "submissions")
	v.SetDefault("cloudinary.folder", "gema/submissions")
	v.SetDefault("upload.max_bytes", 10<<20)
	v.SetDefault("upload.extensions", "pdf,doc,docx,zip")

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		ServiceName:            v.GetString("service.name"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		BatchServiceURL:        v.GetString("batch_service.url"),
		UserServiceURL:         v.GetString("user_service.url"),
		BreakerFailureRate:     v.GetFloat64("breaker.failure_rate"),
		BreakerMinimumRequests: v.GetUint32("breaker.minimum_requests"),
		BreakerHalfOpenCalls:   v.GetUint32("breaker.half_open_calls"),
		RetryMaxAttempts:       v.GetInt("retry.max_attempts"),
		FanOutLimit:            v.GetInt("fanout.limit"),
		SubmitRateLimit:        v.GetInt("submit.rate_limit"),
		NATSURL:                v.GetString("nats.url"),
		NATSSubject:            v.GetString("nats.subject"),
		RabbitMQURL:            v.GetString("rabbitmq.url"),
		RabbitMQExchange:       v.GetString("rabbitmq.exchange"),
		RabbitMQRoute:          v.GetString("rabbitmq.routing_key"),
		StorageDriver:          strings.ToLower(v.GetString("storage.driver")),
		StorageLocalRoot:       v.GetString("storage.local_root"),
		MinIOEndpoint:          v.GetString("minio.endpoint"),
		MinIOAccessKey:         v.GetString("minio.access_key"),
		MinIOSecretKey:         v.GetString("minio.secret_key"),
		MinIOBucket:            v.GetString("minio.bucket"),
		MinIOUseSSL:            v.GetBool("minio.use_ssl"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadMaxBytes:         v.GetInt64("upload.max_bytes"),
		UploadExtensions:       splitList(v.GetString("upload.extensions")),
	}

	durations := map[string]*time.Duration{
		"gateway.timeout":        &cfg.GatewayTimeout,
		"breaker.window":         &cfg.BreakerWindow,
		"breaker.open_timeout":   &cfg.BreakerOpenTimeout,
		"retry.initial_interval": &cfg.RetryInitialInterval,
		"retry.max_interval":     &cfg.RetryMaxInterval,
		"retry.max_elapsed":      &cfg.RetryMaxElapsed,
		"cache.student_ttl":      &cfg.StudentCacheTTL,
		"submit.rate_window":     &cfg.SubmitRateWindow,
	}
	for key, target := range durations {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		*target = parsed
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.BatchServiceURL == "" || cfg.UserServiceURL == "" {
		return Config{}, fmt.Errorf("batch and user service urls must be provided")
	}

	switch cfg.StorageDriver {
	case StorageLocal, StorageMinIO, StorageCloudinary:
	default:
		return Config{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.FanOutLimit <= 0 {
		cfg.FanOutLimit = 8
	}
	if cfg.RetryMaxAttempts <= 0 {
		cfg.RetryMaxAttempts = 1
	}

	return cfg, nil
}

func splitList(input string) []string {
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.ToLower(strings.TrimSpace(part))
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
