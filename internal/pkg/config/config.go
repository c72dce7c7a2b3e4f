// internal/pkg/config/config.go
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Store backends
const (
	StoreHTTP = "http"
	StoreS3   = "s3"
)

// Mirror backends
const (
	MirrorFile  = "file"
	MirrorRedis = "redis"
)

// Config holds all application configuration
type Config struct {
	// Application
	App AppConfig

	// Remote document store
	Store StoreConfig

	// Local mirror
	Mirror MirrorConfig

	// Business defaults
	Business BusinessConfig

	// Asynq
	Asynq AsynqConfig

	// Security
	Security SecurityConfig

	// Server
	Server ServerConfig
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Version     string
	LogLevel    string
	LogFormat   string // json, text
	LogOutput   string // stdout, stderr, file:<path>
	Debug       bool
}

// StoreConfig holds the remote document store configuration
type StoreConfig struct {
	Backend        string // http, s3
	BaseURL        string // e.g. https://api.github.com/repos/<owner>/<repo>
	Token          string
	TokenSecret    string // AWS Secrets Manager secret holding the token
	TokenSecretKey string
	Branch         string
	CommitterName  string
	CommitterEmail string
	RequestRate    float64 // requests per second
	RequestBurst   int
	Timeout        time.Duration

	// S3
	Region          string
	Bucket          string
	Prefix          string
	Endpoint        string // For MinIO in development
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool // For MinIO compatibility
}

// MirrorConfig holds local mirror configuration
type MirrorConfig struct {
	Backend       string // file, redis
	Dir           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

// BusinessConfig holds defaults for the runtime settings blob
type BusinessConfig struct {
	ExchangeRate         decimal.Decimal
	UserLabel            string
	ArchiveRetentionDays int
	ArchiveSchedule      string // cron spec
	SweepSchedule        string // cron spec
}

// AsynqConfig holds Asynq configuration
type AsynqConfig struct {
	Enabled              bool // API queues maintenance work for cmd/worker
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	Concurrency          int
	Queues               map[string]int // queue name -> priority
	StrictPriority       bool
	RetryMax             int
	ShutdownTimeout      time.Duration
	HealthCheckInterval  time.Duration
	DelayedTaskCheckTime time.Duration
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimitRequests int
	RateLimitDuration time.Duration
	AllowedOrigins    []string
	SecureHeaders     bool
	RequestIDHeader   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	MaxUploadBytes  int64
	MaxBodyBytes    int64
	GracefulTimeout time.Duration
}

// Load loads configuration from environment variables and, when
// STOCKBOOK_CONFIG names one, a config file.
func Load(logger *slog.Logger) (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Load .env file in development
	if env == "development" || env == "local" {
		if err := godotenv.Load(); err != nil {
			logger.Warn("no .env file found, using environment variables",
				slog.String("error", err.Error()))
		} else {
			logger.Info(".env file loaded successfully")
		}
	}

	// Initialize viper
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetTypeByDefaultValue(true)

	if file := os.Getenv("STOCKBOOK_CONFIG"); file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
		logger.Info("config file loaded", slog.String("file", viper.ConfigFileUsed()))
	}

	// Set defaults
	setDefaults()

	rate, err := decimal.NewFromString(getEnv("EXCHANGE_RATE", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid EXCHANGE_RATE: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "stockbook"),
			Environment: env,
			Version:     getEnv("APP_VERSION", "dev"),
			LogLevel:    getEnv("LOG_LEVEL", "debug"),
			LogFormat:   getEnv("LOG_FORMAT", "json"),
			LogOutput:   getEnv("LOG_OUTPUT", "stdout"),
			Debug:       getBoolEnv("APP_DEBUG", env == "development"),
		},
		Store: StoreConfig{
			Backend:         getEnv("STORE_BACKEND", StoreHTTP),
			BaseURL:         strings.TrimSuffix(getEnv("STORE_BASE_URL", ""), "/"),
			Token:           getEnv("STORE_TOKEN", ""),
			TokenSecret:     getEnv("STORE_TOKEN_SECRET", ""),
			TokenSecretKey:  getEnv("STORE_TOKEN_SECRET_KEY", "STORE_TOKEN"),
			Branch:          getEnv("STORE_BRANCH", "main"),
			CommitterName:   getEnv("STORE_COMMITTER_NAME", "stockbook"),
			CommitterEmail:  getEnv("STORE_COMMITTER_EMAIL", "stockbook@localhost"),
			RequestRate:     getFloatEnv("STORE_REQUEST_RATE", 5),
			RequestBurst:    getIntEnv("STORE_REQUEST_BURST", 10),
			Timeout:         getDurationEnv("STORE_TIMEOUT", 15*time.Second),
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Bucket:          getEnv("AWS_S3_BUCKET", "stockbook"),
			Prefix:          getEnv("AWS_S3_PREFIX", ""),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getBoolEnv("AWS_S3_PATH_STYLE", env == "development"),
		},
		Mirror: MirrorConfig{
			Backend:       getEnv("MIRROR_BACKEND", MirrorFile),
			Dir:           getEnv("MIRROR_DIR", ".stockbook"),
			RedisAddr:     fmt.Sprintf("%s:%s", getEnv("REDIS_HOST", "localhost"), getEnv("REDIS_PORT", "6379")),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getIntEnv("MIRROR_REDIS_DB", 0),
			KeyPrefix:     getEnv("MIRROR_KEY_PREFIX", "stockbook"),
		},
		Business: BusinessConfig{
			ExchangeRate:         rate,
			UserLabel:            getEnv("USER_LABEL", "admin"),
			ArchiveRetentionDays: getIntEnv("ARCHIVE_RETENTION_DAYS", 90),
			ArchiveSchedule:      getEnv("ARCHIVE_SCHEDULE", "0 3 1 * *"),
			SweepSchedule:        getEnv("SWEEP_SCHEDULE", "30 3 * * 0"),
		},
		Asynq: AsynqConfig{
			Enabled:              getBoolEnv("ASYNQ_ENABLED", false),
			RedisAddr:            fmt.Sprintf("%s:%s", getEnv("REDIS_HOST", "localhost"), getEnv("REDIS_PORT", "6379")),
			RedisPassword:        getEnv("REDIS_PASSWORD", ""),
			RedisDB:              getIntEnv("ASYNQ_REDIS_DB", 1),
			Concurrency:          getIntEnv("ASYNQ_CONCURRENCY", 2),
			Queues:               parseQueues(getEnv("ASYNQ_QUEUES", "maintenance:3,default:1")),
			StrictPriority:       getBoolEnv("ASYNQ_STRICT_PRIORITY", false),
			RetryMax:             getIntEnv("ASYNQ_RETRY_MAX", 3),
			ShutdownTimeout:      getDurationEnv("ASYNQ_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthCheckInterval:  getDurationEnv("ASYNQ_HEALTH_CHECK_INTERVAL", 30*time.Second),
			DelayedTaskCheckTime: getDurationEnv("ASYNQ_DELAYED_TASK_CHECK", 5*time.Second),
		},
		Security: SecurityConfig{
			RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 100),
			RateLimitDuration: getDurationEnv("RATE_LIMIT_DURATION", time.Minute),
			AllowedOrigins:    getSliceEnv("ALLOWED_ORIGINS", []string{"*"}),
			SecureHeaders:     getBoolEnv("SECURE_HEADERS", env == "production"),
			RequestIDHeader:   getEnv("REQUEST_ID_HEADER", "X-Request-ID"),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "127.0.0.1"),
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
			MaxHeaderBytes:  getIntEnv("SERVER_MAX_HEADER_BYTES", 1<<20), // 1 MB
			MaxUploadBytes:  int64(getIntEnv("SERVER_MAX_UPLOAD_BYTES", 5<<20)),
			MaxBodyBytes:    int64(getIntEnv("SERVER_MAX_BODY_BYTES", 32<<20)),
			GracefulTimeout: getDurationEnv("SERVER_GRACEFUL_TIMEOUT", 30*time.Second),
		},
	}

	if cfg.Store.TokenSecret != "" && cfg.Store.Token == "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.Timeout)
		defer cancel()

		sm, err := NewAWSSecretsManager(ctx, cfg.Store.Region, cfg.Store.TokenSecret, logger)
		if err != nil {
			return nil, err
		}
		token, err := ResolveSecret(ctx, sm, cfg.Store.TokenSecretKey)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve store token: %w", err)
		}
		cfg.Store.Token = token
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := (&BasicValidator{}).Validate(c); err != nil {
		return err
	}
	if c.IsProduction() {
		return (&ProductionValidator{}).Validate(c)
	}
	return nil
}

// GetServerAddress returns the formatted server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// ArchiveRetention returns the archive cutoff age
func (c *Config) ArchiveRetention() time.Duration {
	return time.Duration(c.Business.ArchiveRetentionDays) * 24 * time.Hour
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "local"
}

// Helper functions

func setDefaults() {
	viper.SetDefault("APP_NAME", "stockbook")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("STORE_BACKEND", StoreHTTP)
	viper.SetDefault("MIRROR_BACKEND", MirrorFile)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if viper.InConfig(strings.ToLower(key)) {
		return viper.GetString(key)
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := getEnv(key, ""); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := getEnv(key, ""); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := getEnv(key, ""); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := getEnv(key, ""); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := getEnv(key, ""); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func parseQueues(queuesStr string) map[string]int {
	queues := make(map[string]int)
	pairs := strings.Split(queuesStr, ",")
	for _, pair := range pairs {
		parts := strings.Split(pair, ":")
		if len(parts) == 2 {
			name := strings.TrimSpace(parts[0])
			priority, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err == nil {
				queues[name] = priority
			}
		}
	}
	if len(queues) == 0 {
		queues["default"] = 1
	}
	return queues
}
