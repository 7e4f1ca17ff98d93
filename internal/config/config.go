package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultHTTPPort         = "8080"
	defaultMetricsPort      = "9090"
	defaultTemporalAddress  = "localhost:7233"
	defaultTemporalNS       = "default"
	defaultTaskQueue        = "loan-underwriting-task-queue"
	defaultWorkflowIDPrefix = "loan"
	defaultProviderBaseURL  = "http://localhost:8090"
	defaultProviderTimeout  = 10
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultOpenAITimeout    = 30
	defaultMinioEndpoint    = "localhost:9000"
	defaultArchiveBucket    = "underwriting-records"
	defaultIntakeBucket     = "loan-applications"
	defaultCacheTTL         = 900
	defaultActivityCeiling  = 15
)

type Config struct {
	HTTPPort    string
	MetricsPort string
	PostgresDSN string

	TemporalAddress   string
	TemporalNamespace string
	TemporalTaskQueue string
	WorkflowIDPrefix  string
	ActivityCeiling   time.Duration

	ProviderBaseURL string
	ProviderTimeout time.Duration

	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAITimeoutSec int
	OpenAIMaxRetry   int

	MinioEndpoint      string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioArchiveBucket string
	MinioIntakeBucket  string
	MinioUseSSL        bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	LogLevel  string
	LogFormat string

	AWSRegion    string
	NotifySender string
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	loadEnvFile()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := Config{
		HTTPPort:    v.GetString("HTTP_PORT"),
		MetricsPort: v.GetString("METRICS_PORT"),
		PostgresDSN: v.GetString("POSTGRES_DSN"),

		TemporalAddress:   v.GetString("TEMPORAL_ADDRESS"),
		TemporalNamespace: v.GetString("TEMPORAL_NAMESPACE"),
		TemporalTaskQueue: v.GetString("TEMPORAL_TASK_QUEUE"),
		WorkflowIDPrefix:  v.GetString("WORKFLOW_ID_PREFIX"),
		ActivityCeiling:   time.Duration(v.GetInt("ACTIVITY_CEILING_MIN")) * time.Minute,

		ProviderBaseURL: v.GetString("PROVIDER_BASE_URL"),
		ProviderTimeout: time.Duration(v.GetInt("PROVIDER_TIMEOUT_SEC")) * time.Second,

		OpenAIAPIKey:     v.GetString("OPENAI_API_KEY"),
		OpenAIModel:      v.GetString("OPENAI_MODEL"),
		OpenAITimeoutSec: v.GetInt("OPENAI_TIMEOUT_SEC"),
		OpenAIMaxRetry:   v.GetInt("OPENAI_MAX_RETRY"),

		MinioEndpoint:      v.GetString("MINIO_ENDPOINT"),
		MinioAccessKey:     v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey:     v.GetString("MINIO_SECRET_KEY"),
		MinioArchiveBucket: v.GetString("MINIO_ARCHIVE_BUCKET"),
		MinioIntakeBucket:  v.GetString("MINIO_INTAKE_BUCKET"),
		MinioUseSSL:        v.GetBool("MINIO_USE_SSL"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		CacheTTL:      time.Duration(v.GetInt("PROVIDER_CACHE_TTL_SEC")) * time.Second,

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		AWSRegion:    v.GetString("AWS_REGION"),
		NotifySender: v.GetString("NOTIFY_SENDER"),
	}

	if cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("POSTGRES_DSN is required")
	}
	if cfg.ActivityCeiling <= 0 {
		return Config{}, fmt.Errorf("ACTIVITY_CEILING_MIN must be positive")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", defaultHTTPPort)
	v.SetDefault("METRICS_PORT", defaultMetricsPort)
	v.SetDefault("TEMPORAL_ADDRESS", defaultTemporalAddress)
	v.SetDefault("TEMPORAL_NAMESPACE", defaultTemporalNS)
	v.SetDefault("TEMPORAL_TASK_QUEUE", defaultTaskQueue)
	v.SetDefault("WORKFLOW_ID_PREFIX", defaultWorkflowIDPrefix)
	v.SetDefault("ACTIVITY_CEILING_MIN", defaultActivityCeiling)
	v.SetDefault("PROVIDER_BASE_URL", defaultProviderBaseURL)
	v.SetDefault("PROVIDER_TIMEOUT_SEC", defaultProviderTimeout)
	v.SetDefault("OPENAI_MODEL", defaultOpenAIModel)
	v.SetDefault("OPENAI_TIMEOUT_SEC", defaultOpenAITimeout)
	v.SetDefault("OPENAI_MAX_RETRY", 1)
	v.SetDefault("MINIO_ENDPOINT", defaultMinioEndpoint)
	v.SetDefault("MINIO_ARCHIVE_BUCKET", defaultArchiveBucket)
	v.SetDefault("MINIO_INTAKE_BUCKET", defaultIntakeBucket)
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PROVIDER_CACHE_TTL_SEC", defaultCacheTTL)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("AWS_REGION", "us-east-1")

	// Keys without a default still need binding so AutomaticEnv sees them.
	for _, key := range []string{
		"POSTGRES_DSN", "OPENAI_API_KEY", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY",
		"REDIS_ADDR", "REDIS_PASSWORD", "NOTIFY_SENDER",
	} {
		_ = v.BindEnv(key)
	}
}

// loadEnvFile loads the first .env found walking up from the working
// directory. Variables already set in the environment win.
func loadEnvFile() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
