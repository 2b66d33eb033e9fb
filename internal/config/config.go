package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration for the server and its worker pool.
type Config struct {
	Env                string
	HTTPPort           string
	MetricsAddr        string
	APIKey             string
	TempDir            string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	QueueName          string
	WorkerCount        int
	WorkerPollInterval time.Duration
	JobTimeout         time.Duration
	MaxUploadBytes     int64
	RateLimitCapacity  int
	RateLimitRefill    float64
	S3Bucket           string
	S3Region           string
	S3Endpoint         string
	S3PathStyle        bool
}

// Load reads configuration from the environment, consulting a .env file
// first if one is present. APIKey has no default: callers must refuse to
// serve without it.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:                getEnv("APP_ENV", "dev"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		MetricsAddr:        getEnv("METRICS_ADDR", ":9090"),
		APIKey:             os.Getenv("API_KEY"),
		TempDir:            getEnv("TEMP_DIR", os.TempDir()),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		QueueName:          getEnv("QUEUE_NAME", "jobs:ready"),
		WorkerCount:        getEnvInt("WORKER_COUNT", 4),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", time.Second),
		JobTimeout:         getEnvDuration("JOB_TIMEOUT", 10*time.Minute),
		MaxUploadBytes:     getEnvInt64("MAX_UPLOAD_BYTES", 256*1024*1024),
		RateLimitCapacity:  getEnvInt("RATE_LIMIT_CAPACITY", 50),
		RateLimitRefill:    getEnvFloat("RATE_LIMIT_REFILL_PER_SEC", 20),
		S3Bucket:           getEnv("RESULT_S3_BUCKET", ""),
		S3Region:           getEnv("RESULT_S3_REGION", "us-east-1"),
		S3Endpoint:         getEnv("RESULT_S3_ENDPOINT", ""),
		S3PathStyle:        getEnvBool("RESULT_S3_PATH_STYLE", false),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
