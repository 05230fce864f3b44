package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	PendingQueue    string
	ProcessingQueue string
	FailedQueue     string

	WorkerCount       int
	MaxTasksPerWorker int

	MaxRetries   int
	RetryBackoff time.Duration
	HardBudget   time.Duration
	SoftBudget   time.Duration

	GotenbergURL  string
	RenderTimeout time.Duration
	PdftoppmPath  string
	Pdf2DocxPath  string
	RasterDPI     int
	ImageQuality  int

	StorageType string // "local" or "s3"
	TempDir     string
	InputDir    string
	OutputDir   string

	S3Bucket       string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3Endpoint     string
	S3UsePathStyle bool

	DatabaseURL string

	ResultExpiry     time.Duration
	RetentionWindow  time.Duration
	SweepInterval    time.Duration
	HeartbeatPeriod  time.Duration
	RecoveryInterval time.Duration

	RateLimitPerHour int
}

func Load() *Config {
	redisPrefix := getEnv("REDIS_PREFIX", "")
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbName := getEnv("DB_DATABASE", "fileconverter")
	dbUser := getEnv("DB_USERNAME", "fileconverter")
	dbPassword := getEnv("DB_PASSWORD", "")
	dbSSLMode := getEnv("DB_SSLMODE", "disable")

	// lib/pq supports "key=value" connection strings and this avoids
	// URI escaping issues for special characters in passwords.
	var dbURL string
	if dbPassword != "" {
		dbURL = fmt.Sprintf(
			"host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
			dbHost, dbPort, dbName, dbUser, dbPassword, dbSSLMode,
		)
	} else {
		dbURL = fmt.Sprintf(
			"host=%s port=%s dbname=%s user=%s sslmode=%s",
			dbHost, dbPort, dbName, dbUser, dbSSLMode,
		)
	}

	tempDir := getEnv("TEMP_DIR", "/tmp/file_converter")

	return &Config{
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_CONVERSION_DB", 0),
		RedisPrefix:   redisPrefix,

		PendingQueue:    applyPrefix(getEnv("CONVERSION_PENDING_QUEUE", "conversion:pending"), redisPrefix),
		ProcessingQueue: applyPrefix(getEnv("CONVERSION_PROCESSING_QUEUE", "conversion:processing"), redisPrefix),
		FailedQueue:     applyPrefix(getEnv("CONVERSION_FAILED_QUEUE", "conversion:failed"), redisPrefix),

		WorkerCount:       getEnvInt("CONVERSION_WORKER_COUNT", 3),
		MaxTasksPerWorker: getEnvInt("CONVERSION_MAX_TASKS_PER_WORKER", 100),

		MaxRetries:   getEnvInt("CONVERSION_MAX_RETRIES", 3),
		RetryBackoff: getEnvDuration("CONVERSION_RETRY_BACKOFF", 60*time.Second),
		HardBudget:   getEnvDuration("CONVERSION_HARD_BUDGET", 600*time.Second),
		SoftBudget:   getEnvDuration("CONVERSION_SOFT_BUDGET", 540*time.Second),

		GotenbergURL:  getEnv("GOTENBERG_URL", "http://gotenberg:3000"),
		RenderTimeout: getEnvDuration("RENDER_TIMEOUT", 60*time.Second),
		PdftoppmPath:  getEnv("PDFTOPPM_PATH", "pdftoppm"),
		Pdf2DocxPath:  getEnv("PDF2DOCX_PATH", "pdf2docx"),
		RasterDPI:     getEnvInt("RASTER_DPI", 200),
		ImageQuality:  getEnvInt("IMAGE_QUALITY", 95),

		StorageType: getEnv("STORAGE_TYPE", "local"),
		TempDir:     tempDir,
		InputDir:    getEnv("INPUT_DIR", tempDir+"/input"),
		OutputDir:   getEnv("OUTPUT_DIR", tempDir+"/output"),

		S3Bucket:       getEnv("AWS_BUCKET", "fileconverter"),
		S3Region:       getEnvWithFallback("S3_REGION", "AWS_DEFAULT_REGION", "us-east-1"),
		S3AccessKey:    getEnvWithFallback("S3_KEY", "AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:    getEnvWithFallback("S3_SECRET", "AWS_SECRET_ACCESS_KEY", ""),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3UsePathStyle: getEnvBool("S3_USE_PATH_STYLE_ENDPOINT", false),

		DatabaseURL: dbURL,

		ResultExpiry:     getEnvDuration("RESULT_EXPIRY", 24*time.Hour),
		RetentionWindow:  getEnvDuration("FILE_RETENTION_WINDOW", 60*time.Minute),
		SweepInterval:    getEnvDuration("RETENTION_SWEEP_INTERVAL", 30*time.Minute),
		HeartbeatPeriod:  getEnvDuration("HEARTBEAT_PERIOD", 60*time.Second),
		RecoveryInterval: getEnvDuration("RECOVERY_INTERVAL", 5*time.Minute),

		RateLimitPerHour: getEnvInt("RATE_LIMIT_PER_HOUR", 50),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvWithFallback(primaryKey, secondaryKey, fallback string) string {
	if value := os.Getenv(primaryKey); value != "" {
		return value
	}
	if value := os.Getenv(secondaryKey); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvDuration accepts either a Go duration string ("90s", "2h")
// or a bare integer interpreted as seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func applyPrefix(key string, prefix string) string {
	if prefix == "" {
		return key
	}
	return prefix + key
}
