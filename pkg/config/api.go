package config

import "time"

// APIConfig holds runtime configuration for the deployment engine.
type APIConfig struct {
	Environment   string
	Addr          string
	DatabaseURL   string
	MigrationsDir string
	JWTSecret     string

	// Repository hosting service used by stack detection.
	RepoAPIBase   string
	RepoAPIToken  string
	DetectTimeout time.Duration

	// Pipeline execution.
	WorkerConcurrency   int
	DefaultRegion       string
	ProvisionTimeout    time.Duration
	ProvisionMaxRetries int
	ProvisionRetryBase  time.Duration
	StaleRunTTL         time.Duration
	JanitorInterval     time.Duration

	// Redis backing for the job queue and rate limiter. Empty addr means
	// in-process fallbacks.
	QueueRedisAddr     string
	QueueRedisPassword string
	QueueRedisDB       int
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:   GetString("APP_ENV", "development"),
		Addr:          GetString("API_ADDR", ":5000"),
		DatabaseURL:   GetString("DATABASE_URL", "postgres://launchdeck:launchdeck@db:5432/launchdeck?sslmode=disable"),
		MigrationsDir: GetString("DB_MIGRATIONS_DIR", "./db/migrations"),
		JWTSecret:     GetString("JWT_SECRET", "supersecuresecret"),

		RepoAPIBase:   GetString("REPO_API_BASE", "https://api.github.com"),
		RepoAPIToken:  GetString("REPO_API_TOKEN", ""),
		DetectTimeout: time.Duration(GetInt("DETECT_TIMEOUT_SECONDS", 10)) * time.Second,

		WorkerConcurrency:   GetInt("PIPELINE_WORKERS", 4),
		DefaultRegion:       GetString("DEFAULT_REGION", "us-east-1"),
		ProvisionTimeout:    time.Duration(GetInt("PROVISION_TIMEOUT_SECONDS", 120)) * time.Second,
		ProvisionMaxRetries: GetInt("PROVISION_MAX_RETRIES", 3),
		ProvisionRetryBase:  time.Duration(GetInt("PROVISION_RETRY_BASE_MS", 500)) * time.Millisecond,
		StaleRunTTL:         time.Duration(GetInt("STALE_RUN_TTL_SECONDS", 900)) * time.Second,
		JanitorInterval:     time.Duration(GetInt("JANITOR_INTERVAL_SECONDS", 60)) * time.Second,

		QueueRedisAddr:     GetString("QUEUE_REDIS_ADDR", ""),
		QueueRedisPassword: GetString("QUEUE_REDIS_PASSWORD", ""),
		QueueRedisDB:       GetInt("QUEUE_REDIS_DB", 0),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}
