package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the reelforge server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Compute  ComputeConfig
	Jobs     JobsConfig
	Media    MediaConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// ComputeConfig configures the external AI compute service. Mode "simulated"
// runs moment detection in-process, for local development without the remote
// service.
type ComputeConfig struct {
	Mode          string
	BaseURL       string
	HealthTimeout time.Duration
	StepTimeout   time.Duration
}

// JobsConfig configures the job engine and the client-side monitor defaults.
type JobsConfig struct {
	PollInterval    time.Duration
	SleepRetryAfter time.Duration
	StatusCacheTTL  time.Duration
}

// MediaConfig configures readiness probing against the media CDN.
type MediaConfig struct {
	CDNBaseURL     string
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

var validComputeModes = map[string]bool{
	"http":      true,
	"simulated": true,
}

// Load reads configuration from environment variables and returns a validated
// Config. A .env file in the working directory is loaded first if present, so
// local development doesn't need exported variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("REELFORGE_PORT", 8080),
			Env:  envString("REELFORGE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Compute: ComputeConfig{
			Mode:          envString("COMPUTE_MODE", "http"),
			BaseURL:       os.Getenv("COMPUTE_BASE_URL"),
			HealthTimeout: envDuration("COMPUTE_HEALTH_TIMEOUT", 10*time.Second),
			StepTimeout:   envDuration("COMPUTE_STEP_TIMEOUT", 2*time.Minute),
		},
		Jobs: JobsConfig{
			PollInterval:    envDuration("JOBS_POLL_INTERVAL", 2*time.Second),
			SleepRetryAfter: envDuration("JOBS_SLEEP_RETRY_AFTER", 30*time.Second),
			StatusCacheTTL:  envDuration("JOBS_STATUS_CACHE_TTL", 30*time.Minute),
		},
		Media: MediaConfig{
			CDNBaseURL:     os.Getenv("MEDIA_CDN_BASE_URL"),
			MaxAttempts:    envInt("MEDIA_READINESS_MAX_ATTEMPTS", 10),
			InitialDelay:   envDuration("MEDIA_READINESS_INITIAL_DELAY", 2*time.Second),
			MaxDelay:       envDuration("MEDIA_READINESS_MAX_DELAY", 30*time.Second),
			AttemptTimeout: envDuration("MEDIA_READINESS_ATTEMPT_TIMEOUT", 5*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !validComputeModes[c.Compute.Mode] {
		return fmt.Errorf("COMPUTE_MODE must be one of http, simulated; got %q", c.Compute.Mode)
	}
	if c.Compute.Mode == "http" {
		if c.Compute.BaseURL == "" {
			return fmt.Errorf("COMPUTE_BASE_URL is required when COMPUTE_MODE is http")
		}
		if !strings.HasPrefix(c.Compute.BaseURL, "http://") && !strings.HasPrefix(c.Compute.BaseURL, "https://") {
			return fmt.Errorf("COMPUTE_BASE_URL must start with http:// or https://, got %q", c.Compute.BaseURL)
		}
	}

	if c.Media.CDNBaseURL != "" &&
		!strings.HasPrefix(c.Media.CDNBaseURL, "http://") && !strings.HasPrefix(c.Media.CDNBaseURL, "https://") {
		return fmt.Errorf("MEDIA_CDN_BASE_URL must start with http:// or https://, got %q", c.Media.CDNBaseURL)
	}

	if c.Jobs.PollInterval <= 0 {
		return fmt.Errorf("JOBS_POLL_INTERVAL must be positive")
	}
	if c.Media.MaxAttempts <= 0 {
		return fmt.Errorf("MEDIA_READINESS_MAX_ATTEMPTS must be positive")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
