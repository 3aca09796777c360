// Package config loads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every environment-tunable knob the orchestrator needs.
type Config struct {
	Port     string
	LogLevel string
	LogPretty bool

	// DatabaseDSN configures the run registry. Empty means the in-memory
	// registry is used instead of Postgres.
	DatabaseDSN string

	// ArtifactLocalDir is the local-disk fallback root for the artifact store.
	ArtifactLocalDir string
	// ArtifactRemoteBaseURL, if set, is the remote object store endpoint
	// the artifact store tries before falling back to local disk.
	ArtifactRemoteBaseURL string

	// ComputeBaseURL is the base URL of the remote compute backend that
	// serves model-build, depth-render, and image-generation requests.
	ComputeBaseURL string
	ComputeTimeout time.Duration

	// OpenAIAPIKey is the default fallback key for the optional prompt
	// enrichment step; per-run input can override it.
	OpenAIAPIKey string

	// MaxParallelSeats bounds how many seats are processed concurrently
	// within a single fan-out batch.
	MaxParallelSeats int
}

// Load builds a Config from environment variables, applying defaults
// matching a local, single-process development setup.
func Load() *Config {
	return &Config{
		Port:                  getEnv("PORT", "8080"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogPretty:             getBool("LOG_PRETTY", true),
		DatabaseDSN:           getEnv("DATABASE_DSN", ""),
		ArtifactLocalDir:      getEnv("ARTIFACT_LOCAL_DIR", "./data/artifacts"),
		ArtifactRemoteBaseURL: getEnv("ARTIFACT_REMOTE_BASE_URL", ""),
		ComputeBaseURL:        getEnv("COMPUTE_BASE_URL", "http://localhost:9090"),
		ComputeTimeout:        getDuration("COMPUTE_TIMEOUT", 5*time.Minute),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		MaxParallelSeats:      getInt("MAX_PARALLEL_SEATS", 8),
	}
}

func (c *Config) GetPortInt() int {
	p, _ := strconv.Atoi(c.Port)
	return p
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
