package config

import (
	"os"
	"strconv"
)

// FromEnv overlays DP1_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("DP1_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DP1_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("DP1_QUEUE_NAME"); v != "" {
		cfg.Queue.Name = v
	}
	if v := os.Getenv("DP1_QUEUE_POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Queue.PollIntervalMs = n
		}
	}
	if v := os.Getenv("DP1_QUEUE_FETCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Queue.FetchLimit = n
		}
	}
	if v := os.Getenv("DP1_QUEUE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Queue.MaxAttempts = n
		}
	}
	if v := os.Getenv("DP1_QUEUE_DISPATCH_URL"); v != "" {
		cfg.Queue.DispatchURL = v
	}
	if v := os.Getenv("DP1_QUEUE_DISPATCH_TOKEN"); v != "" {
		cfg.Queue.DispatchToken = v
	}
}
