package config

import (
	"encoding/json"
	"errors"
	"os"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// DataDir is the storage directory, or ":memory:" for an in-memory store.
	DataDir  string      `json:"dataDir"`
	HTTPAddr string      `json:"httpAddr"`
	Queue    QueueConfig `json:"queue"`
}

// QueueConfig captures write-queue and processor tunables.
type QueueConfig struct {
	// Name is the logical queue name; multiple named queues may share the
	// underlying table.
	Name string `json:"name"`
	// PollIntervalMs is the processor tick interval.
	PollIntervalMs int `json:"pollIntervalMs"`
	// FetchLimit bounds entries fetched per tick.
	FetchLimit int `json:"fetchLimit"`
	// MaxAttempts is the retry ceiling before dead-lettering.
	MaxAttempts int `json:"maxAttempts"`
	// DispatchURL is the processing endpoint pending entries are POSTed to.
	DispatchURL string `json:"dispatchUrl"`
	// DispatchToken, when set, is sent as a bearer credential.
	DispatchToken string `json:"dispatchToken"`
}

// Default returns built-in defaults. DataDir is left empty so callers can
// distinguish "unset" from an explicit path; construction fails fast without one.
func Default() Config {
	return Config{
		HTTPAddr: ":8787",
		Queue: QueueConfig{
			Name:           "feed-writes",
			PollIntervalMs: 1000,
			FetchLimit:     10,
			MaxAttempts:    3,
		},
	}
}

// Validate checks settings that must be present before the runtime opens.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: dataDir is required")
	}
	if c.Queue.Name == "" {
		return errors.New("config: queue.name is required")
	}
	return nil
}

// Load reads configuration from a JSON file. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
