package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.feira/config.toml.
type Config struct {
	APIURL         string `toml:"api_url"`
	DefaultProfile string `toml:"default_profile"`
	Poll           Poll   `toml:"poll"`
}

// Poll holds the polling cadence tuning. All values are in seconds.
type Poll struct {
	ListIntervalSecs   int `toml:"list_interval_secs"`
	ThreadIntervalSecs int `toml:"thread_interval_secs"`
	BackoffSecs        int `toml:"backoff_secs"`
	UnreadThrottleSecs int `toml:"unread_throttle_secs"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIURL: "http://localhost:5001/api",
		Poll: Poll{
			ListIntervalSecs:   25,
			ThreadIntervalSecs: 30,
			BackoffSecs:        90,
			UnreadThrottleSecs: 15,
		},
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return &cfg, nil
}

// LoadOrDefault reads config from path, falling back to Default when the file
// does not exist. Any other read or parse failure is returned as an error.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.APIURL == "" {
		c.APIURL = def.APIURL
	}
	if c.Poll.ListIntervalSecs <= 0 {
		c.Poll.ListIntervalSecs = def.Poll.ListIntervalSecs
	}
	if c.Poll.ThreadIntervalSecs <= 0 {
		c.Poll.ThreadIntervalSecs = def.Poll.ThreadIntervalSecs
	}
	if c.Poll.BackoffSecs <= 0 {
		c.Poll.BackoffSecs = def.Poll.BackoffSecs
	}
	if c.Poll.UnreadThrottleSecs <= 0 {
		c.Poll.UnreadThrottleSecs = def.Poll.UnreadThrottleSecs
	}
}

// ListInterval returns the conversation list poll interval as a duration.
func (p Poll) ListInterval() time.Duration { return time.Duration(p.ListIntervalSecs) * time.Second }

// ThreadInterval returns the thread poll interval as a duration.
func (p Poll) ThreadInterval() time.Duration {
	return time.Duration(p.ThreadIntervalSecs) * time.Second
}

// Backoff returns the rate-limit cool-down window as a duration.
func (p Poll) Backoff() time.Duration { return time.Duration(p.BackoffSecs) * time.Second }

// UnreadThrottle returns the thread-to-list unread refresh throttle window.
func (p Poll) UnreadThrottle() time.Duration {
	return time.Duration(p.UnreadThrottleSecs) * time.Second
}
