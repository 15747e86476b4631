package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every setting the agent reads at startup. Secrets are
// overridden from the environment after the file is parsed, so the yaml
// on disk never needs to contain keys.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		Bitget struct {
			WSPublicURL  string            `yaml:"ws_public_url"`
			WSPrivateURL string            `yaml:"ws_private_url"`
			RestURL      string            `yaml:"rest_url"`
			AccessKey    string            `yaml:"access_key"`
			SecretKey    string            `yaml:"secret_key"`
			Passphrase   string            `yaml:"passphrase"`
			Symbols      map[string]string `yaml:"symbols"` // unified symbol -> instId
		} `yaml:"bitget"`
		Equity struct {
			PollIntervalSec int `yaml:"poll_interval_sec"`
		} `yaml:"equity"`
	} `yaml:"api"`

	Trading struct {
		DryRun bool `yaml:"dry_run"`
	} `yaml:"trading"`

	Safety struct {
		IntentTTLMS          int `yaml:"intent_ttl_ms"`          // Latch TTL for one emission
		DrainTimeoutSec      int `yaml:"drain_timeout_sec"`      // Max wait for inflight orders at shutdown
		MaxReconnectAttempts int `yaml:"max_reconnect_attempts"` // Hard ceiling per stream outage
	} `yaml:"safety"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Notify struct {
		WebhookURL string `yaml:"webhook_url"` // Empty disables notifications
		TimeoutSec int    `yaml:"timeout_sec"`
	} `yaml:"notify"`

	Metrics struct {
		Addr string `yaml:"addr"` // Empty disables the /metrics listener
	} `yaml:"metrics"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies environment
// overrides for secrets and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	// Bitget
	if !hasPrefix(c.API.Bitget.WSPublicURL, "ws://") && !hasPrefix(c.API.Bitget.WSPublicURL, "wss://") {
		return fmt.Errorf("invalid Bitget public WS URL: %s", c.API.Bitget.WSPublicURL)
	}
	if !hasPrefix(c.API.Bitget.WSPrivateURL, "ws://") && !hasPrefix(c.API.Bitget.WSPrivateURL, "wss://") {
		return fmt.Errorf("invalid Bitget private WS URL: %s", c.API.Bitget.WSPrivateURL)
	}
	if !hasPrefix(c.API.Bitget.RestURL, "http://") && !hasPrefix(c.API.Bitget.RestURL, "https://") {
		return fmt.Errorf("invalid Bitget REST URL: %s", c.API.Bitget.RestURL)
	}
	if len(c.API.Bitget.Symbols) == 0 {
		return fmt.Errorf("at least one Bitget symbol is required")
	}

	// Safety: these budgets gate live orders, zero is never what you want
	if c.Safety.IntentTTLMS <= 0 {
		return fmt.Errorf("safety.intent_ttl_ms must be positive")
	}
	if c.Safety.DrainTimeoutSec <= 0 {
		return fmt.Errorf("safety.drain_timeout_sec must be positive")
	}
	if c.Safety.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("safety.max_reconnect_attempts must be positive")
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}

	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv replaces secrets with environment values when present.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("TRADEGUARD_BITGET_KEY"); key != "" {
		cfg.API.Bitget.AccessKey = key
	}
	if secret := os.Getenv("TRADEGUARD_BITGET_SECRET"); secret != "" {
		cfg.API.Bitget.SecretKey = secret
	}
	if pass := os.Getenv("TRADEGUARD_BITGET_PASSPHRASE"); pass != "" {
		cfg.API.Bitget.Passphrase = pass
	}
	if url := os.Getenv("TRADEGUARD_WEBHOOK_URL"); url != "" {
		cfg.Notify.WebhookURL = url
	}
}
