package normalizephoto

import (
	"fmt"
	"time"

	"qrcode-workers/internal/common/config"
)

type Config struct {
	Enabled       bool               `mapstructure:"enabled"`
	MaxJobsActive int                `mapstructure:"max_jobs_active"`
	Timeout       time.Duration      `mapstructure:"timeout"`
	Photo         config.PhotoConfig `mapstructure:"photo"`
	// MaxInputBytes caps the decoded photoData size.
	MaxInputBytes int `mapstructure:"max_input_bytes"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       10 * time.Second,
		MaxInputBytes: 10 << 20,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.MaxInputBytes <= 0 {
		return fmt.Errorf("max_input_bytes must be positive")
	}
	return nil
}
