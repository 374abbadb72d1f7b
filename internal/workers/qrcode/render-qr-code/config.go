package renderqrcode

import (
	"fmt"
	"time"

	"qrcode-workers/internal/common/config"
)

type Config struct {
	Enabled       bool                `mapstructure:"enabled"`
	MaxJobsActive int                 `mapstructure:"max_jobs_active"`
	Timeout       time.Duration       `mapstructure:"timeout"`
	Render        config.RenderConfig `mapstructure:"render"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 10,
		Timeout:       5 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.Render.Size < 0 {
		return fmt.Errorf("render size must not be negative")
	}
	return nil
}
