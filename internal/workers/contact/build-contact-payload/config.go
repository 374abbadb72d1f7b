package buildcontactpayload

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
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       20 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	// The build includes a remote fetch, which must finish inside the job.
	if c.Photo.FetchTimeout > 0 && time.Duration(c.Photo.FetchTimeout)*time.Millisecond >= c.Timeout {
		return fmt.Errorf("photo fetch_timeout (%dms) must be shorter than the job timeout (%s)", c.Photo.FetchTimeout, c.Timeout)
	}
	return nil
}
