// internal/workers/assessment/assess-diabetes-risk/config.go
package assessdiabetesrisk

import (
	"fmt"
	"time"

	"diabetes-risk/internal/common/config"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       10 * time.Second,
	}
}

// ConfigFromAppConfig reads the workers.assess-diabetes-risk section.
func ConfigFromAppConfig(cfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(cfg, TaskType)
	c := DefaultConfig()
	c.Enabled = wcfg.Enabled
	if wcfg.MaxJobsActive > 0 {
		c.MaxJobsActive = wcfg.MaxJobsActive
	}
	if wcfg.Timeout > 0 {
		c.Timeout = config.GetDuration(wcfg.Timeout)
	}
	return c
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	return nil
}
