// internal/workers/application/check-onboarding-readiness/config.go
package checkonboardingreadiness

import (
	"time"

	"admissions-workflow/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(wc config.WorkerConfig) *Config {
	timeout := config.GetDuration(wc.Timeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Config{Timeout: timeout}
}
