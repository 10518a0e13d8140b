package resilience

import (
	"time"
)

// FromRetryConfig converts config values (delays in seconds) to a RetryConfig.
// Non-positive values keep the defaults.
func FromRetryConfig(maxAttempts int, initialDelaySecs, multiplier, maxDelaySecs float64) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if initialDelaySecs > 0 {
		cfg.InitialDelay = secs(initialDelaySecs)
	}
	if multiplier > 0 {
		cfg.Multiplier = multiplier
	}
	if maxDelaySecs > 0 {
		cfg.MaxDelay = secs(maxDelaySecs)
	}
	return cfg
}

func secs(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
