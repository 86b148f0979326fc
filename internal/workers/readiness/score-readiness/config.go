// internal/workers/readiness/score-readiness/config.go
package scorereadiness

import "time"

type Config struct {
	Timeout        time.Duration
	DefaultMaxGaps int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:        15 * time.Second,
		DefaultMaxGaps: 3,
	}
}
