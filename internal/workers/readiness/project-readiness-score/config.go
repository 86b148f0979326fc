// internal/workers/readiness/project-readiness-score/config.go
package projectreadinessscore

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
	}
}
