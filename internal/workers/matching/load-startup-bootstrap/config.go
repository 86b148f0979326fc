// internal/workers/matching/load-startup-bootstrap/config.go
package loadstartupbootstrap

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
