// internal/workers/eligibility/rank-candidates/config.go
package rankcandidates

import "time"

type Config struct {
	Timeout      time.Duration
	HistoryLimit int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      60 * time.Second,
		HistoryLimit: 5000,
	}
}
