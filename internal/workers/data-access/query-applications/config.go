// internal/workers/data-access/query-applications/config.go
package queryapplications

import "time"

type Config struct {
	Timeout      time.Duration
	CacheTTL     time.Duration
	DefaultLimit int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      10 * time.Second,
		CacheTTL:     5 * time.Minute,
		DefaultLimit: 100,
	}
}
