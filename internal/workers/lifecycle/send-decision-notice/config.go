// internal/workers/lifecycle/send-decision-notice/config.go
package senddecisionnotice

import "time"

type Config struct {
	Timeout      time.Duration
	AWSRegion    string
	FromEmail    string
	EmailEnabled bool
	SMSEnabled   bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      15 * time.Second,
		AWSRegion:    "us-east-1",
		FromEmail:    "no-reply@microloan.example.com",
		EmailEnabled: true,
		SMSEnabled:   false,
	}
}
