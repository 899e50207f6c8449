package config

import "time"

// EngineConfig contains configuration for the crypto engine HTTP client.
type EngineConfig struct {
	// URL is the engine's base URL.
	URL string `env:"URL" envDefault:"http://localhost:9090"`

	// AuthToken is sent as a bearer token on every engine call when set.
	AuthToken string `env:"AUTH_TOKEN" envDefault:""`

	// Timeout bounds a single engine call. Tally and combine calls over large
	// chunks run for minutes, so this is deliberately generous.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"5m"`
}

// Sanitize applies guardrails to engine configuration values.
func (e *EngineConfig) Sanitize() {
	if e.Timeout < 10*time.Second {
		e.Timeout = 10 * time.Second
	}
}
