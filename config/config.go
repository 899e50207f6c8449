package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Database and lock store configuration
//   - broker.go: Message broker configuration
//   - engine.go: Crypto engine client configuration
//   - http.go: HTTP server configuration
//   - services.go: Service mode, orchestrator, worker, and reaper configuration
type AppConfig struct {
	// IsDev controls development mode behavior (console logging, seed data).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Log configuration
	Log LogConfig

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// Message broker configuration
	Broker BrokerConfig `envPrefix:"AMQP_"`

	// Crypto engine client configuration
	Engine EngineConfig `envPrefix:"ENGINE_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"api"`

	// Orchestrator configuration
	Orchestrator OrchestratorConfig

	// Worker pool configuration
	Workers WorkersConfig

	// Reaper configuration
	Reaper ReaperConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// LogConfig controls the root logger built at startup.
type LogConfig struct {
	// Level is the minimum level emitted: debug, info, warn, or error.
	Level string `env:"LOG_LEVEL" envDefault:"info"`

	// Format selects the handler: json for production, console for dev.
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Sanitize normalises log configuration values.
func (l *LogConfig) Sanitize() {
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		l.Level = "info"
	}

	l.Format = strings.ToLower(strings.TrimSpace(l.Format))
	if l.Format != "console" {
		l.Format = "json"
	}
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Log.Sanitize()
	c.Broker.Sanitize()
	c.Engine.Sanitize()
	c.HTTP.Sanitize()
	c.Orchestrator.Sanitize()
	c.Workers.Sanitize()
	c.Reaper.Sanitize()
	c.Observability.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
// NODE_ENV is checked as a fallback (common in container tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsAPIEnabled returns true if the HTTP API service is enabled.
func (c *AppConfig) IsAPIEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeAPI]
}

// IsWorkersEnabled returns true if the chunk worker pools are enabled.
func (c *AppConfig) IsWorkersEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeWorkers]
}

// IsReaperEnabled returns true if the reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeReaper]
}
