package config

import (
	"fmt"

	"github.com/skillsenselab/gatekit/logger"
	"github.com/skillsenselab/gatekit/version"
)

// ServiceConfig is the base configuration shared by every service.
// Embed it (by value) in a service's config struct; the promoted methods
// satisfy the bootstrap Config interface.
type ServiceConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
}

// GetServiceConfig returns the base ServiceConfig. When embedded in a
// larger config struct this method is promoted, so the embedding struct
// satisfies the bootstrap Config interface automatically.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig {
	return c
}

// IsDevelopment reports whether the service runs in development mode.
func (c *ServiceConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// ApplyDefaults applies default values to the base configuration.
// Override in embedding structs and call c.ServiceConfig.ApplyDefaults() first.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Version == "" {
		c.Version = version.Short()
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	c.Logging.ApplyDefaults()
	if c.Debug && c.Logging.Level == "info" {
		c.Logging.Level = "debug"
	}
}

// Validate validates the base configuration.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("service name is required")
	}
	valid := []string{"development", "staging", "production", "test"}
	for _, env := range valid {
		if c.Environment == env {
			return c.Logging.Validate()
		}
	}
	return fmt.Errorf("environment must be one of %v (got: %s)", valid, c.Environment)
}
