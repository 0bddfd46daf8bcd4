package config

import (
	"fmt"

	"github.com/skillsenselab/streamkit/logger"
	"github.com/skillsenselab/streamkit/util"
)

// ServiceConfig holds the identity and logging fields shared by every
// deployment of the service. Config embeds it inline.
type ServiceConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
}

// serviceEnvironments are the deployment environments Validate accepts.
var serviceEnvironments = []string{"development", "staging", "production"}

// ApplyDefaults fills the environment and debug flag, and pushes the service
// name down into the logging config so log lines carry it.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if c.Logging.ServiceName == "" && c.Name != "" {
		c.Logging.ServiceName = c.Name
	}
	c.Logging.ApplyDefaults()
}

// Validate rejects a missing name or an unknown environment.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config.name is required")
	}
	if !util.StringInSlice(c.Environment, serviceEnvironments) {
		return fmt.Errorf("config.environment must be one of %v (got: %s)", serviceEnvironments, c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	return nil
}
