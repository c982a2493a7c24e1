// Package config provides configuration structures for the quarry CLI.
package config

import (
	"fmt"
	"time"

	"github.com/TFMV/quarry/pkg/results"
	"github.com/TFMV/quarry/pkg/safety"
)

// Config represents the engine configuration.
type Config struct {
	// Database is the DuckDB DSN. Empty or ":memory:" runs in memory.
	Database     string        `mapstructure:"database" yaml:"database" json:"database"`
	LogLevel     string        `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	QueryTimeout time.Duration `mapstructure:"query_timeout" yaml:"query_timeout" json:"query_timeout"`
	HistoryLimit int           `mapstructure:"history_limit" yaml:"history_limit" json:"history_limit"`

	// Blacklist holds the screening rules applied to final SQL. Empty
	// means the default rule set.
	Blacklist []safety.Rule `mapstructure:"blacklist" yaml:"blacklist" json:"blacklist"`

	// Transforms rewrite display cells of named result columns.
	Transforms []results.Transform `mapstructure:"transforms" yaml:"transforms" json:"transforms"`

	// Metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`

	// Connection pool configuration
	ConnectionPool ConnectionPoolConfig `mapstructure:"connection_pool" yaml:"connection_pool" json:"connection_pool"`
}

// MetricsConfig represents metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Address string `mapstructure:"address" yaml:"address" json:"address"`
	Path    string `mapstructure:"path" yaml:"path" json:"path"`
}

// ConnectionPoolConfig represents connection pool configuration.
type ConnectionPoolConfig struct {
	MaxOpenConnections int           `mapstructure:"max_open_connections" yaml:"max_open_connections" json:"max_open_connections"`
	MaxIdleConnections int           `mapstructure:"max_idle_connections" yaml:"max_idle_connections" json:"max_idle_connections"`
	ConnMaxLifetime    time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime    time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	HealthCheckPeriod  time.Duration `mapstructure:"health_check_period" yaml:"health_check_period" json:"health_check_period"`
}

// Validate validates the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.Database == "" {
		c.Database = ":memory:"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %s", c.LogLevel)
	}

	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 2 * time.Minute
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 50
	}

	if len(c.Blacklist) == 0 {
		c.Blacklist = safety.DefaultRules
	}
	for _, t := range c.Transforms {
		if t.Header == "" {
			return fmt.Errorf("transform is missing a header")
		}
	}

	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.ConnectionPool.MaxOpenConnections <= 0 {
		c.ConnectionPool.MaxOpenConnections = 10
	}
	if c.ConnectionPool.MaxIdleConnections <= 0 {
		c.ConnectionPool.MaxIdleConnections = 2
	}
	if c.ConnectionPool.ConnMaxLifetime <= 0 {
		c.ConnectionPool.ConnMaxLifetime = 30 * time.Minute
	}
	if c.ConnectionPool.ConnMaxIdleTime <= 0 {
		c.ConnectionPool.ConnMaxIdleTime = 10 * time.Minute
	}

	return nil
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database:     ":memory:",
		LogLevel:     "info",
		QueryTimeout: 2 * time.Minute,
		HistoryLimit: 50,
		Blacklist:    safety.DefaultRules,
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
			Path:    "/metrics",
		},
		ConnectionPool: ConnectionPoolConfig{
			MaxOpenConnections: 10,
			MaxIdleConnections: 2,
			ConnMaxLifetime:    30 * time.Minute,
			ConnMaxIdleTime:    10 * time.Minute,
		},
	}
}
