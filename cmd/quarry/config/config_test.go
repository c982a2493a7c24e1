package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/quarry/pkg/results"
	"github.com/TFMV/quarry/pkg/safety"
)

func TestValidate_FillsDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":memory:", cfg.Database)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 2*time.Minute, cfg.QueryTimeout)
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.Equal(t, safety.DefaultRules, cfg.Blacklist)
	assert.Equal(t, ":9090", cfg.Metrics.Address)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, 10, cfg.ConnectionPool.MaxOpenConnections)
}

func TestValidate_KeepsExplicitValues(t *testing.T) {
	rules := []safety.Rule{{Label: "custom", Pattern: `\bMERGE\b`, Reason: "no merges"}}
	cfg := &Config{
		Database:     "warehouse.db",
		LogLevel:     "debug",
		QueryTimeout: 10 * time.Second,
		Blacklist:    rules,
	}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "warehouse.db", cfg.Database)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.QueryTimeout)
	assert.Equal(t, rules, cfg.Blacklist)
}

func TestValidate_RejectsBadLogLevel(t *testing.T) {
	cfg := &Config{LogLevel: "verbose"}
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsTransformWithoutHeader(t *testing.T) {
	cfg := &Config{
		Transforms: []results.Transform{{Template: "#{}"}},
	}
	assert.Error(t, cfg.Validate())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Metrics.Enabled)
}
