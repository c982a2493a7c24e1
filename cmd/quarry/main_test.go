package main

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TFMV/quarry/pkg/infrastructure/metrics"
	"github.com/TFMV/quarry/pkg/infrastructure/pool"
)

type stubPool struct {
	stats pool.PoolStats
}

func (s *stubPool) Get(ctx context.Context) (*sql.DB, error) { return nil, nil }

func (s *stubPool) Stats() pool.PoolStats { return s.stats }

func (s *stubPool) HealthCheck(ctx context.Context) error { return nil }

func (s *stubPool) Close() error { return nil }

type gaugeCollector struct {
	gauges map[string]float64
}

func (c *gaugeCollector) IncrementCounter(name string, labels ...string) {}

func (c *gaugeCollector) RecordHistogram(name string, value float64, labels ...string) {}

func (c *gaugeCollector) RecordGauge(name string, value float64, labels ...string) {
	c.gauges[name] = value
}

func (c *gaugeCollector) StartTimer(name string) metrics.Timer { return nil }

func TestRecordPoolStats(t *testing.T) {
	collector := &gaugeCollector{gauges: make(map[string]float64)}
	a := &app{
		pool: &stubPool{stats: pool.PoolStats{
			OpenConnections: 4,
			InUse:           1,
			Idle:            3,
			WaitCount:       7,
		}},
		collector: collector,
	}

	a.recordPoolStats()

	assert.Equal(t, 4.0, collector.gauges["pool_open_connections"])
	assert.Equal(t, 1.0, collector.gauges["pool_in_use_connections"])
	assert.Equal(t, 3.0, collector.gauges["pool_idle_connections"])
	assert.Equal(t, 7.0, collector.gauges["pool_wait_count"])
}
