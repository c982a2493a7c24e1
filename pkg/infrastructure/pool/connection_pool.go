// Package pool provides database connection pooling for DuckDB.
package pool

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/rs/zerolog"

	pkgerrors "github.com/TFMV/quarry/pkg/errors"
)

// Config represents pool configuration.
type Config struct {
	DSN                string        `mapstructure:"dsn" json:"dsn"`
	MaxOpenConnections int           `mapstructure:"max_open_connections" json:"max_open_connections"`
	MaxIdleConnections int           `mapstructure:"max_idle_connections" json:"max_idle_connections"`
	ConnMaxLifetime    time.Duration `mapstructure:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime    time.Duration `mapstructure:"conn_max_idle_time" json:"conn_max_idle_time"`
	HealthCheckPeriod  time.Duration `mapstructure:"health_check_period" json:"health_check_period"`
	ConnectionTimeout  time.Duration `mapstructure:"connection_timeout" json:"connection_timeout"`
}

// ConnectionPool manages database connections.
type ConnectionPool interface {
	// Get returns a database connection.
	Get(ctx context.Context) (*sql.DB, error)
	// Stats returns pool statistics.
	Stats() PoolStats
	// HealthCheck performs a health check on the pool.
	HealthCheck(ctx context.Context) error
	// Close closes the connection pool.
	Close() error
}

// PoolStats represents connection pool statistics.
type PoolStats struct {
	OpenConnections   int           `json:"open_connections"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	LastHealthCheck   time.Time     `json:"last_health_check"`
	HealthCheckStatus string        `json:"health_check_status"`
}

type connectionPool struct {
	db     *sql.DB
	config Config
	logger zerolog.Logger

	closed atomic.Bool

	lastHealthCheck atomic.Int64 // Unix timestamp
	healthStatus    atomic.Value // string

	ctx    context.Context
	cancel context.CancelFunc

	waitCount    atomic.Int64
	waitDuration atomic.Int64
}

// New creates a new connection pool against the configured DSN. An
// empty DSN opens an in-memory database.
func New(cfg Config, logger zerolog.Logger) (ConnectionPool, error) {
	if cfg.DSN == "" {
		cfg.DSN = ":memory:"
	}
	if cfg.MaxOpenConnections <= 0 {
		cfg.MaxOpenConnections = 10
	}
	if cfg.MaxIdleConnections <= 0 {
		cfg.MaxIdleConnections = 2
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.ConnMaxIdleTime <= 0 {
		cfg.ConnMaxIdleTime = 10 * time.Minute
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = 30 * time.Second
	}

	logger.Info().
		Str("dsn", maskDSN(cfg.DSN)).
		Int("max_open", cfg.MaxOpenConnections).
		Int("max_idle", cfg.MaxIdleConnections).
		Msg("Creating DuckDB connection pool")

	db, err := sql.Open("duckdb", cfg.DSN)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to open database")
	}

	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithCancel(context.Background())

	p := &connectionPool{
		db:     db,
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	p.healthStatus.Store("unknown")

	connCtx, connCancel := context.WithTimeout(context.Background(), cfg.ConnectionTimeout)
	defer connCancel()

	if err := p.HealthCheck(connCtx); err != nil {
		db.Close()
		cancel()
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeConnectionFailed, "initial health check failed")
	}

	if cfg.HealthCheckPeriod > 0 {
		go p.healthCheckRoutine(ctx)
	}

	return p, nil
}

// Get returns a database connection.
func (p *connectionPool) Get(ctx context.Context) (*sql.DB, error) {
	if p.closed.Load() {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "connection pool is closed")
	}

	start := time.Now()
	p.waitCount.Add(1)
	defer func() {
		p.waitDuration.Add(int64(time.Since(start)))
	}()

	if err := p.db.PingContext(ctx); err != nil {
		p.logger.Error().Err(err).Msg("Database ping failed")
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeConnectionFailed, "database connection failed")
	}

	return p.db, nil
}

// Stats returns pool statistics.
func (p *connectionPool) Stats() PoolStats {
	dbStats := p.db.Stats()

	return PoolStats{
		OpenConnections:   dbStats.OpenConnections,
		InUse:             dbStats.InUse,
		Idle:              dbStats.Idle,
		WaitCount:         p.waitCount.Load(),
		WaitDuration:      time.Duration(p.waitDuration.Load()),
		LastHealthCheck:   time.Unix(p.lastHealthCheck.Load(), 0),
		HealthCheckStatus: p.getHealthStatus(),
	}
}

// HealthCheck pings the database and runs a trivial query.
func (p *connectionPool) HealthCheck(ctx context.Context) error {
	if p.closed.Load() {
		return pkgerrors.New(pkgerrors.CodeUnavailable, "connection pool is closed")
	}

	if err := p.db.PingContext(ctx); err != nil {
		p.updateHealthStatus("unhealthy", err.Error())
		return pkgerrors.Wrap(err, pkgerrors.CodeConnectionFailed, "health check ping failed")
	}

	var result int
	err := p.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
	if err != nil || result != 1 {
		p.updateHealthStatus("unhealthy", "query test failed")
		return pkgerrors.Wrap(err, pkgerrors.CodeConnectionFailed, "health check query failed")
	}

	p.updateHealthStatus("healthy", "")
	return nil
}

// Close closes the connection pool.
func (p *connectionPool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	p.logger.Info().Msg("Closing DuckDB connection pool")
	p.cancel()

	if err := p.db.Close(); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to close database")
	}

	return nil
}

// healthCheckRoutine probes the pool until ctx is cancelled.
func (p *connectionPool) healthCheckRoutine(ctx context.Context) {
	ticker := time.NewTicker(p.config.HealthCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := p.HealthCheck(probeCtx); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Error().Err(err).Msg("Periodic health check failed")
			}
			cancel()
		}
	}
}

func (p *connectionPool) updateHealthStatus(status, detail string) {
	p.lastHealthCheck.Store(time.Now().Unix())
	p.healthStatus.Store(status)

	if status == "unhealthy" && detail != "" {
		p.logger.Warn().
			Str("status", status).
			Str("detail", detail).
			Msg("Connection pool health status changed")
	}
}

func (p *connectionPool) getHealthStatus() string {
	if v := p.healthStatus.Load(); v != nil {
		return v.(string)
	}
	return "unknown"
}

// maskDSN hides credentials and sensitive query parameters while
// leaving enough of the string to recognise in logs. ":memory:" and
// the empty DSN pass verbatim; unparseable strings get a middle mask.
func maskDSN(dsn string) string {
	if dsn == "" || dsn == ":memory:" {
		return dsn
	}

	u, err := url.Parse(dsn)
	if err == nil && (u.Scheme != "" || u.Host != "" || u.User != nil || u.RawQuery != "") {
		if ui := u.User; ui != nil {
			if _, hasPass := ui.Password(); hasPass {
				u.User = url.UserPassword(ui.Username(), "*****")
			} else {
				u.User = url.User(ui.Username())
			}
		}
		q := u.Query()
		for k := range q {
			if isSensitiveKey(k) {
				q.Set(k, "*****")
			}
		}
		u.RawQuery = q.Encode()
		return u.String()
	}

	runes := []rune(dsn)
	if len(runes) <= 10 {
		return "***"
	}
	return string(runes[:3]) + "***" + string(runes[len(runes)-3:])
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	switch {
	case strings.Contains(key, "pass"),
		strings.Contains(key, "token"),
		strings.Contains(key, "secret"),
		strings.HasSuffix(key, "key"):
		return true
	default:
		return false
	}
}
