// Package services contains business logic implementations.
package services

import (
	"context"
	"time"

	"github.com/TFMV/quarry/pkg/models"
	"github.com/TFMV/quarry/pkg/safety"
)

// QueryService defines the query exploration pipeline: parameter
// substitution, safety screening, execution, and result processing.
type QueryService interface {
	// Run executes a templated query end to end and returns the
	// processed outcome. A failed safety check never blocks execution;
	// the verdict travels in the outcome for the caller to act on.
	Run(ctx context.Context, req *models.RunRequest) (*models.RunOutcome, error)
	// TryRun checks that the final SQL executes, discarding output.
	TryRun(ctx context.Context, req *models.RunRequest) error
	// FinalSQL returns the SQL after parameter substitution.
	FinalSQL(req *models.RunRequest) string
	// CheckSafety screens the final SQL without executing it.
	CheckSafety(req *models.RunRequest) safety.Verdict
	// RunSaved loads a saved query, runs it with the given parameters,
	// and records the run in its history.
	RunSaved(ctx context.Context, id int64, params map[string]interface{}, timeout time.Duration) (*models.RunOutcome, error)
}

// Logger defines logging interface.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// MetricsCollector defines metrics collection interface.
type MetricsCollector interface {
	IncrementCounter(name string, labels ...string)
	RecordHistogram(name string, value float64, labels ...string)
	RecordGauge(name string, value float64, labels ...string)
	StartTimer(name string) Timer
}

// Timer represents a timing measurement.
type Timer interface {
	Stop() time.Duration
}
