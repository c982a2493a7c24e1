package services

import (
	"context"
	"time"

	"github.com/TFMV/quarry/pkg/errors"
	"github.com/TFMV/quarry/pkg/models"
	"github.com/TFMV/quarry/pkg/repositories"
	"github.com/TFMV/quarry/pkg/results"
	"github.com/TFMV/quarry/pkg/safety"
	"github.com/TFMV/quarry/pkg/template"
)

// queryService implements QueryService.
type queryService struct {
	repo      repositories.QueryRepository
	store     repositories.QueryStore
	filter    *safety.Filter
	processor *results.Processor
	logger    Logger
	metrics   MetricsCollector
}

// NewQueryService creates a new query service. The store is optional;
// without one, runs are not recorded in history.
func NewQueryService(
	repo repositories.QueryRepository,
	store repositories.QueryStore,
	filter *safety.Filter,
	processor *results.Processor,
	logger Logger,
	metrics MetricsCollector,
) QueryService {
	return &queryService{
		repo:      repo,
		store:     store,
		filter:    filter,
		processor: processor,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run executes a templated query end to end.
func (s *queryService) Run(ctx context.Context, req *models.RunRequest) (*models.RunOutcome, error) {
	outcome, err := s.run(ctx, req, 0)
	if err != nil {
		return nil, err
	}
	s.recordRun(ctx, outcome, 0)
	return outcome, nil
}

// RunSaved loads a saved query, runs it, and records history.
func (s *queryService) RunSaved(ctx context.Context, id int64, params map[string]interface{}, timeout time.Duration) (*models.RunOutcome, error) {
	if s.store == nil {
		return nil, errors.New(errors.CodeUnavailable, "no query store configured")
	}

	saved, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	req := &models.RunRequest{
		Template: saved.SQL,
		Params:   params,
		Timeout:  timeout,
	}
	outcome, err := s.run(ctx, req, id)
	if err != nil {
		return nil, err
	}

	if err := s.store.TouchLastRun(ctx, id, time.Now().UTC()); err != nil {
		s.logger.Warn("Failed to stamp last run", "error", err, "query_id", id)
	}
	s.recordRun(ctx, outcome, id)
	return outcome, nil
}

// run is the shared pipeline behind Run and RunSaved.
func (s *queryService) run(ctx context.Context, req *models.RunRequest, queryID int64) (*models.RunOutcome, error) {
	timer := s.metrics.StartTimer("query_run_time_ms")
	defer timer.Stop()

	if err := s.validateRequest(req); err != nil {
		s.metrics.IncrementCounter("run_validation_errors")
		return nil, err
	}

	finalSQL := template.Substitute(req.Template, req.Params)

	s.logger.Debug("Running query", "final_sql", finalSQL, "query_id", queryID)

	verdict := s.filter.Check(finalSQL)
	findings := safety.ScreenParams(req.Params)
	if !verdict.Passed {
		s.metrics.IncrementCounter("safety_check_failures")
		s.logger.Warn("Query failed safety check",
			"final_sql", finalSQL,
			"matches", len(verdict.Matches))
	}
	if len(findings) > 0 {
		s.metrics.IncrementCounter("param_screening_findings")
		s.logger.Warn("Suspicious parameter values detected",
			"findings", len(findings))
	}

	runCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	raw, err := s.repo.ExecuteQuery(runCtx, finalSQL)
	if err != nil {
		s.metrics.IncrementCounter("query_execution_errors")
		s.logger.Error("Query execution failed", "error", err, "final_sql", finalSQL)
		return nil, err
	}

	processStart := time.Now()
	resultSet := s.processor.Process(raw)
	processTime := time.Since(processStart)

	s.metrics.IncrementCounter("successful_runs")
	s.metrics.RecordHistogram("query_execution_time_ms", float64(raw.Duration.Milliseconds()))
	s.metrics.RecordHistogram("query_result_rows", float64(len(resultSet.Rows)))

	s.logger.Info("Query run complete",
		"rows", len(resultSet.Rows),
		"execution_time", raw.Duration,
		"safety_passed", verdict.Passed)

	return &models.RunOutcome{
		FinalSQL:      finalSQL,
		Result:        resultSet,
		ExecutionTime: raw.Duration,
		ProcessTime:   processTime,
		SafetyPassed:  verdict.Passed,
		SafetyMatches: verdict.Matches,
		ParamFindings: findings,
	}, nil
}

// TryRun checks that the final SQL executes, discarding output.
func (s *queryService) TryRun(ctx context.Context, req *models.RunRequest) error {
	if err := s.validateRequest(req); err != nil {
		return err
	}

	finalSQL := template.Substitute(req.Template, req.Params)

	runCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	return s.repo.TryQuery(runCtx, finalSQL)
}

// FinalSQL returns the SQL after parameter substitution.
func (s *queryService) FinalSQL(req *models.RunRequest) string {
	return template.Substitute(req.Template, req.Params)
}

// CheckSafety screens the final SQL without executing it.
func (s *queryService) CheckSafety(req *models.RunRequest) safety.Verdict {
	return s.filter.Check(s.FinalSQL(req))
}

func (s *queryService) validateRequest(req *models.RunRequest) error {
	if req == nil {
		return errors.New(errors.CodeInvalidRequest, "run request is required")
	}
	if req.Template == "" {
		return errors.New(errors.CodeInvalidRequest, "query template cannot be empty")
	}
	return nil
}

// recordRun appends the run to history. Best effort: a store failure
// never fails a run that already produced results.
func (s *queryService) recordRun(ctx context.Context, outcome *models.RunOutcome, queryID int64) {
	if s.store == nil {
		return
	}
	entry := &models.RunLogEntry{
		QueryID:    queryID,
		FinalSQL:   outcome.FinalSQL,
		Playground: queryID == 0,
		RunAt:      time.Now().UTC(),
		Duration:   outcome.ExecutionTime,
	}
	if err := s.store.LogRun(ctx, entry); err != nil {
		s.logger.Warn("Failed to record run history", "error", err)
	}
}
