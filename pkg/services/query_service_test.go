package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/quarry/pkg/errors"
	"github.com/TFMV/quarry/pkg/models"
	"github.com/TFMV/quarry/pkg/results"
	"github.com/TFMV/quarry/pkg/safety"
)

type mockQueryRepository struct {
	executeFunc func(ctx context.Context, query string) (*models.RawResult, error)
	tryFunc     func(ctx context.Context, query string) error

	executedQueries []string
}

func (m *mockQueryRepository) ExecuteQuery(ctx context.Context, query string) (*models.RawResult, error) {
	m.executedQueries = append(m.executedQueries, query)
	if m.executeFunc != nil {
		return m.executeFunc(ctx, query)
	}
	return &models.RawResult{
		Descriptors: []models.ColumnDescriptor{{Name: "id", TypeName: "BIGINT"}},
		Rows:        [][]interface{}{{int64(1)}},
		Duration:    2 * time.Millisecond,
	}, nil
}

func (m *mockQueryRepository) TryQuery(ctx context.Context, query string) error {
	m.executedQueries = append(m.executedQueries, query)
	if m.tryFunc != nil {
		return m.tryFunc(ctx, query)
	}
	return nil
}

type mockQueryStore struct {
	getFunc func(ctx context.Context, id int64) (*models.SavedQuery, error)

	logged  []models.RunLogEntry
	touched []int64
}

func (m *mockQueryStore) Save(ctx context.Context, q *models.SavedQuery) error { return nil }

func (m *mockQueryStore) Get(ctx context.Context, id int64) (*models.SavedQuery, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, errors.New(errors.CodeNotFound, "saved query not found")
}

func (m *mockQueryStore) List(ctx context.Context) ([]models.SavedQuery, error) { return nil, nil }

func (m *mockQueryStore) Delete(ctx context.Context, id int64) error { return nil }

func (m *mockQueryStore) TouchLastRun(ctx context.Context, id int64, at time.Time) error {
	m.touched = append(m.touched, id)
	return nil
}

func (m *mockQueryStore) LogRun(ctx context.Context, entry *models.RunLogEntry) error {
	m.logged = append(m.logged, *entry)
	return nil
}

func (m *mockQueryStore) History(ctx context.Context, queryID int64, limit int) ([]models.RunLogEntry, error) {
	return nil, nil
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}

type noopMetrics struct {
	counters map[string]int
}

func newNoopMetrics() *noopMetrics {
	return &noopMetrics{counters: make(map[string]int)}
}

func (m *noopMetrics) IncrementCounter(name string, labels ...string) { m.counters[name]++ }

func (m *noopMetrics) RecordHistogram(name string, value float64, labels ...string) {}

func (m *noopMetrics) RecordGauge(name string, value float64, labels ...string) {}

func (m *noopMetrics) StartTimer(name string) Timer { return noopTimer{} }

type noopTimer struct{}

func (noopTimer) Stop() time.Duration { return 0 }

func newTestService(t *testing.T, repo *mockQueryRepository, store *mockQueryStore) QueryService {
	t.Helper()
	filter, err := safety.NewFilter(safety.DefaultRules)
	require.NoError(t, err)
	processor := results.NewProcessor(nil, zerolog.Nop(), nil)

	var qs QueryService
	if store != nil {
		qs = NewQueryService(repo, store, filter, processor, noopLogger{}, newNoopMetrics())
	} else {
		qs = NewQueryService(repo, nil, filter, processor, noopLogger{}, newNoopMetrics())
	}
	return qs
}

func TestRun_SubstitutesAndExecutes(t *testing.T) {
	repo := &mockQueryRepository{}
	store := &mockQueryStore{}
	svc := newTestService(t, repo, store)

	outcome, err := svc.Run(context.Background(), &models.RunRequest{
		Template: "SELECT * FROM users WHERE id = $$uid$$",
		Params:   map[string]interface{}{"uid": 42},
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM users WHERE id = 42", outcome.FinalSQL)
	require.Len(t, repo.executedQueries, 1)
	assert.Equal(t, outcome.FinalSQL, repo.executedQueries[0])

	assert.True(t, outcome.SafetyPassed)
	assert.Empty(t, outcome.SafetyMatches)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, []string{"id"}, outcome.Result.Headers)
	assert.Equal(t, 2*time.Millisecond, outcome.ExecutionTime)

	require.Len(t, store.logged, 1)
	assert.Equal(t, int64(0), store.logged[0].QueryID)
	assert.True(t, store.logged[0].Playground)
	assert.Equal(t, outcome.FinalSQL, store.logged[0].FinalSQL)
}

func TestRun_BlacklistedQueryStillExecutes(t *testing.T) {
	repo := &mockQueryRepository{}
	svc := newTestService(t, repo, nil)

	outcome, err := svc.Run(context.Background(), &models.RunRequest{
		Template: "DELETE FROM users",
	})
	require.NoError(t, err)

	assert.False(t, outcome.SafetyPassed, "verdict must report the match")
	require.NotEmpty(t, outcome.SafetyMatches)
	assert.Equal(t, "delete", outcome.SafetyMatches[0].Label)
	assert.Len(t, repo.executedQueries, 1, "a failed verdict must not block execution")
}

func TestRun_ParamScreening(t *testing.T) {
	repo := &mockQueryRepository{}
	svc := newTestService(t, repo, nil)

	outcome, err := svc.Run(context.Background(), &models.RunRequest{
		Template: "SELECT * FROM users WHERE name = '$$name$$'",
		Params:   map[string]interface{}{"name": "' OR '1'='1"},
	})
	require.NoError(t, err)

	require.Len(t, outcome.ParamFindings, 1)
	assert.Equal(t, "name", outcome.ParamFindings[0].Param)
	assert.Len(t, repo.executedQueries, 1, "findings are advisory")
}

func TestRun_ExecutionError(t *testing.T) {
	cause := errors.New(errors.CodeQueryFailed, "table does not exist")
	repo := &mockQueryRepository{
		executeFunc: func(ctx context.Context, query string) (*models.RawResult, error) {
			return nil, cause
		},
	}
	store := &mockQueryStore{}
	svc := newTestService(t, repo, store)

	outcome, err := svc.Run(context.Background(), &models.RunRequest{Template: "SELECT * FROM ghosts"})
	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.True(t, errors.IsQueryFailed(err))
	assert.Empty(t, store.logged, "failed runs are not recorded")
}

func TestRun_InvalidRequest(t *testing.T) {
	repo := &mockQueryRepository{}
	svc := newTestService(t, repo, nil)

	_, err := svc.Run(context.Background(), &models.RunRequest{Template: ""})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidRequest, errors.GetCode(err))
	assert.Empty(t, repo.executedQueries)

	_, err = svc.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidRequest, errors.GetCode(err))
}

func TestRun_TimeoutSetsDeadline(t *testing.T) {
	var sawDeadline bool
	repo := &mockQueryRepository{
		executeFunc: func(ctx context.Context, query string) (*models.RawResult, error) {
			_, sawDeadline = ctx.Deadline()
			return &models.RawResult{}, nil
		},
	}
	svc := newTestService(t, repo, nil)

	_, err := svc.Run(context.Background(), &models.RunRequest{
		Template: "SELECT 1",
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	assert.True(t, sawDeadline, "a positive timeout must bound the execution context")
}

func TestTryRun(t *testing.T) {
	repo := &mockQueryRepository{}
	svc := newTestService(t, repo, nil)

	err := svc.TryRun(context.Background(), &models.RunRequest{
		Template: "SELECT * FROM users WHERE id = $$uid$$",
		Params:   map[string]interface{}{"uid": 7},
	})
	require.NoError(t, err)
	require.Len(t, repo.executedQueries, 1)
	assert.Equal(t, "SELECT * FROM users WHERE id = 7", repo.executedQueries[0])
}

func TestFinalSQL_MissingParamDegrades(t *testing.T) {
	svc := newTestService(t, &mockQueryRepository{}, nil)

	sql := svc.FinalSQL(&models.RunRequest{
		Template: "SELECT * FROM t WHERE a = $$missing$$",
	})
	assert.Equal(t, "SELECT * FROM t WHERE a = missing", sql)
}

func TestCheckSafety(t *testing.T) {
	svc := newTestService(t, &mockQueryRepository{}, nil)

	verdict := svc.CheckSafety(&models.RunRequest{Template: "DROP TABLE $$t$$"})
	assert.False(t, verdict.Passed)

	verdict = svc.CheckSafety(&models.RunRequest{Template: "SELECT 1"})
	assert.True(t, verdict.Passed)
}

func TestRunSaved(t *testing.T) {
	repo := &mockQueryRepository{}
	store := &mockQueryStore{
		getFunc: func(ctx context.Context, id int64) (*models.SavedQuery, error) {
			if id != 3 {
				return nil, errors.New(errors.CodeNotFound, "saved query not found")
			}
			return &models.SavedQuery{
				ID:    3,
				Title: "by id",
				SQL:   "SELECT * FROM users WHERE id = $$uid$$",
			}, nil
		},
	}
	svc := newTestService(t, repo, store)

	outcome, err := svc.RunSaved(context.Background(), 3, map[string]interface{}{"uid": 9}, 0)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE id = 9", outcome.FinalSQL)

	assert.Equal(t, []int64{3}, store.touched, "a saved run stamps last run")
	require.Len(t, store.logged, 1)
	assert.Equal(t, int64(3), store.logged[0].QueryID)
	assert.False(t, store.logged[0].Playground)
}

func TestRunSaved_NotFound(t *testing.T) {
	svc := newTestService(t, &mockQueryRepository{}, &mockQueryStore{})

	_, err := svc.RunSaved(context.Background(), 404, nil, 0)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRunSaved_NoStore(t *testing.T) {
	svc := newTestService(t, &mockQueryRepository{}, nil)

	_, err := svc.RunSaved(context.Background(), 1, nil, 0)
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnavailable, errors.GetCode(err))
}
