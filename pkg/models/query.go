// Package models provides data structures used throughout the quarry engine.
package models

import (
	"time"
)

// RunRequest represents a single template execution request.
type RunRequest struct {
	Template string                 `json:"template"`
	Params   map[string]interface{} `json:"params,omitempty"`
	Timeout  time.Duration          `json:"timeout,omitempty"`
}

// ColumnKind classifies a result column for post-processing.
type ColumnKind int

const (
	// ColumnKindUnknown means the column could not be classified.
	ColumnKindUnknown ColumnKind = iota
	// ColumnKindNumeric marks columns eligible for summarization.
	ColumnKindNumeric
	// ColumnKindText marks text-typed columns.
	ColumnKindText
)

// String returns the string representation of the column kind.
func (k ColumnKind) String() string {
	switch k {
	case ColumnKindNumeric:
		return "numeric"
	case ColumnKindText:
		return "text"
	default:
		return "unknown"
	}
}

// ColumnDescriptor is backend-supplied metadata for one result column.
type ColumnDescriptor struct {
	Name string `json:"name"`
	// TypeName is the backend's native type tag, e.g. "BIGINT" or "VARCHAR".
	// Empty when the backend provides no type metadata.
	TypeName string `json:"type_name,omitempty"`
}

// RawResult is the eagerly materialized output of one query execution,
// before any post-processing.
type RawResult struct {
	Descriptors []ColumnDescriptor `json:"descriptors"`
	Rows        [][]interface{}    `json:"rows"`
	Duration    time.Duration      `json:"duration"`
}

// ResultSet is the display-ready table produced by post-processing.
// Rows are mutated in place by transforms; the mutated instance is the
// one the caller receives. Every row has exactly len(Headers) cells.
type ResultSet struct {
	Headers   []string        `json:"headers"`
	Rows      [][]interface{} `json:"rows"`
	Kinds     []ColumnKind    `json:"kinds"`
	Summaries []ColumnSummary `json:"summaries,omitempty"`
}

// ColumnSummary holds the fixed battery of statistics for one numeric column.
// Computed once and immutable thereafter.
type ColumnSummary struct {
	Name  string             `json:"name"`
	Stats map[string]float64 `json:"stats"`
}

// RunOutcome bundles everything a caller needs from one pipeline pass:
// the substituted SQL, the advisory safety verdict, and the processed result.
type RunOutcome struct {
	FinalSQL      string        `json:"final_sql"`
	Result        *ResultSet    `json:"result"`
	ExecutionTime time.Duration `json:"execution_time"`
	ProcessTime   time.Duration `json:"process_time"`

	// Verdict fields are advisory; execution proceeds regardless and the
	// caller decides whether a failed verdict is fatal.
	SafetyPassed  bool           `json:"safety_passed"`
	SafetyMatches []SafetyMatch  `json:"safety_matches,omitempty"`
	ParamFindings []ParamFinding `json:"param_findings,omitempty"`
}

// SafetyMatch records one blacklist rule that matched the final SQL.
type SafetyMatch struct {
	Label    string `json:"label"`
	Fragment string `json:"fragment"`
	Reason   string `json:"reason,omitempty"`
}

// ParamFinding records a parameter value flagged by injection screening.
type ParamFinding struct {
	Param       string `json:"param"`
	Fingerprint string `json:"fingerprint"`
}

// SavedQuery is a stored parameterized query definition.
type SavedQuery struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	SQL         string    `json:"sql"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastRunAt   time.Time `json:"last_run_at"`
}

// RunLogEntry records one execution of a query, saved or ad hoc.
type RunLogEntry struct {
	ID         string        `json:"id"`
	QueryID    int64         `json:"query_id,omitempty"`
	FinalSQL   string        `json:"final_sql"`
	Playground bool          `json:"playground"`
	RunAt      time.Time     `json:"run_at"`
	Duration   time.Duration `json:"duration"`
}
