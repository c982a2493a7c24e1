package safety

import (
	"regexp"
	"strings"
)

// StatementType represents the type of SQL statement.
type StatementType int

const (
	StatementTypeDDL     StatementType = iota // CREATE, DROP, ALTER, TRUNCATE
	StatementTypeDML                          // INSERT, UPDATE, DELETE, REPLACE, MERGE
	StatementTypeDQL                          // SELECT, WITH...SELECT
	StatementTypeTCL                          // COMMIT, ROLLBACK, SAVEPOINT, BEGIN
	StatementTypeUtility                      // SHOW, DESCRIBE, EXPLAIN, SET, PRAGMA
	StatementTypeOther                        // Unrecognized statements
)

// String returns the string representation of the statement type.
func (st StatementType) String() string {
	switch st {
	case StatementTypeDDL:
		return "DDL"
	case StatementTypeDML:
		return "DML"
	case StatementTypeDQL:
		return "DQL"
	case StatementTypeTCL:
		return "TCL"
	case StatementTypeUtility:
		return "UTILITY"
	default:
		return "OTHER"
	}
}

// Classifier performs token-level statement classification. It exists to
// annotate runs, never to block them.
type Classifier struct {
	ddlPatterns     []*regexp.Regexp
	dmlPatterns     []*regexp.Regexp
	dqlPatterns     []*regexp.Regexp
	tclPatterns     []*regexp.Regexp
	utilityPatterns []*regexp.Regexp
}

// NewClassifier creates a statement classifier with compiled patterns.
func NewClassifier() *Classifier {
	return &Classifier{
		ddlPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^\s*CREATE\s+`),
			regexp.MustCompile(`(?i)^\s*DROP\s+`),
			regexp.MustCompile(`(?i)^\s*ALTER\s+`),
			regexp.MustCompile(`(?i)^\s*TRUNCATE\s+`),
		},
		dmlPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^\s*INSERT\s+`),
			regexp.MustCompile(`(?i)^\s*UPDATE\s+`),
			regexp.MustCompile(`(?i)^\s*DELETE\s+`),
			regexp.MustCompile(`(?i)^\s*REPLACE\s+`),
			regexp.MustCompile(`(?i)^\s*MERGE\s+`),
			regexp.MustCompile(`(?i)^\s*COPY\s+.*\s+FROM\s+`),
		},
		dqlPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^\s*SELECT\s+`),
			regexp.MustCompile(`(?i)^\s*WITH\s+.*\s+SELECT\s+`),
			regexp.MustCompile(`(?i)^\s*\(\s*SELECT\s+`),
			regexp.MustCompile(`(?i)^\s*VALUES\s+`),
		},
		tclPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^\s*BEGIN\s*`),
			regexp.MustCompile(`(?i)^\s*START\s+TRANSACTION\s*`),
			regexp.MustCompile(`(?i)^\s*COMMIT\s*`),
			regexp.MustCompile(`(?i)^\s*ROLLBACK\s*`),
			regexp.MustCompile(`(?i)^\s*SAVEPOINT\s+`),
		},
		utilityPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^\s*SHOW\s+`),
			regexp.MustCompile(`(?i)^\s*DESCRIBE\s+`),
			regexp.MustCompile(`(?i)^\s*EXPLAIN\s+`),
			regexp.MustCompile(`(?i)^\s*SET\s+`),
			regexp.MustCompile(`(?i)^\s*PRAGMA\s+`),
		},
	}
}

// Classify determines the statement type of a SQL string.
func (c *Classifier) Classify(sql string) StatementType {
	upperSQL := strings.ToUpper(strings.TrimSpace(sql))
	if upperSQL == "" {
		return StatementTypeOther
	}

	groups := []struct {
		patterns []*regexp.Regexp
		typ      StatementType
	}{
		{c.ddlPatterns, StatementTypeDDL},
		{c.dmlPatterns, StatementTypeDML},
		{c.dqlPatterns, StatementTypeDQL},
		{c.tclPatterns, StatementTypeTCL},
		{c.utilityPatterns, StatementTypeUtility},
	}

	for _, g := range groups {
		for _, pattern := range g.patterns {
			if pattern.MatchString(upperSQL) {
				return g.typ
			}
		}
	}
	return StatementTypeOther
}

// IsReadOnly returns true when the statement only reads data.
func (c *Classifier) IsReadOnly(sql string) bool {
	switch c.Classify(sql) {
	case StatementTypeDQL, StatementTypeUtility:
		return true
	default:
		return false
	}
}
