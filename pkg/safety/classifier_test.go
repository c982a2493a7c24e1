package safety

import (
	"testing"
)

func TestClassifier_Classify(t *testing.T) {
	classifier := NewClassifier()

	tests := []struct {
		name     string
		sql      string
		expected StatementType
	}{
		{"CREATE TABLE", "CREATE TABLE test (id INT)", StatementTypeDDL},
		{"DROP TABLE", "DROP TABLE test", StatementTypeDDL},
		{"ALTER TABLE", "ALTER TABLE test ADD COLUMN name VARCHAR", StatementTypeDDL},
		{"TRUNCATE", "TRUNCATE TABLE test", StatementTypeDDL},

		{"INSERT", "INSERT INTO test VALUES (1)", StatementTypeDML},
		{"UPDATE", "UPDATE test SET id = 2", StatementTypeDML},
		{"DELETE", "DELETE FROM test WHERE id = 1", StatementTypeDML},
		{"lowercase update", "update test set id = 3", StatementTypeDML},

		{"SELECT", "SELECT * FROM test", StatementTypeDQL},
		{"WITH CTE", "WITH cte AS (SELECT * FROM test) SELECT * FROM cte", StatementTypeDQL},
		{"leading whitespace", "  select * from test  ", StatementTypeDQL},

		{"BEGIN", "BEGIN", StatementTypeTCL},
		{"COMMIT", "COMMIT", StatementTypeTCL},

		{"SHOW", "SHOW TABLES", StatementTypeUtility},
		{"EXPLAIN", "EXPLAIN SELECT * FROM test", StatementTypeUtility},
		{"PRAGMA", "PRAGMA table_info(test)", StatementTypeUtility},

		{"empty", "", StatementTypeOther},
		{"whitespace only", "   ", StatementTypeOther},
		{"comment only", "-- just a comment", StatementTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifier.Classify(tt.sql); got != tt.expected {
				t.Errorf("Classify(%q) = %v, want %v", tt.sql, got, tt.expected)
			}
		})
	}
}

func TestClassifier_IsReadOnly(t *testing.T) {
	classifier := NewClassifier()

	tests := []struct {
		sql      string
		expected bool
	}{
		{"SELECT * FROM test", true},
		{"EXPLAIN SELECT 1", true},
		{"INSERT INTO test VALUES (1)", false},
		{"DROP TABLE test", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := classifier.IsReadOnly(tt.sql); got != tt.expected {
			t.Errorf("IsReadOnly(%q) = %v, want %v", tt.sql, got, tt.expected)
		}
	}
}
