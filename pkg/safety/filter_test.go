package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/quarry/pkg/errors"
)

func TestFilter_Check(t *testing.T) {
	filter, err := NewFilter([]Rule{
		{Label: "drop", Pattern: `\bDROP\b`, Reason: "destructive"},
		{Label: "delete", Pattern: `\bDELETE\b`},
		{Label: "comment", Pattern: `--`},
	})
	require.NoError(t, err)

	tests := []struct {
		name       string
		sql        string
		passed     bool
		wantLabels []string
	}{
		{"clean select", "SELECT * FROM orders", true, nil},
		{"drop lowercase", "drop table x", false, []string{"drop"}},
		{"drop mixed case", "DrOp TABLE x", false, []string{"drop"}},
		{"multiple matches keep rule order", "delete from t; drop table t --", false, []string{"drop", "delete", "comment"}},
		{"word boundary respected", "SELECT dropped FROM t", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := filter.Check(tt.sql)
			assert.Equal(t, tt.passed, verdict.Passed)

			var labels []string
			for _, m := range verdict.Matches {
				labels = append(labels, m.Label)
			}
			assert.Equal(t, tt.wantLabels, labels)
		})
	}
}

func TestFilter_CheckRecordsFragmentAndReason(t *testing.T) {
	filter, err := NewFilter([]Rule{
		{Label: "drop", Pattern: `\bDROP\b`, Reason: "destructive statement"},
	})
	require.NoError(t, err)

	verdict := filter.Check("drop table x")
	require.Len(t, verdict.Matches, 1)
	assert.Equal(t, "drop", verdict.Matches[0].Label)
	assert.Equal(t, "drop", verdict.Matches[0].Fragment)
	assert.Equal(t, "destructive statement", verdict.Matches[0].Reason)
}

func TestNewFilter_InvalidPattern(t *testing.T) {
	_, err := NewFilter([]Rule{{Label: "bad", Pattern: `(`}})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidConfig, errors.GetCode(err))
}

func TestDefaultRules_Compile(t *testing.T) {
	filter, err := NewFilter(DefaultRules)
	require.NoError(t, err)

	assert.False(t, filter.Check("TRUNCATE TABLE audit").Passed)
	assert.True(t, filter.Check("SELECT 1").Passed)
}

func TestScreenParams(t *testing.T) {
	findings := ScreenParams(map[string]interface{}{
		"customer_id": "12345",
		"limit":       100,
		"search":      "' OR '1'='1",
	})

	assert.Len(t, findings, 1)
	assert.Equal(t, "search", findings[0].Param)
	assert.NotEmpty(t, findings[0].Fingerprint)
}

func TestScreenParams_CleanValues(t *testing.T) {
	assert.Empty(t, ScreenParams(map[string]interface{}{
		"name":  "alice",
		"count": 3,
	}))
	assert.Empty(t, ScreenParams(nil))
}
