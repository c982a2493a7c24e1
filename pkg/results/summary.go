// Package results post-processes raw query output into a display-ready
// table and per-column numeric summaries.
package results

import (
	"math"
	"strconv"

	"github.com/TFMV/quarry/pkg/models"
)

// columnStat is one entry in the fixed statistic battery: a label, a
// reducer over the column's values, a rounding precision, and whether
// the reducer sees raw nulls or nulls coerced to zero.
type columnStat struct {
	label       string
	reduce      func(values []interface{}) float64
	precision   int
	handlesNull bool
}

// statTable is the fixed ordered battery of six statistics. Each entry is
// data, computed independently of the others.
var statTable = []columnStat{
	{"Sum", reduceSum, 2, false},
	{"Length", reduceCount, 0, false},
	{"Average", reduceAverage, 2, false},
	{"Minimum", reduceMin, 2, false},
	{"Maximum", reduceMax, 2, false},
	{"NULLs", reduceNullCount, 0, true},
}

// StatLabels returns the statistic labels in display order.
func StatLabels() []string {
	labels := make([]string, len(statTable))
	for i, st := range statTable {
		labels[i] = st.label
	}
	return labels
}

// Summarize computes the fixed statistic battery for one numeric column.
// An empty column yields 0 for every statistic.
func Summarize(name string, col []interface{}) models.ColumnSummary {
	withoutNulls := make([]interface{}, len(col))
	for i, v := range col {
		if v == nil {
			withoutNulls[i] = float64(0)
		} else {
			withoutNulls[i] = v
		}
	}

	stats := make(map[string]float64, len(statTable))
	for _, st := range statTable {
		if len(col) == 0 {
			stats[st.label] = 0
			continue
		}
		input := withoutNulls
		if st.handlesNull {
			input = col
		}
		stats[st.label] = roundTo(st.reduce(input), st.precision)
	}

	return models.ColumnSummary{Name: name, Stats: stats}
}

func reduceSum(values []interface{}) float64 {
	var total float64
	for _, v := range values {
		total += asFloat(v)
	}
	return total
}

func reduceCount(values []interface{}) float64 {
	return float64(len(values))
}

func reduceAverage(values []interface{}) float64 {
	return reduceSum(values) / float64(len(values))
}

func reduceMin(values []interface{}) float64 {
	min := asFloat(values[0])
	for _, v := range values[1:] {
		if f := asFloat(v); f < min {
			min = f
		}
	}
	return min
}

func reduceMax(values []interface{}) float64 {
	max := asFloat(values[0])
	for _, v := range values[1:] {
		if f := asFloat(v); f > max {
			max = f
		}
	}
	return max
}

func reduceNullCount(values []interface{}) float64 {
	var nulls float64
	for _, v := range values {
		if v == nil {
			nulls++
		}
	}
	return nulls
}

// asFloat coerces a scalar cell to float64. Values that cannot be
// coerced count as zero; columns reaching the summarizer have already
// been classified numeric.
func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func roundTo(v float64, precision int) float64 {
	factor := math.Pow(10, float64(precision))
	return math.Round(v*factor) / factor
}
