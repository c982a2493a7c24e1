package results

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/TFMV/quarry/pkg/infrastructure/metrics"
	"github.com/TFMV/quarry/pkg/models"
)

// Transform rewrites every cell of a named column through a display
// template. Each "{}" in the template is replaced with the cell's
// string form. Transforms naming absent columns are ignored.
type Transform struct {
	Header   string `mapstructure:"header" yaml:"header" json:"header"`
	Template string `mapstructure:"template" yaml:"template" json:"template"`
}

// Processor turns raw query output into a display-ready result set:
// headers, column kinds, normalized text, transformed cells, and
// numeric column summaries.
type Processor struct {
	transforms []Transform
	logger     zerolog.Logger
	metrics    metrics.Collector
}

// NewProcessor creates a Processor with the given display transforms.
func NewProcessor(transforms []Transform, logger zerolog.Logger, collector metrics.Collector) *Processor {
	if collector == nil {
		collector = metrics.NewNoOpCollector()
	}
	return &Processor{
		transforms: transforms,
		logger:     logger.With().Str("component", "result_processor").Logger(),
		metrics:    collector,
	}
}

// headerFallback labels columns when the backend reports no metadata.
const headerFallback = "--"

// numericTypeTags are backend type names that classify a column as
// numeric without inspecting row data.
var numericTypeTags = map[string]bool{
	"TINYINT": true, "SMALLINT": true, "INTEGER": true, "BIGINT": true,
	"HUGEINT": true, "UTINYINT": true, "USMALLINT": true, "UINTEGER": true,
	"UBIGINT": true, "FLOAT": true, "REAL": true, "DOUBLE": true,
	"DECIMAL": true, "NUMERIC": true, "INT2": true, "INT4": true, "INT8": true,
	"FLOAT4": true, "FLOAT8": true,
}

// textTypeTags classify a column as text from backend metadata alone.
var textTypeTags = map[string]bool{
	"VARCHAR": true, "TEXT": true, "STRING": true, "CHAR": true,
	"BPCHAR": true, "NAME": true, "UUID": true, "ENUM": true,
}

// Process runs the full post-processing pass over a raw result. The
// input is not mutated. Summaries are computed from pre-transform
// values, so display rewrites never skew statistics.
func (p *Processor) Process(raw *models.RawResult) *models.ResultSet {
	start := time.Now()

	headers := p.deriveHeaders(raw.Descriptors)
	kinds := p.classify(raw.Descriptors, raw.Rows)

	summaries := make([]models.ColumnSummary, 0)
	for i, kind := range kinds {
		if kind != models.ColumnKindNumeric {
			continue
		}
		col := columnValues(raw.Rows, i)
		summaries = append(summaries, Summarize(headers[i], col))
	}

	rows := copyRows(raw.Rows)
	normalizeText(rows)
	p.applyTransforms(headers, rows)

	elapsed := time.Since(start)
	p.metrics.RecordHistogram("result_processing_time_ms", float64(elapsed.Milliseconds()), "operation", "process")
	p.logger.Debug().
		Int("rows", len(rows)).
		Int("columns", len(headers)).
		Dur("duration", elapsed).
		Msg("Result processed")

	return &models.ResultSet{
		Headers:   headers,
		Rows:      rows,
		Kinds:     kinds,
		Summaries: summaries,
	}
}

func (p *Processor) deriveHeaders(descriptors []models.ColumnDescriptor) []string {
	if len(descriptors) == 0 {
		return []string{headerFallback}
	}
	headers := make([]string, len(descriptors))
	for i, d := range descriptors {
		if d.Name == "" {
			headers[i] = headerFallback
			continue
		}
		headers[i] = d.Name
	}
	return headers
}

// classify assigns a kind per descriptor column: backend type metadata
// first, then a sniff of the first row. Columns with neither stay
// Unknown. A result without descriptors has no classifiable columns,
// so it yields no kinds and no summaries.
func (p *Processor) classify(descriptors []models.ColumnDescriptor, rows [][]interface{}) []models.ColumnKind {
	if len(descriptors) == 0 {
		return nil
	}
	kinds := make([]models.ColumnKind, len(descriptors))
	for i := range kinds {
		tag := normalizeTypeTag(descriptors[i].TypeName)
		switch {
		case numericTypeTags[tag]:
			kinds[i] = models.ColumnKindNumeric
		case textTypeTags[tag]:
			kinds[i] = models.ColumnKindText
		case len(rows) > 0 && i < len(rows[0]):
			kinds[i] = sniffKind(rows[0][i])
		default:
			kinds[i] = models.ColumnKindUnknown
		}
	}
	return kinds
}

// normalizeTypeTag strips modifiers so "DECIMAL(18,3)" matches "DECIMAL".
func normalizeTypeTag(name string) string {
	tag := strings.ToUpper(strings.TrimSpace(name))
	if i := strings.IndexByte(tag, '('); i >= 0 {
		tag = tag[:i]
	}
	return tag
}

// sniffKind infers a kind from a single cell value.
func sniffKind(v interface{}) models.ColumnKind {
	switch v.(type) {
	case nil:
		return models.ColumnKindUnknown
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return models.ColumnKindNumeric
	case string, []byte:
		return models.ColumnKindText
	default:
		return models.ColumnKindUnknown
	}
}

// normalizeText converts []byte cells to string in place. Nulls pass
// through untouched.
func normalizeText(rows [][]interface{}) {
	for _, row := range rows {
		for i, cell := range row {
			if b, ok := cell.([]byte); ok {
				row[i] = string(b)
			}
		}
	}
}

// applyTransforms rewrites the cells of every transformed column. The
// header lookup resolves against the headers as derived from the
// backend, before any display rewriting.
func (p *Processor) applyTransforms(headers []string, rows [][]interface{}) {
	if len(p.transforms) == 0 {
		return
	}
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[h] = i
	}
	for _, t := range p.transforms {
		col, ok := index[t.Header]
		if !ok {
			p.logger.Debug().Str("header", t.Header).Msg("Transform target not in result, skipping")
			continue
		}
		for _, row := range rows {
			if col >= len(row) {
				continue
			}
			row[col] = strings.ReplaceAll(t.Template, "{}", fmt.Sprintf("%v", row[col]))
		}
	}
}

func columnValues(rows [][]interface{}, col int) []interface{} {
	values := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		values = append(values, row[col])
	}
	return values
}

func copyRows(rows [][]interface{}) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		out[i] = make([]interface{}, len(row))
		copy(out[i], row)
	}
	return out
}
