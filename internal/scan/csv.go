package scan

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/ibis/internal/config"
	"github.com/paveg/ibis/internal/dataframe"
	"github.com/paveg/ibis/internal/expr"
	"github.com/paveg/ibis/internal/schema"
	"github.com/paveg/ibis/internal/series"
)

// CSVOptions controls CSV parsing and type inference.
type CSVOptions struct {
	Delimiter  rune
	Header     bool
	Comment    rune
	NullValues []string // cell texts treated as null, in addition to ""
	InferRows  int      // rows sampled for type inference (0 = config default)
}

// DefaultCSVOptions returns comma-delimited parsing with a header row.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:  ',',
		Header:     true,
		NullValues: []string{"", "null", "NA"},
	}
}

// CSVSource reads a CSV file with column type inference. The file is
// parsed once per Scan; Schema alone parses only the inference sample.
type CSVSource struct {
	path    string
	options CSVOptions
	mem     memory.Allocator
}

// NewCSVSource creates a CSV-backed source.
func NewCSVSource(path string, options CSVOptions, mem memory.Allocator) *CSVSource {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &CSVSource{path: path, options: options, mem: mem}
}

func (s *CSVSource) Name() string { return "csv:" + s.path }

// CanPushPredicate reports false: the file is fully materialized before
// filtering, so pushing a predicate into the scan saves nothing. Filters
// stay above CSV scans in the plan.
func (s *CSVSource) CanPushPredicate(e expr.Expr) bool { return false }

func (s *CSVSource) Schema() (*schema.Schema, error) {
	headers, columns, err := s.readColumns()
	if err != nil {
		return nil, err
	}
	fields := make([]arrow.Field, len(headers))
	for i, header := range headers {
		sample := columns[i]
		limit := s.inferRows()
		if len(sample) > limit {
			sample = sample[:limit]
		}
		fields[i] = arrow.Field{Name: header, Type: s.inferType(sample), Nullable: true}
	}
	return schema.New(fields...)
}

func (s *CSVSource) Scan(req ScanRequest) (BatchIterator, error) {
	df, err := s.read()
	if err != nil {
		return nil, err
	}
	out, err := applyRequest(s.mem, df, req)
	if err != nil {
		return nil, err
	}
	return newSliceIterator(out, config.GetGlobalConfig().ScanChunkSize), nil
}

// Read materializes the whole file as a frame, without pushdowns.
func (s *CSVSource) Read() (*dataframe.DataFrame, error) {
	return s.read()
}

func (s *CSVSource) read() (*dataframe.DataFrame, error) {
	headers, columns, err := s.readColumns()
	if err != nil {
		return nil, err
	}
	cols := make([]*series.Series, len(headers))
	for i, header := range headers {
		col, err := s.buildColumn(header, columns[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", header, err)
		}
		cols[i] = col
	}
	return dataframe.New(cols...)
}

// readColumns parses the file into header names and per-column cell texts.
func (s *CSVSource) readColumns() ([]string, [][]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = s.options.Delimiter
	reader.Comment = s.options.Comment
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	var headers []string
	var rows [][]string
	if s.options.Header {
		headers = records[0]
		rows = records[1:]
	} else {
		headers = make([]string, len(records[0]))
		for i := range headers {
			headers[i] = fmt.Sprintf("column_%d", i)
		}
		rows = records
	}

	columns := make([][]string, len(headers))
	for i := range columns {
		columns[i] = make([]string, len(rows))
		for j, row := range rows {
			if i < len(row) {
				columns[i][j] = row[i]
			}
		}
	}
	return headers, columns, nil
}

// WriteCSV writes a frame to a CSV file with a header row. Nulls render as
// empty cells.
func WriteCSV(df *dataframe.DataFrame, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(df.ColumnNames()); err != nil {
		return err
	}
	row := make([]string, df.Width())
	for r := 0; r < df.Len(); r++ {
		for c, col := range df.Columns() {
			if col.IsNull(r) {
				row[c] = ""
			} else {
				row[c] = col.ValueStr(r)
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (s *CSVSource) inferRows() int {
	if s.options.InferRows > 0 {
		return s.options.InferRows
	}
	return config.GetGlobalConfig().CSVInferRows
}

func (s *CSVSource) isNullText(v string) bool {
	nulls := s.options.NullValues
	if nulls == nil {
		nulls = []string{""}
	}
	for _, n := range nulls {
		if v == n {
			return true
		}
	}
	return false
}

// inferType picks the narrowest of int64, float64, bool, string that parses
// every non-null sample cell. An all-null sample infers string.
func (s *CSVSource) inferType(sample []string) arrow.DataType {
	isInt, isFloat, isBool := true, true, true
	seen := false
	for _, v := range sample {
		if s.isNullText(v) {
			continue
		}
		seen = true
		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			if v != "true" && v != "false" {
				isBool = false
			}
		}
	}
	switch {
	case !seen:
		return arrow.BinaryTypes.String
	case isInt:
		return arrow.PrimitiveTypes.Int64
	case isFloat:
		return arrow.PrimitiveTypes.Float64
	case isBool:
		return arrow.FixedWidthTypes.Boolean
	default:
		return arrow.BinaryTypes.String
	}
}

func (s *CSVSource) buildColumn(name string, cells []string) (*series.Series, error) {
	sample := cells
	if limit := s.inferRows(); len(sample) > limit {
		sample = sample[:limit]
	}
	dtype := s.inferType(sample)

	n := len(cells)
	valid := make([]bool, n)
	for i, v := range cells {
		valid[i] = !s.isNullText(v)
	}

	switch dtype.ID() {
	case arrow.INT64:
		values := make([]int64, n)
		for i, v := range cells {
			if !valid[i] {
				continue
			}
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, s.parseError(i, v, dtype)
			}
			values[i] = parsed
		}
		return series.NewWithNulls(name, values, valid, s.mem), nil
	case arrow.FLOAT64:
		values := make([]float64, n)
		for i, v := range cells {
			if !valid[i] {
				continue
			}
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, s.parseError(i, v, dtype)
			}
			values[i] = parsed
		}
		return series.NewWithNulls(name, values, valid, s.mem), nil
	case arrow.BOOL:
		values := make([]bool, n)
		for i, v := range cells {
			if !valid[i] {
				continue
			}
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return nil, s.parseError(i, v, dtype)
			}
			values[i] = parsed
		}
		return series.NewWithNulls(name, values, valid, s.mem), nil
	default:
		return series.NewWithNulls(name, cells, valid, s.mem), nil
	}
}

// parseError reports a cell past the inference sample that contradicts the
// inferred type. The schema must match the delivered data, so the read
// fails instead of silently widening the column. Raise InferRows (or the
// CSVInferRows config default) to sample deeper.
func (s *CSVSource) parseError(rowIdx int, cell string, dtype arrow.DataType) error {
	line := rowIdx + 1
	if s.options.Header {
		line++
	}
	return fmt.Errorf("line %d: cannot parse %q as inferred type %s", line, cell, dtype)
}
