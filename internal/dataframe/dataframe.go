// Package dataframe provides the materialized table: an ordered collection
// of equal-length Series with unique names.
//
// A DataFrame is structural only; query construction and execution live in
// the plan and exec packages. Frames share Series by reference, so copies
// are cheap and columns follow a copy-on-write discipline.
package dataframe

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/ibis/internal/errors"
	"github.com/paveg/ibis/internal/schema"
	"github.com/paveg/ibis/internal/series"
)

// DataFrame is an immutable ordered set of named columns. All mutating
// operations return a new frame; shared Series are retained, not copied.
type DataFrame struct {
	columns []*series.Series
	index   map[string]int
	length  int
}

// New builds a frame from columns. All columns must have the same length
// and distinct names.
func New(cols ...*series.Series) (*DataFrame, error) {
	df := &DataFrame{
		columns: make([]*series.Series, 0, len(cols)),
		index:   make(map[string]int, len(cols)),
	}
	for i, col := range cols {
		if _, dup := df.index[col.Name()]; dup {
			return nil, errors.NewDuplicateColumnError("dataframe", col.Name())
		}
		if i == 0 {
			df.length = col.Len()
		} else if col.Len() != df.length {
			return nil, errors.NewSchemaError("dataframe",
				fmt.Sprintf("column %q has %d rows, expected %d", col.Name(), col.Len(), df.length))
		}
		df.index[col.Name()] = len(df.columns)
		df.columns = append(df.columns, col)
	}
	return df, nil
}

// MustNew is New for statically correct inputs; it panics on error.
func MustNew(cols ...*series.Series) *DataFrame {
	df, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return df
}

// Empty returns a zero-column, zero-row frame.
func Empty() *DataFrame {
	return &DataFrame{index: map[string]int{}}
}

// Len returns the row count.
func (df *DataFrame) Len() int { return df.length }

// Width returns the column count.
func (df *DataFrame) Width() int { return len(df.columns) }

// Columns returns the column slice in frame order. Callers must not
// mutate it.
func (df *DataFrame) Columns() []*series.Series { return df.columns }

// ColumnNames returns column names in frame order.
func (df *DataFrame) ColumnNames() []string {
	names := make([]string, len(df.columns))
	for i, col := range df.columns {
		names[i] = col.Name()
	}
	return names
}

// Column resolves a column by name.
func (df *DataFrame) Column(name string) (*series.Series, error) {
	i, ok := df.index[name]
	if !ok {
		return nil, errors.NewColumnNotFoundError("column", name)
	}
	return df.columns[i], nil
}

// HasColumn reports whether a column exists.
func (df *DataFrame) HasColumn(name string) bool {
	_, ok := df.index[name]
	return ok
}

// ColumnAt returns the column at a position.
func (df *DataFrame) ColumnAt(i int) (*series.Series, error) {
	if i < 0 || i >= len(df.columns) {
		return nil, errors.NewOutOfBoundsError("column_at", i, len(df.columns))
	}
	return df.columns[i], nil
}

// Schema derives the frame's schema.
func (df *DataFrame) Schema() *schema.Schema {
	fields := make([]arrow.Field, len(df.columns))
	for i, col := range df.columns {
		fields[i] = col.Field()
	}
	return schema.MustNew(fields...)
}

// Select returns a frame with the named columns in the given order.
func (df *DataFrame) Select(names ...string) (*DataFrame, error) {
	cols := make([]*series.Series, 0, len(names))
	for _, name := range names {
		col, err := df.Column(name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return New(cols...)
}

// Drop returns a frame without the named columns. Unknown names are
// ignored.
func (df *DataFrame) Drop(names ...string) (*DataFrame, error) {
	drop := make(map[string]struct{}, len(names))
	for _, name := range names {
		drop[name] = struct{}{}
	}
	cols := make([]*series.Series, 0, len(df.columns))
	for _, col := range df.columns {
		if _, gone := drop[col.Name()]; !gone {
			cols = append(cols, col)
		}
	}
	return New(cols...)
}

// WithColumn returns a frame with col appended, or replacing an existing
// column of the same name in place.
func (df *DataFrame) WithColumn(col *series.Series) (*DataFrame, error) {
	if df.Width() > 0 && col.Len() != df.length {
		return nil, errors.NewSchemaError("with_column",
			fmt.Sprintf("column %q has %d rows, expected %d", col.Name(), col.Len(), df.length))
	}
	cols := make([]*series.Series, len(df.columns))
	copy(cols, df.columns)
	if i, ok := df.index[col.Name()]; ok {
		cols[i] = col
		return New(cols...)
	}
	return New(append(cols, col)...)
}

// Rename returns a frame with one column renamed.
func (df *DataFrame) Rename(from, to string) (*DataFrame, error) {
	i, ok := df.index[from]
	if !ok {
		return nil, errors.NewColumnNotFoundError("rename", from)
	}
	cols := make([]*series.Series, len(df.columns))
	copy(cols, df.columns)
	cols[i] = cols[i].Rename(to)
	return New(cols...)
}

// Slice returns rows [offset, offset+length) as a zero-copy view. A
// negative offset counts from the end. Length is clamped to the frame.
func (df *DataFrame) Slice(offset, length int) (*DataFrame, error) {
	if offset < 0 {
		offset = df.length + offset
		if offset < 0 {
			offset = 0
		}
	}
	if offset > df.length {
		offset = df.length
	}
	if length < 0 || offset+length > df.length {
		length = df.length - offset
	}
	cols := make([]*series.Series, len(df.columns))
	for i, col := range df.columns {
		sliced, err := col.Slice(offset, length)
		if err != nil {
			return nil, err
		}
		cols[i] = sliced
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	out.length = length
	return out, nil
}

// Head returns the first n rows.
func (df *DataFrame) Head(n int) (*DataFrame, error) {
	if n > df.length {
		n = df.length
	}
	return df.Slice(0, n)
}

// Tail returns the last n rows.
func (df *DataFrame) Tail(n int) (*DataFrame, error) {
	if n > df.length {
		n = df.length
	}
	return df.Slice(df.length-n, n)
}

// Rechunk returns a frame whose every column holds a single chunk.
func (df *DataFrame) Rechunk(mem memory.Allocator) (*DataFrame, error) {
	cols := make([]*series.Series, len(df.columns))
	for i, col := range df.columns {
		r, err := col.Rechunk(mem)
		if err != nil {
			return nil, err
		}
		cols[i] = r
	}
	return New(cols...)
}

// Record exports the frame as a single Arrow record. Every column is
// compacted to one chunk; the caller owns the returned record.
func (df *DataFrame) Record(mem memory.Allocator) (arrow.Record, error) {
	fields := make([]arrow.Field, len(df.columns))
	arrays := make([]arrow.Array, len(df.columns))
	for i, col := range df.columns {
		arr, err := col.ContiguousArray(mem)
		if err != nil {
			for _, a := range arrays[:i] {
				a.Release()
			}
			return nil, err
		}
		fields[i] = col.Field()
		arrays[i] = arr
	}
	rec := array.NewRecord(arrow.NewSchema(fields, nil), arrays, int64(df.length))
	for _, a := range arrays {
		a.Release()
	}
	return rec, nil
}

// FromRecord imports an Arrow record as a frame. Column data is retained,
// not copied.
func FromRecord(rec arrow.Record) (*DataFrame, error) {
	cols := make([]*series.Series, rec.NumCols())
	for i := 0; i < int(rec.NumCols()); i++ {
		cols[i] = series.FromArray(rec.ColumnName(i), rec.Column(i))
	}
	return New(cols...)
}

// Concat vertically appends frames with identical schemas. Columns are
// joined at the chunk level without copying values.
func Concat(frames ...*DataFrame) (*DataFrame, error) {
	if len(frames) == 0 {
		return Empty(), nil
	}
	first := frames[0]
	for _, f := range frames[1:] {
		if !first.Schema().Equal(f.Schema()) {
			return nil, errors.NewSchemaError("Concat", "input schemas differ")
		}
	}
	cols := make([]*series.Series, first.Width())
	for i, col := range first.columns {
		rest := make([]*series.Series, len(frames)-1)
		for j, f := range frames[1:] {
			rest[j] = f.columns[i]
		}
		merged, err := col.Concat(rest...)
		if err != nil {
			return nil, err
		}
		cols[i] = merged
	}
	return New(cols...)
}

// Equal reports value equality: same column names, types, order, row count
// and per-row values including null positions.
func (df *DataFrame) Equal(other *DataFrame) bool {
	if df.Width() != other.Width() || df.Len() != other.Len() {
		return false
	}
	for i, col := range df.columns {
		if !col.Equal(other.columns[i]) {
			return false
		}
	}
	return true
}

// Release drops the frame's references to its column data.
func (df *DataFrame) Release() {
	for _, col := range df.columns {
		col.Release()
	}
	df.columns = nil
	df.index = map[string]int{}
	df.length = 0
}

// String renders a bounded preview for debugging.
func (df *DataFrame) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "DataFrame[%dx%d]\n", df.length, len(df.columns))
	if len(df.columns) == 0 {
		return sb.String()
	}
	names := df.ColumnNames()
	sb.WriteString(strings.Join(names, "\t"))
	sb.WriteByte('\n')
	limit := df.length
	if limit > 10 {
		limit = 10
	}
	for row := 0; row < limit; row++ {
		for i, col := range df.columns {
			if i > 0 {
				sb.WriteByte('\t')
			}
			sb.WriteString(col.ValueStr(row))
		}
		sb.WriteByte('\n')
	}
	if df.length > limit {
		fmt.Fprintf(&sb, "... %d more rows\n", df.length-limit)
	}
	return sb.String()
}
