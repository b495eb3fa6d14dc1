// Package scan provides data sources for plan leaves. A Source exposes its
// schema without reading data, and serves row batches honoring projection
// and predicate pushdown from the optimizer.
package scan

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/ibis/internal/config"
	"github.com/paveg/ibis/internal/dataframe"
	"github.com/paveg/ibis/internal/errors"
	"github.com/paveg/ibis/internal/expr"
	"github.com/paveg/ibis/internal/schema"
	"github.com/paveg/ibis/internal/series"
)

// ScanRequest carries pushed-down projection and predicate. A nil Columns
// slice means every column; a nil Predicate means no filtering.
type ScanRequest struct {
	Columns   []string
	Predicate expr.Expr
}

// BatchIterator streams row batches from a source. Next returns io.EOF
// after the last batch. Close releases underlying resources and is safe to
// call more than once.
type BatchIterator interface {
	Next() (*dataframe.DataFrame, error)
	Close() error
}

// Source is a scannable dataset.
type Source interface {
	// Schema returns the dataset's shape without reading row data.
	Schema() (*schema.Schema, error)
	// Scan opens a batch stream honoring the request's pushdowns.
	Scan(req ScanRequest) (BatchIterator, error)
	// CanPushPredicate reports whether the source applies the given
	// predicate itself. The optimizer leaves unsupported predicates in a
	// Filter node above the scan.
	CanPushPredicate(e expr.Expr) bool
}

// Name is an optional Source extension for Explain output.
type Name interface {
	Name() string
}

// applyRequest projects and filters a materialized frame per the request.
func applyRequest(mem memory.Allocator, df *dataframe.DataFrame, req ScanRequest) (*dataframe.DataFrame, error) {
	out := df
	if req.Columns != nil {
		selected, err := out.Select(req.Columns...)
		if err != nil {
			return nil, err
		}
		out = selected
	}
	if req.Predicate != nil {
		filtered, err := FilterFrame(mem, out, req.Predicate)
		if err != nil {
			return nil, err
		}
		out = filtered
	}
	return out, nil
}

// FilterFrame keeps the rows where the predicate evaluates to true. Null
// predicate rows are dropped.
func FilterFrame(mem memory.Allocator, df *dataframe.DataFrame, pred expr.Expr) (*dataframe.DataFrame, error) {
	in, err := expr.NewInput(df.Columns())
	if err != nil {
		return nil, err
	}
	ev := expr.NewEvaluator(mem)
	mask, err := ev.Eval(pred, in)
	if err != nil {
		return nil, err
	}
	defer mask.Release()
	boolMask, ok := mask.(*array.Boolean)
	if !ok {
		return nil, errors.NewTypeError("filter", "predicate must evaluate to Boolean")
	}

	indices := make([]int, 0, mask.Len())
	for i := 0; i < mask.Len(); i++ {
		if boolMask.IsValid(i) && boolMask.Value(i) {
			indices = append(indices, i)
		}
	}

	cols := make([]*series.Series, df.Width())
	for i, col := range df.Columns() {
		taken, err := col.Take(mem, indices)
		if err != nil {
			return nil, err
		}
		cols[i] = taken
	}
	return dataframe.New(cols...)
}

// sliceIterator serves a materialized frame in fixed-size batches.
type sliceIterator struct {
	df        *dataframe.DataFrame
	batchSize int
	offset    int
	closed    bool
}

func newSliceIterator(df *dataframe.DataFrame, batchSize int) *sliceIterator {
	if batchSize <= 0 {
		batchSize = config.DefaultScanChunkSize
	}
	return &sliceIterator{df: df, batchSize: batchSize}
}

func (it *sliceIterator) Next() (*dataframe.DataFrame, error) {
	if it.closed || it.offset >= it.df.Len() {
		if it.df.Len() == 0 && it.offset == 0 && !it.closed {
			// a single empty batch preserves the schema for empty sources
			it.offset = 1
			return it.df, nil
		}
		return nil, io.EOF
	}
	n := it.batchSize
	if it.offset+n > it.df.Len() {
		n = it.df.Len() - it.offset
	}
	batch, err := it.df.Slice(it.offset, n)
	if err != nil {
		return nil, err
	}
	it.offset += n
	return batch, nil
}

func (it *sliceIterator) Close() error {
	it.closed = true
	return nil
}

// InMemorySource serves an existing DataFrame. It accepts every pushdown.
type InMemorySource struct {
	df   *dataframe.DataFrame
	mem  memory.Allocator
	name string
}

// NewInMemorySource wraps a frame as a scannable source.
func NewInMemorySource(df *dataframe.DataFrame, mem memory.Allocator) *InMemorySource {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &InMemorySource{df: df, mem: mem, name: "in-memory"}
}

func (s *InMemorySource) Name() string { return s.name }

func (s *InMemorySource) Schema() (*schema.Schema, error) {
	return s.df.Schema(), nil
}

func (s *InMemorySource) CanPushPredicate(e expr.Expr) bool { return true }

func (s *InMemorySource) Scan(req ScanRequest) (BatchIterator, error) {
	out, err := applyRequest(s.mem, s.df, req)
	if err != nil {
		return nil, err
	}
	return newSliceIterator(out, config.GetGlobalConfig().ScanChunkSize), nil
}

// Collect drains an iterator into a single frame. Batches are concatenated
// in arrival order; the result keeps one chunk per batch per column.
func Collect(it BatchIterator, sch *schema.Schema) (*dataframe.DataFrame, error) {
	defer it.Close()

	var frames []*dataframe.DataFrame
	for {
		batch, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		frames = append(frames, batch)
	}
	if len(frames) == 0 {
		return emptyFrame(sch)
	}
	if len(frames) == 1 {
		return frames[0], nil
	}

	first := frames[0]
	cols := make([]*series.Series, first.Width())
	for i, col := range first.Columns() {
		rest := make([]*series.Series, 0, len(frames)-1)
		for _, f := range frames[1:] {
			c, err := f.ColumnAt(i)
			if err != nil {
				return nil, err
			}
			rest = append(rest, c)
		}
		merged, err := col.Concat(rest...)
		if err != nil {
			return nil, err
		}
		cols[i] = merged
	}
	return dataframe.New(cols...)
}

func emptyFrame(sch *schema.Schema) (*dataframe.DataFrame, error) {
	if sch == nil {
		return dataframe.Empty(), nil
	}
	cols := make([]*series.Series, sch.Len())
	for i, f := range sch.Fields() {
		empty, err := series.Empty(f.Name, f.Type, memory.DefaultAllocator)
		if err != nil {
			return nil, err
		}
		cols[i] = empty
	}
	return dataframe.New(cols...)
}
