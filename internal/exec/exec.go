// Package exec provides the physical executor: it lowers an optimized
// logical plan to columnar operators and runs them to a materialized
// DataFrame.
//
// Execution is synchronous and runs the whole plan to completion. Above a
// configurable row threshold, row-independent operators split into
// contiguous ranges evaluated on a worker pool; results are reassembled in
// range order, so parallel output is identical to sequential output.
package exec

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/ibis/internal/config"
	"github.com/paveg/ibis/internal/dataframe"
	"github.com/paveg/ibis/internal/errors"
	"github.com/paveg/ibis/internal/expr"
	"github.com/paveg/ibis/internal/parallel"
	"github.com/paveg/ibis/internal/plan"
	"github.com/paveg/ibis/internal/scan"
	"github.com/paveg/ibis/internal/series"
)

// Executor runs logical plans.
type Executor struct {
	mem  memory.Allocator
	cfg  config.Config
	pool *parallel.WorkerPool
}

// New creates an executor. A nil allocator falls back to the default.
func New(mem memory.Allocator, cfg config.Config) *Executor {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &Executor{
		mem:  mem,
		cfg:  cfg,
		pool: parallel.NewWorkerPool(cfg.WorkerPoolSize),
	}
}

// Close releases the executor's worker pool.
func (ex *Executor) Close() { ex.pool.Close() }

// Execute runs a plan to completion and returns the materialized result.
// The context is consulted between operators; an in-flight operator always
// finishes.
func (ex *Executor) Execute(ctx context.Context, node plan.Node) (*dataframe.DataFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch n := node.(type) {
	case *plan.ScanNode:
		return ex.execScan(n)

	case *plan.FilterNode:
		input, err := ex.Execute(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return ex.execFilter(input, n.Predicate)

	case *plan.SelectNode:
		input, err := ex.Execute(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return ex.execSelect(input, n.Exprs)

	case *plan.GroupByNode:
		input, err := ex.Execute(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return ex.execGroupBy(input, n)

	case *plan.JoinNode:
		left, err := ex.Execute(ctx, n.Left)
		if err != nil {
			return nil, err
		}
		right, err := ex.Execute(ctx, n.Right)
		if err != nil {
			return nil, err
		}
		return ex.execJoin(left, right, n)

	case *plan.SortNode:
		input, err := ex.Execute(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return ex.execSort(input, n.Keys)

	case *plan.DistinctNode:
		input, err := ex.Execute(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return ex.execDistinct(input, n.Subset)

	case *plan.UnionNode:
		return ex.execUnion(ctx, n)

	case *plan.SliceNode:
		input, err := ex.Execute(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		return input.Slice(n.Offset, n.Length)

	case *plan.MapNode:
		input, err := ex.Execute(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		out, err := n.Fn(input)
		if err != nil {
			return nil, errors.Wrap("map_function", err)
		}
		if !out.Schema().Equal(n.Schema()) {
			return nil, errors.NewSchemaError("map_function",
				"function output schema does not match the declared schema")
		}
		return out, nil

	default:
		return nil, errors.NewComputeError("execute", fmt.Sprintf("unknown plan node %T", node))
	}
}

func (ex *Executor) execScan(n *plan.ScanNode) (*dataframe.DataFrame, error) {
	it, err := n.Source.Scan(scan.ScanRequest{
		Columns:   n.Projection,
		Predicate: n.Predicate,
	})
	if err != nil {
		return nil, err
	}
	return scan.Collect(it, n.Schema())
}

// execFilter applies the Boolean mask to every column in lockstep. Large
// frames filter per row range on the pool; ranges concatenate in order.
// Window predicates see the whole frame: a per-range evaluation would
// compute each range's own window.
func (ex *Executor) execFilter(df *dataframe.DataFrame, pred expr.Expr) (*dataframe.DataFrame, error) {
	if df.Len() < ex.cfg.ParallelThreshold || expr.ContainsWindow(pred) {
		return scan.FilterFrame(ex.mem, df, pred)
	}
	ranges := parallel.SplitRows(df.Len(), ex.pool.NumWorkers())
	parts, err := parallel.ProcessIndexed(ex.pool, ranges,
		func(_ int, r parallel.RowRange) (*dataframe.DataFrame, error) {
			part, err := df.Slice(r.Start, r.End-r.Start)
			if err != nil {
				return nil, err
			}
			return scan.FilterFrame(ex.mem, part, pred)
		})
	if err != nil {
		return nil, err
	}
	return concatFrames(parts)
}

// execSelect evaluates each output expression against the full input.
// Window-free expressions over large frames evaluate per row range.
func (ex *Executor) execSelect(df *dataframe.DataFrame, exprs []expr.Expr) (*dataframe.DataFrame, error) {
	in, err := expr.NewInput(df.Columns())
	if err != nil {
		return nil, err
	}
	ev := expr.NewEvaluator(ex.mem)

	cols, err := parallel.ProcessIndexed(ex.pool, exprs,
		func(_ int, e expr.Expr) (*series.Series, error) {
			return ev.EvalSeries(e, in)
		})
	if err != nil {
		return nil, err
	}
	out, err := dataframe.New(cols...)
	if err != nil {
		return nil, err
	}
	if out.Width() > 0 && df.Len() != out.Len() && len(exprs) > 0 {
		return nil, errors.NewComputeError("select",
			fmt.Sprintf("expression produced %d rows, expected %d", out.Len(), df.Len()))
	}
	return out, nil
}

func (ex *Executor) execUnion(ctx context.Context, n *plan.UnionNode) (*dataframe.DataFrame, error) {
	frames := make([]*dataframe.DataFrame, len(n.Nodes))
	for i, in := range n.Nodes {
		df, err := ex.Execute(ctx, in)
		if err != nil {
			return nil, err
		}
		frames[i] = df
	}
	return concatFrames(frames)
}

// concatFrames stacks frames row-wise in slice order. Schemas must match;
// the result holds the inputs' chunks without copying.
func concatFrames(frames []*dataframe.DataFrame) (*dataframe.DataFrame, error) {
	if len(frames) == 0 {
		return dataframe.Empty(), nil
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

func (ex *Executor) execDistinct(df *dataframe.DataFrame, subset []string) (*dataframe.DataFrame, error) {
	keyNames := subset
	if len(keyNames) == 0 {
		keyNames = df.ColumnNames()
	}
	keys := make([]*series.Series, len(keyNames))
	for i, name := range keyNames {
		col, err := df.Column(name)
		if err != nil {
			return nil, err
		}
		keys[i] = col
	}

	groups, _ := expr.PartitionRows(keys, df.Len())
	indices := make([]int, len(groups))
	for g, rows := range groups {
		indices[g] = rows[0]
	}
	return takeFrame(ex.mem, df, indices)
}

// takeFrame gathers rows at indices from every column.
func takeFrame(mem memory.Allocator, df *dataframe.DataFrame, indices []int) (*dataframe.DataFrame, error) {
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
