package exec

import (
	"fmt"

	"github.com/paveg/ibis/internal/dataframe"
	"github.com/paveg/ibis/internal/expr"
	"github.com/paveg/ibis/internal/parallel"
	"github.com/paveg/ibis/internal/plan"
	"github.com/paveg/ibis/internal/series"
)

// execGroupBy hash-partitions the input on its key columns and evaluates
// each aggregation expression per group. Null keys form their own group and
// output groups appear in first-occurrence order, so results are
// deterministic for a given input order.
func (ex *Executor) execGroupBy(df *dataframe.DataFrame, n *plan.GroupByNode) (*dataframe.DataFrame, error) {
	keys := make([]*series.Series, len(n.Keys))
	for i, name := range n.Keys {
		col, err := df.Column(name)
		if err != nil {
			return nil, err
		}
		keys[i] = col
	}

	var groups [][]int
	if len(keys) == 0 {
		// Global aggregation: every row belongs to the single group, and an
		// empty input still produces one output row.
		rows := make([]int, df.Len())
		for i := range rows {
			rows[i] = i
		}
		groups = [][]int{rows}
	} else {
		groups, _ = expr.PartitionRows(keys, df.Len())
	}

	// Key columns carry the first row of each group. PartitionRows never
	// produces an empty group.
	cols := make([]*series.Series, 0, len(n.Keys)+len(n.Aggs))
	if len(keys) > 0 {
		firsts := make([]int, len(groups))
		for g, rows := range groups {
			firsts[g] = rows[0]
		}
		for _, key := range keys {
			taken, err := key.Take(ex.mem, firsts)
			if err != nil {
				return nil, err
			}
			cols = append(cols, taken)
		}
	}

	in, err := expr.NewInput(df.Columns())
	if err != nil {
		return nil, err
	}
	aggCols, err := parallel.ProcessIndexed(ex.pool, n.Aggs,
		func(_ int, e expr.Expr) (*series.Series, error) {
			return ex.evalAggExpr(e, in, groups)
		})
	if err != nil {
		return nil, err
	}
	cols = append(cols, aggCols...)
	return dataframe.New(cols...)
}

// evalAggExpr evaluates one aggregation output. The expression may combine
// several aggregations arithmetically, e.g. Sum(a).Div(Count(a)); each
// embedded aggregation is computed per group, then the surrounding
// expression runs over the group-level columns.
func (ex *Executor) evalAggExpr(e expr.Expr, in *expr.Input, groups [][]int) (*series.Series, error) {
	ev := expr.NewEvaluator(ex.mem)

	aggCols := make([]*series.Series, 0, 2)
	colFor := make(map[string]string)
	var walkErr error
	expr.Walk(e, func(sub expr.Expr) {
		agg, ok := sub.(*expr.AggregationExpr)
		if !ok || walkErr != nil {
			return
		}
		key := agg.String()
		if _, done := colFor[key]; done {
			return
		}
		name := fmt.Sprintf("__agg_%d", len(aggCols))
		col, err := ex.aggregateColumn(ev, agg, in, groups, name)
		if err != nil {
			walkErr = err
			return
		}
		aggCols = append(aggCols, col)
		colFor[key] = name
	})
	if walkErr != nil {
		return nil, walkErr
	}

	// Replace each aggregation subtree with a reference to its per-group
	// column, then evaluate the remainder at group granularity.
	rewritten := expr.Rewrite(e, func(sub expr.Expr) expr.Expr {
		if _, ok := sub.(*expr.AggregationExpr); ok {
			if name, found := colFor[sub.String()]; found {
				return expr.Col(name)
			}
		}
		return sub
	})
	groupIn, err := expr.NewInput(aggCols)
	if err != nil {
		return nil, err
	}
	out, err := ev.EvalSeries(rewritten, groupIn)
	if err != nil {
		return nil, err
	}
	return out.Rename(expr.OutputName(e)), nil
}

func (ex *Executor) aggregateColumn(ev *expr.Evaluator, agg *expr.AggregationExpr, in *expr.Input, groups [][]int, name string) (*series.Series, error) {
	if agg.AggType() == expr.AggCountAll {
		counts := make([]int64, len(groups))
		for g, rows := range groups {
			counts[g] = int64(len(rows))
		}
		return series.NewWithNulls(name, counts, nil, ex.mem), nil
	}
	arr, err := ev.Eval(agg.Inner(), in)
	if err != nil {
		return nil, err
	}
	defer arr.Release()
	out, err := expr.AggregateGroups(ex.mem, agg.AggType(), arr, groups)
	if err != nil {
		return nil, err
	}
	defer out.Release()
	return series.FromArray(name, out), nil
}
