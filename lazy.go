package ibis

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/ibis/internal/config"
	"github.com/paveg/ibis/internal/exec"
	"github.com/paveg/ibis/internal/expr"
	"github.com/paveg/ibis/internal/plan"
	"github.com/paveg/ibis/internal/scan"
)

// LazyFrame is a deferred query: builder methods grow a logical plan
// without touching data, and Collect optimizes and executes it. Plan
// construction is validated eagerly against the known schema; the first
// builder error sticks to the frame and is returned by Err and Collect, so
// chains stay fluent.
type LazyFrame struct {
	node plan.Node
	cfg  *Config
	err  error
}

// Lazy starts a query over an in-memory frame.
func Lazy(df *DataFrame) *LazyFrame {
	source := scan.NewInMemorySource(df, memory.DefaultAllocator)
	node, err := plan.NewScan(source)
	if err != nil {
		return &LazyFrame{err: err}
	}
	return &LazyFrame{node: node}
}

// Scan starts a query over any scan source.
func Scan(source scan.Source) *LazyFrame {
	node, err := plan.NewScan(source)
	if err != nil {
		return &LazyFrame{err: err}
	}
	return &LazyFrame{node: node}
}

// Err reports the first plan construction error, if any.
func (lf *LazyFrame) Err() error { return lf.err }

// Schema returns the frame's output schema. It is nil on a failed frame.
func (lf *LazyFrame) Schema() *Schema {
	if lf.err != nil {
		return nil
	}
	return lf.node.Schema()
}

// WithConfig pins an execution configuration to this frame, overriding the
// global one.
func (lf *LazyFrame) WithConfig(cfg Config) *LazyFrame {
	if lf.err != nil {
		return lf
	}
	return &LazyFrame{node: lf.node, cfg: &cfg}
}

func (lf *LazyFrame) derive(node plan.Node, err error) *LazyFrame {
	if lf.err != nil {
		return lf
	}
	if err != nil {
		return &LazyFrame{cfg: lf.cfg, err: err}
	}
	return &LazyFrame{node: node, cfg: lf.cfg}
}

// Filter keeps rows where the predicate evaluates to true. Rows where it is
// null or false are dropped.
func (lf *LazyFrame) Filter(predicate Expr) *LazyFrame {
	if lf.err != nil {
		return lf
	}
	node, err := plan.NewFilter(lf.node, predicate)
	return lf.derive(node, err)
}

// Select projects the given expressions. A standalone Wildcard expands to
// every input column.
func (lf *LazyFrame) Select(exprs ...Expr) *LazyFrame {
	if lf.err != nil {
		return lf
	}
	node, err := plan.NewSelect(lf.node, exprs)
	return lf.derive(node, err)
}

// WithColumn adds a derived column, or replaces an existing column of the
// same output name in place.
func (lf *LazyFrame) WithColumn(e Expr) *LazyFrame {
	if lf.err != nil {
		return lf
	}
	name := expr.OutputName(e)
	exprs := make([]Expr, 0, lf.node.Schema().Len()+1)
	replaced := false
	for _, col := range lf.node.Schema().Names() {
		if col == name {
			exprs = append(exprs, e)
			replaced = true
		} else {
			exprs = append(exprs, expr.Col(col))
		}
	}
	if !replaced {
		exprs = append(exprs, e)
	}
	node, err := plan.NewSelect(lf.node, exprs)
	return lf.derive(node, err)
}

// Drop removes the named columns.
func (lf *LazyFrame) Drop(names ...string) *LazyFrame {
	if lf.err != nil {
		return lf
	}
	dropped := make(map[string]struct{}, len(names))
	for _, n := range names {
		dropped[n] = struct{}{}
	}
	var exprs []Expr
	for _, col := range lf.node.Schema().Names() {
		if _, skip := dropped[col]; !skip {
			exprs = append(exprs, expr.Col(col))
		}
	}
	node, err := plan.NewSelect(lf.node, exprs)
	return lf.derive(node, err)
}

// LazyGroupBy is a grouping awaiting its aggregations.
type LazyGroupBy struct {
	lf   *LazyFrame
	keys []string
}

// GroupBy partitions by the named key columns. With no keys the whole frame
// forms a single group, yielding exactly one output row.
func (lf *LazyFrame) GroupBy(keys ...string) *LazyGroupBy {
	return &LazyGroupBy{lf: lf, keys: keys}
}

// Agg finishes the grouping. Each expression must contain an aggregation;
// output columns are the keys followed by the aggregations.
func (g *LazyGroupBy) Agg(aggs ...Expr) *LazyFrame {
	if g.lf.err != nil {
		return g.lf
	}
	node, err := plan.NewGroupBy(g.lf.node, g.keys, aggs)
	return g.lf.derive(node, err)
}

// JoinOptions configures a join. On is shorthand for identical LeftOn and
// RightOn.
type JoinOptions struct {
	On      []string
	LeftOn  []string
	RightOn []string
	How     JoinType
}

// Join combines two frames on equality of their key tuples. Rows with a
// null key never match.
func (lf *LazyFrame) Join(other *LazyFrame, opts JoinOptions) *LazyFrame {
	if lf.err != nil {
		return lf
	}
	if other.err != nil {
		return lf.derive(nil, other.err)
	}
	leftOn, rightOn := opts.LeftOn, opts.RightOn
	if len(opts.On) > 0 {
		leftOn, rightOn = opts.On, opts.On
	}
	node, err := plan.NewJoin(lf.node, other.node, leftOn, rightOn, opts.How)
	return lf.derive(node, err)
}

// Sort orders rows by the given keys, stably. Use Col("x").Asc() or
// .Desc(); nulls sort last unless the key requests otherwise.
func (lf *LazyFrame) Sort(keys ...*SortKey) *LazyFrame {
	if lf.err != nil {
		return lf
	}
	node, err := plan.NewSort(lf.node, keys)
	return lf.derive(node, err)
}

// SortBy sorts ascending by the named columns.
func (lf *LazyFrame) SortBy(names ...string) *LazyFrame {
	keys := make([]*SortKey, len(names))
	for i, n := range names {
		keys[i] = expr.Col(n).Asc()
	}
	return lf.Sort(keys...)
}

// Distinct keeps the first occurrence of each distinct row. With a subset,
// distinctness is judged on those columns only.
func (lf *LazyFrame) Distinct(subset ...string) *LazyFrame {
	if lf.err != nil {
		return lf
	}
	node, err := plan.NewDistinct(lf.node, subset)
	return lf.derive(node, err)
}

// Union concatenates frames with identical schemas, preserving row order
// and duplicates.
func (lf *LazyFrame) Union(others ...*LazyFrame) *LazyFrame {
	if lf.err != nil {
		return lf
	}
	nodes := make([]plan.Node, 0, len(others)+1)
	nodes = append(nodes, lf.node)
	for _, o := range others {
		if o.err != nil {
			return lf.derive(nil, o.err)
		}
		nodes = append(nodes, o.node)
	}
	node, err := plan.NewUnion(nodes)
	return lf.derive(node, err)
}

// Slice keeps length rows starting at offset. A negative offset counts from
// the end; a negative length extends to the end. Out-of-range bounds clamp.
func (lf *LazyFrame) Slice(offset, length int) *LazyFrame {
	if lf.err != nil {
		return lf
	}
	return lf.derive(plan.NewSlice(lf.node, offset, length), nil)
}

// Head keeps the first n rows.
func (lf *LazyFrame) Head(n int) *LazyFrame { return lf.Slice(0, n) }

// Tail keeps the last n rows.
func (lf *LazyFrame) Tail(n int) *LazyFrame { return lf.Slice(-n, -1) }

// Map applies an arbitrary frame function whose output schema is declared
// up front. The optimizer treats it as a barrier.
func (lf *LazyFrame) Map(fn func(*DataFrame) (*DataFrame, error), out *Schema) *LazyFrame {
	if lf.err != nil {
		return lf
	}
	node, err := plan.NewMap(lf.node, fn, out)
	return lf.derive(node, err)
}

func (lf *LazyFrame) config() Config {
	if lf.cfg != nil {
		return *lf.cfg
	}
	return config.GetGlobalConfig()
}

func (lf *LazyFrame) optimized() (plan.Node, error) {
	if lf.err != nil {
		return nil, lf.err
	}
	return plan.NewOptimizer(lf.config()).Optimize(lf.node)
}

// Explain renders the optimized plan as an indented tree.
func (lf *LazyFrame) Explain() (string, error) {
	node, err := lf.optimized()
	if err != nil {
		return "", err
	}
	return plan.Explain(node), nil
}

// ExplainLogical renders the plan as built, before optimization.
func (lf *LazyFrame) ExplainLogical() (string, error) {
	if lf.err != nil {
		return "", lf.err
	}
	return plan.Explain(lf.node), nil
}

// Collect optimizes and executes the plan, returning the materialized
// frame.
func (lf *LazyFrame) Collect() (*DataFrame, error) {
	return lf.CollectContext(context.Background())
}

// CollectContext is Collect with a context consulted between operators.
func (lf *LazyFrame) CollectContext(ctx context.Context) (*DataFrame, error) {
	node, err := lf.optimized()
	if err != nil {
		return nil, err
	}
	ex := exec.New(memory.DefaultAllocator, lf.config())
	defer ex.Close()
	return ex.Execute(ctx, node)
}

// Apply runs a lazy query over an eager frame and collects the result.
// It is sugar for Lazy(df), the chain, then Collect.
func Apply(df *DataFrame, build func(*LazyFrame) *LazyFrame) (*DataFrame, error) {
	return build(Lazy(df)).Collect()
}
