// Package plan provides the logical plan: a tree of relational operators
// each carrying expressions and a derived schema.
//
// Construction is fail-fast: every node constructor validates its
// expressions against the input schema and computes the output schema
// bottom-up, so an invalid query errors at build time, before any data is
// read. Nodes are immutable after construction and safely shared across
// goroutines; the optimizer builds rewritten trees instead of mutating.
package plan

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/cespare/xxhash/v2"

	"github.com/paveg/ibis/internal/dataframe"
	ierrors "github.com/paveg/ibis/internal/errors"
	"github.com/paveg/ibis/internal/expr"
	"github.com/paveg/ibis/internal/scan"
	"github.com/paveg/ibis/internal/schema"
)

// Node is a logical plan operator. Schema is derived at construction and
// never requires executing the plan.
type Node interface {
	Schema() *schema.Schema
	Inputs() []Node
	String() string
}

// JoinType enumerates join semantics.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
	JoinOuter
	JoinSemi
	JoinAnti
)

// String returns the join type's name.
func (j JoinType) String() string {
	switch j {
	case JoinInner:
		return "inner"
	case JoinLeft:
		return "left"
	case JoinRight:
		return "right"
	case JoinOuter:
		return "outer"
	case JoinSemi:
		return "semi"
	case JoinAnti:
		return "anti"
	default:
		return "unknown"
	}
}

// RightSuffix disambiguates right-side column names that collide with left
// columns in join output.
const RightSuffix = "_right"

// ScanNode is a plan leaf reading from a Source. Projection and Predicate
// are pushdown slots filled by the optimizer; both empty means a full read.
type ScanNode struct {
	Source     scan.Source
	Projection []string
	Predicate  expr.Expr

	sourceSchema *schema.Schema
	outSchema    *schema.Schema
}

func (n *ScanNode) Schema() *schema.Schema { return n.outSchema }
func (n *ScanNode) Inputs() []Node         { return nil }

// SourceSchema returns the unprojected source schema.
func (n *ScanNode) SourceSchema() *schema.Schema { return n.sourceSchema }

func (n *ScanNode) String() string {
	name := "scan"
	if named, ok := n.Source.(scan.Name); ok {
		name = fmt.Sprintf("scan(%s)", named.Name())
	}
	var opts []string
	if n.Projection != nil {
		opts = append(opts, fmt.Sprintf("project=[%s]", strings.Join(n.Projection, ", ")))
	}
	if n.Predicate != nil {
		opts = append(opts, fmt.Sprintf("filter=%s", n.Predicate.String()))
	}
	if len(opts) > 0 {
		return fmt.Sprintf("%s{%s}", name, strings.Join(opts, ", "))
	}
	return name
}

// NewScan creates a scan leaf over a source.
func NewScan(source scan.Source) (*ScanNode, error) {
	sch, err := source.Schema()
	if err != nil {
		return nil, err
	}
	return &ScanNode{Source: source, sourceSchema: sch, outSchema: sch}, nil
}

// WithPushdown returns a scan copy carrying the given projection and
// predicate slots.
func (n *ScanNode) WithPushdown(projection []string, predicate expr.Expr) (*ScanNode, error) {
	out := n.sourceSchema
	if projection != nil {
		selected, err := n.sourceSchema.Select(projection...)
		if err != nil {
			return nil, err
		}
		out = selected
	}
	return &ScanNode{
		Source:       n.Source,
		Projection:   projection,
		Predicate:    predicate,
		sourceSchema: n.sourceSchema,
		outSchema:    out,
	}, nil
}

// FilterNode keeps input rows where the predicate is true.
type FilterNode struct {
	Input     Node
	Predicate expr.Expr
}

func (n *FilterNode) Schema() *schema.Schema { return n.Input.Schema() }
func (n *FilterNode) Inputs() []Node         { return []Node{n.Input} }
func (n *FilterNode) String() string {
	return fmt.Sprintf("filter(%s)", n.Predicate.String())
}

// NewFilter validates the predicate against the input schema: it must
// reference only existing columns and type to Boolean.
func NewFilter(input Node, predicate expr.Expr) (*FilterNode, error) {
	if err := CheckPredicate(predicate, input.Schema()); err != nil {
		return nil, err
	}
	return &FilterNode{Input: input, Predicate: predicate}, nil
}

// SelectNode evaluates expressions to produce the output columns.
type SelectNode struct {
	Input Node
	Exprs []expr.Expr

	outSchema *schema.Schema
}

func (n *SelectNode) Schema() *schema.Schema { return n.outSchema }
func (n *SelectNode) Inputs() []Node         { return []Node{n.Input} }
func (n *SelectNode) String() string {
	parts := make([]string, len(n.Exprs))
	for i, e := range n.Exprs {
		parts[i] = e.String()
	}
	return fmt.Sprintf("select(%s)", strings.Join(parts, ", "))
}

// NewSelect expands wildcards, type-checks every expression and derives the
// output schema. Duplicate output names and bare aggregations are rejected.
func NewSelect(input Node, exprs []expr.Expr) (*SelectNode, error) {
	expanded, err := ExpandWildcards(exprs, input.Schema())
	if err != nil {
		return nil, err
	}
	fields, err := deriveFields(expanded, input.Schema(), "select")
	if err != nil {
		return nil, err
	}
	for _, e := range expanded {
		if expr.ContainsAggregation(e) {
			return nil, ierrors.NewSchemaError("select",
				fmt.Sprintf("aggregation %s requires GroupBy or a global aggregation", e.String()))
		}
	}
	out, err := schema.New(fields...)
	if err != nil {
		return nil, err
	}
	return &SelectNode{Input: input, Exprs: expanded, outSchema: out}, nil
}

// GroupByNode groups by key columns and reduces each group with the
// aggregation expressions. Output order is first-seen group order.
type GroupByNode struct {
	Input Node
	Keys  []string
	Aggs  []expr.Expr

	outSchema *schema.Schema
}

func (n *GroupByNode) Schema() *schema.Schema { return n.outSchema }
func (n *GroupByNode) Inputs() []Node         { return []Node{n.Input} }
func (n *GroupByNode) String() string {
	parts := make([]string, len(n.Aggs))
	for i, e := range n.Aggs {
		parts[i] = e.String()
	}
	return fmt.Sprintf("groupby(keys=[%s], aggs=[%s])",
		strings.Join(n.Keys, ", "), strings.Join(parts, ", "))
}

// NewGroupBy validates keys and aggregations. Every aggregation expression
// must contain an actual aggregation; keys must exist in the input.
func NewGroupBy(input Node, keys []string, aggs []expr.Expr) (*GroupByNode, error) {
	in := input.Schema()
	fields := make([]arrow.Field, 0, len(keys)+len(aggs))
	for _, key := range keys {
		f, err := in.FieldByName(key)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	for _, agg := range aggs {
		if !expr.ContainsAggregation(agg) {
			return nil, ierrors.NewSchemaError("groupby",
				fmt.Sprintf("%s is not an aggregation", agg.String()))
		}
		dt, err := expr.TypeOf(agg, in)
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: expr.OutputName(agg), Type: dt, Nullable: true})
	}
	out, err := schema.New(fields...)
	if err != nil {
		return nil, err
	}
	return &GroupByNode{Input: input, Keys: keys, Aggs: aggs, outSchema: out}, nil
}

// JoinNode combines two inputs on equality keys.
type JoinNode struct {
	Left    Node
	Right   Node
	LeftOn  []string
	RightOn []string
	How     JoinType

	outSchema *schema.Schema
}

func (n *JoinNode) Schema() *schema.Schema { return n.outSchema }
func (n *JoinNode) Inputs() []Node         { return []Node{n.Left, n.Right} }
func (n *JoinNode) String() string {
	return fmt.Sprintf("join(how=%s, left_on=[%s], right_on=[%s])",
		n.How, strings.Join(n.LeftOn, ", "), strings.Join(n.RightOn, ", "))
}

// NewJoin validates join keys: both sides' key lists must have equal length
// and pairwise equal types. Semi and anti joins keep the left schema;
// other joins append the right side's non-key columns, suffixing name
// collisions.
func NewJoin(left, right Node, leftOn, rightOn []string, how JoinType) (*JoinNode, error) {
	if len(leftOn) == 0 || len(leftOn) != len(rightOn) {
		return nil, ierrors.NewSchemaError("join",
			fmt.Sprintf("key lists must be non-empty and equal length, got %d and %d",
				len(leftOn), len(rightOn)))
	}
	ls, rs := left.Schema(), right.Schema()
	for i := range leftOn {
		lt, err := ls.DataType(leftOn[i])
		if err != nil {
			return nil, err
		}
		rt, err := rs.DataType(rightOn[i])
		if err != nil {
			return nil, err
		}
		if !typesJoinable(lt, rt) {
			return nil, ierrors.NewTypeError("join",
				fmt.Sprintf("key %s (%s) does not match %s (%s)", leftOn[i], lt, rightOn[i], rt))
		}
	}

	var out *schema.Schema
	var err error
	if how == JoinSemi || how == JoinAnti {
		out = ls
	} else {
		rightKeys := make(map[string]struct{}, len(rightOn))
		for _, k := range rightOn {
			rightKeys[k] = struct{}{}
		}
		keep := make([]string, 0, rs.Len())
		for _, name := range rs.Names() {
			if _, isKey := rightKeys[name]; !isKey {
				keep = append(keep, name)
			}
		}
		trimmed, serr := rs.Select(keep...)
		if serr != nil {
			return nil, serr
		}
		out, err = ls.Merge(trimmed, RightSuffix)
		if err != nil {
			return nil, err
		}
	}
	return &JoinNode{Left: left, Right: right, LeftOn: leftOn, RightOn: rightOn, How: how, outSchema: out}, nil
}

// SortNode orders rows by the given keys. The sort is stable; nulls place
// last unless a key says otherwise.
type SortNode struct {
	Input Node
	Keys  []*expr.SortKeyExpr
}

func (n *SortNode) Schema() *schema.Schema { return n.Input.Schema() }
func (n *SortNode) Inputs() []Node         { return []Node{n.Input} }
func (n *SortNode) String() string {
	parts := make([]string, len(n.Keys))
	for i, k := range n.Keys {
		parts[i] = k.String()
	}
	return fmt.Sprintf("sort(%s)", strings.Join(parts, ", "))
}

// NewSort validates that each key expression types to an ordered type.
func NewSort(input Node, keys []*expr.SortKeyExpr) (*SortNode, error) {
	if len(keys) == 0 {
		return nil, ierrors.NewSchemaError("sort", "at least one sort key required")
	}
	in := input.Schema()
	for _, key := range keys {
		dt, err := expr.TypeOf(key, in)
		if err != nil {
			return nil, err
		}
		if !orderable(dt) {
			return nil, ierrors.NewTypeError("sort",
				fmt.Sprintf("%s is not ordered", dt)).WithExpr(key.String())
		}
	}
	return &SortNode{Input: input, Keys: keys}, nil
}

// DistinctNode drops duplicate rows, keeping the first occurrence. An
// empty subset means all columns form the key.
type DistinctNode struct {
	Input  Node
	Subset []string
}

func (n *DistinctNode) Schema() *schema.Schema { return n.Input.Schema() }
func (n *DistinctNode) Inputs() []Node         { return []Node{n.Input} }
func (n *DistinctNode) String() string {
	if len(n.Subset) == 0 {
		return "distinct"
	}
	return fmt.Sprintf("distinct(subset=[%s])", strings.Join(n.Subset, ", "))
}

// NewDistinct validates the subset columns exist.
func NewDistinct(input Node, subset []string) (*DistinctNode, error) {
	in := input.Schema()
	for _, name := range subset {
		if !in.Has(name) {
			return nil, ierrors.NewColumnNotFoundError("distinct", name)
		}
	}
	return &DistinctNode{Input: input, Subset: subset}, nil
}

// UnionNode concatenates inputs row-wise. All inputs share one schema.
type UnionNode struct {
	Nodes []Node
}

func (n *UnionNode) Schema() *schema.Schema { return n.Nodes[0].Schema() }
func (n *UnionNode) Inputs() []Node         { return n.Nodes }
func (n *UnionNode) String() string {
	return fmt.Sprintf("union(%d inputs)", len(n.Nodes))
}

// NewUnion validates every input schema equals the first.
func NewUnion(inputs []Node) (*UnionNode, error) {
	if len(inputs) == 0 {
		return nil, ierrors.NewSchemaError("union", "at least one input required")
	}
	first := inputs[0].Schema()
	for i, in := range inputs[1:] {
		if !first.Equal(in.Schema()) {
			return nil, ierrors.NewSchemaError("union",
				fmt.Sprintf("input %d schema does not match the first input", i+1))
		}
	}
	return &UnionNode{Nodes: inputs}, nil
}

// SliceNode keeps rows [Offset, Offset+Length). A negative offset counts
// from the end; a negative length means to the end.
type SliceNode struct {
	Input  Node
	Offset int
	Length int
}

func (n *SliceNode) Schema() *schema.Schema { return n.Input.Schema() }
func (n *SliceNode) Inputs() []Node         { return []Node{n.Input} }
func (n *SliceNode) String() string {
	return fmt.Sprintf("slice(offset=%d, length=%d)", n.Offset, n.Length)
}

// NewSlice creates a row window node.
func NewSlice(input Node, offset, length int) *SliceNode {
	return &SliceNode{Input: input, Offset: offset, Length: length}
}

// MapNode applies a caller-provided frame transform. The caller declares
// the output schema; execution verifies it.
type MapNode struct {
	Input     Node
	Fn        func(*dataframe.DataFrame) (*dataframe.DataFrame, error)
	outSchema *schema.Schema
}

func (n *MapNode) Schema() *schema.Schema { return n.outSchema }
func (n *MapNode) Inputs() []Node         { return []Node{n.Input} }
func (n *MapNode) String() string         { return "map_function" }

// NewMap creates a user-function node with a declared output schema.
func NewMap(input Node, fn func(*dataframe.DataFrame) (*dataframe.DataFrame, error), out *schema.Schema) (*MapNode, error) {
	if fn == nil {
		return nil, ierrors.NewSchemaError("map", "nil function")
	}
	if out == nil {
		out = input.Schema()
	}
	return &MapNode{Input: input, Fn: fn, outSchema: out}, nil
}

// Explain renders the plan tree, one node per line, children indented.
func Explain(n Node) string {
	var sb strings.Builder
	explainInto(&sb, n, 0)
	return sb.String()
}

func explainInto(sb *strings.Builder, n Node, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(n.String())
	sb.WriteByte('\n')
	for _, in := range n.Inputs() {
		explainInto(sb, in, depth+1)
	}
}

// Fingerprint hashes the rendered plan tree. The optimizer uses it to
// detect that a pass pipeline reached a fixpoint.
func Fingerprint(n Node) uint64 {
	return xxhash.Sum64String(Explain(n))
}
