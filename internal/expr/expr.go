// Package expr provides the expression system: an immutable AST of column
// references, literals, operators, function calls, casts and aggregation or
// window markers, together with static type inference and a columnar,
// null-aware evaluator.
//
// Expressions are pure: evaluating the same expression against the same
// input always yields the same output. Subtrees are shared freely across
// plan nodes; nothing mutates a node after construction.
package expr

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Kind discriminates expression node types for exhaustive matching.
type Kind int

const (
	KindColumn Kind = iota
	KindLiteral
	KindBinary
	KindUnary
	KindFunction
	KindAggregation
	KindWindow
	KindSortKey
	KindCast
	KindAlias
	KindWildcard
)

// Expr is an immutable expression tree node.
type Expr interface {
	Kind() Kind
	String() string
}

// BinaryOp enumerates binary operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

// String returns the operator's source form.
func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	default:
		return "?"
	}
}

// IsComparison reports whether the operator yields Boolean regardless of
// operand types.
func (op BinaryOp) IsComparison() bool {
	return op >= OpEq && op <= OpGe
}

// IsLogical reports whether the operator combines Boolean operands.
func (op BinaryOp) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
)

// AggType enumerates aggregation kinds.
type AggType int

const (
	AggSum AggType = iota
	AggMean
	AggMin
	AggMax
	AggStd
	AggVar
	AggCount    // non-null count
	AggCountAll // row count including nulls
	AggFirst
	AggLast
)

// String returns the aggregation's function name.
func (a AggType) String() string {
	switch a {
	case AggSum:
		return "sum"
	case AggMean:
		return "mean"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	case AggStd:
		return "std"
	case AggVar:
		return "var"
	case AggCount:
		return "count"
	case AggCountAll:
		return "len"
	case AggFirst:
		return "first"
	case AggLast:
		return "last"
	default:
		return "agg"
	}
}

// ColumnExpr references a named input column.
type ColumnExpr struct {
	name string
}

func (c *ColumnExpr) Kind() Kind     { return KindColumn }
func (c *ColumnExpr) String() string { return fmt.Sprintf("col(%s)", c.name) }
func (c *ColumnExpr) Name() string   { return c.name }

// LiteralExpr holds a typed constant value. A nil value is the typed null
// literal when a data type is attached, otherwise the untyped null.
type LiteralExpr struct {
	value any
	dtype arrow.DataType // optional explicit type; nil means inferred
}

func (l *LiteralExpr) Kind() Kind { return KindLiteral }
func (l *LiteralExpr) String() string {
	if l.value == nil {
		return "lit(null)"
	}
	if s, ok := l.value.(string); ok {
		return fmt.Sprintf("lit(%q)", s)
	}
	return fmt.Sprintf("lit(%v)", l.value)
}
func (l *LiteralExpr) Value() any { return l.value }

// StaticType returns the explicitly attached type or nil.
func (l *LiteralExpr) StaticType() arrow.DataType { return l.dtype }

// BinaryExpr applies a binary operator to two subexpressions.
type BinaryExpr struct {
	left  Expr
	op    BinaryOp
	right Expr
}

func (b *BinaryExpr) Kind() Kind { return KindBinary }
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.left.String(), b.op, b.right.String())
}
func (b *BinaryExpr) Left() Expr  { return b.left }
func (b *BinaryExpr) Op() BinaryOp { return b.op }
func (b *BinaryExpr) Right() Expr { return b.right }

// UnaryExpr applies a unary operator to a subexpression.
type UnaryExpr struct {
	op      UnaryOp
	operand Expr
}

func (u *UnaryExpr) Kind() Kind { return KindUnary }
func (u *UnaryExpr) String() string {
	if u.op == UnaryNeg {
		return fmt.Sprintf("(-%s)", u.operand.String())
	}
	return fmt.Sprintf("(!%s)", u.operand.String())
}
func (u *UnaryExpr) Op() UnaryOp   { return u.op }
func (u *UnaryExpr) Operand() Expr { return u.operand }

// FunctionExpr is a named scalar function call.
type FunctionExpr struct {
	name string
	args []Expr
}

func (f *FunctionExpr) Kind() Kind { return KindFunction }
func (f *FunctionExpr) String() string {
	args := make([]string, len(f.args))
	for i, a := range f.args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", f.name, strings.Join(args, ", "))
}
func (f *FunctionExpr) Name() string { return f.name }
func (f *FunctionExpr) Args() []Expr { return f.args }

// AggregationExpr reduces its inner expression over a group (or the whole
// frame for a global aggregation) to a single value.
type AggregationExpr struct {
	inner Expr
	agg   AggType
}

func (a *AggregationExpr) Kind() Kind { return KindAggregation }
func (a *AggregationExpr) String() string {
	return fmt.Sprintf("%s(%s)", a.agg, a.inner.String())
}
func (a *AggregationExpr) Inner() Expr     { return a.inner }
func (a *AggregationExpr) AggType() AggType { return a.agg }

// WindowExpr evaluates an aggregation per partition and broadcasts the
// result back to every partition member, preserving original row order.
type WindowExpr struct {
	inner       *AggregationExpr
	partitionBy []string
}

func (w *WindowExpr) Kind() Kind { return KindWindow }
func (w *WindowExpr) String() string {
	return fmt.Sprintf("%s.over(%s)", w.inner.String(), strings.Join(w.partitionBy, ", "))
}
func (w *WindowExpr) Inner() *AggregationExpr { return w.inner }
func (w *WindowExpr) PartitionBy() []string   { return w.partitionBy }

// SortKeyExpr wraps an expression with ordering flags for Sort nodes.
// Nulls sort last by default, independent of direction.
type SortKeyExpr struct {
	inner      Expr
	descending bool
	nullsFirst bool
}

func (s *SortKeyExpr) Kind() Kind { return KindSortKey }
func (s *SortKeyExpr) String() string {
	dir := "asc"
	if s.descending {
		dir = "desc"
	}
	if s.nullsFirst {
		return fmt.Sprintf("%s.%s().nulls_first()", s.inner.String(), dir)
	}
	return fmt.Sprintf("%s.%s()", s.inner.String(), dir)
}
func (s *SortKeyExpr) Inner() Expr      { return s.inner }
func (s *SortKeyExpr) Descending() bool { return s.descending }
func (s *SortKeyExpr) NullsFirst() bool { return s.nullsFirst }

// NullsFirst returns a copy that places nulls before all values.
func (s *SortKeyExpr) WithNullsFirst() *SortKeyExpr {
	return &SortKeyExpr{inner: s.inner, descending: s.descending, nullsFirst: true}
}

// CastExpr converts its inner expression to a target type. Strict casts fail
// with a CastError on unrepresentable values; lossy casts yield null there.
// Float-to-integer truncation toward zero is a defined rule in both modes.
type CastExpr struct {
	inner  Expr
	target arrow.DataType
	strict bool
}

func (c *CastExpr) Kind() Kind { return KindCast }
func (c *CastExpr) String() string {
	mode := "strict"
	if !c.strict {
		mode = "lossy"
	}
	return fmt.Sprintf("%s.cast(%s, %s)", c.inner.String(), c.target, mode)
}
func (c *CastExpr) Inner() Expr            { return c.inner }
func (c *CastExpr) Target() arrow.DataType { return c.target }
func (c *CastExpr) Strict() bool           { return c.strict }

// AliasExpr renames the output column of its inner expression.
type AliasExpr struct {
	inner Expr
	name  string
}

func (a *AliasExpr) Kind() Kind     { return KindAlias }
func (a *AliasExpr) String() string { return fmt.Sprintf("%s.alias(%s)", a.inner.String(), a.name) }
func (a *AliasExpr) Inner() Expr    { return a.inner }
func (a *AliasExpr) Name() string   { return a.name }

// WildcardExpr expands to every column of the input schema, in order.
type WildcardExpr struct{}

func (w *WildcardExpr) Kind() Kind     { return KindWildcard }
func (w *WildcardExpr) String() string { return "col(*)" }

// Constructor functions

// Col creates a column reference.
func Col(name string) *ColumnExpr { return &ColumnExpr{name: name} }

// Lit creates a literal from a Go value. Plain int becomes int64.
func Lit(value any) *LiteralExpr {
	if v, ok := value.(int); ok {
		return &LiteralExpr{value: int64(v)}
	}
	return &LiteralExpr{value: value}
}

// NullLit creates a typed null literal.
func NullLit(dtype arrow.DataType) *LiteralExpr {
	return &LiteralExpr{value: nil, dtype: dtype}
}

// Wildcard creates the all-columns marker.
func Wildcard() *WildcardExpr { return &WildcardExpr{} }

// NewBinary creates a binary operator node.
func NewBinary(left Expr, op BinaryOp, right Expr) *BinaryExpr {
	return &BinaryExpr{left: left, op: op, right: right}
}

// NewFunction creates a scalar function call.
func NewFunction(name string, args ...Expr) *FunctionExpr {
	return &FunctionExpr{name: name, args: args}
}

// NewAggregation creates an aggregation over an expression.
func NewAggregation(agg AggType, inner Expr) *AggregationExpr {
	return &AggregationExpr{inner: inner, agg: agg}
}

// NewCast creates a cast node.
func NewCast(inner Expr, target arrow.DataType, strict bool) *CastExpr {
	return &CastExpr{inner: inner, target: target, strict: strict}
}

// NewAlias renames an expression output.
func NewAlias(inner Expr, name string) *AliasExpr {
	return &AliasExpr{inner: inner, name: name}
}

// NewSortKey wraps an expression with a direction.
func NewSortKey(inner Expr, descending bool) *SortKeyExpr {
	return &SortKeyExpr{inner: inner, descending: descending}
}

// Not negates a Boolean expression.
func Not(e Expr) *UnaryExpr { return &UnaryExpr{op: UnaryNot, operand: e} }

// Neg negates a numeric expression.
func Neg(e Expr) *UnaryExpr { return &UnaryExpr{op: UnaryNeg, operand: e} }

// Coalesce returns the first non-null value among its arguments per row.
func Coalesce(exprs ...Expr) *FunctionExpr { return NewFunction("coalesce", exprs...) }

// ConcatStr concatenates string expressions per row.
func ConcatStr(exprs ...Expr) *FunctionExpr { return NewFunction("concat_str", exprs...) }

// Aggregation constructors

// Sum aggregates by summation, ignoring nulls. An empty or all-null input
// yields null.
func Sum(inner Expr) *AggregationExpr { return NewAggregation(AggSum, inner) }

// Mean aggregates by arithmetic mean, ignoring nulls.
func Mean(inner Expr) *AggregationExpr { return NewAggregation(AggMean, inner) }

// Min aggregates by minimum, ignoring nulls.
func Min(inner Expr) *AggregationExpr { return NewAggregation(AggMin, inner) }

// Max aggregates by maximum, ignoring nulls.
func Max(inner Expr) *AggregationExpr { return NewAggregation(AggMax, inner) }

// Std aggregates by sample standard deviation, ignoring nulls.
func Std(inner Expr) *AggregationExpr { return NewAggregation(AggStd, inner) }

// Var aggregates by sample variance, ignoring nulls.
func Var(inner Expr) *AggregationExpr { return NewAggregation(AggVar, inner) }

// Count counts non-null values; an empty group yields 0, not null.
func Count(inner Expr) *AggregationExpr { return NewAggregation(AggCount, inner) }

// CountAll counts all rows including nulls.
func CountAll(inner Expr) *AggregationExpr { return NewAggregation(AggCountAll, inner) }

// First takes the first value in group order, null included.
func First(inner Expr) *AggregationExpr { return NewAggregation(AggFirst, inner) }

// Last takes the last value in group order, null included.
func Last(inner Expr) *AggregationExpr { return NewAggregation(AggLast, inner) }
