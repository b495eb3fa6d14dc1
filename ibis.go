// Package ibis provides a columnar DataFrame library backed by Apache
// Arrow. This package is the sole public API: frames are built from typed
// Series, queries are composed lazily as expression trees over a logical
// plan, and Collect optimizes and executes the plan.
package ibis

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/ibis/internal/config"
	"github.com/paveg/ibis/internal/dataframe"
	"github.com/paveg/ibis/internal/expr"
	"github.com/paveg/ibis/internal/plan"
	"github.com/paveg/ibis/internal/schema"
	"github.com/paveg/ibis/internal/series"
)

// DataFrame is an ordered collection of equal-length Series.
type DataFrame = dataframe.DataFrame

// Series is a named, typed, nullable column.
type Series = series.Series

// Schema describes a frame's column names and types.
type Schema = schema.Schema

// Expr is a node in an expression tree.
type Expr = expr.Expr

// SortKey wraps an expression with sort direction and null placement.
type SortKey = expr.SortKeyExpr

// Config controls execution and optimizer behavior.
type Config = config.Config

// NewDataFrame builds a frame from columns. All columns must have the same
// length and distinct names.
func NewDataFrame(cols ...*Series) (*DataFrame, error) {
	return dataframe.New(cols...)
}

// NewSeries builds a typed column from values and an optional validity
// mask. A nil mask means every value is valid.
func NewSeries[T any](name string, values []T, valid []bool) *Series {
	return series.NewWithNulls(name, values, valid, memory.DefaultAllocator)
}

// Concat vertically appends frames with identical schemas, preserving row
// order. Chunks are shared, not copied.
func Concat(frames ...*DataFrame) (*DataFrame, error) {
	return dataframe.Concat(frames...)
}

// Col references a column by name.
func Col(name string) *expr.ColumnExpr { return expr.Col(name) }

// Lit wraps a Go value as a literal. Untyped int literals become int64.
func Lit(value any) *expr.LiteralExpr { return expr.Lit(value) }

// NullLit is a typed null literal.
func NullLit(dtype arrow.DataType) *expr.LiteralExpr { return expr.NullLit(dtype) }

// Wildcard selects every input column.
func Wildcard() expr.Expr { return expr.Wildcard() }

// Not negates a Boolean expression.
func Not(e Expr) *expr.UnaryExpr { return expr.Not(e) }

// Neg negates a numeric expression.
func Neg(e Expr) *expr.UnaryExpr { return expr.Neg(e) }

// Coalesce returns the first non-null argument per row.
func Coalesce(exprs ...Expr) *expr.FunctionExpr { return expr.Coalesce(exprs...) }

// ConcatStr concatenates string expressions per row.
func ConcatStr(exprs ...Expr) *expr.FunctionExpr { return expr.ConcatStr(exprs...) }

// Aggregations. Sum, Mean, Min, Max, Std and Var skip nulls; Count counts
// non-null values; CountAll counts rows.
func Sum(e Expr) *expr.AggregationExpr      { return expr.Sum(e) }
func Mean(e Expr) *expr.AggregationExpr     { return expr.Mean(e) }
func Min(e Expr) *expr.AggregationExpr      { return expr.Min(e) }
func Max(e Expr) *expr.AggregationExpr      { return expr.Max(e) }
func Std(e Expr) *expr.AggregationExpr      { return expr.Std(e) }
func Var(e Expr) *expr.AggregationExpr      { return expr.Var(e) }
func Count(e Expr) *expr.AggregationExpr    { return expr.Count(e) }
func CountAll(e Expr) *expr.AggregationExpr { return expr.CountAll(e) }
func First(e Expr) *expr.AggregationExpr    { return expr.First(e) }
func Last(e Expr) *expr.AggregationExpr     { return expr.Last(e) }

// JoinType selects join semantics.
type JoinType = plan.JoinType

const (
	JoinInner = plan.JoinInner
	JoinLeft  = plan.JoinLeft
	JoinRight = plan.JoinRight
	JoinOuter = plan.JoinOuter
	JoinSemi  = plan.JoinSemi
	JoinAnti  = plan.JoinAnti
)

// NewConfig returns a Config populated with defaults.
func NewConfig() Config { return config.NewConfig() }

// SetGlobalConfig replaces the process-wide configuration used by frames
// that carry no explicit config.
func SetGlobalConfig(cfg Config) { config.SetGlobalConfig(cfg) }

// GetGlobalConfig returns the process-wide configuration.
func GetGlobalConfig() Config { return config.GetGlobalConfig() }

// LoadConfigFromFile reads a JSON or YAML configuration file.
func LoadConfigFromFile(path string) (Config, error) { return config.LoadFromFile(path) }
