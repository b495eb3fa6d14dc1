package expr

import "github.com/apache/arrow-go/v18/arrow"

// Fluent chain methods. Each chainable node type carries the same method
// set so expressions compose naturally:
//
//	Col("price").Mul(Col("qty")).Gt(Lit(100)).As("big_order")
//
// The methods delegate to the package-level constructors; they never mutate
// the receiver.

// ColumnExpr chain methods.

func (c *ColumnExpr) Add(other Expr) *BinaryExpr { return NewBinary(c, OpAdd, other) }
func (c *ColumnExpr) Sub(other Expr) *BinaryExpr { return NewBinary(c, OpSub, other) }
func (c *ColumnExpr) Mul(other Expr) *BinaryExpr { return NewBinary(c, OpMul, other) }
func (c *ColumnExpr) Div(other Expr) *BinaryExpr { return NewBinary(c, OpDiv, other) }
func (c *ColumnExpr) Mod(other Expr) *BinaryExpr { return NewBinary(c, OpMod, other) }
func (c *ColumnExpr) Eq(other Expr) *BinaryExpr  { return NewBinary(c, OpEq, other) }
func (c *ColumnExpr) Ne(other Expr) *BinaryExpr  { return NewBinary(c, OpNe, other) }
func (c *ColumnExpr) Lt(other Expr) *BinaryExpr  { return NewBinary(c, OpLt, other) }
func (c *ColumnExpr) Le(other Expr) *BinaryExpr  { return NewBinary(c, OpLe, other) }
func (c *ColumnExpr) Gt(other Expr) *BinaryExpr  { return NewBinary(c, OpGt, other) }
func (c *ColumnExpr) Ge(other Expr) *BinaryExpr  { return NewBinary(c, OpGe, other) }
func (c *ColumnExpr) And(other Expr) *BinaryExpr { return NewBinary(c, OpAnd, other) }
func (c *ColumnExpr) Or(other Expr) *BinaryExpr  { return NewBinary(c, OpOr, other) }
func (c *ColumnExpr) Neg() *UnaryExpr            { return Neg(c) }
func (c *ColumnExpr) Not() *UnaryExpr            { return Not(c) }

func (c *ColumnExpr) As(name string) *AliasExpr { return NewAlias(c, name) }

func (c *ColumnExpr) Cast(target arrow.DataType) *CastExpr  { return NewCast(c, target, true) }
func (c *ColumnExpr) CastLossy(target arrow.DataType) *CastExpr { return NewCast(c, target, false) }

func (c *ColumnExpr) Asc() *SortKeyExpr  { return NewSortKey(c, false) }
func (c *ColumnExpr) Desc() *SortKeyExpr { return NewSortKey(c, true) }

func (c *ColumnExpr) Sum() *AggregationExpr      { return Sum(c) }
func (c *ColumnExpr) Mean() *AggregationExpr     { return Mean(c) }
func (c *ColumnExpr) Min() *AggregationExpr      { return Min(c) }
func (c *ColumnExpr) Max() *AggregationExpr      { return Max(c) }
func (c *ColumnExpr) Std() *AggregationExpr      { return Std(c) }
func (c *ColumnExpr) Var() *AggregationExpr      { return Var(c) }
func (c *ColumnExpr) Count() *AggregationExpr    { return Count(c) }
func (c *ColumnExpr) CountAll() *AggregationExpr { return CountAll(c) }
func (c *ColumnExpr) First() *AggregationExpr    { return First(c) }
func (c *ColumnExpr) Last() *AggregationExpr     { return Last(c) }

// IsNull tests for null per row, never yielding null itself.
func (c *ColumnExpr) IsNull() *FunctionExpr { return NewFunction("is_null", c) }

// IsNotNull is the complement of IsNull.
func (c *ColumnExpr) IsNotNull() *FunctionExpr { return NewFunction("is_not_null", c) }

// FillNull replaces nulls with the fill expression's value per row.
func (c *ColumnExpr) FillNull(fill Expr) *FunctionExpr {
	return NewFunction("fill_null", c, fill)
}

func (c *ColumnExpr) Abs() *FunctionExpr { return NewFunction("abs", c) }

// LiteralExpr chain methods.

func (l *LiteralExpr) Add(other Expr) *BinaryExpr { return NewBinary(l, OpAdd, other) }
func (l *LiteralExpr) Sub(other Expr) *BinaryExpr { return NewBinary(l, OpSub, other) }
func (l *LiteralExpr) Mul(other Expr) *BinaryExpr { return NewBinary(l, OpMul, other) }
func (l *LiteralExpr) Div(other Expr) *BinaryExpr { return NewBinary(l, OpDiv, other) }
func (l *LiteralExpr) Mod(other Expr) *BinaryExpr { return NewBinary(l, OpMod, other) }
func (l *LiteralExpr) Eq(other Expr) *BinaryExpr  { return NewBinary(l, OpEq, other) }
func (l *LiteralExpr) Ne(other Expr) *BinaryExpr  { return NewBinary(l, OpNe, other) }
func (l *LiteralExpr) Lt(other Expr) *BinaryExpr  { return NewBinary(l, OpLt, other) }
func (l *LiteralExpr) Le(other Expr) *BinaryExpr  { return NewBinary(l, OpLe, other) }
func (l *LiteralExpr) Gt(other Expr) *BinaryExpr  { return NewBinary(l, OpGt, other) }
func (l *LiteralExpr) Ge(other Expr) *BinaryExpr  { return NewBinary(l, OpGe, other) }
func (l *LiteralExpr) And(other Expr) *BinaryExpr { return NewBinary(l, OpAnd, other) }
func (l *LiteralExpr) Or(other Expr) *BinaryExpr  { return NewBinary(l, OpOr, other) }

func (l *LiteralExpr) As(name string) *AliasExpr           { return NewAlias(l, name) }
func (l *LiteralExpr) Cast(target arrow.DataType) *CastExpr { return NewCast(l, target, true) }

// BinaryExpr chain methods.

func (b *BinaryExpr) Add(other Expr) *BinaryExpr { return NewBinary(b, OpAdd, other) }
func (b *BinaryExpr) Sub(other Expr) *BinaryExpr { return NewBinary(b, OpSub, other) }
func (b *BinaryExpr) Mul(other Expr) *BinaryExpr { return NewBinary(b, OpMul, other) }
func (b *BinaryExpr) Div(other Expr) *BinaryExpr { return NewBinary(b, OpDiv, other) }
func (b *BinaryExpr) Mod(other Expr) *BinaryExpr { return NewBinary(b, OpMod, other) }
func (b *BinaryExpr) Eq(other Expr) *BinaryExpr  { return NewBinary(b, OpEq, other) }
func (b *BinaryExpr) Ne(other Expr) *BinaryExpr  { return NewBinary(b, OpNe, other) }
func (b *BinaryExpr) Lt(other Expr) *BinaryExpr  { return NewBinary(b, OpLt, other) }
func (b *BinaryExpr) Le(other Expr) *BinaryExpr  { return NewBinary(b, OpLe, other) }
func (b *BinaryExpr) Gt(other Expr) *BinaryExpr  { return NewBinary(b, OpGt, other) }
func (b *BinaryExpr) Ge(other Expr) *BinaryExpr  { return NewBinary(b, OpGe, other) }
func (b *BinaryExpr) And(other Expr) *BinaryExpr { return NewBinary(b, OpAnd, other) }
func (b *BinaryExpr) Or(other Expr) *BinaryExpr  { return NewBinary(b, OpOr, other) }
func (b *BinaryExpr) Not() *UnaryExpr            { return Not(b) }

func (b *BinaryExpr) As(name string) *AliasExpr { return NewAlias(b, name) }

func (b *BinaryExpr) Cast(target arrow.DataType) *CastExpr  { return NewCast(b, target, true) }
func (b *BinaryExpr) CastLossy(target arrow.DataType) *CastExpr { return NewCast(b, target, false) }

func (b *BinaryExpr) Asc() *SortKeyExpr  { return NewSortKey(b, false) }
func (b *BinaryExpr) Desc() *SortKeyExpr { return NewSortKey(b, true) }

func (b *BinaryExpr) Sum() *AggregationExpr   { return Sum(b) }
func (b *BinaryExpr) Mean() *AggregationExpr  { return Mean(b) }
func (b *BinaryExpr) Min() *AggregationExpr   { return Min(b) }
func (b *BinaryExpr) Max() *AggregationExpr   { return Max(b) }
func (b *BinaryExpr) Count() *AggregationExpr { return Count(b) }

// UnaryExpr chain methods.

func (u *UnaryExpr) Add(other Expr) *BinaryExpr { return NewBinary(u, OpAdd, other) }
func (u *UnaryExpr) Sub(other Expr) *BinaryExpr { return NewBinary(u, OpSub, other) }
func (u *UnaryExpr) Mul(other Expr) *BinaryExpr { return NewBinary(u, OpMul, other) }
func (u *UnaryExpr) Eq(other Expr) *BinaryExpr  { return NewBinary(u, OpEq, other) }
func (u *UnaryExpr) And(other Expr) *BinaryExpr { return NewBinary(u, OpAnd, other) }
func (u *UnaryExpr) Or(other Expr) *BinaryExpr  { return NewBinary(u, OpOr, other) }
func (u *UnaryExpr) As(name string) *AliasExpr  { return NewAlias(u, name) }

// FunctionExpr chain methods.

func (f *FunctionExpr) Add(other Expr) *BinaryExpr { return NewBinary(f, OpAdd, other) }
func (f *FunctionExpr) Sub(other Expr) *BinaryExpr { return NewBinary(f, OpSub, other) }
func (f *FunctionExpr) Mul(other Expr) *BinaryExpr { return NewBinary(f, OpMul, other) }
func (f *FunctionExpr) Div(other Expr) *BinaryExpr { return NewBinary(f, OpDiv, other) }
func (f *FunctionExpr) Eq(other Expr) *BinaryExpr  { return NewBinary(f, OpEq, other) }
func (f *FunctionExpr) Ne(other Expr) *BinaryExpr  { return NewBinary(f, OpNe, other) }
func (f *FunctionExpr) Lt(other Expr) *BinaryExpr  { return NewBinary(f, OpLt, other) }
func (f *FunctionExpr) Gt(other Expr) *BinaryExpr  { return NewBinary(f, OpGt, other) }
func (f *FunctionExpr) And(other Expr) *BinaryExpr { return NewBinary(f, OpAnd, other) }
func (f *FunctionExpr) Or(other Expr) *BinaryExpr  { return NewBinary(f, OpOr, other) }
func (f *FunctionExpr) Not() *UnaryExpr            { return Not(f) }

func (f *FunctionExpr) As(name string) *AliasExpr { return NewAlias(f, name) }

func (f *FunctionExpr) Cast(target arrow.DataType) *CastExpr { return NewCast(f, target, true) }

func (f *FunctionExpr) Asc() *SortKeyExpr  { return NewSortKey(f, false) }
func (f *FunctionExpr) Desc() *SortKeyExpr { return NewSortKey(f, true) }

func (f *FunctionExpr) Sum() *AggregationExpr  { return Sum(f) }
func (f *FunctionExpr) Mean() *AggregationExpr { return Mean(f) }
func (f *FunctionExpr) Min() *AggregationExpr  { return Min(f) }
func (f *FunctionExpr) Max() *AggregationExpr  { return Max(f) }

// AggregationExpr chain methods.

func (a *AggregationExpr) Add(other Expr) *BinaryExpr { return NewBinary(a, OpAdd, other) }
func (a *AggregationExpr) Sub(other Expr) *BinaryExpr { return NewBinary(a, OpSub, other) }
func (a *AggregationExpr) Mul(other Expr) *BinaryExpr { return NewBinary(a, OpMul, other) }
func (a *AggregationExpr) Div(other Expr) *BinaryExpr { return NewBinary(a, OpDiv, other) }
func (a *AggregationExpr) Eq(other Expr) *BinaryExpr  { return NewBinary(a, OpEq, other) }
func (a *AggregationExpr) Gt(other Expr) *BinaryExpr  { return NewBinary(a, OpGt, other) }
func (a *AggregationExpr) Lt(other Expr) *BinaryExpr  { return NewBinary(a, OpLt, other) }

func (a *AggregationExpr) As(name string) *AliasExpr { return NewAlias(a, name) }

// Over turns the aggregation into a window expression partitioned by the
// given columns.
func (a *AggregationExpr) Over(partitionBy ...string) *WindowExpr {
	return &WindowExpr{inner: a, partitionBy: partitionBy}
}

// WindowExpr chain methods.

func (w *WindowExpr) Add(other Expr) *BinaryExpr { return NewBinary(w, OpAdd, other) }
func (w *WindowExpr) Sub(other Expr) *BinaryExpr { return NewBinary(w, OpSub, other) }
func (w *WindowExpr) Div(other Expr) *BinaryExpr { return NewBinary(w, OpDiv, other) }
func (w *WindowExpr) As(name string) *AliasExpr  { return NewAlias(w, name) }

// CastExpr chain methods.

func (c *CastExpr) Add(other Expr) *BinaryExpr { return NewBinary(c, OpAdd, other) }
func (c *CastExpr) Sub(other Expr) *BinaryExpr { return NewBinary(c, OpSub, other) }
func (c *CastExpr) Mul(other Expr) *BinaryExpr { return NewBinary(c, OpMul, other) }
func (c *CastExpr) Div(other Expr) *BinaryExpr { return NewBinary(c, OpDiv, other) }
func (c *CastExpr) Eq(other Expr) *BinaryExpr  { return NewBinary(c, OpEq, other) }
func (c *CastExpr) Gt(other Expr) *BinaryExpr  { return NewBinary(c, OpGt, other) }
func (c *CastExpr) As(name string) *AliasExpr  { return NewAlias(c, name) }
func (c *CastExpr) Sum() *AggregationExpr      { return Sum(c) }
func (c *CastExpr) Mean() *AggregationExpr     { return Mean(c) }

// AliasExpr chain methods. The alias stays outermost; operators apply to the
// aliased value.

func (a *AliasExpr) Asc() *SortKeyExpr  { return NewSortKey(a, false) }
func (a *AliasExpr) Desc() *SortKeyExpr { return NewSortKey(a, true) }
