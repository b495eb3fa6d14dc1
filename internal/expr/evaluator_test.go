package expr_test

import (
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/ibis/internal/expr"
	"github.com/paveg/ibis/internal/series"
)

func evalOn(t *testing.T, e expr.Expr, cols ...*series.Series) arrow.Array {
	t.Helper()
	mem := memory.NewGoAllocator()
	in, err := expr.NewInput(cols)
	require.NoError(t, err)
	out, err := expr.NewEvaluator(mem).Eval(e, in)
	require.NoError(t, err)
	return out
}

func int64Col(name string, values []int64, valid []bool) *series.Series {
	return series.NewWithNulls(name, values, valid, memory.NewGoAllocator())
}

func float64Col(name string, values []float64, valid []bool) *series.Series {
	return series.NewWithNulls(name, values, valid, memory.NewGoAllocator())
}

func stringCol(name string, values []string, valid []bool) *series.Series {
	return series.NewWithNulls(name, values, valid, memory.NewGoAllocator())
}

func boolCol(name string, values []bool, valid []bool) *series.Series {
	return series.NewWithNulls(name, values, valid, memory.NewGoAllocator())
}

func TestArithmeticNullPropagation(t *testing.T) {
	a := int64Col("a", []int64{1, 2, 3}, []bool{true, false, true})
	b := int64Col("b", []int64{10, 20, 30}, nil)

	out := evalOn(t, expr.Col("a").Add(expr.Col("b")), a, b)
	defer out.Release()

	got := out.(*array.Int64)
	assert.Equal(t, int64(11), got.Value(0))
	assert.True(t, got.IsNull(1))
	assert.Equal(t, int64(33), got.Value(2))
}

func TestArithmeticPromotion(t *testing.T) {
	a := int64Col("a", []int64{1, 2}, nil)
	b := float64Col("b", []float64{0.5, 0.25}, nil)

	out := evalOn(t, expr.Col("a").Mul(expr.Col("b")), a, b)
	defer out.Release()

	got, ok := out.(*array.Float64)
	require.True(t, ok, "int64 * float64 should widen to float64")
	assert.InDelta(t, 0.5, got.Value(0), 1e-12)
	assert.InDelta(t, 0.5, got.Value(1), 1e-12)
}

func TestBooleanArithmeticPromotes(t *testing.T) {
	flags := boolCol("flag", []bool{true, false, true}, []bool{true, true, false})
	counts := int64Col("n", []int64{10, 20, 30}, nil)

	out := evalOn(t, expr.Col("n").Add(expr.Col("flag")), counts, flags)
	defer out.Release()

	got, ok := out.(*array.Int64)
	require.True(t, ok, "boolean adopts the numeric operand's type")
	assert.Equal(t, int64(11), got.Value(0))
	assert.Equal(t, int64(20), got.Value(1))
	assert.True(t, got.IsNull(2))
}

func TestIntegerDivisionByZeroYieldsNull(t *testing.T) {
	a := int64Col("a", []int64{10, 10}, nil)
	b := int64Col("b", []int64{2, 0}, nil)

	out := evalOn(t, expr.Col("a").Div(expr.Col("b")), a, b)
	defer out.Release()

	got := out.(*array.Int64)
	assert.Equal(t, int64(5), got.Value(0))
	assert.True(t, got.IsNull(1))
}

func TestFloatDivisionByZeroYieldsInf(t *testing.T) {
	a := float64Col("a", []float64{1, -1, 0}, nil)
	b := float64Col("b", []float64{0, 0, 0}, nil)

	out := evalOn(t, expr.Col("a").Div(expr.Col("b")), a, b)
	defer out.Release()

	got := out.(*array.Float64)
	assert.True(t, math.IsInf(got.Value(0), 1))
	assert.True(t, math.IsInf(got.Value(1), -1))
	assert.True(t, math.IsNaN(got.Value(2)))
}

func TestModuloByZeroYieldsNull(t *testing.T) {
	a := int64Col("a", []int64{7, 7}, nil)
	b := int64Col("b", []int64{3, 0}, nil)

	out := evalOn(t, expr.Col("a").Mod(expr.Col("b")), a, b)
	defer out.Release()

	got := out.(*array.Int64)
	assert.Equal(t, int64(1), got.Value(0))
	assert.True(t, got.IsNull(1))
}

func TestComparison(t *testing.T) {
	a := int64Col("a", []int64{1, 5, 3}, []bool{true, true, false})

	out := evalOn(t, expr.Col("a").Gt(expr.Lit(2)), a)
	defer out.Release()

	got := out.(*array.Boolean)
	assert.False(t, got.Value(0))
	assert.True(t, got.Value(1))
	assert.True(t, got.IsNull(2), "comparison against null is null")
}

func TestStringComparison(t *testing.T) {
	s := stringCol("s", []string{"apple", "pear"}, nil)

	out := evalOn(t, expr.Col("s").Lt(expr.Lit("banana")), s)
	defer out.Release()

	got := out.(*array.Boolean)
	assert.True(t, got.Value(0))
	assert.False(t, got.Value(1))
}

func TestLogicalNullInNullOut(t *testing.T) {
	a := boolCol("a", []bool{true, true, false}, []bool{true, true, true})
	b := boolCol("b", []bool{false, false, false}, []bool{true, false, false})

	out := evalOn(t, expr.Col("a").And(expr.Col("b")), a, b)
	defer out.Release()

	got := out.(*array.Boolean)
	assert.False(t, got.Value(0))
	assert.True(t, got.IsNull(1), "true && null is null, not Kleene false")
	assert.True(t, got.IsNull(2), "false && null is null")
}

func TestNot(t *testing.T) {
	a := boolCol("a", []bool{true, false, false}, []bool{true, true, false})

	out := evalOn(t, expr.Not(expr.Col("a")), a)
	defer out.Release()

	got := out.(*array.Boolean)
	assert.False(t, got.Value(0))
	assert.True(t, got.Value(1))
	assert.True(t, got.IsNull(2))
}

func TestStringAddConcatenates(t *testing.T) {
	a := stringCol("a", []string{"foo", "bar"}, nil)

	out := evalOn(t, expr.Col("a").Add(expr.Lit("!")), a)
	defer out.Release()

	got := out.(*array.String)
	assert.Equal(t, "foo!", got.Value(0))
	assert.Equal(t, "bar!", got.Value(1))
}

func TestIsNull(t *testing.T) {
	a := int64Col("a", []int64{1, 0}, []bool{true, false})

	out := evalOn(t, expr.Col("a").IsNull(), a)
	defer out.Release()

	got := out.(*array.Boolean)
	assert.Equal(t, 0, got.NullN(), "is_null never returns null")
	assert.False(t, got.Value(0))
	assert.True(t, got.Value(1))
}

func TestFillNull(t *testing.T) {
	a := int64Col("a", []int64{1, 0, 3}, []bool{true, false, true})

	out := evalOn(t, expr.Col("a").FillNull(expr.Lit(99)), a)
	defer out.Release()

	got := out.(*array.Int64)
	assert.Equal(t, 0, got.NullN())
	assert.Equal(t, int64(1), got.Value(0))
	assert.Equal(t, int64(99), got.Value(1))
	assert.Equal(t, int64(3), got.Value(2))
}

func TestCoalesce(t *testing.T) {
	a := int64Col("a", []int64{1, 0, 0}, []bool{true, false, false})
	b := int64Col("b", []int64{0, 2, 0}, []bool{false, true, false})

	out := evalOn(t, expr.Coalesce(expr.Col("a"), expr.Col("b"), expr.Lit(0)), a, b)
	defer out.Release()

	got := out.(*array.Int64)
	assert.Equal(t, int64(1), got.Value(0))
	assert.Equal(t, int64(2), got.Value(1))
	assert.Equal(t, int64(0), got.Value(2))
}

func TestConcatStr(t *testing.T) {
	a := stringCol("a", []string{"x", "y"}, nil)
	b := stringCol("b", []string{"1", "2"}, []bool{true, false})

	out := evalOn(t, expr.ConcatStr(expr.Col("a"), expr.Col("b")), a, b)
	defer out.Release()

	got := out.(*array.String)
	assert.Equal(t, "x1", got.Value(0))
	assert.True(t, got.IsNull(1), "null argument makes the row null")
}

func TestLiteralBroadcast(t *testing.T) {
	a := int64Col("a", []int64{1, 2, 3}, nil)

	out := evalOn(t, expr.Lit(7), a)
	defer out.Release()

	got := out.(*array.Int64)
	assert.Equal(t, 3, got.Len())
	for i := 0; i < 3; i++ {
		assert.Equal(t, int64(7), got.Value(i))
	}
}

func TestNullLiteralAdoptsType(t *testing.T) {
	a := int64Col("a", []int64{1, 2}, nil)

	out := evalOn(t, expr.Col("a").Add(expr.NullLit(arrow.PrimitiveTypes.Int64)), a)
	defer out.Release()

	assert.Equal(t, out.Len(), out.NullN())
}

func TestNeg(t *testing.T) {
	a := int64Col("a", []int64{5, -3}, nil)

	out := evalOn(t, expr.Neg(expr.Col("a")), a)
	defer out.Release()

	got := out.(*array.Int64)
	assert.Equal(t, int64(-5), got.Value(0))
	assert.Equal(t, int64(3), got.Value(1))
}

func TestAliasKeepsValues(t *testing.T) {
	a := int64Col("a", []int64{1}, nil)
	mem := memory.NewGoAllocator()

	in, err := expr.NewInput([]*series.Series{a})
	require.NoError(t, err)
	s, err := expr.NewEvaluator(mem).EvalSeries(expr.Col("a").Add(expr.Lit(1)).As("b"), in)
	require.NoError(t, err)
	defer s.Release()

	assert.Equal(t, "b", s.Name())
	assert.Equal(t, "2", s.ValueStr(0))
}

func TestUnknownColumnFails(t *testing.T) {
	a := int64Col("a", []int64{1}, nil)
	mem := memory.NewGoAllocator()

	in, err := expr.NewInput([]*series.Series{a})
	require.NoError(t, err)
	_, err = expr.NewEvaluator(mem).Eval(expr.Col("zzz"), in)
	assert.Error(t, err)
}

func TestTypeMismatchFails(t *testing.T) {
	a := int64Col("a", []int64{1}, nil)
	s := stringCol("s", []string{"x"}, nil)
	mem := memory.NewGoAllocator()

	in, err := expr.NewInput([]*series.Series{a, s})
	require.NoError(t, err)
	_, err = expr.NewEvaluator(mem).Eval(expr.Col("a").Add(expr.Col("s")), in)
	assert.Error(t, err)
}
