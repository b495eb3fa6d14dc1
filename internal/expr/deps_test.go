package expr_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/ibis/internal/expr"
	"github.com/paveg/ibis/internal/schema"
)

func TestDependencies(t *testing.T) {
	e := expr.Col("b").Add(expr.Col("a")).Mul(expr.Col("b"))
	assert.Equal(t, []string{"a", "b"}, expr.Dependencies(e), "sorted and deduplicated")
}

func TestDependenciesIncludeWindowKeys(t *testing.T) {
	e := expr.Col("pay").Sum().Over("dept")
	assert.Equal(t, []string{"dept", "pay"}, expr.Dependencies(e))
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "a", expr.OutputName(expr.Col("a")))
	assert.Equal(t, "total", expr.OutputName(expr.Col("a").Sum().As("total")))
	assert.Equal(t, "a_sum", expr.OutputName(expr.Col("a").Sum()))
}

func TestContainsAggregation(t *testing.T) {
	assert.True(t, expr.ContainsAggregation(expr.Col("a").Sum()))
	assert.True(t, expr.ContainsAggregation(expr.Col("a").Sum().Div(expr.Lit(2))))
	assert.False(t, expr.ContainsAggregation(expr.Col("a").Add(expr.Lit(1))))
	assert.False(t, expr.ContainsAggregation(expr.Col("a").Sum().Over("k")),
		"a window shields its inner aggregation")
}

func TestEqualAndFingerprint(t *testing.T) {
	a := expr.Col("x").Add(expr.Lit(1))
	b := expr.Col("x").Add(expr.Lit(1))
	c := expr.Col("x").Add(expr.Lit(2))

	assert.True(t, expr.Equal(a, b))
	assert.False(t, expr.Equal(a, c))
	assert.Equal(t, expr.Fingerprint(a), expr.Fingerprint(b))
	assert.NotEqual(t, expr.Fingerprint(a), expr.Fingerprint(c))
}

func TestRewriteReplacesLeaves(t *testing.T) {
	e := expr.Col("a").Add(expr.Col("b"))
	got := expr.Rewrite(e, func(sub expr.Expr) expr.Expr {
		if c, ok := sub.(*expr.ColumnExpr); ok && c.Name() == "a" {
			return expr.Col("z")
		}
		return sub
	})
	assert.Equal(t, []string{"b", "z"}, expr.Dependencies(got))
}

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(
		arrow.Field{Name: "i", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		arrow.Field{Name: "f", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		arrow.Field{Name: "s", Type: arrow.BinaryTypes.String, Nullable: true},
		arrow.Field{Name: "b", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
	)
	require.NoError(t, err)
	return s
}

func TestTypeOf(t *testing.T) {
	s := testSchema(t)

	cases := []struct {
		name string
		e    expr.Expr
		want arrow.DataType
	}{
		{"column", expr.Col("i"), arrow.PrimitiveTypes.Int64},
		{"int plus float widens", expr.Col("i").Add(expr.Col("f")), arrow.PrimitiveTypes.Float64},
		{"comparison is bool", expr.Col("i").Gt(expr.Lit(0)), arrow.FixedWidthTypes.Boolean},
		{"string concat", expr.Col("s").Add(expr.Lit("!")), arrow.BinaryTypes.String},
		{"mean is float", expr.Col("i").Mean(), arrow.PrimitiveTypes.Float64},
		{"count is int", expr.Col("s").Count(), arrow.PrimitiveTypes.Int64},
		{"cast", expr.Col("i").Cast(arrow.PrimitiveTypes.Int32), arrow.PrimitiveTypes.Int32},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := expr.TypeOf(tc.e, s)
			require.NoError(t, err)
			assert.True(t, arrow.TypeEqual(tc.want, got), "got %s", got)
		})
	}
}

func TestTypeOfErrors(t *testing.T) {
	s := testSchema(t)

	t.Run("unknown column", func(t *testing.T) {
		_, err := expr.TypeOf(expr.Col("zzz"), s)
		assert.Error(t, err)
	})
	t.Run("logical on non-bool", func(t *testing.T) {
		_, err := expr.TypeOf(expr.Col("i").And(expr.Col("b")), s)
		assert.Error(t, err)
	})
	t.Run("mod on floats", func(t *testing.T) {
		_, err := expr.TypeOf(expr.Col("f").Mod(expr.Lit(2.0)), s)
		assert.Error(t, err)
	})
	t.Run("arithmetic on strings", func(t *testing.T) {
		_, err := expr.TypeOf(expr.Col("s").Sub(expr.Col("s")), s)
		assert.Error(t, err)
	})
}

func TestPromote(t *testing.T) {
	got, err := expr.Promote(arrow.PrimitiveTypes.Int32, arrow.PrimitiveTypes.Int64)
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, got))

	got, err = expr.Promote(arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Float32)
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Float64, got),
		"int64 and float32 widen to float64 to keep integer precision")

	_, err = expr.Promote(arrow.PrimitiveTypes.Int64, arrow.BinaryTypes.String)
	assert.Error(t, err)
}

func TestPromoteBoolean(t *testing.T) {
	got, err := expr.Promote(arrow.FixedWidthTypes.Boolean, arrow.PrimitiveTypes.Int64)
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, got))

	got, err = expr.Promote(arrow.PrimitiveTypes.Float64, arrow.FixedWidthTypes.Boolean)
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Float64, got))

	got, err = expr.Promote(arrow.FixedWidthTypes.Boolean, arrow.FixedWidthTypes.Boolean)
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, got))

	_, err = expr.Promote(arrow.FixedWidthTypes.Boolean, arrow.BinaryTypes.String)
	assert.Error(t, err)
}

func TestPromoteMixedSignedness(t *testing.T) {
	cases := []struct {
		left, right, want arrow.DataType
	}{
		{arrow.PrimitiveTypes.Int8, arrow.PrimitiveTypes.Uint8, arrow.PrimitiveTypes.Int16},
		{arrow.PrimitiveTypes.Uint16, arrow.PrimitiveTypes.Int16, arrow.PrimitiveTypes.Int32},
		{arrow.PrimitiveTypes.Int32, arrow.PrimitiveTypes.Uint32, arrow.PrimitiveTypes.Int64},
		{arrow.PrimitiveTypes.Uint64, arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Float64},
	}
	for _, c := range cases {
		got, err := expr.Promote(c.left, c.right)
		require.NoError(t, err)
		assert.True(t, arrow.TypeEqual(c.want, got), "%s with %s", c.left, c.right)

		flipped, err := expr.Promote(c.right, c.left)
		require.NoError(t, err)
		assert.True(t, arrow.TypeEqual(got, flipped), "promotion is order independent")
	}
}
