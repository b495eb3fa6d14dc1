package plan_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/ibis/internal/dataframe"
	"github.com/paveg/ibis/internal/expr"
	"github.com/paveg/ibis/internal/plan"
	"github.com/paveg/ibis/internal/scan"
	"github.com/paveg/ibis/internal/series"
)

func scanOf(t *testing.T, df *dataframe.DataFrame) *plan.ScanNode {
	t.Helper()
	node, err := plan.NewScan(scan.NewInMemorySource(df, memory.NewGoAllocator()))
	require.NoError(t, err)
	return node
}

func peopleScan(t *testing.T) *plan.ScanNode {
	t.Helper()
	mem := memory.NewGoAllocator()
	df, err := dataframe.New(
		series.New("id", []int64{1, 2, 3}, mem),
		series.New("name", []string{"a", "b", "c"}, mem),
		series.New("score", []float64{1.5, 2.5, 3.5}, mem),
	)
	require.NoError(t, err)
	return scanOf(t, df)
}

func TestNewFilterValidation(t *testing.T) {
	src := peopleScan(t)

	t.Run("boolean predicate ok", func(t *testing.T) {
		n, err := plan.NewFilter(src, expr.Col("id").Gt(expr.Lit(1)))
		require.NoError(t, err)
		assert.True(t, n.Schema().Equal(src.Schema()), "filter preserves schema")
	})

	t.Run("non-boolean predicate rejected", func(t *testing.T) {
		_, err := plan.NewFilter(src, expr.Col("id").Add(expr.Lit(1)))
		assert.Error(t, err)
	})

	t.Run("unknown column rejected", func(t *testing.T) {
		_, err := plan.NewFilter(src, expr.Col("nope").Gt(expr.Lit(1)))
		assert.Error(t, err)
	})

	t.Run("aggregation in predicate rejected", func(t *testing.T) {
		_, err := plan.NewFilter(src, expr.Col("id").Sum().Gt(expr.Lit(1)))
		assert.Error(t, err)
	})
}

func TestNewSelect(t *testing.T) {
	src := peopleScan(t)

	t.Run("derives output schema", func(t *testing.T) {
		n, err := plan.NewSelect(src, []expr.Expr{
			expr.Col("id"),
			expr.Col("score").Mul(expr.Lit(2.0)).As("double"),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "double"}, n.Schema().Names())
		dt, err := n.Schema().DataType("double")
		require.NoError(t, err)
		assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Float64, dt))
	})

	t.Run("wildcard expands in order", func(t *testing.T) {
		n, err := plan.NewSelect(src, []expr.Expr{expr.Wildcard()})
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "name", "score"}, n.Schema().Names())
	})

	t.Run("duplicate output names rejected", func(t *testing.T) {
		_, err := plan.NewSelect(src, []expr.Expr{expr.Col("id"), expr.Col("id")})
		assert.Error(t, err)
	})

	t.Run("bare aggregation rejected", func(t *testing.T) {
		_, err := plan.NewSelect(src, []expr.Expr{expr.Col("id").Sum()})
		assert.Error(t, err)
	})

	t.Run("window allowed", func(t *testing.T) {
		_, err := plan.NewSelect(src, []expr.Expr{
			expr.Col("score").Sum().Over("name").As("dept_total"),
		})
		assert.NoError(t, err)
	})
}

func TestNewGroupBy(t *testing.T) {
	src := peopleScan(t)

	t.Run("schema is keys then aggs", func(t *testing.T) {
		n, err := plan.NewGroupBy(src, []string{"name"}, []expr.Expr{
			expr.Col("score").Sum().As("total"),
			expr.Col("id").Count().As("n"),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"name", "total", "n"}, n.Schema().Names())
	})

	t.Run("unknown key rejected", func(t *testing.T) {
		_, err := plan.NewGroupBy(src, []string{"nope"}, []expr.Expr{expr.Col("score").Sum()})
		assert.Error(t, err)
	})

	t.Run("non-aggregation rejected", func(t *testing.T) {
		_, err := plan.NewGroupBy(src, []string{"name"}, []expr.Expr{expr.Col("score")})
		assert.Error(t, err)
	})

	t.Run("empty keys allowed for global aggregation", func(t *testing.T) {
		n, err := plan.NewGroupBy(src, nil, []expr.Expr{expr.Col("score").Mean().As("avg")})
		require.NoError(t, err)
		assert.Equal(t, []string{"avg"}, n.Schema().Names())
	})
}

func TestNewJoin(t *testing.T) {
	mem := memory.NewGoAllocator()
	left := peopleScan(t)
	rdf, err := dataframe.New(
		series.New("id", []int64{1, 2}, mem),
		series.New("name", []string{"x", "y"}, mem),
		series.New("bonus", []int64{10, 20}, mem),
	)
	require.NoError(t, err)
	right := scanOf(t, rdf)

	t.Run("inner merges right non-keys with suffix", func(t *testing.T) {
		n, err := plan.NewJoin(left, right, []string{"id"}, []string{"id"}, plan.JoinInner)
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "name", "score", "name_right", "bonus"}, n.Schema().Names())
	})

	t.Run("semi keeps left schema", func(t *testing.T) {
		n, err := plan.NewJoin(left, right, []string{"id"}, []string{"id"}, plan.JoinSemi)
		require.NoError(t, err)
		assert.True(t, n.Schema().Equal(left.Schema()))
	})

	t.Run("key type mismatch rejected", func(t *testing.T) {
		_, err := plan.NewJoin(left, right, []string{"name"}, []string{"bonus"}, plan.JoinInner)
		assert.Error(t, err)
	})

	t.Run("empty keys rejected", func(t *testing.T) {
		_, err := plan.NewJoin(left, right, nil, nil, plan.JoinInner)
		assert.Error(t, err)
	})
}

func TestNewSort(t *testing.T) {
	src := peopleScan(t)

	_, err := plan.NewSort(src, []*expr.SortKeyExpr{expr.Col("score").Desc()})
	assert.NoError(t, err)

	_, err = plan.NewSort(src, []*expr.SortKeyExpr{expr.Col("nope").Asc()})
	assert.Error(t, err)
}

func TestNewUnionRequiresMatchingSchemas(t *testing.T) {
	mem := memory.NewGoAllocator()
	a := peopleScan(t)
	other, err := dataframe.New(series.New("id", []int64{9}, mem))
	require.NoError(t, err)
	b := scanOf(t, other)

	_, err = plan.NewUnion([]plan.Node{a, b})
	assert.Error(t, err)

	_, err = plan.NewUnion([]plan.Node{a, peopleScan(t)})
	assert.NoError(t, err)
}

func TestExplainRendersTree(t *testing.T) {
	src := peopleScan(t)
	f, err := plan.NewFilter(src, expr.Col("id").Gt(expr.Lit(1)))
	require.NoError(t, err)

	out := plan.Explain(f)
	assert.Contains(t, out, "filter")
	assert.Contains(t, out, "scan")
}

func TestFingerprintStable(t *testing.T) {
	a := peopleScan(t)
	f1, err := plan.NewFilter(a, expr.Col("id").Gt(expr.Lit(1)))
	require.NoError(t, err)
	f2, err := plan.NewFilter(a, expr.Col("id").Gt(expr.Lit(1)))
	require.NoError(t, err)
	f3, err := plan.NewFilter(a, expr.Col("id").Gt(expr.Lit(2)))
	require.NoError(t, err)

	assert.Equal(t, plan.Fingerprint(f1), plan.Fingerprint(f2))
	assert.NotEqual(t, plan.Fingerprint(f1), plan.Fingerprint(f3))
}
