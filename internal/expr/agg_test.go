package expr_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/ibis/internal/expr"
	"github.com/paveg/ibis/internal/series"
)

func aggregate(t *testing.T, agg expr.AggType, s *series.Series, groups [][]int) arrow.Array {
	t.Helper()
	mem := memory.NewGoAllocator()
	arr, err := s.ContiguousArray(mem)
	require.NoError(t, err)
	defer arr.Release()
	out, err := expr.AggregateGroups(mem, agg, arr, groups)
	require.NoError(t, err)
	return out
}

func TestSumSkipsNulls(t *testing.T) {
	s := int64Col("a", []int64{1, 2, 4, 8}, []bool{true, false, true, true})

	out := aggregate(t, expr.AggSum, s, [][]int{{0, 1}, {2, 3}})
	defer out.Release()

	got := out.(*array.Int64)
	assert.Equal(t, int64(1), got.Value(0))
	assert.Equal(t, int64(12), got.Value(1))
}

func TestSumAllNullGroupIsNull(t *testing.T) {
	s := int64Col("a", []int64{0, 0, 5}, []bool{false, false, true})

	out := aggregate(t, expr.AggSum, s, [][]int{{0, 1}, {2}})
	defer out.Release()

	got := out.(*array.Int64)
	assert.True(t, got.IsNull(0))
	assert.Equal(t, int64(5), got.Value(1))
}

func TestCountIgnoresNullsCountAllDoesNot(t *testing.T) {
	s := int64Col("a", []int64{1, 0, 3}, []bool{true, false, true})

	count := aggregate(t, expr.AggCount, s, [][]int{{0, 1, 2}})
	defer count.Release()
	assert.Equal(t, int64(2), count.(*array.Int64).Value(0))

	all := aggregate(t, expr.AggCountAll, s, [][]int{{0, 1, 2}})
	defer all.Release()
	assert.Equal(t, int64(3), all.(*array.Int64).Value(0))
}

func TestCountOfAllNullGroupIsZero(t *testing.T) {
	s := int64Col("a", []int64{0, 0}, []bool{false, false})

	out := aggregate(t, expr.AggCount, s, [][]int{{0, 1}})
	defer out.Release()

	got := out.(*array.Int64)
	assert.False(t, got.IsNull(0), "count is 0, not null")
	assert.Equal(t, int64(0), got.Value(0))
}

func TestMeanIsFloat(t *testing.T) {
	s := int64Col("a", []int64{1, 2, 0}, []bool{true, true, false})

	out := aggregate(t, expr.AggMean, s, [][]int{{0, 1, 2}})
	defer out.Release()

	got, ok := out.(*array.Float64)
	require.True(t, ok)
	assert.InDelta(t, 1.5, got.Value(0), 1e-12)
}

func TestMinMax(t *testing.T) {
	s := int64Col("a", []int64{5, 1, 9, 0}, []bool{true, true, true, false})

	lo := aggregate(t, expr.AggMin, s, [][]int{{0, 1, 2, 3}})
	defer lo.Release()
	assert.Equal(t, int64(1), lo.(*array.Int64).Value(0))

	hi := aggregate(t, expr.AggMax, s, [][]int{{0, 1, 2, 3}})
	defer hi.Release()
	assert.Equal(t, int64(9), hi.(*array.Int64).Value(0))
}

func TestMinMaxString(t *testing.T) {
	s := stringCol("s", []string{"pear", "apple", "fig"}, nil)

	lo := aggregate(t, expr.AggMin, s, [][]int{{0, 1, 2}})
	defer lo.Release()
	assert.Equal(t, "apple", lo.(*array.String).Value(0))
}

func TestVarianceIsSample(t *testing.T) {
	s := float64Col("a", []float64{1, 3}, nil)

	v := aggregate(t, expr.AggVar, s, [][]int{{0, 1}})
	defer v.Release()
	assert.InDelta(t, 2.0, v.(*array.Float64).Value(0), 1e-12)

	sd := aggregate(t, expr.AggStd, s, [][]int{{0, 1}})
	defer sd.Release()
	assert.InDelta(t, 1.4142135623730951, sd.(*array.Float64).Value(0), 1e-12)
}

func TestVarianceOfSingleValueIsNull(t *testing.T) {
	s := float64Col("a", []float64{1, 2}, nil)

	out := aggregate(t, expr.AggVar, s, [][]int{{0}, {1}})
	defer out.Release()

	got := out.(*array.Float64)
	assert.True(t, got.IsNull(0))
	assert.True(t, got.IsNull(1))
}

func TestFirstLastIncludeNulls(t *testing.T) {
	s := int64Col("a", []int64{0, 2, 3}, []bool{false, true, true})

	first := aggregate(t, expr.AggFirst, s, [][]int{{0, 1, 2}})
	defer first.Release()
	assert.True(t, first.(*array.Int64).IsNull(0), "first takes the boundary row even when null")

	last := aggregate(t, expr.AggLast, s, [][]int{{0, 1, 2}})
	defer last.Release()
	assert.Equal(t, int64(3), last.(*array.Int64).Value(0))
}

func TestSumRejectsStrings(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := stringCol("s", []string{"a"}, nil)
	arr, err := s.ContiguousArray(mem)
	require.NoError(t, err)
	defer arr.Release()

	_, err = expr.AggregateGroups(mem, expr.AggSum, arr, [][]int{{0}})
	assert.Error(t, err)
}
