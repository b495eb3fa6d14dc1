package expr_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ibiserrors "github.com/paveg/ibis/internal/errors"
	"github.com/paveg/ibis/internal/expr"
	"github.com/paveg/ibis/internal/series"
)

func castOn(t *testing.T, s *series.Series, target arrow.DataType, strict bool) (arrow.Array, error) {
	t.Helper()
	mem := memory.NewGoAllocator()
	arr, err := s.ContiguousArray(mem)
	require.NoError(t, err)
	defer arr.Release()
	return expr.CastArray(mem, arr, target, strict)
}

func TestCastIntToFloat(t *testing.T) {
	s := int64Col("a", []int64{1, 2}, nil)

	out, err := castOn(t, s, arrow.PrimitiveTypes.Float64, true)
	require.NoError(t, err)
	defer out.Release()

	got := out.(*array.Float64)
	assert.Equal(t, 1.0, got.Value(0))
	assert.Equal(t, 2.0, got.Value(1))
}

func TestCastFloatToIntTruncatesTowardZero(t *testing.T) {
	s := float64Col("a", []float64{2.9, -2.9, 0.5}, nil)

	out, err := castOn(t, s, arrow.PrimitiveTypes.Int64, true)
	require.NoError(t, err)
	defer out.Release()

	got := out.(*array.Int64)
	assert.Equal(t, int64(2), got.Value(0))
	assert.Equal(t, int64(-2), got.Value(1))
	assert.Equal(t, int64(0), got.Value(2))
}

func TestCastOutOfRange(t *testing.T) {
	s := int64Col("a", []int64{1, 300}, nil)

	t.Run("strict fails", func(t *testing.T) {
		_, err := castOn(t, s, arrow.PrimitiveTypes.Int8, true)
		assert.ErrorIs(t, err, ibiserrors.ErrCast)
	})

	t.Run("lossy nulls", func(t *testing.T) {
		out, err := castOn(t, s, arrow.PrimitiveTypes.Int8, false)
		require.NoError(t, err)
		defer out.Release()

		got := out.(*array.Int8)
		assert.Equal(t, int8(1), got.Value(0))
		assert.True(t, got.IsNull(1))
	})
}

func TestCastStringToInt(t *testing.T) {
	s := stringCol("a", []string{"42", "nope"}, nil)

	t.Run("strict fails on garbage", func(t *testing.T) {
		_, err := castOn(t, s, arrow.PrimitiveTypes.Int64, true)
		assert.ErrorIs(t, err, ibiserrors.ErrCast)
	})

	t.Run("lossy nulls garbage", func(t *testing.T) {
		out, err := castOn(t, s, arrow.PrimitiveTypes.Int64, false)
		require.NoError(t, err)
		defer out.Release()

		got := out.(*array.Int64)
		assert.Equal(t, int64(42), got.Value(0))
		assert.True(t, got.IsNull(1))
	})
}

func TestCastIntToString(t *testing.T) {
	s := int64Col("a", []int64{-7, 0}, []bool{true, false})

	out, err := castOn(t, s, arrow.BinaryTypes.String, true)
	require.NoError(t, err)
	defer out.Release()

	got := out.(*array.String)
	assert.Equal(t, "-7", got.Value(0))
	assert.True(t, got.IsNull(1), "nulls pass through casts")
}

func TestCastSameTypeIsIdentity(t *testing.T) {
	s := int64Col("a", []int64{1, 2}, nil)

	out, err := castOn(t, s, arrow.PrimitiveTypes.Int64, true)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, 2, out.Len())
	assert.Equal(t, int64(1), out.(*array.Int64).Value(0))
}

func TestCastUnsupportedPair(t *testing.T) {
	s := boolCol("a", []bool{true}, nil)

	_, err := castOn(t, s, arrow.FixedWidthTypes.Date32, true)
	assert.Error(t, err)
}

func TestCastExprEndToEnd(t *testing.T) {
	a := float64Col("a", []float64{1.9}, nil)

	out := evalOn(t, expr.Col("a").Cast(arrow.PrimitiveTypes.Int64), a)
	defer out.Release()

	assert.Equal(t, int64(1), out.(*array.Int64).Value(0))
}
