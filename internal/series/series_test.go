package series_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/ibis/internal/series"
)

func TestNewSeries(t *testing.T) {
	mem := memory.NewGoAllocator()

	s := series.New("age", []int64{1, 2, 3}, mem)
	defer s.Release()

	assert.Equal(t, "age", s.Name())
	assert.Equal(t, 3, s.Len())
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, s.DataType()))
	assert.Equal(t, 0, s.NullCount())
}

func TestNewWithNulls(t *testing.T) {
	mem := memory.NewGoAllocator()

	s := series.NewWithNulls("x", []float64{1.5, 0, 3.5}, []bool{true, false, true}, mem)
	defer s.Release()

	assert.Equal(t, 1, s.NullCount())
	assert.False(t, s.IsNull(0))
	assert.True(t, s.IsNull(1))
	assert.False(t, s.IsNull(2))
}

func TestFromChunks(t *testing.T) {
	mem := memory.NewGoAllocator()

	a := series.BuildArray([]int64{1, 2}, nil, mem)
	defer a.Release()
	b := series.BuildArray([]int64{3, 4, 5}, nil, mem)
	defer b.Release()

	s, err := series.FromChunks("n", a, b)
	require.NoError(t, err)
	defer s.Release()

	assert.Equal(t, 5, s.Len())
	assert.Equal(t, 2, s.NChunks())
	assert.Equal(t, "3", s.ValueStr(2))
}

func TestFromChunksTypeMismatch(t *testing.T) {
	mem := memory.NewGoAllocator()

	a := series.BuildArray([]int64{1}, nil, mem)
	defer a.Release()
	b := series.BuildArray([]float64{2}, nil, mem)
	defer b.Release()

	_, err := series.FromChunks("n", a, b)
	assert.Error(t, err)
}

func TestRechunkPreservesValues(t *testing.T) {
	mem := memory.NewGoAllocator()

	a := series.BuildArray([]int64{1, 2}, nil, mem)
	defer a.Release()
	b := series.BuildArray([]int64{0, 4}, []bool{false, true}, mem)
	defer b.Release()

	s, err := series.FromChunks("n", a, b)
	require.NoError(t, err)
	defer s.Release()

	r, err := s.Rechunk(mem)
	require.NoError(t, err)
	defer r.Release()

	assert.Equal(t, 1, r.NChunks())
	assert.Equal(t, s.Len(), r.Len())
	for i := 0; i < s.Len(); i++ {
		assert.Equal(t, s.IsNull(i), r.IsNull(i), "row %d", i)
		if !s.IsNull(i) {
			assert.Equal(t, s.ValueStr(i), r.ValueStr(i), "row %d", i)
		}
	}
}

func TestSlice(t *testing.T) {
	mem := memory.NewGoAllocator()

	s := series.New("n", []int64{10, 20, 30, 40, 50}, mem)
	defer s.Release()

	mid, err := s.Slice(1, 3)
	require.NoError(t, err)
	defer mid.Release()
	assert.Equal(t, 3, mid.Len())
	assert.Equal(t, "20", mid.ValueStr(0))
	assert.Equal(t, "40", mid.ValueStr(2))
}

func TestSliceAcrossChunks(t *testing.T) {
	mem := memory.NewGoAllocator()

	a := series.BuildArray([]int64{1, 2, 3}, nil, mem)
	defer a.Release()
	b := series.BuildArray([]int64{4, 5, 6}, nil, mem)
	defer b.Release()

	s, err := series.FromChunks("n", a, b)
	require.NoError(t, err)
	defer s.Release()

	cut, err := s.Slice(2, 3)
	require.NoError(t, err)
	defer cut.Release()

	assert.Equal(t, 3, cut.Len())
	assert.Equal(t, "3", cut.ValueStr(0))
	assert.Equal(t, "4", cut.ValueStr(1))
	assert.Equal(t, "5", cut.ValueStr(2))
}

func TestConcat(t *testing.T) {
	mem := memory.NewGoAllocator()

	a := series.New("n", []int64{1, 2}, mem)
	defer a.Release()
	b := series.New("n", []int64{3}, mem)
	defer b.Release()

	c, err := a.Concat(b)
	require.NoError(t, err)
	defer c.Release()

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, "3", c.ValueStr(2))
}

func TestConcatTypeMismatch(t *testing.T) {
	mem := memory.NewGoAllocator()

	a := series.New("n", []int64{1}, mem)
	defer a.Release()
	b := series.New("n", []string{"x"}, mem)
	defer b.Release()

	_, err := a.Concat(b)
	assert.Error(t, err)
}

func TestTake(t *testing.T) {
	mem := memory.NewGoAllocator()

	s := series.New("n", []int64{10, 20, 30}, mem)
	defer s.Release()

	got, err := s.Take(mem, []int{2, 0, 0})
	require.NoError(t, err)
	defer got.Release()

	assert.Equal(t, 3, got.Len())
	assert.Equal(t, "30", got.ValueStr(0))
	assert.Equal(t, "10", got.ValueStr(1))
	assert.Equal(t, "10", got.ValueStr(2))
}

func TestTakeNegativeIndexProducesNull(t *testing.T) {
	mem := memory.NewGoAllocator()

	s := series.New("n", []int64{10, 20}, mem)
	defer s.Release()

	got, err := s.Take(mem, []int{0, -1, 1})
	require.NoError(t, err)
	defer got.Release()

	assert.False(t, got.IsNull(0))
	assert.True(t, got.IsNull(1))
	assert.False(t, got.IsNull(2))
}

func TestTakeOutOfBounds(t *testing.T) {
	mem := memory.NewGoAllocator()

	s := series.New("n", []int64{10}, mem)
	defer s.Release()

	_, err := s.Take(mem, []int{5})
	assert.Error(t, err)
}

func TestEmpty(t *testing.T) {
	mem := memory.NewGoAllocator()

	s, err := series.Empty("e", arrow.BinaryTypes.String, mem)
	require.NoError(t, err)
	defer s.Release()

	assert.Equal(t, 0, s.Len())
	assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, s.DataType()))
}
