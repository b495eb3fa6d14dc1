// Package testutil provides shared helpers for building test frames and
// asserting on columnar results.
package testutil

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/paveg/ibis/internal/dataframe"
	"github.com/paveg/ibis/internal/series"
)

// Mem returns the allocator used across tests.
func Mem() memory.Allocator { return memory.NewGoAllocator() }

// Series builds a column with no nulls.
func Series[T any](tb testing.TB, name string, values []T) *series.Series {
	tb.Helper()
	return series.New(name, values, Mem())
}

// SeriesWithNulls builds a column with a validity mask; valid[i]==false
// marks a null.
func SeriesWithNulls[T any](tb testing.TB, name string, values []T, valid []bool) *series.Series {
	tb.Helper()
	return series.NewWithNulls(name, values, valid, Mem())
}

// Frame builds a DataFrame and fails the test on error.
func Frame(tb testing.TB, cols ...*series.Series) *dataframe.DataFrame {
	tb.Helper()
	df, err := dataframe.New(cols...)
	require.NoError(tb, err)
	return df
}

// Int64Values reads an int64 column into values plus a null mask.
func Int64Values(tb testing.TB, df *dataframe.DataFrame, name string) ([]int64, []bool) {
	tb.Helper()
	col, err := df.Column(name)
	require.NoError(tb, err)
	values := make([]int64, col.Len())
	nulls := make([]bool, col.Len())
	row := 0
	for _, chunk := range col.Chunks() {
		for i := 0; i < chunk.Len(); i++ {
			if chunk.IsNull(i) {
				nulls[row] = true
			} else {
				values[row] = chunk.(interface{ Value(int) int64 }).Value(i)
			}
			row++
		}
	}
	return values, nulls
}

// Float64Values reads a float64 column into values plus a null mask.
func Float64Values(tb testing.TB, df *dataframe.DataFrame, name string) ([]float64, []bool) {
	tb.Helper()
	col, err := df.Column(name)
	require.NoError(tb, err)
	values := make([]float64, col.Len())
	nulls := make([]bool, col.Len())
	row := 0
	for _, chunk := range col.Chunks() {
		for i := 0; i < chunk.Len(); i++ {
			if chunk.IsNull(i) {
				nulls[row] = true
			} else {
				values[row] = chunk.(interface{ Value(int) float64 }).Value(i)
			}
			row++
		}
	}
	return values, nulls
}

// StringValues reads a string column; nulls render as empty strings with
// the mask set.
func StringValues(tb testing.TB, df *dataframe.DataFrame, name string) ([]string, []bool) {
	tb.Helper()
	col, err := df.Column(name)
	require.NoError(tb, err)
	values := make([]string, col.Len())
	nulls := make([]bool, col.Len())
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			nulls[i] = true
		} else {
			values[i] = col.ValueStr(i)
		}
	}
	return values, nulls
}

// RequireFramesEqual asserts two frames have identical schemas and cell
// values, null placement included. Chunking differences are ignored.
func RequireFramesEqual(tb testing.TB, want, got *dataframe.DataFrame) {
	tb.Helper()
	require.True(tb, want.Schema().Equal(got.Schema()),
		"schema mismatch: want %s, got %s", want.Schema(), got.Schema())
	require.Equal(tb, want.Len(), got.Len(), "row count mismatch")
	for _, name := range want.ColumnNames() {
		wc, err := want.Column(name)
		require.NoError(tb, err)
		gc, err := got.Column(name)
		require.NoError(tb, err)
		for i := 0; i < wc.Len(); i++ {
			require.Equal(tb, wc.IsNull(i), gc.IsNull(i),
				"column %s row %d null mismatch", name, i)
			if !wc.IsNull(i) {
				require.Equal(tb, wc.ValueStr(i), gc.ValueStr(i),
					"column %s row %d value mismatch", name, i)
			}
		}
	}
}
