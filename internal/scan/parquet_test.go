package scan_test

import (
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/ibis/internal/scan"
	"github.com/paveg/ibis/internal/testutil"
)

func TestParquetRoundTrip(t *testing.T) {
	df := testutil.Frame(t,
		testutil.Series(t, "id", []int64{1, 2, 3}),
		testutil.SeriesWithNulls(t, "score", []float64{1.5, 0, 3.5}, []bool{true, false, true}),
		testutil.Series(t, "name", []string{"ann", "bob", "cid"}),
	)

	mem := memory.NewGoAllocator()
	path := filepath.Join(t.TempDir(), "out.parquet")
	require.NoError(t, scan.WriteParquet(df, path, mem))

	back, err := scan.NewParquetSource(path, mem).Read()
	require.NoError(t, err)

	require.Equal(t, df.Len(), back.Len())
	assert.Equal(t, df.ColumnNames(), back.ColumnNames())

	ids, _ := testutil.Int64Values(t, back, "id")
	assert.Equal(t, []int64{1, 2, 3}, ids)
	_, nulls := testutil.Float64Values(t, back, "score")
	assert.Equal(t, []bool{false, true, false}, nulls, "null positions survive the round trip")
}

func TestParquetSchemaWithoutReadingRows(t *testing.T) {
	df := testutil.Frame(t, testutil.Series(t, "x", []int64{1}))
	mem := memory.NewGoAllocator()
	path := filepath.Join(t.TempDir(), "s.parquet")
	require.NoError(t, scan.WriteParquet(df, path, mem))

	sch, err := scan.NewParquetSource(path, mem).Schema()
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, sch.Names())
}

func TestParquetProjectionPushdown(t *testing.T) {
	df := testutil.Frame(t,
		testutil.Series(t, "a", []int64{1, 2}),
		testutil.Series(t, "b", []string{"x", "y"}),
	)
	mem := memory.NewGoAllocator()
	path := filepath.Join(t.TempDir(), "p.parquet")
	require.NoError(t, scan.WriteParquet(df, path, mem))

	src := scan.NewParquetSource(path, mem)
	it, err := src.Scan(scan.ScanRequest{Columns: []string{"b"}})
	require.NoError(t, err)
	defer it.Close()

	sch, err := src.Schema()
	require.NoError(t, err)
	narrowed, err := sch.Select("b")
	require.NoError(t, err)
	out, err := scan.Collect(it, narrowed)
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, out.ColumnNames())
	assert.Equal(t, 2, out.Len())
}

func TestParquetMissingFile(t *testing.T) {
	_, err := scan.NewParquetSource("/does/not/exist.parquet", memory.NewGoAllocator()).Schema()
	assert.Error(t, err)
}
