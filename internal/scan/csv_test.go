package scan_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/ibis/internal/config"
	"github.com/paveg/ibis/internal/expr"
	"github.com/paveg/ibis/internal/plan"
	"github.com/paveg/ibis/internal/scan"
	"github.com/paveg/ibis/internal/testutil"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVTypeInference(t *testing.T) {
	path := writeTempCSV(t, "id,score,name,active\n1,1.5,ann,true\n2,2.5,bob,false\n")
	src := scan.NewCSVSource(path, scan.DefaultCSVOptions(), memory.NewGoAllocator())

	sch, err := src.Schema()
	require.NoError(t, err)

	wantTypes := map[string]arrow.DataType{
		"id":     arrow.PrimitiveTypes.Int64,
		"score":  arrow.PrimitiveTypes.Float64,
		"name":   arrow.BinaryTypes.String,
		"active": arrow.FixedWidthTypes.Boolean,
	}
	for name, want := range wantTypes {
		got, err := sch.DataType(name)
		require.NoError(t, err)
		assert.True(t, arrow.TypeEqual(want, got), "%s: got %s", name, got)
	}
}

func TestCSVNullTokens(t *testing.T) {
	path := writeTempCSV(t, "a,b\n1,x\nnull,NA\n3,\n")
	src := scan.NewCSVSource(path, scan.DefaultCSVOptions(), memory.NewGoAllocator())

	df, err := src.Read()
	require.NoError(t, err)

	values, nulls := testutil.Int64Values(t, df, "a")
	assert.Equal(t, []bool{false, true, false}, nulls)
	assert.Equal(t, int64(1), values[0])
	assert.Equal(t, int64(3), values[2])

	_, bNulls := testutil.StringValues(t, df, "b")
	assert.Equal(t, []bool{false, true, true}, bNulls)
}

func TestCSVNoHeader(t *testing.T) {
	opts := scan.DefaultCSVOptions()
	opts.Header = false
	path := writeTempCSV(t, "1,x\n2,y\n")
	src := scan.NewCSVSource(path, opts, memory.NewGoAllocator())

	df, err := src.Read()
	require.NoError(t, err)

	assert.Equal(t, []string{"column_0", "column_1"}, df.ColumnNames())
	assert.Equal(t, 2, df.Len())
}

func TestCSVCustomDelimiter(t *testing.T) {
	opts := scan.DefaultCSVOptions()
	opts.Delimiter = ';'
	path := writeTempCSV(t, "a;b\n1;2\n")
	src := scan.NewCSVSource(path, opts, memory.NewGoAllocator())

	df, err := src.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, df.ColumnNames())
}

func TestCSVRoundTrip(t *testing.T) {
	df := testutil.Frame(t,
		testutil.Series(t, "id", []int64{1, 2, 3}),
		testutil.SeriesWithNulls(t, "score", []float64{1.5, 0, 3.5}, []bool{true, false, true}),
		testutil.Series(t, "name", []string{"ann", "bob", "cid"}),
	)

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, scan.WriteCSV(df, path))

	back, err := scan.NewCSVSource(path, scan.DefaultCSVOptions(), memory.NewGoAllocator()).Read()
	require.NoError(t, err)

	require.Equal(t, df.Len(), back.Len())
	ids, _ := testutil.Int64Values(t, back, "id")
	assert.Equal(t, []int64{1, 2, 3}, ids)
	scores, scoreNulls := testutil.Float64Values(t, back, "score")
	assert.Equal(t, []bool{false, true, false}, scoreNulls)
	assert.InDelta(t, 1.5, scores[0], 1e-9)
	assert.InDelta(t, 3.5, scores[2], 1e-9)
}

func TestCSVScanWithPushdown(t *testing.T) {
	path := writeTempCSV(t, "a,b\n1,x\n2,y\n3,z\n")
	src := scan.NewCSVSource(path, scan.DefaultCSVOptions(), memory.NewGoAllocator())

	it, err := src.Scan(scan.ScanRequest{Columns: []string{"a"}})
	require.NoError(t, err)
	defer it.Close()

	sch, err := src.Schema()
	require.NoError(t, err)
	narrowed, err := sch.Select("a")
	require.NoError(t, err)
	out, err := scan.Collect(it, narrowed)
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, out.ColumnNames())
	assert.Equal(t, 3, out.Len())
}

func TestCSVLateParseFailure(t *testing.T) {
	path := writeTempCSV(t, "a\n1\n2\nnope\n")
	opts := scan.DefaultCSVOptions()
	opts.InferRows = 2
	src := scan.NewCSVSource(path, opts, memory.NewGoAllocator())

	sch, err := src.Schema()
	require.NoError(t, err)
	field, err := sch.FieldByName("a")
	require.NoError(t, err)
	assert.Equal(t, arrow.PrimitiveTypes.Int64, field.Type, "the sample infers int64")

	_, err = src.Read()
	require.Error(t, err, "a cell contradicting the inferred type fails the read")
	assert.Contains(t, err.Error(), "column a")
	assert.Contains(t, err.Error(), "line 4")
	assert.Contains(t, err.Error(), `"nope"`)
}

func TestCSVPredicateStaysAboveScan(t *testing.T) {
	path := writeTempCSV(t, "a,b\n1,x\n2,y\n3,z\n")
	src := scan.NewCSVSource(path, scan.DefaultCSVOptions(), memory.NewGoAllocator())
	assert.False(t, src.CanPushPredicate(expr.Col("a").Gt(expr.Lit(1))))

	node, err := plan.NewScan(src)
	require.NoError(t, err)
	f, err := plan.NewFilter(node, expr.Col("a").Gt(expr.Lit(1)))
	require.NoError(t, err)

	out, err := plan.NewOptimizer(config.NewConfig()).Optimize(f)
	require.NoError(t, err)
	_, isFilter := out.(*plan.FilterNode)
	assert.True(t, isFilter, "predicates are not pushed into CSV scans")
}

func TestCSVMissingFile(t *testing.T) {
	src := scan.NewCSVSource("/does/not/exist.csv", scan.DefaultCSVOptions(), memory.NewGoAllocator())
	_, err := src.Schema()
	assert.Error(t, err)
}
