package exec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/ibis/internal/dataframe"
	"github.com/paveg/ibis/internal/plan"
	"github.com/paveg/ibis/internal/testutil"
)

func joinFixtures(t *testing.T) (left, right *dataframe.DataFrame) {
	t.Helper()
	left = testutil.Frame(t,
		testutil.Series(t, "id", []int64{1, 2, 3, 4}),
		testutil.Series(t, "name", []string{"ann", "bob", "cid", "dee"}),
	)
	right = testutil.Frame(t,
		testutil.Series(t, "id", []int64{2, 2, 3, 9}),
		testutil.Series(t, "bonus", []int64{20, 25, 30, 90}),
	)
	return left, right
}

func joined(t *testing.T, how plan.JoinType) *dataframe.DataFrame {
	t.Helper()
	left, right := joinFixtures(t)
	n, err := plan.NewJoin(scanOf(t, left), scanOf(t, right), []string{"id"}, []string{"id"}, how)
	require.NoError(t, err)
	return run(t, n)
}

func TestInnerJoin(t *testing.T) {
	out := joined(t, plan.JoinInner)

	require.Equal(t, 3, out.Len(), "id 2 matches twice, id 3 once")
	ids, _ := testutil.Int64Values(t, out, "id")
	bonuses, _ := testutil.Int64Values(t, out, "bonus")
	assert.Equal(t, []int64{2, 2, 3}, ids)
	assert.Equal(t, []int64{20, 25, 30}, bonuses)
}

func TestLeftJoin(t *testing.T) {
	out := joined(t, plan.JoinLeft)

	require.Equal(t, 5, out.Len())
	ids, _ := testutil.Int64Values(t, out, "id")
	assert.Equal(t, []int64{1, 2, 2, 3, 4}, ids, "unmatched left rows stay in place")

	bonuses, nulls := testutil.Int64Values(t, out, "bonus")
	assert.Equal(t, []bool{true, false, false, false, true}, nulls)
	assert.Equal(t, []int64{20, 25, 30}, []int64{bonuses[1], bonuses[2], bonuses[3]})
}

func TestRightJoin(t *testing.T) {
	out := joined(t, plan.JoinRight)

	require.Equal(t, 4, out.Len(), "every right row appears once per match or unmatched")
	bonuses, bonusNulls := testutil.Int64Values(t, out, "bonus")
	assert.Equal(t, []int64{20, 25, 30, 90}, bonuses)
	assert.Equal(t, []bool{false, false, false, false}, bonusNulls)

	_, nameNulls := testutil.StringValues(t, out, "name")
	assert.Equal(t, []bool{false, false, false, true}, nameNulls, "unmatched right rows null the left side")
}

func TestOuterJoin(t *testing.T) {
	out := joined(t, plan.JoinOuter)

	require.Equal(t, 6, out.Len(), "left join rows plus the unmatched right row")
	ids, idNulls := testutil.Int64Values(t, out, "id")
	assert.Equal(t, []int64{1, 2, 2, 3, 4}, ids[:5])
	assert.True(t, idNulls[5], "the unmatched right row has no left key value")

	bonuses, bonusNulls := testutil.Int64Values(t, out, "bonus")
	assert.False(t, bonusNulls[5])
	assert.Equal(t, int64(90), bonuses[5])
}

func TestSemiJoin(t *testing.T) {
	out := joined(t, plan.JoinSemi)

	assert.Equal(t, []string{"id", "name"}, out.ColumnNames(), "semi join keeps the left schema")
	names, _ := testutil.StringValues(t, out, "name")
	assert.Equal(t, []string{"bob", "cid"}, names, "each matching left row appears exactly once")
}

func TestAntiJoin(t *testing.T) {
	out := joined(t, plan.JoinAnti)

	names, _ := testutil.StringValues(t, out, "name")
	assert.Equal(t, []string{"ann", "dee"}, names)
}

func TestJoinNullKeysNeverMatch(t *testing.T) {
	left := testutil.Frame(t,
		testutil.SeriesWithNulls(t, "k", []int64{1, 0}, []bool{true, false}),
		testutil.Series(t, "l", []string{"a", "b"}),
	)
	right := testutil.Frame(t,
		testutil.SeriesWithNulls(t, "k", []int64{1, 0}, []bool{true, false}),
		testutil.Series(t, "r", []string{"x", "y"}),
	)
	n, err := plan.NewJoin(scanOf(t, left), scanOf(t, right), []string{"k"}, []string{"k"}, plan.JoinInner)
	require.NoError(t, err)

	out := run(t, n)

	require.Equal(t, 1, out.Len(), "null keys join with nothing, not even each other")
	ls, _ := testutil.StringValues(t, out, "l")
	assert.Equal(t, []string{"a"}, ls)
}

func TestJoinSuffixesCollidingColumns(t *testing.T) {
	left := testutil.Frame(t,
		testutil.Series(t, "id", []int64{1}),
		testutil.Series(t, "v", []int64{10}),
	)
	right := testutil.Frame(t,
		testutil.Series(t, "id", []int64{1}),
		testutil.Series(t, "v", []int64{99}),
	)
	n, err := plan.NewJoin(scanOf(t, left), scanOf(t, right), []string{"id"}, []string{"id"}, plan.JoinInner)
	require.NoError(t, err)

	out := run(t, n)

	assert.Equal(t, []string{"id", "v", "v_right"}, out.ColumnNames())
	vs, _ := testutil.Int64Values(t, out, "v_right")
	assert.Equal(t, []int64{99}, vs)
}

func TestJoinOnDifferentKeyNames(t *testing.T) {
	left := testutil.Frame(t,
		testutil.Series(t, "uid", []int64{1, 2}),
		testutil.Series(t, "name", []string{"a", "b"}),
	)
	right := testutil.Frame(t,
		testutil.Series(t, "user_id", []int64{2}),
		testutil.Series(t, "score", []int64{7}),
	)
	n, err := plan.NewJoin(scanOf(t, left), scanOf(t, right), []string{"uid"}, []string{"user_id"}, plan.JoinInner)
	require.NoError(t, err)

	out := run(t, n)

	assert.Equal(t, []string{"uid", "name", "score"}, out.ColumnNames(),
		"the right key column does not repeat in the output")
	require.Equal(t, 1, out.Len())
}
