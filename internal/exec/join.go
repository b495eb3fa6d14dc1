package exec

import (
	"strings"

	"github.com/paveg/ibis/internal/dataframe"
	"github.com/paveg/ibis/internal/errors"
	"github.com/paveg/ibis/internal/plan"
	"github.com/paveg/ibis/internal/series"
)

// execJoin hash-joins two frames on equality of their key tuples. The
// smaller role is fixed by join type: inner/left/semi/anti build the table
// on the right and probe with left rows in order; right joins build on the
// left and probe with right rows. Rows whose key tuple contains a null
// never match.
func (ex *Executor) execJoin(left, right *dataframe.DataFrame, n *plan.JoinNode) (*dataframe.DataFrame, error) {
	leftKeys, err := keyColumns(left, n.LeftOn)
	if err != nil {
		return nil, err
	}
	rightKeys, err := keyColumns(right, n.RightOn)
	if err != nil {
		return nil, err
	}

	var leftIdx, rightIdx []int
	switch n.How {
	case plan.JoinInner, plan.JoinLeft:
		leftIdx, rightIdx = probeJoin(leftKeys, left.Len(), rightKeys, right.Len(), n.How == plan.JoinLeft)
	case plan.JoinRight:
		rightIdx, leftIdx = probeJoin(rightKeys, right.Len(), leftKeys, left.Len(), true)
	case plan.JoinOuter:
		leftIdx, rightIdx = outerJoin(leftKeys, left.Len(), rightKeys, right.Len())
	case plan.JoinSemi, plan.JoinAnti:
		rows := semiJoin(leftKeys, left.Len(), rightKeys, right.Len(), n.How == plan.JoinAnti)
		return takeFrame(ex.mem, left, rows)
	default:
		return nil, errors.NewComputeError("join", "unknown join type")
	}

	return ex.assembleJoin(left, right, n, leftIdx, rightIdx)
}

func keyColumns(df *dataframe.DataFrame, names []string) ([]*series.Series, error) {
	cols := make([]*series.Series, len(names))
	for i, name := range names {
		col, err := df.Column(name)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return cols, nil
}

// joinKey encodes a row's key tuple. ok is false when any component is
// null.
func joinKey(keys []*series.Series, row int) (string, bool) {
	var sb strings.Builder
	for i, key := range keys {
		if i > 0 {
			sb.WriteByte(0x1f)
		}
		if key.IsNull(row) {
			return "", false
		}
		sb.WriteByte(0x01)
		sb.WriteString(key.ValueStr(row))
	}
	return sb.String(), true
}

func buildHashTable(keys []*series.Series, length int) map[string][]int {
	table := make(map[string][]int, length)
	for row := 0; row < length; row++ {
		if k, ok := joinKey(keys, row); ok {
			table[k] = append(table[k], row)
		}
	}
	return table
}

// probeJoin builds on the build side and probes with every probe-side row
// in order, emitting one index pair per match in build-row order. With keep
// set, unmatched probe rows emit a pair whose build index is -1.
func probeJoin(probeKeys []*series.Series, probeLen int, buildKeys []*series.Series, buildLen int, keep bool) (probeIdx, buildIdx []int) {
	table := buildHashTable(buildKeys, buildLen)
	for row := 0; row < probeLen; row++ {
		k, ok := joinKey(probeKeys, row)
		if ok {
			if matches := table[k]; len(matches) > 0 {
				for _, m := range matches {
					probeIdx = append(probeIdx, row)
					buildIdx = append(buildIdx, m)
				}
				continue
			}
		}
		if keep {
			probeIdx = append(probeIdx, row)
			buildIdx = append(buildIdx, -1)
		}
	}
	return probeIdx, buildIdx
}

// outerJoin emits the left-join pairs followed by right rows that matched
// nothing.
func outerJoin(leftKeys []*series.Series, leftLen int, rightKeys []*series.Series, rightLen int) (leftIdx, rightIdx []int) {
	table := buildHashTable(rightKeys, rightLen)
	matched := make([]bool, rightLen)
	for row := 0; row < leftLen; row++ {
		k, ok := joinKey(leftKeys, row)
		if ok {
			if matches := table[k]; len(matches) > 0 {
				for _, m := range matches {
					leftIdx = append(leftIdx, row)
					rightIdx = append(rightIdx, m)
					matched[m] = true
				}
				continue
			}
		}
		leftIdx = append(leftIdx, row)
		rightIdx = append(rightIdx, -1)
	}
	for row := 0; row < rightLen; row++ {
		if !matched[row] {
			leftIdx = append(leftIdx, -1)
			rightIdx = append(rightIdx, row)
		}
	}
	return leftIdx, rightIdx
}

// semiJoin returns left row indices with at least one match (or, for anti,
// with none), each at most once, in left order.
func semiJoin(leftKeys []*series.Series, leftLen int, rightKeys []*series.Series, rightLen int, anti bool) []int {
	table := buildHashTable(rightKeys, rightLen)
	rows := make([]int, 0, leftLen)
	for row := 0; row < leftLen; row++ {
		k, ok := joinKey(leftKeys, row)
		hit := ok && len(table[k]) > 0
		if hit != anti {
			rows = append(rows, row)
		}
	}
	return rows
}

// assembleJoin gathers output columns from the index pairs. Left columns
// come first; right non-key columns follow, renamed to the node's output
// schema, which suffixes collisions with the left side.
func (ex *Executor) assembleJoin(left, right *dataframe.DataFrame, n *plan.JoinNode, leftIdx, rightIdx []int) (*dataframe.DataFrame, error) {
	outNames := n.Schema().Names()
	cols := make([]*series.Series, 0, len(outNames))

	for _, col := range left.Columns() {
		taken, err := col.Take(ex.mem, leftIdx)
		if err != nil {
			return nil, err
		}
		cols = append(cols, taken)
	}

	rightKeySet := make(map[string]struct{}, len(n.RightOn))
	for _, k := range n.RightOn {
		rightKeySet[k] = struct{}{}
	}
	for _, col := range right.Columns() {
		if _, isKey := rightKeySet[col.Name()]; isKey {
			continue
		}
		taken, err := col.Take(ex.mem, rightIdx)
		if err != nil {
			return nil, err
		}
		cols = append(cols, taken)
	}

	if len(cols) != len(outNames) {
		return nil, errors.NewComputeError("join", "output column count does not match schema")
	}
	for i, name := range outNames {
		cols[i] = cols[i].Rename(name)
	}
	return dataframe.New(cols...)
}
