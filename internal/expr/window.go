package expr

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/paveg/ibis/internal/errors"
	"github.com/paveg/ibis/internal/series"
)

// evalWindow computes an aggregation per partition and broadcasts each
// partition's value back to its member rows, preserving input row order.
func (ev *Evaluator) evalWindow(w *WindowExpr, in *Input) (arrow.Array, error) {
	keys := make([]*series.Series, len(w.partitionBy))
	for i, name := range w.partitionBy {
		col, ok := in.Column(name)
		if !ok {
			return nil, errors.NewColumnNotFoundError("window", name)
		}
		keys[i] = col
	}

	groups, rowGroup := PartitionRows(keys, in.Len())

	inner, err := ev.Eval(w.inner.inner, in)
	if err != nil {
		return nil, err
	}
	defer inner.Release()

	perGroup, err := AggregateGroups(ev.mem, w.inner.agg, inner, groups)
	if err != nil {
		return nil, err
	}
	defer perGroup.Release()

	builder := array.NewBuilder(ev.mem, perGroup.DataType())
	defer builder.Release()
	for row := 0; row < in.Len(); row++ {
		g := rowGroup[row]
		if perGroup.IsNull(g) {
			builder.AppendNull()
			continue
		}
		if err := appendValueAt(builder, perGroup, g); err != nil {
			return nil, err
		}
	}
	return builder.NewArray(), nil
}

// PartitionRows groups row indices by the tuple of key column values.
// Null keys form their own group. Groups appear in first-seen row order;
// rowGroup maps each row back to its group index.
func PartitionRows(keys []*series.Series, length int) (groups [][]int, rowGroup []int) {
	index := make(map[string]int)
	rowGroup = make([]int, length)
	var sb strings.Builder
	for row := 0; row < length; row++ {
		sb.Reset()
		for i, key := range keys {
			if i > 0 {
				sb.WriteByte(0x1f)
			}
			if key.IsNull(row) {
				sb.WriteByte(0x00)
			} else {
				sb.WriteByte(0x01)
				sb.WriteString(key.ValueStr(row))
			}
		}
		k := sb.String()
		g, ok := index[k]
		if !ok {
			g = len(groups)
			index[k] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], row)
		rowGroup[row] = g
	}
	return groups, rowGroup
}
