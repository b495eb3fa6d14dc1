package exec

import (
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"golang.org/x/exp/constraints"

	"github.com/paveg/ibis/internal/dataframe"
	"github.com/paveg/ibis/internal/errors"
	"github.com/paveg/ibis/internal/expr"
)

// execSort orders rows by the evaluated sort keys. The sort is stable, so
// rows that compare equal on every key keep their input order. Nulls sort
// after valid values unless the key requests nulls first; two nulls compare
// equal.
func (ex *Executor) execSort(df *dataframe.DataFrame, keys []*expr.SortKeyExpr) (*dataframe.DataFrame, error) {
	in, err := expr.NewInput(df.Columns())
	if err != nil {
		return nil, err
	}
	ev := expr.NewEvaluator(ex.mem)

	cmps := make([]func(i, j int) int, len(keys))
	for k, key := range keys {
		arr, err := ev.Eval(key.Inner(), in)
		if err != nil {
			return nil, err
		}
		defer arr.Release()
		cmp, err := orderComparator(arr, key.Descending(), key.NullsFirst())
		if err != nil {
			return nil, err
		}
		cmps[k] = cmp
	}

	indices := make([]int, df.Len())
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		for _, cmp := range cmps {
			if c := cmp(indices[a], indices[b]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return takeFrame(ex.mem, df, indices)
}

// orderComparator returns a three-way row comparator over one key array.
// Descending flips value order but not null placement.
func orderComparator(arr arrow.Array, descending, nullsFirst bool) (func(i, j int) int, error) {
	value, err := valueComparator(arr)
	if err != nil {
		return nil, err
	}
	return func(i, j int) int {
		in, jn := arr.IsNull(i), arr.IsNull(j)
		switch {
		case in && jn:
			return 0
		case in:
			if nullsFirst {
				return -1
			}
			return 1
		case jn:
			if nullsFirst {
				return 1
			}
			return -1
		}
		c := value(i, j)
		if descending {
			return -c
		}
		return c
	}, nil
}

func valueComparator(arr arrow.Array) (func(i, j int) int, error) {
	switch a := arr.(type) {
	case *array.Int8:
		return func(i, j int) int { return orderedCmp(a.Value(i), a.Value(j)) }, nil
	case *array.Int16:
		return func(i, j int) int { return orderedCmp(a.Value(i), a.Value(j)) }, nil
	case *array.Int32:
		return func(i, j int) int { return orderedCmp(a.Value(i), a.Value(j)) }, nil
	case *array.Int64:
		return func(i, j int) int { return orderedCmp(a.Value(i), a.Value(j)) }, nil
	case *array.Uint8:
		return func(i, j int) int { return orderedCmp(a.Value(i), a.Value(j)) }, nil
	case *array.Uint16:
		return func(i, j int) int { return orderedCmp(a.Value(i), a.Value(j)) }, nil
	case *array.Uint32:
		return func(i, j int) int { return orderedCmp(a.Value(i), a.Value(j)) }, nil
	case *array.Uint64:
		return func(i, j int) int { return orderedCmp(a.Value(i), a.Value(j)) }, nil
	case *array.Float32:
		return func(i, j int) int { return orderedCmp(a.Value(i), a.Value(j)) }, nil
	case *array.Float64:
		return func(i, j int) int { return orderedCmp(a.Value(i), a.Value(j)) }, nil
	case *array.String:
		return func(i, j int) int { return orderedCmp(a.Value(i), a.Value(j)) }, nil
	case *array.Boolean:
		return func(i, j int) int {
			return orderedCmp(boolRank(a.Value(i)), boolRank(a.Value(j)))
		}, nil
	default:
		return nil, errors.NewTypeError("sort",
			"type "+arr.DataType().String()+" is not orderable")
	}
}

func orderedCmp[T constraints.Ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
