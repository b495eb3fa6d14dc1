package expr

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/ibis/internal/errors"
	"github.com/paveg/ibis/internal/series"
)

// AggregateGroups reduces arr to one value per group. Each group is a list
// of row indices into arr; output rows follow group order. Null policy:
// sum, mean, min, max, std and var skip nulls; count counts non-null rows;
// len counts all rows; first and last take the boundary value, null
// included. An empty or all-null group yields null, except count and len
// which yield 0.
func AggregateGroups(mem memory.Allocator, agg AggType, arr arrow.Array, groups [][]int) (arrow.Array, error) {
	switch agg {
	case AggCount:
		out := make([]int64, len(groups))
		for g, idxs := range groups {
			for _, i := range idxs {
				if arr.IsValid(i) {
					out[g]++
				}
			}
		}
		return series.BuildArray(out, nil, mem), nil

	case AggCountAll:
		out := make([]int64, len(groups))
		for g, idxs := range groups {
			out[g] = int64(len(idxs))
		}
		return series.BuildArray(out, nil, mem), nil

	case AggSum:
		return aggregateSum(mem, arr, groups)

	case AggMean, AggStd, AggVar:
		return aggregateMoments(mem, agg, arr, groups)

	case AggMin, AggMax, AggFirst, AggLast:
		return aggregateSelect(mem, agg, arr, groups)

	default:
		return nil, errors.NewComputeError("aggregate", fmt.Sprintf("unknown aggregation %v", agg))
	}
}

// AggregateAll reduces the whole array to a single-row result.
func AggregateAll(mem memory.Allocator, agg AggType, arr arrow.Array) (arrow.Array, error) {
	all := make([]int, arr.Len())
	for i := range all {
		all[i] = i
	}
	return AggregateGroups(mem, agg, arr, [][]int{all})
}

func aggregateSum(mem memory.Allocator, arr arrow.Array, groups [][]int) (arrow.Array, error) {
	dt := arr.DataType()
	if isFloat(dt) {
		values, valid, err := toFloat64s(arr)
		if err != nil {
			return nil, err
		}
		sums := make([]float64, len(groups))
		outValid := make([]bool, len(groups))
		for g, idxs := range groups {
			for _, i := range idxs {
				if valid[i] {
					sums[g] += values[i]
					outValid[g] = true
				}
			}
		}
		return series.BuildArray(sums, outValid, mem), nil
	}

	values, valid, err := toInt64s(arr)
	if err != nil {
		return nil, errors.NewTypeError("sum", fmt.Sprintf("cannot sum %s", dt))
	}
	sums := make([]int64, len(groups))
	outValid := make([]bool, len(groups))
	for g, idxs := range groups {
		for _, i := range idxs {
			if valid[i] {
				sums[g] += values[i]
				outValid[g] = true
			}
		}
	}
	return series.BuildArray(sums, outValid, mem), nil
}

// aggregateMoments computes mean, sample variance or sample standard
// deviation in float64. Variance uses the two-pass formula for stability;
// groups with fewer than two non-null values yield null for std and var.
func aggregateMoments(mem memory.Allocator, agg AggType, arr arrow.Array, groups [][]int) (arrow.Array, error) {
	values, valid, err := toFloat64s(arr)
	if err != nil {
		return nil, errors.NewTypeError(agg.String(),
			fmt.Sprintf("cannot compute %s of %s", agg, arr.DataType()))
	}

	out := make([]float64, len(groups))
	outValid := make([]bool, len(groups))
	for g, idxs := range groups {
		var sum float64
		var count int
		for _, i := range idxs {
			if valid[i] {
				sum += values[i]
				count++
			}
		}
		if count == 0 {
			continue
		}
		mean := sum / float64(count)
		if agg == AggMean {
			out[g] = mean
			outValid[g] = true
			continue
		}
		if count < 2 {
			continue
		}
		var ss float64
		for _, i := range idxs {
			if valid[i] {
				d := values[i] - mean
				ss += d * d
			}
		}
		v := ss / float64(count-1)
		if agg == AggStd {
			v = math.Sqrt(v)
		}
		out[g] = v
		outValid[g] = true
	}
	return series.BuildArray(out, outValid, mem), nil
}

// aggregateSelect covers the aggregations that pick an existing row per
// group: min, max, first, last. The result array keeps the input type.
func aggregateSelect(mem memory.Allocator, agg AggType, arr arrow.Array, groups [][]int) (arrow.Array, error) {
	pick := make([]int, len(groups)) // -1 means null output
	switch agg {
	case AggFirst:
		for g, idxs := range groups {
			pick[g] = -1
			if len(idxs) > 0 {
				pick[g] = idxs[0]
			}
		}
	case AggLast:
		for g, idxs := range groups {
			pick[g] = -1
			if len(idxs) > 0 {
				pick[g] = idxs[len(idxs)-1]
			}
		}
	default:
		less, err := lessFunc(arr)
		if err != nil {
			return nil, errors.NewTypeError(agg.String(),
				fmt.Sprintf("%s is not ordered", arr.DataType()))
		}
		for g, idxs := range groups {
			best := -1
			for _, i := range idxs {
				if !arr.IsValid(i) {
					continue
				}
				if best == -1 {
					best = i
					continue
				}
				if agg == AggMin && less(i, best) {
					best = i
				} else if agg == AggMax && less(best, i) {
					best = i
				}
			}
			pick[g] = best
		}
	}

	builder := array.NewBuilder(mem, arr.DataType())
	defer builder.Release()
	for _, i := range pick {
		if i < 0 || arr.IsNull(i) {
			builder.AppendNull()
			continue
		}
		if err := appendValueAt(builder, arr, i); err != nil {
			return nil, err
		}
	}
	return builder.NewArray(), nil
}

// lessFunc returns an index comparator over an array's valid values.
func lessFunc(arr arrow.Array) (func(i, j int) bool, error) {
	switch a := arr.(type) {
	case *array.Boolean:
		return func(i, j int) bool { return !a.Value(i) && a.Value(j) }, nil
	case *array.String:
		return func(i, j int) bool { return a.Value(i) < a.Value(j) }, nil
	case *array.Float32:
		return func(i, j int) bool { return a.Value(i) < a.Value(j) }, nil
	case *array.Float64:
		return func(i, j int) bool { return a.Value(i) < a.Value(j) }, nil
	default:
		values, _, err := toInt64s(arr)
		if err != nil {
			return nil, err
		}
		return func(i, j int) bool { return values[i] < values[j] }, nil
	}
}
