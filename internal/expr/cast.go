package expr

import (
	"fmt"
	"math"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/ibis/internal/errors"
	"github.com/paveg/ibis/internal/series"
)

// checkCastable validates a dtype pair at planning time, before any data
// exists. Pairs rejected here fail fast in the builder.
func checkCastable(from, to arrow.DataType) error {
	if arrow.TypeEqual(from, to) {
		return nil
	}
	switch {
	case from.ID() == arrow.NULL:
		return nil
	case isNumeric(from) && isNumeric(to):
		return nil
	case isNumeric(from) && to.ID() == arrow.STRING:
		return nil
	case from.ID() == arrow.STRING && isNumeric(to):
		return nil
	case from.ID() == arrow.BOOL && (isNumeric(to) || to.ID() == arrow.STRING):
		return nil
	case from.ID() == arrow.STRING && to.ID() == arrow.BOOL:
		return nil
	default:
		return errors.NewCastError("cast", "",
			fmt.Sprintf("no conversion from %s to %s", from, to))
	}
}

// intRange returns the inclusive value range of a signed or unsigned
// integer type, expressed in int64 terms. Uint64's upper bound saturates at
// MaxInt64 since the engine widens through int64.
func intRange(dt arrow.DataType) (lo, hi int64, ok bool) {
	switch dt.ID() {
	case arrow.INT8:
		return math.MinInt8, math.MaxInt8, true
	case arrow.INT16:
		return math.MinInt16, math.MaxInt16, true
	case arrow.INT32:
		return math.MinInt32, math.MaxInt32, true
	case arrow.INT64:
		return math.MinInt64, math.MaxInt64, true
	case arrow.UINT8:
		return 0, math.MaxUint8, true
	case arrow.UINT16:
		return 0, math.MaxUint16, true
	case arrow.UINT32:
		return 0, math.MaxUint32, true
	case arrow.UINT64:
		return 0, math.MaxInt64, true
	default:
		return 0, 0, false
	}
}

// CastArray converts an array to the target type. Strict mode fails with a
// CastError on the first unrepresentable value; lossy mode nulls it. Both
// modes truncate float-to-integer conversions toward zero.
func CastArray(mem memory.Allocator, arr arrow.Array, target arrow.DataType, strict bool) (arrow.Array, error) {
	from := arr.DataType()
	if arrow.TypeEqual(from, target) {
		arr.Retain()
		return arr, nil
	}
	if from.ID() == arrow.NULL {
		return array.MakeArrayOfNull(mem, target, arr.Len()), nil
	}
	if err := checkCastable(from, target); err != nil {
		return nil, err
	}

	switch {
	case isNumeric(from) && isInteger(target):
		return castToInteger(mem, arr, target, strict)
	case isNumeric(from) && isFloat(target):
		values, valid, err := toFloat64s(arr)
		if err != nil {
			return nil, err
		}
		return narrowFloat64(mem, target, values, valid)
	case isNumeric(from) && target.ID() == arrow.STRING:
		return castNumericToString(mem, arr)
	case from.ID() == arrow.STRING && isNumeric(target):
		return castStringToNumeric(mem, arr, target, strict)
	case from.ID() == arrow.BOOL:
		return castFromBool(mem, arr, target)
	case from.ID() == arrow.STRING && target.ID() == arrow.BOOL:
		return castStringToBool(mem, arr, strict)
	default:
		return nil, errors.NewCastError("cast", "",
			fmt.Sprintf("no conversion from %s to %s", from, target))
	}
}

func castToInteger(mem memory.Allocator, arr arrow.Array, target arrow.DataType, strict bool) (arrow.Array, error) {
	lo, hi, _ := intRange(target)
	n := arr.Len()
	values := make([]int64, n)
	valid := make([]bool, n)

	if isFloat(arr.DataType()) {
		src, svalid, err := toFloat64s(arr)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			if !svalid[i] {
				continue
			}
			v := src[i]
			if math.IsNaN(v) || math.IsInf(v, 0) || v < float64(lo) || v > float64(hi) {
				if strict {
					return nil, errors.NewCastError("cast", "",
						fmt.Sprintf("value %v out of range for %s", v, target))
				}
				continue
			}
			values[i] = int64(math.Trunc(v))
			valid[i] = true
		}
		return narrowInt64(mem, target, values, valid)
	}

	src, svalid, err := toInt64s(arr)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		if !svalid[i] {
			continue
		}
		if src[i] < lo || src[i] > hi {
			if strict {
				return nil, errors.NewCastError("cast", "",
					fmt.Sprintf("value %d out of range for %s", src[i], target))
			}
			continue
		}
		values[i] = src[i]
		valid[i] = true
	}
	return narrowInt64(mem, target, values, valid)
}

func castNumericToString(mem memory.Allocator, arr arrow.Array) (arrow.Array, error) {
	n := arr.Len()
	values := make([]string, n)
	valid := validityOf(arr)
	if isFloat(arr.DataType()) {
		src, _, err := toFloat64s(arr)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			if valid[i] {
				values[i] = strconv.FormatFloat(src[i], 'g', -1, 64)
			}
		}
	} else {
		src, _, err := toInt64s(arr)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			if valid[i] {
				values[i] = strconv.FormatInt(src[i], 10)
			}
		}
	}
	return series.BuildArray(values, valid, mem), nil
}

func castStringToNumeric(mem memory.Allocator, arr arrow.Array, target arrow.DataType, strict bool) (arrow.Array, error) {
	src, svalid, err := toStrings(arr)
	if err != nil {
		return nil, err
	}
	n := len(src)

	if isFloat(target) {
		values := make([]float64, n)
		valid := make([]bool, n)
		for i := 0; i < n; i++ {
			if !svalid[i] {
				continue
			}
			v, perr := strconv.ParseFloat(src[i], 64)
			if perr != nil {
				if strict {
					return nil, errors.NewCastError("cast", "",
						fmt.Sprintf("cannot parse %q as %s", src[i], target))
				}
				continue
			}
			values[i] = v
			valid[i] = true
		}
		return narrowFloat64(mem, target, values, valid)
	}

	lo, hi, _ := intRange(target)
	values := make([]int64, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		if !svalid[i] {
			continue
		}
		v, perr := strconv.ParseInt(src[i], 10, 64)
		if perr != nil || v < lo || v > hi {
			if strict {
				return nil, errors.NewCastError("cast", "",
					fmt.Sprintf("cannot parse %q as %s", src[i], target))
			}
			continue
		}
		values[i] = v
		valid[i] = true
	}
	return narrowInt64(mem, target, values, valid)
}

func castFromBool(mem memory.Allocator, arr arrow.Array, target arrow.DataType) (arrow.Array, error) {
	src, valid, err := toBools(arr)
	if err != nil {
		return nil, err
	}
	n := len(src)
	if target.ID() == arrow.STRING {
		values := make([]string, n)
		for i := 0; i < n; i++ {
			if valid[i] {
				values[i] = strconv.FormatBool(src[i])
			}
		}
		return series.BuildArray(values, valid, mem), nil
	}
	values := make([]int64, n)
	for i := 0; i < n; i++ {
		if valid[i] && src[i] {
			values[i] = 1
		}
	}
	if isFloat(target) {
		floats := make([]float64, n)
		for i, v := range values {
			floats[i] = float64(v)
		}
		return narrowFloat64(mem, target, floats, valid)
	}
	return narrowInt64(mem, target, values, valid)
}

func castStringToBool(mem memory.Allocator, arr arrow.Array, strict bool) (arrow.Array, error) {
	src, svalid, err := toStrings(arr)
	if err != nil {
		return nil, err
	}
	n := len(src)
	values := make([]bool, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		if !svalid[i] {
			continue
		}
		v, perr := strconv.ParseBool(src[i])
		if perr != nil {
			if strict {
				return nil, errors.NewCastError("cast", "",
					fmt.Sprintf("cannot parse %q as bool", src[i]))
			}
			continue
		}
		values[i] = v
		valid[i] = true
	}
	return series.BuildArray(values, valid, mem), nil
}
