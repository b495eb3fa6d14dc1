package expr

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/ibis/internal/errors"
	"github.com/paveg/ibis/internal/series"
)

// validityOf extracts the per-row validity mask of an array.
func validityOf(arr arrow.Array) []bool {
	valid := make([]bool, arr.Len())
	for i := range valid {
		valid[i] = arr.IsValid(i)
	}
	return valid
}

// toInt64s widens any integer or Boolean array to int64 values plus
// validity. Booleans read as 0 and 1; null slots hold the zero value.
func toInt64s(arr arrow.Array) ([]int64, []bool, error) {
	n := arr.Len()
	values := make([]int64, n)
	valid := validityOf(arr)
	switch a := arr.(type) {
	case *array.Boolean:
		for i := 0; i < n; i++ {
			if valid[i] && a.Value(i) {
				values[i] = 1
			}
		}
	case *array.Int8:
		for i := 0; i < n; i++ {
			if valid[i] {
				values[i] = int64(a.Value(i))
			}
		}
	case *array.Int16:
		for i := 0; i < n; i++ {
			if valid[i] {
				values[i] = int64(a.Value(i))
			}
		}
	case *array.Int32:
		for i := 0; i < n; i++ {
			if valid[i] {
				values[i] = int64(a.Value(i))
			}
		}
	case *array.Int64:
		for i := 0; i < n; i++ {
			if valid[i] {
				values[i] = a.Value(i)
			}
		}
	case *array.Uint8:
		for i := 0; i < n; i++ {
			if valid[i] {
				values[i] = int64(a.Value(i))
			}
		}
	case *array.Uint16:
		for i := 0; i < n; i++ {
			if valid[i] {
				values[i] = int64(a.Value(i))
			}
		}
	case *array.Uint32:
		for i := 0; i < n; i++ {
			if valid[i] {
				values[i] = int64(a.Value(i))
			}
		}
	case *array.Uint64:
		for i := 0; i < n; i++ {
			if valid[i] {
				values[i] = int64(a.Value(i))
			}
		}
	default:
		return nil, nil, errors.NewTypeError("to_int64",
			fmt.Sprintf("cannot read %s as int64", arr.DataType()))
	}
	return values, valid, nil
}

// toFloat64s widens any numeric array to float64 values plus validity.
func toFloat64s(arr arrow.Array) ([]float64, []bool, error) {
	n := arr.Len()
	valid := validityOf(arr)
	switch a := arr.(type) {
	case *array.Float32:
		values := make([]float64, n)
		for i := 0; i < n; i++ {
			if valid[i] {
				values[i] = float64(a.Value(i))
			}
		}
		return values, valid, nil
	case *array.Float64:
		values := make([]float64, n)
		for i := 0; i < n; i++ {
			if valid[i] {
				values[i] = a.Value(i)
			}
		}
		return values, valid, nil
	default:
		ints, valid, err := toInt64s(arr)
		if err != nil {
			return nil, nil, errors.NewTypeError("to_float64",
				fmt.Sprintf("cannot read %s as float64", arr.DataType()))
		}
		values := make([]float64, n)
		for i := 0; i < n; i++ {
			if valid[i] {
				values[i] = float64(ints[i])
			}
		}
		return values, valid, nil
	}
}

// toBools extracts a Boolean array's values plus validity.
func toBools(arr arrow.Array) ([]bool, []bool, error) {
	a, ok := arr.(*array.Boolean)
	if !ok {
		return nil, nil, errors.NewTypeError("to_bool",
			fmt.Sprintf("expected Boolean array, got %s", arr.DataType()))
	}
	n := a.Len()
	values := make([]bool, n)
	valid := validityOf(arr)
	for i := 0; i < n; i++ {
		if valid[i] {
			values[i] = a.Value(i)
		}
	}
	return values, valid, nil
}

// toStrings extracts a String array's values plus validity.
func toStrings(arr arrow.Array) ([]string, []bool, error) {
	a, ok := arr.(*array.String)
	if !ok {
		return nil, nil, errors.NewTypeError("to_string",
			fmt.Sprintf("expected String array, got %s", arr.DataType()))
	}
	n := a.Len()
	values := make([]string, n)
	valid := validityOf(arr)
	for i := 0; i < n; i++ {
		if valid[i] {
			values[i] = a.Value(i)
		}
	}
	return values, valid, nil
}

// narrowInt64 converts widened int64 values back into a concrete integer
// array of the requested type. Values are assumed in range for dt; callers
// must have promoted correctly.
func narrowInt64(mem memory.Allocator, dt arrow.DataType, values []int64, valid []bool) (arrow.Array, error) {
	switch dt.ID() {
	case arrow.INT8:
		out := make([]int8, len(values))
		for i, v := range values {
			out[i] = int8(v)
		}
		return series.BuildArray(out, valid, mem), nil
	case arrow.INT16:
		out := make([]int16, len(values))
		for i, v := range values {
			out[i] = int16(v)
		}
		return series.BuildArray(out, valid, mem), nil
	case arrow.INT32:
		out := make([]int32, len(values))
		for i, v := range values {
			out[i] = int32(v)
		}
		return series.BuildArray(out, valid, mem), nil
	case arrow.INT64:
		return series.BuildArray(values, valid, mem), nil
	case arrow.UINT8:
		out := make([]uint8, len(values))
		for i, v := range values {
			out[i] = uint8(v)
		}
		return series.BuildArray(out, valid, mem), nil
	case arrow.UINT16:
		out := make([]uint16, len(values))
		for i, v := range values {
			out[i] = uint16(v)
		}
		return series.BuildArray(out, valid, mem), nil
	case arrow.UINT32:
		out := make([]uint32, len(values))
		for i, v := range values {
			out[i] = uint32(v)
		}
		return series.BuildArray(out, valid, mem), nil
	case arrow.UINT64:
		out := make([]uint64, len(values))
		for i, v := range values {
			out[i] = uint64(v)
		}
		return series.BuildArray(out, valid, mem), nil
	default:
		return nil, errors.NewTypeError("narrow",
			fmt.Sprintf("%s is not an integer type", dt))
	}
}

// narrowFloat64 converts widened float64 values into a float array of the
// requested type.
func narrowFloat64(mem memory.Allocator, dt arrow.DataType, values []float64, valid []bool) (arrow.Array, error) {
	switch dt.ID() {
	case arrow.FLOAT32:
		out := make([]float32, len(values))
		for i, v := range values {
			out[i] = float32(v)
		}
		return series.BuildArray(out, valid, mem), nil
	case arrow.FLOAT64:
		return series.BuildArray(values, valid, mem), nil
	default:
		return nil, errors.NewTypeError("narrow",
			fmt.Sprintf("%s is not a float type", dt))
	}
}
