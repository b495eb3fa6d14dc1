package series

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/ibis/internal/errors"
)

// TakeArray gathers rows of arr at the given indices into a new array, in
// index order. An index of -1 emits a null row, which join emission uses
// for the unmatched side.
func TakeArray(mem memory.Allocator, arr arrow.Array, indices []int) (arrow.Array, error) {
	builder := array.NewBuilder(mem, arr.DataType())
	defer builder.Release()
	builder.Reserve(len(indices))

	for _, idx := range indices {
		if idx == -1 {
			builder.AppendNull()
			continue
		}
		if idx < 0 || idx >= arr.Len() {
			return nil, errors.NewOutOfBoundsError("take", idx, arr.Len())
		}
		if arr.IsNull(idx) {
			builder.AppendNull()
			continue
		}
		if err := appendFrom(builder, arr, idx); err != nil {
			return nil, err
		}
	}
	return builder.NewArray(), nil
}

// Take gathers rows of the series at the given indices. The result is a
// single-chunk series with the same name and type.
func (s *Series) Take(mem memory.Allocator, indices []int) (*Series, error) {
	arr, err := s.ContiguousArray(mem)
	if err != nil {
		return nil, err
	}
	defer arr.Release()
	out, err := TakeArray(mem, arr, indices)
	if err != nil {
		return nil, err
	}
	defer out.Release()
	return FromArray(s.name, out), nil
}

func appendFrom(b array.Builder, arr arrow.Array, idx int) error {
	switch src := arr.(type) {
	case *array.Boolean:
		b.(*array.BooleanBuilder).Append(src.Value(idx))
	case *array.Int8:
		b.(*array.Int8Builder).Append(src.Value(idx))
	case *array.Int16:
		b.(*array.Int16Builder).Append(src.Value(idx))
	case *array.Int32:
		b.(*array.Int32Builder).Append(src.Value(idx))
	case *array.Int64:
		b.(*array.Int64Builder).Append(src.Value(idx))
	case *array.Uint8:
		b.(*array.Uint8Builder).Append(src.Value(idx))
	case *array.Uint16:
		b.(*array.Uint16Builder).Append(src.Value(idx))
	case *array.Uint32:
		b.(*array.Uint32Builder).Append(src.Value(idx))
	case *array.Uint64:
		b.(*array.Uint64Builder).Append(src.Value(idx))
	case *array.Float32:
		b.(*array.Float32Builder).Append(src.Value(idx))
	case *array.Float64:
		b.(*array.Float64Builder).Append(src.Value(idx))
	case *array.String:
		b.(*array.StringBuilder).Append(src.Value(idx))
	case *array.Binary:
		b.(*array.BinaryBuilder).Append(src.Value(idx))
	default:
		return errors.NewTypeError("take",
			fmt.Sprintf("unsupported array type %s", arr.DataType()))
	}
	return nil
}
