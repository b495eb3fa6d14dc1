// Package series provides the columnar value model: a named, typed, nullable
// sequence of values stored as one or more contiguous Arrow array chunks.
//
// Series are immutable once constructed. Transformations produce new Series
// that share chunk storage through Arrow's reference counting; a write ever
// happens in place only when the chunk refcount proves unique ownership,
// otherwise the producing operation builds a fresh array.
package series

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/ibis/internal/errors"
)

// Series represents a typed data column with an Apache Arrow backend.
// All chunks share the same data type; length is the sum of chunk lengths;
// per-element validity lives in the chunks' null bitmaps, independent of the
// physical value at a slot.
type Series struct {
	name   string
	dtype  arrow.DataType
	chunks []arrow.Array
	length int
}

// FromChunks creates a Series from existing Arrow arrays, retaining each.
// All chunks must share one data type.
func FromChunks(name string, chunks ...arrow.Array) (*Series, error) {
	if len(chunks) == 0 {
		return nil, errors.NewSchemaError("Series", "at least one chunk required")
	}
	dtype := chunks[0].DataType()
	length := 0
	for _, c := range chunks {
		if !arrow.TypeEqual(c.DataType(), dtype) {
			return nil, errors.NewTypeError("Series",
				fmt.Sprintf("chunk type %s does not match series type %s", c.DataType(), dtype))
		}
		length += c.Len()
	}
	for _, c := range chunks {
		c.Retain()
	}
	return &Series{name: name, dtype: dtype, chunks: append([]arrow.Array(nil), chunks...), length: length}, nil
}

// FromArray creates a single-chunk Series, retaining the array.
func FromArray(name string, arr arrow.Array) *Series {
	arr.Retain()
	return &Series{name: name, dtype: arr.DataType(), chunks: []arrow.Array{arr}, length: arr.Len()}
}

// Empty creates a zero-row Series of the given type.
func Empty(name string, dtype arrow.DataType, mem memory.Allocator) (*Series, error) {
	builder := array.NewBuilder(mem, dtype)
	defer builder.Release()
	arr := builder.NewArray()
	defer arr.Release()
	return FromArray(name, arr), nil
}

// New creates a Series from a slice of values with no nulls.
func New[T any](name string, values []T, mem memory.Allocator) *Series {
	return NewWithNulls(name, values, nil, mem)
}

// NewWithNulls creates a Series from values plus a validity mask. A nil mask
// means all values are valid; otherwise valid[i]==false marks a null at i
// regardless of values[i].
func NewWithNulls[T any](name string, values []T, valid []bool, mem memory.Allocator) *Series {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	arr := BuildArray(values, valid, mem)
	defer arr.Release()
	return FromArray(name, arr)
}

// BuildArray constructs an Arrow array from a Go slice and an optional
// validity mask. The caller owns the returned array.
func BuildArray[T any](values []T, valid []bool, mem memory.Allocator) arrow.Array {
	switch v := any(values).(type) {
	case []bool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		b.AppendValues(v, valid)
		return b.NewArray()
	case []int8:
		b := array.NewInt8Builder(mem)
		defer b.Release()
		b.AppendValues(v, valid)
		return b.NewArray()
	case []int16:
		b := array.NewInt16Builder(mem)
		defer b.Release()
		b.AppendValues(v, valid)
		return b.NewArray()
	case []int32:
		b := array.NewInt32Builder(mem)
		defer b.Release()
		b.AppendValues(v, valid)
		return b.NewArray()
	case []int64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		b.AppendValues(v, valid)
		return b.NewArray()
	case []uint8:
		b := array.NewUint8Builder(mem)
		defer b.Release()
		b.AppendValues(v, valid)
		return b.NewArray()
	case []uint16:
		b := array.NewUint16Builder(mem)
		defer b.Release()
		b.AppendValues(v, valid)
		return b.NewArray()
	case []uint32:
		b := array.NewUint32Builder(mem)
		defer b.Release()
		b.AppendValues(v, valid)
		return b.NewArray()
	case []uint64:
		b := array.NewUint64Builder(mem)
		defer b.Release()
		b.AppendValues(v, valid)
		return b.NewArray()
	case []float32:
		b := array.NewFloat32Builder(mem)
		defer b.Release()
		b.AppendValues(v, valid)
		return b.NewArray()
	case []float64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.AppendValues(v, valid)
		return b.NewArray()
	case []string:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		b.AppendStringValues(v, valid)
		return b.NewArray()
	case [][]byte:
		b := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
		defer b.Release()
		b.AppendValues(v, valid)
		return b.NewArray()
	default:
		panic(fmt.Sprintf("unsupported value type: %T", values))
	}
}

// Name returns the column name.
func (s *Series) Name() string { return s.name }

// Rename returns a Series with a new name sharing the same chunks.
func (s *Series) Rename(name string) *Series {
	for _, c := range s.chunks {
		c.Retain()
	}
	return &Series{name: name, dtype: s.dtype, chunks: append([]arrow.Array(nil), s.chunks...), length: s.length}
}

// DataType returns the Arrow data type shared by all chunks.
func (s *Series) DataType() arrow.DataType { return s.dtype }

// Len returns the total number of elements across chunks.
func (s *Series) Len() int { return s.length }

// NChunks returns the number of physical chunks.
func (s *Series) NChunks() int { return len(s.chunks) }

// Chunk returns chunk i without retaining it.
func (s *Series) Chunk(i int) arrow.Array { return s.chunks[i] }

// Chunks returns the chunk list without retaining. Callers must not release.
func (s *Series) Chunks() []arrow.Array { return s.chunks }

// Field returns the schema field for this series. Nullable is always true;
// the validity bitmap decides per element.
func (s *Series) Field() arrow.Field {
	return arrow.Field{Name: s.name, Type: s.dtype, Nullable: true}
}

// resolve maps a logical index to (chunk, offset within chunk).
func (s *Series) resolve(i int) (int, int) {
	for ci, c := range s.chunks {
		if i < c.Len() {
			return ci, i
		}
		i -= c.Len()
	}
	return -1, -1
}

// IsNull checks if the value at index is null. Out-of-range indexes report
// true; range checks belong to the caller.
func (s *Series) IsNull(i int) bool {
	ci, off := s.resolve(i)
	if ci < 0 {
		return true
	}
	return s.chunks[ci].IsNull(off)
}

// ValueStr renders the value at index for display; nulls render as "null".
func (s *Series) ValueStr(i int) string {
	ci, off := s.resolve(i)
	if ci < 0 || s.chunks[ci].IsNull(off) {
		return "null"
	}
	return s.chunks[ci].ValueStr(off)
}

// Rechunk concatenates all chunks into a single contiguous chunk, preserving
// length, dtype and per-index value/nullity. A single-chunk series is
// returned as a shared clone.
func (s *Series) Rechunk(mem memory.Allocator) (*Series, error) {
	if len(s.chunks) == 1 {
		return s.Clone(), nil
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	merged, err := array.Concatenate(s.chunks, mem)
	if err != nil {
		return nil, errors.Wrap("Rechunk", err)
	}
	return &Series{name: s.name, dtype: s.dtype, chunks: []arrow.Array{merged}, length: s.length}, nil
}

// ContiguousArray returns the series data as a single retained Arrow array,
// rechunking if needed. The caller releases the result.
func (s *Series) ContiguousArray(mem memory.Allocator) (arrow.Array, error) {
	if len(s.chunks) == 1 {
		s.chunks[0].Retain()
		return s.chunks[0], nil
	}
	r, err := s.Rechunk(mem)
	if err != nil {
		return nil, err
	}
	arr := r.chunks[0]
	arr.Retain()
	r.Release()
	return arr, nil
}

// Slice returns the sub-series [offset, offset+length) as zero-copy slices of
// the underlying chunks. Ranges past the series length fail with an
// OutOfBoundsError.
func (s *Series) Slice(offset, length int) (*Series, error) {
	if offset < 0 || length < 0 || offset+length > s.length {
		return nil, errors.NewOutOfBoundsError("Slice", offset+length, s.length)
	}
	if length == 0 {
		empty := array.MakeArrayOfNull(memory.NewGoAllocator(), s.dtype, 0)
		defer empty.Release()
		return FromArray(s.name, empty), nil
	}
	var out []arrow.Array
	remaining := length
	skip := offset
	for _, c := range s.chunks {
		if skip >= c.Len() {
			skip -= c.Len()
			continue
		}
		take := c.Len() - skip
		if take > remaining {
			take = remaining
		}
		out = append(out, array.NewSlice(c, int64(skip), int64(skip+take)))
		remaining -= take
		skip = 0
		if remaining == 0 {
			break
		}
	}
	return &Series{name: s.name, dtype: s.dtype, chunks: out, length: length}, nil
}

// Concat appends the chunks of others without copying values. All inputs
// must share the data type.
func (s *Series) Concat(others ...*Series) (*Series, error) {
	chunks := append([]arrow.Array(nil), s.chunks...)
	length := s.length
	for _, o := range others {
		if !arrow.TypeEqual(o.dtype, s.dtype) {
			return nil, errors.NewTypeError("Concat",
				fmt.Sprintf("cannot concat %s series onto %s series", o.dtype, s.dtype))
		}
		chunks = append(chunks, o.chunks...)
		length += o.length
	}
	for _, c := range chunks {
		c.Retain()
	}
	return &Series{name: s.name, dtype: s.dtype, chunks: chunks, length: length}, nil
}

// NullCount returns the number of null elements.
func (s *Series) NullCount() int {
	n := 0
	for _, c := range s.chunks {
		n += c.NullN()
	}
	return n
}

// Clone returns a cheap reference to the same chunk storage.
func (s *Series) Clone() *Series {
	for _, c := range s.chunks {
		c.Retain()
	}
	return &Series{name: s.name, dtype: s.dtype, chunks: append([]arrow.Array(nil), s.chunks...), length: s.length}
}

// Equal reports deep equality of name, dtype, length and per-index
// value/nullity. Intended for tests and fixtures, not hot paths.
func (s *Series) Equal(other *Series) bool {
	if other == nil || s.name != other.name || s.length != other.length {
		return false
	}
	if !arrow.TypeEqual(s.dtype, other.dtype) {
		return false
	}
	for i := 0; i < s.length; i++ {
		ln, rn := s.IsNull(i), other.IsNull(i)
		if ln != rn {
			return false
		}
		if !ln && s.ValueStr(i) != other.ValueStr(i) {
			return false
		}
	}
	return true
}

// String returns a short representation of the series.
func (s *Series) String() string {
	return fmt.Sprintf("Series[%s: %s, len=%d, chunks=%d]", s.name, s.dtype, s.length, len(s.chunks))
}

// Release releases the underlying Arrow chunks.
func (s *Series) Release() {
	for _, c := range s.chunks {
		c.Release()
	}
	s.chunks = nil
}
