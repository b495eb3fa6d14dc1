// Package schema provides the statically-known shape of a DataFrame or of a
// logical plan node's output: an ordered mapping from column name to Arrow
// data type, independent of row count.
package schema

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/paveg/ibis/internal/errors"
)

// Schema is an ordered list of named, typed fields. Column names are unique;
// constructors enforce this and fail with a SchemaError otherwise.
type Schema struct {
	fields []arrow.Field
	index  map[string]int
}

// New builds a schema from fields, validating name uniqueness.
func New(fields ...arrow.Field) (*Schema, error) {
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		if _, dup := index[f.Name]; dup {
			return nil, errors.NewDuplicateColumnError("Schema", f.Name)
		}
		index[f.Name] = i
	}
	return &Schema{fields: append([]arrow.Field(nil), fields...), index: index}, nil
}

// MustNew is New for schemas known to be valid, e.g. derived from an input
// schema that was already checked.
func MustNew(fields ...arrow.Field) *Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// FromArrow converts an arrow.Schema.
func FromArrow(as *arrow.Schema) (*Schema, error) {
	return New(as.Fields()...)
}

// ToArrow converts to an arrow.Schema.
func (s *Schema) ToArrow() *arrow.Schema {
	return arrow.NewSchema(s.fields, nil)
}

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.fields) }

// Fields returns a copy of the fields in order.
func (s *Schema) Fields() []arrow.Field {
	return append([]arrow.Field(nil), s.fields...)
}

// Field returns the field at position i.
func (s *Schema) Field(i int) arrow.Field { return s.fields[i] }

// Names returns the column names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// IndexOf returns the position of the named field, or -1.
func (s *Schema) IndexOf(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Has reports whether the named field exists.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// FieldByName returns the named field, failing with a ColumnNotFoundError.
func (s *Schema) FieldByName(name string) (arrow.Field, error) {
	if i, ok := s.index[name]; ok {
		return s.fields[i], nil
	}
	return arrow.Field{}, errors.NewColumnNotFoundError("Schema", name)
}

// DataType returns the type of the named field, failing with a
// ColumnNotFoundError.
func (s *Schema) DataType(name string) (arrow.DataType, error) {
	f, err := s.FieldByName(name)
	if err != nil {
		return nil, err
	}
	return f.Type, nil
}

// Select returns the sub-schema containing exactly names in the given order.
// An unknown name fails with a ColumnNotFoundError.
func (s *Schema) Select(names ...string) (*Schema, error) {
	fields := make([]arrow.Field, 0, len(names))
	for _, name := range names {
		f, err := s.FieldByName(name)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return New(fields...)
}

// Drop returns the schema without the given names; unknown names are ignored.
func (s *Schema) Drop(names ...string) *Schema {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	fields := make([]arrow.Field, 0, len(s.fields))
	for _, f := range s.fields {
		if !drop[f.Name] {
			fields = append(fields, f)
		}
	}
	return MustNew(fields...)
}

// Equal reports structural equality: same names, same order, same types.
// List and Struct types compare recursively via arrow.TypeEqual.
func (s *Schema) Equal(other *Schema) bool {
	if other == nil || len(s.fields) != len(other.fields) {
		return false
	}
	for i, f := range s.fields {
		o := other.fields[i]
		if f.Name != o.Name || !arrow.TypeEqual(f.Type, o.Type) {
			return false
		}
	}
	return true
}

// Merge appends right's fields to s for join output schemas. A right field
// whose name collides with a left field is renamed with the suffix. The
// rename may itself collide, which fails with a SchemaError.
func (s *Schema) Merge(right *Schema, suffix string) (*Schema, error) {
	fields := s.Fields()
	for _, f := range right.fields {
		name := f.Name
		if s.Has(name) {
			name += suffix
		}
		fields = append(fields, arrow.Field{Name: name, Type: f.Type, Nullable: true})
	}
	return New(fields...)
}

// String renders the schema as "name: type" pairs.
func (s *Schema) String() string {
	var b strings.Builder
	b.WriteString("Schema[")
	for i, f := range s.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Type.String())
	}
	b.WriteString("]")
	return b.String()
}
