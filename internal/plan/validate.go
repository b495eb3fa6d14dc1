package plan

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	ierrors "github.com/paveg/ibis/internal/errors"
	"github.com/paveg/ibis/internal/expr"
	"github.com/paveg/ibis/internal/schema"
)

// CheckPredicate validates that an expression references only existing
// columns and types to Boolean.
func CheckPredicate(pred expr.Expr, s *schema.Schema) error {
	dt, err := expr.TypeOf(pred, s)
	if err != nil {
		return err
	}
	if dt.ID() != arrow.BOOL {
		return ierrors.NewTypeError("filter",
			fmt.Sprintf("predicate must be Boolean, got %s", dt)).WithExpr(pred.String())
	}
	if expr.ContainsAggregation(pred) {
		return ierrors.NewSchemaError("filter",
			fmt.Sprintf("predicate %s contains an aggregation", pred.String()))
	}
	return nil
}

// ExpandWildcards replaces each wildcard in a projection list with column
// references for every input column, in schema order.
func ExpandWildcards(exprs []expr.Expr, s *schema.Schema) ([]expr.Expr, error) {
	out := make([]expr.Expr, 0, len(exprs))
	for _, e := range exprs {
		if e.Kind() == expr.KindWildcard {
			for _, name := range s.Names() {
				out = append(out, expr.Col(name))
			}
			continue
		}
		if expr.HasWildcard(e) {
			return nil, ierrors.NewSchemaError("select",
				fmt.Sprintf("wildcard must stand alone, not inside %s", e.String()))
		}
		out = append(out, e)
	}
	return out, nil
}

// deriveFields type-checks a projection list and derives its output fields,
// rejecting duplicate output names.
func deriveFields(exprs []expr.Expr, s *schema.Schema, op string) ([]arrow.Field, error) {
	fields := make([]arrow.Field, 0, len(exprs))
	seen := make(map[string]struct{}, len(exprs))
	for _, e := range exprs {
		dt, err := expr.TypeOf(e, s)
		if err != nil {
			return nil, err
		}
		name := expr.OutputName(e)
		if _, dup := seen[name]; dup {
			return nil, ierrors.NewDuplicateColumnError(op, name)
		}
		seen[name] = struct{}{}
		fields = append(fields, arrow.Field{Name: name, Type: dt, Nullable: true})
	}
	return fields, nil
}

// typesJoinable reports whether two key types can be hash-joined: equal
// types always, plus any numeric pair through promotion.
func typesJoinable(lt, rt arrow.DataType) bool {
	if arrow.TypeEqual(lt, rt) {
		return true
	}
	_, err := expr.Promote(lt, rt)
	return err == nil
}

// orderable reports whether a type supports sorting.
func orderable(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.BOOL, arrow.STRING,
		arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT32, arrow.FLOAT64:
		return true
	default:
		return false
	}
}
