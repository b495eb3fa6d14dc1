package expr

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/paveg/ibis/internal/errors"
	"github.com/paveg/ibis/internal/schema"
)

// numeric promotion ranks. Signed and floating types form a ladder; mixing
// int64 with float32 promotes to float64 so no int64 magnitude is lost.
func numericRank(dt arrow.DataType) (int, bool) {
	switch dt.ID() {
	case arrow.INT8:
		return 1, true
	case arrow.INT16:
		return 2, true
	case arrow.INT32:
		return 3, true
	case arrow.INT64:
		return 4, true
	case arrow.UINT8:
		return 1, true
	case arrow.UINT16:
		return 2, true
	case arrow.UINT32:
		return 3, true
	case arrow.UINT64:
		return 4, true
	case arrow.FLOAT32:
		return 5, true
	case arrow.FLOAT64:
		return 6, true
	default:
		return 0, false
	}
}

func isNumeric(dt arrow.DataType) bool {
	_, ok := numericRank(dt)
	return ok
}

func isFloat(dt arrow.DataType) bool {
	return dt.ID() == arrow.FLOAT32 || dt.ID() == arrow.FLOAT64
}

func isInteger(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return true
	}
	return false
}

// Promote returns the common type of two numeric operands, or an error when
// either side is non-numeric. Boolean ranks below every integer: paired
// with a numeric it adopts the numeric type (true reads as 1), and two
// Booleans compute in Int64.
func Promote(left, right arrow.DataType) (arrow.DataType, error) {
	if left.ID() == arrow.BOOL {
		if right.ID() == arrow.BOOL {
			return arrow.PrimitiveTypes.Int64, nil
		}
		if isNumeric(right) {
			return right, nil
		}
	}
	if right.ID() == arrow.BOOL && isNumeric(left) {
		return left, nil
	}
	lr, lok := numericRank(left)
	rr, rok := numericRank(right)
	if !lok || !rok {
		return nil, errors.NewTypeError("promote",
			fmt.Sprintf("no common numeric type for %s and %s", left, right))
	}
	// a signed/unsigned mix at equal width widens to the next signed type
	// so the result does not depend on operand order; int64 with uint64 has
	// no wider integer and goes to float64
	if lr == rr && isInteger(left) && isInteger(right) && !arrow.TypeEqual(left, right) {
		switch lr {
		case 1:
			return arrow.PrimitiveTypes.Int16, nil
		case 2:
			return arrow.PrimitiveTypes.Int32, nil
		case 3:
			return arrow.PrimitiveTypes.Int64, nil
		default:
			return arrow.PrimitiveTypes.Float64, nil
		}
	}
	// int64-class with float32 widens to float64
	if (lr == 4 && right.ID() == arrow.FLOAT32) || (rr == 4 && left.ID() == arrow.FLOAT32) {
		return arrow.PrimitiveTypes.Float64, nil
	}
	if lr >= rr {
		return left, nil
	}
	return right, nil
}

// literalType infers the Arrow type of a literal's Go value.
func literalType(l *LiteralExpr) (arrow.DataType, error) {
	if l.dtype != nil {
		return l.dtype, nil
	}
	switch l.value.(type) {
	case nil:
		return arrow.Null, nil
	case bool:
		return arrow.FixedWidthTypes.Boolean, nil
	case int8:
		return arrow.PrimitiveTypes.Int8, nil
	case int16:
		return arrow.PrimitiveTypes.Int16, nil
	case int32:
		return arrow.PrimitiveTypes.Int32, nil
	case int64:
		return arrow.PrimitiveTypes.Int64, nil
	case uint8:
		return arrow.PrimitiveTypes.Uint8, nil
	case uint16:
		return arrow.PrimitiveTypes.Uint16, nil
	case uint32:
		return arrow.PrimitiveTypes.Uint32, nil
	case uint64:
		return arrow.PrimitiveTypes.Uint64, nil
	case float32:
		return arrow.PrimitiveTypes.Float32, nil
	case float64:
		return arrow.PrimitiveTypes.Float64, nil
	case string:
		return arrow.BinaryTypes.String, nil
	case []byte:
		return arrow.BinaryTypes.Binary, nil
	default:
		return nil, errors.NewTypeError("literal",
			fmt.Sprintf("unsupported literal value type %T", l.value))
	}
}

// TypeOf statically infers the output type of an expression against a
// schema. It mirrors the evaluator's runtime behavior exactly, so a plan
// that type-checks here cannot fail with a type error during execution.
func TypeOf(e Expr, s *schema.Schema) (arrow.DataType, error) {
	switch ex := e.(type) {
	case *ColumnExpr:
		dt, err := s.DataType(ex.name)
		if err != nil {
			return nil, err
		}
		return dt, nil

	case *LiteralExpr:
		return literalType(ex)

	case *BinaryExpr:
		lt, err := TypeOf(ex.left, s)
		if err != nil {
			return nil, err
		}
		rt, err := TypeOf(ex.right, s)
		if err != nil {
			return nil, err
		}
		return binaryResultType(ex.op, lt, rt)

	case *UnaryExpr:
		it, err := TypeOf(ex.operand, s)
		if err != nil {
			return nil, err
		}
		switch ex.op {
		case UnaryNeg:
			if !isNumeric(it) {
				return nil, errors.NewTypeError("neg",
					fmt.Sprintf("cannot negate %s", it)).WithExpr(ex.String())
			}
			return it, nil
		case UnaryNot:
			if it.ID() != arrow.BOOL {
				return nil, errors.NewTypeError("not",
					fmt.Sprintf("cannot apply logical not to %s", it)).WithExpr(ex.String())
			}
			return arrow.FixedWidthTypes.Boolean, nil
		}
		return nil, errors.NewTypeError("unary", "unknown unary operator")

	case *FunctionExpr:
		return functionResultType(ex, s)

	case *AggregationExpr:
		return aggResultType(ex, s)

	case *WindowExpr:
		for _, part := range ex.partitionBy {
			if !s.Has(part) {
				return nil, errors.NewColumnNotFoundError("window", part)
			}
		}
		return aggResultType(ex.inner, s)

	case *SortKeyExpr:
		return TypeOf(ex.inner, s)

	case *CastExpr:
		it, err := TypeOf(ex.inner, s)
		if err != nil {
			return nil, err
		}
		if err := checkCastable(it, ex.target); err != nil {
			return nil, err
		}
		return ex.target, nil

	case *AliasExpr:
		return TypeOf(ex.inner, s)

	case *WildcardExpr:
		return nil, errors.NewTypeError("wildcard", "wildcard has no single type; expand it first")

	default:
		return nil, errors.NewTypeError("typeof", fmt.Sprintf("unknown expression kind %T", e))
	}
}

func binaryResultType(op BinaryOp, lt, rt arrow.DataType) (arrow.DataType, error) {
	// the untyped null literal adopts the other side
	if lt.ID() == arrow.NULL {
		lt = rt
	}
	if rt.ID() == arrow.NULL {
		rt = lt
	}

	switch {
	case op.IsLogical():
		if lt.ID() != arrow.BOOL || rt.ID() != arrow.BOOL {
			return nil, errors.NewTypeError(op.String(),
				fmt.Sprintf("logical operator requires Boolean operands, got %s and %s", lt, rt))
		}
		return arrow.FixedWidthTypes.Boolean, nil

	case op.IsComparison():
		if arrow.TypeEqual(lt, rt) {
			return arrow.FixedWidthTypes.Boolean, nil
		}
		if isNumeric(lt) && isNumeric(rt) {
			return arrow.FixedWidthTypes.Boolean, nil
		}
		return nil, errors.NewTypeError(op.String(),
			fmt.Sprintf("cannot compare %s with %s", lt, rt))

	case op == OpAdd && lt.ID() == arrow.STRING && rt.ID() == arrow.STRING:
		return arrow.BinaryTypes.String, nil

	default: // arithmetic
		out, err := Promote(lt, rt)
		if err != nil {
			return nil, errors.NewTypeError(op.String(),
				fmt.Sprintf("cannot apply %s to %s and %s", op, lt, rt))
		}
		if op == OpMod && (isFloat(lt) || isFloat(rt)) {
			return nil, errors.NewTypeError("%",
				fmt.Sprintf("modulo requires integer operands, got %s and %s", lt, rt))
		}
		return out, nil
	}
}

func functionResultType(f *FunctionExpr, s *schema.Schema) (arrow.DataType, error) {
	argTypes := make([]arrow.DataType, len(f.args))
	for i, a := range f.args {
		t, err := TypeOf(a, s)
		if err != nil {
			return nil, err
		}
		argTypes[i] = t
	}

	switch f.name {
	case "is_null", "is_not_null":
		if len(f.args) != 1 {
			return nil, errors.NewTypeError(f.name, "expects exactly one argument")
		}
		return arrow.FixedWidthTypes.Boolean, nil

	case "abs":
		if len(f.args) != 1 || !isNumeric(argTypes[0]) {
			return nil, errors.NewTypeError("abs",
				fmt.Sprintf("expects one numeric argument, got %s", typeList(argTypes)))
		}
		return argTypes[0], nil

	case "fill_null":
		if len(f.args) != 2 {
			return nil, errors.NewTypeError("fill_null", "expects a value and a fill expression")
		}
		if argTypes[1].ID() == arrow.NULL || arrow.TypeEqual(argTypes[0], argTypes[1]) {
			return argTypes[0], nil
		}
		if isNumeric(argTypes[0]) && isNumeric(argTypes[1]) {
			return Promote(argTypes[0], argTypes[1])
		}
		return nil, errors.NewTypeError("fill_null",
			fmt.Sprintf("fill type %s does not match value type %s", argTypes[1], argTypes[0]))

	case "coalesce":
		if len(f.args) == 0 {
			return nil, errors.NewTypeError("coalesce", "expects at least one argument")
		}
		out := argTypes[0]
		for _, t := range argTypes[1:] {
			if t.ID() == arrow.NULL || arrow.TypeEqual(out, t) {
				continue
			}
			if out.ID() == arrow.NULL {
				out = t
				continue
			}
			if isNumeric(out) && isNumeric(t) {
				p, err := Promote(out, t)
				if err != nil {
					return nil, err
				}
				out = p
				continue
			}
			return nil, errors.NewTypeError("coalesce",
				fmt.Sprintf("mixed argument types %s and %s", out, t))
		}
		return out, nil

	case "concat_str":
		for _, t := range argTypes {
			if t.ID() != arrow.STRING {
				return nil, errors.NewTypeError("concat_str",
					fmt.Sprintf("expects string arguments, got %s", t))
			}
		}
		return arrow.BinaryTypes.String, nil

	case "str_len":
		if len(f.args) != 1 || argTypes[0].ID() != arrow.STRING {
			return nil, errors.NewTypeError("str_len", "expects one string argument")
		}
		return arrow.PrimitiveTypes.Int64, nil

	case "str_contains", "str_starts_with", "str_ends_with":
		if len(f.args) != 2 || argTypes[0].ID() != arrow.STRING || argTypes[1].ID() != arrow.STRING {
			return nil, errors.NewTypeError(f.name, "expects two string arguments")
		}
		return arrow.FixedWidthTypes.Boolean, nil

	case "str_to_upper", "str_to_lower":
		if len(f.args) != 1 || argTypes[0].ID() != arrow.STRING {
			return nil, errors.NewTypeError(f.name, "expects one string argument")
		}
		return arrow.BinaryTypes.String, nil

	default:
		return nil, errors.NewTypeError(f.name, "unknown function")
	}
}

func aggResultType(a *AggregationExpr, s *schema.Schema) (arrow.DataType, error) {
	it, err := TypeOf(a.inner, s)
	if err != nil {
		return nil, err
	}
	switch a.agg {
	case AggSum:
		if !isNumeric(it) {
			return nil, errors.NewTypeError("sum", fmt.Sprintf("cannot sum %s", it))
		}
		if isFloat(it) {
			return arrow.PrimitiveTypes.Float64, nil
		}
		return arrow.PrimitiveTypes.Int64, nil
	case AggMean, AggStd, AggVar:
		if !isNumeric(it) {
			return nil, errors.NewTypeError(a.agg.String(),
				fmt.Sprintf("cannot compute %s of %s", a.agg, it))
		}
		return arrow.PrimitiveTypes.Float64, nil
	case AggMin, AggMax:
		switch {
		case isNumeric(it), it.ID() == arrow.STRING, it.ID() == arrow.BOOL:
			return it, nil
		default:
			return nil, errors.NewTypeError(a.agg.String(),
				fmt.Sprintf("%s is not ordered", it))
		}
	case AggCount, AggCountAll:
		return arrow.PrimitiveTypes.Int64, nil
	case AggFirst, AggLast:
		return it, nil
	default:
		return nil, errors.NewTypeError("agg", "unknown aggregation")
	}
}

func typeList(ts []arrow.DataType) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
