package expr

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/ibis/internal/errors"
	"github.com/paveg/ibis/internal/series"
)

// Input supplies the columns an evaluation reads. Columns are resolved by
// name; all columns share one row count.
type Input struct {
	columns map[string]*series.Series
	order   []string
	length  int
}

// NewInput builds an evaluation input from a column list.
func NewInput(cols []*series.Series) (*Input, error) {
	in := &Input{columns: make(map[string]*series.Series, len(cols))}
	for i, col := range cols {
		if _, dup := in.columns[col.Name()]; dup {
			return nil, errors.NewDuplicateColumnError("input", col.Name())
		}
		if i == 0 {
			in.length = col.Len()
		} else if col.Len() != in.length {
			return nil, errors.NewSchemaError("input",
				fmt.Sprintf("column %q has %d rows, expected %d", col.Name(), col.Len(), in.length))
		}
		in.columns[col.Name()] = col
		in.order = append(in.order, col.Name())
	}
	return in, nil
}

// SingleRowInput returns a one-row context with no columns, used to
// evaluate literal-only expressions.
func SingleRowInput() *Input {
	return &Input{columns: map[string]*series.Series{}, length: 1}
}

// Column resolves a column by name.
func (in *Input) Column(name string) (*series.Series, bool) {
	s, ok := in.columns[name]
	return s, ok
}

// Names returns column names in input order.
func (in *Input) Names() []string { return in.order }

// Len returns the shared row count.
func (in *Input) Len() int { return in.length }

// Evaluator computes expression results column-at-a-time. Evaluation is
// structurally recursive; every intermediate is a contiguous Arrow array.
type Evaluator struct {
	mem memory.Allocator
}

// NewEvaluator creates an evaluator backed by the given allocator.
func NewEvaluator(mem memory.Allocator) *Evaluator {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &Evaluator{mem: mem}
}

// Eval evaluates an expression against the input, returning one value per
// input row. Aggregations and windows are rejected here; they are resolved
// by the executor, which calls back into AggregateSlice per group.
func (ev *Evaluator) Eval(e Expr, in *Input) (arrow.Array, error) {
	switch ex := e.(type) {
	case *ColumnExpr:
		col, ok := in.Column(ex.name)
		if !ok {
			return nil, errors.NewColumnNotFoundError("eval", ex.name)
		}
		return col.ContiguousArray(ev.mem)

	case *LiteralExpr:
		return ev.evalLiteral(ex, in.Len())

	case *BinaryExpr:
		return ev.evalBinary(ex, in)

	case *UnaryExpr:
		return ev.evalUnary(ex, in)

	case *FunctionExpr:
		return ev.evalFunction(ex, in)

	case *CastExpr:
		inner, err := ev.Eval(ex.inner, in)
		if err != nil {
			return nil, err
		}
		defer inner.Release()
		return CastArray(ev.mem, inner, ex.target, ex.strict)

	case *AliasExpr:
		return ev.Eval(ex.inner, in)

	case *SortKeyExpr:
		return ev.Eval(ex.inner, in)

	case *AggregationExpr:
		return nil, errors.NewComputeError("eval",
			"aggregation outside a group context; use GroupBy or a global aggregation")

	case *WindowExpr:
		return ev.evalWindow(ex, in)

	case *WildcardExpr:
		return nil, errors.NewComputeError("eval", "wildcard must be expanded before evaluation")

	default:
		return nil, errors.NewComputeError("eval", fmt.Sprintf("unknown expression kind %T", e))
	}
}

// EvalSeries evaluates an expression and wraps the result as a named Series.
func (ev *Evaluator) EvalSeries(e Expr, in *Input) (*series.Series, error) {
	arr, err := ev.Eval(e, in)
	if err != nil {
		return nil, err
	}
	defer arr.Release()
	return series.FromArray(OutputName(e), arr), nil
}

func (ev *Evaluator) evalLiteral(l *LiteralExpr, n int) (arrow.Array, error) {
	if l.value == nil {
		dt := l.dtype
		if dt == nil {
			dt = arrow.Null
		}
		return array.MakeArrayOfNull(ev.mem, dt, n), nil
	}
	switch v := l.value.(type) {
	case bool:
		return series.BuildArray(broadcastTo(v, n), nil, ev.mem), nil
	case int8:
		return series.BuildArray(broadcastTo(v, n), nil, ev.mem), nil
	case int16:
		return series.BuildArray(broadcastTo(v, n), nil, ev.mem), nil
	case int32:
		return series.BuildArray(broadcastTo(v, n), nil, ev.mem), nil
	case int64:
		return series.BuildArray(broadcastTo(v, n), nil, ev.mem), nil
	case uint8:
		return series.BuildArray(broadcastTo(v, n), nil, ev.mem), nil
	case uint16:
		return series.BuildArray(broadcastTo(v, n), nil, ev.mem), nil
	case uint32:
		return series.BuildArray(broadcastTo(v, n), nil, ev.mem), nil
	case uint64:
		return series.BuildArray(broadcastTo(v, n), nil, ev.mem), nil
	case float32:
		return series.BuildArray(broadcastTo(v, n), nil, ev.mem), nil
	case float64:
		return series.BuildArray(broadcastTo(v, n), nil, ev.mem), nil
	case string:
		return series.BuildArray(broadcastTo(v, n), nil, ev.mem), nil
	case []byte:
		return series.BuildArray(broadcastTo(v, n), nil, ev.mem), nil
	default:
		return nil, errors.NewTypeError("literal",
			fmt.Sprintf("unsupported literal value type %T", l.value))
	}
}

func (ev *Evaluator) evalBinary(b *BinaryExpr, in *Input) (arrow.Array, error) {
	left, err := ev.Eval(b.left, in)
	if err != nil {
		return nil, err
	}
	defer left.Release()
	right, err := ev.Eval(b.right, in)
	if err != nil {
		return nil, err
	}
	defer right.Release()

	lt, rt := left.DataType(), right.DataType()
	n := left.Len()

	// untyped null operand: result is all null of the inferred type
	if lt.ID() == arrow.NULL || rt.ID() == arrow.NULL {
		out, err := binaryResultType(b.op, lt, rt)
		if err != nil {
			return nil, err.(*errors.Error).WithExpr(b.String())
		}
		return array.MakeArrayOfNull(ev.mem, out, n), nil
	}

	switch {
	case b.op.IsLogical():
		lv, lvalid, err := toBools(left)
		if err != nil {
			return nil, err.(*errors.Error).WithExpr(b.String())
		}
		rv, rvalid, err := toBools(right)
		if err != nil {
			return nil, err.(*errors.Error).WithExpr(b.String())
		}
		valid := andValid(lvalid, rvalid)
		out := make([]bool, n)
		if b.op == OpAnd {
			for i := range out {
				out[i] = lv[i] && rv[i]
			}
		} else {
			for i := range out {
				out[i] = lv[i] || rv[i]
			}
		}
		return series.BuildArray(out, valid, ev.mem), nil

	case b.op.IsComparison():
		return ev.evalComparison(b, left, right)

	case b.op == OpAdd && lt.ID() == arrow.STRING && rt.ID() == arrow.STRING:
		lv, lvalid, err := toStrings(left)
		if err != nil {
			return nil, err
		}
		rv, rvalid, err := toStrings(right)
		if err != nil {
			return nil, err
		}
		valid := andValid(lvalid, rvalid)
		out := make([]string, n)
		for i := range out {
			if valid[i] {
				out[i] = lv[i] + rv[i]
			}
		}
		return series.BuildArray(out, valid, ev.mem), nil

	default:
		return ev.evalArithmetic(b, left, right)
	}
}

func (ev *Evaluator) evalArithmetic(b *BinaryExpr, left, right arrow.Array) (arrow.Array, error) {
	out, err := binaryResultType(b.op, left.DataType(), right.DataType())
	if err != nil {
		return nil, err.(*errors.Error).WithExpr(b.String())
	}

	if isFloat(out) {
		lv, lvalid, err := toFloat64s(left)
		if err != nil {
			return nil, err
		}
		rv, rvalid, err := toFloat64s(right)
		if err != nil {
			return nil, err
		}
		valid := andValid(lvalid, rvalid)
		var values []float64
		switch b.op {
		case OpAdd:
			values = addKernel(lv, rv)
		case OpSub:
			values = subKernel(lv, rv)
		case OpMul:
			values = mulKernel(lv, rv)
		case OpDiv:
			values = divFloatKernel(lv, rv)
		default:
			return nil, errors.NewTypeError(b.op.String(), "unsupported float operation").WithExpr(b.String())
		}
		return narrowFloat64(ev.mem, out, values, valid)
	}

	lv, lvalid, err := toInt64s(left)
	if err != nil {
		return nil, err
	}
	rv, rvalid, err := toInt64s(right)
	if err != nil {
		return nil, err
	}
	valid := andValid(lvalid, rvalid)
	var values []int64
	switch b.op {
	case OpAdd:
		values = addKernel(lv, rv)
	case OpSub:
		values = subKernel(lv, rv)
	case OpMul:
		values = mulKernel(lv, rv)
	case OpDiv:
		values = divIntKernel(lv, rv, valid)
	case OpMod:
		values = modKernel(lv, rv, valid)
	default:
		return nil, errors.NewTypeError(b.op.String(), "unsupported integer operation").WithExpr(b.String())
	}
	return narrowInt64(ev.mem, out, values, valid)
}

func (ev *Evaluator) evalComparison(b *BinaryExpr, left, right arrow.Array) (arrow.Array, error) {
	lt, rt := left.DataType(), right.DataType()

	switch {
	case isNumeric(lt) && isNumeric(rt):
		if isInteger(lt) && isInteger(rt) {
			lv, lvalid, err := toInt64s(left)
			if err != nil {
				return nil, err
			}
			rv, rvalid, err := toInt64s(right)
			if err != nil {
				return nil, err
			}
			return series.BuildArray(cmpKernel(b.op, lv, rv), andValid(lvalid, rvalid), ev.mem), nil
		}
		lv, lvalid, err := toFloat64s(left)
		if err != nil {
			return nil, err
		}
		rv, rvalid, err := toFloat64s(right)
		if err != nil {
			return nil, err
		}
		return series.BuildArray(cmpKernel(b.op, lv, rv), andValid(lvalid, rvalid), ev.mem), nil

	case lt.ID() == arrow.STRING && rt.ID() == arrow.STRING:
		lv, lvalid, err := toStrings(left)
		if err != nil {
			return nil, err
		}
		rv, rvalid, err := toStrings(right)
		if err != nil {
			return nil, err
		}
		return series.BuildArray(cmpKernel(b.op, lv, rv), andValid(lvalid, rvalid), ev.mem), nil

	case lt.ID() == arrow.BOOL && rt.ID() == arrow.BOOL:
		if b.op != OpEq && b.op != OpNe {
			return nil, errors.NewTypeError(b.op.String(),
				"Boolean supports only equality comparison").WithExpr(b.String())
		}
		lv, lvalid, err := toBools(left)
		if err != nil {
			return nil, err
		}
		rv, rvalid, err := toBools(right)
		if err != nil {
			return nil, err
		}
		valid := andValid(lvalid, rvalid)
		out := make([]bool, len(lv))
		for i := range out {
			eq := lv[i] == rv[i]
			if b.op == OpNe {
				eq = !eq
			}
			out[i] = eq
		}
		return series.BuildArray(out, valid, ev.mem), nil

	default:
		return nil, errors.NewTypeError(b.op.String(),
			fmt.Sprintf("cannot compare %s with %s", lt, rt)).WithExpr(b.String())
	}
}

func (ev *Evaluator) evalUnary(u *UnaryExpr, in *Input) (arrow.Array, error) {
	inner, err := ev.Eval(u.operand, in)
	if err != nil {
		return nil, err
	}
	defer inner.Release()

	switch u.op {
	case UnaryNot:
		values, valid, err := toBools(inner)
		if err != nil {
			return nil, err.(*errors.Error).WithExpr(u.String())
		}
		out := make([]bool, len(values))
		for i := range out {
			out[i] = !values[i]
		}
		return series.BuildArray(out, valid, ev.mem), nil

	case UnaryNeg:
		dt := inner.DataType()
		if isFloat(dt) {
			values, valid, err := toFloat64s(inner)
			if err != nil {
				return nil, err
			}
			return narrowFloat64(ev.mem, dt, negKernel(values), valid)
		}
		values, valid, err := toInt64s(inner)
		if err != nil {
			return nil, errors.NewTypeError("neg",
				fmt.Sprintf("cannot negate %s", dt)).WithExpr(u.String())
		}
		return narrowInt64(ev.mem, dt, negKernel(values), valid)

	default:
		return nil, errors.NewComputeError("eval", "unknown unary operator")
	}
}

func (ev *Evaluator) evalFunction(f *FunctionExpr, in *Input) (arrow.Array, error) {
	args := make([]arrow.Array, len(f.args))
	release := func() {
		for _, a := range args {
			if a != nil {
				a.Release()
			}
		}
	}
	for i, a := range f.args {
		arr, err := ev.Eval(a, in)
		if err != nil {
			release()
			return nil, err
		}
		args[i] = arr
	}
	defer release()

	switch f.name {
	case "is_null", "is_not_null":
		want := f.name == "is_null"
		arr := args[0]
		out := make([]bool, arr.Len())
		for i := range out {
			out[i] = arr.IsNull(i) == want
		}
		return series.BuildArray(out, nil, ev.mem), nil

	case "abs":
		arr := args[0]
		dt := arr.DataType()
		if isFloat(dt) {
			values, valid, err := toFloat64s(arr)
			if err != nil {
				return nil, err
			}
			return narrowFloat64(ev.mem, dt, absKernel(values), valid)
		}
		values, valid, err := toInt64s(arr)
		if err != nil {
			return nil, err
		}
		return narrowInt64(ev.mem, dt, absKernel(values), valid)

	case "fill_null":
		return ev.evalCoalesce(f, args)

	case "coalesce":
		return ev.evalCoalesce(f, args)

	case "concat_str":
		n := in.Len()
		parts := make([][]string, len(args))
		valid := make([]bool, n)
		for i := range valid {
			valid[i] = true
		}
		for i, arr := range args {
			values, avalid, err := toStrings(arr)
			if err != nil {
				return nil, err.(*errors.Error).WithExpr(f.String())
			}
			parts[i] = values
			valid = andValid(valid, avalid)
		}
		out := make([]string, n)
		for row := 0; row < n; row++ {
			if !valid[row] {
				continue
			}
			var sb strings.Builder
			for _, p := range parts {
				sb.WriteString(p[row])
			}
			out[row] = sb.String()
		}
		return series.BuildArray(out, valid, ev.mem), nil

	case "str_len":
		values, valid, err := toStrings(args[0])
		if err != nil {
			return nil, err.(*errors.Error).WithExpr(f.String())
		}
		out := make([]int64, len(values))
		for i, v := range values {
			if valid[i] {
				out[i] = int64(len(v))
			}
		}
		return series.BuildArray(out, valid, ev.mem), nil

	case "str_contains", "str_starts_with", "str_ends_with":
		lv, lvalid, err := toStrings(args[0])
		if err != nil {
			return nil, err.(*errors.Error).WithExpr(f.String())
		}
		rv, rvalid, err := toStrings(args[1])
		if err != nil {
			return nil, err.(*errors.Error).WithExpr(f.String())
		}
		valid := andValid(lvalid, rvalid)
		out := make([]bool, len(lv))
		for i := range out {
			if !valid[i] {
				continue
			}
			switch f.name {
			case "str_contains":
				out[i] = strings.Contains(lv[i], rv[i])
			case "str_starts_with":
				out[i] = strings.HasPrefix(lv[i], rv[i])
			case "str_ends_with":
				out[i] = strings.HasSuffix(lv[i], rv[i])
			}
		}
		return series.BuildArray(out, valid, ev.mem), nil

	case "str_to_upper", "str_to_lower":
		values, valid, err := toStrings(args[0])
		if err != nil {
			return nil, err.(*errors.Error).WithExpr(f.String())
		}
		out := make([]string, len(values))
		for i, v := range values {
			if !valid[i] {
				continue
			}
			if f.name == "str_to_upper" {
				out[i] = strings.ToUpper(v)
			} else {
				out[i] = strings.ToLower(v)
			}
		}
		return series.BuildArray(out, valid, ev.mem), nil

	default:
		return nil, errors.NewComputeError(f.name, "unknown function").WithExpr(f.String())
	}
}

// evalCoalesce handles both coalesce and fill_null: per row, the first
// non-null argument wins. Numeric arguments of mixed width are widened to
// the promoted type first.
func (ev *Evaluator) evalCoalesce(f *FunctionExpr, args []arrow.Array) (arrow.Array, error) {
	out := args[0].DataType()
	for _, arr := range args[1:] {
		t := arr.DataType()
		if t.ID() == arrow.NULL || arrow.TypeEqual(out, t) {
			continue
		}
		if out.ID() == arrow.NULL {
			out = t
			continue
		}
		p, err := Promote(out, t)
		if err != nil {
			return nil, errors.NewTypeError(f.name,
				fmt.Sprintf("mixed argument types %s and %s", out, t)).WithExpr(f.String())
		}
		out = p
	}
	if out.ID() == arrow.NULL {
		return array.MakeArrayOfNull(ev.mem, arrow.Null, args[0].Len()), nil
	}

	widened := make([]arrow.Array, len(args))
	for i, arr := range args {
		if arrow.TypeEqual(arr.DataType(), out) {
			widened[i] = arr
			continue
		}
		w, err := CastArray(ev.mem, arr, out, false)
		if err != nil {
			return nil, err
		}
		defer w.Release()
		widened[i] = w
	}

	n := args[0].Len()
	builder := array.NewBuilder(ev.mem, out)
	defer builder.Release()
	for row := 0; row < n; row++ {
		appended := false
		for _, arr := range widened {
			if row < arr.Len() && arr.IsValid(row) {
				if err := appendValueAt(builder, arr, row); err != nil {
					return nil, err
				}
				appended = true
				break
			}
		}
		if !appended {
			builder.AppendNull()
		}
	}
	return builder.NewArray(), nil
}

// appendValueAt copies one value from an array into a same-typed builder.
func appendValueAt(b array.Builder, arr arrow.Array, row int) error {
	switch src := arr.(type) {
	case *array.Boolean:
		b.(*array.BooleanBuilder).Append(src.Value(row))
	case *array.Int8:
		b.(*array.Int8Builder).Append(src.Value(row))
	case *array.Int16:
		b.(*array.Int16Builder).Append(src.Value(row))
	case *array.Int32:
		b.(*array.Int32Builder).Append(src.Value(row))
	case *array.Int64:
		b.(*array.Int64Builder).Append(src.Value(row))
	case *array.Uint8:
		b.(*array.Uint8Builder).Append(src.Value(row))
	case *array.Uint16:
		b.(*array.Uint16Builder).Append(src.Value(row))
	case *array.Uint32:
		b.(*array.Uint32Builder).Append(src.Value(row))
	case *array.Uint64:
		b.(*array.Uint64Builder).Append(src.Value(row))
	case *array.Float32:
		b.(*array.Float32Builder).Append(src.Value(row))
	case *array.Float64:
		b.(*array.Float64Builder).Append(src.Value(row))
	case *array.String:
		b.(*array.StringBuilder).Append(src.Value(row))
	case *array.Binary:
		b.(*array.BinaryBuilder).Append(src.Value(row))
	default:
		return errors.NewTypeError("append",
			fmt.Sprintf("unsupported array type %s", arr.DataType()))
	}
	return nil
}
