package plan

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/ibis/internal/expr"
)

// ConstantFoldingRule evaluates literal-only subexpressions at plan time,
// replacing them with their literal result.
type ConstantFoldingRule struct{}

func (r *ConstantFoldingRule) Name() string { return "ConstantFolding" }

func (r *ConstantFoldingRule) Apply(n Node) (Node, error) {
	return transformUp(n, func(node Node) (Node, error) {
		return rewriteNodeExprs(node, FoldConstants)
	})
}

// FoldConstants rewrites literal-only operator subtrees bottom-up into
// literals. Expressions that fail to evaluate are left untouched; the
// error surfaces at execution with full context.
func FoldConstants(e expr.Expr) expr.Expr {
	return expr.Rewrite(e, func(sub expr.Expr) expr.Expr {
		switch sub.Kind() {
		case expr.KindBinary, expr.KindUnary, expr.KindFunction, expr.KindCast:
		default:
			return sub
		}
		if !literalOnly(sub) {
			return sub
		}
		folded, ok := evalConstant(sub)
		if !ok {
			return sub
		}
		return folded
	})
}

func literalOnly(e expr.Expr) bool {
	ok := true
	expr.Walk(e, func(sub expr.Expr) {
		switch sub.Kind() {
		case expr.KindLiteral, expr.KindBinary, expr.KindUnary, expr.KindFunction, expr.KindCast:
		default:
			ok = false
		}
	})
	return ok
}

// evalConstant evaluates a literal-only expression over a single row.
func evalConstant(e expr.Expr) (expr.Expr, bool) {
	ev := expr.NewEvaluator(memory.DefaultAllocator)
	arr, err := ev.Eval(e, expr.SingleRowInput())
	if err != nil || arr.Len() != 1 {
		return nil, false
	}
	defer arr.Release()

	if arr.IsNull(0) {
		return expr.NullLit(arr.DataType()), true
	}
	value, ok := scalarAt(arr, 0)
	if !ok {
		return nil, false
	}
	return expr.Lit(value), true
}

func scalarAt(arr arrow.Array, row int) (any, bool) {
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(row), true
	case *array.Int8:
		return a.Value(row), true
	case *array.Int16:
		return a.Value(row), true
	case *array.Int32:
		return a.Value(row), true
	case *array.Int64:
		return a.Value(row), true
	case *array.Uint8:
		return a.Value(row), true
	case *array.Uint16:
		return a.Value(row), true
	case *array.Uint32:
		return a.Value(row), true
	case *array.Uint64:
		return a.Value(row), true
	case *array.Float32:
		return a.Value(row), true
	case *array.Float64:
		return a.Value(row), true
	case *array.String:
		return a.Value(row), true
	default:
		return nil, false
	}
}

// SimplificationRule applies algebraic identities that hold under strict
// null propagation: double negation removal, negated comparisons, neutral
// Boolean operands and same-type cast removal. Identities that would turn
// a possibly-null expression into a non-null constant are deliberately
// absent.
type SimplificationRule struct{}

func (r *SimplificationRule) Name() string { return "Simplification" }

func (r *SimplificationRule) Apply(n Node) (Node, error) {
	return transformUp(n, func(node Node) (Node, error) {
		return rewriteNodeExprs(node, SimplifyExpr)
	})
}

// SimplifyExpr rewrites an expression with null-safe algebraic identities.
func SimplifyExpr(e expr.Expr) expr.Expr {
	return expr.Rewrite(e, func(sub expr.Expr) expr.Expr {
		switch ex := sub.(type) {
		case *expr.UnaryExpr:
			if ex.Op() != expr.UnaryNot {
				return sub
			}
			switch inner := ex.Operand().(type) {
			case *expr.UnaryExpr:
				if inner.Op() == expr.UnaryNot {
					return inner.Operand()
				}
			case *expr.BinaryExpr:
				if negated, ok := negateComparison(inner); ok {
					return negated
				}
			}
			return sub

		case *expr.BinaryExpr:
			if lit, ok := ex.Left().(*expr.LiteralExpr); ok {
				if out, done := simplifyBoolOperand(ex.Op(), lit, ex.Right()); done {
					return out
				}
			}
			if lit, ok := ex.Right().(*expr.LiteralExpr); ok {
				if out, done := simplifyBoolOperand(ex.Op(), lit, ex.Left()); done {
					return out
				}
			}
			return sub

		case *expr.CastExpr:
			// nested cast to the same target collapses to one
			if inner, ok := ex.Inner().(*expr.CastExpr); ok && arrow.TypeEqual(inner.Target(), ex.Target()) {
				return expr.NewCast(inner.Inner(), ex.Target(), ex.Strict())
			}
			return sub

		default:
			return sub
		}
	})
}

// negateComparison inverts a comparison operator under NOT. Sound under
// strict nulls: both forms propagate null identically.
func negateComparison(b *expr.BinaryExpr) (expr.Expr, bool) {
	var inverted expr.BinaryOp
	switch b.Op() {
	case expr.OpEq:
		inverted = expr.OpNe
	case expr.OpNe:
		inverted = expr.OpEq
	case expr.OpLt:
		inverted = expr.OpGe
	case expr.OpLe:
		inverted = expr.OpGt
	case expr.OpGt:
		inverted = expr.OpLe
	case expr.OpGe:
		inverted = expr.OpLt
	default:
		return nil, false
	}
	return expr.NewBinary(b.Left(), inverted, b.Right()), true
}

// simplifyBoolOperand drops neutral Boolean literals: x && true and
// x || false reduce to x. The absorbing cases (x && false, x || true) are
// not folded because they would erase null propagation from x.
func simplifyBoolOperand(op expr.BinaryOp, lit *expr.LiteralExpr, other expr.Expr) (expr.Expr, bool) {
	b, ok := lit.Value().(bool)
	if !ok {
		return nil, false
	}
	if op == expr.OpAnd && b {
		return other, true
	}
	if op == expr.OpOr && !b {
		return other, true
	}
	return nil, false
}

// rewriteNodeExprs maps a rewrite function over every expression a node
// carries, rebuilding the node through its constructor when anything
// changed.
func rewriteNodeExprs(n Node, fn func(expr.Expr) expr.Expr) (Node, error) {
	switch node := n.(type) {
	case *FilterNode:
		pred := fn(node.Predicate)
		if expr.Equal(pred, node.Predicate) {
			return n, nil
		}
		return NewFilter(node.Input, pred)

	case *SelectNode:
		exprs := make([]expr.Expr, len(node.Exprs))
		changed := false
		for i, e := range node.Exprs {
			exprs[i] = preserveName(e, fn)
			if !expr.Equal(exprs[i], node.Exprs[i]) {
				changed = true
			}
		}
		if !changed {
			return n, nil
		}
		return NewSelect(node.Input, exprs)

	case *GroupByNode:
		aggs := make([]expr.Expr, len(node.Aggs))
		changed := false
		for i, e := range node.Aggs {
			aggs[i] = preserveName(e, fn)
			if !expr.Equal(aggs[i], node.Aggs[i]) {
				changed = true
			}
		}
		if !changed {
			return n, nil
		}
		return NewGroupBy(node.Input, node.Keys, aggs)

	case *SortNode:
		keys := make([]*expr.SortKeyExpr, len(node.Keys))
		changed := false
		for i, key := range node.Keys {
			inner := fn(key.Inner())
			if expr.Equal(inner, key.Inner()) {
				keys[i] = key
				continue
			}
			rebuilt := expr.NewSortKey(inner, key.Descending())
			if key.NullsFirst() {
				rebuilt = rebuilt.WithNullsFirst()
			}
			keys[i] = rebuilt
			changed = true
		}
		if !changed {
			return n, nil
		}
		return NewSort(node.Input, keys)

	default:
		return n, nil
	}
}

// preserveName keeps an expression's output name stable across rewrites
// that could change its derived name.
func preserveName(e expr.Expr, fn func(expr.Expr) expr.Expr) expr.Expr {
	name := expr.OutputName(e)
	rewritten := fn(e)
	if expr.OutputName(rewritten) != name {
		return expr.NewAlias(rewritten, name)
	}
	return rewritten
}
