package expr

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Dependencies returns the sorted, de-duplicated set of column names the
// expression reads. Window partition keys count as dependencies.
func Dependencies(e Expr) []string {
	set := map[string]struct{}{}
	collectDeps(e, set)
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func collectDeps(e Expr, set map[string]struct{}) {
	switch ex := e.(type) {
	case *ColumnExpr:
		set[ex.name] = struct{}{}
	case *LiteralExpr, *WildcardExpr:
	case *BinaryExpr:
		collectDeps(ex.left, set)
		collectDeps(ex.right, set)
	case *UnaryExpr:
		collectDeps(ex.operand, set)
	case *FunctionExpr:
		for _, a := range ex.args {
			collectDeps(a, set)
		}
	case *AggregationExpr:
		collectDeps(ex.inner, set)
	case *WindowExpr:
		collectDeps(ex.inner, set)
		for _, p := range ex.partitionBy {
			set[p] = struct{}{}
		}
	case *SortKeyExpr:
		collectDeps(ex.inner, set)
	case *CastExpr:
		collectDeps(ex.inner, set)
	case *AliasExpr:
		collectDeps(ex.inner, set)
	}
}

// HasWildcard reports whether the expression contains a wildcard anywhere.
func HasWildcard(e Expr) bool {
	found := false
	Walk(e, func(n Expr) {
		if n.Kind() == KindWildcard {
			found = true
		}
	})
	return found
}

// ContainsAggregation reports whether the expression contains an aggregation
// outside of a window. Such expressions are only valid in GroupBy contexts.
func ContainsAggregation(e Expr) bool {
	switch ex := e.(type) {
	case *AggregationExpr:
		return true
	case *WindowExpr:
		return false
	case *BinaryExpr:
		return ContainsAggregation(ex.left) || ContainsAggregation(ex.right)
	case *UnaryExpr:
		return ContainsAggregation(ex.operand)
	case *FunctionExpr:
		for _, a := range ex.args {
			if ContainsAggregation(a) {
				return true
			}
		}
		return false
	case *SortKeyExpr:
		return ContainsAggregation(ex.inner)
	case *CastExpr:
		return ContainsAggregation(ex.inner)
	case *AliasExpr:
		return ContainsAggregation(ex.inner)
	default:
		return false
	}
}

// ContainsWindow reports whether the expression contains a window node.
func ContainsWindow(e Expr) bool {
	found := false
	Walk(e, func(n Expr) {
		if n.Kind() == KindWindow {
			found = true
		}
	})
	return found
}

// Walk visits every node of the expression tree in prefix order.
func Walk(e Expr, fn func(Expr)) {
	fn(e)
	switch ex := e.(type) {
	case *BinaryExpr:
		Walk(ex.left, fn)
		Walk(ex.right, fn)
	case *UnaryExpr:
		Walk(ex.operand, fn)
	case *FunctionExpr:
		for _, a := range ex.args {
			Walk(a, fn)
		}
	case *AggregationExpr:
		Walk(ex.inner, fn)
	case *WindowExpr:
		Walk(ex.inner, fn)
	case *SortKeyExpr:
		Walk(ex.inner, fn)
	case *CastExpr:
		Walk(ex.inner, fn)
	case *AliasExpr:
		Walk(ex.inner, fn)
	}
}

// Rewrite rebuilds the tree bottom-up, replacing each node with fn's
// result. fn receives a node whose children are already rewritten.
func Rewrite(e Expr, fn func(Expr) Expr) Expr {
	switch ex := e.(type) {
	case *BinaryExpr:
		return fn(&BinaryExpr{left: Rewrite(ex.left, fn), op: ex.op, right: Rewrite(ex.right, fn)})
	case *UnaryExpr:
		return fn(&UnaryExpr{op: ex.op, operand: Rewrite(ex.operand, fn)})
	case *FunctionExpr:
		args := make([]Expr, len(ex.args))
		for i, a := range ex.args {
			args[i] = Rewrite(a, fn)
		}
		return fn(&FunctionExpr{name: ex.name, args: args})
	case *AggregationExpr:
		return fn(&AggregationExpr{inner: Rewrite(ex.inner, fn), agg: ex.agg})
	case *WindowExpr:
		inner := Rewrite(ex.inner, fn)
		if agg, ok := inner.(*AggregationExpr); ok {
			return fn(&WindowExpr{inner: agg, partitionBy: ex.partitionBy})
		}
		return fn(ex)
	case *SortKeyExpr:
		return fn(&SortKeyExpr{inner: Rewrite(ex.inner, fn), descending: ex.descending, nullsFirst: ex.nullsFirst})
	case *CastExpr:
		return fn(&CastExpr{inner: Rewrite(ex.inner, fn), target: ex.target, strict: ex.strict})
	case *AliasExpr:
		return fn(&AliasExpr{inner: Rewrite(ex.inner, fn), name: ex.name})
	default:
		return fn(e)
	}
}

// OutputName returns the column name the expression produces: the alias if
// present, the column name for bare references, otherwise a name derived
// from the outermost operation.
func OutputName(e Expr) string {
	switch ex := e.(type) {
	case *AliasExpr:
		return ex.name
	case *ColumnExpr:
		return ex.name
	case *AggregationExpr:
		return fmt.Sprintf("%s_%s", OutputName(ex.inner), ex.agg)
	case *WindowExpr:
		return OutputName(ex.inner)
	case *SortKeyExpr:
		return OutputName(ex.inner)
	case *CastExpr:
		return OutputName(ex.inner)
	case *LiteralExpr:
		return "literal"
	default:
		return e.String()
	}
}

// Fingerprint returns a stable structural hash of the expression. Equal
// trees hash equal; the canonical String form is the hashed key so the
// optimizer can detect repeated subtrees across a projection list.
func Fingerprint(e Expr) uint64 {
	return xxhash.Sum64String(e.String())
}

// Equal reports structural equality of two expression trees.
func Equal(a, b Expr) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind() != b.Kind() {
		return false
	}
	return a.String() == b.String()
}
