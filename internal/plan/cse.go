package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paveg/ibis/internal/expr"
)

// subexprPrefix names the hidden columns the CSE rule materializes.
const subexprPrefix = "__cse_"

// SubexprEliminationRule computes a repeated non-trivial subexpression once
// per projection. When a subtree occurs in two or more select expressions,
// the rule inserts a lower projection that materializes it as a hidden
// column, and rewrites the outer expressions to read that column.
type SubexprEliminationRule struct{}

func (r *SubexprEliminationRule) Name() string { return "SubexprElimination" }

func (r *SubexprEliminationRule) Apply(n Node) (Node, error) {
	return transformUp(n, func(node Node) (Node, error) {
		sel, ok := node.(*SelectNode)
		if !ok {
			return node, nil
		}
		// skip projections the rule already rewrote
		for _, name := range sel.Input.Schema().Names() {
			if strings.HasPrefix(name, subexprPrefix) {
				return node, nil
			}
		}
		shared := sharedSubexprs(sel.Exprs)
		if len(shared) == 0 {
			return node, nil
		}
		return rewriteWithShared(sel, shared)
	})
}

// sharedSubexprs finds subtrees worth materializing: operator or function
// nodes, free of aggregations and windows, occurring in at least two of
// the projection's expressions. Nested shared subtrees collapse to the
// outermost one.
func sharedSubexprs(exprs []expr.Expr) []expr.Expr {
	counts := map[uint64]int{}
	trees := map[uint64]expr.Expr{}
	for _, e := range exprs {
		seen := map[uint64]struct{}{}
		expr.Walk(e, func(sub expr.Expr) {
			if !cseCandidate(sub) {
				return
			}
			fp := expr.Fingerprint(sub)
			if _, already := seen[fp]; already {
				return
			}
			seen[fp] = struct{}{}
			counts[fp]++
			trees[fp] = sub
		})
	}

	var shared []expr.Expr
	for fp, count := range counts {
		if count >= 2 {
			shared = append(shared, trees[fp])
		}
	}
	// drop subtrees contained in another shared subtree
	filtered := shared[:0]
	for _, candidate := range shared {
		nested := false
		cfp := expr.Fingerprint(candidate)
		for _, other := range shared {
			if expr.Fingerprint(other) == cfp {
				continue
			}
			if containsSubtree(other, candidate) {
				nested = true
				break
			}
		}
		if !nested {
			filtered = append(filtered, candidate)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].String() < filtered[j].String()
	})
	return filtered
}

func cseCandidate(e expr.Expr) bool {
	switch e.Kind() {
	case expr.KindBinary, expr.KindFunction, expr.KindCast:
	default:
		return false
	}
	return !expr.ContainsAggregation(e) && !expr.ContainsWindow(e)
}

func containsSubtree(haystack, needle expr.Expr) bool {
	nfp := expr.Fingerprint(needle)
	found := false
	expr.Walk(haystack, func(sub expr.Expr) {
		if sub != haystack && expr.Fingerprint(sub) == nfp {
			found = true
		}
	})
	return found
}

// rewriteWithShared splits the projection in two: an inner projection that
// passes every input column through and adds the shared subexpressions as
// hidden columns, and the original projection rewritten to read them.
func rewriteWithShared(sel *SelectNode, shared []expr.Expr) (Node, error) {
	inSchema := sel.Input.Schema()
	lower := make([]expr.Expr, 0, inSchema.Len()+len(shared))
	for _, name := range inSchema.Names() {
		lower = append(lower, expr.Col(name))
	}
	aliases := make(map[uint64]string, len(shared))
	for i, sub := range shared {
		alias := fmt.Sprintf("%s%d", subexprPrefix, i)
		aliases[expr.Fingerprint(sub)] = alias
		lower = append(lower, expr.NewAlias(sub, alias))
	}
	lowerNode, err := NewSelect(sel.Input, lower)
	if err != nil {
		return nil, err
	}

	upper := make([]expr.Expr, len(sel.Exprs))
	for i, e := range sel.Exprs {
		name := expr.OutputName(e)
		rewritten := expr.Rewrite(e, func(sub expr.Expr) expr.Expr {
			if alias, ok := aliases[expr.Fingerprint(sub)]; ok && cseCandidate(sub) {
				return expr.Col(alias)
			}
			return sub
		})
		if expr.OutputName(rewritten) != name {
			rewritten = expr.NewAlias(rewritten, name)
		}
		upper[i] = rewritten
	}
	return NewSelect(lowerNode, upper)
}
