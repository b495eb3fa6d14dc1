package plan

import (
	"strings"

	"github.com/paveg/ibis/internal/expr"
)

// PredicatePushdownRule moves filter predicates toward scan leaves so
// sources read fewer rows. Conjuncts split at AND boundaries and sink
// independently; whatever cannot sink stays in a Filter above its input.
type PredicatePushdownRule struct{}

func (r *PredicatePushdownRule) Name() string { return "PredicatePushdown" }

func (r *PredicatePushdownRule) Apply(n Node) (Node, error) {
	return transformUp(n, func(node Node) (Node, error) {
		filter, ok := node.(*FilterNode)
		if !ok {
			return node, nil
		}
		conjuncts := SplitConjuncts(filter.Predicate)
		input := filter.Input
		var remaining []expr.Expr
		for _, conj := range conjuncts {
			pushed, ok, err := pushConjunct(input, conj)
			if err != nil {
				return nil, err
			}
			if ok {
				input = pushed
			} else {
				remaining = append(remaining, conj)
			}
		}
		if len(remaining) == len(conjuncts) {
			return node, nil
		}
		if len(remaining) == 0 {
			return input, nil
		}
		return NewFilter(input, CombineConjuncts(remaining))
	})
}

// SplitConjuncts flattens a predicate at AND boundaries.
func SplitConjuncts(pred expr.Expr) []expr.Expr {
	if b, ok := pred.(*expr.BinaryExpr); ok && b.Op() == expr.OpAnd {
		return append(SplitConjuncts(b.Left()), SplitConjuncts(b.Right())...)
	}
	return []expr.Expr{pred}
}

// CombineConjuncts rebuilds a predicate from conjuncts.
func CombineConjuncts(conjuncts []expr.Expr) expr.Expr {
	out := conjuncts[0]
	for _, c := range conjuncts[1:] {
		out = expr.NewBinary(out, expr.OpAnd, c)
	}
	return out
}

// pushConjunct tries to absorb one conjunct into the subtree. It returns
// the rewritten subtree and whether the conjunct was absorbed.
func pushConjunct(n Node, conj expr.Expr) (Node, bool, error) {
	if expr.ContainsWindow(conj) {
		return n, false, nil
	}

	switch node := n.(type) {
	case *ScanNode:
		if !node.Source.CanPushPredicate(conj) {
			return n, false, nil
		}
		pred := conj
		if node.Predicate != nil {
			pred = expr.NewBinary(node.Predicate, expr.OpAnd, conj)
		}
		pushed, err := node.WithPushdown(node.Projection, pred)
		if err != nil {
			return nil, false, err
		}
		return pushed, true, nil

	case *FilterNode:
		// fuse into the existing filter, trying deeper first
		input, ok, err := pushConjunct(node.Input, conj)
		if err != nil {
			return nil, false, err
		}
		if ok {
			rebuilt, err := NewFilter(input, node.Predicate)
			return rebuilt, true, err
		}
		rebuilt, err := NewFilter(node.Input, expr.NewBinary(node.Predicate, expr.OpAnd, conj))
		return rebuilt, true, err

	case *SelectNode:
		mapping, ok := passThroughMapping(node)
		if !ok {
			return n, false, nil
		}
		for _, dep := range expr.Dependencies(conj) {
			if _, passes := mapping[dep]; !passes {
				return n, false, nil
			}
		}
		rewritten := expr.Rewrite(conj, func(e expr.Expr) expr.Expr {
			if col, isCol := e.(*expr.ColumnExpr); isCol {
				return expr.Col(mapping[col.Name()])
			}
			return e
		})
		input, err := sinkConjunct(node.Input, rewritten)
		if err != nil {
			return nil, false, err
		}
		rebuilt, err := NewSelect(input, node.Exprs)
		return rebuilt, true, err

	case *SortNode:
		input, err := sinkConjunct(node.Input, conj)
		if err != nil {
			return nil, false, err
		}
		rebuilt, err := NewSort(input, node.Keys)
		return rebuilt, true, err

	case *DistinctNode:
		// safe only when the predicate cannot distinguish rows the
		// distinct collapses
		if !distinctPushSafe(node, conj) {
			return n, false, nil
		}
		input, err := sinkConjunct(node.Input, conj)
		if err != nil {
			return nil, false, err
		}
		rebuilt, err := NewDistinct(input, node.Subset)
		return rebuilt, true, err

	case *UnionNode:
		inputs := make([]Node, len(node.Nodes))
		for i, in := range node.Nodes {
			pushed, err := sinkConjunct(in, conj)
			if err != nil {
				return nil, false, err
			}
			inputs[i] = pushed
		}
		rebuilt, err := NewUnion(inputs)
		return rebuilt, true, err

	case *GroupByNode:
		keys := make(map[string]struct{}, len(node.Keys))
		for _, k := range node.Keys {
			keys[k] = struct{}{}
		}
		for _, dep := range expr.Dependencies(conj) {
			if _, isKey := keys[dep]; !isKey {
				return n, false, nil
			}
		}
		input, err := sinkConjunct(node.Input, conj)
		if err != nil {
			return nil, false, err
		}
		rebuilt, err := NewGroupBy(input, node.Keys, node.Aggs)
		return rebuilt, true, err

	case *JoinNode:
		return pushConjunctThroughJoin(node, conj)

	default:
		return n, false, nil
	}
}

// sinkConjunct pushes a conjunct into a subtree, wrapping the subtree in a
// Filter when nothing absorbs it.
func sinkConjunct(n Node, conj expr.Expr) (Node, error) {
	pushed, ok, err := pushConjunct(n, conj)
	if err != nil {
		return nil, err
	}
	if ok {
		return pushed, nil
	}
	return NewFilter(n, conj)
}

// passThroughMapping returns output-name to input-name mapping for select
// expressions that merely pass columns through (bare references and column
// aliases). A select with any other expression shape still passes its
// simple columns; only those participate in pushdown.
func passThroughMapping(node *SelectNode) (map[string]string, bool) {
	mapping := make(map[string]string, len(node.Exprs))
	for _, e := range node.Exprs {
		switch ex := e.(type) {
		case *expr.ColumnExpr:
			mapping[ex.Name()] = ex.Name()
		case *expr.AliasExpr:
			if col, isCol := ex.Inner().(*expr.ColumnExpr); isCol {
				mapping[ex.Name()] = col.Name()
			}
		}
	}
	return mapping, len(mapping) > 0
}

// distinctPushSafe reports whether filtering before the distinct preserves
// which row survives: true when the distinct key covers every column or
// the predicate reads only key columns.
func distinctPushSafe(node *DistinctNode, conj expr.Expr) bool {
	if len(node.Subset) == 0 {
		return true
	}
	subset := make(map[string]struct{}, len(node.Subset))
	for _, s := range node.Subset {
		subset[s] = struct{}{}
	}
	for _, dep := range expr.Dependencies(conj) {
		if _, inKey := subset[dep]; !inKey {
			return false
		}
	}
	return true
}

// pushConjunctThroughJoin sinks a conjunct to the join side that produces
// all of its columns, where the join type keeps that side's rows filterable
// before matching.
func pushConjunctThroughJoin(node *JoinNode, conj expr.Expr) (Node, bool, error) {
	deps := expr.Dependencies(conj)
	ls, rs := node.Left.Schema(), node.Right.Schema()

	leftOK := node.How == JoinInner || node.How == JoinLeft ||
		node.How == JoinSemi || node.How == JoinAnti
	if leftOK && allIn(deps, ls.Names()) {
		input, err := sinkConjunct(node.Left, conj)
		if err != nil {
			return nil, false, err
		}
		rebuilt, err := NewJoin(input, node.Right, node.LeftOn, node.RightOn, node.How)
		return rebuilt, true, err
	}

	rightOK := node.How == JoinInner || node.How == JoinRight
	if rightOK {
		// output names of right columns may carry the collision suffix
		rewritten, resolvable := unsuffixForRight(conj, ls, rs)
		if resolvable {
			input, err := sinkConjunct(node.Right, rewritten)
			if err != nil {
				return nil, false, err
			}
			rebuilt, err := NewJoin(node.Left, input, node.LeftOn, node.RightOn, node.How)
			return rebuilt, true, err
		}
	}
	return node, false, nil
}

func allIn(deps, names []string) bool {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	for _, d := range deps {
		if _, ok := set[d]; !ok {
			return false
		}
	}
	return true
}

// unsuffixForRight maps join-output column names back to right-side input
// names. It fails when any dependency is not a right-side column.
func unsuffixForRight(conj expr.Expr, ls, rs interface{ Has(string) bool }) (expr.Expr, bool) {
	ok := true
	rewritten := expr.Rewrite(conj, func(e expr.Expr) expr.Expr {
		col, isCol := e.(*expr.ColumnExpr)
		if !isCol {
			return e
		}
		name := col.Name()
		if trimmed, found := strings.CutSuffix(name, RightSuffix); found && ls.Has(trimmed) && rs.Has(trimmed) {
			return expr.Col(trimmed)
		}
		if rs.Has(name) && !ls.Has(name) {
			return e
		}
		ok = false
		return e
	})
	return rewritten, ok
}

// ProjectionPushdownRule narrows scans to the columns the plan actually
// reads, walking requirements top-down from the root.
type ProjectionPushdownRule struct{}

func (r *ProjectionPushdownRule) Name() string { return "ProjectionPushdown" }

func (r *ProjectionPushdownRule) Apply(n Node) (Node, error) {
	return pushProjection(n, nil)
}

// pushProjection rewrites a subtree given the set of columns its parent
// needs; nil means every column.
func pushProjection(n Node, need map[string]struct{}) (Node, error) {
	switch node := n.(type) {
	case *ScanNode:
		if need == nil {
			return node, nil
		}
		// the pushed predicate runs inside the source over projected
		// columns, so its dependencies stay in the projection
		if node.Predicate != nil {
			need = union(need, expr.Dependencies(node.Predicate))
		}
		projection := make([]string, 0, len(need))
		for _, name := range node.SourceSchema().Names() {
			if _, wanted := need[name]; wanted {
				projection = append(projection, name)
			}
		}
		if len(projection) == node.SourceSchema().Len() {
			return node, nil
		}
		return node.WithPushdown(projection, node.Predicate)

	case *FilterNode:
		childNeed := need
		if childNeed != nil {
			childNeed = union(childNeed, expr.Dependencies(node.Predicate))
		}
		input, err := pushProjection(node.Input, childNeed)
		if err != nil {
			return nil, err
		}
		return NewFilter(input, node.Predicate)

	case *SelectNode:
		exprs := node.Exprs
		if need != nil {
			kept := make([]expr.Expr, 0, len(exprs))
			for _, e := range exprs {
				if _, wanted := need[expr.OutputName(e)]; wanted {
					kept = append(kept, e)
				}
			}
			if len(kept) > 0 {
				exprs = kept
			}
		}
		childNeed := map[string]struct{}{}
		for _, e := range exprs {
			childNeed = union(childNeed, expr.Dependencies(e))
		}
		input, err := pushProjection(node.Input, childNeed)
		if err != nil {
			return nil, err
		}
		return NewSelect(input, exprs)

	case *GroupByNode:
		aggs := node.Aggs
		if need != nil {
			kept := make([]expr.Expr, 0, len(aggs))
			for _, agg := range aggs {
				if _, wanted := need[expr.OutputName(agg)]; wanted {
					kept = append(kept, agg)
				}
			}
			if len(kept) > 0 {
				aggs = kept
			}
		}
		childNeed := map[string]struct{}{}
		childNeed = union(childNeed, node.Keys)
		for _, agg := range aggs {
			childNeed = union(childNeed, expr.Dependencies(agg))
		}
		input, err := pushProjection(node.Input, childNeed)
		if err != nil {
			return nil, err
		}
		return NewGroupBy(input, node.Keys, aggs)

	case *JoinNode:
		leftNeed, rightNeed := joinChildNeeds(node, need)
		left, err := pushProjection(node.Left, leftNeed)
		if err != nil {
			return nil, err
		}
		right, err := pushProjection(node.Right, rightNeed)
		if err != nil {
			return nil, err
		}
		return NewJoin(left, right, node.LeftOn, node.RightOn, node.How)

	case *SortNode:
		childNeed := need
		if childNeed != nil {
			for _, key := range node.Keys {
				childNeed = union(childNeed, expr.Dependencies(key))
			}
		}
		input, err := pushProjection(node.Input, childNeed)
		if err != nil {
			return nil, err
		}
		return NewSort(input, node.Keys)

	case *DistinctNode:
		childNeed := need
		if len(node.Subset) == 0 {
			// distinct over all columns reads everything
			childNeed = nil
		} else if childNeed != nil {
			childNeed = union(childNeed, node.Subset)
		}
		input, err := pushProjection(node.Input, childNeed)
		if err != nil {
			return nil, err
		}
		return NewDistinct(input, node.Subset)

	case *SliceNode:
		input, err := pushProjection(node.Input, need)
		if err != nil {
			return nil, err
		}
		return NewSlice(input, node.Offset, node.Length), nil

	case *UnionNode:
		// inputs must keep identical schemas, so requirements do not
		// narrow through a union
		inputs := make([]Node, len(node.Nodes))
		for i, in := range node.Nodes {
			rewritten, err := pushProjection(in, nil)
			if err != nil {
				return nil, err
			}
			inputs[i] = rewritten
		}
		return NewUnion(inputs)

	case *MapNode:
		// the function's reads are opaque
		input, err := pushProjection(node.Input, nil)
		if err != nil {
			return nil, err
		}
		return NewMap(input, node.Fn, node.Schema())

	default:
		return n, nil
	}
}

// joinChildNeeds splits parent requirements between join sides, always
// keeping the join keys.
func joinChildNeeds(node *JoinNode, need map[string]struct{}) (left, right map[string]struct{}) {
	if need == nil {
		return nil, nil
	}
	ls, rs := node.Left.Schema(), node.Right.Schema()
	left = map[string]struct{}{}
	right = map[string]struct{}{}
	for name := range need {
		if ls.Has(name) {
			left[name] = struct{}{}
			continue
		}
		if trimmed, found := strings.CutSuffix(name, RightSuffix); found && rs.Has(trimmed) {
			right[trimmed] = struct{}{}
			continue
		}
		if rs.Has(name) {
			right[name] = struct{}{}
		}
	}
	left = union(left, node.LeftOn)
	right = union(right, node.RightOn)
	return left, right
}

func union(set map[string]struct{}, names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(set)+len(names))
	for name := range set {
		out[name] = struct{}{}
	}
	for _, name := range names {
		out[name] = struct{}{}
	}
	return out
}
