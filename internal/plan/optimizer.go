package plan

import (
	"github.com/paveg/ibis/internal/config"
)

// OptimizationRule is a semantics-preserving plan rewrite.
type OptimizationRule interface {
	Name() string
	Apply(n Node) (Node, error)
}

// Optimizer runs a rule pipeline to a fixpoint: rules repeat until a full
// pass leaves the plan fingerprint unchanged, bounded by MaxOptimizerPasses.
// Every pass preserves the root's derived schema.
type Optimizer struct {
	rules     []OptimizationRule
	maxPasses int
}

// NewOptimizer assembles the pipeline from configuration toggles. Rule
// order matters: simplification and folding shrink expressions before the
// pushdown rules inspect them.
func NewOptimizer(cfg config.Config) *Optimizer {
	var rules []OptimizationRule
	if cfg.Simplification {
		rules = append(rules, &SimplificationRule{})
	}
	if cfg.ConstantFolding {
		rules = append(rules, &ConstantFoldingRule{})
	}
	if cfg.SubexprElimination {
		rules = append(rules, &SubexprEliminationRule{})
	}
	if cfg.PredicatePushdown {
		rules = append(rules, &PredicatePushdownRule{})
	}
	if cfg.ProjectionPushdown {
		rules = append(rules, &ProjectionPushdownRule{})
	}
	maxPasses := cfg.MaxOptimizerPasses
	if maxPasses <= 0 {
		maxPasses = config.DefaultMaxOptimizerPasses
	}
	return &Optimizer{rules: rules, maxPasses: maxPasses}
}

// Optimize rewrites the plan. The returned plan has the same output schema
// and row semantics as the input.
func (o *Optimizer) Optimize(root Node) (Node, error) {
	current := root
	prev := Fingerprint(current)
	for pass := 0; pass < o.maxPasses; pass++ {
		for _, rule := range o.rules {
			next, err := rule.Apply(current)
			if err != nil {
				return nil, err
			}
			current = next
		}
		fp := Fingerprint(current)
		if fp == prev {
			break
		}
		prev = fp
	}
	if !root.Schema().Equal(current.Schema()) {
		// a rule broke schema preservation; fall back to the unoptimized plan
		return root, nil
	}
	return current, nil
}

// rewriteInputs rebuilds a node with new inputs, revalidating through the
// constructors so derived schemas stay consistent.
func rewriteInputs(n Node, inputs []Node) (Node, error) {
	switch node := n.(type) {
	case *ScanNode:
		return node, nil
	case *FilterNode:
		return NewFilter(inputs[0], node.Predicate)
	case *SelectNode:
		return NewSelect(inputs[0], node.Exprs)
	case *GroupByNode:
		return NewGroupBy(inputs[0], node.Keys, node.Aggs)
	case *JoinNode:
		return NewJoin(inputs[0], inputs[1], node.LeftOn, node.RightOn, node.How)
	case *SortNode:
		return NewSort(inputs[0], node.Keys)
	case *DistinctNode:
		return NewDistinct(inputs[0], node.Subset)
	case *UnionNode:
		return NewUnion(inputs)
	case *SliceNode:
		return NewSlice(inputs[0], node.Offset, node.Length), nil
	case *MapNode:
		return NewMap(inputs[0], node.Fn, node.Schema())
	default:
		return n, nil
	}
}

// transformUp rewrites the tree bottom-up: children first, then fn on the
// rebuilt node.
func transformUp(n Node, fn func(Node) (Node, error)) (Node, error) {
	inputs := n.Inputs()
	if len(inputs) > 0 {
		newInputs := make([]Node, len(inputs))
		changed := false
		for i, in := range inputs {
			rewritten, err := transformUp(in, fn)
			if err != nil {
				return nil, err
			}
			newInputs[i] = rewritten
			if rewritten != in {
				changed = true
			}
		}
		if changed {
			rebuilt, err := rewriteInputs(n, newInputs)
			if err != nil {
				return nil, err
			}
			n = rebuilt
		}
	}
	return fn(n)
}
