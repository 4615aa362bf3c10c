package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Regressor maps a feature vector to a raw day count
type Regressor interface {
	Predict(x []float64) float64
}

type treeEnsemble struct {
	baseScore float64
	trees     []Tree
}

func (m *treeEnsemble) Predict(x []float64) float64 {
	sum := m.baseScore
	for i := range m.trees {
		sum += walk(m.trees[i].Nodes, x)
	}
	return sum
}

func walk(nodes []Node, x []float64) float64 {
	i := 0
	for {
		n := &nodes[i]
		if n.Leaf != nil {
			return *n.Leaf
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type linear struct {
	intercept    float64
	coefficients []float64
}

func (m *linear) Predict(x []float64) float64 {
	return m.intercept + floats.Dot(m.coefficients, x)
}

// newRegressor validates spec against the feature count and builds it
func newRegressor(spec ModelSpec, nFeatures int) (Regressor, error) {
	switch spec.Kind {
	case KindTreeEnsemble:
		if len(spec.Trees) == 0 {
			return nil, fmt.Errorf("tree ensemble has no trees")
		}
		for ti, t := range spec.Trees {
			if err := validateTree(t, nFeatures); err != nil {
				return nil, fmt.Errorf("tree %d: %w", ti, err)
			}
		}
		return &treeEnsemble{baseScore: spec.BaseScore, trees: spec.Trees}, nil
	case KindLinear:
		if len(spec.Coefficients) != nFeatures {
			return nil, fmt.Errorf("linear model has %d coefficients for %d features", len(spec.Coefficients), nFeatures)
		}
		return &linear{intercept: spec.Intercept, coefficients: spec.Coefficients}, nil
	default:
		return nil, fmt.Errorf("unsupported model kind %q", spec.Kind)
	}
}

// validateTree requires children to point forward, which rules out
// cycles and guarantees every walk terminates at a leaf.
func validateTree(t Tree, nFeatures int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Leaf != nil {
			if math.IsNaN(*n.Leaf) || math.IsInf(*n.Leaf, 0) {
				return fmt.Errorf("node %d: non-finite leaf", i)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return fmt.Errorf("node %d: feature index %d out of range", i, n.Feature)
		}
		for _, child := range []int{n.Left, n.Right} {
			if child <= i || child >= len(t.Nodes) {
				return fmt.Errorf("node %d: child %d out of order", i, child)
			}
		}
	}
	return nil
}
