// Package signal discretises the distribution of the realized marginal tax
// rate into weighted nodes.
//
// Quadrature is the only source of approximation error in expected-utility
// calculations: a gaussian signal is replaced by n equally weighted nodes at
// the mid-point quantiles (i+0.5)/n of the normal distribution. Accuracy
// improves monotonically with n. No Monte Carlo sampling is used.
package signal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"tax-uncertainty/core/types"
	"tax-uncertainty/internal/errors"
)

// Node is one realized tax rate and its probability weight
type Node struct {
	Rate   float64 `json:"rate"`
	Weight float64 `json:"weight"`
}

var (
	fivePointZ       = [5]float64{-1.5, -0.5, 0, 0.5, 1.5}
	fivePointWeights = [5]float64{0.1, 0.2, 0.4, 0.2, 0.1}
)

// Method describes how a node set of n requested nodes approximates the
// expectation, including the node count actually used. It is copied into
// output summaries.
func Method(u types.TaxUncertainty, n int) string {
	switch {
	case u.IsDegenerate():
		return "point (1 node)"
	case u.Kind == types.KindFivePoint:
		return fmt.Sprintf("five-point symmetric scenarios (%d nodes)", len(fivePointZ))
	default:
		return fmt.Sprintf("gaussian mid-quantile quadrature (%d nodes)", n)
	}
}

// Nodes returns the weighted rate nodes for u. Point (and zero sd)
// distributions return a single node of weight 1. Gaussian distributions
// return n nodes of weight 1/n. The five-point preset ignores n.
func Nodes(u types.TaxUncertainty, n int) ([]Node, error) {
	if n < 1 {
		return nil, errors.Domain("nodes", "quadrature node count must be >= 1, got %d", n)
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}

	if u.IsDegenerate() {
		return []Node{{Rate: clip(u.Mean, u.Clip), Weight: 1}}, nil
	}

	switch u.Kind {
	case types.KindFivePoint:
		nodes := make([]Node, len(fivePointZ))
		for i, z := range fivePointZ {
			nodes[i] = Node{Rate: clip(u.Mean+u.SD*z, u.Clip), Weight: fivePointWeights[i]}
		}
		return nodes, nil
	default:
		dist := distuv.Normal{Mu: u.Mean, Sigma: u.SD}
		nodes := make([]Node, n)
		w := 1 / float64(n)
		for i := range nodes {
			q := (float64(i) + 0.5) / float64(n)
			nodes[i] = Node{Rate: clip(dist.Quantile(q), u.Clip), Weight: w}
		}
		return nodes, nil
	}
}

// FivePoint returns the symmetric five-scenario distribution clipped to
// [0, 1].
func FivePoint(mean, sd float64) types.TaxUncertainty {
	return types.TaxUncertainty{Mean: mean, SD: sd, Kind: types.KindFivePoint, Clip: types.ClipUnit}
}

// Mean returns the weighted mean rate of a node set
func Mean(nodes []Node) float64 {
	var m float64
	for _, n := range nodes {
		m += n.Weight * n.Rate
	}
	return m
}

func clip(rate float64, mode types.ClipMode) float64 {
	if mode == types.ClipUnit {
		return math.Min(math.Max(rate, 0), 1)
	}
	return rate
}
