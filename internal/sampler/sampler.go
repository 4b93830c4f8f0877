// Package sampler selects which of a page's links enter the crawl frontier.
//
// Links are sampled with a two-tier bias: the first topFraction of a page's
// links (by order of appearance) receive topShare of the total selection
// probability, the remaining links share the rest.
package sampler

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/IshaanNene/wikigraph/internal/types"
)

// Bias configures the two-tier sampling scheme.
type Bias struct {
	TopFraction float64 `mapstructure:"top_fraction" yaml:"top_fraction"`
	TopShare    float64 `mapstructure:"top_share"    yaml:"top_share"`
}

// Sample returns nSample distinct indices in [0, nLinks), in ascending order.
//
// When the top group is smaller than its quota (or empty) it is taken whole
// and the remaining quota is drawn uniformly from the indices after it.
// Otherwise every index gets a weight from its tier and nSample indices are
// drawn without replacement proportionally to those weights.
func Sample(rng *rand.Rand, nLinks, nSample int, bias Bias) ([]int, error) {
	const op = "sample"
	if nLinks < 0 || nSample < 0 {
		return nil, types.InvalidArgument(op, "negative counts (links=%d, sample=%d)", nLinks, nSample)
	}
	if !inUnit(bias.TopFraction) || !inUnit(bias.TopShare) {
		return nil, types.InvalidArgument(op, "fractions must be within [0,1] (top_fraction=%v, top_share=%v)",
			bias.TopFraction, bias.TopShare)
	}
	if nSample == 0 {
		return []int{}, nil
	}
	if nSample >= nLinks {
		return seq(0, nLinks), nil
	}

	topPop := int(float64(nLinks) * bias.TopFraction)
	topTarget := int(float64(nSample) * bias.TopShare)

	if topPop < topTarget || topPop == 0 {
		remaining := nSample - topPop
		tail := nLinks - topPop
		if remaining > tail {
			return nil, types.InvalidArgument(op, "cannot draw %d links from a tail of %d", remaining, tail)
		}
		chosen := seq(0, topPop)
		for _, i := range uniform(rng, tail, remaining) {
			chosen = append(chosen, topPop+i)
		}
		slices.Sort(chosen)
		return chosen, nil
	}

	weights := make([]float64, nLinks)
	topWeight := bias.TopShare / float64(topPop)
	tailWeight := 0.0
	if nLinks > topPop {
		tailWeight = (1 - bias.TopShare) / float64(nLinks-topPop)
	}
	positive := 0
	for i := range weights {
		if i < topPop {
			weights[i] = topWeight
		} else {
			weights[i] = tailWeight
		}
		if weights[i] > 0 {
			positive++
		}
	}
	if positive < nSample {
		return nil, types.InvalidArgument(op, "only %d links have non-zero probability, need %d", positive, nSample)
	}
	return weighted(rng, weights, nSample), nil
}

// uniform draws k distinct values from [0, n) uniformly (partial Fisher-Yates).
func uniform(rng *rand.Rand, n, k int) []int {
	pool := seq(0, n)
	for i := 0; i < k; i++ {
		j := i + rng.IntN(n-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

// weighted draws k distinct indices without replacement with probability
// proportional to weights. Each index gets the key log(u)/w and the k largest
// keys win, which matches successive proportional draws (Efraimidis-Spirakis).
func weighted(rng *rand.Rand, weights []float64, k int) []int {
	type keyed struct {
		idx int
		key float64
	}
	keys := make([]keyed, 0, len(weights))
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		keys = append(keys, keyed{idx: i, key: math.Log(u) / w})
	}
	slices.SortFunc(keys, func(a, b keyed) int {
		switch {
		case a.key > b.key:
			return -1
		case a.key < b.key:
			return 1
		default:
			return a.idx - b.idx
		}
	})

	chosen := make([]int, k)
	for i := range chosen {
		chosen[i] = keys[i].idx
	}
	slices.Sort(chosen)
	return chosen
}

func seq(from, to int) []int {
	out := make([]int, 0, max(to-from, 0))
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

func inUnit(f float64) bool {
	return f >= 0 && f <= 1 && !math.IsNaN(f)
}
