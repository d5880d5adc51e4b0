package projection

import (
	"context"
	"math"
	"math/rand"
	"sort"
)

const negativeSamples = 5

// refine runs a stochastic layout pass over the PCA base projection: each
// point is pulled toward its nearest neighbors in embedding space and pushed
// away from randomly sampled non-neighbors. The learning rate decays
// linearly so the layout settles.
func (r *NeighborhoodReducer) refine(ctx context.Context, vectors [][]float32, coords [][3]float64) error {
	n := len(vectors)
	k := r.neighbors
	if k > n-1 {
		k = n - 1
	}

	neighbors := nearestNeighbors(vectors, k)
	rng := rand.New(rand.NewSource(r.seed))

	// Base the step size on the current layout spread so refinement is
	// insensitive to embedding scale.
	spread := 0.0
	for _, c := range coords {
		for a := 0; a < 3; a++ {
			if d := math.Abs(c[a]); d > spread {
				spread = d
			}
		}
	}
	if spread == 0 {
		spread = 1
	}
	baseRate := 0.05 * spread

	for iter := 0; iter < r.iterations; iter++ {
		if iter%32 == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		alpha := baseRate * (1 - float64(iter)/float64(r.iterations))
		for i := 0; i < n; i++ {
			// Attraction toward embedding-space neighbors.
			for _, j := range neighbors[i] {
				d := pointDistance(coords[i], coords[j])
				if d <= r.minDist {
					continue
				}
				pull := alpha * (d - r.minDist) / d
				for a := 0; a < 3; a++ {
					coords[i][a] += pull * (coords[j][a] - coords[i][a]) * 0.5
				}
			}

			// Repulsion from random samples keeps the layout from
			// collapsing onto the attractors.
			for s := 0; s < negativeSamples; s++ {
				j := rng.Intn(n)
				if j == i {
					continue
				}
				d := pointDistance(coords[i], coords[j])
				push := alpha * 0.1 / (1 + d*d)
				for a := 0; a < 3; a++ {
					coords[i][a] -= push * (coords[j][a] - coords[i][a])
				}
			}
		}
	}
	return nil
}

// nearestNeighbors finds the k nearest neighbors of every vector under
// cosine distance. Quadratic scan; corpora here are small enough that an
// approximate index would cost more than it saves.
func nearestNeighbors(vectors [][]float32, k int) [][]int {
	n := len(vectors)
	unit := make([][]float64, n)
	for i, v := range vectors {
		u := make([]float64, len(v))
		var norm float64
		for j, val := range v {
			u[j] = float64(val)
			norm += u[j] * u[j]
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range u {
				u[j] /= norm
			}
		}
		unit[i] = u
	}

	type candidate struct {
		index int
		sim   float64
	}

	neighbors := make([][]int, n)
	for i := 0; i < n; i++ {
		candidates := make([]candidate, 0, n-1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			var dot float64
			for d := range unit[i] {
				dot += unit[i][d] * unit[j][d]
			}
			candidates = append(candidates, candidate{index: j, sim: dot})
		}
		sort.Slice(candidates, func(a, b int) bool {
			if candidates[a].sim != candidates[b].sim {
				return candidates[a].sim > candidates[b].sim
			}
			return candidates[a].index < candidates[b].index
		})
		if len(candidates) > k {
			candidates = candidates[:k]
		}
		ids := make([]int, len(candidates))
		for c, cand := range candidates {
			ids[c] = cand.index
		}
		neighbors[i] = ids
	}
	return neighbors
}

func pointDistance(a, b [3]float64) float64 {
	var sum float64
	for i := 0; i < 3; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
