package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/poiesic/cortex/core"
)

const (
	defaultSeed          = 42
	defaultMaxIterations = 300
	defaultRestarts      = 10
)

// Clusterer partitions 3D points into k groups.
type Clusterer interface {
	// Cluster returns one assignment per input point. Assignments are
	// dense integers 0..k-1 and cover every index exactly once. Fails
	// with core.ErrInsufficientData when len(points) < k.
	Cluster(ctx context.Context, points []core.Position, k int) ([]int, error)
}

// KMeans implements Clusterer with seeded k-means. Centroids are seeded
// with the k-means++ strategy and the best of several restarts is kept, so
// results are deterministic for a fixed seed.
type KMeans struct {
	seed          int64
	maxIterations int
	restarts      int
	logger        *slog.Logger
}

var _ Clusterer = (*KMeans)(nil)

// Option configures a KMeans clusterer.
type Option func(*KMeans) error

// WithSeed sets the random seed for centroid initialization.
// Default is 42.
func WithSeed(seed int64) Option {
	return func(km *KMeans) error {
		km.seed = seed
		return nil
	}
}

// WithMaxIterations caps the assignment/update loop per restart.
// Default is 300.
func WithMaxIterations(n int) Option {
	return func(km *KMeans) error {
		if n < 1 {
			return errors.New("max iterations must be at least 1")
		}
		km.maxIterations = n
		return nil
	}
}

// WithRestarts sets how many independent initializations to try; the run
// with the lowest total within-cluster distance wins.
// Default is 10.
func WithRestarts(n int) Option {
	return func(km *KMeans) error {
		if n < 1 {
			return errors.New("restarts must be at least 1")
		}
		km.restarts = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(km *KMeans) error {
		if logger == nil {
			logger = slog.Default()
		}
		km.logger = logger
		return nil
	}
}

// New creates a KMeans clusterer.
func New(opts ...Option) (*KMeans, error) {
	km := &KMeans{
		seed:          defaultSeed,
		maxIterations: defaultMaxIterations,
		restarts:      defaultRestarts,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(km); err != nil {
			return nil, err
		}
	}
	return km, nil
}

// Cluster partitions the points into k groups.
func (km *KMeans) Cluster(ctx context.Context, points []core.Position, k int) ([]int, error) {
	n := len(points)
	if k < 1 {
		return nil, fmt.Errorf("cluster: k must be at least 1, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("cluster: need at least %d points for %d clusters, got %d: %w",
			k, k, n, core.ErrInsufficientData)
	}

	coords := make([][3]float64, n)
	for i, p := range points {
		coords[i] = [3]float64{p.X, p.Y, p.Z}
	}

	rng := rand.New(rand.NewSource(km.seed))

	var (
		bestAssignments []int
		bestInertia     = math.Inf(1)
	)
	for restart := 0; restart < km.restarts; restart++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		assignments, inertia := km.run(coords, k, rng)
		if inertia < bestInertia {
			bestInertia = inertia
			bestAssignments = assignments
		}
	}

	km.logger.Debug("clustering complete",
		"points", n,
		"clusters", k,
		"inertia", bestInertia)
	return bestAssignments, nil
}

// run performs one seeded k-means pass and returns the assignments with
// their total within-cluster squared distance.
func (km *KMeans) run(coords [][3]float64, k int, rng *rand.Rand) ([]int, float64) {
	n := len(coords)
	centroids := seedCentroids(coords, k, rng)
	assignments := make([]int, n)

	for iter := 0; iter < km.maxIterations; iter++ {
		changed := false
		for i, c := range coords {
			best := nearestCentroid(c, centroids)
			if assignments[i] != best {
				changed = true
				assignments[i] = best
			}
		}
		if iter > 0 && !changed {
			break
		}

		// Recompute centroids; an emptied cluster is reseeded to the
		// point farthest from its centroid so k groups survive when
		// the data supports them.
		sums := make([][3]float64, k)
		counts := make([]int, k)
		for i, c := range coords {
			a := assignments[i]
			for d := 0; d < 3; d++ {
				sums[a][d] += c[d]
			}
			counts[a]++
		}
		for j := 0; j < k; j++ {
			if counts[j] == 0 {
				centroids[j] = coords[farthestPoint(coords, centroids, assignments)]
				continue
			}
			for d := 0; d < 3; d++ {
				centroids[j][d] = sums[j][d] / float64(counts[j])
			}
		}
	}

	inertia := 0.0
	for i, c := range coords {
		inertia += squaredDistance(c, centroids[assignments[i]])
	}
	return assignments, inertia
}

// seedCentroids picks initial centroids with the k-means++ strategy: the
// first uniformly at random, the rest weighted by squared distance to the
// nearest chosen centroid.
func seedCentroids(coords [][3]float64, k int, rng *rand.Rand) [][3]float64 {
	n := len(coords)
	centroids := make([][3]float64, 0, k)
	centroids = append(centroids, coords[rng.Intn(n)])

	dists := make([]float64, n)
	for len(centroids) < k {
		total := 0.0
		for i, c := range coords {
			d := math.Inf(1)
			for _, cent := range centroids {
				if sq := squaredDistance(c, cent); sq < d {
					d = sq
				}
			}
			dists[i] = d
			total += d
		}

		if total == 0 {
			// All remaining points coincide with chosen centroids;
			// duplicate one to keep k centroids.
			centroids = append(centroids, coords[rng.Intn(n)])
			continue
		}

		target := rng.Float64() * total
		acc := 0.0
		chosen := n - 1
		for i, d := range dists {
			acc += d
			if acc >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, coords[chosen])
	}
	return centroids
}

// nearestCentroid returns the index of the closest centroid, preferring the
// lowest index on exact ties.
func nearestCentroid(point [3]float64, centroids [][3]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for j, cent := range centroids {
		if d := squaredDistance(point, cent); d < bestDist {
			bestDist = d
			best = j
		}
	}
	return best
}

// farthestPoint returns the index of the point farthest from its assigned
// centroid.
func farthestPoint(coords [][3]float64, centroids [][3]float64, assignments []int) int {
	best := 0
	bestDist := -1.0
	for i, c := range coords {
		if d := squaredDistance(c, centroids[assignments[i]]); d > bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func squaredDistance(a, b [3]float64) float64 {
	var sum float64
	for d := 0; d < 3; d++ {
		diff := a[d] - b[d]
		sum += diff * diff
	}
	return sum
}
