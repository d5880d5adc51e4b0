package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/poiesic/cortex/core"
)

const (
	defaultSeed       = 42
	defaultScale      = 10.0
	defaultNeighbors  = 15
	defaultIterations = 200
	defaultMinDist    = 0.1
)

// Reducer produces one 3D coordinate per input vector, approximately
// preserving local neighborhood structure.
type Reducer interface {
	// Reduce maps N input vectors to N positions. All inputs must share
	// one dimension. Fails with core.ErrInsufficientData when N < 2 and
	// with core.ErrDimensionMismatch on ragged input.
	Reduce(ctx context.Context, vectors [][]float32) ([]core.Position, error)
}

// NeighborhoodReducer implements Reducer with a PCA base projection followed
// by seeded stochastic neighborhood refinement.
type NeighborhoodReducer struct {
	seed       int64
	scale      float64
	neighbors  int
	iterations int
	minDist    float64
	logger     *slog.Logger
}

var _ Reducer = (*NeighborhoodReducer)(nil)

// Option configures a NeighborhoodReducer.
type Option func(*NeighborhoodReducer) error

// WithSeed sets the random seed used for the refinement pass.
// Default is 42.
func WithSeed(seed int64) Option {
	return func(r *NeighborhoodReducer) error {
		r.seed = seed
		return nil
	}
}

// WithScale sets the half-width of the output coordinate range. Coordinates
// come back centered at the origin within [-scale, scale] per axis.
// Default is 10.
func WithScale(scale float64) Option {
	return func(r *NeighborhoodReducer) error {
		if scale <= 0 {
			return errors.New("scale must be positive")
		}
		r.scale = scale
		return nil
	}
}

// WithNeighbors sets the neighborhood size used during refinement. The
// effective value is clamped to N-1 for small corpora.
// Default is 15.
func WithNeighbors(neighbors int) Option {
	return func(r *NeighborhoodReducer) error {
		if neighbors < 1 {
			return errors.New("neighbors must be at least 1")
		}
		r.neighbors = neighbors
		return nil
	}
}

// WithIterations sets the number of refinement iterations.
// Default is 200.
func WithIterations(iterations int) Option {
	return func(r *NeighborhoodReducer) error {
		if iterations < 0 {
			return errors.New("iterations must not be negative")
		}
		r.iterations = iterations
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *NeighborhoodReducer) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// New creates a NeighborhoodReducer.
func New(opts ...Option) (*NeighborhoodReducer, error) {
	r := &NeighborhoodReducer{
		seed:       defaultSeed,
		scale:      defaultScale,
		neighbors:  defaultNeighbors,
		iterations: defaultIterations,
		minDist:    defaultMinDist,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Reduce maps the input vectors to normalized 3D positions.
func (r *NeighborhoodReducer) Reduce(ctx context.Context, vectors [][]float32) ([]core.Position, error) {
	n := len(vectors)
	if n < 2 {
		return nil, fmt.Errorf("reduce: need at least 2 vectors, got %d: %w", n, core.ErrInsufficientData)
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("reduce: empty vector at index 0: %w", core.ErrDimensionMismatch)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("reduce: vector %d has %d dimensions, expected %d: %w",
				i, len(v), dim, core.ErrDimensionMismatch)
		}
	}

	r.logger.Debug("reducing embeddings",
		"count", n,
		"dimension", dim,
		"seed", r.seed)

	coords, err := pcaProject(vectors, 3)
	if err != nil {
		return nil, fmt.Errorf("reduce: %w", err)
	}

	if r.iterations > 0 && n > 2 {
		if err := r.refine(ctx, vectors, coords); err != nil {
			return nil, err
		}
	}

	normalizeCoordinates(coords, r.scale)

	positions := make([]core.Position, n)
	for i, c := range coords {
		positions[i] = core.Position{
			X:         c[0],
			Y:         c[1],
			Z:         c[2],
			Magnitude: math.Sqrt(c[0]*c[0] + c[1]*c[1] + c[2]*c[2]),
		}
	}
	return positions, nil
}

// normalizeCoordinates centers the layout at the origin and scales it
// uniformly so the largest axis offset equals scale. Uniform scaling keeps
// relative distances intact.
func normalizeCoordinates(coords [][3]float64, scale float64) {
	if len(coords) == 0 {
		return
	}

	var mean [3]float64
	for _, c := range coords {
		for a := 0; a < 3; a++ {
			mean[a] += c[a]
		}
	}
	for a := 0; a < 3; a++ {
		mean[a] /= float64(len(coords))
	}

	maxDist := 0.0
	for i := range coords {
		for a := 0; a < 3; a++ {
			coords[i][a] -= mean[a]
			if d := math.Abs(coords[i][a]); d > maxDist {
				maxDist = d
			}
		}
	}
	if maxDist == 0 {
		return
	}

	factor := scale / maxDist
	for i := range coords {
		for a := 0; a < 3; a++ {
			coords[i][a] *= factor
		}
	}
}
