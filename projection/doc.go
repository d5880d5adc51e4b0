// Package projection reduces high-dimensional embedding vectors to 3D
// coordinates for visualization.
//
// The reducer combines a PCA base projection with a seeded stochastic
// refinement pass that pulls nearest neighbors together, so points that are
// close in embedding space stay close in the 3D layout. Output coordinates
// are centered at the origin and normalized to a bounded range.
//
// Reduction runs over the entire corpus on each invocation; there is no
// incremental mode. Results are deterministic for a fixed seed but are not
// stable across corpus changes.
package projection
