// Package cluster partitions projected conversation coordinates into groups
// and derives human-readable group names from member topics.
//
// Clustering is seeded k-means over 3D coordinates: assignments are dense
// integers 0..K-1 covering every input exactly once. Names come from the
// most frequent topics among a cluster's members, falling back to a generic
// label for clusters without topics.
package cluster
