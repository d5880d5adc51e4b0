// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reprocess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/cortex/cluster"
	"github.com/poiesic/cortex/core"
	"github.com/poiesic/cortex/storage"
)

const defaultClusterCount = 5

// State is the orchestrator's lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateSuccess State = "success"
	StateFailed  State = "failed"
)

// Reducer maps embedding vectors to 3D positions. Satisfied by
// projection.NeighborhoodReducer.
type Reducer interface {
	Reduce(ctx context.Context, vectors [][]float32) ([]core.Position, error)
}

// Clusterer partitions positions into k groups. Satisfied by
// cluster.KMeans.
type Clusterer interface {
	Cluster(ctx context.Context, points []core.Position, k int) ([]int, error)
}

// Result summarizes a successful reprocessing run.
type Result struct {
	ConversationsUpdated int
	ClusterStats         []core.ClusterStat
	Duration             time.Duration
}

// Status is a snapshot of the orchestrator's state for reporting. State is
// only ever StateIdle or StateRunning; a finished run returns to StateIdle
// immediately, with its outcome recorded in LastOutcome, LastResult, and
// LastError.
type Status struct {
	State       State
	LastOutcome State // StateSuccess or StateFailed, empty before the first run
	LastResult  *Result
	LastError   error
	FinishedAt  time.Time
}

// Orchestrator runs the full-corpus reduce/cluster/publish pipeline.
type Orchestrator struct {
	conversations storage.ConversationRepository
	vectors       storage.VectorStore
	reducer       Reducer
	clusterer     Clusterer
	clusterCount  int
	logger        *slog.Logger

	runMu sync.Mutex // single-flight guard

	mu          sync.Mutex // guards the status fields below
	state       State
	lastOutcome State
	lastResult  *Result
	lastErr     error
	finishedAt  time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithClusterCount sets the configured number of clusters K. The effective
// K for a run is clamped to the corpus size.
// Default is 5.
func WithClusterCount(k int) Option {
	return func(o *Orchestrator) error {
		if k < 1 {
			return errors.New("cluster count must be at least 1")
		}
		o.clusterCount = k
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// New creates an Orchestrator.
func New(
	conversations storage.ConversationRepository,
	vectors storage.VectorStore,
	reducer Reducer,
	clusterer Clusterer,
	opts ...Option,
) (*Orchestrator, error) {
	if conversations == nil {
		return nil, ErrConversationRepositoryRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if reducer == nil {
		return nil, ErrReducerRequired
	}
	if clusterer == nil {
		return nil, ErrClustererRequired
	}

	o := &Orchestrator{
		conversations: conversations,
		vectors:       vectors,
		reducer:       reducer,
		clusterer:     clusterer,
		clusterCount:  defaultClusterCount,
		logger:        slog.Default(),
		state:         StateIdle,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Status returns a snapshot of the orchestrator's state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		State:       o.state,
		LastOutcome: o.lastOutcome,
		LastResult:  o.lastResult,
		LastError:   o.lastErr,
		FinishedAt:  o.finishedAt,
	}
}

// Run executes one full reprocessing pass. A concurrent Run fails
// immediately with core.ErrAlreadyInProgress; callers wanting the outcome
// of the in-flight run should poll Status instead of retrying.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	if !o.runMu.TryLock() {
		return nil, core.ErrAlreadyInProgress
	}
	defer o.runMu.Unlock()

	o.setState(StateRunning)
	start := time.Now()

	result, err := o.reprocess(ctx)
	if err != nil {
		o.finish(StateFailed, nil, err)
		o.logger.Error("reprocessing failed", "err", err, "duration", time.Since(start))
		return nil, err
	}

	result.Duration = time.Since(start)
	o.finish(StateSuccess, result, nil)
	o.logger.Info("reprocessing complete",
		"conversations", result.ConversationsUpdated,
		"clusters", len(result.ClusterStats),
		"duration", result.Duration)
	return result, nil
}

// reprocess computes and publishes the complete replacement result set.
// Nothing is persisted until the final UpdateConversations call, which
// writes every record in one transaction.
func (o *Orchestrator) reprocess(ctx context.Context) (*Result, error) {
	all, err := o.conversations.GetAllConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}

	// Only conversations with a stored embedding participate; the rest
	// keep their previous fields.
	var (
		members []*core.Conversation
		vectors [][]float32
	)
	for _, conv := range all {
		entry, err := o.vectors.GetEntry(ctx, conv.Id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				o.logger.Warn("conversation has no embedding, skipping", "id", conv.Id)
				continue
			}
			return nil, fmt.Errorf("load embedding for %s: %w", conv.Id, err)
		}
		members = append(members, conv)
		vectors = append(vectors, entry.Vector)
	}

	if len(members) < 2 {
		return nil, fmt.Errorf("reprocess: need at least 2 embedded conversations, got %d: %w",
			len(members), core.ErrInsufficientData)
	}

	positions, err := o.reducer.Reduce(ctx, vectors)
	if err != nil {
		return nil, fmt.Errorf("reduce: %w", err)
	}

	k := o.clusterCount
	if k > len(members) {
		k = len(members)
	}

	assignments, err := o.clusterer.Cluster(ctx, positions, k)
	if err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}

	topics := make([][]string, len(members))
	for i, conv := range members {
		topics[i] = conv.Topics
	}
	names, err := cluster.NamesFromTopics(assignments, topics, k)
	if err != nil {
		return nil, fmt.Errorf("name clusters: %w", err)
	}

	// Stage the replacement records on copies so a failed publish leaves
	// the caller's view untouched too.
	staged := make([]*core.Conversation, len(members))
	for i, conv := range members {
		updated := *conv
		updated.Position = positions[i]
		updated.Positioned = true
		updated.ClusterId = assignments[i]
		updated.ClusterName = names[assignments[i]]
		staged[i] = &updated
	}

	if err := o.conversations.UpdateConversations(ctx, staged...); err != nil {
		return nil, fmt.Errorf("publish results: %w", err)
	}

	return &Result{
		ConversationsUpdated: len(staged),
		ClusterStats:         cluster.Statistics(staged),
	}, nil
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
}

// finish records the outcome of a run and returns the orchestrator to
// StateIdle, making it immediately available for a retry.
func (o *Orchestrator) finish(s State, result *Result, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = StateIdle
	o.lastOutcome = s
	o.lastResult = result
	o.lastErr = err
	o.finishedAt = time.Now().UTC()
}
