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


package core

import "errors"

// Failure taxonomy shared across the retrieval and projection core.
// Callers match these with errors.Is; layers wrap them with %w and keep the
// kind intact all the way to the API surface.
var (
	// ErrProviderUnavailable indicates the embedding or summarization backend
	// could not be reached. Retryable.
	ErrProviderUnavailable = errors.New("ai provider unavailable")

	// ErrEmptyInput indicates there was no text to embed after normalization.
	// A caller error, not retryable.
	ErrEmptyInput = errors.New("input text is empty")

	// ErrDimensionMismatch indicates a vector's length disagrees with the
	// dimension established by the store's first insert. Usually a provider
	// or model version mismatch.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInsufficientData indicates too few conversations for reduction
	// (fewer than 2) or clustering (fewer than k). Not retryable until more
	// data exists.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrAlreadyInProgress indicates a reprocessing run was triggered while
	// another is still running. Retryable after the current run finishes.
	ErrAlreadyInProgress = errors.New("reprocessing already in progress")
)

// Domain validation errors
var (
	// ErrInvalidConversation indicates a Conversation failed validation.
	ErrInvalidConversation = errors.New("invalid conversation")

	// ErrEmptyTitle indicates the Title field is empty.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrNoMessages indicates a conversation with zero messages. Partial
	// conversations may never be created.
	ErrNoMessages = errors.New("conversation has no messages")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")
)
