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

import (
	"fmt"
	"time"
)

// ValidateConversation validates a Conversation according to domain rules.
//
// Validation rules:
//   - Id and Title must not be empty
//   - MessageCount must be at least 1 (no partial conversations)
//   - CreatedAt must not be in the future
//
// NOT validated (populated later):
//   - Summary and Topics (set by the summarizer)
//   - Position and cluster fields (set by the reprocessing pass)
func ValidateConversation(conversation *Conversation) error {
	if conversation == nil {
		return fmt.Errorf("%w: conversation is nil", ErrInvalidConversation)
	}

	if conversation.Id == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidConversation)
	}

	if conversation.Title == "" {
		return fmt.Errorf("%w: %w", ErrInvalidConversation, ErrEmptyTitle)
	}

	if conversation.MessageCount < 1 {
		return fmt.Errorf("%w: %w", ErrInvalidConversation, ErrNoMessages)
	}

	if !IsValidTimestamp(conversation.CreatedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidConversation, ErrInvalidTimestamp)
	}

	return nil
}

// IsValidTimestamp returns true if the timestamp is not in the future.
// A small clock-skew allowance is applied.
func IsValidTimestamp(t time.Time) bool {
	return !t.After(time.Now().Add(1 * time.Minute))
}
