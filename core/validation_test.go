package core

import (
	"errors"
	"testing"
	"time"
)

func TestValidateConversation(t *testing.T) {
	validTime := time.Now().Add(-1 * time.Hour)
	futureTime := time.Now().Add(1 * time.Hour)

	tests := []struct {
		name         string
		conversation *Conversation
		wantErr      error
	}{
		{
			name: "valid conversation",
			conversation: &Conversation{
				Id:           "conv-1",
				Title:        "Debugging goroutine leaks",
				MessageCount: 2,
				CreatedAt:    validTime,
			},
			wantErr: nil,
		},
		{
			name: "valid without summary and topics",
			conversation: &Conversation{
				Id:           "conv-2",
				Title:        "Untitled chat",
				MessageCount: 1,
				CreatedAt:    validTime,
			},
			wantErr: nil,
		},
		{
			name: "valid with unassigned cluster",
			conversation: &Conversation{
				Id:           "conv-3",
				Title:        "New conversation",
				ClusterId:    ClusterUnassigned,
				MessageCount: 1,
				CreatedAt:    validTime,
			},
			wantErr: nil,
		},
		{
			name:         "nil conversation",
			conversation: nil,
			wantErr:      ErrInvalidConversation,
		},
		{
			name: "empty id",
			conversation: &Conversation{
				Title:        "No id",
				MessageCount: 1,
				CreatedAt:    validTime,
			},
			wantErr: ErrInvalidConversation,
		},
		{
			name: "empty title",
			conversation: &Conversation{
				Id:           "conv-4",
				MessageCount: 1,
				CreatedAt:    validTime,
			},
			wantErr: ErrEmptyTitle,
		},
		{
			name: "zero messages",
			conversation: &Conversation{
				Id:        "conv-5",
				Title:     "Empty conversation",
				CreatedAt: validTime,
			},
			wantErr: ErrNoMessages,
		},
		{
			name: "future timestamp",
			conversation: &Conversation{
				Id:           "conv-6",
				Title:        "From tomorrow",
				MessageCount: 1,
				CreatedAt:    futureTime,
			},
			wantErr: ErrInvalidTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConversation(tt.conversation)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateConversation() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateConversation() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsValidTimestamp(t *testing.T) {
	if !IsValidTimestamp(time.Now()) {
		t.Error("IsValidTimestamp() rejected the current time")
	}
	if !IsValidTimestamp(time.Now().Add(-24 * time.Hour)) {
		t.Error("IsValidTimestamp() rejected a past time")
	}
	if IsValidTimestamp(time.Now().Add(2 * time.Minute)) {
		t.Error("IsValidTimestamp() accepted a future time")
	}
}
