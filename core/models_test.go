package core

import (
	"testing"
)

func TestHashContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "same content produces same hash",
			content: "test content",
		},
		{
			name:    "empty string",
			content: "",
		},
		{
			name:    "long content",
			content: "This is a much longer piece of content that should still hash consistently",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h1 := HashContent(tt.content)
			h2 := HashContent(tt.content)

			if h1 != h2 {
				t.Errorf("HashContent() produced different hashes for same content: %d vs %d", h1, h2)
			}
		})
	}
}

func TestHashContent_Different(t *testing.T) {
	h1 := HashContent("content1")
	h2 := HashContent("content2")

	if h1 == h2 {
		t.Errorf("HashContent() produced same hash for different content")
	}
}

func TestHasCluster(t *testing.T) {
	conv := &Conversation{ClusterId: ClusterUnassigned}
	if conv.HasCluster() {
		t.Error("HasCluster() = true for an unassigned conversation")
	}

	conv.ClusterId = 0
	if !conv.HasCluster() {
		t.Error("HasCluster() = false for cluster 0")
	}
}
