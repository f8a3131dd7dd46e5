package models

import (
	"errors"
	"testing"
)

func TestIdentityCheck(t *testing.T) {
	stored := Identity{Provider: "openai", Model: "text-embedding-3-small", Dimension: 1536}

	tests := []struct {
		name    string
		got     Identity
		wantErr bool
	}{
		{"same", stored, false},
		{"dimension unknown", Identity{Provider: "openai", Model: "text-embedding-3-small"}, false},
		{"other provider", Identity{Provider: "google", Model: "embedding-001", Dimension: 768}, true},
		{"other model", Identity{Provider: "openai", Model: "text-embedding-3-large", Dimension: 1536}, true},
		{"other dimension", Identity{Provider: "openai", Model: "text-embedding-3-small", Dimension: 512}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := stored.Check(tt.got)
			if tt.wantErr {
				if !errors.Is(err, ErrIdentityMismatch) {
					t.Errorf("expected ErrIdentityMismatch, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestIdentityMetadataRoundTrip(t *testing.T) {
	id := Identity{Provider: "google", Model: "embedding-001", Dimension: 768}

	got, ok := IdentityFromMetadata(id.Metadata())
	if !ok {
		t.Fatal("expected identity in metadata")
	}
	if got != id {
		t.Errorf("got %+v, want %+v", got, id)
	}

	if _, ok := IdentityFromMetadata(map[string]string{"foo": "bar"}); ok {
		t.Error("expected no identity for foreign metadata")
	}
}
