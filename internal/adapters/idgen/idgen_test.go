package idgen

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewIDIsUUID(t *testing.T) {
	id := (Generator{}).NewID()
	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Version() != 4 {
		t.Fatalf("expected v4, got %d", parsed.Version())
	}
	if (Generator{}).NewID() == id {
		t.Fatalf("expected distinct ids")
	}
}

func TestShort(t *testing.T) {
	if got := Short(); len(got) != 8 {
		t.Fatalf("expected 8 chars, got %q", got)
	}
}
