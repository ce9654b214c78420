package wire

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewStampFormat(t *testing.T) {
	s := NewStamp()
	parsed, err := uuid.Parse(s)
	if err != nil {
		t.Fatalf("uuid.Parse(%q) error = %v", s, err)
	}
	if parsed.Version() != 4 {
		t.Errorf("stamp version = %d, want 4", parsed.Version())
	}
}

func TestNewStampUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		s := NewStamp()
		if seen[s] {
			t.Fatalf("duplicate stamp %q", s)
		}
		seen[s] = true
	}
}
