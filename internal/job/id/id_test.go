package id

import (
	"regexp"
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	id := Generate()

	if !strings.HasPrefix(id, "clip-") {
		t.Errorf("expected ID to start with 'clip-', got %s", id)
	}

	// Generated IDs name output files, so only file-safe characters are allowed
	if !regexp.MustCompile(`^clip-\d+-[0-9a-f]{8}$`).MatchString(id) {
		t.Errorf("unexpected ID format: %s", id)
	}

	id2 := Generate()
	if id == id2 {
		t.Error("expected different IDs for consecutive calls")
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := Generate()
		if seen[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}
