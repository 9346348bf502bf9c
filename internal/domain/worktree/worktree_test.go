package worktree

import (
	"strings"
	"testing"
)

func TestValidName(t *testing.T) {
	valid := []string{"feature-x", "fix_123", "a.b-c", "A1"}
	for _, name := range valid {
		if !ValidName(name) {
			t.Errorf("expected %q to be valid", name)
		}
	}

	invalid := []string{"", "has space", "slash/es", "semi;colon"}
	for _, name := range invalid {
		if ValidName(name) {
			t.Errorf("expected %q to be invalid", name)
		}
	}
	if ValidName(strings.Repeat("a", 41)) {
		t.Error("expected a 41-char name to be invalid")
	}
}

func TestBranch(t *testing.T) {
	if got := Branch("feature-x"); got != "wt/feature-x" {
		t.Fatalf("expected wt/feature-x, got %q", got)
	}
}
