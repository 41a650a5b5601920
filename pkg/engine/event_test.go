// ABOUTME: Tests for AudioEvent construction
// ABOUTME: Covers ID uniqueness and time validation

package engine

import (
	"testing"
)

func TestNewEventAssignsUniqueIDs(t *testing.T) {
	a, err := NewEvent("note-on", 0, 0, nil)
	if err != nil {
		t.Fatalf("NewEvent failed: %v", err)
	}
	b, err := NewEvent("note-on", 0, 0, nil)
	if err != nil {
		t.Fatalf("NewEvent failed: %v", err)
	}

	if a.ID == "" || b.ID == "" {
		t.Error("expected non-empty IDs")
	}
	if a.ID == b.ID {
		t.Errorf("expected distinct IDs, both %q", a.ID)
	}
}

func TestNewEventRejectsNegativeTime(t *testing.T) {
	if _, err := NewEvent("note-on", -1, 0, nil); err == nil {
		t.Error("expected error for negative time")
	}
}
