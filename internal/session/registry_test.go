package session

import "testing"

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()

	a := r.Register("/ws/playlists", "vsnctl", "127.0.0.1")
	b := r.Register("/ws/playlists/p1/songs", "vsnctl", "127.0.0.1")
	r.Register("/ws/playlists", "browser", "10.0.0.2")

	if r.Count() != 3 {
		t.Fatalf("Expected 3 subscribers, got %d", r.Count())
	}
	if got := r.CountByStream()["/ws/playlists"]; got != 2 {
		t.Errorf("Expected 2 playlist subscribers, got %d", got)
	}

	r.Touch(a)
	r.Touch(a)
	sub, ok := r.Get(a)
	if !ok {
		t.Fatal("Expected subscriber to exist")
	}
	if sub.Frames != 2 {
		t.Errorf("Expected 2 frames, got %d", sub.Frames)
	}
	if sub.LastActivity.Before(sub.ConnectedAt) {
		t.Error("Expected last activity to advance")
	}

	r.Remove(b)
	if _, ok := r.Get(b); ok {
		t.Error("Expected subscriber to be removed")
	}
	if r.Count() != 2 {
		t.Errorf("Expected 2 subscribers, got %d", r.Count())
	}

	// Unknown IDs are ignored
	r.Touch("missing")
	r.Remove("missing")
}
