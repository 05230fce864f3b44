package jobs

import (
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	current := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(3, time.Hour)
	l.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		if !l.Allow("alice") {
			t.Fatalf("submission %d should be allowed", i+1)
		}
	}
	if l.Allow("alice") {
		t.Fatal("fourth submission inside the window should be denied")
	}

	// Denied attempts do not consume quota.
	if l.Allow("alice") {
		t.Fatal("still inside the window")
	}

	current = current.Add(61 * time.Minute)
	if !l.Allow("alice") {
		t.Fatal("window expired, submission should be allowed again")
	}
}

func TestRateLimiterCallersIndependent(t *testing.T) {
	l := NewRateLimiter(1, time.Hour)

	if !l.Allow("alice") {
		t.Fatal("first alice submission should pass")
	}
	if l.Allow("alice") {
		t.Fatal("second alice submission should be denied")
	}
	if !l.Allow("bob") {
		t.Fatal("bob has a separate quota")
	}
}
