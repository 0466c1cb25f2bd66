package sybil

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestAnalyzeBehaviorBelowThreshold(t *testing.T) {
	store := NewMemoryStore()
	engine := testEngine(store)

	ip := "203.0.113.40"
	seedSignup(t, store, "usr_a", ip, time.Now().Add(-10*time.Minute))
	seedSignup(t, store, "usr_b", ip, time.Now().Add(-20*time.Minute))

	// Exactly at the threshold: the penalty requires strictly more.
	sig := engine.analyzeBehavior(context.Background(), ip, "")
	if sig.Score != 0 {
		t.Errorf("expected 0 at threshold, got %d", sig.Score)
	}
}

func TestAnalyzeBehaviorRapidSignups(t *testing.T) {
	store := NewMemoryStore()
	engine := testEngine(store)

	ip := "203.0.113.41"
	for i := 0; i < 3; i++ {
		seedSignup(t, store, fmt.Sprintf("usr_%d", i), ip, time.Now().Add(-15*time.Minute))
	}

	sig := engine.analyzeBehavior(context.Background(), ip, "")
	if sig.Score != 25 {
		t.Errorf("expected 25 above threshold, got %d (reasons: %v)", sig.Score, sig.Reasons)
	}
}

func TestAnalyzeBehaviorIgnoresOldSignups(t *testing.T) {
	store := NewMemoryStore()
	engine := testEngine(store)

	ip := "203.0.113.42"
	for i := 0; i < 5; i++ {
		seedSignup(t, store, fmt.Sprintf("usr_%d", i), ip, time.Now().Add(-2*time.Hour))
	}

	sig := engine.analyzeBehavior(context.Background(), ip, "")
	if sig.Score != 0 {
		t.Errorf("signups outside the window should score 0, got %d", sig.Score)
	}
}

func TestAnalyzeBehaviorIgnoresOtherEvents(t *testing.T) {
	store := NewMemoryStore()
	engine := testEngine(store)

	ip := "203.0.113.43"
	for i := 0; i < 5; i++ {
		err := store.AppendActivity(context.Background(), &ActivityEvent{
			ID:        fmt.Sprintf("act_%d", i),
			UserID:    fmt.Sprintf("usr_%d", i),
			EventType: EventLogin,
			IPAddress: ip,
			CreatedAt: time.Now().Add(-5 * time.Minute),
		})
		if err != nil {
			t.Fatalf("seed login: %v", err)
		}
	}

	sig := engine.analyzeBehavior(context.Background(), ip, "")
	if sig.Score != 0 {
		t.Errorf("logins must not count toward signup velocity, got %d", sig.Score)
	}
}

func TestAnalyzeBehaviorDegraded(t *testing.T) {
	engine := testEngine(&failingStore{NewMemoryStore()})

	sig := engine.analyzeBehavior(context.Background(), "203.0.113.44", "")
	if !sig.Degraded {
		t.Fatal("expected degraded signal")
	}
}
