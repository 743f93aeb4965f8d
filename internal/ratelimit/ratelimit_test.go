package ratelimit

import "testing"

func TestBudget_Exhaustion(t *testing.T) {
	b := NewBudget(2)

	for i := 0; i < 2; i++ {
		if !b.Allow() {
			t.Fatalf("expected budget available at use %d", i)
		}
		if err := b.Use(); err != nil {
			t.Fatalf("unexpected error at use %d: %v", i, err)
		}
	}

	if b.Allow() {
		t.Errorf("expected budget exhausted")
	}
	if err := b.Use(); err == nil {
		t.Errorf("expected error past the budget")
	}

	used, max, _ := b.Stats()
	if used != 2 || max != 2 {
		t.Errorf("stats = %d/%d, want 2/2", used, max)
	}
}

func TestBudget_ZeroMeansUnlimited(t *testing.T) {
	b := NewBudget(0)
	for i := 0; i < 100; i++ {
		if err := b.Use(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if !b.Allow() {
		t.Errorf("unlimited budget must always allow")
	}
}
