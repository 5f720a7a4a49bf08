package gc

import (
	"testing"

	"github.com/dingcuiyu/conzone-go/internal/status"
)

func TestCreditsConsumeGive(t *testing.T) {
	c := NewCredits(2)
	if !c.Consume() || !c.Consume() {
		t.Fatal("expected two consumes to succeed with balance 2")
	}
	if c.Consume() {
		t.Fatal("expected Consume to fail once balance reaches 0")
	}
	if got := c.Balance(); got != 0 {
		t.Fatalf("Balance() = %d, want 0 (failed consume must not change it)", got)
	}
	c.Give()
	if got := c.Balance(); got != 1 {
		t.Fatalf("Balance() after Give = %d, want 1", got)
	}
}

func TestTierCreditsFor(t *testing.T) {
	tc := NewTierCredits(3, 5)
	if got := tc.For(status.PSLC).Balance(); got != 3 {
		t.Fatalf("pslc balance = %d, want 3", got)
	}
	if got := tc.For(status.Normal).Balance(); got != 5 {
		t.Fatalf("normal balance = %d, want 5", got)
	}
}
