package store

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]State{
		{StateReadyForDeposit, StateSubmitted},
		{StateDepositionFailed, StateSubmitted},
		{StateSubmitted, StateDepositionSucceeded},
		{StateDepositionVerificationFailed, StateDepositionVerificationFailed},
		{StateDOIsAlreadyPresent, StateReadyForDeposit},
	}
	for _, pair := range allowed {
		if !CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s allowed", pair[0], pair[1])
		}
	}
	denied := [][2]State{
		{StateDepositionSucceeded, StateDepositionFailed},
		{StateNoReview, StateReadyForDeposit},
		{StateReadyForDeposit, StateDepositionSucceeded},
		{StateSubmitted, StateReadyForDeposit},
	}
	for _, pair := range denied {
		if CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s denied", pair[0], pair[1])
		}
	}
}

func TestTimeFormatSortsAsText(t *testing.T) {
	a := formatTime(time.Date(2022, 3, 1, 9, 0, 0, 0, time.UTC))
	b := formatTime(time.Date(2022, 3, 1, 9, 0, 0, 5, time.UTC))
	if !(a < b) || len(a) != len(b) {
		t.Fatalf("expected fixed-width ordering: %q %q", a, b)
	}
	if got := parseTime(b); !got.Equal(time.Date(2022, 3, 1, 9, 0, 0, 5, time.UTC)) {
		t.Fatalf("round trip failed: %v", got)
	}
}

func TestRangeContains(t *testing.T) {
	r := Range{From: time.Date(2022, 4, 2, 0, 0, 0, 0, time.UTC), Until: time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC)}
	if r.Contains(time.Date(2022, 4, 1, 23, 0, 0, 0, time.UTC)) || !r.Contains(r.From) || r.Contains(r.Until) {
		t.Fatal("unexpected range membership")
	}
}
