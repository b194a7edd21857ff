package testsupport

import (
	"context"
	"testing"
	"time"

	"mecadoi/internal/config"
	"mecadoi/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewRecord inserts a parse-time record for tests.
func NewRecord(t testing.TB, st *store.Store, id string, state store.State, receivedAt time.Time) *store.Record {
	t.Helper()

	rec, err := st.UpsertRecord(context.Background(), store.Record{
		ID:          id,
		Path:        "/archives/" + id + ".zip",
		PreprintDOI: "10.1101/" + id,
		Title:       "Title of " + id,
		ReceivedAt:  receivedAt,
		State:       state,
	})
	if err != nil {
		t.Fatalf("store.UpsertRecord: %v", err)
	}
	return rec
}

// Advance walks a record through the given states with plain transitions,
// failing the test when one is rejected.
func Advance(t testing.TB, st *store.Store, id string, states ...store.State) *store.Record {
	t.Helper()

	ctx := context.Background()
	for _, to := range states {
		rec, err := st.Get(ctx, id)
		if err != nil {
			t.Fatalf("store.Get(%s): %v", id, err)
		}
		if err := st.Transition(ctx, store.TransitionRequest{
			ArchiveID: id,
			From:      rec.State,
			To:        to,
			Attempt:   store.Attempt{RunID: "test", Outcome: store.OutcomeGenerated},
		}); err != nil {
			t.Fatalf("store.Transition(%s -> %s): %v", rec.State, to, err)
		}
	}
	rec, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("store.Get(%s): %v", id, err)
	}
	return rec
}
