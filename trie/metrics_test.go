package trie

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Electron-Labs/eth-trie-go/store"
)

func TestMetricsObserveCommit(t *testing.T) {
	m := NewMetrics(nil, "eth_trie_test")
	s := store.NewMemory()
	tr := New(s)
	tr.SetMetrics(m)

	if err := tr.Insert([]byte("test1-key"), []byte("really-long-value1-to-prevent-inlining")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := tr.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if got := testutil.ToFloat64(m.nodesWritten); got == 0 {
		t.Fatalf("expected nodesWritten to be incremented, got %v", got)
	}
	if got := testutil.ToFloat64(m.bytesFlushed); got == 0 {
		t.Fatalf("expected bytesFlushed to be incremented, got %v", got)
	}
}

func TestMetricsUnattachedCommitDoesNotPanic(t *testing.T) {
	tr := New(store.NewMemory())
	if err := tr.Insert([]byte("test"), []byte("test")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := tr.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}
