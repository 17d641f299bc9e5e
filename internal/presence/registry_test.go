package presence

import (
	"sort"
	"testing"
)

func TestConnectAndIsOnline(t *testing.T) {
	r := NewMemoryRegistry()

	if r.IsOnline("alice") {
		t.Error("alice online before connect")
	}

	r.Connect("alice", "conn-1")
	if !r.IsOnline("alice") {
		t.Error("alice offline after connect")
	}
	if connID, ok := r.Handle("alice"); !ok || connID != "conn-1" {
		t.Errorf("Handle = %q, %v", connID, ok)
	}
}

func TestLatestConnectionWins(t *testing.T) {
	r := NewMemoryRegistry()

	r.Connect("alice", "conn-1")
	r.Connect("alice", "conn-2")

	connID, ok := r.Handle("alice")
	if !ok || connID != "conn-2" {
		t.Errorf("Handle = %q, want conn-2", connID)
	}

	// The stale connection disconnecting must not clear the new entry.
	r.Disconnect("alice", "conn-1")
	if !r.IsOnline("alice") {
		t.Error("stale disconnect removed newer connection")
	}

	r.Disconnect("alice", "conn-2")
	if r.IsOnline("alice") {
		t.Error("alice still online after disconnect")
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	r := NewMemoryRegistry()

	r.Connect("alice", "conn-1")
	r.Disconnect("alice", "conn-1")
	r.Disconnect("alice", "conn-1")

	if r.IsOnline("alice") {
		t.Error("alice online after double disconnect")
	}
}

func TestSnapshot(t *testing.T) {
	r := NewMemoryRegistry()

	r.Connect("alice", "c1")
	r.Connect("bob", "c2")
	r.Connect("carol", "c3")
	r.Disconnect("bob", "c2")

	got := r.Snapshot()
	sort.Strings(got)
	want := []string{"alice", "carol"}
	if len(got) != len(want) {
		t.Fatalf("Snapshot = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Snapshot = %v, want %v", got, want)
		}
	}
}
