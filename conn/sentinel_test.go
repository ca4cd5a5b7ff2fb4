package conn

import (
	"testing"

	"github.com/treesync/synccore/treedata"
)

func TestResolveSentinelsReplacesTimestamp(t *testing.T) {
	raw := treedata.Children(map[treedata.Name]*treedata.TSD{
		"createdAt": treedata.Leaf(ServerValueTimestamp{}, nil),
		"name":      treedata.Leaf("alice", nil),
	}, nil)

	resolved := ResolveSentinels(raw, 1234)

	got := resolved.Child("createdAt").Value()
	if got != int64(1234) {
		t.Fatalf("expected resolved timestamp 1234, got %v", got)
	}
	if resolved.Child("name").Value() != "alice" {
		t.Fatal("non-sentinel leaves must pass through unchanged")
	}

	// The original raw tree must be untouched for onDisconnect replay.
	if !IsServerValueTimestamp(raw.Child("createdAt").Value()) {
		t.Fatal("ResolveSentinels must not mutate its input")
	}
}

func TestServerErrorDataStale(t *testing.T) {
	err := &ServerError{Code: CodeDataStale}
	if !IsDataStale(err) {
		t.Fatal("expected IsDataStale to recognize CodeDataStale")
	}
	other := &ServerError{Code: "permission_denied"}
	if IsDataStale(other) {
		t.Fatal("non-stale codes must not be classified as stale")
	}
}
