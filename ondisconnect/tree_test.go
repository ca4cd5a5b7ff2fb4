package ondisconnect

import (
	"testing"

	"github.com/treesync/synccore/treedata"
)

// Invariant 7 (spec.md §8): forget(p) after remember(p, x) leaves the
// sparse tree equivalent to never remembering p.
func TestForgetUndoesRemember(t *testing.T) {
	tr := New()
	p, _ := treedata.ParsePath("a")
	tr.Remember(p, treedata.Leaf(int64(1), nil))
	emptied := tr.Forget(p)
	if !emptied {
		t.Fatal("expected the tree to be empty after forgetting its only entry")
	}

	var applied bool
	tr.RunOnDisconnectEvents(0, func(treedata.Path, *treedata.TSD) { applied = true }, func(treedata.Path) {})
	if applied {
		t.Fatal("expected no replay after forget undid the only remembered value")
	}
}

// S5 onDisconnect replay (spec.md §8): remember(/a, {x:1}); remember(/a/y,
// 2) -> tree stores /a/x=1, /a/y=2; connection drops -> SyncTree receives
// server overwrites for /a/x and /a/y; sparse tree becomes empty.
func TestRememberReExpansionAndReplay(t *testing.T) {
	tr := New()
	a, _ := treedata.ParsePath("a")
	ay, _ := treedata.ParsePath("a/y")

	tr.Remember(a, treedata.Children(map[treedata.Name]*treedata.TSD{
		"x": treedata.Leaf(int64(1), nil),
	}, nil))
	tr.Remember(ay, treedata.Leaf(int64(2), nil))

	type replay struct {
		path  string
		value any
	}
	var got []replay
	tr.RunOnDisconnectEvents(1000, func(path treedata.Path, v *treedata.TSD) {
		got = append(got, replay{path: path.String(), value: v.Value()})
	}, func(treedata.Path) {})

	want := map[string]any{"a/x": int64(1), "a/y": int64(2)}
	if len(got) != 2 {
		t.Fatalf("expected 2 replayed overwrites, got %d: %+v", len(got), got)
	}
	for _, r := range got {
		if want[r.path] != r.value {
			t.Fatalf("unexpected replay %+v, want %v", r, want)
		}
	}
}

// The re-expansion invariant: remember(p/a, y) after remember(p, x)
// preserves the effect of x at p's other children.
func TestReExpansionPreservesSiblings(t *testing.T) {
	tr := New()
	p, _ := treedata.ParsePath("p")
	pa, _ := treedata.ParsePath("p/a")

	tr.Remember(p, treedata.Children(map[treedata.Name]*treedata.TSD{
		"a": treedata.Leaf(int64(1), nil),
		"b": treedata.Leaf(int64(2), nil),
	}, nil))
	tr.Remember(pa, treedata.Leaf(int64(99), nil))

	replayed := map[string]any{}
	tr.RunOnDisconnectEvents(0, func(path treedata.Path, v *treedata.TSD) {
		replayed[path.String()] = v.Value()
	}, func(treedata.Path) {})

	if replayed["p/a"] != int64(99) {
		t.Fatalf("expected p/a to carry the newer value 99, got %v", replayed["p/a"])
	}
	if replayed["p/b"] != int64(2) {
		t.Fatalf("expected p/b to retain its original value 2, got %v", replayed["p/b"])
	}
}
