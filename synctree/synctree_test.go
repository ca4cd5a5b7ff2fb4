package synctree

import (
	"testing"

	"github.com/treesync/synccore/internal/mclock"
	"github.com/treesync/synccore/query"
	"github.com/treesync/synccore/sched"
	"github.com/treesync/synccore/treedata"
)

func newTestTree(t *testing.T) (*SyncTree, *sched.Scheduler) {
	t.Helper()
	s := sched.New(mclock.System{})
	return New(s), s
}

func drain(t *testing.T, s *sched.Scheduler) {
	t.Helper()
	s.Do(func() {}) // a round-trip Do forces all previously Post-ed work to have run first
}

// S1 Listen then local set (spec.md §8).
func TestListenThenLocalSet(t *testing.T) {
	tree, s := newTestTree(t)
	path, _ := treedata.ParsePath("a")

	var last *treedata.TSD
	sub, wasFirst := tree.AddListener(path, query.Filter{}, EventValue, func(ev Event) {
		last = ev.Snapshot
	})
	if !wasFirst {
		t.Fatal("expected first listener on a fresh view")
	}
	drain(t, s)

	tree.ApplyServerOverwrite(path, nil, treedata.Children(map[treedata.Name]*treedata.TSD{
		"x": treedata.Leaf(int64(1), nil),
	}, nil))
	if last == nil || last.Child("x").Value() != int64(1) {
		t.Fatalf("expected {x:1} after server overwrite, got %v", last)
	}

	xPath, _ := treedata.ParsePath("a/x")
	tree.ApplyUserOverwrite(xPath, treedata.Leaf(int64(2), nil), 0, true)
	if last.Child("x").Value() != int64(2) {
		t.Fatalf("expected {x:2} after local set, got %v", last)
	}

	tree.ApplyAck(xPath, 0, false)
	if last.Child("x").Value() != int64(1) {
		t.Fatalf("expected {x:1} after failed ack reverts local write, got %v", last)
	}

	if nowEmpty := sub.Unsubscribe(); !nowEmpty {
		t.Fatal("expected the view to be empty after removing its only listener")
	}
}

// S6 Child events (spec.md §8).
func TestChildEventsOnMerge(t *testing.T) {
	tree, s := newTestTree(t)
	path, _ := treedata.ParsePath("r")

	var changed, added []treedata.Name
	var gotValue bool
	tree.AddListener(path, query.Filter{}, EventChildChanged, func(ev Event) { changed = append(changed, ev.Name) })
	tree.AddListener(path, query.Filter{}, EventChildAdded, func(ev Event) { added = append(added, ev.Name) })
	tree.AddListener(path, query.Filter{}, EventValue, func(ev Event) { gotValue = true })
	drain(t, s)

	tree.ApplyServerOverwrite(path, nil, treedata.Children(map[treedata.Name]*treedata.TSD{
		"a": treedata.Leaf(int64(1), nil),
		"b": treedata.Leaf(int64(2), nil),
	}, nil))

	// Reset observation state; we only care about the merge's own diff.
	changed = nil
	added = nil
	gotValue = false

	tree.ApplyServerMerge(path, nil, map[treedata.Name]*treedata.TSD{
		"b": treedata.Leaf(int64(3), nil),
		"c": treedata.Leaf(int64(4), nil),
	})

	if len(changed) != 1 || changed[0] != "b" {
		t.Fatalf("expected child_changed(b), got %v", changed)
	}
	if len(added) != 1 || added[0] != "c" {
		t.Fatalf("expected child_added(c), got %v", added)
	}
	if !gotValue {
		t.Fatal("expected a value event after the merge")
	}
}

func TestWindowedOrderReflectsFilter(t *testing.T) {
	tree, s := newTestTree(t)
	path, _ := treedata.ParsePath("q")
	f := query.Filter{OrderBy: query.OrderByValue, Limit: 2}

	var snapshot *treedata.TSD
	tree.AddListener(path, f, EventValue, func(ev Event) { snapshot = ev.Snapshot })
	drain(t, s)

	tree.ApplyServerOverwrite(path, nil, treedata.Children(map[treedata.Name]*treedata.TSD{
		"a": treedata.Leaf(float64(3), nil),
		"b": treedata.Leaf(float64(1), nil),
		"c": treedata.Leaf(float64(2), nil),
		"d": treedata.Leaf(float64(4), nil),
	}, nil))

	if snapshot.NumChildren() != 2 {
		t.Fatalf("expected exactly 2 windowed children, got %d", snapshot.NumChildren())
	}
	if snapshot.Child("b") == nil || snapshot.Child("c") == nil {
		t.Fatalf("expected window {b,c}, got snapshot with children other than b,c")
	}
}

// A child whose projected value crosses another child's rank under
// orderBy=".value" must emit child_moved (spec.md §4.2), not merely
// child_changed.
func TestChildMovedOnValueReorder(t *testing.T) {
	tree, s := newTestTree(t)
	path, _ := treedata.ParsePath("m")
	f := query.Filter{OrderBy: query.OrderByValue}

	var moved []treedata.Name
	tree.AddListener(path, f, EventChildMoved, func(ev Event) { moved = append(moved, ev.Name) })
	drain(t, s)

	tree.ApplyServerOverwrite(path, nil, treedata.Children(map[treedata.Name]*treedata.TSD{
		"a": treedata.Leaf(float64(1), nil),
		"b": treedata.Leaf(float64(2), nil),
	}, nil))
	drain(t, s)
	moved = nil

	// a rises above b: {a:1,b:2} -> {a:3,b:2}. Both swap rank, so both move.
	aPath, _ := treedata.ParsePath("m/a")
	tree.ApplyServerOverwrite(aPath, nil, treedata.Leaf(float64(3), nil))

	if len(moved) != 2 {
		t.Fatalf("expected child_moved for both a and b swapping rank, got %v", moved)
	}
	gotA, gotB := false, false
	for _, n := range moved {
		switch n {
		case "a":
			gotA = true
		case "b":
			gotB = true
		}
	}
	if !gotA || !gotB {
		t.Fatalf("expected child_moved(a) and child_moved(b), got %v", moved)
	}
}
