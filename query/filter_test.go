package query

import (
	"testing"

	"github.com/treesync/synccore/treedata"
)

func childrenNode() *treedata.TSD {
	return treedata.Children(map[treedata.Name]*treedata.TSD{
		"a": treedata.Leaf(float64(3), nil),
		"b": treedata.Leaf(float64(1), nil),
		"c": treedata.Leaf(float64(2), nil),
		"d": treedata.Leaf(float64(4), nil),
	}, nil)
}

// S2 Filter window: orderBy=".value", limit=2 on {a:3,b:1,c:2,d:4} -> {b,c}.
func TestWindowAscendingByValue(t *testing.T) {
	node := childrenNode()
	f := Filter{OrderBy: OrderByValue, Limit: 2}
	got := f.Window(node)
	want := []treedata.Name{"b", "c"}
	assertNames(t, got, want)
}

// With reverse=true the window keeps the highest-ranked 2 entries by value
// (a:3, d:4), not the lowest — "retain the last limit entries in [ascending]
// sort order" (spec.md §4.1). See DESIGN.md for the Open Question this
// resolves versus spec.md §8's S2 example, which appears to state the
// wrong membership for this case.
func TestWindowReverseByValue(t *testing.T) {
	node := childrenNode()
	f := Filter{OrderBy: OrderByValue, Limit: 2, Reverse: true}
	got := f.Window(node)
	want := []treedata.Name{"a", "d"}
	assertNames(t, got, want)
}

func assertNames(t *testing.T, got, want []treedata.Name) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestCompareTotalOrder(t *testing.T) {
	node := childrenNode()
	f := Filter{OrderBy: OrderByValue}
	a := f.Extract("a", node.Child("a"))
	b := f.Extract("b", node.Child("b"))
	if f.compare(a, b)+f.compare(b, a) != 0 {
		t.Fatal("compare must be antisymmetric")
	}
}

func TestKeyOrderForbidsValueBounds(t *testing.T) {
	f := Filter{OrderBy: OrderByKey, HasStart: true, StartValue: treedata.Leaf(int64(1), nil)}
	if err := f.Validate(); err == nil {
		t.Fatal("expected validation error for value bound under .key ordering")
	}
}

func TestIsValidBounds(t *testing.T) {
	node := childrenNode()
	f := Filter{
		OrderBy: OrderByValue,
		HasStart: true, StartName: "b", StartValue: treedata.Leaf(float64(1), nil),
		HasEnd: true, EndName: "c", EndValue: treedata.Leaf(float64(2), nil),
	}
	if !f.IsValid("b", node.Child("b")) {
		t.Fatal("expected b to satisfy bounds")
	}
	if !f.IsValid("c", node.Child("c")) {
		t.Fatal("expected c to satisfy bounds")
	}
	if f.IsValid("a", node.Child("a")) {
		t.Fatal("expected a (value 3) to fail the end bound")
	}
}

func TestFilterKeyStability(t *testing.T) {
	f1 := Filter{OrderBy: OrderByValue, HasStart: true, StartName: "x", StartValue: treedata.Leaf(int64(5), nil)}
	f2 := Filter{OrderBy: OrderByValue, HasStart: true, StartName: "x", StartValue: treedata.Leaf(int64(5), nil)}
	if f1.Key() != f2.Key() {
		t.Fatal("two filters with equal contents but distinct bound pointers must share a Key")
	}
}

func TestWireQueryRoundTrip(t *testing.T) {
	f := Filter{OrderBy: OrderByValue, HasStart: true, StartName: "x", StartValue: treedata.Leaf(float64(5), nil), Limit: 3, Reverse: true}
	back := FromWireQuery(f.ToWireQuery())
	if back.Key() != f.Key() {
		t.Fatalf("wire round-trip changed filter identity: %s vs %s", back.Key(), f.Key())
	}
}
