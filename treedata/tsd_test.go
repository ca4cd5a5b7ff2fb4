package treedata

import "testing"

func TestNameOrdering(t *testing.T) {
	cases := []struct {
		a, b Name
		want int
	}{
		{"1", "2", -1},
		{"2", "10", -1}, // numeric, not lexicographic
		{"10", "a", -1}, // numeric sorts before non-numeric
		{"a", "10", 1},
		{"a", "b", -1},
		{"01", "1", 1}, // "01" is not canonical, so it is non-numeric and sorts after "1"
	}
	for _, c := range cases {
		if got := CompareNames(c.a, c.b); sign(got) != sign(c.want) {
			t.Errorf("CompareNames(%q,%q) = %d, want sign %d", c.a, c.b, got, c.want)
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func TestSetChildClearsLeaf(t *testing.T) {
	leaf := Leaf("hello", nil)
	withChild := leaf.SetChild("x", Leaf(int64(1), nil))
	if withChild.IsLeaf() {
		t.Fatal("expected leaf value to be cleared once a child is set")
	}
	if withChild.NumChildren() != 1 {
		t.Fatalf("expected 1 child, got %d", withChild.NumChildren())
	}
}

func TestSetAtPathAndGetAtPath(t *testing.T) {
	root := SetAtPath(nil, NewPath("a", "b"), Leaf(int64(42), nil))
	got := GetAtPath(root, NewPath("a", "b"))
	if got.Value() != int64(42) {
		t.Fatalf("got %v, want 42", got.Value())
	}
	if GetAtPath(root, NewPath("a", "c")) != nil {
		t.Fatal("expected absent child to be nil")
	}
}

func TestMergeAtPathPreservesSiblings(t *testing.T) {
	root := SetAtPath(nil, NewPath("r"), Children(map[Name]*TSD{
		"a": Leaf(int64(1), nil),
		"b": Leaf(int64(2), nil),
	}, nil))
	root = MergeAtPath(root, NewPath("r"), map[Name]*TSD{
		"b": Leaf(int64(3), nil),
		"c": Leaf(int64(4), nil),
	})
	node := GetAtPath(root, NewPath("r"))
	if node.Child("a").Value() != int64(1) {
		t.Fatal("merge should preserve untouched siblings")
	}
	if node.Child("b").Value() != int64(3) {
		t.Fatal("merge should overwrite named child")
	}
	if node.Child("c").Value() != int64(4) {
		t.Fatal("merge should add new named child")
	}
}

func TestPathParseAndString(t *testing.T) {
	p, err := ParsePath("/a%2Fb/c/")
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != 2 {
		t.Fatalf("expected 2 segments, got %d", p.Len())
	}
	segs := p.Segments()
	if segs[0] != "a/b" || segs[1] != "c" {
		t.Fatalf("unexpected decode: %v", segs)
	}
}

func TestPathContainsAndRelativeTo(t *testing.T) {
	root := NewPath("a", "b")
	child := NewPath("a", "b", "c")
	if !root.Contains(child) {
		t.Fatal("expected root to contain child")
	}
	rel, ok := child.RelativeTo(root)
	if !ok || rel.Len() != 1 {
		t.Fatalf("unexpected relative path: %+v ok=%v", rel, ok)
	}
}
