// Package treedata implements the tree-structured-value representation and
// path arithmetic that the synchronization core consumes: spec.md calls
// this an external "Data model" collaborator, but since nothing else in
// this retrieval pack supplies it, this package is the concrete
// implementation the rest of the module is written against.
package treedata

import "sort"

// TSD (TreeStructuredData) is an immutable recursive value: either a leaf
// holding (value, priority), or a set of named children plus an optional
// priority. A nil *TSD denotes absence, per spec.md §3. Leaf value and
// children are mutually exclusive after normalization — constructing
// functions enforce this, so no exported operation can produce a node with
// both.
type TSD struct {
	leaf     bool
	value    any
	children map[Name]*TSD
	priority *TSD
}

// Leaf builds a leaf TSD with the given scalar value and optional priority.
func Leaf(value any, priority *TSD) *TSD {
	return &TSD{leaf: true, value: value, priority: priority}
}

// Children builds a non-leaf TSD from a child map and optional priority.
// Nil-valued children are dropped. A result with no children and no
// priority normalizes to nil (absent).
func Children(children map[Name]*TSD, priority *TSD) *TSD {
	out := make(map[Name]*TSD, len(children))
	for k, v := range children {
		if v != nil {
			out[k] = v
		}
	}
	if len(out) == 0 && priority == nil {
		return nil
	}
	return &TSD{children: out, priority: priority}
}

// IsLeaf reports whether t holds a scalar value.
func (t *TSD) IsLeaf() bool {
	return t != nil && t.leaf
}

// Value returns t's scalar value. It is only meaningful when IsLeaf is true.
func (t *TSD) Value() any {
	if t == nil {
		return nil
	}
	return t.value
}

// Priority returns t's priority, or nil if none is set.
func (t *TSD) Priority() *TSD {
	if t == nil {
		return nil
	}
	return t.priority
}

// WithPriority returns a copy of t with its priority replaced.
func (t *TSD) WithPriority(p *TSD) *TSD {
	if t == nil {
		if p == nil {
			return nil
		}
		return &TSD{children: map[Name]*TSD{}, priority: p}
	}
	if t.leaf {
		return Leaf(t.value, p)
	}
	return Children(t.children, p)
}

// NumChildren returns the number of children of t (0 for leaves and nil).
func (t *TSD) NumChildren() int {
	if t == nil || t.leaf {
		return 0
	}
	return len(t.children)
}

// Child returns the child named n, or nil if absent or t is a leaf/nil.
func (t *TSD) Child(n Name) *TSD {
	if t == nil || t.leaf {
		return nil
	}
	return t.children[n]
}

// SortedChildNames returns t's child names in the total order defined by
// CompareNames.
func (t *TSD) SortedChildNames() []Name {
	if t == nil || t.leaf {
		return nil
	}
	names := make([]Name, 0, len(t.children))
	for n := range t.children {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return CompareNames(names[i], names[j]) < 0 })
	return names
}

// SetChild returns a copy of t with the named child replaced by value (nil
// deletes it). Setting a child under a leaf-valued node implicitly clears
// the leaf value, per spec.md §3's mutual-exclusion invariant. If the
// result has no children and no priority, nil is returned.
func (t *TSD) SetChild(n Name, value *TSD) *TSD {
	children := map[Name]*TSD{}
	var priority *TSD
	if t != nil && !t.leaf {
		for k, v := range t.children {
			children[k] = v
		}
		priority = t.priority
	} else if t != nil && t.leaf {
		priority = t.priority
	}
	if value == nil {
		delete(children, n)
	} else {
		children[n] = value
	}
	return Children(children, priority)
}

// Equal reports deep structural equality between a and b.
func Equal(a, b *TSD) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if !priorityEqual(a.priority, b.priority) {
		return false
	}
	if a.leaf != b.leaf {
		return false
	}
	if a.leaf {
		return a.value == b.value
	}
	if len(a.children) != len(b.children) {
		return false
	}
	for k, av := range a.children {
		if !Equal(av, b.children[k]) {
			return false
		}
	}
	return true
}

func priorityEqual(a, b *TSD) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Equal(a, b)
}

// Clone returns a deep, independent copy of t (TSD is normally treated as
// immutable, but callers building up a node from mutable intermediate
// state may want a defensive copy before publishing it).
func Clone(t *TSD) *TSD {
	if t == nil {
		return nil
	}
	if t.leaf {
		return Leaf(t.value, Clone(t.priority))
	}
	children := make(map[Name]*TSD, len(t.children))
	for k, v := range t.children {
		children[k] = Clone(v)
	}
	return Children(children, Clone(t.priority))
}

// GetAtPath walks path from root and returns the TSD found there, or nil.
func GetAtPath(root *TSD, path Path) *TSD {
	cur := root
	segs := path.Segments()
	for _, s := range segs {
		if cur == nil {
			return nil
		}
		cur = cur.Child(s)
	}
	return cur
}

// SetAtPath returns a copy of root with the subtree at path replaced
// wholesale by value (spec.md §4.4's "overwrite" resolution rule).
func SetAtPath(root *TSD, path Path, value *TSD) *TSD {
	head, rest, ok := path.Front()
	if !ok {
		return value
	}
	child := SetAtPath(root.Child(head), rest, value)
	return root.SetChild(head, child)
}

// MergeAtPath overwrites each named child of the node at path (spec.md
// §4.4's "merge" resolution rule), leaving children not mentioned in
// `children` untouched, and returns the updated root.
func MergeAtPath(root *TSD, path Path, children map[Name]*TSD) *TSD {
	node := GetAtPath(root, path)
	for name, value := range children {
		node = node.SetChild(name, value)
	}
	return SetAtPath(root, path, node)
}
