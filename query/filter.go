// Package query implements the QueryFilter total order and windowing
// predicate described in spec.md §3 and §4.1.
package query

import (
	"fmt"

	"github.com/treesync/synccore/treedata"
)

// Special orderBy values. Any other string names a child key to order by.
const (
	OrderByPriority = ".priority"
	OrderByKey      = ".key"
	OrderByValue    = ".value"
)

// Filter is a bounded, ordered window over a node's children. The zero
// value is the "unfiltered" query: orderBy defaults to OrderByKey-like
// natural ordering with no bounds or limit, matching the "absent filter
// (null)" used for internal reads and convenience listeners (spec.md §3).
type Filter struct {
	OrderBy string

	HasStart   bool
	StartName  treedata.Name
	StartValue *treedata.TSD // nil for OrderByKey; see Validate

	HasEnd   bool
	EndName  treedata.Name
	EndValue *treedata.TSD

	Limit   int // 0 means unlimited
	Reverse bool
}

// IsDefault reports whether f is the unbounded, unordered-by-anything
// default query (no start/end/limit and orderBy unset or OrderByKey).
func (f Filter) IsDefault() bool {
	return !f.HasStart && !f.HasEnd && f.Limit == 0 && (f.OrderBy == "" || f.OrderBy == OrderByKey)
}

// Validate enforces spec.md §4.1's edge case: when orderBy is ".key", bounds
// must be expressed by name only (a non-nil value side is a programming
// error, per spec.md §7).
func (f Filter) Validate() error {
	if f.OrderBy == OrderByKey {
		if f.HasStart && f.StartValue != nil {
			return fmt.Errorf("query: startAt value is forbidden when orderBy is %q", OrderByKey)
		}
		if f.HasEnd && f.EndValue != nil {
			return fmt.Errorf("query: endAt value is forbidden when orderBy is %q", OrderByKey)
		}
	}
	if f.Limit < 0 {
		return fmt.Errorf("query: negative limit %d", f.Limit)
	}
	return nil
}

// entry is one (name, projected-value) pair under a filter.
type entry struct {
	name  treedata.Name
	value *treedata.TSD
}

// Extract projects one child of node into its (name, projectedValue) pair
// per spec.md §3's definition of extract(name, tsd).
func (f Filter) Extract(name treedata.Name, node *treedata.TSD) entry {
	switch f.orderByOrDefault() {
	case OrderByValue:
		return entry{name: name, value: node}
	case OrderByKey:
		return entry{name: name, value: nil}
	case OrderByPriority:
		return entry{name: name, value: node.Priority()}
	default:
		return entry{name: name, value: node.Child(treedata.Name(f.OrderBy))}
	}
}

func (f Filter) orderByOrDefault() string {
	if f.OrderBy == "" {
		return OrderByKey
	}
	return f.OrderBy
}

// compareValue totally orders projected values: nil sorts before any
// non-nil value.
func compareValue(a, b *treedata.TSD) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return compareTSD(a, b)
	}
}

// compareTSD orders two non-nil projected TSD values. Leaves compare by
// underlying scalar type/value (numbers before strings before booleans,
// matching the total order RTDB-style clients use); non-leaf values all
// compare equal here, and compare then breaks the tie by name, which keeps
// the order total since sibling names are unique.
func compareTSD(a, b *treedata.TSD) int {
	ra, va := rank(a)
	rb, vb := rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch x := va.(type) {
	case float64:
		y := vb.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case string:
		y := vb.(string)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case bool:
		y := vb.(bool)
		switch {
		case x == y:
			return 0
		case !x && y:
			return -1
		default:
			return 1
		}
	default:
		return 0
	}
}

// rank buckets a TSD's value into RTDB-style ordering classes: numbers,
// then strings, then booleans, then objects (highest).
func rank(t *treedata.TSD) (int, any) {
	if t == nil {
		return -1, nil
	}
	if !t.IsLeaf() {
		return 3, t.NumChildren()
	}
	switch v := t.Value().(type) {
	case float64:
		return 0, v
	case int64:
		return 0, float64(v)
	case int:
		return 0, float64(v)
	case string:
		return 1, v
	case bool:
		return 2, v
	default:
		return 4, fmt.Sprintf("%v", v)
	}
}

// compare implements the filter's total order over entries: compare
// projected values first, then break ties by ascending name.
func (f Filter) compare(a, b entry) int {
	if c := compareValue(a.value, b.value); c != 0 {
		return c
	}
	return treedata.CompareNames(a.name, b.name)
}

// CompareChildren orders two named children of the same parent under f.
func (f Filter) CompareChildren(aName treedata.Name, aNode *treedata.TSD, bName treedata.Name, bNode *treedata.TSD) int {
	return f.compare(f.Extract(aName, aNode), f.Extract(bName, bNode))
}

// Key returns a canonical, comparable identity for f suitable for use as a
// map key (SyncPoint's Filter→View map, the tag table's bijection). Two
// Filters describing the same query produce the same Key even if built
// from distinct *treedata.TSD bound values, which plain struct equality on
// Filter would not guarantee (bound pointers need not be identical).
func (f Filter) Key() string {
	return fmt.Sprintf("ob=%s|hs=%v|sn=%s|sv=%v|he=%v|en=%s|ev=%v|lim=%d|rev=%v",
		f.orderByOrDefault(), f.HasStart, f.StartName, renderBound(f.StartValue),
		f.HasEnd, f.EndName, renderBound(f.EndValue), f.Limit, f.Reverse)
}

func renderBound(t *treedata.TSD) string {
	if t == nil {
		return "<nil>"
	}
	if t.IsLeaf() {
		return fmt.Sprintf("%v", t.Value())
	}
	return fmt.Sprintf("children:%d", t.NumChildren())
}

// IsValid reports whether the named child satisfies f's startAt/endAt
// bounds (windowing by limit is applied separately, by the View).
func (f Filter) IsValid(name treedata.Name, node *treedata.TSD) bool {
	e := f.Extract(name, node)
	if f.HasStart {
		startEntry := entry{name: f.StartName, value: f.StartValue}
		if f.compare(e, startEntry) < 0 {
			return false
		}
	}
	if f.HasEnd {
		endEntry := entry{name: f.EndName, value: f.EndValue}
		if f.compare(e, endEntry) > 0 {
			return false
		}
	}
	return true
}
