package treedata

import "github.com/holiman/uint256"

// Name is an opaque child key. It is totally ordered: a key that parses as
// a non-negative integer sorts before any key that doesn't, and among
// integer keys the comparison is numeric rather than lexicographic.
type Name string

// asInteger reports whether n is the canonical decimal form of a
// non-negative integer (no leading zeros other than "0" itself, no sign),
// returning its value when it is. Names are arbitrary client-chosen
// strings, so a push key or user-supplied numeric-looking key can exceed
// int64's range; uint256.Int parses and compares the full decimal range
// push IDs and large counters can reach without silently overflowing.
func (n Name) asInteger() (*uint256.Int, bool) {
	if n == "" {
		return nil, false
	}
	if n[0] == '0' && n != "0" {
		return nil, false // leading zero disqualifies numeric ordering
	}
	for _, c := range n {
		if c < '0' || c > '9' {
			return nil, false
		}
	}
	v, err := uint256.FromDecimal(string(n))
	if err != nil {
		return nil, false
	}
	return v, true
}

// CompareNames implements the total order over Names described in
// spec.md §3: numeric-looking keys sort before non-numeric ones, and
// compare numerically among themselves; otherwise names compare as plain
// strings.
func CompareNames(a, b Name) int {
	av, aok := a.asInteger()
	bv, bok := b.asInteger()
	switch {
	case aok && bok:
		return av.Cmp(bv)
	case aok && !bok:
		return -1
	case !aok && bok:
		return 1
	default:
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
}
