package treedata

import (
	"net/url"
	"strings"
)

// Path is a finite ordered sequence of Names. The zero value is the empty
// (root) path.
type Path struct {
	segs []Name
}

// NewPath builds a Path from segments.
func NewPath(segs ...Name) Path {
	out := make([]Name, len(segs))
	copy(out, segs)
	return Path{segs: out}
}

// ParsePath parses the slash-separated, URI-component-encoded wire form
// described in spec.md §6: the empty string is the root path, each
// "/"-separated segment is percent-decoded independently.
func ParsePath(s string) (Path, error) {
	s = strings.Trim(s, "/")
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, "/")
	segs := make([]Name, 0, len(parts))
	for _, p := range parts {
		decoded, err := url.PathUnescape(p)
		if err != nil {
			return Path{}, err
		}
		segs = append(segs, Name(decoded))
	}
	return Path{segs: segs}, nil
}

// String renders the wire form of p (segments percent-encoded and
// slash-joined; "" for the root).
func (p Path) String() string {
	if len(p.segs) == 0 {
		return ""
	}
	parts := make([]string, len(p.segs))
	for i, s := range p.segs {
		parts[i] = url.PathEscape(string(s))
	}
	return strings.Join(parts, "/")
}

// IsRoot reports whether p is the empty path.
func (p Path) IsRoot() bool { return len(p.segs) == 0 }

// Len returns the number of segments in p.
func (p Path) Len() int { return len(p.segs) }

// Segments returns a copy of p's segments.
func (p Path) Segments() []Name {
	out := make([]Name, len(p.segs))
	copy(out, p.segs)
	return out
}

// Child returns the path obtained by appending n to p.
func (p Path) Child(n Name) Path {
	out := make([]Name, len(p.segs)+1)
	copy(out, p.segs)
	out[len(p.segs)] = n
	return Path{segs: out}
}

// Append returns the path obtained by appending other's segments to p.
func (p Path) Append(other Path) Path {
	out := make([]Name, 0, len(p.segs)+len(other.segs))
	out = append(out, p.segs...)
	out = append(out, other.segs...)
	return Path{segs: out}
}

// Front returns the first segment of p and the remaining path, or false if
// p is the root path.
func (p Path) Front() (Name, Path, bool) {
	if len(p.segs) == 0 {
		return "", Path{}, false
	}
	return p.segs[0], Path{segs: p.segs[1:]}, true
}

// Parent returns p with its last segment removed, or false if p is root.
func (p Path) Parent() (Path, bool) {
	if len(p.segs) == 0 {
		return Path{}, false
	}
	return Path{segs: p.segs[:len(p.segs)-1]}, true
}

// Last returns the final segment of p, or false if p is root.
func (p Path) Last() (Name, bool) {
	if len(p.segs) == 0 {
		return "", false
	}
	return p.segs[len(p.segs)-1], true
}

// Equal reports whether p and other denote the same path.
func (p Path) Equal(other Path) bool {
	if len(p.segs) != len(other.segs) {
		return false
	}
	for i := range p.segs {
		if p.segs[i] != other.segs[i] {
			return false
		}
	}
	return true
}

// Contains reports whether other is p itself or a descendant of p.
func (p Path) Contains(other Path) bool {
	if len(other.segs) < len(p.segs) {
		return false
	}
	for i := range p.segs {
		if p.segs[i] != other.segs[i] {
			return false
		}
	}
	return true
}

// RelativeTo returns the suffix of p once the ancestor prefix is removed,
// or false if ancestor does not contain p.
func (p Path) RelativeTo(ancestor Path) (Path, bool) {
	if !ancestor.Contains(p) {
		return Path{}, false
	}
	return Path{segs: p.segs[len(ancestor.segs):]}, true
}
