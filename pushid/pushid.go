// Package pushid generates 20-character identifiers whose lexicographic
// order matches their generation order in time (spec.md §4.5), used for
// push() keys and any other place the core needs a naturally-ordered
// client-generated Name.
package pushid

import (
	"crypto/rand"
	"sync"
)

// alphabet is ordered so that '-' < '0' < ... < '9' < 'A' < ... < 'Z' <
// '_' < 'a' < ... < 'z', which is exactly ASCII order for these characters.
const alphabet = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

// Generator produces monotonically ordered push IDs. The zero value is not
// usable; construct with New.
type Generator struct {
	mu         sync.Mutex
	lastMs     int64
	haveLastMs bool
	lastRand   [12]byte // indices into alphabet, most-significant first
	randSource func([]byte) (int, error)
}

// New creates a push-ID generator backed by crypto/rand.
func New() *Generator {
	return &Generator{randSource: rand.Read}
}

// Next returns the next push ID given the current time in milliseconds
// since epoch (callers pass the Connection's serverTime, per spec.md §6).
func (g *Generator) Next(nowMs int64) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.haveLastMs && nowMs == g.lastMs {
		incrementCounter(&g.lastRand)
	} else {
		g.lastMs = nowMs
		g.haveLastMs = true
		var buf [12]byte
		if _, err := g.randSource(buf[:]); err != nil {
			panic("pushid: random source failed: " + err.Error())
		}
		for i, b := range buf {
			g.lastRand[i] = b % 64
		}
	}

	var out [20]byte
	encodeTimestamp(nowMs, out[:8])
	for i, idx := range g.lastRand {
		out[8+i] = alphabet[idx]
	}
	return string(out[:])
}

// encodeTimestamp writes ms into dst (len 8) as base-64 digits over
// alphabet, most-significant digit first.
func encodeTimestamp(ms int64, dst []byte) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = alphabet[ms%64]
		ms /= 64
	}
}

// incrementCounter increments the 12-digit counter as a little-endian
// base-64 number: the rightmost index is the least-significant digit,
// overflow carries toward index 0. Overflowing past index 0 wraps silently
// (spec.md §4.5 does not define behavior beyond "overflow carries toward
// index 0"; wrapping preserves monotonicity for all but the astronomically
// unlikely case of 64^12 pushes within one millisecond).
func incrementCounter(counter *[12]byte) {
	for i := 11; i >= 0; i-- {
		counter[i]++
		if counter[i] < 64 {
			return
		}
		counter[i] = 0
	}
}
