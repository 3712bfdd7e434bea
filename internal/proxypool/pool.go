package proxypool

import (
	"sync/atomic"

	"github.com/cobaltgrove/hakodl/internal/ferr"
)

// Pool is a round-robin, failover-aware collection of validated proxy
// Descriptors (spec §4.B). Safe for concurrent use: Next advances the
// cursor atomically. The network fabric's failover does not call Next; it
// walks All() in pool order.
//
// No teacher file builds anything like this — the pack's proxy usage tops
// out at a single static net/http Transport.Proxy func
// (cmd/nhentai/internal/nhenapi/api.go, cmd/gelbooru/gelbooru.go). The
// round-robin cursor below is original to this package; see DESIGN.md.
type Pool struct {
	entries []Descriptor
	cursor  uint64
}

// New parses each raw proxy URL and returns a Pool, or the first
// *ferr.Error encountered. An empty list fails with KindEmptyPool.
func New(raw []string) (*Pool, error) {
	if len(raw) == 0 {
		return nil, ferr.New(ferr.KindEmptyPool)
	}
	entries := make([]Descriptor, 0, len(raw))
	for _, r := range raw {
		d, err := Parse(r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, d)
	}
	return &Pool{entries: entries}, nil
}

// Size returns the number of proxies in the pool.
func (p *Pool) Size() int { return len(p.entries) }

// GetAt returns the Descriptor at index i (0-based, wrapping is the
// caller's job via Next/Alternative).
func (p *Pool) GetAt(i int) (Descriptor, bool) {
	if i < 0 || i >= len(p.entries) {
		return Descriptor{}, false
	}
	return p.entries[i], true
}

// All returns a copy of every Descriptor in the pool, in original order.
func (p *Pool) All() []Descriptor {
	out := make([]Descriptor, len(p.entries))
	copy(out, p.entries)
	return out
}

// Next returns the Descriptor at the current cursor and advances it,
// wrapping modulo the pool size. Across N·k successive calls each
// Descriptor is returned exactly k times, in fixed order.
func (p *Pool) Next() (Descriptor, error) {
	if len(p.entries) == 0 {
		return Descriptor{}, ferr.New(ferr.KindEmptyPool)
	}
	i := atomic.AddUint64(&p.cursor, 1) - 1
	return p.entries[i%uint64(len(p.entries))], nil
}

// Alternative returns the Descriptor at (i+1) mod n, for failing over from
// the proxy at index i to the next one in the pool. With a single-entry
// pool there is no other proxy to fail over to, so it returns false.
func (p *Pool) Alternative(i int) (Descriptor, bool) {
	n := len(p.entries)
	if n <= 1 {
		return Descriptor{}, false
	}
	j := ((i % n) + n + 1) % n
	return p.entries[j], true
}

// Reset zeroes the round-robin cursor back to the start of the pool.
func (p *Pool) Reset() {
	atomic.StoreUint64(&p.cursor, 0)
}
