package trace

import (
	"math"

	"github.com/paulmach/orb"
)

// quantScale is the endpoint quantization used for merge keys: six decimal
// places.
const quantScale = 1e6

type endpointKey struct {
	x, y int64
}

func keyOf(p orb.Point) endpointKey {
	return endpointKey{
		x: int64(math.Round(p[0] * quantScale)),
		y: int64(math.Round(p[1] * quantScale)),
	}
}

type chain struct {
	pts    []orb.Point
	closed bool
	// absorbed chains were concatenated onto another chain and must not
	// be emitted.
	absorbed bool
}

func (c *chain) startKey() endpointKey { return keyOf(c.pts[0]) }
func (c *chain) endKey() endpointKey   { return keyOf(c.pts[len(c.pts)-1]) }

// reverse flips the chain in place.
func (c *chain) reverse() {
	for i, j := 0, len(c.pts)-1; i < j; i, j = i+1, j-1 {
		c.pts[i], c.pts[j] = c.pts[j], c.pts[i]
	}
}

// merger incrementally assembles maximal polylines from unordered
// segments. Every open chain is indexed by its two quantized endpoints, so
// each added segment either starts a chain, extends one, joins two, or
// closes one.
type merger struct {
	open map[endpointKey]*chain
	all  []*chain
}

func newMerger() *merger {
	return &merger{open: make(map[endpointKey]*chain)}
}

func (m *merger) add(a, b orb.Point) {
	ka, kb := keyOf(a), keyOf(b)
	if ka == kb {
		return
	}

	ca := m.open[ka]
	cb := m.open[kb]

	switch {
	case ca == nil && cb == nil:
		c := &chain{pts: []orb.Point{a, b}}
		m.all = append(m.all, c)
		m.register(c)

	case ca != nil && cb == nil:
		m.unregister(ca)
		ca.extend(ka, b)
		m.register(ca)

	case ca == nil && cb != nil:
		m.unregister(cb)
		cb.extend(kb, a)
		m.register(cb)

	case ca == cb:
		// The segment connects the chain's two ends: the ring closes.
		m.unregister(ca)
		ca.pts = append(ca.pts, ca.pts[0])
		ca.closed = true

	default:
		m.unregister(ca)
		m.unregister(cb)
		// Orient ca to end at ka and cb to start at kb, then
		// concatenate across the segment.
		if ca.endKey() != ka {
			ca.reverse()
		}
		if cb.startKey() != kb {
			cb.reverse()
		}
		ca.pts = append(ca.pts, cb.pts...)
		cb.absorbed = true
		if ca.startKey() == ca.endKey() {
			ca.pts = append(ca.pts, ca.pts[0])
			ca.closed = true
			return
		}
		m.register(ca)
	}
}

// extend grows the chain by one point at the end matching k.
func (c *chain) extend(k endpointKey, p orb.Point) {
	if c.endKey() == k {
		c.pts = append(c.pts, p)
		return
	}
	c.reverse()
	c.pts = append(c.pts, p)
}

func (m *merger) register(c *chain) {
	m.open[c.startKey()] = c
	m.open[c.endKey()] = c
}

func (m *merger) unregister(c *chain) {
	if m.open[c.startKey()] == c {
		delete(m.open, c.startKey())
	}
	if m.open[c.endKey()] == c {
		delete(m.open, c.endKey())
	}
}

// chains returns every assembled polyline, closed rings included.
func (m *merger) chains() []*chain {
	out := make([]*chain, 0, len(m.all))
	for _, c := range m.all {
		if !c.absorbed {
			out = append(out, c)
		}
	}
	return out
}

// mergeSegments assembles unordered segments into maximal polylines.
func mergeSegments(segs []segment) []*chain {
	m := newMerger()
	for _, s := range segs {
		m.add(s.a, s.b)
	}
	return m.chains()
}
