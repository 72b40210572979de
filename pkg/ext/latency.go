package ext

import (
	"math"

	"github.com/justyntemme/claphost/pkg/clap"
)

// Latency wraps the latency extension.
type Latency struct {
	raw   *clap.PluginLatency
	guard *Guard
}

// NewLatency negotiates the latency extension.
func NewLatency(n *Negotiator) (*Latency, bool) {
	h, ok := n.Negotiate(clap.ExtLatency)
	if !ok {
		return nil, false
	}
	raw, ok := h.raw.(*clap.PluginLatency)
	if !ok || raw.Get == nil {
		n.reject(clap.ExtLatency, "unusable table")
		return nil, false
	}
	return &Latency{raw: raw, guard: n.guard}, true
}

// Samples returns the plugin's latency in samples.
func (l *Latency) Samples() (uint32, error) {
	if err := l.guard.Check("latency.get"); err != nil {
		return 0, err
	}
	return l.raw.Get(), nil
}

// Tail wraps the tail extension. It is safe to call from the real-time
// context.
type Tail struct {
	raw   *clap.PluginTail
	guard *Guard
}

// NewTail negotiates the tail extension.
func NewTail(n *Negotiator) (*Tail, bool) {
	h, ok := n.Negotiate(clap.ExtTail)
	if !ok {
		return nil, false
	}
	raw, ok := h.raw.(*clap.PluginTail)
	if !ok || raw.Get == nil {
		n.reject(clap.ExtTail, "unusable table")
		return nil, false
	}
	return &Tail{raw: raw, guard: n.guard}, true
}

// Samples returns the tail length in samples.
func (t *Tail) Samples() (uint32, error) {
	if err := t.guard.Alive("tail.get"); err != nil {
		return 0, err
	}
	return t.raw.Get(), nil
}

// Infinite reports whether the plugin rings forever. A destroyed plugin has
// no tail.
func (t *Tail) Infinite() bool {
	n, err := t.Samples()
	return err == nil && n == math.MaxUint32
}
