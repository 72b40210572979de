// Package ext negotiates optional plugin extensions and exposes typed,
// thread-checked wrappers around the raw tables.
package ext

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/justyntemme/claphost/pkg/clap"
)

// Handle is a negotiated extension: the raw table the plugin returned plus
// its threading tag.
type Handle struct {
	ID        string
	Threading Threading
	raw       any
}

// Raw returns the plugin's table. Typed wrappers should be preferred.
func (h Handle) Raw() any {
	return h.raw
}

// Option configures a Negotiator.
type Option func(*Negotiator)

// WithLogger sets the logger used to report malformed tables.
func WithLogger(l zerolog.Logger) Option {
	return func(n *Negotiator) {
		n.log = l
	}
}

// WithActive tells wrappers whether the plugin is activated. Calls that are
// only legal on an inactive plugin fail while it reports true.
func WithActive(fn func() bool) Option {
	return func(n *Negotiator) {
		n.active = fn
	}
}

// Negotiator queries a plugin for extension tables. Each id is queried at
// most once; the answer, including absence, is cached for the lifetime of
// the instance.
type Negotiator struct {
	plugin *clap.Plugin
	guard  *Guard
	log    zerolog.Logger
	active func() bool

	mu    sync.Mutex
	cache map[string]*Handle
}

// NewNegotiator binds a negotiator to a created plugin.
func NewNegotiator(plugin *clap.Plugin, guard *Guard, opts ...Option) *Negotiator {
	n := &Negotiator{
		plugin: plugin,
		guard:  guard,
		log:    zerolog.Nop(),
		active: func() bool { return false },
		cache:  make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.guard == nil {
		n.guard = &Guard{}
	}
	return n
}

// Guard returns the guard shared with the wrappers built by n.
func (n *Negotiator) Guard() *Guard {
	return n.guard
}

// Negotiate returns the handle for id. The second result is false when the
// plugin does not implement the extension; that is not an error.
func (n *Negotiator) Negotiate(id string) (Handle, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if h, ok := n.cache[id]; ok {
		if h == nil {
			return Handle{}, false
		}
		return *h, true
	}

	var raw any
	if n.plugin != nil && n.plugin.GetExtension != nil {
		raw = n.plugin.GetExtension(id)
	}
	if isNil(raw) {
		n.cache[id] = nil
		n.log.Debug().Str("extension", id).Msg("extension not supported")
		return Handle{}, false
	}

	h := &Handle{ID: id, Threading: ThreadingOf(id), raw: raw}
	n.cache[id] = h
	n.log.Debug().Str("extension", id).Stringer("threading", h.Threading).Msg("extension negotiated")
	return *h, true
}

// Supported lists the ids negotiated successfully so far, sorted.
func (n *Negotiator) Supported() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	ids := make([]string, 0, len(n.cache))
	for id, h := range n.cache {
		if h != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// reject records that id was returned in an unusable form and reports it as
// unsupported from now on.
func (n *Negotiator) reject(id, reason string) {
	n.mu.Lock()
	n.cache[id] = nil
	n.mu.Unlock()
	n.log.Warn().Str("extension", id).Str("reason", reason).Msg("plugin returned an unusable extension table")
}

// isNil catches typed nil pointers wrapped in a non-nil interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case *clap.PluginParams:
		return t == nil
	case *clap.PluginState:
		return t == nil
	case *clap.PluginStateContext:
		return t == nil
	case *clap.PluginGUI:
		return t == nil
	case *clap.PluginAudioPorts:
		return t == nil
	case *clap.PluginNotePorts:
		return t == nil
	case *clap.PluginLatency:
		return t == nil
	case *clap.PluginTail:
		return t == nil
	case *clap.PluginRender:
		return t == nil
	case *clap.PluginVoiceInfo:
		return t == nil
	case *clap.PluginNoteName:
		return t == nil
	case *clap.PluginAudioPortsConfig:
		return t == nil
	}
	return false
}
