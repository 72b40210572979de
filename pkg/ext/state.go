package ext

import (
	"bytes"

	"github.com/justyntemme/claphost/pkg/clap"
)

// StateContext tells the plugin why its state is saved or loaded.
type StateContext int

const (
	ContextProject StateContext = iota
	ContextPreset
	ContextDuplicate
)

func (c StateContext) String() string {
	switch c {
	case ContextProject:
		return "project"
	case ContextPreset:
		return "preset"
	case ContextDuplicate:
		return "duplicate"
	}
	return "unknown"
}

func (c StateContext) raw() uint32 {
	switch c {
	case ContextPreset:
		return clap.StateContextForPreset
	case ContextDuplicate:
		return clap.StateContextForDuplicate
	}
	return clap.StateContextForProject
}

// StateBlob is plugin state as produced by Save. The bytes are opaque.
type StateBlob struct {
	Data    []byte
	Context StateContext
}

// State wraps the state extension and, when present, the state-context
// extension. All calls are main-thread only.
type State struct {
	plain   *clap.PluginState
	context *clap.PluginStateContext
	guard   *Guard
}

// NewState negotiates state support. The plugin must implement the plain
// state extension; state-context is optional and preferred when present.
func NewState(n *Negotiator) (*State, bool) {
	s := &State{guard: n.guard}

	if h, ok := n.Negotiate(clap.ExtState); ok {
		if raw, ok := h.raw.(*clap.PluginState); ok && raw.Save != nil && raw.Load != nil {
			s.plain = raw
		} else {
			n.reject(clap.ExtState, "unusable table")
		}
	}
	if h, ok := n.Negotiate(clap.ExtStateContext); ok {
		if raw, ok := h.raw.(*clap.PluginStateContext); ok && raw.Save != nil && raw.Load != nil {
			s.context = raw
		} else {
			n.reject(clap.ExtStateContext, "unusable table")
		}
	}

	if s.plain == nil && s.context == nil {
		return nil, false
	}
	return s, true
}

// SupportsContext reports whether the plugin distinguishes save contexts.
func (s *State) SupportsContext() bool {
	return s.context != nil
}

// Save captures the plugin state for ctx.
func (s *State) Save(ctx StateContext) (StateBlob, error) {
	if err := s.guard.Check("state.save"); err != nil {
		return StateBlob{}, err
	}

	var buf bytes.Buffer
	stream := clap.NewOutputStream(&buf)

	var ok bool
	if s.context != nil {
		ok = s.context.Save(stream, ctx.raw())
	} else {
		ok = s.plain.Save(stream)
	}
	if !ok {
		return StateBlob{}, clap.Errorf(clap.ErrState, "state.save", "plugin failed to save %s state", ctx)
	}
	return StateBlob{Data: buf.Bytes(), Context: ctx}, nil
}

// Load restores blob. An empty blob is a no-op.
func (s *State) Load(blob StateBlob) error {
	if err := s.guard.Check("state.load"); err != nil {
		return err
	}
	if len(blob.Data) == 0 {
		return nil
	}

	stream := clap.NewInputStream(blob.Data)

	var ok bool
	if s.context != nil {
		ok = s.context.Load(stream, blob.Context.raw())
	} else {
		ok = s.plain.Load(stream)
	}
	if !ok {
		return clap.Errorf(clap.ErrState, "state.load", "plugin rejected %d byte %s state", len(blob.Data), blob.Context)
	}
	return nil
}
