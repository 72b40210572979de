package ext

import (
	"github.com/justyntemme/claphost/pkg/clap"
)

// RenderMode tells a plugin whether it runs against a real-time deadline.
type RenderMode int32

const (
	RenderRealtime = RenderMode(clap.RenderRealtime)
	RenderOffline  = RenderMode(clap.RenderOffline)
)

func (m RenderMode) String() string {
	if m == RenderOffline {
		return "offline"
	}
	return "realtime"
}

// Render wraps the render extension.
type Render struct {
	raw   *clap.PluginRender
	guard *Guard
}

// NewRender negotiates the render extension.
func NewRender(n *Negotiator) (*Render, bool) {
	h, ok := n.Negotiate(clap.ExtRender)
	if !ok {
		return nil, false
	}
	raw, ok := h.raw.(*clap.PluginRender)
	if !ok || raw.Set == nil {
		n.reject(clap.ExtRender, "unusable table")
		return nil, false
	}
	return &Render{raw: raw, guard: n.guard}, true
}

// HardRealtime reports whether the plugin can only run in real time. Such
// plugins refuse offline rendering.
func (r *Render) HardRealtime() (bool, error) {
	if err := r.guard.Check("render.has_hard_realtime_requirement"); err != nil {
		return false, err
	}
	return r.raw.HasHardRealtimeRequirement != nil && r.raw.HasHardRealtimeRequirement(), nil
}

// Set switches the render mode.
func (r *Render) Set(mode RenderMode) error {
	if err := r.guard.Check("render.set"); err != nil {
		return err
	}
	if !r.raw.Set(int32(mode)) {
		return clap.Errorf(clap.ErrRejected, "render.set", "%s rendering", mode)
	}
	return nil
}
