package refplug

import (
	"sync/atomic"

	"github.com/justyntemme/claphost/pkg/clap"
)

// base carries what every reference plugin shares: the host table, the
// parameter set and the activation state.
type base struct {
	host   *clap.Host
	desc   *clap.Descriptor
	params *paramSet

	sampleRate float64
	maxFrames  uint32
	active     bool
	processing bool
	renderMode int32

	mainThreadCalls atomic.Int32
}

// hostExt queries the host for extension id and returns it as *T, or nil.
func hostExt[T any](host *clap.Host, id string) *T {
	if host == nil || host.GetExtension == nil {
		return nil
	}
	t, _ := host.GetExtension(id).(*T)
	return t
}

func (b *base) log(severity clap.LogSeverity, msg string) {
	if l := hostExt[clap.HostLog](b.host, clap.ExtLog); l != nil && l.Log != nil {
		l.Log(severity, msg)
	}
}

func (b *base) markDirty() {
	if s := hostExt[clap.HostState](b.host, clap.ExtState); s != nil && s.MarkDirty != nil {
		s.MarkDirty()
	}
}

func (b *base) activate(sampleRate float64, minFrames, maxFrames uint32) bool {
	if b.active || sampleRate <= 0 || maxFrames == 0 || minFrames > maxFrames {
		return false
	}
	b.sampleRate = sampleRate
	b.maxFrames = maxFrames
	b.active = true
	return true
}

// table fills the lifecycle entries shared by every plugin. Callers override
// what they need.
func (b *base) table() *clap.Plugin {
	return &clap.Plugin{
		Desc: b.desc,
		Init: func() bool {
			b.log(clap.LogDebug, b.desc.ID+" initialized")
			return true
		},
		Destroy: func() {},
		Activate: func(sampleRate float64, minFrames, maxFrames uint32) bool {
			return b.activate(sampleRate, minFrames, maxFrames)
		},
		Deactivate: func() { b.active = false },
		StartProcessing: func() bool {
			if !b.active {
				return false
			}
			b.processing = true
			return true
		},
		StopProcessing: func() { b.processing = false },
		Reset:          func() {},
		OnMainThread:   func() { b.mainThreadCalls.Add(1) },
	}
}

// sampleWriter writes mono samples into every channel of a 32-bit or 64-bit
// port.
type sampleWriter struct {
	buf *clap.AudioBuffer
}

func (w sampleWriter) set(frame uint32, v float64) {
	for _, ch := range w.buf.Data32 {
		ch[frame] = float32(v)
	}
	for _, ch := range w.buf.Data64 {
		ch[frame] = v
	}
}

// render is the render extension shared by the reference plugins. Neither
// needs a real-time deadline, so both modes are accepted.
func (b *base) render() *clap.PluginRender {
	return &clap.PluginRender{
		HasHardRealtimeRequirement: func() bool { return false },
		Set: func(mode int32) bool {
			if mode != clap.RenderRealtime && mode != clap.RenderOffline {
				return false
			}
			b.renderMode = mode
			return true
		},
	}
}
