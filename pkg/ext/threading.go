package ext

import (
	"sync/atomic"

	"github.com/justyntemme/claphost/pkg/clap"
)

// Threading tells which execution context may call an extension.
type Threading int

const (
	// MainThreadOnly handles are for the control context and must never be
	// used while the plugin is inside its process call.
	MainThreadOnly Threading = iota
	// AudioThreadSafe handles may be used from the real-time context.
	AudioThreadSafe
)

func (t Threading) String() string {
	if t == AudioThreadSafe {
		return "audio-thread-safe"
	}
	return "main-thread-only"
}

var threadingByID = map[string]Threading{
	clap.ExtTail:       AudioThreadSafe,
	clap.ExtThreadPool: AudioThreadSafe,
	clap.ExtVoiceInfo:  MainThreadOnly,
}

// ThreadingOf returns the threading tag of an extension id. Unknown ids are
// treated as main-thread only.
func ThreadingOf(id string) Threading {
	if t, ok := threadingByID[id]; ok {
		return t
	}
	return MainThreadOnly
}

// Guard records whether the real-time context is currently inside the
// plugin's process call and whether the plugin has been destroyed. One Guard
// is shared by an instance, its process driver, its parameter registry and
// every extension wrapper built for it.
type Guard struct {
	processing atomic.Bool
	destroyed  atomic.Bool
}

// Destroy marks the plugin destroyed. Every later Check or Alive fails with
// ErrUseAfterDestroy.
func (g *Guard) Destroy() {
	g.destroyed.Store(true)
}

// Destroyed reports whether Destroy has run.
func (g *Guard) Destroyed() bool {
	return g.destroyed.Load()
}

// Alive fails once the plugin has been destroyed. It ignores processing, so
// calls that are legal from either context use it.
func (g *Guard) Alive(op string) error {
	if g != nil && g.destroyed.Load() {
		return clap.NewError(clap.ErrUseAfterDestroy, op)
	}
	return nil
}

// Enter marks the start of a process call. It reports false if a process
// call was already in progress.
func (g *Guard) Enter() bool {
	return g.processing.CompareAndSwap(false, true)
}

// Exit marks the end of a process call.
func (g *Guard) Exit() {
	g.processing.Store(false)
}

// InProcess reports whether a process call is in progress.
func (g *Guard) InProcess() bool {
	return g.processing.Load()
}

// Check fails after Destroy, and with a threading violation while a process
// call is running.
func (g *Guard) Check(op string) error {
	if err := g.Alive(op); err != nil {
		return err
	}
	if g != nil && g.processing.Load() {
		return clap.NewError(clap.ErrThreadingViolation, op)
	}
	return nil
}
