//go:build debug

package debug

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// Enabled reports whether assertions are compiled in.
const Enabled = true

// Sentinel checks the threading contract of one plugin instance.
type Sentinel struct {
	processing atomic.Bool
	lifecycle  atomic.Bool

	mallocs     uint64
	blocks      atomic.Uint64
	blockAllocs atomic.Uint64
	totalAllocs atomic.Uint64
}

// EnterProcess marks the start of a process call.
func (s *Sentinel) EnterProcess() {
	if !s.processing.CompareAndSwap(false, true) {
		panic("debug: process re-entered")
	}
	if s.lifecycle.Load() {
		panic("debug: process called during a lifecycle transition")
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	s.mallocs = m.Mallocs
}

// ExitProcess marks the end of a process call and records the number of heap
// allocations made since EnterProcess.
func (s *Sentinel) ExitProcess() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	n := m.Mallocs - s.mallocs
	s.blockAllocs.Store(n)
	s.totalAllocs.Add(n)
	s.blocks.Add(1)
	s.processing.Store(false)
}

// EnterLifecycle marks the start of a lifecycle transition named op.
func (s *Sentinel) EnterLifecycle(op string) {
	if s.processing.Load() {
		panic(fmt.Sprintf("debug: %s called while process is running", op))
	}
	s.lifecycle.Store(true)
}

// ExitLifecycle marks the end of a lifecycle transition.
func (s *Sentinel) ExitLifecycle() {
	s.lifecycle.Store(false)
}

// Stats returns the number of processed blocks, the allocations made by the
// last one and the allocations made by all of them.
func (s *Sentinel) Stats() (blocks, last, total uint64) {
	return s.blocks.Load(), s.blockAllocs.Load(), s.totalAllocs.Load()
}
