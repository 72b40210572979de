package events

import (
	"cmp"
	"slices"

	"github.com/justyntemme/claphost/pkg/clap"
)

// Type priorities applied to events sharing a sample offset.
const (
	priorityParam uint8 = iota
	priorityExpression
	priorityMIDI
)

type entry struct {
	ev   clap.Event
	prio uint8
	seq  uint32
}

// InputList is a fixed-capacity, time-ordered event list handed to a plugin.
// It never grows after construction.
type InputList struct {
	entries []entry
}

// NewInputList pre-allocates room for capacity events.
func NewInputList(capacity int) *InputList {
	return &InputList{entries: make([]entry, 0, capacity)}
}

// Size implements clap.InputEvents.
func (l *InputList) Size() uint32 {
	return uint32(len(l.entries))
}

// Get implements clap.InputEvents. It returns nil when index is out of range.
func (l *InputList) Get(index uint32) *clap.Event {
	if int(index) >= len(l.entries) {
		return nil
	}
	return &l.entries[index].ev
}

// Cap returns the fixed capacity.
func (l *InputList) Cap() int {
	return cap(l.entries)
}

// Reset empties the list.
func (l *InputList) Reset() {
	l.entries = l.entries[:0]
}

func (l *InputList) push(ev clap.Event, prio uint8) bool {
	n := len(l.entries)
	if n == cap(l.entries) {
		return false
	}
	l.entries = l.entries[:n+1]
	l.entries[n] = entry{ev: ev, prio: prio, seq: uint32(n)}
	return true
}

// sort orders by time, then type priority, then submission. The key is total
// so the result never depends on the sort algorithm's stability.
func (l *InputList) sort() {
	slices.SortFunc(l.entries, func(a, b entry) int {
		if c := cmp.Compare(a.ev.Time, b.ev.Time); c != 0 {
			return c
		}
		if c := cmp.Compare(a.prio, b.prio); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
}

// OutputList is the fixed-capacity sink a plugin pushes events into. System
// exclusive payloads are copied into an arena owned by the list.
type OutputList struct {
	events []clap.Event
	arena  []byte
}

// NewOutputList pre-allocates room for capacity events and sysexBytes bytes of
// system exclusive payload.
func NewOutputList(capacity, sysexBytes int) *OutputList {
	return &OutputList{
		events: make([]clap.Event, 0, capacity),
		arena:  make([]byte, 0, sysexBytes),
	}
}

// TryPush implements clap.OutputEvents.
func (l *OutputList) TryPush(e *clap.Event) bool {
	if e == nil {
		return false
	}
	n := len(l.events)
	if n == cap(l.events) {
		return false
	}

	ev := *e
	if ev.Type == clap.EventMIDISysex {
		start := len(l.arena)
		if start+len(e.Sysex) > cap(l.arena) {
			return false
		}
		l.arena = append(l.arena, e.Sysex...)
		ev.Sysex = l.arena[start:len(l.arena):len(l.arena)]
	}

	l.events = l.events[:n+1]
	l.events[n] = ev
	return true
}

// Size implements clap.InputEvents so the output can be decoded.
func (l *OutputList) Size() uint32 {
	return uint32(len(l.events))
}

// Get implements clap.InputEvents.
func (l *OutputList) Get(index uint32) *clap.Event {
	if int(index) >= len(l.events) {
		return nil
	}
	return &l.events[index]
}

// Reset empties the list and its arena.
func (l *OutputList) Reset() {
	l.events = l.events[:0]
	l.arena = l.arena[:0]
}
