// Package voice assigns incoming notes to a fixed pool of synthesizer voices.
// Nothing in this package allocates after NewAllocator, so it can run inside
// a plugin's process call.
package voice

import (
	"github.com/justyntemme/claphost/pkg/midi"
)

// Mode defines how voices are allocated
type Mode int

const (
	// ModePoly gives each note its own voice
	ModePoly Mode = iota
	// ModeMono keeps only one voice active at a time
	ModeMono
	// ModeUnison plays every voice on the same note
	ModeUnison
)

// Stealing defines which voice is taken when all are in use
type Stealing int

const (
	// StealOldest steals the voice that has played longest
	StealOldest Stealing = iota
	// StealQuietest steals the voice with the lowest amplitude
	StealQuietest
	// StealHighest steals the highest pitched voice
	StealHighest
	// StealLowest steals the lowest pitched voice
	StealLowest
	// StealNone ignores new notes when full
	StealNone
)

// Voice is one sound generator in the pool.
type Voice interface {
	Active() bool
	Note() uint8
	Amplitude() float64
	// Age is the number of samples since the voice was triggered.
	Age() int64
	Trigger(note, velocity uint8)
	Release()
	Stop()
}

const noVoice = -1

// Allocator manages voice allocation for polyphonic synthesis
type Allocator struct {
	voices   []Voice
	mode     Mode
	stealing Stealing
	limit    int
	next     int

	// noteVoice maps a note number to the voice playing it in poly mode.
	noteVoice [128]int
	current   int

	sustain   bool
	sustained [128]bool
}

// NewAllocator creates an allocator over voices.
func NewAllocator(voices []Voice) *Allocator {
	a := &Allocator{
		voices:   voices,
		stealing: StealOldest,
		limit:    len(voices),
		current:  noVoice,
	}
	a.clearMap()
	return a
}

// SetMode sets the allocation mode and stops every voice.
func (a *Allocator) SetMode(mode Mode) {
	a.mode = mode
	a.Reset()
}

// SetStealing sets the voice stealing strategy.
func (a *Allocator) SetStealing(s Stealing) {
	a.stealing = s
}

// SetMaxVoices limits the number of voices in use, clamped to [1, pool size].
func (a *Allocator) SetMaxVoices(n int) {
	a.limit = max(1, min(n, len(a.voices)))
}

// HandleEvent routes a MIDI event. Note on with velocity 0 is a note off and
// CC 64 drives the sustain pedal.
func (a *Allocator) HandleEvent(ev midi.Event) {
	switch ev.Type {
	case midi.EventTypeNoteOn:
		if ev.Velocity() == 0 {
			a.NoteOff(ev.NoteNumber())
			return
		}
		a.NoteOn(ev.NoteNumber(), ev.Velocity())
	case midi.EventTypeNoteOff:
		a.NoteOff(ev.NoteNumber())
	case midi.EventTypeControlChange:
		switch ev.Controller() {
		case midi.CCSustain:
			a.SetSustain(ev.Value() >= 64)
		case midi.CCAllNotesOff:
			a.releaseAll()
		case midi.CCAllSoundOff:
			a.Reset()
		}
	}
}

// NoteOn starts note.
func (a *Allocator) NoteOn(note, velocity uint8) {
	note &= 0x7F
	a.sustained[note] = false
	switch a.mode {
	case ModeMono:
		a.voices[0].Trigger(note, velocity)
		a.current = int(note)
	case ModeUnison:
		for _, v := range a.voices[:a.limit] {
			v.Trigger(note, velocity)
		}
		a.current = int(note)
	default:
		a.noteOnPoly(note, velocity)
	}
}

// NoteOff releases note, or defers the release while the pedal is held.
func (a *Allocator) NoteOff(note uint8) {
	note &= 0x7F
	if a.sustain {
		a.sustained[note] = true
		return
	}
	switch a.mode {
	case ModeMono:
		if a.current == int(note) {
			a.voices[0].Release()
			a.current = noVoice
		}
	case ModeUnison:
		if a.current == int(note) {
			for _, v := range a.voices[:a.limit] {
				v.Release()
			}
			a.current = noVoice
		}
	default:
		if idx := a.noteVoice[note]; idx != noVoice {
			if a.voices[idx].Note() == note {
				a.voices[idx].Release()
			}
			a.noteVoice[note] = noVoice
		}
	}
}

// SetSustain sets the sustain pedal. Lifting it releases every note whose
// key went up while it was held.
func (a *Allocator) SetSustain(on bool) {
	a.sustain = on
	if on {
		return
	}
	for note, held := range a.sustained {
		if held {
			a.sustained[note] = false
			a.NoteOff(uint8(note))
		}
	}
}

// Reset stops all voices and clears allocations
func (a *Allocator) Reset() {
	for _, v := range a.voices {
		v.Stop()
	}
	a.clearMap()
	a.sustained = [128]bool{}
	a.sustain = false
	a.current = noVoice
}

// ActiveCount returns the number of sounding voices.
func (a *Allocator) ActiveCount() int {
	n := 0
	for _, v := range a.voices[:a.limit] {
		if v.Active() {
			n++
		}
	}
	return n
}

func (a *Allocator) releaseAll() {
	for _, v := range a.voices {
		v.Release()
	}
	a.clearMap()
	a.sustained = [128]bool{}
	a.current = noVoice
}

func (a *Allocator) clearMap() {
	for i := range a.noteVoice {
		a.noteVoice[i] = noVoice
	}
}

func (a *Allocator) noteOnPoly(note, velocity uint8) {
	if idx := a.noteVoice[note]; idx != noVoice && a.voices[idx].Note() == note {
		a.voices[idx].Trigger(note, velocity)
		return
	}

	idx := a.free()
	if idx == noVoice {
		idx = a.steal()
		if idx == noVoice {
			return
		}
	}
	a.voices[idx].Trigger(note, velocity)
	a.noteVoice[note] = idx
}

// free finds an inactive voice, round-robin from the last one used.
func (a *Allocator) free() int {
	for i := 0; i < a.limit; i++ {
		idx := (a.next + i) % a.limit
		if !a.voices[idx].Active() {
			a.next = (idx + 1) % a.limit
			return idx
		}
	}
	return noVoice
}

func (a *Allocator) steal() int {
	if a.stealing == StealNone {
		return noVoice
	}

	best := noVoice
	var bestValue float64
	for i, v := range a.voices[:a.limit] {
		if !v.Active() {
			continue
		}
		var value float64
		switch a.stealing {
		case StealOldest:
			value = -float64(v.Age())
		case StealQuietest:
			value = v.Amplitude()
		case StealHighest:
			value = -float64(v.Note())
		case StealLowest:
			value = float64(v.Note())
		}
		if best == noVoice || value < bestValue {
			best = i
			bestValue = value
		}
	}

	if best != noVoice {
		stolen := a.voices[best].Note()
		if a.noteVoice[stolen] == best {
			a.noteVoice[stolen] = noVoice
		}
		a.voices[best].Stop()
	}
	return best
}
