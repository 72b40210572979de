// Package midi provides the typed MIDI 1.0 events exchanged with hosted
// plugins.
package midi

import (
	"fmt"
)

type EventType uint8

const (
	EventTypeNoteOff EventType = iota
	EventTypeNoteOn
	EventTypePolyPressure
	EventTypeControlChange
	EventTypeProgramChange
	EventTypeChannelPressure
	EventTypePitchBend
	EventTypeSystemExclusive
	EventTypeClock
	EventTypeStart
	EventTypeStop
	EventTypeContinue
	EventTypeReset
	EventTypeActiveSensing
)

// Event is a single MIDI message positioned within a block. It is a plain
// value so that event slices can be reused across blocks without boxing.
//
// Data1 holds the note number, controller, program or pressure; Data2 holds
// the velocity, controller value or poly pressure. Pitch bend lives in Bend
// and system exclusive payloads in Sysex.
type Event struct {
	Type    EventType
	Channel uint8
	Offset  uint32
	Data1   uint8
	Data2   uint8
	Bend    int16
	Sysex   []byte
}

func NoteOn(offset uint32, channel, note, velocity uint8) Event {
	return Event{Type: EventTypeNoteOn, Channel: channel & 0x0F, Offset: offset, Data1: note & 0x7F, Data2: velocity & 0x7F}
}

func NoteOff(offset uint32, channel, note, velocity uint8) Event {
	return Event{Type: EventTypeNoteOff, Channel: channel & 0x0F, Offset: offset, Data1: note & 0x7F, Data2: velocity & 0x7F}
}

func ControlChange(offset uint32, channel, controller, value uint8) Event {
	return Event{Type: EventTypeControlChange, Channel: channel & 0x0F, Offset: offset, Data1: controller & 0x7F, Data2: value & 0x7F}
}

func ProgramChange(offset uint32, channel, program uint8) Event {
	return Event{Type: EventTypeProgramChange, Channel: channel & 0x0F, Offset: offset, Data1: program & 0x7F}
}

func ChannelPressure(offset uint32, channel, pressure uint8) Event {
	return Event{Type: EventTypeChannelPressure, Channel: channel & 0x0F, Offset: offset, Data1: pressure & 0x7F}
}

func PolyPressure(offset uint32, channel, note, pressure uint8) Event {
	return Event{Type: EventTypePolyPressure, Channel: channel & 0x0F, Offset: offset, Data1: note & 0x7F, Data2: pressure & 0x7F}
}

// PitchBend takes a value in -8192..8191, 0 is center.
func PitchBend(offset uint32, channel uint8, value int16) Event {
	if value < -8192 {
		value = -8192
	} else if value > 8191 {
		value = 8191
	}
	return Event{Type: EventTypePitchBend, Channel: channel & 0x0F, Offset: offset, Bend: value}
}

// SystemExclusive references data; the caller keeps it alive for the block.
func SystemExclusive(offset uint32, data []byte) Event {
	return Event{Type: EventTypeSystemExclusive, Offset: offset, Sysex: data}
}

func Clock(offset uint32) Event    { return Event{Type: EventTypeClock, Offset: offset} }
func Start(offset uint32) Event    { return Event{Type: EventTypeStart, Offset: offset} }
func Stop(offset uint32) Event     { return Event{Type: EventTypeStop, Offset: offset} }
func Continue(offset uint32) Event { return Event{Type: EventTypeContinue, Offset: offset} }

func (e Event) SampleOffset() uint32 { return e.Offset }

// NoteNumber is valid for note and poly pressure events.
func (e Event) NoteNumber() uint8 { return e.Data1 }

// Velocity is valid for note events.
func (e Event) Velocity() uint8 { return e.Data2 }

func (e Event) Controller() uint8 { return e.Data1 }

func (e Event) Value() uint8 { return e.Data2 }

func (e Event) Program() uint8 { return e.Data1 }

// Pressure is valid for channel and poly pressure events.
func (e Event) Pressure() uint8 {
	if e.Type == EventTypePolyPressure {
		return e.Data2
	}
	return e.Data1
}

// IsNote reports whether e is a note on or note off.
func (e Event) IsNote() bool {
	return e.Type == EventTypeNoteOn || e.Type == EventTypeNoteOff
}

func (e Event) NormalizedBend() float64 {
	return float64(e.Bend) / 8192.0
}

func (e Event) String() string {
	switch e.Type {
	case EventTypeNoteOn:
		return fmt.Sprintf("NoteOn{ch:%d, note:%d, vel:%d, offset:%d}",
			e.Channel, e.Data1, e.Data2, e.Offset)
	case EventTypeNoteOff:
		return fmt.Sprintf("NoteOff{ch:%d, note:%d, vel:%d, offset:%d}",
			e.Channel, e.Data1, e.Data2, e.Offset)
	case EventTypeControlChange:
		return fmt.Sprintf("CC{ch:%d, ctrl:%d, val:%d, offset:%d}",
			e.Channel, e.Data1, e.Data2, e.Offset)
	case EventTypePitchBend:
		return fmt.Sprintf("PitchBend{ch:%d, val:%d, offset:%d}",
			e.Channel, e.Bend, e.Offset)
	case EventTypePolyPressure:
		return fmt.Sprintf("PolyPressure{ch:%d, note:%d, pressure:%d, offset:%d}",
			e.Channel, e.Data1, e.Data2, e.Offset)
	case EventTypeChannelPressure:
		return fmt.Sprintf("ChannelPressure{ch:%d, pressure:%d, offset:%d}",
			e.Channel, e.Data1, e.Offset)
	case EventTypeProgramChange:
		return fmt.Sprintf("ProgramChange{ch:%d, prog:%d, offset:%d}",
			e.Channel, e.Data1, e.Offset)
	case EventTypeSystemExclusive:
		return fmt.Sprintf("SysEx{len:%d, offset:%d}", len(e.Sysex), e.Offset)
	case EventTypeClock:
		return fmt.Sprintf("Clock{offset:%d}", e.Offset)
	case EventTypeStart:
		return fmt.Sprintf("Start{offset:%d}", e.Offset)
	case EventTypeStop:
		return fmt.Sprintf("Stop{offset:%d}", e.Offset)
	case EventTypeContinue:
		return fmt.Sprintf("Continue{offset:%d}", e.Offset)
	case EventTypeReset:
		return fmt.Sprintf("Reset{offset:%d}", e.Offset)
	case EventTypeActiveSensing:
		return fmt.Sprintf("ActiveSensing{offset:%d}", e.Offset)
	}
	return fmt.Sprintf("Unknown{type:%d, offset:%d}", e.Type, e.Offset)
}

const (
	CCModWheel       uint8 = 1
	CCBreath         uint8 = 2
	CCFoot           uint8 = 4
	CCPortamentoTime uint8 = 5
	CCVolume         uint8 = 7
	CCBalance        uint8 = 8
	CCPan            uint8 = 10
	CCExpression     uint8 = 11
	CCSustain        uint8 = 64
	CCPortamento     uint8 = 65
	CCSostenuto      uint8 = 66
	CCSoft           uint8 = 67
	CCLegato         uint8 = 68
	CCHold2          uint8 = 69
	CCAllSoundOff    uint8 = 120
	CCResetAll       uint8 = 121
	CCLocalControl   uint8 = 122
	CCAllNotesOff    uint8 = 123
)

func NoteToFrequency(note uint8, tuningA4 float64) float64 {
	if tuningA4 == 0 {
		tuningA4 = 440.0
	}
	return tuningA4 * pow2((float64(note)-69.0)/12.0)
}

func pow2(x float64) float64 {
	// Fast approximation of 2^x
	if x < 0 {
		return 1.0 / pow2(-x)
	}
	whole := int(x)
	frac := x - float64(whole)
	fracPow := 1.0 + frac*(0.693147+frac*(0.240227+frac*0.055504))
	return float64(uint64(1)<<uint(whole)) * fracPow
}

func NoteNumberToName(note uint8) string {
	noteNames := [...]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	octave := int(note/12) - 1
	return fmt.Sprintf("%s%d", noteNames[note%12], octave)
}
