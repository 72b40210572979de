package midi

// Status bytes of MIDI 1.0 channel and realtime messages.
const (
	StatusNoteOff         byte = 0x80
	StatusNoteOn          byte = 0x90
	StatusPolyPressure    byte = 0xA0
	StatusControlChange   byte = 0xB0
	StatusProgramChange   byte = 0xC0
	StatusChannelPressure byte = 0xD0
	StatusPitchBend       byte = 0xE0
	StatusClock           byte = 0xF8
	StatusStart           byte = 0xFA
	StatusContinue        byte = 0xFB
	StatusStop            byte = 0xFC
	StatusActiveSensing   byte = 0xFE
	StatusReset           byte = 0xFF
)

// Bytes returns the three byte wire form of a short message. It reports false
// for system exclusive events, which have no short form.
func (e Event) Bytes() ([3]byte, bool) {
	ch := e.Channel & 0x0F
	switch e.Type {
	case EventTypeNoteOff:
		return [3]byte{StatusNoteOff | ch, e.Data1, e.Data2}, true
	case EventTypeNoteOn:
		return [3]byte{StatusNoteOn | ch, e.Data1, e.Data2}, true
	case EventTypePolyPressure:
		return [3]byte{StatusPolyPressure | ch, e.Data1, e.Data2}, true
	case EventTypeControlChange:
		return [3]byte{StatusControlChange | ch, e.Data1, e.Data2}, true
	case EventTypeProgramChange:
		return [3]byte{StatusProgramChange | ch, e.Data1, 0}, true
	case EventTypeChannelPressure:
		return [3]byte{StatusChannelPressure | ch, e.Data1, 0}, true
	case EventTypePitchBend:
		v := uint16(int32(e.Bend) + 8192)
		return [3]byte{StatusPitchBend | ch, byte(v & 0x7F), byte((v >> 7) & 0x7F)}, true
	case EventTypeClock:
		return [3]byte{StatusClock}, true
	case EventTypeStart:
		return [3]byte{StatusStart}, true
	case EventTypeContinue:
		return [3]byte{StatusContinue}, true
	case EventTypeStop:
		return [3]byte{StatusStop}, true
	case EventTypeActiveSensing:
		return [3]byte{StatusActiveSensing}, true
	case EventTypeReset:
		return [3]byte{StatusReset}, true
	}
	return [3]byte{}, false
}

// Parse decodes a three byte short message. Note on with zero velocity is
// kept as a note on; interpretation is left to the receiver.
func Parse(offset uint32, data [3]byte) (Event, bool) {
	status := data[0]
	ch := status & 0x0F
	d1, d2 := data[1]&0x7F, data[2]&0x7F

	switch status & 0xF0 {
	case StatusNoteOff:
		return NoteOff(offset, ch, d1, d2), true
	case StatusNoteOn:
		return NoteOn(offset, ch, d1, d2), true
	case StatusPolyPressure:
		return PolyPressure(offset, ch, d1, d2), true
	case StatusControlChange:
		return ControlChange(offset, ch, d1, d2), true
	case StatusProgramChange:
		return ProgramChange(offset, ch, d1), true
	case StatusChannelPressure:
		return ChannelPressure(offset, ch, d1), true
	case StatusPitchBend:
		v := int16(uint16(d1)|uint16(d2)<<7) - 8192
		return PitchBend(offset, ch, v), true
	}

	switch status {
	case StatusClock:
		return Clock(offset), true
	case StatusStart:
		return Start(offset), true
	case StatusContinue:
		return Continue(offset), true
	case StatusStop:
		return Stop(offset), true
	case StatusActiveSensing:
		return Event{Type: EventTypeActiveSensing, Offset: offset}, true
	case StatusReset:
		return Event{Type: EventTypeReset, Offset: offset}, true
	}
	return Event{}, false
}
