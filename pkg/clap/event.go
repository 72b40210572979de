package clap

// EventType identifies the payload of an Event within the core event space.
type EventType uint16

const (
	EventNoteOn EventType = iota
	EventNoteOff
	EventNoteChoke
	EventNoteEnd
	EventNoteExpression
	EventParamValue
	EventParamMod
	EventParamGestureBegin
	EventParamGestureEnd
	EventTransport
	EventMIDI
	EventMIDISysex
	EventMIDI2
)

var eventTypeNames = [...]string{
	EventNoteOn:            "note-on",
	EventNoteOff:           "note-off",
	EventNoteChoke:         "note-choke",
	EventNoteEnd:           "note-end",
	EventNoteExpression:    "note-expression",
	EventParamValue:        "param-value",
	EventParamMod:          "param-mod",
	EventParamGestureBegin: "param-gesture-begin",
	EventParamGestureEnd:   "param-gesture-end",
	EventTransport:         "transport",
	EventMIDI:              "midi",
	EventMIDISysex:         "midi-sysex",
	EventMIDI2:             "midi2",
}

func (t EventType) String() string {
	if int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return "unknown"
}

// CoreEventSpaceID is the only event space the host produces or consumes.
const CoreEventSpaceID uint16 = 0

// Event flags.
const (
	EventIsLive     uint32 = 1 << 0
	EventDontRecord uint32 = 1 << 1
)

// Wildcard is used in note and parameter addressing fields to match any
// note id, port, channel or key.
const Wildcard = -1

// NoteExpressionID selects the dimension of a note expression event.
type NoteExpressionID int32

const (
	NoteExpressionVolume NoteExpressionID = iota
	NoteExpressionPan
	NoteExpressionTuning
	NoteExpressionVibrato
	NoteExpressionExpression
	NoteExpressionBrightness
	NoteExpressionPressure
)

// Event is the fixed-size record exchanged through event lists. Only the
// fields relevant to Type are meaningful. The record holds no pointers except
// Sysex, so event lists can live in pre-allocated slices.
type Event struct {
	Time    uint32
	SpaceID uint16
	Type    EventType
	Flags   uint32

	// Note and parameter addressing. -1 means wildcard.
	NoteID    int32
	PortIndex int16
	Channel   int16
	Key       int16

	// Note velocity for note events, value for param value and note
	// expression events, modulation amount for param mod events.
	Velocity float64
	Value    float64

	ParamID      uint32
	Cookie       uintptr
	ExpressionID NoteExpressionID

	MIDIPort uint16
	MIDI     [3]byte
	MIDI2    [4]uint32
	Sysex    []byte
}

// InputEvents is the read side of an event list handed to a plugin.
type InputEvents interface {
	Size() uint32
	Get(index uint32) *Event
}

// OutputEvents is the write side of an event list handed to a plugin. TryPush
// copies the event and reports false when the list cannot take it.
type OutputEvents interface {
	TryPush(e *Event) bool
}

// Transport flags.
const (
	TransportHasTempo           uint32 = 1 << 0
	TransportHasBeatsTimeline   uint32 = 1 << 1
	TransportHasSecondsTimeline uint32 = 1 << 2
	TransportHasTimeSignature   uint32 = 1 << 3
	TransportIsPlaying          uint32 = 1 << 4
	TransportIsRecording        uint32 = 1 << 5
	TransportIsLoopActive       uint32 = 1 << 6
	TransportIsWithinPreRoll    uint32 = 1 << 7
)

// Fixed point factors for beat and second positions.
const (
	BeatTimeFactor int64 = 1 << 31
	SecTimeFactor  int64 = 1 << 31
)

// BeatTime converts beats to the fixed point representation.
func BeatTime(beats float64) int64 {
	return int64(beats*float64(BeatTimeFactor) + 0.5)
}

// SecTime converts seconds to the fixed point representation.
func SecTime(seconds float64) int64 {
	return int64(seconds*float64(SecTimeFactor) + 0.5)
}

// EventTransportInfo is the raw transport record attached to a process call.
type EventTransportInfo struct {
	Flags uint32

	SongPosBeats   int64
	SongPosSeconds int64

	Tempo    float64
	TempoInc float64

	LoopStartBeats   int64
	LoopEndBeats     int64
	LoopStartSeconds int64
	LoopEndSeconds   int64

	BarStart  int64
	BarNumber int32

	TSigNum   uint16
	TSigDenom uint16
}
