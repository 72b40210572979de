package events

import (
	"math"

	"github.com/justyntemme/claphost/pkg/clap"
	"github.com/justyntemme/claphost/pkg/midi"
)

// Errors returned on the real-time path are static so that failing never
// allocates.
var (
	errInvalidOffset = &clap.Error{Kind: clap.ErrInvalidEventOffset, Op: "encode"}
	errOverflow      = &clap.Error{Kind: clap.ErrEventOverflow, Op: "encode"}
)

// DefaultSysexBytes is the output sysex arena size used by NewBridge.
const DefaultSysexBytes = 4096

// Bridge owns the pre-allocated input and output lists of one instance.
// It is used by a single real-time context and is not safe for concurrent use.
type Bridge struct {
	in  *InputList
	out *OutputList

	transport    clap.EventTransportInfo
	hasTransport bool
}

// NewBridge sizes both lists for maxEvents events per block.
func NewBridge(maxEvents int) *Bridge {
	return NewBridgeSize(maxEvents, DefaultSysexBytes)
}

// NewBridgeSize also sets the output sysex arena size.
func NewBridgeSize(maxEvents, sysexBytes int) *Bridge {
	return &Bridge{
		in:  NewInputList(maxEvents),
		out: NewOutputList(maxEvents, sysexBytes),
	}
}

// Capacity returns the maximum number of events per block.
func (b *Bridge) Capacity() int {
	return b.in.Cap()
}

// Encode merges ctx into the input list in delivery order. Every offset must
// lie in [0, blockSize). On error the list is left empty.
func (b *Bridge) Encode(ctx *ProcessContext, blockSize uint32) (*InputList, error) {
	b.in.Reset()
	b.hasTransport = false
	if ctx == nil {
		return b.in, nil
	}

	if ctx.Len() > b.in.Cap() {
		return b.in, errOverflow
	}

	for i := range ctx.ParamChanges {
		pc := &ctx.ParamChanges[i]
		if pc.Offset >= blockSize {
			b.in.Reset()
			return b.in, errInvalidOffset
		}
		b.in.push(encodeParam(pc), priorityParam)
	}

	for i := range ctx.NoteExpressions {
		ne := &ctx.NoteExpressions[i]
		if ne.Offset >= blockSize {
			b.in.Reset()
			return b.in, errInvalidOffset
		}
		b.in.push(encodeExpression(ne), priorityExpression)
	}

	for i := range ctx.MIDI {
		me := &ctx.MIDI[i]
		if me.Offset >= blockSize {
			b.in.Reset()
			return b.in, errInvalidOffset
		}
		ev, ok := encodeMIDI(me)
		if !ok {
			continue
		}
		b.in.push(ev, priorityMIDI)
	}

	b.in.sort()

	if ctx.Transport != nil {
		ctx.Transport.Fill(&b.transport)
		b.hasTransport = true
	}
	return b.in, nil
}

// Transport returns the raw transport filled by the last Encode, or nil.
func (b *Bridge) Transport() *clap.EventTransportInfo {
	if !b.hasTransport {
		return nil
	}
	return &b.transport
}

// Output returns the emptied output list for the next process call.
func (b *Bridge) Output() *OutputList {
	b.out.Reset()
	return b.out
}

// Decode appends the typed form of every recognised event in stream to
// result. Events outside the core space and unknown types are dropped.
func (b *Bridge) Decode(stream clap.InputEvents, result *ProcessResult) {
	Decode(stream, result)
}

// Decode is the stateless form of Bridge.Decode.
func Decode(stream clap.InputEvents, result *ProcessResult) {
	if stream == nil || result == nil {
		return
	}
	n := stream.Size()
	for i := uint32(0); i < n; i++ {
		ev := stream.Get(i)
		if ev == nil || ev.SpaceID != clap.CoreEventSpaceID {
			continue
		}

		switch ev.Type {
		case clap.EventNoteOn, clap.EventNoteOff:
			if me, ok := decodeNote(ev); ok {
				result.MIDI = append(result.MIDI, me)
			}
		case clap.EventMIDI:
			if me, ok := midi.Parse(ev.Time, ev.MIDI); ok {
				result.MIDI = append(result.MIDI, me)
			}
		case clap.EventMIDISysex:
			result.MIDI = append(result.MIDI, midi.SystemExclusive(ev.Time, ev.Sysex))
		case clap.EventParamValue:
			result.ParamChanges = append(result.ParamChanges, ParamChange{
				ParamID: ev.ParamID,
				Value:   ev.Value,
				Offset:  ev.Time,
				Cookie:  ev.Cookie,
				NoteID:  ev.NoteID,
				Port:    ev.PortIndex,
				Channel: ev.Channel,
				Key:     ev.Key,
			})
		case clap.EventNoteExpression:
			result.NoteExpressions = append(result.NoteExpressions, NoteExpression{
				Offset:     ev.Time,
				NoteID:     ev.NoteID,
				Port:       ev.PortIndex,
				Channel:    ev.Channel,
				Key:        ev.Key,
				Expression: Expression(ev.ExpressionID),
				Value:      ev.Value,
			})
		}
	}
}

func encodeParam(pc *ParamChange) clap.Event {
	return clap.Event{
		Time:      pc.Offset,
		SpaceID:   clap.CoreEventSpaceID,
		Type:      clap.EventParamValue,
		ParamID:   pc.ParamID,
		Cookie:    pc.Cookie,
		NoteID:    pc.NoteID,
		PortIndex: pc.Port,
		Channel:   pc.Channel,
		Key:       pc.Key,
		Value:     pc.Value,
	}
}

func encodeExpression(ne *NoteExpression) clap.Event {
	return clap.Event{
		Time:         ne.Offset,
		SpaceID:      clap.CoreEventSpaceID,
		Type:         clap.EventNoteExpression,
		ExpressionID: clap.NoteExpressionID(ne.Expression),
		NoteID:       ne.NoteID,
		PortIndex:    ne.Port,
		Channel:      ne.Channel,
		Key:          ne.Key,
		Value:        ne.Value,
	}
}

// encodeMIDI sends note on and off as native note events and everything else
// as raw MIDI on port 0.
func encodeMIDI(me *midi.Event) (clap.Event, bool) {
	ev := clap.Event{Time: me.Offset, SpaceID: clap.CoreEventSpaceID}

	switch me.Type {
	case midi.EventTypeNoteOn, midi.EventTypeNoteOff:
		ev.Type = clap.EventNoteOn
		if me.Type == midi.EventTypeNoteOff {
			ev.Type = clap.EventNoteOff
		}
		ev.NoteID = clap.Wildcard
		ev.PortIndex = 0
		ev.Channel = int16(me.Channel)
		ev.Key = int16(me.Data1)
		ev.Velocity = float64(me.Data2) / 127.0
		return ev, true
	case midi.EventTypeSystemExclusive:
		ev.Type = clap.EventMIDISysex
		ev.Sysex = me.Sysex
		return ev, true
	}

	data, ok := me.Bytes()
	if !ok {
		return ev, false
	}
	ev.Type = clap.EventMIDI
	ev.MIDI = data
	return ev, true
}

func decodeNote(ev *clap.Event) (midi.Event, bool) {
	if ev.Key < 0 || ev.Key > 127 {
		return midi.Event{}, false
	}
	ch := ev.Channel
	if ch < 0 || ch > 15 {
		ch = 0
	}
	vel := math.Round(ev.Velocity * 127)
	if vel < 0 {
		vel = 0
	} else if vel > 127 {
		vel = 127
	}
	if ev.Type == clap.EventNoteOff {
		return midi.NoteOff(ev.Time, uint8(ch), uint8(ev.Key), uint8(vel)), true
	}
	return midi.NoteOn(ev.Time, uint8(ch), uint8(ev.Key), uint8(vel)), true
}
