// Package events translates typed host events to and from the raw ordered
// event stream exchanged with a plugin during processing.
package events

import (
	"github.com/justyntemme/claphost/pkg/clap"
	"github.com/justyntemme/claphost/pkg/midi"
)

// ParamChange sets a parameter to Value at Offset. The addressing fields
// restrict the change to a note id, port, channel or key; -1 matches all.
type ParamChange struct {
	ParamID uint32
	Value   float64
	Offset  uint32
	Cookie  uintptr

	NoteID  int32
	Port    int16
	Channel int16
	Key     int16
}

// NewParamChange returns a global change addressed to every note.
func NewParamChange(id uint32, value float64, offset uint32) ParamChange {
	return ParamChange{
		ParamID: id,
		Value:   value,
		Offset:  offset,
		NoteID:  clap.Wildcard,
		Port:    clap.Wildcard,
		Channel: clap.Wildcard,
		Key:     clap.Wildcard,
	}
}

// Expression selects the dimension of a note expression.
type Expression int32

const (
	ExpressionVolume     = Expression(clap.NoteExpressionVolume)
	ExpressionPan        = Expression(clap.NoteExpressionPan)
	ExpressionTuning     = Expression(clap.NoteExpressionTuning)
	ExpressionVibrato    = Expression(clap.NoteExpressionVibrato)
	ExpressionExpression = Expression(clap.NoteExpressionExpression)
	ExpressionBrightness = Expression(clap.NoteExpressionBrightness)
	ExpressionPressure   = Expression(clap.NoteExpressionPressure)
)

func (e Expression) String() string {
	switch e {
	case ExpressionVolume:
		return "volume"
	case ExpressionPan:
		return "pan"
	case ExpressionTuning:
		return "tuning"
	case ExpressionVibrato:
		return "vibrato"
	case ExpressionExpression:
		return "expression"
	case ExpressionBrightness:
		return "brightness"
	case ExpressionPressure:
		return "pressure"
	}
	return "unknown"
}

// NoteExpression is a per-note continuous control value. Volume is linear
// gain in [0, 4], pan and the remaining dimensions are in [0, 1] except
// tuning, which is in semitones.
type NoteExpression struct {
	Offset     uint32
	NoteID     int32
	Port       int16
	Channel    int16
	Key        int16
	Expression Expression
	Value      float64
}

// Transport is a snapshot of the host's musical position for one block.
type Transport struct {
	Playing    bool
	Recording  bool
	LoopActive bool

	Tempo        float64
	TimeSigNum   uint16
	TimeSigDenom uint16

	SongPosBeats   float64
	SongPosSeconds float64

	LoopStartBeats   float64
	LoopEndBeats     float64
	LoopStartSeconds float64
	LoopEndSeconds   float64

	BarStart  float64
	BarNumber int32
}

// NewTransport returns a stopped transport at 120 BPM in 4/4.
func NewTransport() Transport {
	return Transport{
		Tempo:        120,
		TimeSigNum:   4,
		TimeSigDenom: 4,
	}
}

// Fill writes the raw fixed-point form of t into raw.
func (t *Transport) Fill(raw *clap.EventTransportInfo) {
	flags := clap.TransportHasTempo |
		clap.TransportHasBeatsTimeline |
		clap.TransportHasSecondsTimeline |
		clap.TransportHasTimeSignature
	if t.Playing {
		flags |= clap.TransportIsPlaying
	}
	if t.Recording {
		flags |= clap.TransportIsRecording
	}
	if t.LoopActive {
		flags |= clap.TransportIsLoopActive
	}

	*raw = clap.EventTransportInfo{
		Flags:            flags,
		SongPosBeats:     clap.BeatTime(t.SongPosBeats),
		SongPosSeconds:   clap.SecTime(t.SongPosSeconds),
		Tempo:            t.Tempo,
		LoopStartBeats:   clap.BeatTime(t.LoopStartBeats),
		LoopEndBeats:     clap.BeatTime(t.LoopEndBeats),
		LoopStartSeconds: clap.SecTime(t.LoopStartSeconds),
		LoopEndSeconds:   clap.SecTime(t.LoopEndSeconds),
		BarStart:         clap.BeatTime(t.BarStart),
		BarNumber:        t.BarNumber,
		TSigNum:          t.TimeSigNum,
		TSigDenom:        t.TimeSigDenom,
	}
}

// Advance moves the song position forward by frames at sampleRate when the
// transport is playing.
func (t *Transport) Advance(frames uint32, sampleRate float64) {
	if !t.Playing || sampleRate <= 0 {
		return
	}
	seconds := float64(frames) / sampleRate
	t.SongPosSeconds += seconds
	t.SongPosBeats += seconds * t.Tempo / 60
	if t.TimeSigNum > 0 && t.TimeSigDenom > 0 {
		beatsPerBar := float64(t.TimeSigNum) * 4 / float64(t.TimeSigDenom)
		for t.SongPosBeats >= t.BarStart+beatsPerBar {
			t.BarStart += beatsPerBar
			t.BarNumber++
		}
	}
}

// ProcessContext is the caller-built input of one block. The process driver
// only reads it.
type ProcessContext struct {
	MIDI            []midi.Event
	ParamChanges    []ParamChange
	NoteExpressions []NoteExpression
	Transport       *Transport
}

// Reset truncates every sequence, keeping capacity for the next block.
func (c *ProcessContext) Reset() {
	c.MIDI = c.MIDI[:0]
	c.ParamChanges = c.ParamChanges[:0]
	c.NoteExpressions = c.NoteExpressions[:0]
}

// Len returns the number of events in the context.
func (c *ProcessContext) Len() int {
	return len(c.MIDI) + len(c.ParamChanges) + len(c.NoteExpressions)
}

// Status is the outcome of one process call.
type Status int

const (
	StatusContinue Status = iota
	StatusSleep
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusContinue:
		return "continue"
	case StatusSleep:
		return "sleep"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// StatusFromRaw maps a plugin status code. Unknown codes are errors.
func StatusFromRaw(s clap.ProcessStatus) Status {
	switch s {
	case clap.ProcessContinue, clap.ProcessContinueIfNotQuiet, clap.ProcessTail:
		return StatusContinue
	case clap.ProcessSleep:
		return StatusSleep
	}
	return StatusError
}

// ProcessResult holds what the plugin produced during one block. Its slices
// are reused; contents are valid until the next process call.
type ProcessResult struct {
	MIDI            []midi.Event
	ParamChanges    []ParamChange
	NoteExpressions []NoteExpression
	Status          Status
}

// NewProcessResult returns a result whose sequences can each hold capacity
// events without growing.
func NewProcessResult(capacity int) *ProcessResult {
	return &ProcessResult{
		MIDI:            make([]midi.Event, 0, capacity),
		ParamChanges:    make([]ParamChange, 0, capacity),
		NoteExpressions: make([]NoteExpression, 0, capacity),
	}
}

// Reset truncates the result for reuse.
func (r *ProcessResult) Reset() {
	r.MIDI = r.MIDI[:0]
	r.ParamChanges = r.ParamChanges[:0]
	r.NoteExpressions = r.NoteExpressions[:0]
	r.Status = StatusContinue
}
