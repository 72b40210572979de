package events

import (
	"cmp"
	"errors"
	"slices"
	"testing"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/claphost/pkg/clap"
	"github.com/justyntemme/claphost/pkg/midi"
)

func encodedTypes(l *InputList) []clap.EventType {
	types := make([]clap.EventType, 0, l.Size())
	for i := uint32(0); i < l.Size(); i++ {
		types = append(types, l.Get(i).Type)
	}
	return types
}

func TestEncodeTieBreakOrder(t *testing.T) {
	b := NewBridge(16)
	ctx := &ProcessContext{
		MIDI: []midi.Event{
			midi.ControlChange(5, 0, midi.CCModWheel, 10),
			midi.NoteOn(0, 0, 60, 100),
		},
		ParamChanges: []ParamChange{
			NewParamChange(1, 0.5, 5),
		},
		NoteExpressions: []NoteExpression{
			{Offset: 5, NoteID: -1, Port: 0, Channel: 0, Key: 60, Expression: ExpressionTuning, Value: 0.25},
		},
	}

	list, err := b.Encode(ctx, 64)
	require.NoError(t, err)

	assert.Equal(t, []clap.EventType{
		clap.EventNoteOn,
		clap.EventParamValue,
		clap.EventNoteExpression,
		clap.EventMIDI,
	}, encodedTypes(list))

	for i := uint32(1); i < list.Size(); i++ {
		assert.LessOrEqual(t, list.Get(i-1).Time, list.Get(i).Time)
	}
}

func TestEncodePreservesSubmissionOrder(t *testing.T) {
	b := NewBridge(8)
	ctx := &ProcessContext{
		ParamChanges: []ParamChange{
			NewParamChange(7, 0.1, 20),
			NewParamChange(7, 0.9, 10),
			NewParamChange(7, 0.2, 20),
			NewParamChange(7, 0.3, 20),
		},
	}

	list, err := b.Encode(ctx, 32)
	require.NoError(t, err)
	require.EqualValues(t, 4, list.Size())

	var values []float64
	for i := uint32(0); i < list.Size(); i++ {
		values = append(values, list.Get(i).Value)
	}
	assert.Equal(t, []float64{0.9, 0.1, 0.2, 0.3}, values)
}

func TestLaterOffsetWins(t *testing.T) {
	b := NewBridge(8)
	ctx := &ProcessContext{
		ParamChanges: []ParamChange{
			NewParamChange(3, 0.8, 20),
			NewParamChange(3, 0.2, 10),
		},
	}

	list, err := b.Encode(ctx, 64)
	require.NoError(t, err)

	// Replay the stream the way a plugin does: the last applied value is
	// current once its offset has passed.
	current := map[uint32]float64{}
	for i := uint32(0); i < list.Size(); i++ {
		ev := list.Get(i)
		if ev.Time <= 20 {
			current[ev.ParamID] = ev.Value
		}
	}
	assert.Equal(t, 0.8, current[3])
}

func TestOverlappingNotesAreNotDeduplicated(t *testing.T) {
	b := NewBridge(8)
	ctx := &ProcessContext{
		MIDI: []midi.Event{
			midi.NoteOn(10, 0, 60, 100),
			midi.NoteOff(10, 0, 60, 0),
			midi.NoteOn(10, 0, 60, 90),
		},
	}

	list, err := b.Encode(ctx, 64)
	require.NoError(t, err)
	assert.Equal(t, []clap.EventType{clap.EventNoteOn, clap.EventNoteOff, clap.EventNoteOn}, encodedTypes(list))
}

func TestEncodeRejectsInvalidOffsets(t *testing.T) {
	tests := []struct {
		name string
		ctx  *ProcessContext
	}{
		{"midi at block size", &ProcessContext{MIDI: []midi.Event{midi.NoteOn(64, 0, 60, 1)}}},
		{"param past block", &ProcessContext{ParamChanges: []ParamChange{NewParamChange(1, 0, 100)}}},
		{"expression past block", &ProcessContext{NoteExpressions: []NoteExpression{{Offset: 65}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBridge(8)
			list, err := b.Encode(tt.ctx, 64)
			require.Error(t, err)
			assert.True(t, errors.Is(err, clap.ErrInvalidEventOffset))
			assert.Zero(t, list.Size())
		})
	}
}

func TestEncodeOverflow(t *testing.T) {
	b := NewBridge(2)
	ctx := &ProcessContext{
		MIDI: []midi.Event{
			midi.NoteOn(0, 0, 60, 1),
			midi.NoteOn(1, 0, 61, 1),
			midi.NoteOn(2, 0, 62, 1),
		},
	}

	_, err := b.Encode(ctx, 64)
	assert.ErrorIs(t, err, clap.ErrEventOverflow)
}

func TestEncodeNilContext(t *testing.T) {
	b := NewBridge(2)
	list, err := b.Encode(nil, 64)
	require.NoError(t, err)
	assert.Zero(t, list.Size())
	assert.Nil(t, b.Transport())
}

func TestRoundTrip(t *testing.T) {
	sysex := []byte{0xF0, 0x7E, 0x7F, 0x09, 0x01, 0xF7}
	ctx := &ProcessContext{
		MIDI: []midi.Event{
			midi.PitchBend(30, 2, -300),
			midi.NoteOn(0, 0, 60, 100),
			midi.NoteOff(40, 0, 60, 64),
			midi.ControlChange(12, 1, midi.CCSustain, 127),
			midi.ProgramChange(13, 9, 5),
			midi.ChannelPressure(14, 3, 80),
			midi.PolyPressure(15, 4, 62, 33),
			midi.SystemExclusive(16, sysex),
			midi.Clock(17),
		},
		ParamChanges: []ParamChange{
			NewParamChange(2, 0.75, 9),
			NewParamChange(1, -12.5, 1),
			{ParamID: 4, Value: 3, Offset: 11, NoteID: 5, Port: 0, Channel: 1, Key: 64},
		},
		NoteExpressions: []NoteExpression{
			{Offset: 20, NoteID: 5, Port: 0, Channel: 1, Key: 64, Expression: ExpressionPressure, Value: 0.4},
			{Offset: 2, NoteID: -1, Port: 0, Channel: 0, Key: 60, Expression: ExpressionVolume, Value: 2},
		},
	}

	b := NewBridge(32)
	list, err := b.Encode(ctx, 64)
	require.NoError(t, err)

	result := NewProcessResult(32)
	b.Decode(list, result)

	wantMIDI := slices.Clone(ctx.MIDI)
	slices.SortFunc(wantMIDI, func(a, b midi.Event) int { return cmp.Compare(a.Offset, b.Offset) })
	wantParams := slices.Clone(ctx.ParamChanges)
	slices.SortFunc(wantParams, func(a, b ParamChange) int { return cmp.Compare(a.Offset, b.Offset) })
	wantExpr := slices.Clone(ctx.NoteExpressions)
	slices.SortFunc(wantExpr, func(a, b NoteExpression) int { return cmp.Compare(a.Offset, b.Offset) })

	if diff := gocmp.Diff(wantMIDI, result.MIDI); diff != "" {
		t.Errorf("MIDI mismatch (-want +got):\n%s", diff)
	}
	if diff := gocmp.Diff(wantParams, result.ParamChanges); diff != "" {
		t.Errorf("param mismatch (-want +got):\n%s", diff)
	}
	if diff := gocmp.Diff(wantExpr, result.NoteExpressions); diff != "" {
		t.Errorf("expression mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeDropsUnknownEvents(t *testing.T) {
	out := NewOutputList(8, 64)
	require.True(t, out.TryPush(&clap.Event{Type: clap.EventNoteChoke, Key: 60}))
	require.True(t, out.TryPush(&clap.Event{Type: clap.EventParamGestureBegin, ParamID: 1}))
	require.True(t, out.TryPush(&clap.Event{Type: clap.EventType(99)}))
	require.True(t, out.TryPush(&clap.Event{SpaceID: 7, Type: clap.EventParamValue}))
	require.True(t, out.TryPush(&clap.Event{Type: clap.EventMIDI, MIDI: [3]byte{0xF4}}))
	require.True(t, out.TryPush(&clap.Event{Type: clap.EventNoteOn, Key: 200}))
	require.True(t, out.TryPush(&clap.Event{Time: 3, Type: clap.EventParamValue, ParamID: 9, Value: 1, NoteID: -1, PortIndex: -1, Channel: -1, Key: -1}))

	result := NewProcessResult(8)
	Decode(out, result)

	assert.Empty(t, result.MIDI)
	assert.Equal(t, []ParamChange{NewParamChange(9, 1, 3)}, result.ParamChanges)
}

func TestOutputListCopiesSysex(t *testing.T) {
	out := NewOutputList(4, 4)
	payload := []byte{0xF0, 0x01, 0xF7}
	require.True(t, out.TryPush(&clap.Event{Type: clap.EventMIDISysex, Sysex: payload}))
	payload[1] = 0x55

	assert.Equal(t, []byte{0xF0, 0x01, 0xF7}, out.Get(0).Sysex)
	assert.False(t, out.TryPush(&clap.Event{Type: clap.EventMIDISysex, Sysex: []byte{1, 2}}), "arena should be full")
}

func TestOutputListCapacity(t *testing.T) {
	out := NewOutputList(1, 0)
	assert.True(t, out.TryPush(&clap.Event{Type: clap.EventNoteOn}))
	assert.False(t, out.TryPush(&clap.Event{Type: clap.EventNoteOn}))
	assert.False(t, out.TryPush(nil))
	out.Reset()
	assert.Zero(t, out.Size())
	assert.Nil(t, out.Get(0))
}

func TestEncodeTransport(t *testing.T) {
	tr := NewTransport()
	tr.Playing = true
	tr.SongPosBeats = 2

	b := NewBridge(4)
	_, err := b.Encode(&ProcessContext{Transport: &tr}, 64)
	require.NoError(t, err)

	raw := b.Transport()
	require.NotNil(t, raw)
	assert.Equal(t, 120.0, raw.Tempo)
	assert.EqualValues(t, 4, raw.TSigNum)
	assert.EqualValues(t, 4, raw.TSigDenom)
	assert.Equal(t, 2*clap.BeatTimeFactor, raw.SongPosBeats)
	assert.NotZero(t, raw.Flags&clap.TransportIsPlaying)
	assert.Zero(t, raw.Flags&clap.TransportIsRecording)
}

func TestTransportAdvance(t *testing.T) {
	tr := NewTransport()
	tr.Advance(48000, 48000)
	assert.Zero(t, tr.SongPosSeconds, "stopped transport must not move")

	tr.Playing = true
	tr.Advance(48000*2, 48000)
	assert.InDelta(t, 2.0, tr.SongPosSeconds, 1e-9)
	assert.InDelta(t, 4.0, tr.SongPosBeats, 1e-9)
	assert.EqualValues(t, 1, tr.BarNumber)
	assert.InDelta(t, 4.0, tr.BarStart, 1e-9)
}

func TestStatusFromRaw(t *testing.T) {
	tests := []struct {
		raw  clap.ProcessStatus
		want Status
	}{
		{clap.ProcessContinue, StatusContinue},
		{clap.ProcessContinueIfNotQuiet, StatusContinue},
		{clap.ProcessTail, StatusContinue},
		{clap.ProcessSleep, StatusSleep},
		{clap.ProcessError, StatusError},
		{clap.ProcessStatus(42), StatusError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFromRaw(tt.raw), "raw status %d", tt.raw)
	}
}

func TestEncodeDecodeDoesNotAllocate(t *testing.T) {
	b := NewBridge(16)
	result := NewProcessResult(16)
	ctx := &ProcessContext{
		MIDI:         []midi.Event{midi.NoteOn(3, 0, 60, 100), midi.PitchBend(1, 0, 200)},
		ParamChanges: []ParamChange{NewParamChange(1, 0.5, 2)},
	}

	allocs := testing.AllocsPerRun(100, func() {
		list, err := b.Encode(ctx, 64)
		if err != nil {
			t.Fatal(err)
		}
		result.Reset()
		b.Decode(list, result)
	})
	assert.Zero(t, allocs)
}
