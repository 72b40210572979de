package process

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/claphost/pkg/bus"
	"github.com/justyntemme/claphost/pkg/clap"
	"github.com/justyntemme/claphost/pkg/events"
	"github.com/justyntemme/claphost/pkg/midi"
)

// recorder is a plugin that copies its input events, writes a constant to
// every output channel and echoes note events back.
type recorder struct {
	seen      []clap.Event
	frames    uint32
	steady    []int64
	transport *clap.EventTransportInfo
	status    clap.ProcessStatus
	got64     bool
	echo      bool
}

func (r *recorder) plugin() *clap.Plugin {
	return &clap.Plugin{
		Process: func(p *clap.Process) clap.ProcessStatus {
			r.seen = r.seen[:0]
			for i := uint32(0); i < p.InEvents.Size(); i++ {
				ev := p.InEvents.Get(i)
				r.seen = append(r.seen, *ev)
				if r.echo {
					p.OutEvents.TryPush(ev)
				}
			}
			r.frames = p.FramesCount
			r.steady = append(r.steady, p.SteadyTime)
			r.transport = p.Transport
			for _, out := range p.AudioOutputs {
				r.got64 = out.Data64 != nil
				for _, ch := range out.Data32 {
					for i := uint32(0); i < p.FramesCount; i++ {
						ch[i] = 0.5
					}
				}
				for _, ch := range out.Data64 {
					for i := uint32(0); i < p.FramesCount; i++ {
						ch[i] = 0.25
					}
				}
			}
			return r.status
		},
	}
}

func newRecorder() *recorder {
	return &recorder{status: clap.ProcessContinue, seen: make([]clap.Event, 0, 64), steady: make([]int64, 0, 1024)}
}

func TestProcessNoteOnAtBlockStart(t *testing.T) {
	rec := newRecorder()
	d := NewDriver(bus.Stereo(), 44100, 512, 64)
	buf := NewBuffers(2, 2, 512)

	ctx := &events.ProcessContext{
		MIDI: []midi.Event{midi.NoteOn(0, 0, 60, 100)},
	}
	result, err := d.Process(rec.plugin(), buf, ctx)
	require.NoError(t, err)
	assert.Equal(t, events.StatusContinue, result.Status)

	require.Len(t, rec.seen, 1)
	ev := rec.seen[0]
	assert.Equal(t, clap.EventNoteOn, ev.Type)
	assert.Equal(t, uint32(0), ev.Time)
	assert.Equal(t, int16(60), ev.Key)
	assert.Equal(t, int32(-1), ev.NoteID)
	assert.InDelta(t, 100.0/127.0, ev.Velocity, 1e-9)
	assert.Equal(t, uint32(512), rec.frames)
	assert.Equal(t, float32(0.5), buf.Outputs[1][511])
}

func TestProcessDecodesOutput(t *testing.T) {
	rec := newRecorder()
	rec.echo = true
	d := NewDriver(bus.Stereo(), 48000, 128, 16)

	ctx := &events.ProcessContext{
		MIDI:         []midi.Event{midi.NoteOn(3, 1, 64, 127), midi.ControlChange(5, 1, midi.CCModWheel, 10)},
		ParamChanges: []events.ParamChange{events.NewParamChange(7, 0.25, 3)},
	}
	result, err := d.Process(rec.plugin(), NewBuffers(2, 2, 128), ctx)
	require.NoError(t, err)

	require.Len(t, result.ParamChanges, 1)
	assert.Equal(t, uint32(7), result.ParamChanges[0].ParamID)
	require.Len(t, result.MIDI, 2)
	assert.Equal(t, midi.NoteOn(3, 1, 64, 127), result.MIDI[0])
	assert.Equal(t, midi.ControlChange(5, 1, midi.CCModWheel, 10), result.MIDI[1])
}

func TestProcessStatusMapping(t *testing.T) {
	tests := []struct {
		raw     clap.ProcessStatus
		want    events.Status
		wantErr bool
	}{
		{clap.ProcessContinue, events.StatusContinue, false},
		{clap.ProcessContinueIfNotQuiet, events.StatusContinue, false},
		{clap.ProcessTail, events.StatusContinue, false},
		{clap.ProcessSleep, events.StatusSleep, false},
		{clap.ProcessError, events.StatusError, true},
		{clap.ProcessStatus(42), events.StatusError, true},
	}

	for _, tt := range tests {
		rec := newRecorder()
		rec.status = tt.raw
		d := NewDriver(bus.Stereo(), 44100, 64, 8)

		result, err := d.Process(rec.plugin(), NewBuffers(2, 2, 64), nil)
		require.NotNil(t, result)
		assert.Equal(t, tt.want, result.Status, "status %d", tt.raw)
		if tt.wantErr {
			assert.ErrorIs(t, err, clap.ErrProcess)
		} else {
			assert.NoError(t, err)
		}
	}
}

func TestProcessValidatesBuffers(t *testing.T) {
	layout64 := bus.NewBuilder().WithStereoInput("In").WithStereoOutput("Out").With64Bit().MustBuild()

	tests := []struct {
		name    string
		layout  bus.Layout
		buffers *Buffers
	}{
		{"nil buffers", bus.Stereo(), nil},
		{"zero frames", bus.Stereo(), NewBuffers(2, 2, 0)},
		{"too many frames", bus.Stereo(), NewBuffers(2, 2, 257)},
		{"missing input", bus.Stereo(), NewBuffers(1, 2, 64)},
		{"extra output", bus.Stereo(), NewBuffers(2, 3, 64)},
		{"short channel", bus.Stereo(), &Buffers{
			Inputs:  [][]float32{make([]float32, 64), make([]float32, 32)},
			Outputs: [][]float32{make([]float32, 64), make([]float32, 64)},
			Frames:  64,
		}},
		{"64-bit unsupported", bus.Stereo(), &Buffers{
			Inputs64:  [][]float64{make([]float64, 64), make([]float64, 64)},
			Outputs64: [][]float64{make([]float64, 64), make([]float64, 64)},
			Frames:    64,
		}},
		{"mixed formats", layout64, &Buffers{
			Inputs:    [][]float32{make([]float32, 64), make([]float32, 64)},
			Outputs64: [][]float64{make([]float64, 64), make([]float64, 64)},
			Frames:    64,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecorder()
			d := NewDriver(tt.layout, 44100, 256, 8)

			_, err := d.Process(rec.plugin(), tt.buffers, nil)
			assert.ErrorIs(t, err, clap.ErrBufferLayout)
			assert.Empty(t, rec.steady, "plugin must not be called")
			assert.Zero(t, d.SteadyTime())
		})
	}
}

func TestProcess64Bit(t *testing.T) {
	rec := newRecorder()
	layout := bus.NewBuilder().WithStereoInput("In").WithStereoOutput("Out").With64Bit().MustBuild()
	d := NewDriver(layout, 96000, 64, 8)

	buf := &Buffers{
		Inputs64:  [][]float64{make([]float64, 64), make([]float64, 64)},
		Outputs64: [][]float64{make([]float64, 64), make([]float64, 64)},
		Frames:    64,
	}
	_, err := d.Process(rec.plugin(), buf, nil)
	require.NoError(t, err)
	assert.True(t, rec.got64)
	assert.Equal(t, 0.25, buf.Outputs64[0][63])
}

func TestProcessMultiPortMapping(t *testing.T) {
	layout := bus.NewBuilder().WithStereoInput("In").WithMonoInput("Side").WithStereoOutput("Out").MustBuild()
	d := NewDriver(layout, 44100, 32, 8)

	var sidechain []float32
	plugin := &clap.Plugin{Process: func(p *clap.Process) clap.ProcessStatus {
		sidechain = p.AudioInputs[1].Data32[0]
		return clap.ProcessContinue
	}}

	buf := NewBuffers(3, 2, 32)
	buf.Inputs[2][0] = 1
	_, err := d.Process(plugin, buf, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(1), sidechain[0])
}

func TestProcessRejectsBadEvents(t *testing.T) {
	rec := newRecorder()
	d := NewDriver(bus.Stereo(), 44100, 64, 2)

	ctx := &events.ProcessContext{MIDI: []midi.Event{midi.NoteOn(64, 0, 60, 100)}}
	_, err := d.Process(rec.plugin(), NewBuffers(2, 2, 64), ctx)
	assert.ErrorIs(t, err, clap.ErrInvalidEventOffset)

	ctx = &events.ProcessContext{MIDI: []midi.Event{
		midi.NoteOn(0, 0, 60, 100), midi.NoteOn(1, 0, 61, 100), midi.NoteOn(2, 0, 62, 100),
	}}
	_, err = d.Process(rec.plugin(), NewBuffers(2, 2, 64), ctx)
	assert.ErrorIs(t, err, clap.ErrEventOverflow)
	assert.Empty(t, rec.steady)
}

func TestProcessSteadyTimeAndTransport(t *testing.T) {
	rec := newRecorder()
	d := NewDriver(bus.Stereo(), 44100, 256, 8)
	buf := NewBuffers(2, 2, 256)

	tr := events.NewTransport()
	tr.Playing = true
	ctx := &events.ProcessContext{Transport: &tr}

	for i := 0; i < 3; i++ {
		buf.Frames = uint32(100 + i)
		_, err := d.Process(rec.plugin(), buf, ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{0, 100, 201}, rec.steady)
	assert.Equal(t, int64(303), d.SteadyTime())
	require.NotNil(t, rec.transport)
	assert.InDelta(t, 120, rec.transport.Tempo, 1e-9)

	_, err := d.Process(rec.plugin(), buf, &events.ProcessContext{})
	require.NoError(t, err)
	assert.Nil(t, rec.transport)

	d.Reset()
	assert.Zero(t, d.SteadyTime())
}

func TestProcessMissingFunction(t *testing.T) {
	d := NewDriver(bus.Stereo(), 44100, 64, 8)
	_, err := d.Process(&clap.Plugin{}, NewBuffers(2, 2, 64), nil)
	assert.True(t, errors.Is(err, clap.ErrInstanceFailed))
}

func TestProcessDoesNotAllocate(t *testing.T) {
	rec := newRecorder()
	p := rec.plugin()
	d := NewDriver(bus.Stereo(), 44100, 512, 64)
	buf := NewBuffers(2, 2, 512)
	tr := events.NewTransport()
	ctx := &events.ProcessContext{
		MIDI:         []midi.Event{midi.NoteOn(0, 0, 60, 100), midi.NoteOff(256, 0, 60, 0)},
		ParamChanges: []events.ParamChange{events.NewParamChange(1, 0.5, 128)},
		Transport:    &tr,
	}
	rec.echo = true

	// Warm up so the recorder's own slices have grown.
	for i := 0; i < 4; i++ {
		_, err := d.Process(p, buf, ctx)
		require.NoError(t, err)
	}
	rec.steady = rec.steady[:0]

	allocs := testing.AllocsPerRun(100, func() {
		if _, err := d.Process(p, buf, ctx); err != nil {
			t.Fatal(err)
		}
	})
	assert.Zero(t, allocs)
}
