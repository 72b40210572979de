package host

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/claphost/pkg/bus"
	"github.com/justyntemme/claphost/pkg/clap"
	"github.com/justyntemme/claphost/pkg/events"
	"github.com/justyntemme/claphost/pkg/ext"
	"github.com/justyntemme/claphost/pkg/process"
	"github.com/justyntemme/claphost/pkg/refplug"
)

func fill(chs [][]float32, v float32) {
	for _, ch := range chs {
		for i := range ch {
			ch[i] = v
		}
	}
}

func TestParamsThroughInstance(t *testing.T) {
	in := newRef(t, refplug.GainID)
	reg, err := in.Params()
	require.NoError(t, err)

	infos, err := reg.All()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.True(t, infos[1].IsBypass())

	require.NoError(t, reg.SetValue(refplug.GainLevel, -6))
	v, err := reg.Value(refplug.GainLevel)
	require.NoError(t, err)
	assert.Equal(t, -6.0, v)

	n, err := in.Poll()
	require.NoError(t, err)
	assert.True(t, n.StateDirty, "gain marks its state dirty on flush")

	text, err := reg.ValueText(refplug.GainLevel, -6)
	require.NoError(t, err)
	assert.Equal(t, "-6.0 dB", text)
	on, err := reg.TextValue(refplug.GainBypass, "on")
	require.NoError(t, err)
	assert.Equal(t, 1.0, on)

	require.NoError(t, in.Activate(44100, 1, 64))
	require.NoError(t, in.StartProcessing())

	require.NoError(t, reg.SetValue(refplug.GainLevel, -20))
	assert.Equal(t, 1, reg.Pending(), "queued while processing")

	buffers := process.NewBuffers(2, 2, 64)
	fill(buffers.Inputs, 1)
	_, err = in.Process(buffers, nil)
	require.NoError(t, err)
	assert.Zero(t, reg.Pending())
	assert.InDelta(t, 0.1, buffers.Outputs[0][0], 1e-6)

	require.NoError(t, reg.ScheduleChange(refplug.GainLevel, 0, 32))
	_, err = in.Process(buffers, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, buffers.Outputs[1][31], 1e-6)
	assert.Equal(t, float32(1), buffers.Outputs[1][32])

	require.NoError(t, reg.ScheduleChange(refplug.GainLevel, -6, 500))
	_, err = in.Process(buffers, nil)
	assert.ErrorIs(t, err, clap.ErrInvalidEventOffset)
}

func TestStateThroughInstance(t *testing.T) {
	in := newRef(t, refplug.GainID)
	reg, err := in.Params()
	require.NoError(t, err)
	exts, err := in.Extensions()
	require.NoError(t, err)
	require.NotNil(t, exts.State)
	assert.True(t, exts.State.SupportsContext())

	require.NoError(t, reg.Set(refplug.GainLevel, -12).Set(refplug.GainBypass, 1).Err())
	preset, err := exts.State.Save(ext.ContextPreset)
	require.NoError(t, err)
	project, err := exts.State.Save(ext.ContextProject)
	require.NoError(t, err)

	require.NoError(t, reg.Set(refplug.GainLevel, 0).Set(refplug.GainBypass, 0).Err())
	require.NoError(t, exts.State.Load(preset))
	level, _ := reg.Value(refplug.GainLevel)
	bypass, _ := reg.Value(refplug.GainBypass)
	assert.Equal(t, []float64{-12, 0}, []float64{level, bypass})

	require.NoError(t, exts.State.Load(project))
	bypass, _ = reg.Value(refplug.GainBypass)
	assert.Equal(t, 1.0, bypass)

	assert.NoError(t, exts.State.Load(ext.StateBlob{}), "empty blob is a no-op")
	err = exts.State.Load(ext.StateBlob{Data: []byte("garbage")})
	assert.ErrorIs(t, err, clap.ErrState)
}

func TestEditorThroughInstance(t *testing.T) {
	in := newRef(t, refplug.SynthID)
	exts, err := in.Extensions()
	require.NoError(t, err)
	require.NotNil(t, exts.Editor)
	assert.Nil(t, exts.Latency, "the synth reports no latency")
	require.NotNil(t, exts.Tail)

	size, err := exts.Editor.Open(clap.Window{API: clap.WindowAPIX11, Handle: 0x1234})
	require.NoError(t, err)
	assert.Equal(t, ext.EditorSize{Width: 640, Height: 400}, size)

	_, err = exts.Editor.Open(clap.Window{API: clap.WindowAPIX11})
	assert.ErrorIs(t, err, clap.ErrEditorAlreadyOpen)

	size, err = exts.Editor.Resize(100, 100)
	require.NoError(t, err)
	assert.Equal(t, ext.EditorSize{Width: 200, Height: 200}, size, "plugin clamps the request")

	require.NoError(t, exts.Editor.Close())
	assert.ErrorIs(t, exts.Editor.Close(), clap.ErrEditorClosed)

	_, err = exts.Editor.Open(clap.Window{API: clap.WindowAPIX11})
	require.NoError(t, err)
	require.NoError(t, in.Destroy(), "destroy closes the open editor")
}

func TestPortConfigThroughInstance(t *testing.T) {
	in := newRef(t, refplug.GainID)
	exts, err := in.Extensions()
	require.NoError(t, err)
	require.NotNil(t, exts.AudioPortsConfig)
	require.NotNil(t, exts.Render)
	assert.Nil(t, exts.VoiceInfo, "gain has no voices")

	require.NoError(t, in.Activate(44100, 1, 64))
	assert.ErrorIs(t, exts.AudioPortsConfig.Select(refplug.GainMono), clap.ErrInvalidState)
	layout, err := in.Layout()
	require.NoError(t, err)
	assert.Equal(t, 2, layout.Channels(bus.Output))

	require.NoError(t, in.Deactivate())
	require.NoError(t, exts.AudioPortsConfig.Select(refplug.GainMono))
	require.NoError(t, in.Activate(44100, 1, 64))
	layout, err = in.Layout()
	require.NoError(t, err)
	assert.Equal(t, 1, layout.Channels(bus.Input), "the selection applies at the next activation")
	assert.Equal(t, 1, layout.Channels(bus.Output))
}

func TestSynthVoicesThroughInstance(t *testing.T) {
	in := newRef(t, refplug.SynthID)
	exts, err := in.Extensions()
	require.NoError(t, err)
	require.NotNil(t, exts.VoiceInfo)
	require.NotNil(t, exts.NoteNames)

	voices, err := exts.VoiceInfo.Get()
	require.NoError(t, err)
	assert.EqualValues(t, refplug.SynthVoices, voices.Capacity)

	names, err := exts.NoteNames.List()
	require.NoError(t, err)
	assert.Len(t, names, 2)

	f := newFake()
	fake := createFake(t, f)
	f.host.GetExtension(clap.ExtVoiceInfo).(*clap.HostVoiceInfo).Changed()
	f.host.GetExtension(clap.ExtNoteName).(*clap.HostNoteName).Changed()
	f.host.GetExtension(clap.ExtAudioPortsCfg).(*clap.HostAudioPortsConfig).Rescan()
	n, err := fake.Poll()
	require.NoError(t, err)
	assert.True(t, n.VoiceInfoChanged)
	assert.True(t, n.NoteNamesChanged)
	assert.True(t, n.AudioPortsConfigRescan)
}

func TestPollHandlesPluginRequests(t *testing.T) {
	f := newFake()
	f.exts[clap.ExtParams] = &clap.PluginParams{
		Count: func() uint32 { return 1 },
		GetInfo: func(i uint32, info *clap.ParamInfo) bool {
			*info = clap.ParamInfo{ID: 1, Name: "Level", MaxValue: 1, DefaultValue: 0.5}
			return i == 0
		},
		GetValue: func(uint32, *float64) bool { return false },
		Flush: func(_ clap.InputEvents, out clap.OutputEvents) {
			out.TryPush(&clap.Event{Type: clap.EventParamValue, ParamID: 1, Value: 0.75,
				NoteID: clap.Wildcard, PortIndex: clap.Wildcard, Channel: clap.Wildcard, Key: clap.Wildcard})
		},
	}
	in := createFake(t, f)
	reg, err := in.Params()
	require.NoError(t, err)

	v, _ := reg.Value(1)
	assert.Equal(t, 0.5, v, "default until the plugin reports")

	hp := f.host.GetExtension(clap.ExtParams).(*clap.HostParams)
	hp.RequestFlush()
	hp.Rescan(clap.ParamRescanValues)
	f.host.GetExtension(clap.ExtGUI).(*clap.HostGUI).RequestResize(300, 200)
	f.host.GetExtension(clap.ExtLatency).(*clap.HostLatency).Changed()
	f.host.RequestRestart()

	n, err := in.Poll()
	require.NoError(t, err)
	assert.True(t, n.ParamFlush)
	assert.True(t, n.Restart)
	assert.True(t, n.LatencyChanged)
	assert.True(t, n.GUIResizeRequested)
	assert.Equal(t, ext.EditorSize{Width: 300, Height: 200}, n.GUIResize)
	assert.Equal(t, clap.ParamRescanValues, n.ParamRescan)
	assert.False(t, reg.Stale(), "value rescans keep the set")

	v, _ = reg.Value(1)
	assert.Equal(t, 0.75, v, "flush output is observed")

	hp.Rescan(clap.ParamRescanInfo)
	assert.True(t, reg.Stale())
	_, err = in.Poll()
	require.NoError(t, err)
	_, err = reg.Value(1)
	assert.ErrorIs(t, err, clap.ErrStaleParameterSet)
	_, err = reg.Enumerate()
	require.NoError(t, err)

	n, err = in.Poll()
	require.NoError(t, err)
	assert.True(t, n.Empty())
}

func TestRescanInvalidatesBeforePoll(t *testing.T) {
	f := newFake()
	f.exts[clap.ExtParams] = &clap.PluginParams{
		Count: func() uint32 { return 1 },
		GetInfo: func(i uint32, info *clap.ParamInfo) bool {
			*info = clap.ParamInfo{ID: 1, Name: "Level", MaxValue: 1}
			return i == 0
		},
		GetValue: func(uint32, *float64) bool { return false },
		Flush:    func(clap.InputEvents, clap.OutputEvents) {},
	}
	in := createFake(t, f)
	reg, err := in.Params()
	require.NoError(t, err)

	hp := f.host.GetExtension(clap.ExtParams).(*clap.HostParams)
	hp.Rescan(clap.ParamRescanAll)

	assert.True(t, reg.Stale())
	_, err = reg.Value(1)
	assert.ErrorIs(t, err, clap.ErrStaleParameterSet)
	assert.ErrorIs(t, reg.SetValue(1, 0.5), clap.ErrStaleParameterSet)

	_, err = reg.Enumerate()
	require.NoError(t, err)
	require.NoError(t, reg.SetValue(1, 0.5))

	n, err := in.Poll()
	require.NoError(t, err)
	assert.Equal(t, clap.ParamRescanAll, n.ParamRescan, "the request is still reported")
	assert.False(t, reg.Stale(), "polling does not undo a later enumerate")
}

func TestHostTable(t *testing.T) {
	f := newFake()
	info := Info{Name: "test host", Vendor: "tests", URL: "https://example.com", Version: "9.9"}
	var logs bytes.Buffer
	in := createFake(t, f, WithInfo(info), WithLogger(zerolog.New(&logs)))

	assert.Equal(t, "test host", f.host.Name)
	assert.Equal(t, "9.9", f.host.HostVer)
	assert.True(t, f.host.Version.Compatible())
	assert.Nil(t, f.host.GetExtension("clap.unknown"))

	tc := f.host.GetExtension(clap.ExtThreadCheck).(*clap.HostThreadCheck)
	assert.True(t, tc.IsMainThread())
	assert.False(t, tc.IsAudioThread())

	var duringProcess [2]bool
	f.process = func(*clap.Process) clap.ProcessStatus {
		duringProcess = [2]bool{tc.IsMainThread(), tc.IsAudioThread()}
		return clap.ProcessSleep
	}
	require.NoError(t, in.Activate(44100, 1, 64))
	require.NoError(t, in.StartProcessing())
	res, err := in.Process(process.NewBuffers(2, 2, 64), nil)
	require.NoError(t, err)
	assert.Equal(t, events.StatusSleep, res.Status)
	assert.Equal(t, [2]bool{false, true}, duringProcess)

	f.host.GetExtension(clap.ExtLog).(*clap.HostLog).Log(clap.LogWarning, "hello from the plugin")
	assert.Contains(t, logs.String(), "hello from the plugin")
	assert.Contains(t, logs.String(), in.ID().String())
}
