package ext

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/claphost/pkg/clap"
)

// fakePlugin serves extension tables from a map and counts lookups.
type fakePlugin struct {
	exts    map[string]any
	lookups map[string]int
}

func newFakePlugin(exts map[string]any) (*clap.Plugin, *fakePlugin) {
	f := &fakePlugin{exts: exts, lookups: map[string]int{}}
	return &clap.Plugin{
		GetExtension: func(id string) any {
			f.lookups[id]++
			return f.exts[id]
		},
	}, f
}

func TestNegotiateUnsupportedIsNotAnError(t *testing.T) {
	p, _ := newFakePlugin(nil)
	n := NewNegotiator(p, nil)

	_, ok := n.Negotiate("unsupported.extension.id")
	assert.False(t, ok)

	_, ok = n.Negotiate(clap.ExtState)
	assert.False(t, ok)

	s, ok := NewState(n)
	assert.False(t, ok)
	assert.Nil(t, s)
	assert.Empty(t, n.Supported())
}

func TestNegotiateCachesAnswers(t *testing.T) {
	latency := &clap.PluginLatency{Get: func() uint32 { return 64 }}
	p, f := newFakePlugin(map[string]any{clap.ExtLatency: latency})
	n := NewNegotiator(p, nil)

	for i := 0; i < 3; i++ {
		h, ok := n.Negotiate(clap.ExtLatency)
		require.True(t, ok)
		assert.Equal(t, MainThreadOnly, h.Threading)
		assert.Same(t, latency, h.Raw())
		_, ok = n.Negotiate(clap.ExtGUI)
		assert.False(t, ok)
	}

	assert.Equal(t, 1, f.lookups[clap.ExtLatency])
	assert.Equal(t, 1, f.lookups[clap.ExtGUI])
	assert.Equal(t, []string{clap.ExtLatency}, n.Supported())
}

func TestNegotiateTypedNil(t *testing.T) {
	var state *clap.PluginState
	p, _ := newFakePlugin(map[string]any{clap.ExtState: state})
	n := NewNegotiator(p, nil)

	_, ok := n.Negotiate(clap.ExtState)
	assert.False(t, ok)
}

func TestNegotiateWithoutGetExtension(t *testing.T) {
	n := NewNegotiator(&clap.Plugin{}, nil)
	_, ok := n.Negotiate(clap.ExtParams)
	assert.False(t, ok)
}

func TestThreadingTags(t *testing.T) {
	assert.Equal(t, AudioThreadSafe, ThreadingOf(clap.ExtTail))
	assert.Equal(t, MainThreadOnly, ThreadingOf(clap.ExtState))
	assert.Equal(t, MainThreadOnly, ThreadingOf(clap.ExtGUI))
	assert.Equal(t, MainThreadOnly, ThreadingOf("vendor.unknown"))
}

func TestMalformedTableIsUnsupported(t *testing.T) {
	p, _ := newFakePlugin(map[string]any{
		clap.ExtParams: &clap.PluginParams{Count: func() uint32 { return 0 }},
		clap.ExtGUI:    &clap.PluginState{},
	})
	n := NewNegotiator(p, nil)

	_, ok := NewParams(n)
	assert.False(t, ok)
	_, ok = NewEditor(n)
	assert.False(t, ok)
	_, ok = n.Negotiate(clap.ExtParams)
	assert.False(t, ok, "rejected tables stay unsupported")
}

type memoryState struct {
	data     []byte
	lastCtx  uint32
	rejectIt bool
}

func (m *memoryState) plain() *clap.PluginState {
	return &clap.PluginState{
		Save: func(s *clap.OutputStream) bool {
			_, err := clap.NewStreamWriter(s).Write(m.data)
			return err == nil
		},
		Load: func(s *clap.InputStream) bool {
			if m.rejectIt {
				return false
			}
			data, err := clap.NewStreamReader(s).ReadAll()
			m.data = data
			return err == nil
		},
	}
}

func (m *memoryState) withContext() *clap.PluginStateContext {
	plain := m.plain()
	return &clap.PluginStateContext{
		Save: func(s *clap.OutputStream, ctx uint32) bool {
			m.lastCtx = ctx
			return plain.Save(s)
		},
		Load: func(s *clap.InputStream, ctx uint32) bool {
			m.lastCtx = ctx
			return plain.Load(s)
		},
	}
}

func TestStateSaveLoad(t *testing.T) {
	mem := &memoryState{data: []byte("preset-a")}
	p, _ := newFakePlugin(map[string]any{clap.ExtState: mem.plain()})
	n := NewNegotiator(p, nil)

	s, ok := NewState(n)
	require.True(t, ok)
	assert.False(t, s.SupportsContext())

	blob, err := s.Save(ContextPreset)
	require.NoError(t, err)
	assert.Equal(t, []byte("preset-a"), blob.Data)
	assert.Equal(t, ContextPreset, blob.Context)

	require.NoError(t, s.Load(StateBlob{Data: []byte("preset-b")}))
	assert.Equal(t, []byte("preset-b"), mem.data)

	require.NoError(t, s.Load(StateBlob{}), "empty blob is a no-op")
	assert.Equal(t, []byte("preset-b"), mem.data)

	mem.rejectIt = true
	err = s.Load(StateBlob{Data: []byte("garbage")})
	assert.ErrorIs(t, err, clap.ErrState)
}

func TestStateContextPreferred(t *testing.T) {
	mem := &memoryState{data: []byte{1, 2, 3}}
	p, _ := newFakePlugin(map[string]any{
		clap.ExtState:        mem.plain(),
		clap.ExtStateContext: mem.withContext(),
	})
	n := NewNegotiator(p, nil)

	s, ok := NewState(n)
	require.True(t, ok)
	require.True(t, s.SupportsContext())

	blob, err := s.Save(ContextDuplicate)
	require.NoError(t, err)
	assert.Equal(t, clap.StateContextForDuplicate, mem.lastCtx)

	require.NoError(t, s.Load(StateBlob{Data: blob.Data, Context: ContextProject}))
	assert.Equal(t, clap.StateContextForProject, mem.lastCtx)
}

func TestStateSaveFailure(t *testing.T) {
	p, _ := newFakePlugin(map[string]any{clap.ExtState: &clap.PluginState{
		Save: func(*clap.OutputStream) bool { return false },
		Load: func(*clap.InputStream) bool { return true },
	}})
	s, ok := NewState(NewNegotiator(p, nil))
	require.True(t, ok)

	_, err := s.Save(ContextProject)
	assert.ErrorIs(t, err, clap.ErrState)
}

func TestMainThreadCallsFailDuringProcess(t *testing.T) {
	mem := &memoryState{}
	guard := &Guard{}
	p, _ := newFakePlugin(map[string]any{
		clap.ExtState:   mem.plain(),
		clap.ExtLatency: &clap.PluginLatency{Get: func() uint32 { return 0 }},
		clap.ExtTail:    &clap.PluginTail{Get: func() uint32 { return 10 }},
	})
	n := NewNegotiator(p, guard)
	s, _ := NewState(n)
	l, _ := NewLatency(n)
	tail, _ := NewTail(n)

	require.True(t, guard.Enter())
	assert.False(t, guard.Enter(), "nested process must be detected")

	_, err := s.Save(ContextProject)
	assert.ErrorIs(t, err, clap.ErrThreadingViolation)
	_, err = l.Samples()
	assert.ErrorIs(t, err, clap.ErrThreadingViolation)
	samples, err := tail.Samples()
	assert.NoError(t, err, "tail is audio-thread safe")
	assert.EqualValues(t, 10, samples)

	guard.Exit()
	_, err = s.Save(ContextProject)
	assert.NoError(t, err)
}

func TestWrappersFailAfterDestroy(t *testing.T) {
	mem := &memoryState{data: []byte("kept")}
	g := &fakeGUI{}
	guard := &Guard{}
	getValue := 0
	p, _ := newFakePlugin(map[string]any{
		clap.ExtState:   mem.plain(),
		clap.ExtGUI:     g.table(),
		clap.ExtLatency: &clap.PluginLatency{Get: func() uint32 { return 0 }},
		clap.ExtTail:    &clap.PluginTail{Get: func() uint32 { return 10 }},
		clap.ExtParams: &clap.PluginParams{
			Count:    func() uint32 { return 1 },
			GetInfo:  func(uint32, *clap.ParamInfo) bool { return true },
			GetValue: func(uint32, *float64) bool { getValue++; return true },
		},
	})
	n := NewNegotiator(p, guard)
	s, _ := NewState(n)
	e, _ := NewEditor(n)
	l, _ := NewLatency(n)
	tail, _ := NewTail(n)
	params, _ := NewParams(n)

	guard.Destroy()
	assert.True(t, guard.Destroyed())

	_, err := s.Save(ContextProject)
	assert.ErrorIs(t, err, clap.ErrUseAfterDestroy)
	assert.ErrorIs(t, s.Load(StateBlob{Data: []byte("new")}), clap.ErrUseAfterDestroy)
	_, err = e.Open(clap.Window{API: clap.WindowAPIX11})
	assert.ErrorIs(t, err, clap.ErrUseAfterDestroy)
	_, err = l.Samples()
	assert.ErrorIs(t, err, clap.ErrUseAfterDestroy)
	_, err = tail.Samples()
	assert.ErrorIs(t, err, clap.ErrUseAfterDestroy)
	assert.False(t, tail.Infinite())
	_, _, err = params.Value(1)
	assert.ErrorIs(t, err, clap.ErrUseAfterDestroy)

	assert.Equal(t, []byte("kept"), mem.data)
	assert.Zero(t, g.created)
	assert.Zero(t, getValue)
}

type fakeGUI struct {
	created, destroyed, shown, hidden int
	parent                            clap.Window
	refuseParent                      bool
	size                              *EditorSize
}

func (g *fakeGUI) table() *clap.PluginGUI {
	return &clap.PluginGUI{
		IsAPISupported: func(api string, floating bool) bool { return !floating },
		Create:         func(api string, floating bool) bool { g.created++; return true },
		Destroy:        func() { g.destroyed++ },
		SetParent: func(w *clap.Window) bool {
			g.parent = *w
			return !g.refuseParent
		},
		GetSize: func() (uint32, uint32, bool) {
			if g.size == nil {
				return 0, 0, false
			}
			return g.size.Width, g.size.Height, true
		},
		CanResize: func() bool { return true },
		AdjustSize: func(w, h uint32) (uint32, uint32, bool) {
			return w - w%10, h - h%10, true
		},
		SetSize: func(w, h uint32) bool { return true },
		Show:    func() bool { g.shown++; return true },
		Hide:    func() bool { g.hidden++; return true },
	}
}

func TestEditorOpenTwiceFails(t *testing.T) {
	g := &fakeGUI{}
	p, _ := newFakePlugin(map[string]any{clap.ExtGUI: g.table()})
	e, ok := NewEditor(NewNegotiator(p, nil))
	require.True(t, ok)

	parent := clap.Window{API: clap.WindowAPIX11, Handle: 0x1234}
	size, err := e.Open(parent)
	require.NoError(t, err)
	assert.Equal(t, DefaultEditorSize, size)
	assert.Equal(t, parent, g.parent, "window handle must pass through unchanged")

	_, err = e.Open(parent)
	assert.ErrorIs(t, err, clap.ErrEditorAlreadyOpen)
	assert.Equal(t, 1, g.created)

	require.NoError(t, e.Close())
	assert.Equal(t, 1, g.hidden)
	assert.Equal(t, 1, g.destroyed)
	assert.ErrorIs(t, e.Close(), clap.ErrEditorClosed)

	_, err = e.Open(parent)
	assert.NoError(t, err, "editor can be reopened after close")
}

func TestEditorReportsPluginSize(t *testing.T) {
	g := &fakeGUI{size: &EditorSize{Width: 640, Height: 480}}
	p, _ := newFakePlugin(map[string]any{clap.ExtGUI: g.table()})
	e, _ := NewEditor(NewNegotiator(p, nil))

	size, err := e.Open(clap.Window{API: clap.WindowAPIX11})
	require.NoError(t, err)
	assert.Equal(t, EditorSize{Width: 640, Height: 480}, size)

	size, err = e.Resize(1025, 767)
	require.NoError(t, err)
	assert.Equal(t, EditorSize{Width: 1020, Height: 760}, size)
	assert.Equal(t, size, e.Size())
}

func TestEditorOpenRollsBack(t *testing.T) {
	g := &fakeGUI{refuseParent: true}
	p, _ := newFakePlugin(map[string]any{clap.ExtGUI: g.table()})
	e, _ := NewEditor(NewNegotiator(p, nil))

	_, err := e.Open(clap.Window{API: clap.WindowAPIX11})
	assert.ErrorIs(t, err, clap.ErrEditor)
	assert.False(t, e.IsOpen())
	assert.Equal(t, 1, g.destroyed)
}

func TestEditorPluginInitiatedClose(t *testing.T) {
	g := &fakeGUI{}
	p, _ := newFakePlugin(map[string]any{clap.ExtGUI: g.table()})
	e, _ := NewEditor(NewNegotiator(p, nil))

	_, err := e.Open(clap.Window{API: clap.WindowAPIX11})
	require.NoError(t, err)

	e.Closed(false)
	assert.True(t, e.IsOpen(), "hidden editor is still open")

	e.Closed(true)
	assert.False(t, e.IsOpen())
	assert.Equal(t, 1, g.destroyed)
}

func TestAudioPorts(t *testing.T) {
	ports := &clap.PluginAudioPorts{
		Count: func(isInput bool) uint32 {
			if isInput {
				return 0
			}
			return 2
		},
		Get: func(index uint32, isInput bool, info *clap.AudioPortInfo) bool {
			if index == 1 {
				return false
			}
			*info = clap.AudioPortInfo{ID: index, Name: "Out", ChannelCount: 2, Flags: clap.AudioPortIsMain}
			return true
		},
	}
	p, _ := newFakePlugin(map[string]any{clap.ExtAudioPorts: ports})
	ap, ok := NewAudioPorts(NewNegotiator(p, nil))
	require.True(t, ok)

	in, err := ap.Ports(true)
	require.NoError(t, err)
	assert.Empty(t, in)

	out, err := ap.Ports(false)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.EqualValues(t, 2, out[0].ChannelCount)
}

func TestStateBlobBytesAreOpaque(t *testing.T) {
	payload := []byte{0x00, 0xFF, 0x10, 0x00}
	mem := &memoryState{data: payload}
	p, _ := newFakePlugin(map[string]any{clap.ExtState: mem.plain()})
	s, _ := NewState(NewNegotiator(p, nil))

	blob, err := s.Save(ContextProject)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, blob.Data))
}

func TestRenderMode(t *testing.T) {
	var modes []int32
	p, _ := newFakePlugin(map[string]any{
		clap.ExtRender: &clap.PluginRender{
			Set: func(mode int32) bool {
				modes = append(modes, mode)
				return mode == clap.RenderRealtime
			},
		},
	})
	r, ok := NewRender(NewNegotiator(p, nil))
	require.True(t, ok)

	hard, err := r.HardRealtime()
	require.NoError(t, err)
	assert.False(t, hard, "a missing query means no requirement")

	require.NoError(t, r.Set(RenderRealtime))
	assert.ErrorIs(t, r.Set(RenderOffline), clap.ErrRejected)
	assert.Equal(t, []int32{clap.RenderRealtime, clap.RenderOffline}, modes)
	assert.Equal(t, "offline", RenderOffline.String())
}

func TestVoiceInfoAndNoteNames(t *testing.T) {
	p, _ := newFakePlugin(map[string]any{
		clap.ExtVoiceInfo: &clap.PluginVoiceInfo{Get: func(info *clap.VoiceInfo) bool {
			*info = clap.VoiceInfo{VoiceCount: 8, VoiceCapacity: 32, Flags: clap.VoiceInfoSupportsOverlappingNotes}
			return true
		}},
		clap.ExtNoteName: &clap.PluginNoteName{
			Count: func() uint32 { return 3 },
			Get: func(i uint32, name *clap.NoteName) bool {
				if i == 1 {
					return false
				}
				*name = clap.NoteName{Name: "Kick", Key: int16(36 + i), Port: -1, Channel: -1}
				return true
			},
		},
	})
	n := NewNegotiator(p, nil)

	vi, ok := NewVoiceInfo(n)
	require.True(t, ok)
	voices, err := vi.Get()
	require.NoError(t, err)
	assert.Equal(t, Voices{Count: 8, Capacity: 32, Overlapping: true}, voices)

	nn, ok := NewNoteNames(n)
	require.True(t, ok)
	names, err := nn.List()
	require.NoError(t, err)
	require.Len(t, names, 2, "undescribed entries are skipped")
	assert.EqualValues(t, 38, names[1].Key)
}

func TestAudioPortsConfigSelect(t *testing.T) {
	var selected []uint32
	p, _ := newFakePlugin(map[string]any{
		clap.ExtAudioPortsCfg: &clap.PluginAudioPortsConfig{
			Count: func() uint32 { return 1 },
			Get: func(i uint32, c *clap.AudioPortsConfig) bool {
				*c = clap.AudioPortsConfig{ID: 4, Name: "Quad", HasMainOutput: true, MainOutputChannelCount: 4}
				return i == 0
			},
			Select: func(id uint32) bool {
				selected = append(selected, id)
				return id == 4
			},
		},
	})
	active := true
	a, ok := NewAudioPortsConfig(NewNegotiator(p, nil, WithActive(func() bool { return active })))
	require.True(t, ok)

	configs, err := a.Configs()
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "Quad", configs[0].Name)

	assert.ErrorIs(t, a.Select(4), clap.ErrInvalidState)
	assert.Empty(t, selected, "an active plugin is never asked")

	active = false
	require.NoError(t, a.Select(4))
	assert.ErrorIs(t, a.Select(5), clap.ErrRejected)
	assert.Equal(t, []uint32{4, 5}, selected)
}
