package host

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/justyntemme/claphost/pkg/clap"
	"github.com/justyntemme/claphost/pkg/ext"
	"github.com/justyntemme/claphost/pkg/param"
)

type notifyFlag uint32

const (
	flagRestart notifyFlag = 1 << iota
	flagProcess
	flagCallback
	flagParamFlush
	flagParamClear
	flagStateDirty
	flagLatency
	flagTail
	flagGUIHints
	flagGUIResize
	flagGUIShow
	flagGUIHide
	flagGUIClosed
	flagGUIDestroyed
	flagPortsConfig
	flagVoiceInfo
	flagNoteNames
)

// Notifications collects the requests a plugin made since the last Poll.
type Notifications struct {
	Restart  bool
	Process  bool
	Callback bool

	// ParamRescan holds the clap.ParamRescan* flags of every rescan request.
	ParamRescan uint32
	ParamFlush  bool
	ParamClear  bool
	StateDirty  bool

	LatencyChanged bool
	TailChanged    bool

	GUIResizeHintsChanged bool
	GUIResizeRequested    bool
	GUIResize             ext.EditorSize
	GUIShow               bool
	GUIHide               bool
	GUIClosed             bool
	GUIDestroyed          bool

	AudioPortsRescan       uint32
	AudioPortsConfigRescan bool
	NotePortsRescan        uint32
	NoteNamesChanged       bool
	VoiceInfoChanged       bool
}

// Empty reports whether nothing was requested.
func (n Notifications) Empty() bool {
	return n == Notifications{}
}

// Callbacks is the host side of the plugin's host table. Callbacks record a
// flag for Instance.Poll to act on from the control context. A parameter
// rescan also invalidates the registry at once.
type Callbacks struct {
	guard    *ext.Guard
	log      zerolog.Logger
	table    *clap.Host
	exts     map[string]any
	registry atomic.Pointer[param.Registry]

	flags       atomic.Uint32
	paramRescan atomic.Uint32
	audioRescan atomic.Uint32
	noteRescan  atomic.Uint32
	resize      atomic.Uint64
}

func newCallbacks(info Info, guard *ext.Guard, log zerolog.Logger) *Callbacks {
	c := &Callbacks{guard: guard, log: log}
	c.exts = map[string]any{
		clap.ExtLog: &clap.HostLog{Log: c.pluginLog},
		clap.ExtThreadCheck: &clap.HostThreadCheck{
			IsMainThread:  func() bool { return !guard.InProcess() },
			IsAudioThread: guard.InProcess,
		},
		clap.ExtParams: &clap.HostParams{
			Rescan: func(flags uint32) {
				if c.mainThread("params.rescan") {
					c.paramRescan.Or(flags)
					c.invalidateParams(flags)
				}
			},
			Clear: func(uint32, uint32) {
				if c.mainThread("params.clear") {
					c.set(flagParamClear)
				}
			},
			RequestFlush: func() {
				if c.mainThread("params.request_flush") {
					c.set(flagParamFlush)
				}
			},
		},
		clap.ExtState: &clap.HostState{
			MarkDirty: func() {
				if c.mainThread("state.mark_dirty") {
					c.set(flagStateDirty)
				}
			},
		},
		clap.ExtLatency: &clap.HostLatency{
			Changed: func() {
				if c.mainThread("latency.changed") {
					c.set(flagLatency)
				}
			},
		},
		clap.ExtTail: &clap.HostTail{Changed: func() { c.set(flagTail) }},
		clap.ExtGUI: &clap.HostGUI{
			ResizeHintsChanged: func() { c.set(flagGUIHints) },
			RequestResize: func(w, h uint32) bool {
				c.resize.Store(uint64(w)<<32 | uint64(h))
				c.set(flagGUIResize)
				return true
			},
			RequestShow: func() bool { c.set(flagGUIShow); return true },
			RequestHide: func() bool { c.set(flagGUIHide); return true },
			Closed: func(wasDestroyed bool) {
				c.set(flagGUIClosed)
				if wasDestroyed {
					c.set(flagGUIDestroyed)
				}
			},
		},
		clap.ExtAudioPorts: &clap.HostAudioPorts{
			IsRescanFlagSupported: func(uint32) bool { return true },
			Rescan: func(flags uint32) {
				if c.mainThread("audio_ports.rescan") {
					c.audioRescan.Or(flags)
				}
			},
		},
		clap.ExtAudioPortsCfg: &clap.HostAudioPortsConfig{
			Rescan: func() {
				if c.mainThread("audio_ports_config.rescan") {
					c.set(flagPortsConfig)
				}
			},
		},
		clap.ExtVoiceInfo: &clap.HostVoiceInfo{
			Changed: func() {
				if c.mainThread("voice_info.changed") {
					c.set(flagVoiceInfo)
				}
			},
		},
		clap.ExtNoteName: &clap.HostNoteName{
			Changed: func() {
				if c.mainThread("note_name.changed") {
					c.set(flagNoteNames)
				}
			},
		},
		clap.ExtNotePorts: &clap.HostNotePorts{
			SupportedDialects: func() uint32 { return clap.NoteDialectCLAP | clap.NoteDialectMIDI },
			Rescan: func(flags uint32) {
				if c.mainThread("note_ports.rescan") {
					c.noteRescan.Or(flags)
				}
			},
		},
	}
	c.table = &clap.Host{
		Version:         clap.CurrentVersion,
		Name:            info.Name,
		Vendor:          info.Vendor,
		URL:             info.URL,
		HostVer:         info.Version,
		GetExtension:    c.extension,
		RequestRestart:  func() { c.set(flagRestart) },
		RequestProcess:  func() { c.set(flagProcess) },
		RequestCallback: func() { c.set(flagCallback) },
	}
	return c
}

// Table returns the raw host table handed to the plugin.
func (c *Callbacks) Table() *clap.Host {
	return c.table
}

func (c *Callbacks) extension(id string) any {
	return c.exts[id]
}

// invalidateParams marks the registry stale when flags change the set of
// parameters or their infos.
func (c *Callbacks) invalidateParams(flags uint32) {
	if flags&(clap.ParamRescanInfo|clap.ParamRescanAll) == 0 {
		return
	}
	if r := c.registry.Load(); r != nil {
		r.Invalidate()
	}
}

func (c *Callbacks) set(f notifyFlag) {
	c.flags.Or(uint32(f))
}

// mainThread reports whether a main-thread-only callback may proceed. Calls
// made from inside process are logged and dropped.
func (c *Callbacks) mainThread(op string) bool {
	if c.guard.InProcess() {
		c.log.Warn().Str("callback", op).Msg("plugin misbehaving: main-thread callback during process")
		return false
	}
	return true
}

func (c *Callbacks) pluginLog(severity clap.LogSeverity, msg string) {
	var ev *zerolog.Event
	switch severity {
	case clap.LogDebug:
		ev = c.log.Debug()
	case clap.LogInfo:
		ev = c.log.Info()
	case clap.LogWarning:
		ev = c.log.Warn()
	case clap.LogHostMisbehaving:
		ev = c.log.Warn().Bool("host_misbehaving", true)
	case clap.LogPluginMisbehaving:
		ev = c.log.Warn().Bool("plugin_misbehaving", true)
	default:
		ev = c.log.Error()
	}
	ev.Str("source", "plugin").Msg(msg)
}

// take swaps every pending flag for zero.
func (c *Callbacks) take() Notifications {
	f := notifyFlag(c.flags.Swap(0))
	n := Notifications{
		Restart:                f&flagRestart != 0,
		Process:                f&flagProcess != 0,
		Callback:               f&flagCallback != 0,
		ParamRescan:            c.paramRescan.Swap(0),
		ParamFlush:             f&flagParamFlush != 0,
		ParamClear:             f&flagParamClear != 0,
		StateDirty:             f&flagStateDirty != 0,
		LatencyChanged:         f&flagLatency != 0,
		TailChanged:            f&flagTail != 0,
		GUIResizeHintsChanged:  f&flagGUIHints != 0,
		GUIResizeRequested:     f&flagGUIResize != 0,
		GUIShow:                f&flagGUIShow != 0,
		GUIHide:                f&flagGUIHide != 0,
		GUIClosed:              f&flagGUIClosed != 0,
		GUIDestroyed:           f&flagGUIDestroyed != 0,
		AudioPortsRescan:       c.audioRescan.Swap(0),
		AudioPortsConfigRescan: f&flagPortsConfig != 0,
		NotePortsRescan:        c.noteRescan.Swap(0),
		NoteNamesChanged:       f&flagNoteNames != 0,
		VoiceInfoChanged:       f&flagVoiceInfo != 0,
	}
	if n.GUIResizeRequested {
		v := c.resize.Load()
		n.GUIResize = ext.EditorSize{Width: uint32(v >> 32), Height: uint32(v)}
	}
	return n
}

// Poll collects the plugin's pending requests and handles the ones the host
// runtime owns. Flush requests are served when not processing and editor
// closes are acknowledged. Callback requests run the plugin's main-thread
// callback. Parameter rescans have already invalidated the registry; they
// are reported so the caller knows to enumerate again.
func (in *Instance) Poll() (Notifications, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if err := in.check("poll", StateLoaded, StateCreated, StateActivated, StateProcessing, StateDeactivated); err != nil {
		return Notifications{}, err
	}
	n := in.callbacks.take()
	if in.plugin == nil {
		return n, nil
	}

	if n.ParamRescan&(clap.ParamRescanInfo|clap.ParamRescanAll) != 0 {
		in.log.Debug().Uint32("flags", n.ParamRescan).Msg("plugin requested a parameter rescan")
	}
	if n.ParamFlush && !in.processing() {
		if err := in.flushParams(); err != nil {
			return n, err
		}
	}
	if n.GUIClosed && in.exts.Editor != nil {
		in.exts.Editor.Closed(n.GUIDestroyed)
	}
	if n.Callback && in.plugin.OnMainThread != nil {
		if err := in.call("on_main_thread", in.plugin.OnMainThread); err != nil {
			return n, err
		}
	}
	return n, nil
}

// flushParams lets the plugin report parameter changes outside processing.
func (in *Instance) flushParams() error {
	p := in.exts.Params
	if p == nil || !p.CanFlush() {
		return nil
	}
	evIn, err := in.ctrlBridge.Encode(nil, 1)
	if err != nil {
		return err
	}
	out := in.ctrlBridge.Output()
	var flushErr error
	if err := in.call("params.flush", func() { flushErr = p.Flush(evIn, out) }); err != nil {
		return err
	}
	if flushErr != nil {
		return flushErr
	}
	in.ctrlResult.Reset()
	in.ctrlBridge.Decode(out, in.ctrlResult)
	in.registry.Observe(in.ctrlResult)
	return nil
}
