package clap

// Plugin extension ids.
const (
	ExtParams        = "clap.params"
	ExtState         = "clap.state"
	ExtStateContext  = "clap.state-context/2"
	ExtGUI           = "clap.gui"
	ExtAudioPorts    = "clap.audio-ports"
	ExtAudioPortsCfg = "clap.audio-ports-config"
	ExtNotePorts     = "clap.note-ports"
	ExtLatency       = "clap.latency"
	ExtTail          = "clap.tail"
	ExtRender        = "clap.render"
	ExtTimerSupport  = "clap.timer-support"
	ExtThreadPool    = "clap.thread-pool"
	ExtVoiceInfo     = "clap.voice-info"
	ExtNoteName      = "clap.note-name"
	ExtPresetLoad    = "clap.preset-load/2"
	ExtRemoteControl = "clap.remote-controls/2"
	ExtParamIndicate = "clap.param-indication/4"
	ExtTrackInfo     = "clap.track-info/1"
	ExtLog           = "clap.log"
	ExtThreadCheck   = "clap.thread-check"
)

// Parameter info flags.
const (
	ParamIsStepped uint32 = 1 << iota
	ParamIsPeriodic
	ParamIsHidden
	ParamIsReadOnly
	ParamIsBypass
	ParamIsAutomatable
	ParamIsAutomatablePerNoteID
	ParamIsAutomatablePerKey
	ParamIsAutomatablePerChannel
	ParamIsAutomatablePerPort
	ParamIsModulatable
	ParamIsModulatablePerNoteID
	ParamIsModulatablePerKey
	ParamIsModulatablePerChannel
	ParamIsModulatablePerPort
	ParamRequiresProcess
	ParamIsEnum
)

// ParamInfo is the raw parameter description returned by GetInfo.
type ParamInfo struct {
	ID           uint32
	Flags        uint32
	Cookie       uintptr
	Name         string
	Module       string
	MinValue     float64
	MaxValue     float64
	DefaultValue float64
}

// PluginParams is the params extension table.
type PluginParams struct {
	Count       func() uint32
	GetInfo     func(index uint32, info *ParamInfo) bool
	GetValue    func(id uint32, value *float64) bool
	ValueToText func(id uint32, value float64) (string, bool)
	TextToValue func(id uint32, text string) (float64, bool)
	Flush       func(in InputEvents, out OutputEvents)
}

// PluginState is the state extension table.
type PluginState struct {
	Save func(stream *OutputStream) bool
	Load func(stream *InputStream) bool
}

// State context types.
const (
	StateContextForPreset    uint32 = 1
	StateContextForDuplicate uint32 = 2
	StateContextForProject   uint32 = 3
)

// PluginStateContext is the state-context extension table.
type PluginStateContext struct {
	Save func(stream *OutputStream, contextType uint32) bool
	Load func(stream *InputStream, contextType uint32) bool
}

// Window APIs.
const (
	WindowAPIWin32   = "win32"
	WindowAPICocoa   = "cocoa"
	WindowAPIX11     = "x11"
	WindowAPIWayland = "wayland"
)

// Window is an opaque native surface handle. The host never dereferences it.
type Window struct {
	API    string
	Handle uintptr
}

// GUIResizeHints describes how an editor may be resized.
type GUIResizeHints struct {
	CanResizeHorizontally bool
	CanResizeVertically   bool
	PreserveAspectRatio   bool
	AspectRatioWidth      uint32
	AspectRatioHeight     uint32
}

// PluginGUI is the gui extension table.
type PluginGUI struct {
	IsAPISupported  func(api string, isFloating bool) bool
	GetPreferredAPI func() (api string, isFloating bool, ok bool)
	Create          func(api string, isFloating bool) bool
	Destroy         func()
	SetScale        func(scale float64) bool
	GetSize         func() (width, height uint32, ok bool)
	CanResize       func() bool
	GetResizeHints  func(hints *GUIResizeHints) bool
	AdjustSize      func(width, height uint32) (uint32, uint32, bool)
	SetSize         func(width, height uint32) bool
	SetParent       func(window *Window) bool
	SetTransient    func(window *Window) bool
	SuggestTitle    func(title string)
	Show            func() bool
	Hide            func() bool
}

// Audio port flags.
const (
	AudioPortIsMain uint32 = 1 << iota
	AudioPortSupports64Bits
	AudioPortPrefers64Bits
	AudioPortRequiresCommonSampleSize
)

// Audio port types.
const (
	PortMono   = "mono"
	PortStereo = "stereo"
)

// InvalidID marks an absent port or parameter id.
const InvalidID = ^uint32(0)

// AudioPortInfo describes one audio port.
type AudioPortInfo struct {
	ID           uint32
	Name         string
	Flags        uint32
	ChannelCount uint32
	PortType     string
	InPlacePair  uint32
}

// PluginAudioPorts is the audio-ports extension table.
type PluginAudioPorts struct {
	Count func(isInput bool) uint32
	Get   func(index uint32, isInput bool, info *AudioPortInfo) bool
}

// Note dialects.
const (
	NoteDialectCLAP    uint32 = 1 << 0
	NoteDialectMIDI    uint32 = 1 << 1
	NoteDialectMIDIMPE uint32 = 1 << 2
	NoteDialectMIDI2   uint32 = 1 << 3
)

// NotePortInfo describes one note port.
type NotePortInfo struct {
	ID                uint32
	SupportedDialects uint32
	PreferredDialect  uint32
	Name              string
}

// PluginNotePorts is the note-ports extension table.
type PluginNotePorts struct {
	Count func(isInput bool) uint32
	Get   func(index uint32, isInput bool, info *NotePortInfo) bool
}

// PluginLatency is the latency extension table.
type PluginLatency struct {
	Get func() uint32
}

// PluginTail is the tail extension table. A tail of math.MaxUint32 is infinite.
type PluginTail struct {
	Get func() uint32
}

// Render modes.
const (
	RenderRealtime int32 = 0
	RenderOffline  int32 = 1
)

// PluginRender is the render extension table.
type PluginRender struct {
	HasHardRealtimeRequirement func() bool
	Set                        func(mode int32) bool
}

// Voice info flags.
const VoiceInfoSupportsOverlappingNotes uint64 = 1 << 0

// VoiceInfo reports a plugin's polyphony.
type VoiceInfo struct {
	VoiceCount    uint32
	VoiceCapacity uint32
	Flags         uint64
}

// PluginVoiceInfo is the voice-info extension table.
type PluginVoiceInfo struct {
	Get func(info *VoiceInfo) bool
}

// NoteName names a key. Port, Key and Channel may be Wildcard.
type NoteName struct {
	Name    string
	Port    int16
	Key     int16
	Channel int16
}

// PluginNoteName is the note-name extension table.
type PluginNoteName struct {
	Count func() uint32
	Get   func(index uint32, name *NoteName) bool
}

// AudioPortsConfig is one predefined port configuration.
type AudioPortsConfig struct {
	ID              uint32
	Name            string
	InputPortCount  uint32
	OutputPortCount uint32

	HasMainInput          bool
	MainInputChannelCount uint32
	MainInputPortType     string

	HasMainOutput          bool
	MainOutputChannelCount uint32
	MainOutputPortType     string
}

// PluginAudioPortsConfig is the audio-ports-config extension table. Select
// is only legal while the plugin is inactive.
type PluginAudioPortsConfig struct {
	Count  func() uint32
	Get    func(index uint32, config *AudioPortsConfig) bool
	Select func(configID uint32) bool
}
