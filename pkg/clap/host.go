package clap

// Host is the table handed to a plugin at creation. It is the plugin's only
// way back into the host.
type Host struct {
	Version Version

	Name    string
	Vendor  string
	URL     string
	HostVer string

	GetExtension    func(id string) any
	RequestRestart  func()
	RequestProcess  func()
	RequestCallback func()
}

// Log severities.
type LogSeverity int32

const (
	LogDebug LogSeverity = iota
	LogInfo
	LogWarning
	LogError
	LogFatal
	LogHostMisbehaving
	LogPluginMisbehaving
)

// HostLog is the log host extension.
type HostLog struct {
	Log func(severity LogSeverity, msg string)
}

// HostThreadCheck is the thread-check host extension.
type HostThreadCheck struct {
	IsMainThread  func() bool
	IsAudioThread func() bool
}

// Param rescan and clear flags.
const (
	ParamRescanValues uint32 = 1 << iota
	ParamRescanText
	ParamRescanInfo
	ParamRescanAll
)

const (
	ParamClearAll uint32 = 1 << iota
	ParamClearAutomations
	ParamClearModulations
)

// HostParams is the params host extension.
type HostParams struct {
	Rescan       func(flags uint32)
	Clear        func(paramID uint32, flags uint32)
	RequestFlush func()
}

// HostState is the state host extension.
type HostState struct {
	MarkDirty func()
}

// HostLatency is the latency host extension.
type HostLatency struct {
	Changed func()
}

// HostTail is the tail host extension.
type HostTail struct {
	Changed func()
}

// HostGUI is the gui host extension.
type HostGUI struct {
	ResizeHintsChanged func()
	RequestResize      func(width, height uint32) bool
	RequestShow        func() bool
	RequestHide        func() bool
	Closed             func(wasDestroyed bool)
}

// HostAudioPorts is the audio-ports host extension.
type HostAudioPorts struct {
	IsRescanFlagSupported func(flag uint32) bool
	Rescan                func(flags uint32)
}

// HostAudioPortsConfig is the audio-ports-config host extension.
type HostAudioPortsConfig struct {
	Rescan func()
}

// HostVoiceInfo is the voice-info host extension.
type HostVoiceInfo struct {
	Changed func()
}

// HostNoteName is the note-name host extension.
type HostNoteName struct {
	Changed func()
}

// HostNotePorts is the note-ports host extension.
type HostNotePorts struct {
	SupportedDialects func() uint32
	Rescan            func(flags uint32)
}
