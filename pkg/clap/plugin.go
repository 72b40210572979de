package clap

// PluginEntry is the table exported by a plugin library.
type PluginEntry struct {
	Version Version

	Init       func(path string) bool
	Deinit     func()
	GetFactory func(factoryID string) any
}

// PluginFactory enumerates and instantiates the plugins of one library.
type PluginFactory struct {
	GetPluginCount      func() uint32
	GetPluginDescriptor func(index uint32) *Descriptor
	CreatePlugin        func(host *Host, pluginID string) *Plugin
}

// Descriptor is the raw plugin metadata. Only ID and Name are mandatory.
type Descriptor struct {
	Version Version

	ID            string
	Name          string
	Vendor        string
	URL           string
	ManualURL     string
	SupportURL    string
	PluginVersion string
	Description   string
	Features      []string
}

// Plugin is the per-instance table. GetExtension returns one of the extension
// tables declared in ext.go, or nil.
type Plugin struct {
	Desc *Descriptor

	Init            func() bool
	Destroy         func()
	Activate        func(sampleRate float64, minFrames, maxFrames uint32) bool
	Deactivate      func()
	StartProcessing func() bool
	StopProcessing  func()
	Reset           func()
	Process         func(p *Process) ProcessStatus
	GetExtension    func(id string) any
	OnMainThread    func()
}

// ProcessStatus is returned by Plugin.Process.
type ProcessStatus int32

const (
	ProcessError ProcessStatus = iota
	ProcessContinue
	ProcessContinueIfNotQuiet
	ProcessTail
	ProcessSleep
)

// AudioBuffer carries the channels of one audio port. Exactly one of Data32
// and Data64 is set.
type AudioBuffer struct {
	Data32       [][]float32
	Data64       [][]float64
	ChannelCount uint32
	Latency      uint32
	ConstantMask uint64
}

// Process describes one block handed to Plugin.Process.
type Process struct {
	// SteadyTime is a monotonic sample counter, -1 when unavailable.
	SteadyTime  int64
	FramesCount uint32
	Transport   *EventTransportInfo

	AudioInputs  []AudioBuffer
	AudioOutputs []AudioBuffer

	InEvents  InputEvents
	OutEvents OutputEvents
}
