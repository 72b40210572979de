package host

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/justyntemme/claphost/pkg/bus"
	"github.com/justyntemme/claphost/pkg/clap"
	"github.com/justyntemme/claphost/pkg/debug"
	"github.com/justyntemme/claphost/pkg/events"
	"github.com/justyntemme/claphost/pkg/ext"
	"github.com/justyntemme/claphost/pkg/param"
	"github.com/justyntemme/claphost/pkg/process"
)

// Extensions holds the typed wrappers negotiated at creation. A nil field
// means the plugin does not implement that extension.
type Extensions struct {
	Params           *ext.Params
	State            *ext.State
	Editor           *ext.Editor
	AudioPorts       *ext.AudioPorts
	AudioPortsConfig *ext.AudioPortsConfig
	NotePorts        *ext.NotePorts
	NoteNames        *ext.NoteNames
	VoiceInfo        *ext.VoiceInfo
	Latency          *ext.Latency
	Tail             *ext.Tail
	Render           *ext.Render
}

// Instance is one plugin instance and its lifecycle. Lifecycle methods,
// Poll and the extension accessors belong to the control context and are
// serialised. Process belongs to the real-time context; the caller must not
// overlap it with lifecycle calls.
type Instance struct {
	id   uuid.UUID
	lib  *Library
	desc PluginDescriptor
	opts options
	log  zerolog.Logger

	mu      sync.Mutex
	state   atomic.Int32
	failure atomic.Pointer[clap.Error]

	plugin     *clap.Plugin
	callbacks  *Callbacks
	guard      ext.Guard
	sentinel   debug.Sentinel
	negotiator *ext.Negotiator
	registry   *param.Registry
	exts       Extensions
	processor  *Processor

	driver      *process.Driver
	block       events.ProcessContext
	sampleRate  float64
	minFrames   uint32
	maxFrames   uint32
	consecutive atomic.Int32

	ctrlBridge *events.Bridge
	ctrlResult *events.ProcessResult
}

func newInstance(lib *Library, desc PluginDescriptor, o options) *Instance {
	in := &Instance{
		id:         uuid.New(),
		lib:        lib,
		desc:       desc,
		opts:       o,
		ctrlBridge: events.NewBridge(o.queueCapacity),
		ctrlResult: events.NewProcessResult(o.queueCapacity),
	}
	in.log = o.log.With().Str("instance", in.id.String()).Str("plugin", desc.ID).Logger()
	in.callbacks = newCallbacks(o.info, &in.guard, in.log)
	in.processor = &Processor{in: in}
	return in
}

// ID returns the instance's unique id.
func (in *Instance) ID() uuid.UUID { return in.id }

// Descriptor returns the metadata of the instantiated plugin.
func (in *Instance) Descriptor() PluginDescriptor { return in.desc.clone() }

// State returns the current lifecycle state.
func (in *Instance) State() State { return State(in.state.Load()) }

// Failure returns the error that moved the instance to StateError, or nil.
func (in *Instance) Failure() error {
	if e := in.failure.Load(); e != nil {
		return e
	}
	return nil
}

// SampleRate returns the rate of the last activation or SetSampleRate call.
func (in *Instance) SampleRate() float64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.sampleRate
}

// Layout returns the audio port layout snapshotted at activation.
func (in *Instance) Layout() (bus.Layout, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if err := in.check("layout", StateActivated, StateProcessing); err != nil {
		return bus.Layout{}, err
	}
	return in.driver.Layout(), nil
}

// ProcessStats returns the number of processed blocks and the heap
// allocations of the last block and of all blocks. The counts are only
// collected in builds with the debug tag.
func (in *Instance) ProcessStats() (blocks, last, total uint64) {
	return in.sentinel.Stats()
}

func (in *Instance) setState(s State) {
	prev := State(in.state.Swap(int32(s)))
	if prev != s {
		in.log.Debug().Stringer("from", prev).Stringer("to", s).Msg("state changed")
	}
}

func (in *Instance) processing() bool {
	return in.State() == StateProcessing
}

// lifecycle serialises a control-context operation and tells the debug
// sentinel about it. Use as defer in.lifecycle(op)().
func (in *Instance) lifecycle(op string) func() {
	in.mu.Lock()
	in.sentinel.EnterLifecycle(op)
	return func() {
		in.sentinel.ExitLifecycle()
		in.mu.Unlock()
	}
}

// check fails unless the instance is in one of the allowed states.
func (in *Instance) check(op string, allowed ...State) error {
	switch s := in.State(); {
	case s == StateDestroyed:
		return clap.NewError(clap.ErrUseAfterDestroy, op)
	case s == StateError:
		return &clap.Error{Kind: clap.ErrInstanceFailed, Op: op, Err: in.Failure()}
	case !slices.Contains(allowed, s):
		return clap.Errorf(clap.ErrInvalidState, op, "not allowed in state %s", s)
	}
	return nil
}

// fail moves the instance to StateError.
func (in *Instance) fail(op string, cause error) error {
	err := &clap.Error{Kind: clap.ErrInstanceFailed, Op: op, Err: cause}
	in.failure.Store(err)
	in.setState(StateError)
	in.log.Error().Err(cause).Str("op", op).Msg("instance failed")
	return err
}

// call runs a raw plugin function. A panic fails the instance.
func (in *Instance) call(op string, fn func()) error {
	if err := guarded(op, fn); err != nil {
		return in.fail(op, err)
	}
	return nil
}

var errVanished = errors.New("plugin function is missing")

// Create instantiates and initialises the plugin, negotiates its extensions
// and enumerates its parameters.
func (in *Instance) Create() error {
	defer in.lifecycle("create")()
	if err := in.check("create", StateLoaded); err != nil {
		return err
	}

	var p *clap.Plugin
	if err := in.call("create", func() {
		p = in.lib.factory.CreatePlugin(in.callbacks.Table(), in.desc.ID)
	}); err != nil {
		return err
	}
	if p == nil {
		return clap.Errorf(clap.ErrInstantiation, "create", "factory returned no plugin for %q", in.desc.ID)
	}
	if err := validatePlugin(p); err != nil {
		in.discard(p)
		return &clap.Error{Kind: clap.ErrInstantiation, Op: "create", Err: err}
	}
	in.plugin = p

	var ok bool
	if err := in.call("init", func() { ok = p.Init() }); err != nil {
		return err
	}
	if !ok {
		in.discard(p)
		return clap.Errorf(clap.ErrInstantiation, "create", "plugin %q failed to initialise", in.desc.ID)
	}

	var enumErr error
	if err := in.call("negotiate", func() {
		in.negotiate()
		_, enumErr = in.registry.Enumerate()
	}); err != nil {
		return err
	}
	if enumErr != nil {
		in.discard(p)
		return &clap.Error{Kind: clap.ErrInstantiation, Op: "create", Err: enumErr}
	}

	in.setState(StateCreated)
	in.log.Info().Strs("extensions", in.negotiator.Supported()).Msg("plugin created")
	return nil
}

// discard destroys a plugin that never reached StateCreated.
func (in *Instance) discard(p *clap.Plugin) {
	in.plugin = nil
	in.negotiator = nil
	in.registry = nil
	in.exts = Extensions{}
	if p.Destroy == nil {
		return
	}
	if err := guarded("destroy", p.Destroy); err != nil {
		in.log.Error().Err(err).Msg("destroying rejected plugin failed")
	}
}

func validatePlugin(p *clap.Plugin) error {
	switch {
	case p.Desc == nil:
		return errors.New("plugin has no descriptor")
	case !p.Desc.Version.Compatible():
		return fmt.Errorf("incompatible plugin ABI version %s", p.Desc.Version)
	case p.Init == nil || p.Destroy == nil || p.Activate == nil || p.Deactivate == nil ||
		p.StartProcessing == nil || p.StopProcessing == nil || p.Process == nil:
		return errors.New("plugin table is incomplete")
	}
	return nil
}

func (in *Instance) negotiate() {
	in.negotiator = ext.NewNegotiator(in.plugin, &in.guard,
		ext.WithLogger(in.log),
		ext.WithActive(func() bool { return in.State().Active() }),
	)
	n := in.negotiator
	in.exts = Extensions{}
	in.exts.Params, _ = ext.NewParams(n)
	in.exts.State, _ = ext.NewState(n)
	in.exts.Editor, _ = ext.NewEditor(n)
	in.exts.AudioPorts, _ = ext.NewAudioPorts(n)
	in.exts.AudioPortsConfig, _ = ext.NewAudioPortsConfig(n)
	in.exts.NotePorts, _ = ext.NewNotePorts(n)
	in.exts.NoteNames, _ = ext.NewNoteNames(n)
	in.exts.VoiceInfo, _ = ext.NewVoiceInfo(n)
	in.exts.Latency, _ = ext.NewLatency(n)
	in.exts.Tail, _ = ext.NewTail(n)
	in.exts.Render, _ = ext.NewRender(n)

	var src param.Source = noParams{}
	if in.exts.Params != nil {
		src = in.exts.Params
	}
	in.registry = param.NewRegistry(src,
		param.WithLogger(in.log),
		param.WithProcessing(in.processing),
		param.WithLiveness(in.guard.Alive),
		param.WithQueueCapacity(in.opts.queueCapacity),
	)
	in.callbacks.registry.Store(in.registry)
}

// Activate prepares the plugin for processing at sampleRate with blocks of
// minFrames to maxFrames frames. Every buffer the real-time path needs is
// allocated here.
func (in *Instance) Activate(sampleRate float64, minFrames, maxFrames uint32) error {
	defer in.lifecycle("activate")()
	return in.activate(sampleRate, minFrames, maxFrames)
}

func (in *Instance) activate(sampleRate float64, minFrames, maxFrames uint32) error {
	if err := in.check("activate", StateCreated, StateDeactivated); err != nil {
		return err
	}
	if !validRate(sampleRate) || minFrames == 0 || minFrames > maxFrames {
		return clap.Errorf(clap.ErrActivation, "activate", "invalid arguments: rate %g, frames [%d, %d]", sampleRate, minFrames, maxFrames)
	}
	if in.plugin.Activate == nil {
		return in.fail("activate", errVanished)
	}

	layout, err := in.portLayout()
	if err != nil {
		return &clap.Error{Kind: clap.ErrActivation, Op: "activate", Err: err}
	}
	driver := process.NewDriver(layout, sampleRate, maxFrames, in.opts.maxEvents)
	block := events.ProcessContext{
		ParamChanges: make([]events.ParamChange, 0, in.opts.maxEvents+in.opts.queueCapacity),
	}

	var ok bool
	if err := in.call("activate", func() { ok = in.plugin.Activate(sampleRate, minFrames, maxFrames) }); err != nil {
		return err
	}
	if !ok {
		return clap.Errorf(clap.ErrActivation, "activate", "plugin rejected rate %g, frames [%d, %d]", sampleRate, minFrames, maxFrames)
	}

	in.driver = driver
	in.block = block
	in.sampleRate = sampleRate
	in.minFrames, in.maxFrames = minFrames, maxFrames
	in.consecutive.Store(0)
	in.setState(StateActivated)
	in.log.Info().Float64("sample_rate", sampleRate).Uint32("max_frames", maxFrames).
		Int("inputs", layout.Channels(bus.Input)).Int("outputs", layout.Channels(bus.Output)).
		Msg("plugin activated")
	return nil
}

func validRate(sr float64) bool {
	return sr > 0 && !math.IsInf(sr, 0)
}

// portLayout reads the plugin's audio ports. Plugins without the extension
// get a stereo pair.
func (in *Instance) portLayout() (bus.Layout, error) {
	ports := in.exts.AudioPorts
	if ports == nil {
		return bus.Stereo(), nil
	}
	inputs, err := ports.Ports(true)
	if err != nil {
		return bus.Layout{}, err
	}
	outputs, err := ports.Ports(false)
	if err != nil {
		return bus.Layout{}, err
	}
	return bus.FromPorts(inputs, outputs), nil
}

// StartProcessing moves an activated instance to StateProcessing.
func (in *Instance) StartProcessing() error {
	defer in.lifecycle("start_processing")()
	return in.startProcessing()
}

func (in *Instance) startProcessing() error {
	if err := in.check("start_processing", StateActivated); err != nil {
		return err
	}
	if in.plugin.StartProcessing == nil {
		return in.fail("start_processing", errVanished)
	}
	var ok bool
	if err := in.call("start_processing", func() { ok = in.plugin.StartProcessing() }); err != nil {
		return err
	}
	if !ok {
		return clap.Errorf(clap.ErrActivation, "start_processing", "plugin refused to start processing")
	}
	in.consecutive.Store(0)
	in.setState(StateProcessing)
	return nil
}

// StopProcessing returns to StateActivated. It is a no-op when processing
// has already stopped.
func (in *Instance) StopProcessing() error {
	defer in.lifecycle("stop_processing")()
	return in.stopProcessing()
}

func (in *Instance) stopProcessing() error {
	if err := in.check("stop_processing", StateActivated, StateProcessing); err != nil {
		return err
	}
	if in.State() == StateActivated {
		return nil
	}
	if in.plugin.StopProcessing == nil {
		return in.fail("stop_processing", errVanished)
	}
	if err := in.call("stop_processing", in.plugin.StopProcessing); err != nil {
		return err
	}
	in.setState(StateActivated)
	return nil
}

// Deactivate releases the activation. It fails while processing and is a
// no-op when already deactivated.
func (in *Instance) Deactivate() error {
	defer in.lifecycle("deactivate")()
	return in.deactivate()
}

func (in *Instance) deactivate() error {
	if err := in.check("deactivate", StateActivated, StateDeactivated); err != nil {
		return err
	}
	if in.State() == StateDeactivated {
		return nil
	}
	if in.plugin.Deactivate == nil {
		return in.fail("deactivate", errVanished)
	}
	if err := in.call("deactivate", in.plugin.Deactivate); err != nil {
		return err
	}
	in.driver = nil
	in.setState(StateDeactivated)
	in.log.Info().Msg("plugin deactivated")
	return nil
}

// SetSampleRate changes the sample rate. An active instance is deactivated
// and reactivated with the same block sizes, and resumes processing if it
// was processing before. If the plugin rejects the new rate it is
// reactivated at the old one and the rejection is returned; only when that
// also fails is the instance left deactivated.
func (in *Instance) SetSampleRate(sampleRate float64) error {
	defer in.lifecycle("set_sample_rate")()
	if err := in.check("set_sample_rate", StateLoaded, StateCreated, StateActivated, StateProcessing, StateDeactivated); err != nil {
		return err
	}
	if !validRate(sampleRate) {
		return clap.Errorf(clap.ErrActivation, "set_sample_rate", "invalid sample rate %g", sampleRate)
	}

	s := in.State()
	if !s.Active() {
		in.sampleRate = sampleRate
		return nil
	}
	if sampleRate == in.sampleRate {
		return nil
	}
	if err := in.stopProcessing(); err != nil {
		return err
	}
	if err := in.deactivate(); err != nil {
		return err
	}
	if err := in.activate(sampleRate, in.minFrames, in.maxFrames); err != nil {
		if in.State() != StateDeactivated {
			return err
		}
		if rerr := in.resume(s, in.sampleRate); rerr != nil {
			in.log.Warn().Err(rerr).Float64("sample_rate", in.sampleRate).Msg("reactivating at the previous rate failed")
		}
		return err
	}
	return in.resume(s, sampleRate)
}

// resume activates a deactivated instance at sampleRate and restarts
// processing when prev was StateProcessing.
func (in *Instance) resume(prev State, sampleRate float64) error {
	if in.State() != StateActivated {
		if err := in.activate(sampleRate, in.minFrames, in.maxFrames); err != nil {
			return err
		}
	}
	if prev == StateProcessing {
		return in.startProcessing()
	}
	return nil
}

// Destroy stops and deactivates the plugin as needed and destroys it. It is
// legal from every state, including StateError; any call afterwards fails
// with ErrUseAfterDestroy.
func (in *Instance) Destroy() error {
	defer in.lifecycle("destroy")()
	s := in.State()
	if s == StateDestroyed {
		return clap.NewError(clap.ErrUseAfterDestroy, "destroy")
	}

	if p := in.plugin; p != nil {
		if s != StateError {
			if ed := in.exts.Editor; ed != nil && ed.IsOpen() {
				if err := ed.Close(); err != nil {
					in.log.Warn().Err(err).Msg("closing editor failed")
				}
			}
			if s == StateProcessing && p.StopProcessing != nil {
				in.destroyStep("stop_processing", p.StopProcessing)
			}
			if s.Active() && p.Deactivate != nil {
				in.destroyStep("deactivate", p.Deactivate)
			}
		}
		if p.Destroy != nil {
			in.destroyStep("destroy", p.Destroy)
		}
	}

	in.guard.Destroy()
	in.plugin = nil
	in.driver = nil
	in.setState(StateDestroyed)
	in.lib.release()
	in.log.Info().Msg("plugin destroyed")
	return nil
}

func (in *Instance) destroyStep(op string, fn func()) {
	if err := guarded(op, fn); err != nil {
		in.log.Error().Err(err).Msg("plugin failed during destroy")
	}
}

// Params returns the parameter registry.
func (in *Instance) Params() (*param.Registry, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if err := in.check("params", liveStates...); err != nil {
		return nil, err
	}
	return in.registry, nil
}

// Extensions returns the wrappers negotiated at creation.
func (in *Instance) Extensions() (Extensions, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if err := in.check("extensions", liveStates...); err != nil {
		return Extensions{}, err
	}
	return in.exts, nil
}

// Negotiate queries an arbitrary extension id.
func (in *Instance) Negotiate(id string) (ext.Handle, bool, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if err := in.check("negotiate", liveStates...); err != nil {
		return ext.Handle{}, false, err
	}
	h, ok := in.negotiator.Negotiate(id)
	return h, ok, nil
}

var liveStates = []State{StateCreated, StateActivated, StateProcessing, StateDeactivated}

// Process runs one block. See Processor.Process.
func (in *Instance) Process(buffers *process.Buffers, ctx *events.ProcessContext) (*events.ProcessResult, error) {
	return in.processor.Process(buffers, ctx)
}

// Processor returns the real-time view of the instance.
func (in *Instance) Processor() *Processor {
	return in.processor
}

// noParams stands in for plugins without the params extension.
type noParams struct{}

func (noParams) Count() (uint32, error)                            { return 0, nil }
func (noParams) Info(uint32) (clap.ParamInfo, bool, error)         { return clap.ParamInfo{}, false, nil }
func (noParams) Value(uint32) (float64, bool, error)               { return 0, false, nil }
func (noParams) ValueToText(uint32, float64) (string, bool, error) { return "", false, nil }
func (noParams) TextToValue(uint32, string) (float64, bool, error) { return 0, false, nil }
func (noParams) CanFlush() bool                                    { return false }
func (noParams) Flush(clap.InputEvents, clap.OutputEvents) error   { return nil }
