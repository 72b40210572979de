package process

import (
	"errors"

	"github.com/justyntemme/claphost/pkg/bus"
	"github.com/justyntemme/claphost/pkg/clap"
	"github.com/justyntemme/claphost/pkg/events"
)

// Errors returned by Process are static so the real-time path never
// allocates, even when failing.
var (
	errFrames        = &clap.Error{Kind: clap.ErrBufferLayout, Op: "process", Err: errors.New("frame count outside [1, max_frames]")}
	errInputs        = &clap.Error{Kind: clap.ErrBufferLayout, Op: "process", Err: errors.New("input channel count does not match layout")}
	errOutputs       = &clap.Error{Kind: clap.ErrBufferLayout, Op: "process", Err: errors.New("output channel count does not match layout")}
	errShortChannel  = &clap.Error{Kind: clap.ErrBufferLayout, Op: "process", Err: errors.New("channel shorter than frame count")}
	errMixedFormat   = &clap.Error{Kind: clap.ErrBufferLayout, Op: "process", Err: errors.New("32-bit and 64-bit buffers mixed")}
	errNo64          = &clap.Error{Kind: clap.ErrBufferLayout, Op: "process", Err: errors.New("64-bit buffers on a layout without 64-bit support")}
	errPluginFailed  = &clap.Error{Kind: clap.ErrProcess, Op: "process", Err: errors.New("plugin returned an error status")}
	errMissingMethod = &clap.Error{Kind: clap.ErrInstanceFailed, Op: "process", Err: errors.New("plugin has no process function")}
)

// DefaultMaxEvents is the per-block event capacity used when none is given.
const DefaultMaxEvents = 1024

// Driver owns every buffer needed to process one block. It is built at
// activation and used only by the real-time context.
type Driver struct {
	layout     bus.Layout
	sampleRate float64
	maxFrames  uint32

	bridge *events.Bridge
	result *events.ProcessResult

	inputs  []clap.AudioBuffer
	outputs []clap.AudioBuffer
	raw     clap.Process

	inChannels  int
	outChannels int
	steadyTime  int64
}

// NewDriver pre-allocates the event lists, port tables and result for the
// given layout and block size.
func NewDriver(layout bus.Layout, sampleRate float64, maxFrames uint32, maxEvents int) *Driver {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	d := &Driver{
		layout:      layout,
		sampleRate:  sampleRate,
		maxFrames:   maxFrames,
		bridge:      events.NewBridge(maxEvents),
		result:      events.NewProcessResult(maxEvents),
		inputs:      make([]clap.AudioBuffer, len(layout.Inputs)),
		outputs:     make([]clap.AudioBuffer, len(layout.Outputs)),
		inChannels:  layout.Channels(bus.Input),
		outChannels: layout.Channels(bus.Output),
	}
	for i, p := range layout.Inputs {
		d.inputs[i].ChannelCount = uint32(p.Channels)
	}
	for i, p := range layout.Outputs {
		d.outputs[i].ChannelCount = uint32(p.Channels)
	}
	return d
}

// Layout returns the port layout the driver was built for.
func (d *Driver) Layout() bus.Layout { return d.layout }

// SampleRate returns the activation sample rate.
func (d *Driver) SampleRate() float64 { return d.sampleRate }

// MaxFrames returns the largest block the driver accepts.
func (d *Driver) MaxFrames() uint32 { return d.maxFrames }

// SteadyTime returns the number of frames processed since activation.
func (d *Driver) SteadyTime() int64 { return d.steadyTime }

// Reset rewinds the steady time counter.
func (d *Driver) Reset() { d.steadyTime = 0 }

// Process runs one block: validate the buffers, encode ctx, call the plugin,
// decode its output and map the status. The returned result is reused by the
// next call. A plugin error status is reported both in the result and as a
// ProcessError.
func (d *Driver) Process(plugin *clap.Plugin, buffers *Buffers, ctx *events.ProcessContext) (*events.ProcessResult, error) {
	if plugin == nil || plugin.Process == nil {
		return nil, errMissingMethod
	}
	if err := d.bind(buffers); err != nil {
		return nil, err
	}

	in, err := d.bridge.Encode(ctx, buffers.Frames)
	if err != nil {
		return nil, err
	}

	d.raw.SteadyTime = d.steadyTime
	d.raw.FramesCount = buffers.Frames
	d.raw.Transport = d.bridge.Transport()
	d.raw.AudioInputs = d.inputs
	d.raw.AudioOutputs = d.outputs
	d.raw.InEvents = in
	out := d.bridge.Output()
	d.raw.OutEvents = out

	status := plugin.Process(&d.raw)

	d.result.Reset()
	d.bridge.Decode(out, d.result)
	d.result.Status = events.StatusFromRaw(status)
	d.steadyTime += int64(buffers.Frames)

	if d.result.Status == events.StatusError {
		return d.result, errPluginFailed
	}
	return d.result, nil
}

// bind validates buffers against the layout and points the port tables at
// the host's channels.
func (d *Driver) bind(b *Buffers) error {
	if b == nil || b.Frames == 0 || b.Frames > d.maxFrames {
		return errFrames
	}

	if b.Is64() {
		if b.Inputs != nil || b.Outputs != nil {
			return errMixedFormat
		}
		if !d.layout.Supports64() {
			return errNo64
		}
		if len(b.Inputs64) != d.inChannels {
			return errInputs
		}
		if len(b.Outputs64) != d.outChannels {
			return errOutputs
		}
		if !long64(b.Inputs64, b.Frames) || !long64(b.Outputs64, b.Frames) {
			return errShortChannel
		}
		off := 0
		for i := range d.inputs {
			n := int(d.inputs[i].ChannelCount)
			d.inputs[i].Data32 = nil
			d.inputs[i].Data64 = b.Inputs64[off : off+n]
			off += n
		}
		off = 0
		for i := range d.outputs {
			n := int(d.outputs[i].ChannelCount)
			d.outputs[i].Data32 = nil
			d.outputs[i].Data64 = b.Outputs64[off : off+n]
			off += n
		}
		return nil
	}

	if len(b.Inputs) != d.inChannels {
		return errInputs
	}
	if len(b.Outputs) != d.outChannels {
		return errOutputs
	}
	if !long32(b.Inputs, b.Frames) || !long32(b.Outputs, b.Frames) {
		return errShortChannel
	}
	off := 0
	for i := range d.inputs {
		n := int(d.inputs[i].ChannelCount)
		d.inputs[i].Data64 = nil
		d.inputs[i].Data32 = b.Inputs[off : off+n]
		off += n
	}
	off = 0
	for i := range d.outputs {
		n := int(d.outputs[i].ChannelCount)
		d.outputs[i].Data64 = nil
		d.outputs[i].Data32 = b.Outputs[off : off+n]
		off += n
	}
	return nil
}

func long32(chs [][]float32, frames uint32) bool {
	for _, ch := range chs {
		if uint32(len(ch)) < frames {
			return false
		}
	}
	return true
}

func long64(chs [][]float64, frames uint32) bool {
	for _, ch := range chs {
		if uint32(len(ch)) < frames {
			return false
		}
	}
	return true
}
