package refplug

import (
	"github.com/justyntemme/claphost/pkg/bus"
	"github.com/justyntemme/claphost/pkg/clap"
	"github.com/justyntemme/claphost/pkg/dsp"
)

// Gain parameter ids.
const (
	GainLevel  uint32 = 1
	GainBypass uint32 = 2
)

// Gain port configuration ids.
const (
	GainStereo uint32 = 0
	GainMono   uint32 = 1
)

var gainConfigs = []clap.AudioPortsConfig{
	{
		ID: GainStereo, Name: "Stereo", InputPortCount: 1, OutputPortCount: 1,
		HasMainInput: true, MainInputChannelCount: 2, MainInputPortType: clap.PortStereo,
		HasMainOutput: true, MainOutputChannelCount: 2, MainOutputPortType: clap.PortStereo,
	},
	{
		ID: GainMono, Name: "Mono", InputPortCount: 1, OutputPortCount: 1,
		HasMainInput: true, MainInputChannelCount: 1, MainInputPortType: clap.PortMono,
		HasMainOutput: true, MainOutputChannelCount: 1, MainOutputPortType: clap.PortMono,
	},
}

func gainLayout(config uint32) bus.Layout {
	b := bus.NewBuilder()
	if config == GainMono {
		b.WithMonoInput("In").WithMonoOutput("Out")
	} else {
		b.WithStereoInput("In").WithStereoOutput("Out")
	}
	return b.With64Bit().InPlace(0, 0).MustBuild()
}

type gain struct {
	base

	layout bus.Layout
	// current is the linear gain applied to the last sample.
	current float64
}

func newGain(host *clap.Host) *clap.Plugin {
	g := &gain{layout: gainLayout(GainStereo)}
	g.host = host
	g.desc = gainDescriptor
	g.params = newParamSet(
		newParam(GainLevel, "Gain").rng(-60, 12).def(0).
			formatter(decibelFormatter, decibelParser).build(),
		newParam(GainBypass, "Bypass").bypass().build(),
	)
	g.current = g.target()

	p := g.table()
	p.Reset = func() { g.current = g.target() }
	p.Process = g.process
	p.GetExtension = g.extension
	return p
}

// target is the linear gain the current parameter values ask for.
func (g *gain) target() float64 {
	if g.params.value(GainBypass) >= 0.5 {
		return 1
	}
	return dsp.DbToLinear(g.params.value(GainLevel))
}

// skipForPreset keeps bypass out of presets; it belongs to the session.
func skipForPreset(id uint32) bool { return id == GainBypass }

func (g *gain) extension(id string) any {
	switch id {
	case clap.ExtParams:
		t := g.params.table()
		flush := t.Flush
		t.Flush = func(in clap.InputEvents, out clap.OutputEvents) {
			flush(in, out)
			g.current = g.target()
			if in.Size() > 0 {
				g.markDirty()
			}
		}
		return t
	case clap.ExtState:
		return &clap.PluginState{
			Save: func(s *clap.OutputStream) bool { return saveParams(s, g.params, nil) == nil },
			Load: func(s *clap.InputStream) bool { return loadParams(s, g.params, nil) == nil },
		}
	case clap.ExtStateContext:
		return &clap.PluginStateContext{
			Save: func(s *clap.OutputStream, ctx uint32) bool {
				var skip func(uint32) bool
				if ctx == clap.StateContextForPreset {
					skip = skipForPreset
				}
				return saveParams(s, g.params, skip) == nil
			},
			Load: func(s *clap.InputStream, ctx uint32) bool {
				var skip func(uint32) bool
				if ctx == clap.StateContextForPreset {
					skip = skipForPreset
				}
				return loadParams(s, g.params, skip) == nil
			},
		}
	case clap.ExtAudioPorts:
		return &clap.PluginAudioPorts{
			Count: func(isInput bool) uint32 { return g.layout.Table().Count(isInput) },
			Get: func(index uint32, isInput bool, info *clap.AudioPortInfo) bool {
				return g.layout.Table().Get(index, isInput, info)
			},
		}
	case clap.ExtAudioPortsCfg:
		return &clap.PluginAudioPortsConfig{
			Count: func() uint32 { return uint32(len(gainConfigs)) },
			Get: func(index uint32, c *clap.AudioPortsConfig) bool {
				if int(index) >= len(gainConfigs) {
					return false
				}
				*c = gainConfigs[index]
				return true
			},
			Select: g.selectConfig,
		}
	case clap.ExtLatency:
		return &clap.PluginLatency{Get: func() uint32 { return 0 }}
	case clap.ExtRender:
		return g.render()
	}
	return nil
}

func (g *gain) selectConfig(id uint32) bool {
	if g.active || (id != GainStereo && id != GainMono) {
		return false
	}
	g.layout = gainLayout(id)
	return true
}

// process applies the gain sample-accurately: each parameter event takes
// effect at its own offset.
func (g *gain) process(p *clap.Process) clap.ProcessStatus {
	if len(p.AudioInputs) == 0 || len(p.AudioOutputs) == 0 {
		return clap.ProcessError
	}
	in, out := &p.AudioInputs[0], &p.AudioOutputs[0]
	frames := p.FramesCount

	var pos uint32
	if p.InEvents != nil {
		n := p.InEvents.Size()
		for i := uint32(0); i < n; i++ {
			ev := p.InEvents.Get(i)
			if !g.params.apply(ev) {
				continue
			}
			at := min(ev.Time, frames)
			g.segment(in, out, pos, at, g.current)
			pos = max(pos, at)
			g.current = g.target()
		}
	}
	g.segment(in, out, pos, frames, g.current)
	return clap.ProcessContinue
}

// segment copies in to out over [from, to) and scales it by gain.
func (g *gain) segment(in, out *clap.AudioBuffer, from, to uint32, gain float64) {
	if from >= to {
		return
	}
	for ch := range out.Data32 {
		dst := out.Data32[ch][from:to]
		if ch < len(in.Data32) {
			copy(dst, in.Data32[ch][from:to])
		}
		dsp.Scale(dst, gain)
	}
	for ch := range out.Data64 {
		dst := out.Data64[ch][from:to]
		if ch < len(in.Data64) {
			copy(dst, in.Data64[ch][from:to])
		}
		dsp.Scale(dst, gain)
	}
}
