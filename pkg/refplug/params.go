package refplug

import (
	"fmt"
	"math"
	"strconv"
	"sync/atomic"

	"github.com/justyntemme/claphost/pkg/clap"
)

// parameter is the plugin-side view of one parameter. The value is stored
// atomically so the process call can read it without locking.
type parameter struct {
	info  clap.ParamInfo
	value atomic.Uint64

	format func(float64) string
	parse  func(string) (float64, error)
}

func (p *parameter) get() float64 {
	return math.Float64frombits(p.value.Load())
}

// set clamps v into range, rounding stepped values, and reports whether the
// stored value changed.
func (p *parameter) set(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if p.info.Flags&clap.ParamIsStepped != 0 {
		v = math.Round(v)
	}
	v = math.Max(p.info.MinValue, math.Min(p.info.MaxValue, v))
	return p.value.Swap(math.Float64bits(v)) != math.Float64bits(v)
}

func (p *parameter) text(v float64) string {
	if p.format != nil {
		return p.format(v)
	}
	if p.info.Flags&clap.ParamIsStepped != 0 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func (p *parameter) fromText(s string) (float64, error) {
	if p.parse != nil {
		return p.parse(s)
	}
	return strconv.ParseFloat(s, 64)
}

// paramBuilder provides a fluent API for declaring parameters
type paramBuilder struct {
	p *parameter
}

func newParam(id uint32, name string) *paramBuilder {
	return &paramBuilder{p: &parameter{info: clap.ParamInfo{
		ID:       id,
		Name:     name,
		MaxValue: 1,
		Flags:    clap.ParamIsAutomatable,
	}}}
}

func (b *paramBuilder) module(path string) *paramBuilder {
	b.p.info.Module = path
	return b
}

func (b *paramBuilder) rng(lo, hi float64) *paramBuilder {
	b.p.info.MinValue = lo
	b.p.info.MaxValue = hi
	return b
}

func (b *paramBuilder) def(v float64) *paramBuilder {
	b.p.info.DefaultValue = v
	return b
}

func (b *paramBuilder) stepped() *paramBuilder {
	b.p.info.Flags |= clap.ParamIsStepped
	return b
}

// toggle makes a stepped on/off parameter.
func (b *paramBuilder) toggle() *paramBuilder {
	b.p.format = onOffFormatter
	b.p.parse = onOffParser
	return b.rng(0, 1).def(0).stepped()
}

func (b *paramBuilder) bypass() *paramBuilder {
	b.p.info.Flags |= clap.ParamIsBypass
	return b.toggle()
}

func (b *paramBuilder) formatter(format func(float64) string, parse func(string) (float64, error)) *paramBuilder {
	b.p.format = format
	b.p.parse = parse
	return b
}

func (b *paramBuilder) build() *parameter {
	b.p.value.Store(math.Float64bits(b.p.info.DefaultValue))
	return b.p
}

// paramSet is the ordered parameter list of one plugin instance.
type paramSet struct {
	list []*parameter
	byID map[uint32]*parameter

	// changed runs after a value changed, on whichever context applied it.
	changed func(id uint32, v float64)
}

func newParamSet(params ...*parameter) *paramSet {
	s := &paramSet{list: params, byID: make(map[uint32]*parameter, len(params))}
	for _, p := range params {
		s.byID[p.info.ID] = p
	}
	return s
}

func (s *paramSet) value(id uint32) float64 {
	if p, ok := s.byID[id]; ok {
		return p.get()
	}
	return 0
}

func (s *paramSet) set(id uint32, v float64) {
	p, ok := s.byID[id]
	if !ok || !p.set(v) {
		return
	}
	if s.changed != nil {
		s.changed(id, p.get())
	}
}

// apply handles one input event and reports whether it was a parameter
// change for this set.
func (s *paramSet) apply(ev *clap.Event) bool {
	if ev.SpaceID != clap.CoreEventSpaceID || ev.Type != clap.EventParamValue {
		return false
	}
	s.set(ev.ParamID, ev.Value)
	return true
}

func (s *paramSet) table() *clap.PluginParams {
	return &clap.PluginParams{
		Count: func() uint32 { return uint32(len(s.list)) },
		GetInfo: func(index uint32, info *clap.ParamInfo) bool {
			if int(index) >= len(s.list) {
				return false
			}
			*info = s.list[index].info
			return true
		},
		GetValue: func(id uint32, value *float64) bool {
			p, ok := s.byID[id]
			if !ok {
				return false
			}
			*value = p.get()
			return true
		},
		ValueToText: func(id uint32, value float64) (string, bool) {
			p, ok := s.byID[id]
			if !ok {
				return "", false
			}
			return p.text(value), true
		},
		TextToValue: func(id uint32, text string) (float64, bool) {
			p, ok := s.byID[id]
			if !ok {
				return 0, false
			}
			v, err := p.fromText(text)
			return v, err == nil
		},
		Flush: func(in clap.InputEvents, out clap.OutputEvents) {
			for i := uint32(0); i < in.Size(); i++ {
				s.apply(in.Get(i))
			}
		},
	}
}
