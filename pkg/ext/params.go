package ext

import (
	"github.com/justyntemme/claphost/pkg/clap"
)

// Params wraps the params extension. All calls are main-thread only.
type Params struct {
	raw   *clap.PluginParams
	guard *Guard
}

// NewParams negotiates the params extension. A table missing any of Count,
// GetInfo or GetValue is treated as unsupported.
func NewParams(n *Negotiator) (*Params, bool) {
	h, ok := n.Negotiate(clap.ExtParams)
	if !ok {
		return nil, false
	}
	raw, ok := h.raw.(*clap.PluginParams)
	if !ok {
		n.reject(clap.ExtParams, "unexpected table type")
		return nil, false
	}
	if raw.Count == nil || raw.GetInfo == nil || raw.GetValue == nil {
		n.reject(clap.ExtParams, "missing required function")
		return nil, false
	}
	return &Params{raw: raw, guard: n.guard}, true
}

// Count returns the number of parameters.
func (p *Params) Count() (uint32, error) {
	if err := p.guard.Check("params.count"); err != nil {
		return 0, err
	}
	return p.raw.Count(), nil
}

// Info returns the info of the parameter at index.
func (p *Params) Info(index uint32) (clap.ParamInfo, bool, error) {
	if err := p.guard.Check("params.get_info"); err != nil {
		return clap.ParamInfo{}, false, err
	}
	var info clap.ParamInfo
	ok := p.raw.GetInfo(index, &info)
	return info, ok, nil
}

// Value returns the plugin's current value for id.
func (p *Params) Value(id uint32) (float64, bool, error) {
	if err := p.guard.Check("params.get_value"); err != nil {
		return 0, false, err
	}
	var v float64
	ok := p.raw.GetValue(id, &v)
	return v, ok, nil
}

// ValueToText formats v with the plugin's own formatter.
func (p *Params) ValueToText(id uint32, v float64) (string, bool, error) {
	if err := p.guard.Check("params.value_to_text"); err != nil {
		return "", false, err
	}
	if p.raw.ValueToText == nil {
		return "", false, nil
	}
	s, ok := p.raw.ValueToText(id, v)
	return s, ok, nil
}

// TextToValue parses text with the plugin's own parser.
func (p *Params) TextToValue(id uint32, text string) (float64, bool, error) {
	if err := p.guard.Check("params.text_to_value"); err != nil {
		return 0, false, err
	}
	if p.raw.TextToValue == nil {
		return 0, false, nil
	}
	v, ok := p.raw.TextToValue(id, text)
	return v, ok, nil
}

// CanFlush reports whether the plugin accepts parameter events outside
// processing.
func (p *Params) CanFlush() bool {
	return p.raw.Flush != nil
}

// Flush delivers in to the plugin outside of processing. Events the plugin
// produces in response are written to out.
func (p *Params) Flush(in clap.InputEvents, out clap.OutputEvents) error {
	if err := p.guard.Check("params.flush"); err != nil {
		return err
	}
	if p.raw.Flush != nil {
		p.raw.Flush(in, out)
	}
	return nil
}
