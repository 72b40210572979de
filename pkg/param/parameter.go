// Package param tracks the parameter set of a hosted plugin instance and
// validates, delivers and schedules value changes.
package param

import (
	"fmt"
	"math"
	"strconv"
	"sync/atomic"

	"github.com/justyntemme/claphost/pkg/clap"
)

// Info describes one parameter as reported by the plugin.
type Info struct {
	ID           uint32
	Cookie       uintptr
	Name         string
	Module       string
	Min          float64
	Max          float64
	DefaultValue float64
	Flags        uint32
}

func infoFromRaw(raw clap.ParamInfo) Info {
	return Info{
		ID:           raw.ID,
		Cookie:       raw.Cookie,
		Name:         raw.Name,
		Module:       raw.Module,
		Min:          raw.MinValue,
		Max:          raw.MaxValue,
		DefaultValue: raw.DefaultValue,
		Flags:        raw.Flags,
	}
}

func (i Info) IsStepped() bool     { return i.Flags&clap.ParamIsStepped != 0 }
func (i Info) IsPeriodic() bool    { return i.Flags&clap.ParamIsPeriodic != 0 }
func (i Info) IsHidden() bool      { return i.Flags&clap.ParamIsHidden != 0 }
func (i Info) IsReadOnly() bool    { return i.Flags&clap.ParamIsReadOnly != 0 }
func (i Info) IsBypass() bool      { return i.Flags&clap.ParamIsBypass != 0 }
func (i Info) IsAutomatable() bool { return i.Flags&clap.ParamIsAutomatable != 0 }
func (i Info) IsModulatable() bool { return i.Flags&clap.ParamIsModulatable != 0 }

// Normalize converts plain value to normalized (0-1)
func (i Info) Normalize(plain float64) float64 {
	if i.Max <= i.Min {
		return 0
	}
	normalized := (plain - i.Min) / (i.Max - i.Min)
	if normalized < 0 {
		return 0
	}
	if normalized > 1 {
		return 1
	}
	return normalized
}

// Denormalize converts normalized (0-1) to plain value
func (i Info) Denormalize(normalized float64) float64 {
	return i.Min + normalized*(i.Max-i.Min)
}

// Validate checks v against the parameter's range. Stepped parameters are
// rounded to the nearest step and clamped instead of being rejected.
func (i Info) Validate(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, clap.Errorf(clap.ErrValueOutOfRange, "param.validate", "param %d: value %v is not finite", i.ID, v)
	}
	if i.IsStepped() {
		v = math.Round(v)
		return math.Max(i.Min, math.Min(i.Max, v)), nil
	}
	if v < i.Min || v > i.Max {
		return 0, clap.Errorf(clap.ErrValueOutOfRange, "param.validate", "param %d: %v outside [%v, %v]", i.ID, v, i.Min, i.Max)
	}
	return v, nil
}

// FormatValue is the fallback used when the plugin cannot format a value.
func (i Info) FormatValue(plain float64) string {
	if i.IsStepped() {
		return fmt.Sprintf("%.0f", plain)
	}
	return fmt.Sprintf("%.2f", plain)
}

// ParseValue is the fallback used when the plugin cannot parse text.
func (i Info) ParseValue(text string) (float64, error) {
	return strconv.ParseFloat(text, 64)
}

// Parameter pairs an Info with the last value the plugin reported for it.
// The reported value is stored atomically so the real-time context can
// update it without locking.
type Parameter struct {
	Info

	value    atomic.Uint64
	reported atomic.Bool
}

// Reported returns the last value observed from the plugin's output events.
func (p *Parameter) Reported() (float64, bool) {
	if !p.reported.Load() {
		return 0, false
	}
	return math.Float64frombits(p.value.Load()), true
}

func (p *Parameter) report(v float64) {
	p.value.Store(math.Float64bits(v))
	p.reported.Store(true)
}
