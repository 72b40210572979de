// Package bus describes the audio port layout of a plugin instance.
package bus

import (
	"github.com/justyntemme/claphost/pkg/clap"
)

// Direction represents the port direction
type Direction int

const (
	// Input represents an input port
	Input Direction = iota
	// Output represents an output port
	Output
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// Port describes one audio port.
type Port struct {
	ID          uint32
	Name        string
	Channels    int
	Main        bool
	Supports64  bool
	Prefers64   bool
	PortType    string
	InPlacePair uint32
}

// Info returns the port in raw table form.
func (p Port) Info() clap.AudioPortInfo {
	var flags uint32
	if p.Main {
		flags |= clap.AudioPortIsMain
	}
	if p.Supports64 {
		flags |= clap.AudioPortSupports64Bits
	}
	if p.Prefers64 {
		flags |= clap.AudioPortPrefers64Bits
	}
	return clap.AudioPortInfo{
		ID:           p.ID,
		Name:         p.Name,
		Flags:        flags,
		ChannelCount: uint32(p.Channels),
		PortType:     p.PortType,
		InPlacePair:  p.InPlacePair,
	}
}

// PortFromInfo converts a port reported by a plugin.
func PortFromInfo(info clap.AudioPortInfo) Port {
	return Port{
		ID:          info.ID,
		Name:        info.Name,
		Channels:    int(info.ChannelCount),
		Main:        info.Flags&clap.AudioPortIsMain != 0,
		Supports64:  info.Flags&clap.AudioPortSupports64Bits != 0,
		Prefers64:   info.Flags&clap.AudioPortPrefers64Bits != 0,
		PortType:    info.PortType,
		InPlacePair: info.InPlacePair,
	}
}

// Layout is the ordered set of input and output ports. Host buffers map onto
// it as flat channel lists: the first port's channels come first.
type Layout struct {
	Inputs  []Port
	Outputs []Port
}

// Stereo is the layout assumed for plugins without the audio-ports
// extension: one stereo input and one stereo output.
func Stereo() Layout {
	return Layout{
		Inputs:  []Port{{ID: 0, Name: "Stereo In", Channels: 2, Main: true, PortType: clap.PortStereo, InPlacePair: clap.InvalidID}},
		Outputs: []Port{{ID: 0, Name: "Stereo Out", Channels: 2, Main: true, PortType: clap.PortStereo, InPlacePair: clap.InvalidID}},
	}
}

// FromPorts builds a layout from the port lists a plugin reported.
func FromPorts(inputs, outputs []clap.AudioPortInfo) Layout {
	l := Layout{
		Inputs:  make([]Port, len(inputs)),
		Outputs: make([]Port, len(outputs)),
	}
	for i, info := range inputs {
		l.Inputs[i] = PortFromInfo(info)
	}
	for i, info := range outputs {
		l.Outputs[i] = PortFromInfo(info)
	}
	return l
}

// Ports returns the ports in direction d.
func (l Layout) Ports(d Direction) []Port {
	if d == Input {
		return l.Inputs
	}
	return l.Outputs
}

// Channels returns the total channel count in direction d.
func (l Layout) Channels(d Direction) int {
	n := 0
	for _, p := range l.Ports(d) {
		n += p.Channels
	}
	return n
}

// Supports64 reports whether every port accepts 64-bit samples.
func (l Layout) Supports64() bool {
	for _, p := range l.Inputs {
		if !p.Supports64 {
			return false
		}
	}
	for _, p := range l.Outputs {
		if !p.Supports64 {
			return false
		}
	}
	return true
}

// Main returns the main port in direction d, if any.
func (l Layout) Main(d Direction) (Port, bool) {
	for _, p := range l.Ports(d) {
		if p.Main {
			return p, true
		}
	}
	return Port{}, false
}

// Table exposes the layout as an audio-ports extension table. Plugins
// implemented in Go use it to publish their ports.
func (l Layout) Table() *clap.PluginAudioPorts {
	return &clap.PluginAudioPorts{
		Count: func(isInput bool) uint32 {
			if isInput {
				return uint32(len(l.Inputs))
			}
			return uint32(len(l.Outputs))
		},
		Get: func(index uint32, isInput bool, info *clap.AudioPortInfo) bool {
			ports := l.Outputs
			if isInput {
				ports = l.Inputs
			}
			if int(index) >= len(ports) {
				return false
			}
			*info = ports[index].Info()
			return true
		},
	}
}
