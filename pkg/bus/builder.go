package bus

import (
	"errors"
	"fmt"

	"github.com/justyntemme/claphost/pkg/clap"
)

// MaxChannels is the largest channel count accepted for a single port.
const MaxChannels = 32

// Builder provides a fluent API for building layouts
type Builder struct {
	layout Layout
	errs   []error
}

// NewBuilder creates a new layout builder
func NewBuilder() *Builder {
	return &Builder{}
}

// WithInput adds an input port. The first input added is the main one.
func (b *Builder) WithInput(name string, channels int) *Builder {
	b.layout.Inputs = append(b.layout.Inputs, b.port(name, channels, len(b.layout.Inputs) == 0))
	return b
}

// WithOutput adds an output port. The first output added is the main one.
func (b *Builder) WithOutput(name string, channels int) *Builder {
	b.layout.Outputs = append(b.layout.Outputs, b.port(name, channels, len(b.layout.Outputs) == 0))
	return b
}

// WithStereoInput adds a stereo input
func (b *Builder) WithStereoInput(name string) *Builder {
	return b.WithInput(name, 2)
}

// WithStereoOutput adds a stereo output
func (b *Builder) WithStereoOutput(name string) *Builder {
	return b.WithOutput(name, 2)
}

// WithMonoInput adds a mono input
func (b *Builder) WithMonoInput(name string) *Builder {
	return b.WithInput(name, 1)
}

// WithMonoOutput adds a mono output
func (b *Builder) WithMonoOutput(name string) *Builder {
	return b.WithOutput(name, 1)
}

// With64Bit marks every port added so far as accepting 64-bit samples.
func (b *Builder) With64Bit() *Builder {
	for i := range b.layout.Inputs {
		b.layout.Inputs[i].Supports64 = true
	}
	for i := range b.layout.Outputs {
		b.layout.Outputs[i].Supports64 = true
	}
	return b
}

// InPlace pairs input index in with output index out.
func (b *Builder) InPlace(in, out int) *Builder {
	if in >= len(b.layout.Inputs) || out >= len(b.layout.Outputs) {
		b.errs = append(b.errs, fmt.Errorf("in-place pair %d/%d: no such port", in, out))
		return b
	}
	b.layout.Inputs[in].InPlacePair = b.layout.Outputs[out].ID
	b.layout.Outputs[out].InPlacePair = b.layout.Inputs[in].ID
	return b
}

func (b *Builder) port(name string, channels int, main bool) Port {
	portType := ""
	switch channels {
	case 1:
		portType = clap.PortMono
	case 2:
		portType = clap.PortStereo
	}
	return Port{
		ID:          uint32(len(b.layout.Inputs) + len(b.layout.Outputs)),
		Name:        name,
		Channels:    channels,
		Main:        main,
		PortType:    portType,
		InPlacePair: clap.InvalidID,
	}
}

// Validate checks if the layout is valid
func (b *Builder) Validate() error {
	if len(b.errs) > 0 {
		return fmt.Errorf("builder errors: %w", errors.Join(b.errs...))
	}
	if len(b.layout.Outputs) == 0 {
		return errors.New("layout must have at least one output port")
	}
	for _, p := range append(b.layout.Inputs[:len(b.layout.Inputs):len(b.layout.Inputs)], b.layout.Outputs...) {
		if p.Channels <= 0 {
			return fmt.Errorf("invalid channel count %d for port %s", p.Channels, p.Name)
		}
		if p.Channels > MaxChannels {
			return fmt.Errorf("channel count %d exceeds maximum of %d for port %s", p.Channels, MaxChannels, p.Name)
		}
	}
	return nil
}

// Build returns the built layout or an error
func (b *Builder) Build() (Layout, error) {
	if err := b.Validate(); err != nil {
		return Layout{}, err
	}
	return b.layout, nil
}

// MustBuild returns the built layout or panics on error
func (b *Builder) MustBuild() Layout {
	l, err := b.Build()
	if err != nil {
		panic(err)
	}
	return l
}
