// Package process drives one block of audio and events through a plugin
// without allocating.
package process

// Buffers are the host's audio buffers for one block. They are not owned by
// the driver. Channels are listed flat and mapped onto the layout's ports in
// order. Either the 32-bit or the 64-bit pair is used, never both.
type Buffers struct {
	Inputs  [][]float32
	Outputs [][]float32

	Inputs64  [][]float64
	Outputs64 [][]float64

	Frames uint32
}

// NewBuffers allocates 32-bit buffers for the given channel counts.
func NewBuffers(inputs, outputs int, frames uint32) *Buffers {
	b := &Buffers{
		Inputs:  make([][]float32, inputs),
		Outputs: make([][]float32, outputs),
		Frames:  frames,
	}
	for i := range b.Inputs {
		b.Inputs[i] = make([]float32, frames)
	}
	for i := range b.Outputs {
		b.Outputs[i] = make([]float32, frames)
	}
	return b
}

// Is64 reports whether the block carries 64-bit samples.
func (b *Buffers) Is64() bool {
	return b.Inputs64 != nil || b.Outputs64 != nil
}

// ClearOutputs zeroes every output channel.
func (b *Buffers) ClearOutputs() {
	for _, ch := range b.Outputs {
		clear(ch)
	}
	for _, ch := range b.Outputs64 {
		clear(ch)
	}
}
