package dsp

import "math"

// Sine is a phase-accumulating sine oscillator.
type Sine struct {
	sampleRate float64
	phase      float64
	phaseInc   float64
}

// NewSine creates an oscillator at 440 Hz.
func NewSine(sampleRate float64) *Sine {
	s := &Sine{sampleRate: sampleRate}
	s.SetFrequency(440)
	return s
}

// SetSampleRate changes the rate while keeping the frequency.
func (s *Sine) SetSampleRate(sampleRate float64) {
	freq := s.phaseInc * s.sampleRate
	s.sampleRate = sampleRate
	s.SetFrequency(freq)
}

// SetFrequency sets the oscillator frequency in Hz.
func (s *Sine) SetFrequency(freq float64) {
	s.phaseInc = freq / s.sampleRate
}

// Reset resets the phase to 0
func (s *Sine) Reset() {
	s.phase = 0
}

// Next returns the next sample and advances the phase.
func (s *Sine) Next() float64 {
	v := math.Sin(2 * math.Pi * s.phase)
	s.phase += s.phaseInc
	if s.phase >= 1 {
		s.phase -= math.Floor(s.phase)
	}
	return v
}
