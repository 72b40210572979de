// Package meter measures the level of rendered audio.
package meter

import (
	"math"
	"sync"

	"github.com/justyntemme/claphost/pkg/dsp"
)

// SilentDB is the dB value reported for a zero level.
var SilentDB = math.Inf(-1)

func toDB(linear float64) float64 {
	if linear > 0 {
		return 20.0 * math.Log10(linear)
	}
	return SilentDB
}

// Peak measures peak levels with a decaying display value and a hold.
type Peak struct {
	mu         sync.Mutex
	sampleRate float64
	holdTime   float64
	decayRate  float64

	peak      float64
	hold      float64
	holdCount int
	max       float64
}

// NewPeak creates a peak meter with a 3 second hold and 20 dB/s decay.
func NewPeak(sampleRate float64) *Peak {
	return &Peak{
		sampleRate: sampleRate,
		holdTime:   3.0,
		decayRate:  20.0,
	}
}

// SetHoldTime sets the peak hold time in seconds
func (p *Peak) SetHoldTime(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.holdTime = seconds
}

// SetDecayRate sets the peak decay rate in dB/second
func (p *Peak) SetDecayRate(dbPerSecond float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decayRate = dbPerSecond
}

// Add updates the meter with the peak of a block of n samples.
func (p *Peak) Add(blockPeak float64, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	decayPerSample := p.decayRate / p.sampleRate / 20.0 * math.Ln10
	p.peak *= math.Exp(-decayPerSample * float64(n))
	p.peak = math.Max(p.peak, blockPeak)
	p.max = math.Max(p.max, blockPeak)

	if blockPeak > p.hold {
		p.hold = blockPeak
		p.holdCount = int(p.holdTime * p.sampleRate)
		return
	}
	p.holdCount -= n
	if p.holdCount <= 0 {
		p.hold = p.peak
		p.holdCount = 0
	}
}

// Value returns the decaying peak level (linear).
func (p *Peak) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peak
}

// Hold returns the held peak level (linear).
func (p *Peak) Hold() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hold
}

// Max returns the highest level seen since the last Reset.
func (p *Peak) Max() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.max
}

// Reset clears the peak and hold values
func (p *Peak) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.peak, p.hold, p.max = 0, 0, 0
	p.holdCount = 0
}

// RMS measures the RMS level over a sliding window and over everything
// seen since the last Reset.
type RMS struct {
	mu       sync.Mutex
	window   []float64
	writePos int
	sum      float64
	count    int

	totalSum   float64
	totalCount int
}

// NewRMS creates an RMS meter with the given window size.
func NewRMS(windowSamples int) *RMS {
	return &RMS{window: make([]float64, max(1, windowSamples))}
}

// add feeds one sample; the caller holds mu.
func (r *RMS) add(s float64) {
	old := r.window[r.writePos]
	r.sum -= old * old
	r.window[r.writePos] = s
	r.sum += s * s
	r.writePos = (r.writePos + 1) % len(r.window)
	if r.count < len(r.window) {
		r.count++
	}
	r.totalSum += s * s
	r.totalCount++
}

// Value returns the windowed RMS level (linear).
func (r *RMS) Value() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return 0
	}
	return math.Sqrt(math.Max(0, r.sum) / float64(r.count))
}

// Total returns the RMS level of everything seen since the last Reset.
func (r *RMS) Total() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.totalCount == 0 {
		return 0
	}
	return math.Sqrt(r.totalSum / float64(r.totalCount))
}

// Reset clears the RMS buffer
func (r *RMS) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.window)
	r.writePos, r.count, r.totalCount = 0, 0, 0
	r.sum, r.totalSum = 0, 0
}

func feed[T dsp.Sample](r *RMS, samples []T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range samples {
		r.add(float64(s))
	}
}

// Levels is a snapshot of one channel.
type Levels struct {
	Peak    float64 `json:"peak" yaml:"peak"`
	PeakDB  float64 `json:"peak_db" yaml:"peak_db"`
	RMS     float64 `json:"rms" yaml:"rms"`
	RMSDB   float64 `json:"rms_db" yaml:"rms_db"`
	Samples int     `json:"samples" yaml:"samples"`
}

// Meter meters every channel of a multi-channel signal.
type Meter struct {
	peaks []*Peak
	rms   []*RMS
}

// New creates a meter for channels channels. The RMS window is 300ms.
func New(channels int, sampleRate float64) *Meter {
	m := &Meter{
		peaks: make([]*Peak, channels),
		rms:   make([]*RMS, channels),
	}
	for i := range m.peaks {
		m.peaks[i] = NewPeak(sampleRate)
		m.rms[i] = NewRMS(int(0.3 * sampleRate))
	}
	return m
}

// Block32 meters the first frames samples of each channel.
func (m *Meter) Block32(channels [][]float32, frames int) {
	for i := 0; i < len(channels) && i < len(m.peaks); i++ {
		block := channels[i][:frames]
		m.peaks[i].Add(dsp.Peak(block), frames)
		feed(m.rms[i], block)
	}
}

// Block64 meters the first frames samples of each channel.
func (m *Meter) Block64(channels [][]float64, frames int) {
	for i := 0; i < len(channels) && i < len(m.peaks); i++ {
		block := channels[i][:frames]
		m.peaks[i].Add(dsp.Peak(block), frames)
		feed(m.rms[i], block)
	}
}

// Levels returns the peak and overall RMS of every channel since the last
// Reset.
func (m *Meter) Levels() []Levels {
	out := make([]Levels, len(m.peaks))
	for i := range m.peaks {
		peak := m.peaks[i].Max()
		rms := m.rms[i].Total()
		m.rms[i].mu.Lock()
		n := m.rms[i].totalCount
		m.rms[i].mu.Unlock()
		out[i] = Levels{Peak: peak, PeakDB: toDB(peak), RMS: rms, RMSDB: toDB(rms), Samples: n}
	}
	return out
}

// Silent reports whether every channel stayed at zero.
func (m *Meter) Silent() bool {
	for _, p := range m.peaks {
		if p.Max() > 0 {
			return false
		}
	}
	return true
}

// Reset clears every channel.
func (m *Meter) Reset() {
	for i := range m.peaks {
		m.peaks[i].Reset()
		m.rms[i].Reset()
	}
}
