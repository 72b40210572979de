package dsp

import "math"

// Stage represents the current envelope stage
type Stage int

const (
	StageIdle Stage = iota
	StageAttack
	StageDecay
	StageSustain
	StageRelease
)

// silence is the level below which a releasing envelope goes idle.
const silence = 0.001

// ADSR implements an Attack-Decay-Sustain-Release envelope generator with
// exponential segments.
type ADSR struct {
	sampleRate float64

	// Times in seconds, sustain 0-1.
	attack  float64
	decay   float64
	sustain float64
	release float64

	attackCoef  float64
	decayCoef   float64
	releaseCoef float64

	stage  Stage
	value  float64
	target float64
}

// NewADSR creates an envelope with 10ms attack, 100ms decay, 0.7 sustain and
// 300ms release.
func NewADSR(sampleRate float64) *ADSR {
	e := &ADSR{sampleRate: sampleRate}
	e.Set(0.01, 0.1, 0.7, 0.3)
	return e
}

// SetSampleRate recomputes the coefficients for a new rate.
func (e *ADSR) SetSampleRate(sampleRate float64) {
	e.sampleRate = sampleRate
	e.update()
}

// Set sets all parameters at once. Times are clamped to at least 1ms.
func (e *ADSR) Set(attack, decay, sustain, release float64) {
	e.attack = math.Max(0.001, attack)
	e.decay = math.Max(0.001, decay)
	e.sustain = math.Max(0, math.Min(1, sustain))
	e.release = math.Max(0.001, release)
	e.update()
}

func (e *ADSR) update() {
	e.attackCoef = coef(e.attack, e.sampleRate)
	e.decayCoef = coef(e.decay, e.sampleRate)
	e.releaseCoef = coef(e.release, e.sampleRate)
}

// coef = exp(-1 / (time * sampleRate))
func coef(seconds, sampleRate float64) float64 {
	if seconds <= 0 || sampleRate <= 0 {
		return 0
	}
	return math.Exp(-1 / (seconds * sampleRate))
}

// Trigger starts the attack stage (note on)
func (e *ADSR) Trigger() {
	e.stage = StageAttack
	// Aim past 1 so the exponential reaches full level in finite time.
	e.target = 1.2
}

// Release starts the release stage (note off)
func (e *ADSR) Release() {
	if e.stage != StageIdle {
		e.stage = StageRelease
		e.target = 0
	}
}

// Reset immediately returns the envelope to idle
func (e *ADSR) Reset() {
	e.stage = StageIdle
	e.value = 0
	e.target = 0
}

// Active reports whether the envelope is producing output.
func (e *ADSR) Active() bool { return e.stage != StageIdle }

// Stage returns the current stage.
func (e *ADSR) Stage() Stage { return e.stage }

// Level returns the last output value.
func (e *ADSR) Level() float64 { return e.value }

// ReleaseSamples estimates how long a release from full level rings, in
// samples.
func (e *ADSR) ReleaseSamples() uint32 {
	// exp(-n/(t*sr)) = silence
	return uint32(math.Ceil(-math.Log(silence) * e.release * e.sampleRate))
}

// Next generates the next envelope value
func (e *ADSR) Next() float64 {
	switch e.stage {
	case StageAttack:
		e.value = e.target + (e.value-e.target)*e.attackCoef
		if e.value >= 1 {
			e.value = 1
			e.stage = StageDecay
			e.target = e.sustain
		}
	case StageDecay:
		e.value = e.target + (e.value-e.target)*e.decayCoef
		if e.value <= e.sustain+silence {
			e.value = e.sustain
			e.stage = StageSustain
		}
	case StageSustain:
		e.value = e.sustain
	case StageRelease:
		e.value = e.target + (e.value-e.target)*e.releaseCoef
		if e.value <= silence {
			e.value = 0
			e.stage = StageIdle
		}
	default:
		e.value = 0
	}
	return e.value
}
