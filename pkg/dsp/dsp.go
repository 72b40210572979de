// Package dsp provides the signal processing kernels used by the reference
// plugins. Buffer functions work in place and never allocate.
package dsp

import "math"

// Sample is a 32-bit or 64-bit audio sample.
type Sample interface {
	~float32 | ~float64
}

// MinDB is the minimum dB value (effectively silence)
const MinDB = -200.0

// DbToLinear converts a decibel value to linear amplitude.
// Values <= MinDB return 0.
func DbToLinear(db float64) float64 {
	if db <= MinDB {
		return 0
	}
	return math.Pow(10.0, db/20.0)
}

// LinearToDb converts a linear amplitude value to decibels.
// Returns MinDB for values <= 0.
func LinearToDb(linear float64) float64 {
	if linear <= 0 {
		return MinDB
	}
	return math.Max(MinDB, 20.0*math.Log10(linear))
}

// Scale multiplies buffer by a constant
func Scale[T Sample](buffer []T, gain float64) {
	g := T(gain)
	for i := range buffer {
		buffer[i] *= g
	}
}

// Peak finds the maximum absolute value in a buffer
func Peak[T Sample](buffer []T) float64 {
	peak := 0.0
	for _, s := range buffer {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	return peak
}

// SumSquares returns the sum of squared samples.
func SumSquares[T Sample](buffer []T) float64 {
	sum := 0.0
	for _, s := range buffer {
		sum += float64(s) * float64(s)
	}
	return sum
}

// RMS calculates the root mean square of a buffer
func RMS[T Sample](buffer []T) float64 {
	if len(buffer) == 0 {
		return 0
	}
	return math.Sqrt(SumSquares(buffer) / float64(len(buffer)))
}
