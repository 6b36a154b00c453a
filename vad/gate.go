// Package vad implements the energy-ratio voice activity gate that decides,
// per capture buffer, whether audio is retained for transcription.
package vad

import (
	"encoding/binary"
	"math"
)

const (
	DefaultCutoffHz  = 200.0 // high-pass cutoff to strip DC and rumble
	DefaultTailMs    = 25
	DefaultThreshold = 2.0
)

// Gate classifies PCM buffers as voice or silence. A buffer counts as voice
// when its trailing window is not disproportionately louder than the whole
// buffer: speech fills the buffer, while silence broken by a trailing
// transient does not. Deliberately simple; not a trained VAD.
type Gate struct {
	SampleRate int
	CutoffHz   float32 // 0 disables the high-pass filter
	TailMs     int
	Threshold  float32
}

func New(sampleRate int) *Gate {
	return &Gate{
		SampleRate: sampleRate,
		CutoffHz:   DefaultCutoffHz,
		TailMs:     DefaultTailMs,
		Threshold:  DefaultThreshold,
	}
}

// Voice reports whether samples contain speech. Buffers shorter than the
// trailing window carry too little signal to judge and classify as silence.
func (g *Gate) Voice(samples []float32) bool {
	tail := g.SampleRate * g.TailMs / 1000
	if len(samples) <= tail || tail == 0 {
		return false
	}

	data := samples
	if g.CutoffHz > 0 {
		data = highPass(samples, g.CutoffHz, float32(g.SampleRate))
	}

	var energyAll, energyTail float32
	for i, s := range data {
		a := float32(math.Abs(float64(s)))
		energyAll += a
		if i >= len(data)-tail {
			energyTail += a
		}
	}
	energyAll /= float32(len(data))
	energyTail /= float32(tail)

	return energyTail <= g.Threshold*energyAll
}

// highPass applies a single-pole high-pass filter, leaving the input intact.
func highPass(data []float32, cutoff, sampleRate float32) []float32 {
	rc := 1.0 / (2.0 * math.Pi * cutoff)
	dt := 1.0 / sampleRate
	alpha := dt / (rc + dt)

	out := make([]float32, len(data))
	copy(out, data)
	y := out[0]
	for i := 1; i < len(data); i++ {
		y = alpha * (y + out[i] - out[i-1])
		out[i] = y
	}
	return out
}

// Samples converts little-endian 16-bit PCM bytes to normalized float32
// samples in [-1, 1]. A trailing odd byte is ignored.
func Samples(pcm []byte) []float32 {
	out := make([]float32, 0, len(pcm)/2)
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		f := float32(s) / 32767.0
		if f < -1.0 {
			f = -1.0
		} else if f > 1.0 {
			f = 1.0
		}
		out = append(out, f)
	}
	return out
}

// Level returns the RMS level of a PCM byte buffer, used for the input meter.
func Level(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}
	var sumSquares float64
	n := 0
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		f := float64(s) / 32768.0
		sumSquares += f * f
		n++
	}
	return math.Sqrt(sumSquares / float64(n))
}
