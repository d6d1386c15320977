package audio

import (
	"math"
)

// FloatToPCM16 converts a float sample to a signed 16-bit value. The input is
// clamped to [-1, 1]; negative values scale by 32768 and the rest by 32767.
// NaN maps to silence.
func FloatToPCM16(sample float32) int16 {
	s := float64(sample)
	if math.IsNaN(s) {
		return 0
	}
	s = math.Max(-1, math.Min(1, s))
	if s < 0 {
		return int16(s * 0x8000)
	}
	return int16(s * 0x7FFF)
}

// PCM16ToFloat converts signed 16-bit samples to floats in [-1, 1).
func PCM16ToFloat(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768
	}
	return out
}

// Downmix averages per-channel buffers into a single channel. Channels of
// unequal length are truncated to the shortest one.
func Downmix(channels [][]float32) []float32 {
	switch len(channels) {
	case 0:
		return nil
	case 1:
		return channels[0]
	}

	n := len(channels[0])
	for _, ch := range channels[1:] {
		if len(ch) < n {
			n = len(ch)
		}
	}

	mono := make([]float32, n)
	scale := 1 / float32(len(channels))
	for i := 0; i < n; i++ {
		var sum float32
		for _, ch := range channels {
			sum += ch[i]
		}
		mono[i] = sum * scale
	}
	return mono
}

// Deinterleave splits frame-interleaved samples into one slice per channel.
func Deinterleave(interleaved []float32, channels int) [][]float32 {
	if channels <= 1 {
		return [][]float32{interleaved}
	}
	frames := len(interleaved) / channels
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			out[c][i] = interleaved[i*channels+c]
		}
	}
	return out
}

// CalculateRMS calculates the root mean square (RMS) of audio samples
// Useful for detecting audio levels and silence
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}
