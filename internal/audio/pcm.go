package audio

import (
	"encoding/binary"
	"math"
)

// Recognizer input is 16 kHz mono signed 16-bit little-endian PCM.
const (
	SampleRate      = 16000
	FramesPerBuffer = 8000
)

func PCMBytesToInt16(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

func Int16ToPCMBytes(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return pcm
}

// ResampleInt16 converts between sample rates by linear interpolation.
func ResampleInt16(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 {
		return samples
	}

	ratio := float64(toRate) / float64(fromRate)
	out := make([]int16, int(math.Ceil(float64(len(samples))*ratio)))
	for i := range out {
		pos := float64(i) / ratio
		idx := int(pos)
		frac := pos - float64(idx)

		switch {
		case idx+1 < len(samples):
			v := float64(samples[idx])*(1-frac) + float64(samples[idx+1])*frac
			out[i] = int16(math.Round(v))
		case idx < len(samples):
			out[i] = samples[idx]
		}
	}
	return out
}

// Level returns the RMS amplitude of samples in [0,1].
func Level(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
