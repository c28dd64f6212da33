package audio

import (
	"encoding/binary"
	"math"
)

// Conversion helpers shared by the capture backends. Host APIs hand blocks
// over as interleaved multi-channel buffers, int16 PCM, or raw little-endian
// bytes; the frame pipeline consumes mono float32. Only channel 0 of a
// multi-channel stream is consumed — there is no mixing.

// ExtractChannel returns channel ch of interleaved float32 PCM with the given
// channel count. For mono input with ch == 0 the input is returned unchanged
// (zero allocation). Out-of-range ch or a non-positive channel count returns
// nil.
func ExtractChannel(interleaved []float32, channels, ch int) []float32 {
	if channels <= 0 || ch < 0 || ch >= channels {
		return nil
	}
	if channels == 1 {
		return interleaved
	}
	out := make([]float32, 0, len(interleaved)/channels)
	for i := ch; i < len(interleaved); i += channels {
		out = append(out, interleaved[i])
	}
	return out
}

// Int16ToFloat32 converts int16 PCM samples to float32 in [-1, 1).
func Int16ToFloat32(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768
	}
	return out
}

// Float32FromBytes reinterprets little-endian float32 PCM bytes as samples.
// Trailing bytes that do not form a whole sample are ignored.
func Float32FromBytes(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// Int16FromBytes reinterprets little-endian int16 PCM bytes as samples.
// A trailing odd byte is ignored.
func Int16FromBytes(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// RMS returns the root-mean-square level of samples, or 0 for an empty slice.
// Used for cheap signal-level logging.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
