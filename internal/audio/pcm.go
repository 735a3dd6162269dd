package audio

import "encoding/binary"

// PCM16LEToInt16 decodes little-endian 16-bit PCM bytes into samples.
func PCM16LEToInt16(data []byte) []int16 {
	n := len(data) / 2
	samples := make([]int16, n)
	for i := range n {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// Int16ToPCM16LE encodes samples into little-endian 16-bit PCM bytes.
func Int16ToPCM16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// PCM16LEToFloat32 decodes little-endian 16-bit PCM bytes into normalized
// [-1, 1] float32 samples, the format the classification sidecar expects.
func PCM16LEToFloat32(data []byte) []float32 {
	ints := PCM16LEToInt16(data)
	samples := make([]float32, len(ints))
	for i, s := range ints {
		samples[i] = float32(s) / 32768.0
	}
	return samples
}
