package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ConvertFloat32PCM converts 32-bit float PCM in [-1,1] to 16-bit signed
// linear PCM. Samples are clamped to [-1,1]; negative values scale by 32768
// and non-negative values by 32767 so that both rails map onto the int16
// range without overflow.
func ConvertFloat32PCM(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		if s < 0 {
			out[i] = int16(s * 32768)
		} else {
			out[i] = int16(s * 32767)
		}
	}
	return out
}

// DecodeFloat32LE decodes little-endian 32-bit float PCM from its wire form.
// The payload length must be a multiple of 4.
func DecodeFloat32LE(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("float32 PCM payload length must be a multiple of 4, got %d", len(data))
	}

	samples := make([]float32, len(data)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		samples[i] = math.Float32frombits(bits)
	}
	return samples, nil
}

// EncodeInt16LE encodes 16-bit PCM samples as little-endian bytes for
// transmission to the transcription backend.
func EncodeInt16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(s))
	}
	return out
}

// DecodeInt16LE decodes little-endian 16-bit PCM bytes into samples.
func DecodeInt16LE(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("int16 PCM payload length must be even, got %d", len(data))
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
	}
	return samples, nil
}

// CalculateRMS calculates the root mean square of audio samples.
// Used for detecting audio levels and silence.
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
