package playback

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// Narration payload format: base64 of 16-bit signed little-endian PCM, mono.
const (
	SampleRate = 24000
	Channels   = 1
)

// DecodeError means the audio payload could not be turned into samples.
// Playback carries on without sound.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode audio: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var errEmptyAudio = errors.New("payload has no samples")

// DecodePCM16 decodes a base64 PCM16 payload into samples in [-1, 1).
func DecodePCM16(payload string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return DecodePCM16Bytes(raw)
}

// DecodePCM16Bytes is DecodePCM16 for an already decoded byte stream.
func DecodePCM16Bytes(raw []byte) ([]float32, error) {
	if len(raw) == 0 {
		return nil, &DecodeError{Err: errEmptyAudio}
	}
	if len(raw)%2 != 0 {
		return nil, &DecodeError{Err: fmt.Errorf("odd byte count %d", len(raw))}
	}
	samples := make([]float32, len(raw)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(raw[2*i:]))
		samples[i] = float32(s) / 32768
	}
	return samples, nil
}

// PCM16Bytes converts samples back to little-endian PCM16. Values outside [-1, 1) are clipped.
func PCM16Bytes(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	AppendPCM16(out[:0], samples)
	return out
}

// AppendPCM16 appends the PCM16 encoding of samples to dst.
func AppendPCM16(dst []byte, samples []float32) []byte {
	for _, f := range samples {
		v := math.Round(float64(f) * 32768)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		dst = binary.LittleEndian.AppendUint16(dst, uint16(int16(v)))
	}
	return dst
}

// EncodePCM16 is the inverse of DecodePCM16.
func EncodePCM16(samples []float32) string {
	return base64.StdEncoding.EncodeToString(PCM16Bytes(samples))
}

// SampleDuration is the playing time of n samples.
func SampleDuration(n int) time.Duration {
	return time.Duration(n) * time.Second / SampleRate
}
