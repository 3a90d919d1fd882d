package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// WAVHeaderSize is the length of the canonical RIFF/WAVE header written by
// EncodeWAVPCM16LE.
const WAVHeaderSize = 44

// WAVFormat describes the fmt chunk of a PCM WAV stream.
type WAVFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
	DataSize      uint32
}

var errShortWAV = errors.New("wav: input shorter than header")

// EncodeWAVPCM16LE wraps raw PCM16LE mono samples in a WAV container.
func EncodeWAVPCM16LE(pcm []byte, sampleRate int) []byte {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	const (
		channels      = 1
		bitsPerSample = 16
	)
	blockAlign := channels * bitsPerSample / 8

	out := make([]byte, WAVHeaderSize+len(pcm))
	le := binary.LittleEndian
	copy(out[0:], "RIFF")
	le.PutUint32(out[4:], uint32(36+len(pcm)))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	le.PutUint32(out[16:], 16)
	le.PutUint16(out[20:], 1)
	le.PutUint16(out[22:], channels)
	le.PutUint32(out[24:], uint32(sampleRate))
	le.PutUint32(out[28:], uint32(sampleRate*blockAlign))
	le.PutUint16(out[32:], uint16(blockAlign))
	le.PutUint16(out[34:], bitsPerSample)
	copy(out[36:], "data")
	le.PutUint32(out[40:], uint32(len(pcm)))
	copy(out[WAVHeaderSize:], pcm)
	return out
}

// ParseWAVHeader reads the canonical 44-byte header from b.
func ParseWAVHeader(b []byte) (WAVFormat, error) {
	if len(b) < WAVHeaderSize {
		return WAVFormat{}, errShortWAV
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return WAVFormat{}, fmt.Errorf("wav: missing RIFF/WAVE magic")
	}
	if string(b[12:16]) != "fmt " || string(b[36:40]) != "data" {
		return WAVFormat{}, fmt.Errorf("wav: unexpected chunk layout")
	}
	le := binary.LittleEndian
	return WAVFormat{
		AudioFormat:   le.Uint16(b[20:]),
		Channels:      le.Uint16(b[22:]),
		SampleRate:    le.Uint32(b[24:]),
		BitsPerSample: le.Uint16(b[34:]),
		DataSize:      le.Uint32(b[40:]),
	}, nil
}

// IsNormalizedWAV reports whether b is already 16-bit mono PCM at sampleRate.
func IsNormalizedWAV(b []byte, sampleRate int) bool {
	f, err := ParseWAVHeader(b)
	if err != nil {
		return false
	}
	return f.AudioFormat == 1 && f.Channels == 1 && f.BitsPerSample == 16 && int(f.SampleRate) == sampleRate
}
