package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/ent0n29/voicebridge/internal/audio"
)

// tonePCM16 renders a mono sine tone. Mock recognizers treat any clip longer
// than a bare header as speech.
func tonePCM16(freq float64, durationMS, sampleRate int) []byte {
	n := sampleRate * durationMS / 1000
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := 0.3 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*math.MaxInt16)))
	}
	return out
}

// decodeWAVPCM16 walks the RIFF chunks of a 16-bit PCM WAV and returns mono
// samples, averaging channels when the file is multi-channel.
func decodeWAVPCM16(data []byte) ([]byte, int, error) {
	if len(data) < 12 {
		return nil, 0, errors.New("wav too short")
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, errors.New("unsupported wav header")
	}

	var (
		format  audio.WAVFormat
		haveFmt bool
		pcm     []byte
	)
	le := binary.LittleEndian
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(le.Uint32(data[off+4 : off+8]))
		off += 8
		if size < 0 || off+size > len(data) {
			return nil, 0, errors.New("invalid wav chunk size")
		}
		chunk := data[off : off+size]
		switch id {
		case "fmt ":
			if len(chunk) < 16 {
				return nil, 0, errors.New("invalid wav fmt chunk")
			}
			format.AudioFormat = le.Uint16(chunk[0:2])
			format.Channels = le.Uint16(chunk[2:4])
			format.SampleRate = le.Uint32(chunk[4:8])
			format.BitsPerSample = le.Uint16(chunk[14:16])
			haveFmt = true
		case "data":
			pcm = chunk
		}
		off += size + size%2
	}

	switch {
	case !haveFmt:
		return nil, 0, errors.New("wav fmt chunk missing")
	case len(pcm) == 0:
		return nil, 0, errors.New("wav data chunk missing")
	case format.AudioFormat != 1:
		return nil, 0, fmt.Errorf("unsupported wav audio format %d", format.AudioFormat)
	case format.BitsPerSample != 16:
		return nil, 0, fmt.Errorf("unsupported wav bits_per_sample %d", format.BitsPerSample)
	case format.Channels == 0:
		return nil, 0, errors.New("invalid wav channels=0")
	}
	rate := int(format.SampleRate)
	if rate <= 0 {
		rate = audio.DefaultSampleRate
	}

	channels := int(format.Channels)
	frameBytes := channels * 2
	frames := len(pcm) / frameBytes
	if frames == 0 {
		return nil, 0, errors.New("invalid wav frame bytes")
	}
	mono := make([]byte, frames*2)
	if channels == 1 {
		copy(mono, pcm)
		return mono, rate, nil
	}
	for i := 0; i < frames; i++ {
		base := i * frameBytes
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += int(int16(le.Uint16(pcm[base+ch*2:])))
		}
		le.PutUint16(mono[i*2:], uint16(int16(sum/channels)))
	}
	return mono, rate, nil
}
