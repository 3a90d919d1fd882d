package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/voicebridge/internal/app"
	"github.com/ent0n29/voicebridge/internal/audio"
	"github.com/ent0n29/voicebridge/internal/config"
)

func TestDecodeWAVPCM16MonoRoundTrip(t *testing.T) {
	pcm := []byte{
		0x00, 0x00,
		0xE8, 0x03, // 1000
		0x18, 0xFC, // -1000
	}
	got, rate, err := decodeWAVPCM16(audio.EncodeWAVPCM16LE(pcm, 16000))
	require.NoError(t, err)
	require.Equal(t, 16000, rate)
	require.Equal(t, pcm, got)
}

func TestDecodeWAVPCM16StereoDownmix(t *testing.T) {
	// Frame 1: L=1000, R=-1000 => avg=0
	// Frame 2: L=3000, R=1000  => avg=2000
	stereo := []byte{
		0xE8, 0x03, 0x18, 0xFC,
		0xB8, 0x0B, 0xE8, 0x03,
	}
	got, rate, err := decodeWAVPCM16(encodeWAV16Stereo(t, stereo, 24000))
	require.NoError(t, err)
	require.Equal(t, 24000, rate)
	require.Len(t, got, 4)
	require.Equal(t, int16(0), int16(binary.LittleEndian.Uint16(got[0:2])))
	require.Equal(t, int16(2000), int16(binary.LittleEndian.Uint16(got[2:4])))
}

func TestDecodeWAVPCM16Rejects(t *testing.T) {
	_, _, err := decodeWAVPCM16([]byte("RIFF"))
	require.Error(t, err)
	_, _, err = decodeWAVPCM16(append([]byte("RIFX\x00\x00\x00\x00WAVE"), make([]byte, 32)...))
	require.Error(t, err)
}

func TestToneLength(t *testing.T) {
	require.Len(t, tonePCM16(440, 100, 16000), 3200)
}

func TestWSURLFor(t *testing.T) {
	got, err := wsURLFor("http://127.0.0.1:3000")
	require.NoError(t, err)
	require.Equal(t, "ws://127.0.0.1:3000/ws", got)

	got, err = wsURLFor("https://relay.example/base/")
	require.NoError(t, err)
	require.Equal(t, "wss://relay.example/base/ws", got)

	_, err = wsURLFor("ftp://x")
	require.Error(t, err)
}

func TestPercentile(t *testing.T) {
	d := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	require.Equal(t, time.Duration(5), percentile(d, 0.5))
	require.Equal(t, time.Duration(9), percentile(d, 0.95))
	require.Zero(t, percentile(nil, 0.5))
}

func TestRunAgainstMockRelay(t *testing.T) {
	built, err := app.Build(config.Config{
		MetricsNamespace:   "test_perfrelay",
		SessionTTL:         time.Hour,
		SweepInterval:      time.Minute,
		DefaultLanguage:    "en-US",
		SampleRate:         16000,
		MaxClipBytes:       1 << 20,
		CORSOrigins:        []string{"*"},
		AllowAnyOrigin:     true,
		Transcoder:         "passthrough",
		STTProvider:        "mock",
		TranslatorProvider: "mock",
		TTSProvider:        "mock",
	}, zerolog.Nop())
	require.NoError(t, err)
	ts := httptest.NewServer(built.API.Router())
	defer ts.Close()

	opts := options{
		BaseURL: ts.URL,
		From:    "en-US",
		To:      "es-ES",
		Clips:   5,
		ToneMS:  100,
		Timeout: 5 * time.Second,
		Verbose: true,
	}
	require.NoError(t, opts.validate())

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rep, err := run(ctx, opts, &out)
	require.NoError(t, err)
	require.Equal(t, 5, rep.Sent)
	require.Equal(t, 5, rep.Delivered)
	require.Zero(t, rep.Failed)
	require.Positive(t, rep.Max)
	require.Contains(t, out.String(), `text="[es] simulated voice input"`)
}

func encodeWAV16Stereo(t *testing.T, stereoPCM []byte, sampleRate int) []byte {
	t.Helper()
	require.Zero(t, len(stereoPCM)%4)
	var b bytes.Buffer
	le := binary.LittleEndian
	b.WriteString("RIFF")
	_ = binary.Write(&b, le, uint32(36+len(stereoPCM)))
	b.WriteString("WAVEfmt ")
	_ = binary.Write(&b, le, uint32(16))
	_ = binary.Write(&b, le, uint16(1))
	_ = binary.Write(&b, le, uint16(2))
	_ = binary.Write(&b, le, uint32(sampleRate))
	_ = binary.Write(&b, le, uint32(sampleRate*4))
	_ = binary.Write(&b, le, uint16(4))
	_ = binary.Write(&b, le, uint16(16))
	b.WriteString("data")
	_ = binary.Write(&b, le, uint32(len(stereoPCM)))
	b.Write(stereoPCM)
	return b.Bytes()
}
