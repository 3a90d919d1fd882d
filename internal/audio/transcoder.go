package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// DefaultSampleRate is the rate recognizers expect.
const DefaultSampleRate = 16000

// Transcoder converts an encoded clip into 16-bit mono PCM WAV.
type Transcoder interface {
	Transcode(ctx context.Context, clip []byte) ([]byte, error)
}

// FFmpegTranscoder shells out to ffmpeg. The clip is staged in a temp file
// since containers like m4a need a seekable input.
type FFmpegTranscoder struct {
	binaryPath string
	sampleRate int
	tempDir    string
}

func NewFFmpegTranscoder(binaryPath string, sampleRate int) *FFmpegTranscoder {
	binaryPath = strings.TrimSpace(binaryPath)
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &FFmpegTranscoder{binaryPath: binaryPath, sampleRate: sampleRate}
}

// Available reports whether the ffmpeg binary can be found.
func (t *FFmpegTranscoder) Available() bool {
	_, err := exec.LookPath(t.binaryPath)
	return err == nil
}

func (t *FFmpegTranscoder) Transcode(ctx context.Context, clip []byte) ([]byte, error) {
	if len(clip) == 0 {
		return nil, errors.New("ffmpeg: empty input")
	}

	in, err := os.CreateTemp(t.tempDir, "voicebridge-*.m4a")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: stage input: %w", err)
	}
	defer os.Remove(in.Name())
	if _, err := in.Write(clip); err != nil {
		_ = in.Close()
		return nil, fmt.Errorf("ffmpeg: stage input: %w", err)
	}
	if err := in.Close(); err != nil {
		return nil, fmt.Errorf("ffmpeg: stage input: %w", err)
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-i", in.Name(),
		"-ac", "1",
		"-ar", strconv.Itoa(t.sampleRate),
		"-acodec", "pcm_s16le",
		"-f", "s16le",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, t.binaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("ffmpeg failed: %w", err)
	}
	if stdout.Len() == 0 {
		return nil, errors.New("ffmpeg: produced no audio")
	}
	return EncodeWAVPCM16LE(stdout.Bytes(), t.sampleRate), nil
}

// PassthroughTranscoder accepts clips that are already normalized WAV and
// rejects anything else. It backs deployments without ffmpeg.
type PassthroughTranscoder struct {
	SampleRate int
}

func (p PassthroughTranscoder) Transcode(_ context.Context, clip []byte) ([]byte, error) {
	rate := p.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	if !IsNormalizedWAV(clip, rate) {
		return nil, fmt.Errorf("passthrough: clip is not %d Hz mono pcm_s16le wav", rate)
	}
	return clip, nil
}
