package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ErrNoAudio is returned by RequireAudio for files without an audio stream.
var ErrNoAudio = errors.New("video has no audio stream")

// video file information
type Info struct {
	Duration   time.Duration
	FormatName string
	Width      int
	Height     int
	VideoCodec string
	AudioCodec string
	HasVideo   bool
	HasAudio   bool
}

// ffprobe JSON output, only the fields read here
type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// Prober inspects media files with ffprobe, which must be on PATH.
type Prober struct {
	Timeout time.Duration
}

func NewProber(timeout time.Duration) *Prober {
	return &Prober{Timeout: timeout}
}

// retrieves video file information
func (p *Prober) Probe(ctx context.Context, path string) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := p.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout == 0 || remaining < timeout {
			timeout = remaining
		}
	}

	out, err := ffmpeg.ProbeWithTimeout(path, timeout, ffmpeg.KwArgs{})
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbeOutput(out)
}

// RequireAudio probes path and fails with ErrNoAudio when it has no audio
// stream to transcribe.
func (p *Prober) RequireAudio(ctx context.Context, path string) (*Info, error) {
	info, err := p.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	if !info.HasAudio {
		return info, ErrNoAudio
	}
	return info, nil
}

func parseProbeOutput(out string) (*Info, error) {
	var probe probeOutput
	if err := json.Unmarshal([]byte(out), &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &Info{FormatName: probe.Format.FormatName}

	if probe.Format.Duration != "" {
		seconds, err := strconv.ParseFloat(probe.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse duration: %w", err)
		}
		info.Duration = time.Duration(seconds * float64(time.Second))
	}

	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			if !info.HasVideo {
				info.HasVideo = true
				info.VideoCodec = s.CodecName
				info.Width = s.Width
				info.Height = s.Height
			}
		case "audio":
			if !info.HasAudio {
				info.HasAudio = true
				info.AudioCodec = s.CodecName
			}
		}
	}

	return info, nil
}
