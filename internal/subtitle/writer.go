package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// largest time FormatSRTTime renders; whole seconds must fit in an int64
const maxSRTSeconds = float64(math.MaxInt64 / 1000)

// writes SubRip documents to an io.Writer
type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one cue per segment, numbered from 1, each followed by a
// blank line. No segments produces no output.
func (e *Encoder) Encode(segments []NormalizedSegment) error {
	bw := bufio.NewWriter(e.w)
	for _, cue := range Cues(segments) {
		// index (1-based)
		if _, err := fmt.Fprintf(bw, "%d\n", cue.Index); err != nil {
			return err
		}

		// timestamps: 00:00:00,000 --> 00:00:00,000
		if _, err := fmt.Fprintf(bw, "%s --> %s\n",
			FormatSRTTime(cue.Start),
			FormatSRTTime(cue.End)); err != nil {
			return err
		}

		// text
		if _, err := bw.WriteString(cue.Text + "\n\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// EncodeSRT returns the SubRip document for segments.
func EncodeSRT(segments []NormalizedSegment) string {
	var sb strings.Builder
	// strings.Builder never fails a write
	_ = NewEncoder(&sb).Encode(segments)
	return sb.String()
}

// writes the SubRip document for segments to path, creating parent dirs
func WriteSRTFile(path string, segments []NormalizedSegment) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create SRT file: %w", err)
	}

	if err := NewEncoder(f).Encode(segments); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write SRT file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close SRT file: %w", err)
	}
	return nil
}

// FormatSRTTime renders seconds as HH:MM:SS,mmm. Hours are not wrapped at
// 24. Milliseconds are rounded, and a value that rounds up to 1000 carries
// into the seconds field. Negative and non-finite input renders as zero;
// input beyond maxSRTSeconds is clamped to it.
func FormatSRTTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	seconds = min(seconds, maxSRTSeconds)

	total := math.Floor(seconds)
	whole := int64(total)
	millis := int64(math.Round((seconds - total) * 1000))
	if millis >= 1000 {
		whole += millis / 1000
		millis %= 1000
	}

	hours := whole / 3600
	minutes := (whole % 3600) / 60
	secs := whole % 60

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0755)
}
