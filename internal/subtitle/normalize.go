package subtitle

import (
	"math"
	"strings"
)

// MinDuration is the length in seconds given to segments whose end does
// not come after their start.
const MinDuration = 1.0

// Normalize corrects segment timing and cleans segment text. The result
// has the same length and order as the input. Timing rules, per segment:
// a negative start becomes 0, and an end at or before the (clamped) start
// becomes start + MinDuration, or the next float above start when start is
// too large for MinDuration to change it. Overlaps between neighbouring segments are
// left as they are.
//
// A segment whose start or end is NaN or infinite yields a
// *MalformedSegmentError.
func Normalize(segments []Segment) ([]NormalizedSegment, error) {
	out := make([]NormalizedSegment, 0, len(segments))
	for i, seg := range segments {
		if err := checkTime(i, "start", seg.Start); err != nil {
			return nil, err
		}
		if err := checkTime(i, "end", seg.End); err != nil {
			return nil, err
		}

		start := seg.Start
		if start < 0 {
			start = 0
		}
		end := seg.End
		if end <= start {
			end = start + MinDuration
			if end <= start {
				// start is too large for +1 to register
				end = math.Nextafter(start, math.Inf(1))
			}
		}

		out = append(out, NormalizedSegment{
			Start: start,
			End:   end,
			Text:  CleanText(seg.Text),
		})
	}
	return out, nil
}

// CleanText trims surrounding whitespace, turns "..." into a single
// ellipsis character and collapses the remaining ".." into ".".
func CleanText(text string) string {
	text = strings.TrimSpace(text)
	// must run before the two-dot pass
	text = strings.ReplaceAll(text, "...", "…")
	return strings.ReplaceAll(text, "..", ".")
}

func checkTime(index int, field string, v float64) error {
	switch {
	case math.IsNaN(v):
		return &MalformedSegmentError{Index: index, Field: field, Reason: "is not a number"}
	case math.IsInf(v, 0):
		return &MalformedSegmentError{Index: index, Field: field, Reason: "is infinite"}
	}
	return nil
}
