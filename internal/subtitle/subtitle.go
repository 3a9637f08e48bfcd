package subtitle

// transcribed speech segment as reported by a recognition engine,
// times in seconds
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// segment after timing correction and text cleanup.
// Start >= 0 and End > Start always hold.
type NormalizedSegment struct {
	Start float64
	End   float64
	Text  string
}

// Duration returns the cue length in seconds.
func (s NormalizedSegment) Duration() float64 {
	return s.End - s.Start
}

// single numbered SRT entry
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// Cues numbers segments positionally starting at 1.
func Cues(segments []NormalizedSegment) []Cue {
	cues := make([]Cue, len(segments))
	for i, seg := range segments {
		cues[i] = Cue{
			Index: i + 1,
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		}
	}
	return cues
}
