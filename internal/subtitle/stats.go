package subtitle

import "math"

// summary figures for a subtitle track, in seconds
type Stats struct {
	Count           int
	Duration        float64 // end of the last cue
	AverageDuration float64 // Duration / Count
}

func Summarize(segments []NormalizedSegment) Stats {
	return SummarizeCues(Cues(segments))
}

func SummarizeCues(cues []Cue) Stats {
	if len(cues) == 0 {
		return Stats{}
	}
	duration := cues[len(cues)-1].End
	return Stats{
		Count:           len(cues),
		Duration:        duration,
		AverageDuration: duration / float64(len(cues)),
	}
}

// pair of neighbouring cues whose time ranges intersect
type Overlap struct {
	First  Cue
	Second Cue
}

// Overlaps lists neighbouring cues where the first ends after the second
// starts.
func Overlaps(cues []Cue) []Overlap {
	var out []Overlap
	for i := 1; i < len(cues); i++ {
		if cues[i-1].End > cues[i].Start {
			out = append(out, Overlap{First: cues[i-1], Second: cues[i]})
		}
	}
	return out
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
