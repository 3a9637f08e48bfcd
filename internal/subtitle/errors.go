package subtitle

import (
	"errors"
	"fmt"
)

// ErrMalformedSegment matches every *MalformedSegmentError via errors.Is.
var ErrMalformedSegment = errors.New("malformed segment")

// MalformedSegmentError reports a segment that does not carry a usable
// start, end or text. Index is the segment's position in its sequence.
type MalformedSegmentError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedSegmentError) Error() string {
	return fmt.Sprintf("segment %d: %s %s", e.Index, e.Field, e.Reason)
}

func (e *MalformedSegmentError) Unwrap() error {
	return ErrMalformedSegment
}
