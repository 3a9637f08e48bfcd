package transcribe

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/mgpai22/vidsrt/internal/subtitle"
)

// wire shape of one timed segment in engine JSON output. Pointers tell a
// missing field apart from a zero one.
type engineSegment struct {
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
	Text  *string  `json:"text"`
}

// decodes a JSON array of engine segments into subtitle segments.
// Unknown fields (tokens, words, probabilities) are ignored; a segment with
// a missing or non-numeric start/end fails with *subtitle.MalformedSegmentError.
func decodeSegments(raw []json.RawMessage) ([]subtitle.Segment, error) {
	segments := make([]subtitle.Segment, 0, len(raw))
	for i, item := range raw {
		var es engineSegment
		if err := json.Unmarshal(item, &es); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				return nil, &subtitle.MalformedSegmentError{
					Index:  i,
					Field:  typeErr.Field,
					Reason: fmt.Sprintf("has type %s", typeErr.Value),
				}
			}
			return nil, &subtitle.MalformedSegmentError{
				Index:  i,
				Field:  "segment",
				Reason: "is not a JSON object",
			}
		}

		switch {
		case es.Start == nil:
			return nil, &subtitle.MalformedSegmentError{Index: i, Field: "start", Reason: "is missing"}
		case es.End == nil:
			return nil, &subtitle.MalformedSegmentError{Index: i, Field: "end", Reason: "is missing"}
		case es.Text == nil:
			return nil, &subtitle.MalformedSegmentError{Index: i, Field: "text", Reason: "is missing"}
		}

		segments = append(segments, subtitle.Segment{
			Start: *es.Start,
			End:   *es.End,
			Text:  *es.Text,
		})
	}
	return segments, nil
}

// extracts the first JSON array of segment objects from free-form model
// output. Bare arrays and objects wrapping one (at most two levels deep) are
// accepted; an empty array means no speech was found.
func extractSegmentArray(text string) ([]json.RawMessage, error) {
	text = cleanJSONResponse(text)

	for i := 0; i < len(text); i++ {
		if text[i] != '[' && text[i] != '{' {
			continue
		}
		decoder := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			continue
		}
		if items, ok := findSegmentArray(raw, 2); ok {
			return items, nil
		}
		i += int(decoder.InputOffset()) - 1
	}
	return nil, fmt.Errorf("no segment array found in response")
}

// well-known wrapper keys, tried before any others
var wrapperKeys = []string{"segments", "transcript", "results", "data"}

func findSegmentArray(raw json.RawMessage, depth int) ([]json.RawMessage, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, isObjectArray(items)
	}
	if depth == 0 {
		return nil, false
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, false
	}

	keys := make([]string, 0, len(wrapper))
	for key := range wrapper {
		if !slices.Contains(wrapperKeys, key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range append(slices.Clone(wrapperKeys), keys...) {
		field, ok := wrapper[key]
		if !ok {
			continue
		}
		if items, ok := findSegmentArray(field, depth-1); ok {
			return items, true
		}
	}
	return nil, false
}

func isObjectArray(items []json.RawMessage) bool {
	for _, item := range items {
		trimmed := bytes.TrimSpace(item)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return false
		}
	}
	return true
}

var jsonBlockRegex = regexp.MustCompile("```(?:json)?\\s*")

// removes markdown formatting from the response
func cleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	s = jsonBlockRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// truncates a string to maxLen bytes
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
