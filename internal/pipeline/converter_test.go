package pipeline

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/mgpai22/vidsrt/internal/subtitle"
	"github.com/mgpai22/vidsrt/internal/translate"
)

type upperTranslator struct {
	calls int
	err   error
}

func (u *upperTranslator) Translate(ctx context.Context, items []translate.Item) ([]translate.Result, error) {
	u.calls++
	if u.err != nil {
		return nil, u.err
	}
	results := make([]translate.Result, len(items))
	for i, item := range items {
		results[i] = translate.Result{Index: item.Index, Text: strings.ToUpper(item.Text) + ".."}
	}
	return results, nil
}

func TestConvertNormalizes(t *testing.T) {
	engine := &fakeEngine{segments: []subtitle.Segment{
		{Start: -0.4, End: 1.2, Text: "  first  "},
		{Start: 3, End: 2, Text: "second..."},
		{Start: 4, End: 5, Text: ""},
	}}

	got, err := NewConverter(engine, nil, nil).Convert(context.Background(), "/tmp/x.mp4", "en")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	want := []subtitle.NormalizedSegment{
		{Start: 0, End: 1.2, Text: "first"},
		{Start: 3, End: 4, Text: "second…"},
		{Start: 4, End: 5, Text: ""},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d segments, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if len(engine.requests) != 1 {
		t.Fatalf("engine called %d times", len(engine.requests))
	}
	if req := engine.requests[0]; req.MediaPath != "/tmp/x.mp4" || req.Language != "en" {
		t.Errorf("request = %+v", req)
	}
}

func TestConvertTranslates(t *testing.T) {
	engine := &fakeEngine{segments: []subtitle.Segment{
		{Start: 0, End: 1, Text: "hello"},
		{Start: 1, End: 2, Text: ""},
	}}
	tr := &upperTranslator{}

	got, err := NewConverter(engine, tr, nil).Convert(context.Background(), "v.mp4", "en")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if got[0].Text != "HELLO." || got[1].Text != "" {
		t.Errorf("texts = %q, %q", got[0].Text, got[1].Text)
	}
	if got[0].Start != 0 || got[0].End != 1 {
		t.Errorf("timing changed: %+v", got[0])
	}
}

func TestConvertSkipsTranslatorWhenSilent(t *testing.T) {
	tr := &upperTranslator{}
	got, err := NewConverter(&fakeEngine{}, tr, nil).Convert(context.Background(), "v.mp4", "en")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if len(got) != 0 || tr.calls != 0 {
		t.Errorf("got %d segments and %d translator calls, want 0 and 0", len(got), tr.calls)
	}
}

func TestConvertErrors(t *testing.T) {
	engineErr := errors.New("quota exceeded")
	translateErr := errors.New("translator down")

	tests := []struct {
		name       string
		engine     *fakeEngine
		translator translate.Translator
		wantIs     error
		wantPrefix string
	}{
		{
			name:       "engine failure",
			engine:     &fakeEngine{err: engineErr},
			wantIs:     engineErr,
			wantPrefix: "transcribe: ",
		},
		{
			name:       "translator failure",
			engine:     &fakeEngine{segments: []subtitle.Segment{{Start: 0, End: 1, Text: "x"}}},
			translator: &upperTranslator{err: translateErr},
			wantIs:     translateErr,
			wantPrefix: "translate: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConverter(tt.engine, tt.translator, nil).Convert(context.Background(), "v.mp4", "en")
			if !errors.Is(err, tt.wantIs) {
				t.Fatalf("error = %v, want %v", err, tt.wantIs)
			}
			if !strings.HasPrefix(err.Error(), tt.wantPrefix) {
				t.Errorf("error %q lacks prefix %q", err, tt.wantPrefix)
			}
		})
	}
}

func TestConvertMalformedIsUnwrapped(t *testing.T) {
	engine := &fakeEngine{segments: []subtitle.Segment{{Start: 0, End: 1}, {Start: 1, End: math.Inf(1)}}}

	_, err := NewConverter(engine, nil, nil).Convert(context.Background(), "v.mp4", "en")
	var malformed *subtitle.MalformedSegmentError
	if !errors.As(err, &malformed) {
		t.Fatalf("error = %v, want *MalformedSegmentError", err)
	}
	if malformed.Index != 1 || malformed.Field != "end" {
		t.Errorf("malformed = %+v", malformed)
	}
}
