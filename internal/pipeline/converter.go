package pipeline

import (
	"context"
	"fmt"

	"github.com/mgpai22/vidsrt/internal/logging"
	"github.com/mgpai22/vidsrt/internal/subtitle"
	"github.com/mgpai22/vidsrt/internal/transcribe"
	"github.com/mgpai22/vidsrt/internal/translate"
)

// Converter turns a media file into normalized subtitle segments: engine
// output, then timing normalization, then optional translation.
type Converter struct {
	engine     transcribe.Transcriber
	translator translate.Translator
	logger     *logging.Logger
}

// NewConverter builds a Converter. translator may be nil.
func NewConverter(
	engine transcribe.Transcriber,
	translator translate.Translator,
	logger *logging.Logger,
) *Converter {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Converter{
		engine:     engine,
		translator: translator,
		logger:     logger,
	}
}

// Convert transcribes mediaPath in the given engine language.
func (c *Converter) Convert(
	ctx context.Context,
	mediaPath, languageCode string,
) ([]subtitle.NormalizedSegment, error) {
	result, err := c.engine.Transcribe(ctx, transcribe.Request{
		MediaPath: mediaPath,
		Language:  languageCode,
	})
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	segments, err := subtitle.Normalize(result.Segments)
	if err != nil {
		return nil, err
	}

	c.logger.Debugw("transcription received",
		"segments", len(segments),
		"engine_language", result.Language,
		"engine_duration", result.Duration,
	)

	if c.translator != nil && len(segments) > 0 {
		segments, err = translate.Segments(ctx, c.translator, segments)
		if err != nil {
			return nil, fmt.Errorf("translate: %w", err)
		}
		c.logger.Debugw("segments translated", "segments", len(segments))
	}

	return segments, nil
}
