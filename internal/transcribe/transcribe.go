package transcribe

import (
	"context"
	"fmt"

	"github.com/mgpai22/vidsrt/internal/subtitle"
)

// transcription result
type Result struct {
	Segments []subtitle.Segment
	Language string
	Duration float64 // seconds as reported by the engine, 0 if unknown
}

// single transcription call
type Request struct {
	MediaPath string
	Language  string // engine language code, e.g. "en"
}

// interface for speech recognition engines
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (*Result, error)
}

// transcription service provider
type Provider string

const (
	ProviderOpenAI  Provider = "openai"
	ProviderWhisper Provider = "whisper" // self-hosted OpenAI-compatible server
	ProviderGemini  Provider = "gemini"
)

// transcription options
type Options struct {
	Model   string
	Prompt  string
	BaseURL string // ProviderWhisper only
}

// creates transcriber based on provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Transcriber, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAITranscriber(ctx, apiKey, opts)
	case ProviderWhisper:
		return NewWhisperTranscriber(ctx, apiKey, opts)
	case ProviderGemini:
		return NewGeminiTranscriber(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
