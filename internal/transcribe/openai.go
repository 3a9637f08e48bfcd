package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mgpai22/vidsrt/internal/subtitle"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// implements Transcriber using the OpenAI audio transcription API, or any
// server that speaks the same protocol
type OpenAITranscriber struct {
	client  openai.Client
	model   string
	options Options
}

// verbose_json response structure from Whisper
type whisperVerboseResponse struct {
	Text     string            `json:"text"`
	Segments []json.RawMessage `json:"segments"`
	Language string            `json:"language"`
	Duration float64           `json:"duration"`
}

func NewOpenAITranscriber(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*OpenAITranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	model := opts.Model
	if model == "" {
		model = "whisper-1"
	}

	return &OpenAITranscriber{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		options: opts,
	}, nil
}

// NewWhisperTranscriber targets a self-hosted Whisper server exposing the
// OpenAI transcription endpoint. The API key is optional.
func NewWhisperTranscriber(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*OpenAITranscriber, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("whisper base URL is required")
	}
	if apiKey == "" {
		apiKey = "unused"
	}

	model := opts.Model
	if model == "" {
		model = "small"
	}

	client := openai.NewClient(
		option.WithBaseURL(opts.BaseURL),
		option.WithAPIKey(apiKey),
	)

	return &OpenAITranscriber{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

// transcribes a single media file
func (t *OpenAITranscriber) Transcribe(
	ctx context.Context,
	req Request,
) (*Result, error) {
	file, err := os.Open(req.MediaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open media file: %w", err)
	}
	defer file.Close()

	params := openai.AudioTranscriptionNewParams{
		File:                   file,
		Model:                  openai.AudioModel(t.model),
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"segment"},
	}

	if req.Language != "" {
		params.Language = openai.String(req.Language)
	}

	if t.options.Prompt != "" {
		params.Prompt = openai.String(t.options.Prompt)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	result, err := parseVerboseJSONResponse(resp.RawJSON())
	if err != nil {
		return nil, err
	}
	if result.Language == "" {
		result.Language = req.Language
	}
	return result, nil
}

// converts a verbose_json body into a Result. A response with text but no
// segments becomes one segment spanning the reported duration; a response
// with neither is an empty transcription.
func parseVerboseJSONResponse(rawJSON string) (*Result, error) {
	if rawJSON == "" {
		return nil, fmt.Errorf("empty response")
	}

	var verboseResp whisperVerboseResponse
	if err := json.Unmarshal([]byte(rawJSON), &verboseResp); err != nil {
		return nil, fmt.Errorf("failed to parse verbose_json response: %w", err)
	}

	result := &Result{
		Language: verboseResp.Language,
		Duration: verboseResp.Duration,
	}

	if len(verboseResp.Segments) == 0 {
		if verboseResp.Text != "" {
			result.Segments = []subtitle.Segment{{
				Start: 0,
				End:   verboseResp.Duration,
				Text:  verboseResp.Text,
			}}
		}
		return result, nil
	}

	segments, err := decodeSegments(verboseResp.Segments)
	if err != nil {
		return nil, err
	}
	result.Segments = segments
	return result, nil
}
