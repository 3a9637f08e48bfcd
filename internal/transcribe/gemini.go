package transcribe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mgpai22/vidsrt/internal/media"
	"github.com/mgpai22/vidsrt/internal/subtitle"
	"google.golang.org/genai"
)

// implements Transcriber using Google Gemini
type GeminiTranscriber struct {
	client       *genai.Client
	model        string
	options      Options
	pollInterval time.Duration
}

func NewGeminiTranscriber(ctx context.Context, apiKey string, opts Options) (*GeminiTranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &GeminiTranscriber{
		client:       client,
		model:        model,
		options:      opts,
		pollInterval: 2 * time.Second,
	}, nil
}

// transcribes a single media file
func (t *GeminiTranscriber) Transcribe(ctx context.Context, req Request) (*Result, error) {
	uploadedFile, err := t.client.Files.UploadFromPath(ctx, req.MediaPath, &genai.UploadFileConfig{
		MIMEType: media.MIMEType(req.MediaPath),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload media file: %w", err)
	}

	defer func() {
		_, _ = t.client.Files.Delete(context.WithoutCancel(ctx), uploadedFile.Name, nil)
	}()

	uploadedFile, err = t.waitUntilActive(ctx, uploadedFile)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{
		genai.NewPartFromText(buildTranscriptionPrompt(req.Language, t.options.Prompt)),
		genai.NewPartFromURI(uploadedFile.URI, uploadedFile.MIMEType),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := t.client.Models.GenerateContent(ctx, t.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	segments, err := parseTranscriptionResponse(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transcription: %w", err)
	}

	var duration float64
	if n := len(segments); n > 0 {
		duration = segments[n-1].End
	}

	return &Result{
		Segments: segments,
		Language: req.Language,
		Duration: duration,
	}, nil
}

// video uploads are processed asynchronously and cannot be referenced
// until they leave the PROCESSING state
func (t *GeminiTranscriber) waitUntilActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(t.pollInterval):
		}

		refreshed, err := t.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to check upload state: %w", err)
		}
		file = refreshed
	}

	if file.State == genai.FileStateFailed {
		return nil, fmt.Errorf("media processing failed for %s", file.Name)
	}
	return file, nil
}

// creates the prompt for transcription
func buildTranscriptionPrompt(languageCode, extra string) string {
	var sb strings.Builder

	sb.WriteString("Generate a detailed transcript of the speech in this video. ")
	sb.WriteString("For each sentence or phrase, provide the start timestamp, end timestamp, and the exact text spoken. ")
	sb.WriteString("Format your response as a JSON array with objects containing 'start', 'end', and 'text' fields, ")
	sb.WriteString("where 'start' and 'end' are timestamps in seconds (as numbers). ")

	if languageCode != "" {
		sb.WriteString(fmt.Sprintf("The speech is in %s. Transcribe it in that language. ", DisplayName(languageCode)))
	}

	if extra != "" {
		sb.WriteString(extra)
		sb.WriteString(" ")
	}

	sb.WriteString("If nobody speaks, return an empty array. ")
	sb.WriteString("Return ONLY the JSON array, no other text or markdown formatting.")

	return sb.String()
}

// parses Gemini's response into segments
func parseTranscriptionResponse(result *genai.GenerateContentResponse) ([]subtitle.Segment, error) {
	if result == nil || len(result.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	var responseText strings.Builder
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			responseText.WriteString(part.Text)
		}
	}

	text := responseText.String()
	if text == "" {
		return nil, fmt.Errorf("no text in Gemini response")
	}

	raw, err := extractSegmentArray(text)
	if err != nil {
		return nil, fmt.Errorf("%w (response: %s)", err, truncateString(text, 200))
	}
	return decodeSegments(raw)
}
