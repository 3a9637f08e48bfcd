package cli

import (
	"context"
	"fmt"

	"github.com/mgpai22/vidsrt/internal/config"
	"github.com/mgpai22/vidsrt/internal/pipeline"
	"github.com/mgpai22/vidsrt/internal/transcribe"
	"github.com/mgpai22/vidsrt/internal/translate"
)

func newTranscriber(ctx context.Context, cfg *config.Config) (transcribe.Transcriber, error) {
	opts := transcribe.Options{
		Model:  cfg.Model,
		Prompt: cfg.Prompt,
	}
	if cfg.Provider == config.ProviderWhisper {
		opts.BaseURL = cfg.WhisperURL
	}

	t, err := transcribe.Factory(ctx, transcribe.Provider(cfg.Provider), cfg.APIKey(cfg.Provider), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s transcriber: %w", cfg.Provider, err)
	}
	return t, nil
}

// newTranslator returns nil when no target language is configured.
func newTranslator(ctx context.Context, cfg *config.Config) (translate.Translator, error) {
	if cfg.TranslateTo == "" {
		return nil, nil
	}
	if cfg.TranslateProvider == "" {
		return nil, fmt.Errorf(
			"translation to %q needs a provider: set VIDSRT_TRANSLATE_PROVIDER or --translate-provider",
			cfg.TranslateTo,
		)
	}

	t, err := translate.Factory(ctx, translate.Provider(cfg.TranslateProvider), cfg.APIKey(cfg.TranslateProvider), translate.Options{
		TargetLanguage: cfg.TranslateTo,
		Model:          cfg.TranslateModel,
		BatchSize:      cfg.TranslateBatchSize,
		Concurrency:    cfg.TranslateConcurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s translator: %w", cfg.TranslateProvider, err)
	}
	return t, nil
}

func newConverter(ctx context.Context, cfg *config.Config) (*pipeline.Converter, error) {
	engine, err := newTranscriber(ctx, cfg)
	if err != nil {
		return nil, err
	}
	translator, err := newTranslator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.Infow("Engines ready",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"translate_to", cfg.TranslateTo,
	)
	return pipeline.NewConverter(engine, translator, logger.Named("converter")), nil
}
