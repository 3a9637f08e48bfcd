package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mgpai22/vidsrt/internal/config"
	"github.com/mgpai22/vidsrt/internal/subtitle"
	"github.com/mgpai22/vidsrt/internal/translate"
	"github.com/spf13/cobra"
)

var translateCmd = &cobra.Command{
	Use:   "translate [subtitle_file]",
	Short: "Translate an SRT file to another language using AI",
	Long: `Translate the cue text of an existing SRT file. Cue numbering and timing
are kept as they are.

The --overlay flag creates bilingual subtitles with the translated text
first, followed by the original text on the next line.

Examples:
  vidsrt translate talk_km_synced.srt --target-language english
  vidsrt translate talk_en_synced.srt -t ja --overlay
  vidsrt translate talk.srt -t spanish --provider anthropic -o talk.es.srt`,
	Args: cobra.ExactArgs(1),
	RunE: runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().
		StringP("target-language", "t", "", "Target language for translation (required)")
	translateCmd.Flags().
		StringP("language", "l", "", "Language of the input subtitles (detected if empty)")
	translateCmd.Flags().
		StringP("output", "o", "", "Output file path (default <input>.<target>.srt)")
	translateCmd.Flags().
		Bool("overlay", false, "Overlay translated text with original (bilingual subtitles)")
	translateCmd.Flags().
		StringP("api-key", "k", "", "API key for the translation provider")
	translateCmd.Flags().
		String("model", "", "Model to use for translation (provider default if empty)")
	translateCmd.Flags().
		String("provider", "", "Translation provider (gemini, openai, anthropic; default gemini)")
	translateCmd.Flags().
		Int("concurrency", translate.DefaultConcurrency, "Number of parallel translation requests")
	translateCmd.Flags().
		Int("batch-size", translate.DefaultBatchSize, "Number of cues per API request")

	_ = translateCmd.MarkFlagRequired("target-language")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	subtitlePath := args[0]

	targetLang, _ := cmd.Flags().GetString("target-language")
	inputLang, _ := cmd.Flags().GetString("language")
	outputPath, _ := cmd.Flags().GetString("output")
	overlay, _ := cmd.Flags().GetBool("overlay")
	apiKey, _ := cmd.Flags().GetString("api-key")
	model, _ := cmd.Flags().GetString("model")
	providerStr, _ := cmd.Flags().GetString("provider")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	batchSize, _ := cmd.Flags().GetInt("batch-size")

	if _, err := os.Stat(subtitlePath); os.IsNotExist(err) {
		return fmt.Errorf("subtitle file not found: %s", subtitlePath)
	}
	if ext := strings.ToLower(filepath.Ext(subtitlePath)); ext != ".srt" {
		return fmt.Errorf("unsupported subtitle format %q: only .srt files can be translated", ext)
	}
	if strings.TrimSpace(targetLang) == "" {
		return fmt.Errorf("target language is required")
	}
	if inputLang != "" && strings.EqualFold(strings.TrimSpace(inputLang), strings.TrimSpace(targetLang)) {
		return fmt.Errorf(
			"input language %q and target language %q cannot be the same",
			inputLang,
			targetLang,
		)
	}
	if concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", concurrency)
	}
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be positive, got %d", batchSize)
	}

	cfg, err := loadConfig(config.Overrides{})
	if err != nil {
		return err
	}

	provider := providerStr
	if provider == "" {
		provider = cfg.TranslateProvider
	}
	if provider == "" {
		provider = config.ProviderGemini
	}
	if apiKey == "" {
		apiKey = cfg.APIKey(provider)
	}
	if apiKey == "" {
		return fmt.Errorf("API key is required for %s: use --api-key or set %s", provider, apiKeyEnvVar(provider))
	}

	if outputPath == "" {
		outputPath = translatedOutputPath(subtitlePath, targetLang, overlay)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cues, err := subtitle.ParseSRTFile(subtitlePath)
	if err != nil {
		return fmt.Errorf("failed to parse subtitle file: %w", err)
	}
	if len(cues) == 0 {
		return fmt.Errorf("subtitle file contains no entries")
	}

	logger.Infow("Starting subtitle translation",
		"input", subtitlePath,
		"output", outputPath,
		"entries", len(cues),
		"target_language", targetLang,
		"provider", provider,
		"overlay", overlay,
	)

	translator, err := translate.Factory(ctx, translate.Provider(provider), apiKey, translate.Options{
		InputLanguage:  inputLang,
		TargetLanguage: targetLang,
		Model:          model,
		BatchSize:      batchSize,
		Concurrency:    concurrency,
	})
	if err != nil {
		return fmt.Errorf("failed to create translator: %w", err)
	}

	original := cuesToSegments(cues)
	translated, err := translate.Segments(ctx, translator, original)
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}
	if overlay {
		translated = overlaySegments(translated, original)
	}

	if err := subtitle.WriteSRTFile(outputPath, translated); err != nil {
		return err
	}

	absOutput, _ := filepath.Abs(outputPath)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Subtitles translated successfully: %s\n", absOutput)
	fmt.Fprintf(out, "  Entries: %d\n", len(translated))
	fmt.Fprintf(out, "  Target language: %s\n", targetLang)
	if overlay {
		fmt.Fprintf(out, "  Mode: bilingual overlay\n")
	}

	return nil
}

func cuesToSegments(cues []subtitle.Cue) []subtitle.NormalizedSegment {
	segments := make([]subtitle.NormalizedSegment, len(cues))
	for i, c := range cues {
		segments[i] = subtitle.NormalizedSegment{Start: c.Start, End: c.End, Text: c.Text}
	}
	return segments
}

// translated + newline + original
func overlaySegments(translated, original []subtitle.NormalizedSegment) []subtitle.NormalizedSegment {
	out := make([]subtitle.NormalizedSegment, len(translated))
	for i, seg := range translated {
		out[i] = seg
		if orig := original[i].Text; orig != "" && orig != seg.Text {
			out[i].Text = seg.Text + "\n" + orig
		}
	}
	return out
}

func translatedOutputPath(path, target string, overlay bool) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	target = strings.ToLower(strings.Join(strings.Fields(target), "-"))
	if overlay {
		return fmt.Sprintf("%s.%s.overlay.srt", base, target)
	}
	return fmt.Sprintf("%s.%s.srt", base, target)
}

func apiKeyEnvVar(provider string) string {
	switch provider {
	case config.ProviderGemini:
		return "GEMINI_API_KEY"
	case config.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}
