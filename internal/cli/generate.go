package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mgpai22/vidsrt/internal/config"
	"github.com/mgpai22/vidsrt/internal/media"
	"github.com/mgpai22/vidsrt/internal/subtitle"
	"github.com/mgpai22/vidsrt/internal/transcribe"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate [video_file]",
	Short: "Generate an SRT file for a local video",
	Long: `Transcribe a local video and write its subtitles as SRT.

The language is chosen like in the web app: "primary", "secondary", or one of
the two configured language codes. Segment timing is normalized before the
file is written, and cue text can optionally be translated.

Examples:
  vidsrt generate talk.mp4
  vidsrt generate talk.mp4 -l secondary -o talk.srt
  vidsrt generate talk.mp4 --provider gemini --model gemini-2.5-pro
  vidsrt generate talk.mp4 --translate-to japanese --translate-provider anthropic`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().
		StringP("language", "l", "primary", "Spoken language: primary, secondary, or a configured code")
	generateCmd.Flags().
		StringP("output", "o", "", "Output file path (default <video>_<lang>_synced.srt)")
	generateCmd.Flags().
		String("provider", "", "Transcription provider (openai, whisper, gemini)")
	generateCmd.Flags().
		String("model", "", "Transcription model (provider default if empty)")
	generateCmd.Flags().
		StringP("api-key", "k", "", "API key for the transcription provider")
	generateCmd.Flags().
		String("translate-provider", "", "Translate cues with this provider (gemini, openai, anthropic)")
	generateCmd.Flags().
		String("translate-to", "", "Target language for cue translation")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	videoPath := args[0]

	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", videoPath)
	}
	if !media.IsVideoFile(videoPath) {
		return fmt.Errorf(
			"unsupported file type %q: use one of %s",
			filepath.Ext(videoPath),
			strings.Join(media.AllowedExtensions(), ", "),
		)
	}

	selector, _ := cmd.Flags().GetString("language")
	outputPath, _ := cmd.Flags().GetString("output")
	provider, _ := cmd.Flags().GetString("provider")
	model, _ := cmd.Flags().GetString("model")
	apiKey, _ := cmd.Flags().GetString("api-key")
	translateProvider, _ := cmd.Flags().GetString("translate-provider")
	translateTo, _ := cmd.Flags().GetString("translate-to")

	cfg, err := loadConfig(config.Overrides{
		Provider:          provider,
		Model:             model,
		APIKey:            apiKey,
		TranslateProvider: translateProvider,
		TranslateTo:       translateTo,
	})
	if err != nil {
		return err
	}

	languages, err := transcribe.NewLanguages(cfg.PrimaryLanguage, cfg.SecondaryLanguage)
	if err != nil {
		return err
	}
	code, err := languages.Resolve(selector)
	if err != nil {
		return err
	}

	if outputPath == "" {
		outputPath = defaultOutputPath(videoPath, code)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.TranscribeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.TranscribeTimeout)
		defer cancel()
	}

	converter, err := newConverter(ctx, cfg)
	if err != nil {
		return err
	}

	logger.Infow("Starting subtitle generation",
		"input", videoPath,
		"output", outputPath,
		"language", code,
		"provider", cfg.Provider,
	)

	start := time.Now()
	segments, err := converter.Convert(ctx, videoPath, code)
	if err != nil {
		return fmt.Errorf("subtitle generation failed: %w", err)
	}

	if err := subtitle.WriteSRTFile(outputPath, segments); err != nil {
		return err
	}

	stats := subtitle.Summarize(segments)
	logger.Infow("Subtitle generation complete",
		"cues", stats.Count,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	absOutput, _ := filepath.Abs(outputPath)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Subtitles generated successfully: %s\n", absOutput)
	fmt.Fprintf(out, "  Language: %s\n", transcribe.DisplayName(code))
	fmt.Fprintf(out, "  Entries: %d\n", stats.Count)
	fmt.Fprintf(out, "  Duration: %.1fs\n", subtitle.Round(stats.Duration, 1))
	if stats.Count > 0 {
		fmt.Fprintf(out, "  Average entry: %.2fs\n", subtitle.Round(stats.AverageDuration, 2))
	}

	return nil
}

// defaultOutputPath places the subtitle next to the video, named like the
// web app's download: talk.mp4 in km becomes talk_km_synced.srt.
func defaultOutputPath(videoPath, languageCode string) string {
	base := strings.TrimSuffix(videoPath, filepath.Ext(videoPath))
	return base + "_" + languageCode + "_synced.srt"
}
