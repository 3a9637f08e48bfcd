package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/mgpai22/vidsrt/internal/api"
	"github.com/mgpai22/vidsrt/internal/config"
	"github.com/mgpai22/vidsrt/internal/jobs"
	"github.com/mgpai22/vidsrt/internal/media"
	"github.com/mgpai22/vidsrt/internal/pipeline"
	"github.com/mgpai22/vidsrt/internal/transcribe"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 30 * time.Second
	probeTimeout    = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload web app",
	Long: `Serve the web app: upload a video, transcribe it, download the SRT.

Jobs are tracked in a SQLite database next to the uploads. Videos are deleted
once their subtitles are written, and jobs older than the retention period
are removed in the background.

Examples:
  vidsrt serve
  vidsrt serve --addr :8080 --provider whisper
  vidsrt serve --primary-language en --secondary-language km`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default :5000)")
	serveCmd.Flags().String("upload-dir", "", "Directory for uploads and subtitles (default uploads)")
	serveCmd.Flags().String("db", "", "Job database path (default <upload-dir>/jobs.db)")
	serveCmd.Flags().String("provider", "", "Transcription provider (openai, whisper, gemini)")
	serveCmd.Flags().String("model", "", "Transcription model (provider default if empty)")
	serveCmd.Flags().StringP("api-key", "k", "", "API key for the transcription provider")
	serveCmd.Flags().String("primary-language", "", "Language code for the primary option (default en)")
	serveCmd.Flags().String("secondary-language", "", "Language code for the secondary option (default km)")
	serveCmd.Flags().String("translate-provider", "", "Translate cues with this provider (gemini, openai, anthropic)")
	serveCmd.Flags().String("translate-to", "", "Target language for cue translation")
}

func runServe(cmd *cobra.Command, args []string) error {
	flag := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return v
	}

	cfg, err := loadConfig(config.Overrides{
		HTTPAddr:          flag("addr"),
		UploadDir:         flag("upload-dir"),
		DatabasePath:      flag("db"),
		Provider:          flag("provider"),
		Model:             flag("model"),
		APIKey:            flag("api-key"),
		PrimaryLanguage:   flag("primary-language"),
		SecondaryLanguage: flag("secondary-language"),
		TranslateProvider: flag("translate-provider"),
		TranslateTo:       flag("translate-to"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	store, err := jobs.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open job store: %w", err)
	}
	defer store.Close()

	if n, err := store.ResetInterrupted(ctx); err != nil {
		return fmt.Errorf("failed to reset interrupted jobs: %w", err)
	} else if n > 0 {
		logger.Warnw("Reset jobs interrupted by a previous shutdown", "count", n)
	}

	languages, err := transcribe.NewLanguages(cfg.PrimaryLanguage, cfg.SecondaryLanguage)
	if err != nil {
		return err
	}

	converter, err := newConverter(ctx, cfg)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		UploadDir: cfg.UploadDir,
		Languages: languages,
		Timeout:   cfg.TranscribeTimeout,
	}
	if cfg.ProbeUploads {
		opts.Prober = media.NewProber(probeTimeout)
	}
	service := pipeline.NewService(opts, store, converter, logger.Named("pipeline"))

	if cfg.Retention > 0 {
		go runJanitor(ctx, service, cfg.Retention)
	}

	server := api.NewServer(api.ServerOptions{
		Addr:           cfg.HTTPAddr,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, service, logger.Named("http"))

	logger.Infow("Serving",
		"addr", cfg.HTTPAddr,
		"upload_dir", cfg.UploadDir,
		"database", store.Path(),
		"languages", []string{cfg.PrimaryLanguage, cfg.SecondaryLanguage},
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

type pruner interface {
	Prune(ctx context.Context, maxAge time.Duration) (int, error)
}

// runJanitor prunes expired jobs until ctx is done. It checks at a tenth of
// the retention period, bounded to [1m, 1h].
func runJanitor(ctx context.Context, p pruner, retention time.Duration) {
	interval := min(max(retention/10, time.Minute), time.Hour)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		pruneOnce(ctx, p, retention)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func pruneOnce(ctx context.Context, p pruner, retention time.Duration) {
	n, err := p.Prune(ctx, retention)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warnw("Pruning expired jobs failed", "error", err)
		}
		return
	}
	if n > 0 {
		logger.Infow("Pruned expired jobs", "count", n, "retention", retention)
	}
}
