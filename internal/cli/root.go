package cli

import (
	"github.com/mgpai22/vidsrt/internal/config"
	"github.com/mgpai22/vidsrt/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose  bool
	envFile  string
	logLevel string
	logger   *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vidsrt",
	Short: "Turn spoken video into SRT subtitles",
	Long: `vidsrt sends a video to a speech recognition engine, cleans up the
timing of the returned segments and writes them as a SubRip (.srt) file.

Run "vidsrt serve" for the upload web app, or "vidsrt generate" to convert a
local file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.NewLoggerWithLevel(logLevel, verbose)
		return err
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringVar(&envFile, "env-file", "", "Path to a .env file (default .env)")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// loadConfig reads configuration with flag overrides and, when no level was
// given on the command line, applies the configured log level.
func loadConfig(o config.Overrides) (*config.Config, error) {
	o.EnvFile = envFile
	o.LogLevel = logLevel

	cfg, err := config.Load(o)
	if err != nil {
		return nil, err
	}

	if logLevel == "" && !verbose {
		l, err := logging.NewLoggerWithLevel(cfg.LogLevel, false)
		if err != nil {
			return nil, err
		}
		logger = l
	}
	return cfg, nil
}
