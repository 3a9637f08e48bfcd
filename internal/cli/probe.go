package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mgpai22/vidsrt/internal/media"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe [video_file]",
	Short: "Show the streams of a video as the web app sees them",
	Long: `Run ffprobe on a video and print its container, duration and streams.
The web app runs the same check on uploads when VIDSRT_PROBE_UPLOADS is set,
rejecting videos without an audio track.

Requires ffprobe on PATH.

Examples:
  vidsrt probe talk.mp4
  vidsrt probe talk.mkv --timeout 1m`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().Duration("timeout", probeTimeout, "Maximum time to wait for ffprobe")
}

func runProbe(cmd *cobra.Command, args []string) error {
	videoPath := args[0]
	timeout, _ := cmd.Flags().GetDuration("timeout")

	logger.Debugw("Probing media", "path", videoPath, "timeout", timeout)

	info, err := media.NewProber(timeout).Probe(context.Background(), videoPath)
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), probeTable(info))
	if !info.HasAudio {
		return media.ErrNoAudio
	}
	return nil
}

func probeTable(info *media.Info) string {
	orNone := func(s string) string {
		if s == "" {
			return "none"
		}
		return s
	}

	resolution := "none"
	if info.HasVideo {
		resolution = strconv.Itoa(info.Width) + "x" + strconv.Itoa(info.Height)
	}

	rows := [][]string{
		{"Container", orNone(info.FormatName)},
		{"Duration", info.Duration.Round(time.Millisecond).String()},
		{"Video codec", orNone(info.VideoCodec)},
		{"Resolution", resolution},
		{"Audio codec", orNone(info.AudioCodec)},
	}
	return renderTable([]string{"Property", "Value"}, rows, []columnAlignment{alignLeft, alignLeft})
}
