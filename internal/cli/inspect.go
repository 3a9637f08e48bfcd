package cli

import (
	"fmt"
	"strconv"

	"github.com/mgpai22/vidsrt/internal/subtitle"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [subtitle_file]",
	Short: "Summarize an SRT file",
	Long: `Parse an SRT file and print its cue count, total duration, average cue
length, and any neighbouring cues whose times overlap.

Examples:
  vidsrt inspect talk_en_synced.srt`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cues, err := subtitle.ParseSRTFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to parse subtitle file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, summaryTable(subtitle.SummarizeCues(cues)))

	overlaps := subtitle.Overlaps(cues)
	if len(overlaps) == 0 {
		fmt.Fprintln(out, "No overlapping cues.")
		return nil
	}
	fmt.Fprintln(out, overlapTable(overlaps))
	return nil
}

func summaryTable(stats subtitle.Stats) string {
	rows := [][]string{
		{"Cues", strconv.Itoa(stats.Count)},
		{"Duration", subtitle.FormatSRTTime(stats.Duration)},
		{"Average cue", fmt.Sprintf("%.2fs", subtitle.Round(stats.AverageDuration, 2))},
	}
	return renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}

func overlapTable(overlaps []subtitle.Overlap) string {
	rows := make([][]string, 0, len(overlaps))
	for _, o := range overlaps {
		rows = append(rows, []string{
			strconv.Itoa(o.First.Index),
			subtitle.FormatSRTTime(o.First.End),
			strconv.Itoa(o.Second.Index),
			subtitle.FormatSRTTime(o.Second.Start),
			fmt.Sprintf("%.3fs", o.First.End-o.Second.Start),
		})
	}
	return renderTable(
		[]string{"Cue", "Ends", "Next cue", "Starts", "Overlap"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight},
	)
}
