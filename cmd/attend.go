package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/roll-call/internal/attendance"
	"github.com/kozaktomas/roll-call/internal/quality"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var attendCmd = &cobra.Command{
	Use:   "attend [photo...]",
	Short: "Mark attendance from classroom photos",
	Long: `Match every enrolled student of a batch against one or more classroom
photos, upload the attendance workbook and print who was present.

Examples:
  # Mark attendance for a lecture
  roll-call attend --batch "CS 2024" --class "Room 4" --subject Math front.jpg back.jpg

  # Use a stricter similarity threshold and print JSON
  roll-call attend --batch "CS 2024" --class "Room 4" --subject Math --threshold 90 --json class.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAttend,
}

func init() {
	rootCmd.AddCommand(attendCmd)

	attendCmd.Flags().String("batch", "", "Batch whose roster is matched (required)")
	attendCmd.Flags().String("class", "", "Class or room name (required)")
	attendCmd.Flags().String("subject", "", "Subject name (required)")
	attendCmd.Flags().Float64("threshold", 0, "Similarity threshold 0-100 (0 = SIMILARITY_THRESHOLD)")
	attendCmd.Flags().Bool("json", false, "Output as JSON")
	_ = attendCmd.MarkFlagRequired("batch")
	_ = attendCmd.MarkFlagRequired("class")
	_ = attendCmd.MarkFlagRequired("subject")
}

func runAttend(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	threshold := mustGetFloat64(cmd, "threshold")

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if threshold <= 0 {
		threshold = a.cfg.Thresholds.Similarity
	}
	photos, err := readPhotoFiles(args)
	if err != nil {
		return err
	}

	req := attendance.MarkRequest{
		Batch:     mustGetString(cmd, "batch"),
		Class:     mustGetString(cmd, "class"),
		Subject:   mustGetString(cmd, "subject"),
		Photos:    photos,
		Threshold: threshold,
	}

	// Create progress bar (only for non-JSON output)
	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(photos),
			progressbar.OptionSetDescription("Matching faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("photos"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
		req.Progress = func(info attendance.ProgressInfo) {
			if info.Done() {
				_ = bar.Set(info.Current)
			}
		}
	}

	result, err := a.attendanceService().Mark(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to mark attendance: %w", err)
	}

	if jsonOutput {
		return printJSON(result)
	}
	_ = bar.Finish()
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ER NUMBER\tNAME\tSTATUS")
	for _, s := range result.Present {
		fmt.Fprintf(w, "%s\t%s\tPresent\n", s.StudentID, s.DisplayName)
	}
	for _, s := range result.Absent {
		fmt.Fprintf(w, "%s\t%s\tAbsent\n", s.StudentID, s.DisplayName)
	}
	w.Flush()

	printQualityWarnings(result.QualityReports)

	fmt.Printf("\nPresent: %d  Absent: %d\n", len(result.Present), len(result.Absent))
	fmt.Printf("Report: %s\n", result.ReportURL)
	if result.SessionID != "" {
		fmt.Printf("Session: %s\n", result.SessionID)
	}
	return nil
}

// printQualityWarnings lists photos that were unusable or poorly lit.
func printQualityWarnings(reports []quality.Report) {
	for _, r := range reports {
		switch {
		case r.Error != "":
			fmt.Printf("Warning: photo %d: %s\n", r.ImageIndex, r.Error)
		case r.IsBlurry || r.LightingStatus != quality.LightingGood:
			fmt.Printf("Warning: photo %d: blurry=%v lighting=%s\n", r.ImageIndex, r.IsBlurry, r.LightingStatus)
		}
	}
}
