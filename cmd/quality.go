package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var qualityCmd = &cobra.Command{
	Use:   "quality [photo...]",
	Short: "Check whether classroom photos are good enough for matching",
	Long: `Score sharpness, lighting and face coverage of classroom photos without
matching anyone. Use it to retake bad photos before marking attendance.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuality,
}

func init() {
	rootCmd.AddCommand(qualityCmd)

	qualityCmd.Flags().Bool("json", false, "Output as JSON")
}

func runQuality(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	photos, err := readPhotoFiles(args)
	if err != nil {
		return err
	}

	reports, err := a.attendanceService().CheckQuality(ctx, photos)
	if err != nil {
		return fmt.Errorf("failed to check quality: %w", err)
	}

	if jsonOutput {
		return printJSON(reports)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHOTO\tRESOLUTION\tBLUR\tLIGHTING\tFACES\tCOVERAGE\tNOTE")
	for i, r := range reports {
		note := r.Suggestion
		if r.Error != "" {
			note = r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%s\t%d\t%.1f%%\t%s\n",
			args[i], r.Resolution, r.BlurScore, r.LightingStatus, r.FaceCount, r.FaceCoveragePct, note)
	}
	return w.Flush()
}
