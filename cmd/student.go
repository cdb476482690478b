package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var studentCmd = &cobra.Command{
	Use:   "student [er-number]",
	Short: "Show the attendance history of a student",
	Args:  cobra.ExactArgs(1),
	RunE:  runStudent,
}

func init() {
	rootCmd.AddCommand(studentCmd)

	studentCmd.Flags().Bool("json", false, "Output as JSON")
}

func runStudent(cmd *cobra.Command, args []string) error {
	studentID := args[0]
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	history, err := a.dashboardService().History(ctx, studentID)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if jsonOutput {
		return printJSON(history)
	}
	if len(history) == 0 {
		fmt.Printf("No attendance records for %s\n", studentID)
		return nil
	}

	present := 0
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTIME\tSUBJECT\tSTATUS")
	for _, h := range history {
		if h.Status == "Present" {
			present++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", h.Date, h.Time, h.Subject, h.Status)
	}
	w.Flush()

	fmt.Printf("\nPresent in %d of %d sessions\n", present, len(history))
	return nil
}
