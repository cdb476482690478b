package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/roll-call/internal/dashboard"
	"github.com/spf13/cobra"
)

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Summarize attendance across all reports",
	Long: `Aggregate every attendance workbook under the reports prefix and print
per-subject attendance, per-student percentages and students below the
low-attendance threshold.`,
	Args: cobra.NoArgs,
	RunE: runOverview,
}

func init() {
	rootCmd.AddCommand(overviewCmd)

	overviewCmd.Flags().Float64("threshold", 0, "Minimum attendance percentage (0 = LOW_ATTENDANCE_THRESHOLD)")
	overviewCmd.Flags().Bool("json", false, "Output as JSON")
}

func runOverview(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	threshold := mustGetFloat64(cmd, "threshold")

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if threshold <= 0 {
		threshold = a.cfg.Thresholds.LowAttendance
	}

	svc := a.dashboardService()
	overview, err := svc.Overview(ctx)
	if err != nil {
		return fmt.Errorf("failed to build overview: %w", err)
	}
	eligibility, err := svc.Eligibility(ctx, threshold)
	if err != nil {
		return fmt.Errorf("failed to compute eligibility: %w", err)
	}

	if jsonOutput {
		return printJSON(struct {
			Overview    dashboard.ClassOverview     `json:"overview"`
			Eligibility dashboard.EligibilityReport `json:"eligibility"`
		}{overview, eligibility})
	}

	fmt.Printf("Students: %d  Subjects: %d  Average attendance: %.1f%%\n",
		overview.TotalStudents, overview.ActiveSubjects, overview.AvgAttendance)
	if overview.BestSubject != nil && overview.BestBatch != nil {
		fmt.Printf("Best: %s (%s)\n", *overview.BestSubject, *overview.BestBatch)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nSUBJECT\tBATCH\tATTENDANCE\tPRESENT\tTOTAL")
	for _, s := range overview.Subjects {
		fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%d\t%d\n", s.Subject, s.Batch, s.Attendance, s.PresentCount, s.TotalCount)
	}
	w.Flush()

	fmt.Printf("\nBelow %.1f%%: %d of %d students\n", threshold,
		eligibility.IneligibleCount, eligibility.IneligibleCount+eligibility.EligibleCount)
	printSummaries(eligibility.Ineligible)
	return nil
}

func printSummaries(students []dashboard.StudentSummary) {
	if len(students) == 0 {
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ER NUMBER\tNAME\tPRESENT\tCLASSES\tATTENDANCE")
	for _, s := range students {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.1f%%\n", s.StudentID, s.Name, s.PresentCount, s.TotalClasses, s.AttendancePercentage)
	}
	w.Flush()
}
