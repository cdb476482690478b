package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/roll-call/internal/importer"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Backfill session history from attendance workbooks",
	Long: `Read every attendance workbook under the reports prefix and record one
session per workbook in PostgreSQL. Workbooks already recorded are skipped,
so the command can be run repeatedly. Requires DATABASE_URL.`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Bool("json", false, "Output as JSON")
}

func runImport(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.requireSessions(); err != nil {
		return err
	}

	sheets, err := a.dashboardService().Sheets(ctx)
	if err != nil {
		return fmt.Errorf("failed to load reports: %w", err)
	}

	var bar *progressbar.ProgressBar
	var onSheet func()
	if !jsonOutput {
		fmt.Printf("Found %d reports\n", len(sheets))
		bar = progressbar.NewOptions(len(sheets),
			progressbar.OptionSetDescription("Importing reports"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("reports"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
		onSheet = func() { _ = bar.Add(1) }
	}

	result, err := importer.Run(ctx, sheets, a.sessions, onSheet)
	if err != nil {
		return fmt.Errorf("import interrupted: %w", err)
	}

	if jsonOutput {
		return printJSON(result)
	}
	_ = bar.Finish()
	fmt.Printf("\n\nImported: %d  Skipped: %d  Failed: %d\n", result.Imported, result.Skipped, result.Failed)
	return nil
}
