package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kozaktomas/roll-call/internal/identity"
	"github.com/kozaktomas/roll-call/internal/notify"
	"github.com/kozaktomas/roll-call/internal/report"
	"github.com/spf13/cobra"
)

var alertCmd = &cobra.Command{
	Use:   "alert [session-id]",
	Short: "Send the absent list of a session to the alert topic",
	Long: `Publish the students marked absent in a recorded session to the SNS topic
configured by SNS_TOPIC_ARN. Requires DATABASE_URL.`,
	Args: cobra.ExactArgs(1),
	RunE: runAlert,
}

func init() {
	rootCmd.AddCommand(alertCmd)

	alertCmd.Flags().Bool("dry-run", false, "Print the message without publishing it")
}

func runAlert(cmd *cobra.Command, args []string) error {
	dryRun := mustGetBool(cmd, "dry-run")

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", args[0], err)
	}

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.requireSessions(); err != nil {
		return err
	}
	if a.notifier == nil && !dryRun {
		return errors.New("SNS_TOPIC_ARN environment variable is required")
	}

	session, err := a.sessions.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return fmt.Errorf("session %s not found", id)
	}

	var absent []identity.StudentIdentity
	for _, rec := range session.Records {
		if rec.Status == string(report.StatusAbsent) {
			absent = append(absent, identity.StudentIdentity{StudentID: rec.StudentID, DisplayName: rec.StudentName})
		}
	}
	if len(absent) == 0 {
		fmt.Println("Nobody was absent, no alert sent")
		return nil
	}

	if dryRun {
		fmt.Println(notify.AbsentMessage(absent))
		return nil
	}

	messageID, err := a.notifier.PublishAbsent(ctx, absent)
	if err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}
	fmt.Printf("Alert sent for %d absent students (message %s)\n", len(absent), messageID)
	return nil
}
