package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kozaktomas/roll-call/internal/registry"
	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register [image...]",
	Short: "Enroll a student with reference photos",
	Long: `Upload reference photos of a student, index them for face search and add
the student to the registry workbook (and the database when configured).

Example:
  roll-call register --batch "CS 2024" --er 7 --name "Grace Hopper" --phone +15550100 grace1.jpg grace2.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().String("batch", "", "Batch the student belongs to (required)")
	registerCmd.Flags().String("er", "", "Enrollment (ER) number (required)")
	registerCmd.Flags().String("name", "", "Full name (required)")
	registerCmd.Flags().String("phone", "", "Parent phone number")
	registerCmd.Flags().Bool("json", false, "Output as JSON")
	_ = registerCmd.MarkFlagRequired("batch")
	_ = registerCmd.MarkFlagRequired("er")
	_ = registerCmd.MarkFlagRequired("name")
}

func runRegister(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	req := registry.RegisterRequest{
		Batch:       mustGetString(cmd, "batch"),
		StudentID:   mustGetString(cmd, "er"),
		Name:        mustGetString(cmd, "name"),
		ParentPhone: mustGetString(cmd, "phone"),
	}
	for _, p := range args {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		req.Images = append(req.Images, registry.Upload{Filename: filepath.Base(p), Data: data})
	}

	result, err := a.registryService().Register(ctx, req)
	if errors.Is(err, registry.ErrNoValidImages) && result != nil {
		for _, r := range result.Rejected {
			fmt.Printf("Rejected %s: %s\n", r.Filename, r.Reason)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to register student: %w", err)
	}

	if jsonOutput {
		return printJSON(result)
	}

	fmt.Printf("Registered %s (%s) in %s\n", result.Student.Name, result.Student.StudentID, result.Student.Batch)
	for _, key := range result.Uploaded {
		fmt.Printf("  Uploaded %s\n", key)
	}
	for _, r := range result.Rejected {
		fmt.Printf("  Rejected %s: %s\n", r.Filename, r.Reason)
	}
	fmt.Printf("Indexed faces: %d\n", result.Indexed)
	return nil
}
