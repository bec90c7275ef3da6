package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fleetvolt/battsched/core/model"
	"github.com/fleetvolt/battsched/core/schedule"
)

var (
	validateDevice string
	validateClean  bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <schedule.json>",
	Short: "Validate a schedule file without distributing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateDevice, "device", "", "device id used in diagnostics")
	validateCmd.Flags().BoolVar(&validateClean, "clean", false, "print the schedule with invalid entries removed")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	entries, err := readScheduleFile(args[0])
	if err != nil {
		return err
	}
	v := schedule.NewValidator()

	if validateClean {
		kept, warnings := v.Clean(entries, validateDevice)
		for _, w := range warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "dropped: %s\n", w)
		}
		out, err := json.MarshalIndent(kept, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	res := v.Validate(entries, validateDevice)
	for _, adv := range res.Advisories {
		fmt.Fprintf(cmd.OutOrStdout(), "advisory: %s\n", adv)
	}
	if !res.OK {
		for _, msg := range res.Errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", msg)
		}
		return fmt.Errorf("schedule invalid: %d error(s)", len(res.Errors))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schedule valid: %d entries\n", len(res.Entries))
	return nil
}

func readScheduleFile(path string) ([]model.RawEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	var entries []model.RawEntry
	if err := json.Unmarshal(data, &entries); err == nil {
		return entries, nil
	}
	// Also accept the push message envelope.
	var msg model.ScheduleMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	return msg.Schedule, nil
}
