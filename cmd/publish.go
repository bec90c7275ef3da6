package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleetvolt/battsched/config"
	"github.com/fleetvolt/battsched/core/schedule"
	"github.com/fleetvolt/battsched/infra/logger"
	"github.com/fleetvolt/battsched/infra/mqtt"
)

var publishDevice string

var publishCmd = &cobra.Command{
	Use:   "publish <schedule.json>",
	Short: "Validate a schedule file and push it to a device over MQTT",
	Args:  cobra.ExactArgs(1),
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishDevice, "device", "", "target device id")
	_ = publishCmd.MarkFlagRequired("device")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	entries, err := readScheduleFile(args[0])
	if err != nil {
		return err
	}

	// Never push a schedule the device would reject.
	res := schedule.NewValidator().Validate(entries, publishDevice)
	if !res.OK {
		for _, msg := range res.Errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", msg)
		}
		return fmt.Errorf("schedule invalid: %d error(s)", len(res.Errors))
	}
	for _, adv := range res.Advisories {
		fmt.Fprintf(cmd.OutOrStdout(), "advisory: %s\n", adv)
	}

	pub, err := mqtt.NewPublisher(cfg.MQTT, logger.New("publish"))
	if err != nil {
		return fmt.Errorf("mqtt publisher: %w", err)
	}
	defer pub.Disconnect()

	if err := pub.PublishSchedule(publishDevice, entries); err != nil {
		return fmt.Errorf("publish schedule: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published %d entries to %s\n", len(entries), mqtt.ScheduleTopic(publishDevice))
	return nil
}
