package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetvolt/battsched/config"
	"github.com/fleetvolt/battsched/core/model"
	"github.com/fleetvolt/battsched/infra/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the local execution history",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum records to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.Backend != "sqlite" {
		return fmt.Errorf("history requires the sqlite store backend")
	}
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	recs, err := st.History(cmd.Context(), cfg.Agent.DeviceID, historyLimit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if len(recs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no executions recorded")
		return nil
	}
	for _, r := range recs {
		line := fmt.Sprintf("%s  entry %d  %s", r.ExecutedAt.Format(time.RFC3339), r.EntryIndex, r.Status)
		if r.Status == model.ExecutionSuccess && r.ActualRateKW != nil {
			line += fmt.Sprintf("  %.2f kW", *r.ActualRateKW)
		}
		if r.Error != "" {
			line += "  " + r.Error
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
