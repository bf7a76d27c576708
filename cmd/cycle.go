package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	cycleBatch    int
	cycleAll      bool
	cycleDeadline int
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run one refresh cycle over the highest priority items",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cli"); err != nil {
			return err
		}
		ctx := cmd.Context()

		if cycleBatch > 0 {
			cfg.Scheduler.BatchSize = cycleBatch
		}
		if cycleAll {
			cfg.Scheduler.BatchSize = 0
		}
		if cycleDeadline > 0 {
			cfg.Scheduler.DeadlineSecs = cycleDeadline
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		summary, err := e.Engine.RunCycle(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("cycle finished in %s: %d attempted, %d succeeded, %d failed\n",
			(time.Duration(summary.DurationMs) * time.Millisecond).Round(time.Millisecond),
			summary.Attempted, summary.Succeeded, summary.Failed)
		return nil
	},
}

func init() {
	cycleCmd.Flags().IntVar(&cycleBatch, "batch", 0, "items to refresh this cycle (default from config)")
	cycleCmd.Flags().BoolVar(&cycleAll, "all", false, "refresh every tracked item regardless of batch size")
	cycleCmd.Flags().IntVar(&cycleDeadline, "deadline", 0, "cycle deadline in seconds (default from config)")
	rootCmd.AddCommand(cycleCmd)
}
