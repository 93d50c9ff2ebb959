package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/untoldecay/modeldag/internal/config"
)

var applyWatch bool

var applyCmd = &cobra.Command{
	Use:     "apply <environment> <models.json>",
	GroupID: "plan",
	Short:   "Build a plan and evaluate it: push, restate, backfill, promote",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		runOnce := func() error {
			// Re-read config-backed settings on every run so a reload
			// under --watch takes effect; an explicit --no-gaps flag wins.
			if !cmd.Flags().Changed("no-gaps") {
				planNoGaps = config.NoGapsDefault()
			}
			planEval.MaxWorkers = config.MaxWorkers()
			planEval.BatchSize = config.DefaultBatchSize()
			p, err := runPlan(cmd, args)
			if err != nil {
				return err
			}
			if err := planEval.Evaluate(rootCtx, p, nowMillis()); err != nil {
				return fmt.Errorf("apply %s: %w", args[0], err)
			}
			logger.Info("apply complete", "environment", p.Environment.Name, "request_id", p.RequestID)
			return nil
		}

		if err := runOnce(); err != nil {
			return err
		}
		if !applyWatch {
			return nil
		}

		watcher, err := config.WatchAndReload(func() {
			logger.Info("config changed, re-applying", "environment", args[0])
			if err := runOnce(); err != nil {
				logger.Error("re-apply failed", "environment", args[0], "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("apply --watch: %w", err)
		}
		defer func() { _ = watcher.Close() }()

		logger.Info("watching config for changes; press ctrl-c to stop", "environment", args[0])
		ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		return nil
	},
}

func init() {
	applyCmd.Flags().StringVar(&planStart, "start", "", "backfill window start (RFC3339 or relative, e.g. \"3 days ago\")")
	applyCmd.Flags().StringVar(&planEnd, "end", "", "backfill window end (RFC3339 or relative); omit for an unbounded production environment")
	applyCmd.Flags().BoolVar(&planDev, "dev", false, "build a development preview environment")
	applyCmd.Flags().BoolVar(&planNoGaps, "no-gaps", true, "require the promoted environment to have no missing intervals")
	applyCmd.Flags().BoolVar(&planSkipBackfill, "skip-backfill", false, "push snapshot metadata without scheduling any backfill")
	applyCmd.Flags().BoolVar(&planForwardOnly, "forward-only", false, "force every change into the forward-only category, regardless of detected shape")
	applyCmd.Flags().StringSliceVar(&planRestate, "restate", nil, "model names whose historical intervals should be recomputed")
	applyCmd.Flags().BoolVar(&applyWatch, "watch", false, "keep running and re-apply whenever the config file changes")
	rootCmd.AddCommand(applyCmd)
}
