package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/untoldecay/modeldag/internal/fingerprint"
	"github.com/untoldecay/modeldag/internal/plan"
)

var (
	planStart        string
	planEnd          string
	planDev          bool
	planNoGaps       bool
	planSkipBackfill bool
	planForwardOnly  bool
	planRestate      []string
)

var planCmd = &cobra.Command{
	Use:     "plan <environment> <models.json>",
	GroupID: "plan",
	Short:   "Compute the change set between a model proposal and a target environment",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := runPlan(cmd, args)
		return err
	},
}

func init() {
	planCmd.Flags().StringVar(&planStart, "start", "", "backfill window start (RFC3339 or relative, e.g. \"3 days ago\")")
	planCmd.Flags().StringVar(&planEnd, "end", "", "backfill window end (RFC3339 or relative); omit for an unbounded production environment")
	planCmd.Flags().BoolVar(&planDev, "dev", false, "build a development preview environment")
	planCmd.Flags().BoolVar(&planNoGaps, "no-gaps", true, "require the promoted environment to have no missing intervals")
	planCmd.Flags().BoolVar(&planSkipBackfill, "skip-backfill", false, "push snapshot metadata without scheduling any backfill")
	planCmd.Flags().BoolVar(&planForwardOnly, "forward-only", false, "force every change into the forward-only category, regardless of detected shape")
	planCmd.Flags().StringSliceVar(&planRestate, "restate", nil, "model names whose historical intervals should be recomputed")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) (*plan.Plan, error) {
	environment, modelsPath := args[0], args[1]

	models, err := loadModels(modelsPath)
	if err != nil {
		return nil, fmt.Errorf("load models: %w", err)
	}

	var startPtr, endPtr *int64
	if planStart != "" {
		ms, err := resolveTime(planStart)
		if err != nil {
			return nil, fmt.Errorf("parse --start: %w", err)
		}
		startPtr = &ms
	}
	if planEnd != "" {
		ms, err := resolveTime(planEnd)
		if err != nil {
			return nil, fmt.Errorf("parse --end: %w", err)
		}
		endPtr = &ms
	}

	in := plan.Input{
		Models:            models,
		TargetEnvironment: environment,
		Start:             startPtr,
		End:               endPtr,
		Restatements:      planRestate,
		IsDev:             planDev,
		NoGaps:            planNoGaps,
		SkipBackfill:      planSkipBackfill,
		ForwardOnly:       planForwardOnly,
	}

	p, err := plan.Build(rootCtx, store, in, nowMillis())
	if err != nil {
		return nil, fmt.Errorf("build plan: %w", err)
	}

	printPlan(p)
	return p, nil
}

func printPlan(p *plan.Plan) {
	logger.Info("plan computed",
		"request_id", p.RequestID,
		"environment", p.Environment.Name,
		"new_snapshots", len(p.NewSnapshots),
		"total_snapshots", len(p.Snapshots),
		"requires_backfill", p.RequiresBackfill,
		"restatements", p.Restatements,
	)
	for _, s := range p.Snapshots {
		changed := ""
		if s.ChangeCategory != fingerprint.NoChange {
			changed = s.ChangeCategory.String()
		}
		logger.Info("snapshot",
			"name", s.Name,
			"version", s.Version,
			"data_hash", s.Fingerprint.DataHash,
			"change", changed,
		)
	}
}

// nowMillis reads the wall clock once per command invocation; threaded
// explicitly through plan.Build/PlanEvaluator.Evaluate rather than read
// ad hoc deep in either call, so a single instant governs one run.
func nowMillis() int64 { return time.Now().UnixMilli() }

func resolveTime(s string) (int64, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), nil
	}
	t, err := parseNaturalTime(s)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}
