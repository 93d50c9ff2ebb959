package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: "maint",
	Short:   "Apply any pending state-store schema migrations",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// initializeRuntime already ran Migrate as part of opening the
		// store; this command exists so an operator can run it standalone
		// ahead of a fleet rollout, without also touching model state.
		if err := store.Migrate(rootCtx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migration complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
