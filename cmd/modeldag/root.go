package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/untoldecay/modeldag/internal/config"
	"github.com/untoldecay/modeldag/internal/console"
	"github.com/untoldecay/modeldag/internal/evaluator"
	"github.com/untoldecay/modeldag/internal/migration"
	"github.com/untoldecay/modeldag/internal/scheduler"
	"github.com/untoldecay/modeldag/internal/state/sqlitestate"
)

var (
	jsonOutput bool
	logPath    string
	logLevel   string

	rootCtx     = context.Background()
	logger      *slog.Logger
	store       *sqlitestate.Store
	warehouseDB *sql.DB
	evalImpl    scheduler.SnapshotEvaluator
	planEval    *evaluator.PlanEvaluator
)

var rootCmd = &cobra.Command{
	Use:           "modeldag",
	Short:         "Plan and apply SQL model changes across environments",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		return initializeRuntime()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeRuntime()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON output")
	rootCmd.PersistentFlags().StringVar(&logPath, "log-file", "", "rotate structured logs to this file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.AddGroup(
		&cobra.Group{ID: "plan", Title: "Plan and apply:"},
		&cobra.Group{ID: "maint", Title: "Maintenance:"},
	)
}

// initializeRuntime loads configuration, wires up structured logging
// (rotated through lumberjack when --log-file is set, the way a
// long-running `apply --watch` invocation needs bounded log growth), and
// opens the state store + its migration-guarded schema.
func initializeRuntime() error {
	if err := config.Initialize(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var handlerWriter io.Writer = os.Stderr
	if logPath != "" {
		handlerWriter = &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
	}
	logger = slog.New(slog.NewJSONHandler(handlerWriter, &slog.HandlerOptions{Level: parseLevel(logLevel)}))
	slog.SetDefault(logger)

	running := migration.Current()
	var err error
	store, err = sqlitestate.Open(config.StateDSN(), running, config.LockTimeout())
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	if err := store.Migrate(rootCtx); err != nil {
		return fmt.Errorf("migrate state store: %w", err)
	}
	if _, err := store.GetVersions(rootCtx, true); err != nil {
		return fmt.Errorf("version gate: %w", err)
	}

	warehouseDB, err = sql.Open("sqlite3", config.StateDSN())
	if err != nil {
		return fmt.Errorf("open warehouse target: %w", err)
	}
	evalImpl = newSQLiteEvaluator(warehouseDB)

	var con console.Console
	if jsonOutput {
		con = console.Noop{}
	} else {
		con = console.NewSlog(logger)
	}
	planEval = evaluator.New(store, evalImpl, con, config.MaxWorkers(), config.DefaultBatchSize(), logger)
	return nil
}

func closeRuntime() error {
	if warehouseDB != nil {
		_ = warehouseDB.Close()
	}
	if store != nil {
		return store.Close()
	}
	return nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
