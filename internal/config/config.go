// Package config loads state-store, scheduler, plan and environment settings for
// the modeldag core from a layered YAML configuration, following the same
// viper-singleton pattern the CLI driving this core uses for its own
// settings.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton. Should be called
// once at process startup, before any package reads a setting.
//
// Precedence: project .modeldag/config.yaml > ~/.config/modeldag/config.yaml.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configFileSet := false

	// Walk up from CWD looking for a project-local config, so commands
	// work from any subdirectory of a checkout.
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			configPath := filepath.Join(dir, ".modeldag", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
				break
			}
		}
	}

	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath := filepath.Join(configDir, "modeldag", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix("MODELDAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("state.dsn", "file:modeldag.db")
	v.SetDefault("state.lock-timeout", "30s")
	v.SetDefault("scheduler.max-workers", 4)
	v.SetDefault("scheduler.ddl-concurrent-tasks", 4)
	v.SetDefault("scheduler.batch-size", 0) // 0 == unbounded, per-model override wins
	v.SetDefault("plan.no-gaps", true)
	v.SetDefault("environment.dev-ttl", "168h") // 7 days

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		slog.Debug("loaded config", "path", v.ConfigFileUsed())
	} else {
		slog.Debug("no config.yaml found; using defaults and environment variables")
	}

	return nil
}

// WatchAndReload installs an fsnotify watch on the active config file and
// invokes onChange whenever it is rewritten. Intended for long-running
// `apply --watch` invocations; a no-op when no config file was found.
func WatchAndReload(onChange func()) (io interface{ Close() error }, err error) {
	if v == nil || v.ConfigFileUsed() == "" {
		return nopCloser{}, nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watch: %w", err)
	}
	if err := w.Add(filepath.Dir(v.ConfigFileUsed())); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("config watch: %w", err)
	}
	go func() {
		for event := range w.Events {
			if event.Name == v.ConfigFileUsed() && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := v.ReadInConfig(); err == nil && onChange != nil {
					onChange()
				}
			}
		}
	}()
	return w, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// StateDSN returns the configured state store connection string.
func StateDSN() string { return getString("state.dsn") }

// LockTimeout returns how long a writer waits to acquire the migration
// advisory lock before giving up.
func LockTimeout() time.Duration {
	return getDuration("state.lock-timeout", 30*time.Second)
}

// MaxWorkers returns the scheduler's bounded worker-pool size.
func MaxWorkers() int { return getInt("scheduler.max-workers", 4) }

// DDLConcurrentTasks returns the SnapshotEvaluator's promote/demote DDL
// parallelism.
func DDLConcurrentTasks() int { return getInt("scheduler.ddl-concurrent-tasks", 4) }

// DefaultBatchSize returns the scheduler's default batch size in grain
// units; 0 means unbounded unless a model overrides it.
func DefaultBatchSize() int { return getInt("scheduler.batch-size", 0) }

// NoGapsDefault returns the plan-level default for the no_gaps promotion
// invariant when a caller does not specify one explicitly.
func NoGapsDefault() bool {
	if v == nil {
		return true
	}
	return v.GetBool("plan.no-gaps")
}

// DevEnvironmentTTL returns the default TTL for development environments.
func DevEnvironmentTTL() time.Duration {
	return getDuration("environment.dev-ttl", 168*time.Hour)
}

func getString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

func getInt(key string, def int) int {
	if v == nil {
		return def
	}
	return v.GetInt(key)
}

func getDuration(key string, def time.Duration) time.Duration {
	if v == nil {
		return def
	}
	d := v.GetDuration(key)
	if d == 0 {
		return def
	}
	return d
}
