package config

import (
	"testing"
	"time"
)

func TestInitializeAppliesDefaults(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := StateDSN(); got != "file:modeldag.db" {
		t.Errorf("StateDSN() = %q, want default", got)
	}
	if got := MaxWorkers(); got != 4 {
		t.Errorf("MaxWorkers() = %d, want default 4", got)
	}
	if got := LockTimeout(); got != 30*time.Second {
		t.Errorf("LockTimeout() = %v, want default 30s", got)
	}
	if !NoGapsDefault() {
		t.Error("NoGapsDefault() = false, want true by default")
	}
}

func TestInitializeHonorsEnvironmentOverride(t *testing.T) {
	t.Setenv("MODELDAG_STATE_DSN", "file:override.db")
	t.Setenv("MODELDAG_SCHEDULER_MAX_WORKERS", "9")
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := StateDSN(); got != "file:override.db" {
		t.Errorf("StateDSN() = %q, want env override", got)
	}
	if got := MaxWorkers(); got != 9 {
		t.Errorf("MaxWorkers() = %d, want env override 9", got)
	}
}

func TestAccessorsBeforeInitializeReturnDefaults(t *testing.T) {
	old := v
	v = nil
	defer func() { v = old }()

	if got := StateDSN(); got != "" {
		t.Errorf("StateDSN() before Initialize = %q, want empty", got)
	}
	if got := LockTimeout(); got != 30*time.Second {
		t.Errorf("LockTimeout() before Initialize = %v, want fallback default", got)
	}
	if !NoGapsDefault() {
		t.Error("NoGapsDefault() before Initialize = false, want true")
	}
}
