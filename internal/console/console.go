// Package console defines the progress-sink interface the evaluator
// reports through, per spec §6. The core never reads from it.
package console

import (
	"fmt"
	"log/slog"
)

// Console is the external collaborator the PlanEvaluator reports
// progress to.
type Console interface {
	LogStatusUpdate(message string)
	LogSuccess(message string)
	StartPromotionProgress(name string, total int)
	UpdatePromotionProgress(n int)
	StopPromotionProgress(success bool)
}

// Noop discards every call; the zero value is ready to use.
type Noop struct{}

func (Noop) LogStatusUpdate(string)          {}
func (Noop) LogSuccess(string)               {}
func (Noop) StartPromotionProgress(string, int) {}
func (Noop) UpdatePromotionProgress(int)     {}
func (Noop) StopPromotionProgress(bool)      {}

// Slog reports progress through a *slog.Logger, for headless CLI runs.
type Slog struct {
	Logger *slog.Logger

	name  string
	total int
	done  int
}

func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{Logger: logger}
}

func (s *Slog) LogStatusUpdate(message string) { s.Logger.Info(message) }
func (s *Slog) LogSuccess(message string)      { s.Logger.Info(message) }

func (s *Slog) StartPromotionProgress(name string, total int) {
	s.name, s.total, s.done = name, total, 0
	s.Logger.Info(fmt.Sprintf("promoting %s", name), "total", total)
}

func (s *Slog) UpdatePromotionProgress(n int) {
	s.done += n
	s.Logger.Info(fmt.Sprintf("promoting %s", s.name), "done", s.done, "total", s.total)
}

func (s *Slog) StopPromotionProgress(success bool) {
	if success {
		s.Logger.Info(fmt.Sprintf("promoted %s", s.name), "total", s.total)
	} else {
		s.Logger.Warn(fmt.Sprintf("promotion of %s failed", s.name), "done", s.done, "total", s.total)
	}
}
