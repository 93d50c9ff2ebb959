// Package cronstep resolves a model's cadence to a grain step in
// milliseconds, used by the interval algebra for grain-aligned boundaries
// (spec §4.2). Fixed, well-known cadence aliases ("@daily", "@hourly",
// "weekly", ...) are looked up directly; standard 5-field crons are not
// parsed. Free-form cadence hints in kind-params (e.g.
// "every 6 hours") are resolved with github.com/olebedev/when, the same
// natural-language time parser the teacher uses for its own due/defer
// date parsing.
package cronstep

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

const (
	Hour  = int64(time.Hour / time.Millisecond)
	Day   = 24 * Hour
	Week  = 7 * Day
	Month = 30 * Day
)

var knownFixed = map[string]int64{
	"@hourly": Hour,
	"@daily":  Day,
	"@weekly": Week,
	"hourly":  Hour,
	"daily":   Day,
	"weekly":  Week,
	"monthly": Month,
}

var parser = newParser()

func newParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// Grain resolves a cadence expression to a step size in milliseconds.
// Standard 5-field crons are not re-implemented here (that grammar is the
// SQL dialect/scheduling layer's job, out of scope per spec §1); Grain
// only needs the step size, so it recognizes the common fixed-cadence
// aliases directly and falls back to the natural-language parser for
// free-form hints like "every 6 hours".
func Grain(cron string) (int64, error) {
	cron = strings.TrimSpace(strings.ToLower(cron))
	if cron == "" {
		return 0, fmt.Errorf("cronstep: empty cadence")
	}
	if step, ok := knownFixed[cron]; ok {
		return step, nil
	}
	return resolveNaturalLanguage(cron)
}

// resolveNaturalLanguage asks `when` to locate the cadence phrase
// relative to a fixed reference instant, then derives the step from the
// offset between the reference and the match. This covers phrases like
// "every 6 hours" or "every 15 minutes" that a fixed cron alias can't
// express but a model author might still write into a kind-param. A
// leading "every " is read as "in " so the parser's relative-offset rule
// matches it.
func resolveNaturalLanguage(cron string) (int64, error) {
	ref := time.Unix(0, 0).UTC()
	phrase := cron
	if rest, ok := strings.CutPrefix(cron, "every "); ok {
		phrase = "in " + rest
	}
	result, err := parser.Parse(phrase, ref)
	if err != nil {
		return 0, fmt.Errorf("cronstep: parse %q: %w", cron, err)
	}
	if result == nil {
		return 0, fmt.Errorf("cronstep: unrecognized cadence %q", cron)
	}
	step := result.Time.Sub(ref).Milliseconds()
	if step <= 0 {
		return 0, fmt.Errorf("cronstep: cadence %q resolved to a non-positive step", cron)
	}
	return step, nil
}
