package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var (
	naturalParser     *when.Parser
	naturalParserOnce sync.Once
)

// parseNaturalTime resolves free-form window bounds like "3 days ago" or
// "last monday", so --start/--end don't force callers to hand-compute
// RFC3339 timestamps for the common case.
func parseNaturalTime(s string) (time.Time, error) {
	naturalParserOnce.Do(func() {
		naturalParser = when.New(nil)
		naturalParser.Add(en.All...)
		naturalParser.Add(common.All...)
	})
	r, err := naturalParser.Parse(s, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not resolve time %q", s)
	}
	return r.Time, nil
}
