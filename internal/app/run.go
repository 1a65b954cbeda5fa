package app

import (
	"time"

	"cfgpush/internal/cfgpush"
)

// Run identifies one CLI invocation. Its ID tags every log line.
type Run struct {
	ID      string
	Command string
	Started time.Time
}

// NewRun creates a Run for command. The ID is the start time in compact UTC
// form followed by a short random suffix, so concurrent invocations differ.
func NewRun(command string, clock cfgpush.Clock, ids cfgpush.IDGenerator) *Run {
	now := clock.Now().UTC()
	suffix := ids.New()
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return &Run{
		ID:      now.Format("20060102T150405Z") + "-" + suffix,
		Command: command,
		Started: now,
	}
}

// Elapsed returns the time since the run started.
func (r *Run) Elapsed(clock cfgpush.Clock) time.Duration {
	return clock.Now().Sub(r.Started)
}
