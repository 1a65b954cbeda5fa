package cfgpush

import "time"

// Arrival is a qualifying file-creation event handed to the Pusher.
type Arrival struct {
	ID         string
	Path       string
	Ext        string
	DetectedAt time.Time
}

// Result describes how one arrival was handled.
type Result struct {
	Arrival    *Arrival
	Identifier string
	// Response is the final commit response, nil if none was received.
	Response *CommitResponse
	// Created is true when the create fallback ran.
	Created bool
	// Skipped is true when the path is not an archive; nothing else happened.
	Skipped bool
	// Outcome is set when handling failed.
	Outcome    *Outcome
	ArchiveKey string
}

// OK reports whether the arrival was committed.
func (r *Result) OK() bool {
	return !r.Skipped && r.Outcome == nil && r.Response != nil && r.Response.OK()
}
