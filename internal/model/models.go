package model

import (
	"database/sql"
	"time"
)

// Arrival statuses stored in the ledger.
const (
	StatusPending   = "pending"
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned" // shutdown interrupted handling
)

// ArrivalRecord is one row of the arrivals ledger.
type ArrivalRecord struct {
	ID          string       // UUID
	Path        string       // Absolute path of the arrived archive
	Identifier  string       // Derived repository identifier, empty if derivation failed
	DetectedAt  time.Time    // When the watcher saw the file
	FinishedAt  sql.NullTime // When handling completed
	Status      string       // One of the Status* constants
	Outcome     string       // Failure tag, empty on success
	StatusCode  int64        // Final HTTP status, 0 if no response
	CreatedPath bool         // Whether the create fallback ran
	ArchiveKey  string       // Vault key of the archived copy, if any
}
