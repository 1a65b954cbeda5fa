package cfgpush

import (
	"time"

	"cfgpush/internal/model"
)

// Database records every handled arrival. The ledger is an audit trail for
// `cfgpush history`; nothing reads it back to resume work.
type Database interface {
	// CreateArrival inserts a pending record for a newly detected arrival.
	CreateArrival(id, path string, detectedAt time.Time) (*model.ArrivalRecord, error)

	// FinishArrival stores the final state of rec.
	FinishArrival(rec *model.ArrivalRecord) error

	// ListArrivals returns the most recent arrivals, newest first.
	ListArrivals(limit int) ([]*model.ArrivalRecord, error)

	// Close closes the database connection.
	Close() error
}
