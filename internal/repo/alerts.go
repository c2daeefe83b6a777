package repo

import (
	"context"
	"time"
)

// AlertRecord holds the last UP/DOWN state seen for a service and when the
// last notification went out. LastSentAt drives the cooldown.
type AlertRecord struct {
	Service    string
	LastState  bool
	LastSentAt *time.Time
}

// AlertStore holds alert state between alerter scans.
type AlertStore interface {
	// Get returns nil, nil if there's no record yet.
	Get(ctx context.Context, service string) (*AlertRecord, error)
	// Set upserts the record. A zero sentAt keeps the previous LastSentAt.
	Set(ctx context.Context, service string, lastState bool, sentAt time.Time) error
}
