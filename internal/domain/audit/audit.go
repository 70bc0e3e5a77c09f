// Package audit defines the operator attribution trail contract.
// Every mutating ledger, lot and cart operation records who did what.
package audit

import (
	"context"
	"time"

	"merx/internal/core/id"
)

// Entry is one recorded action.
type Entry struct {
	Operator   string
	Action     string // e.g. "movement.record", "lot.adjust"
	EntityType string
	EntityID   id.ID
	Payload    any       // serialized (and compressed when large) by the recorder
	OccurredAt time.Time // assigned by the recorder on write
}

// Recorder persists audit entries. Implemented by
// infrastructure/storage/postgres. Recording failures are surfaced to the
// caller; mutating services log and continue, never failing the mutation.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Noop discards entries. Used in tests.
type Noop struct{}

func (Noop) Record(ctx context.Context, entry Entry) error { return nil }
