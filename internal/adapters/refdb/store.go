// Package refdb defines the reference-database contract the grading
// engine reads from and the evaluation pipeline appends to.
package refdb

import (
	"context"

	"github.com/halverson/dockeval/internal/domain/model"
)

// Store provides access to the reference collection of flight metric
// records. Readers may run concurrently; appends are serialized against
// each other, and All always observes a consistent snapshot, never a
// half-applied append or rebuild.
type Store interface {
	// Append adds a record. Re-appending an existing flight ID supersedes
	// the stored record in place, keeping its original position.
	Append(ctx context.Context, rec model.MetricRecord) error

	// All returns a snapshot copy of every record in append order.
	All(ctx context.Context) ([]model.MetricRecord, error)

	// Get returns the record for a flight ID, or ErrNotFound.
	Get(ctx context.Context, flightID string) (model.MetricRecord, error)

	// Count reports the number of stored records.
	Count(ctx context.Context) (int, error)

	// ReplaceAll swaps the entire collection in one step. This backs the
	// explicit full-rebuild maintenance operation after a catalog change;
	// it is not part of steady-state flow.
	ReplaceAll(ctx context.Context, recs []model.MetricRecord) error
}
