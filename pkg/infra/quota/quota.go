package quota

import "context"

// Store tracks per-tenant safety inference units (SIU) with an explicit
// reservation protocol: Reserve holds units before detectors dispatch, Commit
// burns them once a detector produced a result, Release returns them when it
// did not. Reservations are advisory, not locks; concurrent pipeline runs for
// the same tenant proceed in parallel.
type Store interface {
	// Reserve atomically deducts units from the tenant balance. It returns
	// safety.ErrQuotaExceeded when the balance is insufficient, leaving the
	// balance untouched.
	Reserve(ctx context.Context, tenantID string, units int64) error
	// Commit marks reserved units as consumed.
	Commit(ctx context.Context, tenantID string, units int64) error
	// Release returns reserved units to the balance.
	Release(ctx context.Context, tenantID string, units int64) error
}
