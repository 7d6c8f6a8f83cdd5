package store

import (
	"context"
	"fmt"

	"github.com/pitabwire/tripflow/model"
)

// TripStore persists trips with their workflow state.
type TripStore interface {
	// Create persists a new trip at version 1. Returns CONFLICT if the ID is
	// taken.
	Create(ctx context.Context, trip model.Trip) (model.Trip, error)

	// Get retrieves a trip by ID. Returns TRIP_NOT_FOUND if it doesn't exist.
	Get(ctx context.Context, tripID string) (model.Trip, error)

	// Update persists an updated trip with optimistic locking. The trip's
	// version must match the stored version. Returns CONFLICT if the version
	// has changed, otherwise the stored trip with its version bumped.
	Update(ctx context.Context, trip model.Trip) (model.Trip, error)

	// Delete removes a trip.
	Delete(ctx context.Context, tripID string) error

	// List returns trips ordered by most recently updated.
	List(ctx context.Context, filters ListFilters) ([]model.Trip, error)

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error
}

// ListFilters page through trips.
type ListFilters struct {
	Limit  int
	Offset int
}

// page applies offset and limit to an already ordered slice.
func page[T any](items []T, f ListFilters) []T {
	if f.Offset > 0 {
		if f.Offset >= len(items) {
			return []T{}
		}
		items = items[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(items) {
		items = items[:f.Limit]
	}
	return items
}

func versionConflict(trip model.Trip, stored int) error {
	return model.NewConflictError(
		fmt.Sprintf("trip %q version conflict (expected %d, got %d)", trip.ID, trip.Version, stored),
	)
}
