package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pitabwire/tripflow/model"
)

// MemoryTripStore is an in-memory TripStore for tests and single-instance
// deployments.
type MemoryTripStore struct {
	mu    sync.RWMutex
	trips map[string][]byte // key: trip ID, value: JSON document
	now   func() time.Time
}

// NewMemoryTripStore creates a new in-memory trip store.
func NewMemoryTripStore() *MemoryTripStore {
	return &MemoryTripStore{
		trips: make(map[string][]byte),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create persists a new trip.
func (s *MemoryTripStore) Create(_ context.Context, trip model.Trip) (model.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trips[trip.ID]; exists {
		return model.Trip{}, model.NewConflictError(fmt.Sprintf("trip %q already exists", trip.ID))
	}

	now := s.now()
	trip.Version = 1
	trip.CreatedAt = now
	trip.UpdatedAt = now
	raw, err := json.Marshal(trip)
	if err != nil {
		return model.Trip{}, fmt.Errorf("marshal trip: %w", err)
	}
	s.trips[trip.ID] = raw
	return decodeTrip(raw)
}

// Get retrieves a trip by ID. The returned value shares no state with the
// store.
func (s *MemoryTripStore) Get(_ context.Context, tripID string) (model.Trip, error) {
	s.mu.RLock()
	raw, exists := s.trips[tripID]
	s.mu.RUnlock()

	if !exists {
		return model.Trip{}, model.NewTripNotFoundError(tripID)
	}
	return decodeTrip(raw)
}

// Update persists an updated trip with optimistic locking.
func (s *MemoryTripStore) Update(_ context.Context, trip model.Trip) (model.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, exists := s.trips[trip.ID]
	if !exists {
		return model.Trip{}, model.NewTripNotFoundError(trip.ID)
	}
	existing, err := decodeTrip(raw)
	if err != nil {
		return model.Trip{}, err
	}

	// Optimistic lock check.
	if existing.Version != trip.Version {
		return model.Trip{}, versionConflict(trip, existing.Version)
	}

	trip.Version++
	trip.CreatedAt = existing.CreatedAt
	trip.UpdatedAt = s.now()
	updated, err := json.Marshal(trip)
	if err != nil {
		return model.Trip{}, fmt.Errorf("marshal trip: %w", err)
	}
	s.trips[trip.ID] = updated
	return decodeTrip(updated)
}

// Delete removes a trip.
func (s *MemoryTripStore) Delete(_ context.Context, tripID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trips[tripID]; !exists {
		return model.NewTripNotFoundError(tripID)
	}
	delete(s.trips, tripID)
	return nil
}

// List returns trips ordered by updated_at descending.
func (s *MemoryTripStore) List(_ context.Context, filters ListFilters) ([]model.Trip, error) {
	s.mu.RLock()
	result := make([]model.Trip, 0, len(s.trips))
	for _, raw := range s.trips {
		trip, err := decodeTrip(raw)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		result = append(result, trip)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return page(result, filters), nil
}

// HealthCheck always succeeds.
func (s *MemoryTripStore) HealthCheck(context.Context) error {
	return nil
}

// Len returns the total number of trips. For testing.
func (s *MemoryTripStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trips)
}

func decodeTrip(raw []byte) (model.Trip, error) {
	var trip model.Trip
	if err := json.Unmarshal(raw, &trip); err != nil {
		return model.Trip{}, fmt.Errorf("unmarshal trip: %w", err)
	}
	return trip, nil
}
