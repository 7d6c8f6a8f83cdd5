package store

import (
	"context"
	"time"

	"github.com/pitabwire/tripflow/internal/observability"
	"github.com/pitabwire/tripflow/model"
)

// Recorder observes store calls.
type Recorder interface {
	RecordStoreOperation(operation string, err error, duration time.Duration)
}

// InstrumentedTripStore wraps a TripStore with spans and metrics.
type InstrumentedTripStore struct {
	next     TripStore
	name     string
	recorder Recorder
}

// Instrument wraps st. name labels spans with the backing driver.
func Instrument(st TripStore, name string, recorder Recorder) *InstrumentedTripStore {
	return &InstrumentedTripStore{next: st, name: name, recorder: recorder}
}

func (s *InstrumentedTripStore) observe(ctx context.Context, op, tripID string) (context.Context, func(error)) {
	ctx, span := observability.StartSpan(ctx, "store."+op,
		observability.AttrStoreName.String(s.name),
		observability.AttrOperation.String(op),
		observability.AttrTripID.String(tripID),
	)
	start := time.Now()
	return ctx, func(err error) {
		if s.recorder != nil {
			s.recorder.RecordStoreOperation(op, err, time.Since(start))
		}
		observability.EndSpanWithError(span, err)
	}
}

// Create implements TripStore.
func (s *InstrumentedTripStore) Create(ctx context.Context, trip model.Trip) (model.Trip, error) {
	ctx, done := s.observe(ctx, "create", trip.ID)
	out, err := s.next.Create(ctx, trip)
	done(err)
	return out, err
}

// Get implements TripStore.
func (s *InstrumentedTripStore) Get(ctx context.Context, tripID string) (model.Trip, error) {
	ctx, done := s.observe(ctx, "get", tripID)
	out, err := s.next.Get(ctx, tripID)
	done(err)
	return out, err
}

// Update implements TripStore.
func (s *InstrumentedTripStore) Update(ctx context.Context, trip model.Trip) (model.Trip, error) {
	ctx, done := s.observe(ctx, "update", trip.ID)
	out, err := s.next.Update(ctx, trip)
	done(err)
	return out, err
}

// Delete implements TripStore.
func (s *InstrumentedTripStore) Delete(ctx context.Context, tripID string) error {
	ctx, done := s.observe(ctx, "delete", tripID)
	err := s.next.Delete(ctx, tripID)
	done(err)
	return err
}

// List implements TripStore.
func (s *InstrumentedTripStore) List(ctx context.Context, filters ListFilters) ([]model.Trip, error) {
	ctx, done := s.observe(ctx, "list", "")
	out, err := s.next.List(ctx, filters)
	done(err)
	return out, err
}

// HealthCheck implements TripStore. Health probes are not recorded.
func (s *InstrumentedTripStore) HealthCheck(ctx context.Context) error {
	return s.next.HealthCheck(ctx)
}
