package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/tripflow/model"
)

// DefaultKeyPrefix namespaces trip keys when no prefix is configured.
const DefaultKeyPrefix = "tripflow:"

// RedisTripStore keeps each trip as a JSON value and maintains a sorted set
// of trip IDs scored by update time for listing. Updates run inside a
// WATCH transaction so concurrent writers cannot both pass the version
// check.
type RedisTripStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisTripStore creates a new Redis-backed trip store.
func NewRedisTripStore(client redis.UniversalClient, prefix string) *RedisTripStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisTripStore{client: client, prefix: prefix}
}

func (s *RedisTripStore) tripKey(tripID string) string {
	return s.prefix + "trip:" + tripID
}

func (s *RedisTripStore) indexKey() string {
	return s.prefix + "trips"
}

// Create stores a new trip at version 1.
func (s *RedisTripStore) Create(ctx context.Context, trip model.Trip) (model.Trip, error) {
	now := time.Now().UTC()
	trip.Version = 1
	trip.CreatedAt = now
	trip.UpdatedAt = now

	data, err := json.Marshal(trip)
	if err != nil {
		return model.Trip{}, fmt.Errorf("marshal trip: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.tripKey(trip.ID), data, 0).Result()
	if err != nil {
		return model.Trip{}, fmt.Errorf("redis setnx %q: %w", trip.ID, err)
	}
	if !created {
		return model.Trip{}, model.NewConflictError(fmt.Sprintf("trip %q already exists", trip.ID))
	}
	if err := s.client.ZAdd(ctx, s.indexKey(), redis.Z{Score: score(now), Member: trip.ID}).Err(); err != nil {
		return model.Trip{}, fmt.Errorf("redis zadd %q: %w", trip.ID, err)
	}
	return trip, nil
}

// Get retrieves a trip by ID.
func (s *RedisTripStore) Get(ctx context.Context, tripID string) (model.Trip, error) {
	raw, err := s.client.Get(ctx, s.tripKey(tripID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Trip{}, model.NewTripNotFoundError(tripID)
	}
	if err != nil {
		return model.Trip{}, fmt.Errorf("redis get %q: %w", tripID, err)
	}
	return decodeTrip(raw)
}

// Update persists an updated trip with optimistic locking.
func (s *RedisTripStore) Update(ctx context.Context, trip model.Trip) (model.Trip, error) {
	key := s.tripKey(trip.ID)
	var updated model.Trip

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return model.NewTripNotFoundError(trip.ID)
		}
		if err != nil {
			return fmt.Errorf("redis get %q: %w", trip.ID, err)
		}
		existing, err := decodeTrip(raw)
		if err != nil {
			return err
		}
		if existing.Version != trip.Version {
			return versionConflict(trip, existing.Version)
		}

		updated = trip
		updated.Version++
		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("marshal trip: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: score(updated.UpdatedAt), Member: trip.ID})
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return model.Trip{}, model.NewConflictError(
			fmt.Sprintf("trip %q was modified concurrently", trip.ID),
		)
	}
	if err != nil {
		return model.Trip{}, err
	}
	return updated, nil
}

// Delete removes a trip and its index entry.
func (s *RedisTripStore) Delete(ctx context.Context, tripID string) error {
	n, err := s.client.Del(ctx, s.tripKey(tripID)).Result()
	if err != nil {
		return fmt.Errorf("redis del %q: %w", tripID, err)
	}
	if n == 0 {
		return model.NewTripNotFoundError(tripID)
	}
	if err := s.client.ZRem(ctx, s.indexKey(), tripID).Err(); err != nil {
		return fmt.Errorf("redis zrem %q: %w", tripID, err)
	}
	return nil
}

// List returns trips ordered by updated_at descending.
func (s *RedisTripStore) List(ctx context.Context, filters ListFilters) ([]model.Trip, error) {
	start := int64(filters.Offset)
	stop := int64(-1)
	if filters.Limit > 0 {
		stop = start + int64(filters.Limit) - 1
	}

	ids, err := s.client.ZRevRange(ctx, s.indexKey(), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange: %w", err)
	}
	if len(ids) == 0 {
		return []model.Trip{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.tripKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	trips := make([]model.Trip, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Deleted between the range read and the fetch.
			continue
		}
		trip, err := decodeTrip([]byte(raw))
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	return trips, nil
}

// HealthCheck pings Redis.
func (s *RedisTripStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}
