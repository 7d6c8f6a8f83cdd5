package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitabwire/tripflow/model"
)

// Schema creates the trips table. Spec and decision are stored as JSONB so
// the workflow state round-trips without a column per field.
const Schema = `
CREATE TABLE IF NOT EXISTS trips (
	id         TEXT PRIMARY KEY,
	spec       JSONB NOT NULL,
	decision   JSONB,
	version    INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS trips_updated_at_idx ON trips (updated_at DESC);`

const uniqueViolation = "23505"

// PgTripStore is a PostgreSQL-backed TripStore using pgx/v5.
type PgTripStore struct {
	pool *pgxpool.Pool
}

// NewPgTripStore creates a new PostgreSQL trip store.
func NewPgTripStore(pool *pgxpool.Pool) *PgTripStore {
	return &PgTripStore{pool: pool}
}

// Migrate applies Schema.
func (s *PgTripStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply trips schema: %w", err)
	}
	return nil
}

// Create inserts a new trip at version 1.
func (s *PgTripStore) Create(ctx context.Context, trip model.Trip) (model.Trip, error) {
	specJSON, decisionJSON, err := encodeColumns(trip)
	if err != nil {
		return model.Trip{}, err
	}

	now := time.Now().UTC()
	trip.Version = 1
	trip.CreatedAt = now
	trip.UpdatedAt = now

	_, err = s.pool.Exec(ctx, `
		INSERT INTO trips (id, spec, decision, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		trip.ID, specJSON, decisionJSON, trip.Version, trip.CreatedAt, trip.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return model.Trip{}, model.NewConflictError(fmt.Sprintf("trip %q already exists", trip.ID))
	}
	if err != nil {
		return model.Trip{}, fmt.Errorf("insert trip: %w", err)
	}
	return trip, nil
}

// Get retrieves a trip by ID.
func (s *PgTripStore) Get(ctx context.Context, tripID string) (model.Trip, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, spec, decision, version, created_at, updated_at
		FROM trips
		WHERE id = $1`,
		tripID,
	)
	trip, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Trip{}, model.NewTripNotFoundError(tripID)
	}
	if err != nil {
		return model.Trip{}, fmt.Errorf("query trip: %w", err)
	}
	return trip, nil
}

// Update persists an updated trip with optimistic locking.
func (s *PgTripStore) Update(ctx context.Context, trip model.Trip) (model.Trip, error) {
	specJSON, decisionJSON, err := encodeColumns(trip)
	if err != nil {
		return model.Trip{}, err
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE trips SET
			spec = $1,
			decision = $2,
			version = version + 1,
			updated_at = $3
		WHERE id = $4 AND version = $5
		RETURNING id, spec, decision, version, created_at, updated_at`,
		specJSON, decisionJSON, time.Now().UTC(),
		trip.ID, trip.Version,
	)
	updated, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the trip is gone or another writer bumped the version.
		current, getErr := s.Get(ctx, trip.ID)
		if getErr != nil {
			return model.Trip{}, getErr
		}
		return model.Trip{}, versionConflict(trip, current.Version)
	}
	if err != nil {
		return model.Trip{}, fmt.Errorf("update trip: %w", err)
	}
	return updated, nil
}

// Delete removes a trip.
func (s *PgTripStore) Delete(ctx context.Context, tripID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trips WHERE id = $1`, tripID)
	if err != nil {
		return fmt.Errorf("delete trip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewTripNotFoundError(tripID)
	}
	return nil
}

// List returns trips ordered by updated_at descending.
func (s *PgTripStore) List(ctx context.Context, filters ListFilters) ([]model.Trip, error) {
	query := `SELECT id, spec, decision, version, created_at, updated_at
	          FROM trips
	          ORDER BY updated_at DESC, id ASC`
	var args []any
	argIdx := 1

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filters.Limit)
		argIdx++
	}
	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filters.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trips: %w", err)
	}
	defer rows.Close()

	trips := []model.Trip{}
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

// HealthCheck pings the pool.
func (s *PgTripStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func encodeColumns(trip model.Trip) ([]byte, []byte, error) {
	specJSON, err := json.Marshal(trip.Spec)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal spec: %w", err)
	}
	var decisionJSON []byte
	if trip.Decision != nil {
		decisionJSON, err = json.Marshal(trip.Decision)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal decision: %w", err)
		}
	}
	return specJSON, decisionJSON, nil
}

func scanTrip(row pgx.Row) (model.Trip, error) {
	var trip model.Trip
	var specJSON, decisionJSON []byte
	if err := row.Scan(
		&trip.ID, &specJSON, &decisionJSON, &trip.Version,
		&trip.CreatedAt, &trip.UpdatedAt,
	); err != nil {
		return model.Trip{}, err
	}
	if err := json.Unmarshal(specJSON, &trip.Spec); err != nil {
		return model.Trip{}, fmt.Errorf("unmarshal spec: %w", err)
	}
	if decisionJSON != nil {
		var decision model.DecisionPackage
		if err := json.Unmarshal(decisionJSON, &decision); err != nil {
			return model.Trip{}, fmt.Errorf("unmarshal decision: %w", err)
		}
		trip.Decision = &decision
	}
	return trip, nil
}
