// Package trip persists trips and runs the workflow engine over them. Every
// write is a read-modify-write against the store's optimistic version, so
// concurrent writers on one trip are serialized by retry rather than lost.
package trip

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/pitabwire/tripflow/internal/observability"
	"github.com/pitabwire/tripflow/internal/store"
	"github.com/pitabwire/tripflow/internal/workflow"
	"github.com/pitabwire/tripflow/model"
)

const tracerName = "github.com/pitabwire/tripflow/internal/trip"

// maxWriteAttempts bounds retries after a version conflict.
const maxWriteAttempts = 3

// DefaultIdempotencyTTL is used when WithIdempotency is given a zero TTL.
const DefaultIdempotencyTTL = 24 * time.Hour

// ActionsResult is the outcome of one action batch.
type ActionsResult struct {
	Trip    model.Trip           `json:"trip"`
	Results []model.ActionResult `json:"results"`
}

// Recorder receives service metrics.
type Recorder interface {
	RecordDerivation(trigger, stage string, bookingReady bool)
	RecordActionResult(actionType, status string)
	RecordIdempotentReplay()
}

type nopRecorder struct{}

func (nopRecorder) RecordDerivation(string, string, bool) {}
func (nopRecorder) RecordActionResult(string, string)     {}
func (nopRecorder) RecordIdempotentReplay()               {}

// Service coordinates the trip store and the workflow engine.
type Service struct {
	store   store.TripStore
	engine  *workflow.Engine
	idem    IdempotencyStore
	idemTTL time.Duration
	metrics Recorder
	logger  *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithIdempotency enables idempotent action batches.
func WithIdempotency(s IdempotencyStore, ttl time.Duration) Option {
	return func(svc *Service) {
		svc.idem = s
		svc.idemTTL = ttl
		if ttl <= 0 {
			svc.idemTTL = DefaultIdempotencyTTL
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(svc *Service) { svc.metrics = r }
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *zap.Logger) Option {
	return func(svc *Service) { svc.logger = l }
}

// NewService creates a trip service.
func NewService(st store.TripStore, engine *workflow.Engine, opts ...Option) *Service {
	svc := &Service{
		store:   st,
		engine:  engine,
		metrics: nopRecorder{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Get returns a trip.
func (s *Service) Get(ctx context.Context, tripID string) (model.Trip, error) {
	return s.store.Get(ctx, tripID)
}

// Delete removes a trip.
func (s *Service) Delete(ctx context.Context, tripID string) error {
	return s.store.Delete(ctx, tripID)
}

// List returns trip summaries, most recently updated first.
func (s *Service) List(ctx context.Context, filters store.ListFilters) ([]model.TripSummary, error) {
	trips, err := s.store.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	out := make([]model.TripSummary, 0, len(trips))
	for _, t := range trips {
		out = append(out, Summarize(t))
	}
	return out, nil
}

// Summarize projects a trip onto its list view.
func Summarize(t model.Trip) model.TripSummary {
	sum := model.TripSummary{ID: t.ID, Version: t.Version, UpdatedAt: t.UpdatedAt}
	if t.Decision != nil {
		sum.Itineraries = len(t.Decision.Itineraries)
		if w := t.Decision.Workflow; w != nil {
			sum.CurrentStage = w.Stage.Current
			sum.BookingReady = w.BookingReadiness.Ready
		}
	}
	return sum
}

// Put creates or replaces a trip's inputs. A new decision package is derived
// with the chat_generation trigger, continuing from the stored workflow. A
// spec update alone re-derives the stored decision. An empty spec resets the
// workflow.
func (s *Service) Put(ctx context.Context, tripID string, spec model.TripSpec, decision *model.DecisionPackage, actor string) (model.Trip, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "trip.put")
	defer span.End()
	span.SetAttributes(observability.AttrTripID.String(tripID))

	_, err := s.store.Get(ctx, tripID)
	if model.HasCode(err, model.ErrTripNotFound) {
		trip := model.Trip{ID: tripID, Spec: spec}
		if decision != nil {
			d := *decision
			if spec.IsZero() {
				d.Workflow = nil
			}
			derived := s.derive(ctx, spec, d, nil, workflow.DeriveOptions{Trigger: model.TriggerChatGeneration, Actor: actor})
			trip.Decision = &derived
		}
		created, err := s.store.Create(ctx, trip)
		if !model.HasCode(err, model.ErrConflict) {
			return created, err
		}
		// Lost a create race; fall through to the update path.
	} else if err != nil {
		return model.Trip{}, err
	}

	return s.mutate(ctx, tripID, func(t *model.Trip) error {
		t.Spec = spec
		switch {
		case spec.IsZero():
			t.Decision = nil
			if decision != nil {
				d := *decision
				d.Workflow = nil
				derived := s.derive(ctx, spec, d, nil, workflow.DeriveOptions{Trigger: model.TriggerChatGeneration, Actor: actor})
				t.Decision = &derived
			}
		case decision != nil:
			derived := s.derive(ctx, spec, *decision, t.Decision, workflow.DeriveOptions{Trigger: model.TriggerChatGeneration, Actor: actor})
			t.Decision = &derived
		case t.Decision != nil:
			derived := s.derive(ctx, spec, *t.Decision, nil, workflow.DeriveOptions{Trigger: model.TriggerWorkflowRefresh, Actor: actor})
			t.Decision = &derived
		}
		return nil
	})
}

// Recompute re-derives the stored decision with a recompute trigger.
func (s *Service) Recompute(ctx context.Context, tripID, mode, actor string) (model.Trip, error) {
	if mode != model.RecomputeSameSnapshot && mode != model.RecomputeRefreshed {
		return model.Trip{}, model.NewBadRequestError("mode must be same_snapshot or refreshed_live")
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "trip.recompute")
	defer span.End()
	span.SetAttributes(
		observability.AttrTripID.String(tripID),
		observability.AttrRecomputeMode.String(mode),
	)

	return s.mutate(ctx, tripID, func(t *model.Trip) error {
		if t.Decision == nil {
			return model.NewDecisionMissingError(tripID)
		}
		derived := s.derive(ctx, t.Spec, *t.Decision, nil, workflow.DeriveOptions{
			Trigger:       workflow.TriggerForMode(mode),
			RecomputeMode: mode,
			Actor:         actor,
		})
		t.Decision = &derived
		return nil
	})
}

// Refresh re-derives the stored decision with the workflow_refresh trigger.
func (s *Service) Refresh(ctx context.Context, tripID, actor string) (model.Trip, error) {
	return s.mutate(ctx, tripID, func(t *model.Trip) error {
		if t.Decision == nil {
			return model.NewDecisionMissingError(tripID)
		}
		derived := s.derive(ctx, t.Spec, *t.Decision, nil, workflow.DeriveOptions{Trigger: model.TriggerWorkflowRefresh, Actor: actor})
		t.Decision = &derived
		return nil
	})
}

// ApplyActions applies an action batch. Actions without an author are
// attributed to actor. When idempotencyKey is set, a repeated batch returns
// the original result and a different batch under the same key conflicts.
func (s *Service) ApplyActions(ctx context.Context, tripID string, actions []model.Action, idempotencyKey, actor string) (ActionsResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "trip.apply_actions")
	defer span.End()
	span.SetAttributes(
		observability.AttrTripID.String(tripID),
		observability.AttrActionCount.Int(len(actions)),
	)

	attributed := make([]model.Action, len(actions))
	for i, a := range actions {
		if a.Actor == "" {
			a.Actor = actor
		}
		attributed[i] = a
	}

	var idemKey, inputHash string
	if s.idem != nil && idempotencyKey != "" {
		hash, err := HashActions(attributed)
		if err != nil {
			return ActionsResult{}, err
		}
		idemKey, inputHash = FormatIdempotencyKey(tripID, idempotencyKey), hash

		cached, found, err := s.idem.Check(ctx, idemKey, inputHash)
		if err != nil {
			return ActionsResult{}, err
		}
		if found {
			span.SetAttributes(observability.AttrIdempotentReplay.Bool(true))
			s.metrics.RecordIdempotentReplay()
			return *cached, nil
		}
	}

	var results []model.ActionResult
	updated, err := s.mutate(ctx, tripID, func(t *model.Trip) error {
		if t.Decision == nil {
			return model.NewDecisionMissingError(tripID)
		}
		out, res, err := s.engine.ApplyActions(t.Spec, *t.Decision, attributed)
		if err != nil {
			return err
		}
		t.Decision = &out
		results = res
		return nil
	})
	if err != nil {
		return ActionsResult{}, err
	}

	applied := 0
	for _, r := range results {
		s.metrics.RecordActionResult(r.Type, r.Status)
		if r.Status == model.ActionApplied {
			applied++
		}
	}
	s.recordDerivation(*updated.Decision, model.TriggerWorkflowRefresh)
	observability.TripLogger(ctx, s.logger, tripID).Info("actions applied",
		zap.Int("actions", len(results)),
		zap.Int("applied", applied),
		zap.Int("version", updated.Version),
	)

	result := ActionsResult{Trip: updated, Results: results}
	if idemKey != "" {
		if err := s.idem.Store(ctx, idemKey, inputHash, result, s.idemTTL); err != nil {
			// The batch is committed; a lost idempotency record only
			// weakens replay protection.
			observability.TripLogger(ctx, s.logger, tripID).Warn("idempotency store failed",
				zap.Error(err),
			)
		}
	}
	return result, nil
}

// ValidateLinks probes the trip's links and re-derives the workflow so
// stages and booking readiness reflect the results. Probing happens once,
// outside the write retry loop.
func (s *Service) ValidateLinks(ctx context.Context, tripID, actor string) (model.Trip, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "trip.validate_links")
	defer span.End()
	span.SetAttributes(observability.AttrTripID.String(tripID))

	current, err := s.store.Get(ctx, tripID)
	if err != nil {
		return model.Trip{}, err
	}
	if current.Decision == nil {
		return model.Trip{}, model.NewDecisionMissingError(tripID)
	}
	health := s.engine.ValidateLinks(ctx, *current.Decision).Workflow.Integrations.LinkHealth

	return s.mutate(ctx, tripID, func(t *model.Trip) error {
		if t.Decision == nil {
			return model.NewDecisionMissingError(tripID)
		}
		d := *t.Decision
		var state model.WorkflowState
		if d.Workflow != nil {
			state = *d.Workflow
		}
		state.Integrations.LinkHealth = health
		d.Workflow = &state

		derived := s.derive(ctx, t.Spec, d, nil, workflow.DeriveOptions{Trigger: model.TriggerWorkflowRefresh, Actor: actor})
		t.Decision = &derived
		return nil
	})
}

// Report exports the trip's snapshot report.
func (s *Service) Report(ctx context.Context, tripID string) (model.SnapshotReport, error) {
	t, err := s.store.Get(ctx, tripID)
	if err != nil {
		return model.SnapshotReport{}, err
	}
	if t.Decision == nil {
		return model.SnapshotReport{}, model.NewDecisionMissingError(tripID)
	}
	return s.engine.BuildSnapshotReport(t.Spec, *t.Decision), nil
}

// Comments lists the trip's comments for a target.
func (s *Service) Comments(ctx context.Context, tripID, targetType, targetID string) ([]model.Comment, error) {
	t, err := s.store.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if t.Decision == nil || t.Decision.Workflow == nil {
		return []model.Comment{}, nil
	}
	comments := workflow.CommentsFor(t.Decision.Workflow.Coordination.Comments, targetType, targetID)
	if comments == nil {
		comments = []model.Comment{}
	}
	return comments, nil
}

// mutate reads the trip, applies fn, and writes it back under the read
// version. A version conflict restarts the cycle from a fresh read.
func (s *Service) mutate(ctx context.Context, tripID string, fn func(*model.Trip) error) (model.Trip, error) {
	var lastErr error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		t, err := s.store.Get(ctx, tripID)
		if err != nil {
			return model.Trip{}, err
		}
		if err := fn(&t); err != nil {
			return model.Trip{}, err
		}

		updated, err := s.store.Update(ctx, t)
		if err == nil {
			return updated, nil
		}
		if !model.HasCode(err, model.ErrConflict) {
			return model.Trip{}, err
		}
		lastErr = err
		observability.TripLogger(ctx, s.logger, tripID).Debug("trip write conflict, retrying",
			zap.Int("attempt", attempt),
		)
		if ctx.Err() != nil {
			return model.Trip{}, errors.Join(lastErr, ctx.Err())
		}
	}
	return model.Trip{}, lastErr
}

func (s *Service) derive(ctx context.Context, spec model.TripSpec, decision model.DecisionPackage, previous *model.DecisionPackage, opts workflow.DeriveOptions) model.DecisionPackage {
	out := s.engine.DeriveContext(ctx, spec, decision, previous, opts)
	s.recordDerivation(out, opts.Trigger)
	return out
}

func (s *Service) recordDerivation(d model.DecisionPackage, trigger string) {
	if d.Workflow == nil {
		return
	}
	s.metrics.RecordDerivation(trigger, d.Workflow.Stage.Current, d.Workflow.BookingReadiness.Ready)
}
