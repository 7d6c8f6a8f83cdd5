// Package workflow derives the coordination state of a ski trip from its
// trip specification and decision package, and applies user actions to it.
//
// Every derivation is a pure function of its inputs plus the previous
// WorkflowState; nothing is cached between calls. Callers serialize
// concurrent read-modify-write cycles on the same trip.
package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/pitabwire/tripflow/internal/linkhealth"
	"github.com/pitabwire/tripflow/model"
)

const tracerName = "github.com/pitabwire/tripflow/internal/workflow"

// ScoringVersion tags the resort-scoring model a run was produced under.
const ScoringVersion = "resort-scoring-v3"

// systemAuthor attributes entries that the engine writes on its own.
const systemAuthor = "system"

// Markers identify the reasoning profile behind a run. They are stored
// verbatim in run metadata.
type Markers struct {
	Model          string
	Profile        string
	PromptVersions []string
}

// LinkProber classifies the reachability of itinerary links.
type LinkProber interface {
	Probe(ctx context.Context, targets []linkhealth.Target) []model.LinkRecord
}

// DeriveOptions controls one derivation.
type DeriveOptions struct {
	// Trigger is one of the model.Trigger* constants. Empty means
	// workflow_refresh.
	Trigger string

	// RecomputeMode is stored on the run when set.
	RecomputeMode string

	// Actor is recorded on log entries the derivation writes.
	Actor string
}

// Engine derives WorkflowState values and applies actions to them.
type Engine struct {
	now     func() time.Time
	newID   func() string
	prober  LinkProber
	markers Markers
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator sets the generator for run, log, and comment IDs.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithProber sets the link-health prober used by ValidateLinks.
func WithProber(p LinkProber) Option {
	return func(e *Engine) { e.prober = p }
}

// WithMarkers sets the model and profile markers stamped on runs.
func WithMarkers(m Markers) Option {
	return func(e *Engine) { e.markers = m }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an Engine. Without options it uses the system clock,
// UUIDs, and a default link prober.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.prober == nil {
		e.prober = linkhealth.NewProber(linkhealth.Config{})
	}
	return e
}

// Derive attaches a freshly derived WorkflowState to decision. Continuity
// comes from previous.Workflow when previous is given, else from
// decision.Workflow.
func (e *Engine) Derive(spec model.TripSpec, decision model.DecisionPackage, previous *model.DecisionPackage, opts DeriveOptions) model.DecisionPackage {
	prev := decision.Workflow
	if previous != nil && previous.Workflow != nil {
		prev = previous.Workflow
	}

	state := e.derive(spec, decision, prev, opts, true)

	e.logger.Debug("workflow derived",
		zap.String("trigger", triggerOf(opts)),
		zap.String("current_stage", state.Stage.Current),
		zap.Bool("booking_ready", state.BookingReadiness.Ready),
		zap.Int("itineraries", len(decision.Itineraries)),
	)

	out := decision
	out.Workflow = &state
	return out
}

// DeriveContext is Derive wrapped in a trace span.
func (e *Engine) DeriveContext(ctx context.Context, spec model.TripSpec, decision model.DecisionPackage, previous *model.DecisionPackage, opts DeriveOptions) model.DecisionPackage {
	_, span := otel.Tracer(tracerName).Start(ctx, "workflow.derive")
	defer span.End()

	out := e.Derive(spec, decision, previous, opts)
	span.SetAttributes(
		attribute.String("tripflow.trigger", triggerOf(opts)),
		attribute.String("tripflow.stage", out.Workflow.Stage.Current),
	)
	return out
}

// derive runs the full pipeline. When recordRun is false the run history is
// carried over untouched and no recompute entry is logged.
func (e *Engine) derive(spec model.TripSpec, decision model.DecisionPackage, prev *model.WorkflowState, opts DeriveOptions, recordRun bool) model.WorkflowState {
	now := e.now().UTC()
	var p model.WorkflowState
	if prev != nil {
		p = *prev
	}
	actor := opts.Actor
	if actor == "" {
		actor = systemAuthor
	}

	coord := deriveCoordination(decision, p.Coordination, now)
	assumptions := deriveAssumptions(spec, decision, p.Assumptions)
	locks := deriveLocks(spec, p.LockedDecisions, now)
	audit := deriveItineraryAudit(decision, now)
	links := carryLinkHealth(decision, p.Integrations.LinkHealth)
	integrations := deriveIntegrations(decision, coord, links)
	ops := deriveOperations(spec, decision, locks, coord.Tasks, links, now)

	stage := deriveStages(collectFacts(spec, decision, locks, coord, assumptions, links, ops, now))
	booking := deriveBookingReadiness(stage, coord, links)

	repeat := model.Repeatability{
		Runs:       append([]model.RunMetadata(nil), p.Repeatability.Runs...),
		LatestDiff: p.Repeatability.LatestDiff,
	}
	if recordRun {
		run := e.newRun(decision, locks, opts, now)
		repeat = appendRun(repeat, run)
	}

	log := append([]model.DecisionLogEntry(nil), p.DecisionLog...)
	if p.Stage.Current != stage.Current {
		log = e.appendLog(log, model.LogStage, stageTransitionSummary(p.Stage.Current, stage.Current), actor, now)
	}
	for _, summary := range lockChanges(p.LockedDecisions, locks) {
		log = e.appendLog(log, model.LogLock, summary, actor, now)
	}
	if recordRun {
		if summary, ok := triggerSummary(triggerOf(opts)); ok {
			log = e.appendLog(log, model.LogRecompute, summary, actor, now)
		}
	}

	return model.WorkflowState{
		Stage:            stage,
		LockedDecisions:  locks,
		Assumptions:      assumptions,
		Coordination:     coord,
		ItineraryAudit:   audit,
		Repeatability:    repeat,
		DecisionLog:      log,
		Integrations:     integrations,
		Operations:       ops,
		BookingReadiness: booking,
		UpdatedAt:        now,
	}
}

// ValidateLinks probes the links referenced by decision and replaces the
// link-health records on its workflow. Stages and readiness are not
// re-derived; callers follow up with a workflow_refresh derivation.
func (e *Engine) ValidateLinks(ctx context.Context, decision model.DecisionPackage) model.DecisionPackage {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "workflow.validate_links")
	defer span.End()

	targets := linkhealth.CollectTargets(decision)
	records := e.prober.Probe(ctx, targets)
	checkedAt := e.now().UTC()

	var state model.WorkflowState
	if decision.Workflow != nil {
		state = *decision.Workflow
	}
	state.Integrations.LinkHealth = model.LinkHealth{
		Records:       records,
		LastCheckedAt: &checkedAt,
	}

	span.SetAttributes(attribute.Int("tripflow.links", len(records)))
	e.logger.Debug("links validated",
		zap.Int("targets", len(targets)),
		zap.Int("records", len(records)),
	)

	out := decision
	out.Workflow = &state
	return out
}

func triggerOf(opts DeriveOptions) string {
	if opts.Trigger == "" {
		return model.TriggerWorkflowRefresh
	}
	return opts.Trigger
}

// TriggerForMode maps a recompute mode onto its run trigger.
func TriggerForMode(mode string) string {
	switch mode {
	case model.RecomputeRefreshed:
		return model.TriggerRecomputeRefreshedLive
	case model.RecomputeSameSnapshot:
		return model.TriggerRecomputeSameSnapshot
	default:
		return model.TriggerWorkflowRefresh
	}
}
