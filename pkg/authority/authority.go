// Package authority implements the runtime authority: the process-wide
// front end that owns run metadata and brokers every append into the
// durable event log.
package authority

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openagents/runtime-authority/pkg/eventlog"
	"github.com/openagents/runtime-authority/pkg/observability"
	"github.com/openagents/runtime-authority/pkg/runtypes"
)

// AppendEventOutcome is the result of a successful AppendEvent call.
type AppendEventOutcome struct {
	Event            runtypes.RunEvent
	IdempotentReplay bool
}

// WorkerTokenVerifier optionally authenticates the worker_id presented at
// CreateRun. When configured, a run that names a worker_id can only be
// created if that worker's token verifies; a run created without a
// worker_id is not checked.
type WorkerTokenVerifier interface {
	Verify(workerID, token string) error
}

// SchemaValidator optionally validates an event's payload against a schema
// registered for its event_type before the append reaches the log.
type SchemaValidator interface {
	Validate(eventType string, payload interface{}) error
}

// Authority is the runtime authority contract: the only component external
// callers talk to for run lifecycle.
type Authority interface {
	CreateRun(ctx context.Context, req runtypes.StartRunRequest) (runtypes.Run, error)
	AppendEvent(ctx context.Context, runID, eventType string, payload interface{}, idempotencyKey string, expectedPreviousSeq *int64) (AppendEventOutcome, error)
	GetRun(ctx context.Context, runID string) (runtypes.Run, bool, error)
	ListRuns(ctx context.Context, filter func(runtypes.Run) bool) ([]runtypes.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status runtypes.RunStatus) (runtypes.Run, error)
}

// RuntimeAuthority is the default Authority implementation. The run
// registry is a plain map guarded by a RWMutex: reads proceed concurrently,
// writes are exclusive, and writes are held only long enough to touch the
// single affected run — never for the duration of a log append.
type RuntimeAuthority struct {
	mu   sync.RWMutex
	runs map[string]runtypes.Run

	log eventlog.Log

	tokenVerifier   WorkerTokenVerifier
	schemaValidator SchemaValidator

	logger *slog.Logger
	obs    *observability.Provider
}

// Option configures optional collaborators on a RuntimeAuthority.
type Option func(*RuntimeAuthority)

// WithWorkerTokenVerifier gates CreateRun on a valid signed worker token.
func WithWorkerTokenVerifier(v WorkerTokenVerifier) Option {
	return func(a *RuntimeAuthority) { a.tokenVerifier = v }
}

// WithSchemaValidator gates AppendEvent on payload schema validation.
func WithSchemaValidator(v SchemaValidator) Option {
	return func(a *RuntimeAuthority) { a.schemaValidator = v }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *RuntimeAuthority) { a.logger = l }
}

// WithObservability attaches an observability.Provider so AppendEvent
// emits a trace span and RED metrics. The other operations are not
// instrumented.
func WithObservability(p *observability.Provider) Option {
	return func(a *RuntimeAuthority) { a.obs = p }
}

// New creates a RuntimeAuthority backed by log.
func New(log eventlog.Log, opts ...Option) *RuntimeAuthority {
	a := &RuntimeAuthority{
		runs:   make(map[string]runtypes.Run),
		log:    log,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CreateRun implements Authority.
func (a *RuntimeAuthority) CreateRun(ctx context.Context, req runtypes.StartRunRequest) (runtypes.Run, error) {
	if a.tokenVerifier != nil && req.WorkerID != "" {
		token, _ := workerTokenFromContext(ctx)
		if err := a.tokenVerifier.Verify(req.WorkerID, token); err != nil {
			return runtypes.Run{}, &runtypes.WorkerTokenInvalidError{Detail: err.Error()}
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return runtypes.Run{}, &runtypes.EventLogError{Message: fmt.Sprintf("generate run id: %v", err)}
	}

	now := time.Now().UTC()
	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	run := runtypes.Run{
		ID:        id.String(),
		WorkerID:  req.WorkerID,
		Status:    runtypes.RunStatusCreated,
		Metadata:  metadata,
		Events:    []runtypes.RunEvent{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	a.mu.Lock()
	a.runs[run.ID] = run
	a.mu.Unlock()

	a.logger.InfoContext(ctx, "run created", "run_id", run.ID, "worker_id", run.WorkerID)
	return run, nil
}

// AppendEvent implements Authority.
func (a *RuntimeAuthority) AppendEvent(ctx context.Context, runID, eventType string, payload interface{}, idempotencyKey string, expectedPreviousSeq *int64) (outcome AppendEventOutcome, err error) {
	if a.obs != nil {
		var done func(error)
		ctx, done = a.obs.TrackOperation(ctx, "append_event",
			attribute.String("run_id", runID), attribute.String("event_type", eventType))
		defer func() { done(err) }()
	}

	if _, ok := a.getRunLocked(runID); !ok {
		return AppendEventOutcome{}, &runtypes.RunNotFoundError{RunID: runID}
	}

	if a.schemaValidator != nil {
		if err := a.schemaValidator.Validate(eventType, payload); err != nil {
			return AppendEventOutcome{}, &runtypes.SchemaValidationError{EventType: eventType, Detail: err.Error()}
		}
	}

	result, err := a.log.Append(ctx, eventlog.AppendRequest{
		RunID:               runID,
		EventType:           eventType,
		Payload:             payload,
		IdempotencyKey:      idempotencyKey,
		ExpectedPreviousSeq: expectedPreviousSeq,
	})
	if err != nil {
		return AppendEventOutcome{}, mapLogError(err)
	}

	events, err := a.log.EventsForRun(ctx, runID)
	if err != nil {
		return AppendEventOutcome{}, mapLogError(err)
	}

	a.mu.Lock()
	run, ok := a.runs[runID]
	if !ok {
		a.mu.Unlock()
		return AppendEventOutcome{}, &runtypes.RunNotFoundError{RunID: runID}
	}
	run.Events = events
	run.UpdatedAt = time.Now().UTC()
	a.runs[runID] = run
	a.mu.Unlock()

	return AppendEventOutcome{Event: result.Event, IdempotentReplay: result.IdempotentReplay}, nil
}

// GetRun implements Authority.
func (a *RuntimeAuthority) GetRun(ctx context.Context, runID string) (runtypes.Run, bool, error) {
	run, ok := a.getRunLocked(runID)
	return run, ok, nil
}

// ListRuns implements Authority. filter may be nil to return every run.
func (a *RuntimeAuthority) ListRuns(ctx context.Context, filter func(runtypes.Run) bool) ([]runtypes.Run, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]runtypes.Run, 0, len(a.runs))
	for _, run := range a.runs {
		if filter == nil || filter(run) {
			out = append(out, run)
		}
	}
	return out, nil
}

// UpdateRunStatus implements Authority. It does not enforce any legality of
// the transition; the caller is trusted to know what it's doing.
func (a *RuntimeAuthority) UpdateRunStatus(ctx context.Context, runID string, status runtypes.RunStatus) (runtypes.Run, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	run, ok := a.runs[runID]
	if !ok {
		return runtypes.Run{}, &runtypes.RunNotFoundError{RunID: runID}
	}
	run.Status = status
	run.UpdatedAt = time.Now().UTC()
	a.runs[runID] = run
	return run, nil
}

func (a *RuntimeAuthority) getRunLocked(runID string) (runtypes.Run, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	run, ok := a.runs[runID]
	return run, ok
}

func mapLogError(err error) error {
	switch err.(type) {
	case *runtypes.SequenceConflictError:
		return err
	default:
		return &runtypes.EventLogError{Message: err.Error()}
	}
}

type workerTokenContextKey struct{}

// WithWorkerToken attaches the caller-presented worker token to ctx for
// CreateRun to pick up when a WorkerTokenVerifier is configured.
func WithWorkerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, workerTokenContextKey{}, token)
}

func workerTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(workerTokenContextKey{}).(string)
	return token, ok
}
