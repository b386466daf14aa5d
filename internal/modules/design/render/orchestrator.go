package render

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/roomviz-backend/internal/data/repos"
	"github.com/yungbote/roomviz-backend/internal/modules/design/editplan"
	"github.com/yungbote/roomviz-backend/internal/modules/design/geometry"
	"github.com/yungbote/roomviz-backend/internal/modules/design/marker"
	"github.com/yungbote/roomviz-backend/internal/modules/design/pending"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

var tracer = otel.Tracer("github.com/yungbote/roomviz-backend/render")

type Config struct {
	// Timeout is the ceiling for the external edit call.
	Timeout         time.Duration
	Tick            time.Duration
	StepEvery       time.Duration
	BaseExpected    time.Duration
	PerEditExpected time.Duration
	PersistTimeout  time.Duration
	MinArea         float64
	Temperature     float64
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.Tick <= 0 {
		c.Tick = 500 * time.Millisecond
	}
	if c.StepEvery <= 0 {
		c.StepEvery = 4 * time.Second
	}
	if c.BaseExpected <= 0 {
		c.BaseExpected = 15 * time.Second
	}
	if c.PerEditExpected <= 0 {
		c.PerEditExpected = 10 * time.Second
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 30 * time.Second
	}
	if c.MinArea <= 0 {
		c.MinArea = geometry.MinArea
	}
	if c.Temperature <= 0 {
		c.Temperature = editplan.DefaultTemperature
	}
	return c
}

type Deps struct {
	DB         *gorm.DB
	Projects   repos.ProjectRepo
	Versions   repos.ImageVersionRepo
	Regions    repos.RegionRepo
	Pending    *pending.Store
	Markers    *marker.Renderer
	Images     ImageSource
	Store      ObjectStore
	Editor     Editor
	Gate       Gate
	Bookkeeper Bookkeeper
	Notifier   Notifier
	Floors     FloorCatalog
	Metrics    Metrics
}

type Orchestrator struct {
	log  *logger.Logger
	cfg  Config
	deps Deps

	mu   sync.Mutex
	runs map[uuid.UUID]*run
}

func New(log *logger.Logger, cfg Config, deps Deps) *Orchestrator {
	if deps.Gate == nil {
		deps.Gate = NewLocalGate()
	}
	return &Orchestrator{
		log:  log.With("service", "RenderOrchestrator"),
		cfg:  cfg.withDefaults(),
		deps: deps,
		runs: make(map[uuid.UUID]*run),
	}
}

type run struct {
	mu      sync.Mutex
	status  RunStatus
	owner   uuid.UUID
	lease   *pending.Lease
	release func()
	cancel  context.CancelFunc
	done    chan struct{}
	// userCanceled separates an explicit cancel from the caller's context ending.
	userCanceled bool
}

func (r *run) snapshot() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *run) transition(fn func(st *RunStatus)) RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.status)
	return r.status
}

// advance moves the estimate forward only while the call is pending.
func (r *run) advance(progress float64, step string) (RunStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.State != StateAwaiting {
		return r.status, false
	}
	if progress > r.status.Progress {
		r.status.Progress = progress
	}
	r.status.Step = step
	return r.status, true
}

func (r *run) canceledByUser() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userCanceled
}

// Render runs one submission to completion on the calling goroutine.
func (o *Orchestrator) Render(ctx context.Context, projectID, ownerUserID uuid.UUID) (RunStatus, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r, err := o.begin(projectID, ownerUserID, cancel)
	if err != nil {
		return RunStatus{}, err
	}
	return o.execute(runCtx, r)
}

// Start admits a submission and runs it in the background. The returned
// status is the initial preparing state.
func (o *Orchestrator) Start(ctx context.Context, projectID, ownerUserID uuid.UUID) (RunStatus, error) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r, err := o.begin(projectID, ownerUserID, cancel)
	if err != nil {
		cancel()
		return RunStatus{}, err
	}
	go func() {
		defer cancel()
		if _, err := o.execute(runCtx, r); err != nil && !errors.Is(err, ErrCanceled) {
			o.log.Debug("Background render ended with error", "project_id", projectID, "error", err)
		}
	}()
	return r.snapshot(), nil
}

// Cancel abandons the awaited result. Nothing is sent to the edit service.
func (o *Orchestrator) Cancel(projectID uuid.UUID) (RunStatus, error) {
	o.mu.Lock()
	r, ok := o.runs[projectID]
	o.mu.Unlock()
	if !ok {
		return RunStatus{}, ErrNotRunning
	}
	st := r.snapshot()
	if st.State.Terminal() {
		return st, ErrNotRunning
	}
	r.mu.Lock()
	r.userCanceled = true
	r.mu.Unlock()
	r.cancel()
	<-r.done
	return r.snapshot(), nil
}

// Status returns the latest run for the project, or idle.
func (o *Orchestrator) Status(projectID uuid.UUID) RunStatus {
	o.mu.Lock()
	r, ok := o.runs[projectID]
	o.mu.Unlock()
	if !ok {
		return RunStatus{ProjectID: projectID, State: StateIdle}
	}
	return r.snapshot()
}

func (o *Orchestrator) begin(projectID, ownerUserID uuid.UUID, cancel context.CancelFunc) (*run, error) {
	release, err := o.deps.Gate.Acquire(context.Background(), projectID)
	if err != nil {
		return nil, err
	}
	lease, err := o.deps.Pending.Lock(projectID)
	if err != nil {
		release()
		if errors.Is(err, pending.ErrAlreadyHeld) {
			return nil, ErrRenderInFlight
		}
		return nil, err
	}
	set := lease.Snapshot()
	if set.Empty() {
		lease.Release()
		release()
		return nil, newError(KindValidation, "nothing to render", editplan.ErrEmpty)
	}
	r := &run{
		owner:   ownerUserID,
		lease:   lease,
		release: release,
		cancel:  cancel,
		done:    make(chan struct{}),
		status: RunStatus{
			RunID:     uuid.New(),
			ProjectID: projectID,
			State:     StatePreparing,
			EditCount: set.Count(),
			StartedAt: time.Now(),
		},
	}
	o.mu.Lock()
	o.runs[projectID] = r
	o.mu.Unlock()
	return r, nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run) (st RunStatus, err error) {
	defer close(r.done)
	defer r.release()
	defer r.lease.Release()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			o.log.Error("Render panic",
				"project_id", r.snapshot().ProjectID,
				"panic", p,
				"stack", string(debug.Stack()),
			)
			st, err = o.fail(ctx, r, nil, newError(KindUnknown, "render panicked", errFromRecover(p)), start)
		}
	}()

	st0 := r.snapshot()
	ctx, span := tracer.Start(ctx, "render.execute")
	span.SetAttributes(
		attribute.String("project_id", st0.ProjectID.String()),
		attribute.Int("edit_count", st0.EditCount),
	)
	defer span.End()

	o.notify(ctx, st0)

	prep, err := o.prepare(ctx, r)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return o.fail(ctx, r, prep, err, start)
	}

	o.notify(ctx, r.transition(func(st *RunStatus) {
		st.State = StateAwaiting
		st.Step = Step(0, o.cfg.StepEvery)
	}))

	out, err := o.await(ctx, r, prep.request)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return o.fail(ctx, r, prep, err, start)
	}

	// The result is in hand; a cancel from here on must not half-persist it.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.PersistTimeout)
	defer cancel()
	version, err := o.reconcile(persistCtx, r, prep, out)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return o.fail(ctx, r, prep, err, start)
	}

	now := time.Now()
	st = r.transition(func(st *RunStatus) {
		st.State = StateSucceeded
		st.Progress = 100
		st.Step = ""
		st.VersionID = &version.ID
		st.FinishedAt = &now
	})
	o.notify(persistCtx, st)
	o.logRender(persistCtx, r, prep, LogEntry{VersionID: &version.ID, Outcome: "succeeded", Duration: time.Since(start)})
	o.log.Info("Render succeeded",
		"project_id", st.ProjectID,
		"version_id", version.ID,
		"edits", st.EditCount,
		"duration", time.Since(start).String(),
	)
	return st, nil
}

// await runs the edit call and the progress estimator side by side. The
// estimator stops as soon as the call resolves, fails, times out or is canceled.
func (o *Orchestrator) await(ctx context.Context, r *run, req editplan.Request) (Output, error) {
	callCtx, cancelCall := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancelCall()
	callCtx, span := tracer.Start(callCtx, "render.edit_call")
	span.SetAttributes(
		attribute.String("combination", string(req.Combination)),
		attribute.Int("images", len(req.Images)),
	)
	defer span.End()

	type result struct {
		out Output
		err error
	}
	calls := make(chan result, 1)
	// Buffered so an abandoned call can still finish and exit.
	go func() {
		defer func() {
			if p := recover(); p != nil {
				o.log.Error("Edit call panic", "panic", p)
				calls <- result{err: errFromRecover(p)}
			}
		}()
		out, err := o.deps.Editor.Edit(callCtx, req)
		calls <- result{out: out, err: err}
	}()

	estCtx, stopEstimator := context.WithCancel(callCtx)
	defer stopEstimator()

	var (
		g   errgroup.Group
		res result
	)
	g.Go(func() error {
		o.estimate(estCtx, r, req.EditCount)
		return nil
	})
	g.Go(func() error {
		defer stopEstimator()
		select {
		case res = <-calls:
		case <-callCtx.Done():
			res = result{err: callCtx.Err()}
		}
		return res.err
	})
	err := g.Wait()

	switch {
	case r.canceledByUser() || errors.Is(ctx.Err(), context.Canceled):
		return Output{}, ErrCanceled
	case err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return Output{}, newError(KindTimeout, "no result within "+o.cfg.Timeout.String(), err)
	case err != nil:
		span.RecordError(err)
		return Output{}, classify(err)
	case len(res.out.Bytes) == 0:
		return Output{}, newError(KindUnknown, "empty response", ErrNoImage)
	}
	return res.out, nil
}

func (o *Orchestrator) fail(ctx context.Context, r *run, prep *prepared, err error, start time.Time) (RunStatus, error) {
	now := time.Now()
	notifyCtx := context.WithoutCancel(ctx)
	if errors.Is(err, ErrCanceled) || r.canceledByUser() {
		st := r.transition(func(st *RunStatus) {
			st.State = StateIdle
			st.Canceled = true
			st.Progress = 0
			st.Step = ""
			st.FinishedAt = &now
		})
		o.notify(notifyCtx, st)
		o.logRender(notifyCtx, r, prep, LogEntry{Outcome: "canceled", Duration: time.Since(start)})
		o.log.Info("Render canceled", "project_id", st.ProjectID)
		return st, ErrCanceled
	}

	re := classify(err)
	st := r.transition(func(st *RunStatus) {
		st.State = StateFailed
		st.Step = ""
		st.ErrorKind = re.Kind
		st.Error = re.Error()
		st.Suggestion = Suggestion(re.Kind)
		st.FinishedAt = &now
	})
	o.notify(notifyCtx, st)
	o.logRender(notifyCtx, r, prep, LogEntry{Outcome: "failed", ErrorKind: re.Kind, Err: re, Duration: time.Since(start)})
	o.log.Warn("Render failed",
		"project_id", st.ProjectID,
		"kind", string(re.Kind),
		"error", re.Error(),
	)
	return st, re
}

func (o *Orchestrator) notify(ctx context.Context, st RunStatus) {
	if o.deps.Notifier == nil {
		return
	}
	defer o.recoverSideEffect(st.ProjectID, "notify")
	o.deps.Notifier.RenderStatus(context.WithoutCancel(ctx), st)
}

func (o *Orchestrator) logRender(ctx context.Context, r *run, prep *prepared, entry LogEntry) {
	st := r.snapshot()
	defer o.recoverSideEffect(st.ProjectID, "render_log")
	entry.ProjectID = st.ProjectID
	entry.OwnerUserID = r.owner
	entry.EditCount = st.EditCount
	if o.deps.Editor != nil {
		entry.Model = o.deps.Editor.Model()
	}
	if prep != nil {
		entry.Combination = string(prep.request.Combination)
	}
	if o.deps.Metrics != nil {
		o.deps.Metrics.ObserveRender(entry.Outcome, string(entry.ErrorKind), entry.Combination, entry.EditCount, entry.Duration)
	}
	if o.deps.Bookkeeper == nil {
		return
	}
	if err := o.deps.Bookkeeper.LogRender(ctx, entry); err != nil {
		o.log.Warn("Render log write failed (ignored)", "project_id", st.ProjectID, "kind", string(KindBookkeeping), "error", err)
	}
}

// recoverSideEffect must be deferred directly. It logs and swallows a panic
// from a best-effort step.
func (o *Orchestrator) recoverSideEffect(projectID uuid.UUID, step string) {
	if p := recover(); p != nil {
		o.log.Warn("Side effect panic (ignored)",
			"project_id", projectID,
			"step", step,
			"kind", string(KindBookkeeping),
			"panic", p,
		)
	}
}

func errFromRecover(p any) error {
	if err, ok := p.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", p)
}
