package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remixer/internal/domain"
	"github.com/xkilldash9x/remixer/internal/observability"
	"github.com/xkilldash9x/remixer/internal/poll"
)

// releaseTimeout bounds browser shutdown after a run, even a cancelled one.
const releaseTimeout = 30 * time.Second

// Runner executes one Job against a Backend and always produces a result.
type Runner struct {
	backend  Backend
	reporter Reporter
	metrics  *observability.Metrics
	clock    poll.Clock
	logger   *zap.Logger

	continueOnImageError bool
}

// RunnerOption customises a Runner.
type RunnerOption func(*Runner)

func WithRunnerClock(c poll.Clock) RunnerOption { return func(r *Runner) { r.clock = c } }

func WithRunnerMetrics(m *observability.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithContinueOnImageError makes a failed image skip to the next one instead
// of ending the run. The run fails only if no image was produced.
func WithContinueOnImageError(on bool) RunnerOption {
	return func(r *Runner) { r.continueOnImageError = on }
}

// NewRunner wires a runner. A nil reporter discards events.
func NewRunner(backend Backend, reporter Reporter, logger *zap.Logger, opts ...RunnerOption) (*Runner, error) {
	if backend == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize runner with nil dependencies")
	}
	if reporter == nil {
		reporter = NopReporter{}
	}
	r := &Runner{
		backend:  backend,
		reporter: reporter,
		clock:    poll.RealClock(),
		logger:   logger.Named("runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// execution is the state of one run.
type execution struct {
	r         *Runner
	ctx       context.Context
	requestID string
	phase     domain.Phase
	entered   time.Time
	logger    *zap.Logger
}

// transition moves to next, reporting the change. An illegal transition is a
// programming error: it is logged loudly and the run carries on.
func (x *execution) transition(next domain.Phase, detail string) {
	if !x.phase.CanTransition(next) {
		x.logger.DPanic("Illegal phase transition.",
			zap.Stringer("from", x.phase), zap.Stringer("to", next))
	}
	now := x.r.clock.Now()
	x.r.metrics.ObservePhase(x.phase.String(), now.Sub(x.entered))
	prev := x.phase
	x.phase, x.entered = next, now

	x.logger.Debug("Phase changed.", zap.Stringer("from", prev), zap.Stringer("to", next), zap.String("detail", detail))
	x.r.reporter.Report(x.ctx, domain.PhaseChanged{
		RequestID: x.requestID,
		From:      prev,
		To:        next,
		Detail:    detail,
		Time:      now,
	})
}

// Run executes job. It never returns an error: every failure ends up in the
// returned result, and the backend is always released.
func (r *Runner) Run(ctx context.Context, job Job) (result domain.GenerationResult) {
	start := r.clock.Now()
	requestID := job.Request.ID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := r.logger.With(zap.String("request_id", requestID), zap.String("strategy", job.Strategy))
	x := &execution{r: r, ctx: ctx, requestID: requestID, phase: domain.PhasePending, entered: start, logger: logger}

	total := job.Request.Count.Int()
	result = domain.GenerationResult{RequestID: requestID, Requested: total}

	r.metrics.IncActive()
	defer r.metrics.DecActive()

	defer func() {
		result.Duration = r.clock.Now().Sub(start)
		outcome := "failure"
		switch {
		case result.Partial():
			outcome = "partial"
		case result.Success:
			outcome = "success"
		}
		r.metrics.ObserveWorkflow(job.Strategy, outcome)
		logger.Info("Workflow finished.",
			zap.String("outcome", outcome),
			zap.Int("images", len(result.Images)),
			zap.Duration("duration", result.Duration))
		r.reporter.Report(ctx, domain.Completed{Result: result, Time: r.clock.Now()})
	}()

	fail := func(err error) domain.GenerationResult {
		result.Success = false
		result.Err = err
		result.ErrorMessage = failureMessage(err)
		logger.Error("Workflow failed.", zap.Stringer("phase", x.phase), zap.Error(err))
		x.transition(domain.PhaseFailed, result.ErrorMessage)
		return result
	}

	strategy, err := StrategyFor(job.Strategy)
	if err != nil {
		return fail(err)
	}
	if err := strategy.Validate(job); err != nil {
		return fail(err)
	}
	if total < 1 {
		return fail(domain.ValidationError("image count must be at least 1"))
	}

	logger.Info("Workflow started.", zap.String("backend", r.backend.Name()), zap.Int("count", total))

	if err := r.backend.Acquire(ctx); err != nil {
		return fail(err)
	}
	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := r.backend.Release(relCtx); err != nil {
			logger.Warn("Browser release failed.", zap.Error(err))
		}
	}()
	x.transition(domain.PhaseBrowserReady, r.backend.Name())

	if err := r.backend.NavigateToApp(ctx); err != nil {
		return fail(err)
	}
	if ok, msg := r.backend.CheckSession(ctx); !ok {
		return fail(domain.NavigationError(msg+"; sign in with `remixer login`", nil))
	}
	x.transition(domain.PhaseNavigated, "")

	prompt, err := strategy.Prepare(ctx, r.backend, job, x.transition)
	if err != nil {
		return fail(err)
	}
	result.Prompt = prompt.String()
	x.transition(domain.PhasePromptReceived, prompt.Preview(80))

	var imageErr error
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return r.stopOrFail(x, &result, err, fail)
		}
		r.backend.NewConversation(ctx)

		art, err := r.backend.Generate(ctx, prompt.String(), x.transition)
		if err != nil {
			if !r.continueOnImageError || ctx.Err() != nil {
				return r.stopOrFail(x, &result, err, fail)
			}
			imageErr = err
			r.metrics.IncImageFailures()
			logger.Warn("Image failed, moving on.", zap.Int("image", i), zap.Int("total", total), zap.Error(err))
			continue
		}
		result.Images = append(result.Images, art)
		r.metrics.IncImages()
		x.transition(domain.PhaseImageReady, art.Filename())
		r.reporter.Report(ctx, domain.ImageProgress{RequestID: requestID, Current: i, Total: total, Time: r.clock.Now()})
	}
	if imageErr != nil {
		return r.stopOrFail(x, &result, imageErr, fail)
	}

	result.Success = true
	x.transition(domain.PhaseCompleted, "")
	return result
}

// stopOrFail ends the run after a per-image error: with at least one image in
// hand the run is a partial success, otherwise it fails.
func (r *Runner) stopOrFail(x *execution, result *domain.GenerationResult, err error, fail func(error) domain.GenerationResult) domain.GenerationResult {
	if len(result.Images) == 0 {
		return fail(err)
	}
	result.Success = true
	result.Err = err
	result.ErrorMessage = failureMessage(err)
	x.logger.Warn("Run ended with a failed image.",
		zap.Int("produced", len(result.Images)), zap.Error(err))
	x.transition(domain.PhaseCompleted, result.ErrorMessage)
	return *result
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	default:
		return err.Error()
	}
}
