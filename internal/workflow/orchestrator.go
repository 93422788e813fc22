package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remixer/internal/domain"
)

// Orchestrator admits jobs through the Tracker and hands them to the Runner.
type Orchestrator struct {
	runner  *Runner
	tracker *Tracker
	logger  *zap.Logger
}

func NewOrchestrator(runner *Runner, tracker *Tracker, logger *zap.Logger) (*Orchestrator, error) {
	if runner == nil || tracker == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	return &Orchestrator{runner: runner, tracker: tracker, logger: logger.Named("orchestrator")}, nil
}

// Process runs job once the browser is free. The error is non-nil only when
// the job was never admitted; run failures are reported in the result.
func (o *Orchestrator) Process(ctx context.Context, job Job) (domain.GenerationResult, error) {
	requester := job.Request.RequesterID
	release, err := o.tracker.Begin(ctx, requester, job.Request.ID)
	if err != nil {
		o.logger.Warn("Job not admitted.", zap.String("requester", requester), zap.Error(err))
		return domain.GenerationResult{}, err
	}
	defer release()

	return o.runner.Run(ctx, job), nil
}

// Cancel forgets the requester's active job. See Tracker.Cancel.
func (o *Orchestrator) Cancel(requesterID string) bool {
	ok := o.tracker.Cancel(requesterID)
	if ok {
		o.logger.Info("Request cancelled by requester.", zap.String("requester", requesterID))
	}
	return ok
}

func (o *Orchestrator) Tracker() *Tracker { return o.tracker }
