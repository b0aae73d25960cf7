package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/facelessdevhack/plati-rail-admin/internal/jobs"
	"github.com/facelessdevhack/plati-rail-admin/internal/ledger"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// RecalcRunner performs one recalculate-all run; *ledger.Recalculator satisfies it.
type RecalcRunner interface {
	Run(ctx context.Context, req ledger.RecalcRequest) (ledger.RecalcSummary, error)
}

// RecalcAllJob handles TaskRecalcAll.
type RecalcAllJob struct {
	Runner  RecalcRunner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewRecalcAllJob wires dependencies for the recalculate-all handler.
func NewRecalcAllJob(runner RecalcRunner, logger *slog.Logger, metrics *jobmetrics.Metrics) *RecalcAllJob {
	return &RecalcAllJob{Runner: runner, Logger: logger, Metrics: metrics}
}

// Handle processes recalculate-all tasks.
func (j *RecalcAllJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Runner == nil {
		return errors.New("recalc all: handler not configured")
	}
	var req ledger.RecalcRequest
	if err := json.Unmarshal(t.Payload(), &req); err != nil {
		return errors.Join(err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskRecalcAll)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int64("actor_id", req.ActorID))
	logger.Info("starting recalculate all")

	summary, err := j.Runner.Run(ctx, req)
	j.metrics().AddFailedDealers(len(summary.Failed))
	if errors.Is(err, ledger.ErrRecalcRunning) {
		logger.Warn("recalculate all already running, dropping task")
		return nil
	}
	if err != nil {
		logger.Error("recalculate all", slog.Any("error", err))
		return err
	}
	logger.Info("completed recalculate all",
		slog.Int("successful", len(summary.Successful)),
		slog.Int("failed", len(summary.Failed)))
	return nil
}

func (j *RecalcAllJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *RecalcAllJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
