package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/filehaven/filehaven/internal/jobs"
	"github.com/filehaven/filehaven/internal/stats"
)

// TaskTypeStatsWarmup refreshes the cached usage snapshot ahead of demand.
const TaskTypeStatsWarmup = "stats:warmup"

// StatsWarmupPayload carries scheduling metadata.
type StatsWarmupPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewStatsWarmupTask constructs an Asynq task for the warmup cron.
func NewStatsWarmupTask(at time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(StatsWarmupPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeStatsWarmup, data, asynq.Queue(QueueDefault)), nil
}

// StatsWarmupJob rebuilds the Redis-cached usage snapshot.
type StatsWarmupJob struct {
	Stats   *stats.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStatsWarmupJob wires dependencies for the handler.
func NewStatsWarmupJob(service *stats.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatsWarmupJob {
	return &StatsWarmupJob{Stats: service, Logger: logger, Metrics: metrics}
}

// Handle processes stats-warmup tasks.
func (j *StatsWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Stats == nil {
		return errors.New("stats warmup: handler not configured")
	}
	var payload StatsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTypeStatsWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	// Bound the rebuild so a slow aggregate cannot wedge the queue.
	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	usage, err := j.Stats.Rebuild(warmCtx)
	if err != nil {
		resultErr = err
		j.logger().Error("stats warmup failed", "error", err)
		return resultErr
	}
	j.logger().Info("stats warmup done",
		"users", usage.Totals.Users, "files", usage.Totals.Files, "duration", time.Since(start))
	return resultErr
}

func (j *StatsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeStatsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskTypeStatsWarmup))
}

func (j *StatsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}
