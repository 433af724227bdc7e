package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/filehaven/filehaven/internal/instances"
	jobmetrics "github.com/filehaven/filehaven/internal/jobs"
)

// TaskTypeInstanceImport runs a queued CSV bulk import of instances.
const TaskTypeInstanceImport = "instance:import"

// InstanceImportPayload carries the raw CSV data.
type InstanceImportPayload struct {
	CSV []byte `json:"csv"`
}

// NewInstanceImportTask constructs an Asynq task.
func NewInstanceImportTask(payload InstanceImportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeInstanceImport, data, asynq.Queue(QueueDefault)), nil
}

// InstanceImportJob feeds queued CSV payloads through the instances service.
type InstanceImportJob struct {
	Instances *instances.Service
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewInstanceImportJob wires dependencies for the handler.
func NewInstanceImportJob(service *instances.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *InstanceImportJob {
	return &InstanceImportJob{Instances: service, Logger: logger, Metrics: metrics}
}

// Handle processes instance-import tasks.
func (j *InstanceImportJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Instances == nil {
		return errors.New("instance import: handler not configured")
	}
	var payload InstanceImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if len(payload.CSV) == 0 {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTypeInstanceImport)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	result, err := j.Instances.ImportCSV(ctx, payload.CSV)
	if err != nil {
		resultErr = err
		j.logger().Error("instance import failed", "error", err)
		return resultErr
	}
	j.logger().Info("instance import done",
		"instances", result.Instances, "sections", result.Sections, "skipped", result.Skipped)
	return resultErr
}

func (j *InstanceImportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeInstanceImport))
	}
	return slog.Default().With(slog.String("job", TaskTypeInstanceImport))
}

func (j *InstanceImportJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}
