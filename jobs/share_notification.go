package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/filehaven/filehaven/internal/grants"
	jobmetrics "github.com/filehaven/filehaven/internal/jobs"
	"github.com/filehaven/filehaven/internal/shared"
	"github.com/filehaven/filehaven/internal/users"
)

// TaskTypeShareNotification tells a user a resource was shared with them.
const TaskTypeShareNotification = "share:notify"

// ShareNotificationPayload identifies the grant to announce.
type ShareNotificationPayload struct {
	GrantID      int64  `json:"grant_id"`
	UserID       int64  `json:"user_id"`
	ResourceKind string `json:"resource_kind"`
	ResourceID   int64  `json:"resource_id"`
	Action       string `json:"action"`
}

// NewShareNotificationTask constructs an Asynq task.
func NewShareNotificationTask(payload ShareNotificationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeShareNotification, data, asynq.Queue(QueueDefault)), nil
}

// MailEnqueuer queues an outbound email.
type MailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// ShareNotificationJob resolves the recipient and hands a share email to the
// mail queue.
type ShareNotificationJob struct {
	Users   users.Repository
	Mail    MailEnqueuer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewShareNotificationJob wires dependencies for the handler.
func NewShareNotificationJob(userRepo users.Repository, mail MailEnqueuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ShareNotificationJob {
	return &ShareNotificationJob{Users: userRepo, Mail: mail, Logger: logger, Metrics: metrics}
}

// Handle processes share-notification tasks.
func (j *ShareNotificationJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Users == nil {
		return errors.New("share notification: handler not configured")
	}
	var payload ShareNotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTypeShareNotification)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	recipient, err := j.Users.Get(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// The user was deleted between grant and delivery; nothing to do.
			j.logger().Info("share notification recipient gone", "user_id", payload.UserID)
			return nil
		}
		resultErr = err
		return resultErr
	}

	subject := fmt.Sprintf("A %s was shared with you", payload.ResourceKind)
	body := fmt.Sprintf("You were given %s access to %s #%d.",
		payload.Action, payload.ResourceKind, payload.ResourceID)

	if j.Mail != nil {
		if _, err := j.Mail.EnqueueSendEmail(ctx, SendEmailPayload{To: recipient.Email, Subject: subject, Body: body}); err != nil {
			resultErr = err
			return resultErr
		}
	}
	j.logger().Info("share notification queued", "user_id", recipient.ID, "grant_id", payload.GrantID)
	return resultErr
}

func (j *ShareNotificationJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeShareNotification))
	}
	return slog.Default().With(slog.String("job", TaskTypeShareNotification))
}

func (j *ShareNotificationJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

// GrantNotifier adapts the queue client to the grants service.
type GrantNotifier struct {
	Client *Client
}

// NotifyShareCreated enqueues a share-notification task for a new grant.
func (n GrantNotifier) NotifyShareCreated(ctx context.Context, grant grants.Grant) error {
	if n.Client == nil {
		return errors.New("jobs: grant notifier has no client")
	}
	return n.Client.EnqueueShareNotification(ctx, ShareNotificationPayload{
		GrantID:      grant.ID,
		UserID:       grant.UserID,
		ResourceKind: string(grant.ResourceKind),
		ResourceID:   grant.ResourceID,
		Action:       string(grant.Action),
	})
}
