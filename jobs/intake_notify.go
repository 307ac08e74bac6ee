package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// TaskTypeIntakeNotify notifies administrators of a new intake
	// submission.
	TaskTypeIntakeNotify = "intake:notify"
)

// IntakeNotifyPayload identifies the stored submission to announce.
type IntakeNotifyPayload struct {
	SubmissionID string `json:"submission_id"`
	FormTitle    string `json:"form_title"`
}

// NewIntakeNotifyTask builds a new notification task.
func NewIntakeNotifyTask(payload IntakeNotifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeIntakeNotify, body, asynq.Queue(QueueDefault)), nil
}

// IntakeNotifyJob fans a notification out to the configured admin
// address via the send-email task.
type IntakeNotifyJob struct {
	logger     *slog.Logger
	adminEmail string
	mailer     interface {
		EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) error
	}
}

// NewIntakeNotifyJob wires the notification job. mailer may be nil in
// which case the job only logs.
func NewIntakeNotifyJob(logger *slog.Logger, adminEmail string, mailer *Client) *IntakeNotifyJob {
	job := &IntakeNotifyJob{logger: logger, adminEmail: adminEmail}
	if mailer != nil {
		job.mailer = mailer
	}
	return job
}

// Handle processes TaskTypeIntakeNotify tasks.
func (j *IntakeNotifyJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IntakeNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	j.logger.Info("intake submission notification",
		slog.String("submission_id", payload.SubmissionID),
		slog.String("form_title", payload.FormTitle))

	if j.mailer == nil || j.adminEmail == "" {
		return nil
	}
	return j.mailer.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      j.adminEmail,
		Subject: "New intake submission: " + payload.FormTitle,
		Body:    "Submission " + payload.SubmissionID + " is ready for review.",
	})
}
