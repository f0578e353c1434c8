package notify

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/clubdesk/clubdesk/jobs"
)

// Enqueuer is implemented by *jobs.Client.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// QueueNotifier hands messages to the background worker. Send succeeds once
// the task is enqueued; delivery retries belong to the worker.
type QueueNotifier struct {
	client Enqueuer
}

func NewQueueNotifier(client Enqueuer) *QueueNotifier {
	return &QueueNotifier{client: client}
}

func (n *QueueNotifier) Send(ctx context.Context, to, subject, htmlBody string) error {
	_, err := n.client.EnqueueSendEmail(ctx, jobs.SendEmailPayload{To: to, Subject: subject, HTMLBody: htmlBody})
	if err != nil {
		return fmt.Errorf("%w: enqueue mail to %s: %w", ErrDelivery, to, err)
	}
	return nil
}
