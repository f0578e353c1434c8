package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeResetSweep clears password reset tokens past their expiry.
	TaskTypeResetSweep = "accounts:reset-sweep"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
}

func (p SendEmailPayload) validate() error {
	if p.To == "" || p.Subject == "" {
		return errors.New("jobs: mail payload needs recipient and subject")
	}
	return nil
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	if err := payload.validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

// Mailer is satisfied by notify.SMTPMailer and any other synchronous driver.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// MailHandler processes TaskTypeSendEmail tasks.
type MailHandler struct {
	Mailer Mailer
	Logger *slog.Logger
}

// Handle delivers the message. Undecodable payloads are dropped without retry.
func (h MailHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("jobs: decode mail payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := payload.validate(); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := h.Mailer.Send(ctx, payload.To, payload.Subject, payload.HTMLBody); err != nil {
		h.logger().Warn("mail send failed", slog.String("to", payload.To), slog.Any("error", err))
		return err
	}
	h.logger().Info("mail sent", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	return nil
}

func (h MailHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// ResetSweeper removes reset tokens that expired before now.
type ResetSweeper interface {
	SweepExpiredResets(ctx context.Context, now time.Time) (int64, error)
}

// NewResetSweepTask builds the periodic sweep task.
func NewResetSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeResetSweep, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}

// SweepHandler processes TaskTypeResetSweep tasks.
type SweepHandler struct {
	Sweeper ResetSweeper
	Logger  *slog.Logger
	Now     func() time.Time
}

func (h SweepHandler) Handle(ctx context.Context, _ *asynq.Task) error {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	n, err := h.Sweeper.SweepExpiredResets(ctx, now().UTC())
	if err != nil {
		return fmt.Errorf("jobs: sweep expired resets: %w", err)
	}
	if h.Logger != nil && n > 0 {
		h.Logger.Info("expired reset tokens cleared", slog.Int64("count", n))
	}
	return nil
}
