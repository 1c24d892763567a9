package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/hibiken/asynq"
)

// Mailer delivers a single message. The SMTP implementation below is the
// only one in production; tests substitute their own.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends mail through a plain SMTP relay (Mailpit locally).
type SMTPMailer struct {
	Addr string
	From string
}

// Send delivers one message without authentication. The relay is expected to
// be a trusted internal host.
func (m SMTPMailer) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.From, to, subject, body)
	return smtp.SendMail(m.Addr, nil, m.From, []string{to}, []byte(msg))
}

// MailJob processes TaskTypeSendEmail tasks.
type MailJob struct {
	mailer Mailer
	logger *slog.Logger
}

// NewMailJob constructs a mail job handler.
func NewMailJob(mailer Mailer, logger *slog.Logger) *MailJob {
	return &MailJob{mailer: mailer, logger: logger}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *MailJob) Handle(_ context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.To == "" {
		return asynq.SkipRetry
	}
	if err := j.mailer.Send(payload.To, payload.Subject, payload.Body); err != nil {
		j.logger.Error("send email", slog.String("to", payload.To), slog.Any("error", err))
		return err
	}
	return nil
}
