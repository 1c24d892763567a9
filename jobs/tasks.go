package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskAvailabilityRefresh re-derives stock availability for challans
	// sitting at the warehouse stage.
	TaskAvailabilityRefresh = "dc:availability_refresh"
	// TaskHoldReminder nudges the ops inbox about challans parked on hold.
	TaskHoldReminder = "dc:hold_reminder"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.Queue(QueueDefault)), nil
}

// AvailabilityRefreshPayload bounds one refresh sweep.
type AvailabilityRefreshPayload struct {
	BatchSize int `json:"batch_size"`
}

// NewAvailabilityRefreshTask constructs the periodic refresh task.
func NewAvailabilityRefreshTask(batchSize int) (*asynq.Task, error) {
	body, err := json.Marshal(AvailabilityRefreshPayload{BatchSize: batchSize})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAvailabilityRefresh, body, asynq.Queue(QueueDefault)), nil
}

// HoldReminderPayload configures the hold sweep.
type HoldReminderPayload struct {
	OlderThan time.Duration `json:"older_than"`
	BatchSize int           `json:"batch_size"`
}

// NewHoldReminderTask constructs the periodic hold reminder task.
func NewHoldReminderTask(olderThan time.Duration, batchSize int) (*asynq.Task, error) {
	body, err := json.Marshal(HoldReminderPayload{OlderThan: olderThan, BatchSize: batchSize})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHoldReminder, body, asynq.Queue(QueueDefault)), nil
}
