package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/challan-erp/challan-erp/internal/dc"
)

// HoldReminderJob sweeps challans parked on hold and mails the ops inbox a
// digest of the ones that have sat there too long.
type HoldReminderJob struct {
	service *dc.Service
	client  *Client
	inbox   string
	logger  *slog.Logger
}

// NewHoldReminderJob constructs a job handler. inbox receives the digest.
func NewHoldReminderJob(service *dc.Service, client *Client, inbox string, logger *slog.Logger) *HoldReminderJob {
	return &HoldReminderJob{service: service, client: client, inbox: inbox, logger: logger}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *HoldReminderJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload HoldReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.BatchSize <= 0 {
		payload.BatchSize = 50
	}
	if payload.OlderThan <= 0 {
		payload.OlderThan = 48 * time.Hour
	}
	if j.inbox == "" {
		return asynq.SkipRetry
	}

	ids, err := j.service.ListStuckChallans(ctx, dc.StatusHold, payload.BatchSize)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-payload.OlderThan)
	var lines []string
	for _, id := range ids {
		challan, err := j.service.GetChallan(ctx, id)
		if err != nil {
			j.logger.Warn("hold reminder fetch", slog.Int64("challan_id", id), slog.Any("error", err))
			continue
		}
		if challan.UpdatedAt.After(cutoff) {
			continue
		}
		lines = append(lines, fmt.Sprintf("- challan %d (ref %s) on hold since %s: %s",
			challan.ID, challan.Ref, challan.UpdatedAt.Format(time.RFC3339), challan.HoldReason))
	}
	if len(lines) == 0 {
		return nil
	}

	_, err = j.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      j.inbox,
		Subject: fmt.Sprintf("%d delivery challans on hold beyond %s", len(lines), payload.OlderThan),
		Body:    "The following challans need attention:\n\n" + strings.Join(lines, "\n") + "\n",
	})
	return err
}
