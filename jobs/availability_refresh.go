package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/challan-erp/challan-erp/internal/dc"
	"github.com/challan-erp/challan-erp/internal/shared"
)

// systemActor performs scheduled maintenance with full privileges.
var systemActor = shared.Actor{ID: 0, Role: shared.RoleAdmin}

// AvailabilityRefreshJob re-derives stock availability for challans sitting
// at the warehouse stage, so a restock shows up without anyone clicking
// refresh.
type AvailabilityRefreshJob struct {
	service *dc.Service
	logger  *slog.Logger
}

// NewAvailabilityRefreshJob constructs a job handler.
func NewAvailabilityRefreshJob(service *dc.Service, logger *slog.Logger) *AvailabilityRefreshJob {
	return &AvailabilityRefreshJob{service: service, logger: logger}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *AvailabilityRefreshJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload AvailabilityRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.BatchSize <= 0 {
		payload.BatchSize = 50
	}

	var failed int
	for _, status := range []dc.DCStatus{dc.StatusWarehouseProcessing, dc.StatusHold} {
		ids, err := j.service.ListStuckChallans(ctx, status, payload.BatchSize)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, err := j.service.RefreshAvailability(ctx, id, systemActor); err != nil {
				// A concurrent transition losing the CAS race is fine; the
				// next sweep picks the challan up again.
				if errors.Is(err, dc.ErrStaleChallan) || errors.Is(err, dc.ErrInvalidTransition) {
					continue
				}
				failed++
				j.logger.Error("availability refresh", slog.Int64("challan_id", id), slog.Any("error", err))
			}
		}
	}
	if failed > 0 {
		return errors.New("jobs: availability refresh completed with errors")
	}
	return nil
}
