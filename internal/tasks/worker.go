package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/aidar/scim-provisioning/internal/domain"
	"github.com/aidar/scim-provisioning/internal/repository"
)

// Worker обрабатывает задачи отложенного удаления команд
type Worker struct {
	teamRepo repository.TeamRepository
	logger   *slog.Logger
}

// NewWorker создает новый Worker
func NewWorker(teamRepo repository.TeamRepository, logger *slog.Logger) *Worker {
	return &Worker{teamRepo: teamRepo, logger: logger}
}

// Register регистрирует обработчики задач в мультиплексоре asynq
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeTeamHardDelete, w.HandleTeamHardDelete)
}

// HandleTeamHardDelete физически удаляет команду, помеченную на удаление.
// Команда сначала переводится в DELETION_IN_PROGRESS; если она уже не в
// PENDING_DELETION, задача считается выполненной (повтор или отмена).
func (w *Worker) HandleTeamHardDelete(ctx context.Context, task *asynq.Task) error {
	var payload TeamHardDeletePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	swapped, err := w.teamRepo.UpdateStatusCAS(ctx, payload.OrgID, payload.TeamID,
		domain.TeamPendingDeletion, domain.TeamDeletionInProgress)
	if err != nil {
		return fmt.Errorf("failed to mark team deletion in progress: %w", err)
	}
	if !swapped {
		w.logger.InfoContext(ctx, "team is not pending deletion, skipping",
			"org_id", payload.OrgID, "team_id", payload.TeamID)
		return nil
	}

	if err := w.teamRepo.HardDelete(ctx, payload.TeamID); err != nil {
		return fmt.Errorf("failed to hard delete team: %w", err)
	}

	w.logger.InfoContext(ctx, "team hard deleted",
		"org_id", payload.OrgID, "team_id", payload.TeamID)
	return nil
}
