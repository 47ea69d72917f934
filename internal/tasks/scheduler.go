package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Scheduler ставит задачи отложенной обработки в очередь
type Scheduler struct {
	client *asynq.Client
	delay  time.Duration // Грейс-период перед физическим удалением
}

// NewScheduler создает новый Scheduler
func NewScheduler(client *asynq.Client, delay time.Duration) *Scheduler {
	return &Scheduler{client: client, delay: delay}
}

// ScheduleTeamDeletion ставит в очередь физическое удаление команды
func (s *Scheduler) ScheduleTeamDeletion(ctx context.Context, orgID, teamID string) error {
	task, err := NewTeamHardDeleteTask(orgID, teamID)
	if err != nil {
		return err
	}

	_, err = s.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.ProcessIn(s.delay),
		asynq.MaxRetry(5),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue team deletion: %w", err)
	}

	return nil
}
