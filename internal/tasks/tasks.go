// Package tasks содержит задачи отложенной обработки поверх asynq.
// Сейчас единственная задача — физическое удаление команды, помеченной
// на удаление через SCIM DELETE.
package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TypeTeamHardDelete тип задачи физического удаления команды
const TypeTeamHardDelete = "team:hard_delete"

// QueueDefault очередь по умолчанию
const QueueDefault = "default"

// TeamHardDeletePayload полезная нагрузка задачи удаления команды
type TeamHardDeletePayload struct {
	OrgID  string `json:"org_id"`
	TeamID string `json:"team_id"`
}

// NewTeamHardDeleteTask собирает задачу физического удаления команды
func NewTeamHardDeleteTask(orgID, teamID string) (*asynq.Task, error) {
	payload, err := json.Marshal(TeamHardDeletePayload{OrgID: orgID, TeamID: teamID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeTeamHardDelete, payload), nil
}
