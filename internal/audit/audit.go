// Package audit описывает сток событий аудита. Ядро только формирует
// события; доставка (лог, очередь, внешняя система) — забота реализации.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Названия событий аудита
const (
	EventMemberInvite     = "member.invite"
	EventMemberAdd        = "member.add"
	EventMemberActivate   = "member.activate"
	EventMemberDeactivate = "member.deactivate"
	EventMemberRemove     = "member.remove"
	EventTeamCreate       = "team.create"
	EventTeamEdit         = "team.edit"
	EventTeamRemove       = "team.remove"
)

// Event представляет одно событие изменения состояния
type Event struct {
	OrgID    string         `json:"org_id"`
	TargetID string         `json:"target_id"`
	Event    string         `json:"event"`
	Data     map[string]any `json:"data,omitempty"`
	At       time.Time      `json:"at"`
}

// Sink принимает события аудита
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// LogSink пишет события аудита в структурированный лог
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink создает новый LogSink
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Record пишет событие в лог
func (s *LogSink) Record(ctx context.Context, event Event) error {
	s.logger.InfoContext(ctx, "audit event",
		"event", event.Event,
		"org_id", event.OrgID,
		"target_id", event.TargetID,
		"data", event.Data,
		"at", event.At,
	)
	return nil
}
