package service

import (
	"context"
	"sync"
	"time"

	"github.com/aidar/scim-provisioning/internal/audit"
	"github.com/aidar/scim-provisioning/internal/lock"
	"github.com/aidar/scim-provisioning/internal/repository/memory"
)

const testOrg = "org-1"

// captureSink записывает события аудита для проверок в тестах
type captureSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *captureSink) Record(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) byName(name string) []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []audit.Event
	for _, e := range s.events {
		if e.Event == name {
			matched = append(matched, e)
		}
	}
	return matched
}

// captureScheduler записывает запланированные удаления команд
type captureScheduler struct {
	mu      sync.Mutex
	teamIDs []string
}

func (s *captureScheduler) ScheduleTeamDeletion(_ context.Context, _, teamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teamIDs = append(s.teamIDs, teamID)
	return nil
}

// env собирает сервисы поверх in-memory хранилища
type env struct {
	store     *memory.Store
	sink      *captureSink
	scheduler *captureScheduler
	members   *MemberService
	teams     *TeamService
}

func newEnv(cfg MemberConfig) *env {
	store := memory.NewStore()
	sink := &captureSink{}
	scheduler := &captureScheduler{}
	locker := lock.NewMemoryLocker(lock.RetryPolicy{MaxAttempts: 10, Delay: time.Millisecond})

	return &env{
		store:     store,
		sink:      sink,
		scheduler: scheduler,
		members:   NewMemberService(store.Memberships(), store.Teams(), locker, sink, cfg),
		teams:     NewTeamService(store.Teams(), store.Memberships(), locker, sink, scheduler, time.Second),
	}
}
