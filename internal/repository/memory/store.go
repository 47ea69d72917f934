// Package memory содержит потокобезопасную in-memory реализацию
// репозиториев. Используется в unit-тестах сервисов и обработчиков,
// семантика повторяет postgres-реализацию, включая ошибки уникальности.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aidar/scim-provisioning/internal/domain"
)

// Store хранит членства, команды и их связи под одним RWMutex
type Store struct {
	mu          sync.RWMutex
	memberships map[string]*domain.Membership
	teams       map[string]*domain.Team
	links       map[string]map[string]struct{} // membership id -> set of team ids
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{
		memberships: make(map[string]*domain.Membership),
		teams:       make(map[string]*domain.Team),
		links:       make(map[string]map[string]struct{}),
	}
}

// Memberships возвращает репозиторий членств поверх хранилища
func (s *Store) Memberships() *MembershipRepository {
	return &MembershipRepository{store: s}
}

// Teams возвращает репозиторий команд поверх хранилища
func (s *Store) Teams() *TeamRepository {
	return &TeamRepository{store: s}
}

// MembershipRepository реализует repository.MembershipRepository в памяти
type MembershipRepository struct {
	store *Store
}

// Create создает новую запись членства
func (r *MembershipRepository) Create(_ context.Context, m *domain.Membership) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.memberships {
		if existing.OrgID == m.OrgID && existing.Email == m.Email {
			return domain.ErrMemberExists
		}
	}

	clone := *m
	s.memberships[m.ID] = &clone
	return nil
}

// GetByID получает членство по ID в рамках организации
func (r *MembershipRepository) GetByID(_ context.Context, orgID, id string) (*domain.Membership, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.memberships[id]
	if !ok || m.OrgID != orgID {
		return nil, domain.ErrMemberNotFound
	}

	clone := *m
	return &clone, nil
}

// GetByEmail получает членство по email
func (r *MembershipRepository) GetByEmail(_ context.Context, orgID, email string) (*domain.Membership, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.memberships {
		if m.OrgID == orgID && m.Email == email {
			clone := *m
			return &clone, nil
		}
	}

	return nil, domain.ErrMemberNotFound
}

// List возвращает членства организации, исключая логически удаленные
func (r *MembershipRepository) List(_ context.Context, orgID, email string) ([]*domain.Membership, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var members []*domain.Membership
	for _, m := range s.memberships {
		if m.OrgID != orgID || m.State == domain.MemberStateRemoved {
			continue
		}
		if email != "" && m.Email != email {
			continue
		}
		clone := *m
		members = append(members, &clone)
	}

	sort.Slice(members, func(i, j int) bool { return members[i].Email < members[j].Email })
	return members, nil
}

// SetState обновляет состояние членства
func (r *MembershipRepository) SetState(_ context.Context, orgID, id string, state domain.MembershipState) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memberships[id]
	if !ok || m.OrgID != orgID {
		return domain.ErrMemberNotFound
	}

	m.State = state
	return nil
}

// DeleteSuperseded удаляет вытесняемые провайдером записи для email
func (r *MembershipRepository) DeleteSuperseded(_ context.Context, orgID, email string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, m := range s.memberships {
		if m.OrgID != orgID || m.Email != email {
			continue
		}
		if m.IsPendingRequest() || m.State == domain.MemberStateRemoved {
			delete(s.memberships, id)
			delete(s.links, id)
		}
	}

	return nil
}

// ReplaceTeamLinks атомарно заменяет весь набор связей членства с командами
func (r *MembershipRepository) ReplaceTeamLinks(_ context.Context, membershipID string, teamIDs []string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	linkSet := make(map[string]struct{}, len(teamIDs))
	for _, teamID := range teamIDs {
		// Повтор идентификатора нарушил бы составной первичный ключ
		if _, ok := linkSet[teamID]; ok {
			return fmt.Errorf("duplicate membership_teams key (%s, %s)", membershipID, teamID)
		}
		linkSet[teamID] = struct{}{}
	}
	s.links[membershipID] = linkSet

	return nil
}

// ListTeamIDs возвращает идентификаторы команд членства
func (r *MembershipRepository) ListTeamIDs(_ context.Context, membershipID string) ([]string, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var teamIDs []string
	for teamID := range s.links[membershipID] {
		teamIDs = append(teamIDs, teamID)
	}

	sort.Strings(teamIDs)
	return teamIDs, nil
}
