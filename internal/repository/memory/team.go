package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/aidar/scim-provisioning/internal/domain"
)

// TeamRepository реализует repository.TeamRepository в памяти
type TeamRepository struct {
	store *Store
}

// Create создает новую команду
func (r *TeamRepository) Create(_ context.Context, t *domain.Team) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.teams {
		if existing.OrgID == t.OrgID && existing.Slug == t.Slug {
			return &domain.SlugConflictError{Slug: t.Slug}
		}
	}

	clone := *t
	s.teams[t.ID] = &clone
	return nil
}

// GetByID получает команду по ID в рамках организации
func (r *TeamRepository) GetByID(_ context.Context, orgID, id string) (*domain.Team, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.teams[id]
	if !ok || t.OrgID != orgID {
		return nil, domain.ErrTeamNotFound
	}

	clone := *t
	return &clone, nil
}

// List возвращает команды организации, исключая находящиеся в процессе удаления
func (r *TeamRepository) List(_ context.Context, orgID, name string) ([]*domain.Team, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var teams []*domain.Team
	for _, t := range s.teams {
		if t.OrgID != orgID || t.Status != domain.TeamVisible {
			continue
		}
		if name != "" && t.Name != name {
			continue
		}
		clone := *t
		teams = append(teams, &clone)
	}

	sort.Slice(teams, func(i, j int) bool { return teams[i].Slug < teams[j].Slug })
	return teams, nil
}

// ListByIDs возвращает команды организации по списку идентификаторов
func (r *TeamRepository) ListByIDs(_ context.Context, orgID string, ids []string) ([]*domain.Team, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var teams []*domain.Team
	for _, id := range ids {
		t, ok := s.teams[id]
		if !ok || t.OrgID != orgID {
			continue
		}
		clone := *t
		teams = append(teams, &clone)
	}

	return teams, nil
}

// SlugExists проверяет занятость slug в организации
func (r *TeamRepository) SlugExists(_ context.Context, orgID, slug, excludeID string) (bool, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.teams {
		if t.OrgID == orgID && t.Slug == slug && t.ID != excludeID && t.Status == domain.TeamVisible {
			return true, nil
		}
	}

	return false, nil
}

// Rename обновляет имя и slug команды
func (r *TeamRepository) Rename(_ context.Context, orgID, id, name, slug string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.teams[id]
	if !ok || t.OrgID != orgID {
		return domain.ErrTeamNotFound
	}

	for _, other := range s.teams {
		if other.ID != id && other.OrgID == orgID && other.Slug == slug {
			return &domain.SlugConflictError{Slug: slug}
		}
	}

	t.Name = name
	t.Slug = slug
	return nil
}

// UpdateStatusCAS переводит команду из статуса from в to
func (r *TeamRepository) UpdateStatusCAS(_ context.Context, orgID, id string, from, to domain.TeamStatus) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.teams[id]
	if !ok || t.OrgID != orgID || t.Status != from {
		return false, nil
	}

	t.Status = to
	return true, nil
}

// AddLink создает связь команды и членства; повторная вставка поглощается
func (r *TeamRepository) AddLink(_ context.Context, teamID, membershipID string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.links[membershipID] == nil {
		s.links[membershipID] = make(map[string]struct{})
	}
	s.links[membershipID][teamID] = struct{}{}

	return nil
}

// RemoveLink удаляет связь команды и членства; отсутствие связи не ошибка
func (r *TeamRepository) RemoveLink(_ context.Context, teamID, membershipID string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.links[membershipID], teamID)
	return nil
}

// ReplaceLinks атомарно заменяет весь состав команды
func (r *TeamRepository) ReplaceLinks(_ context.Context, teamID string, membershipIDs []string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, linkSet := range s.links {
		delete(linkSet, teamID)
	}
	for _, membershipID := range membershipIDs {
		if s.links[membershipID] == nil {
			s.links[membershipID] = make(map[string]struct{})
		}
		// Повтор идентификатора нарушил бы составной первичный ключ
		if _, ok := s.links[membershipID][teamID]; ok {
			return fmt.Errorf("duplicate membership_teams key (%s, %s)", membershipID, teamID)
		}
		s.links[membershipID][teamID] = struct{}{}
	}

	return nil
}

// ListMembers возвращает участников команды
func (r *TeamRepository) ListMembers(_ context.Context, teamID string) ([]domain.TeamMember, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var members []domain.TeamMember
	for membershipID, linkSet := range s.links {
		if _, ok := linkSet[teamID]; !ok {
			continue
		}
		m, ok := s.memberships[membershipID]
		if !ok {
			continue
		}
		members = append(members, domain.TeamMember{MembershipID: m.ID, Email: m.Email})
	}

	sort.Slice(members, func(i, j int) bool { return members[i].Email < members[j].Email })
	return members, nil
}

// HardDelete физически удаляет команду вместе со связями
func (r *TeamRepository) HardDelete(_ context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, linkSet := range s.links {
		delete(linkSet, id)
	}
	delete(s.teams, id)

	return nil
}
