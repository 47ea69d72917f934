package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aidar/scim-provisioning/internal/audit"
	"github.com/aidar/scim-provisioning/internal/domain"
	"github.com/aidar/scim-provisioning/internal/lock"
	"github.com/aidar/scim-provisioning/internal/repository"
	"github.com/aidar/scim-provisioning/internal/scim"
)

// TeamService handles SCIM group provisioning against team records
type TeamService struct {
	teamRepo   repository.TeamRepository
	memberRepo repository.MembershipRepository
	locker     lock.Locker
	sink       audit.Sink
	scheduler  DeletionScheduler
	lockTTL    time.Duration
}

// NewTeamService creates a new TeamService
func NewTeamService(
	teamRepo repository.TeamRepository,
	memberRepo repository.MembershipRepository,
	locker lock.Locker,
	sink audit.Sink,
	scheduler DeletionScheduler,
	lockTTL time.Duration,
) *TeamService {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	return &TeamService{
		teamRepo:   teamRepo,
		memberRepo: memberRepo,
		locker:     locker,
		sink:       sink,
		scheduler:  scheduler,
		lockTTL:    lockTTL,
	}
}

// teamLockKey returns the exclusive lock key for a team's member-link set
func teamLockKey(teamID string) string {
	return fmt.Sprintf("org:team:%s", teamID)
}

// Create provisions a new team from a SCIM group POST
func (s *TeamService) Create(ctx context.Context, orgID, displayName string) (*domain.Team, error) {
	slug, err := slugify(displayName)
	if err != nil {
		return nil, err
	}

	exists, err := s.teamRepo.SlugExists(ctx, orgID, slug, "")
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &domain.SlugConflictError{Slug: slug}
	}

	team := &domain.Team{
		ID:     uuid.NewString(),
		OrgID:  orgID,
		Name:   displayName,
		Slug:   slug,
		Status: domain.TeamVisible,
	}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, orgID, team.ID, audit.EventTeamCreate, map[string]any{"slug": slug})
	return team, nil
}

// Get retrieves a team; teams being deleted are reported as not found
func (s *TeamService) Get(ctx context.Context, orgID, id string) (*domain.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !team.IsVisible() {
		return nil, domain.ErrTeamNotFound
	}
	return team, nil
}

// Members returns the team's current member list
func (s *TeamService) Members(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	return s.teamRepo.ListMembers(ctx, teamID)
}

// List returns the organization's visible teams, optionally narrowed by
// filter predicates; the first predicate's value is matched against the name
func (s *TeamService) List(ctx context.Context, orgID string, predicates []scim.Predicate) ([]*domain.Team, error) {
	var name string
	if len(predicates) > 0 {
		name = predicates[0].Value
	}
	return s.teamRepo.List(ctx, orgID, name)
}

// Rename replaces the team's display name and slug. The new slug must be
// unique within the organization (case-sensitive exact match against teams
// not being deleted); a conflict carries a user-facing message.
func (s *TeamService) Rename(ctx context.Context, orgID, id, newName string) (*domain.Team, error) {
	team, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	slug, err := slugify(newName)
	if err != nil {
		return nil, err
	}

	if slug != team.Slug {
		exists, err := s.teamRepo.SlugExists(ctx, orgID, slug, id)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, &domain.SlugConflictError{Slug: slug}
		}
	}

	if err := s.teamRepo.Rename(ctx, orgID, id, newName, slug); err != nil {
		return nil, err
	}
	team.Name = newName
	team.Slug = slug

	s.recordAudit(ctx, orgID, id, audit.EventTeamEdit, map[string]any{"slug": slug})
	return team, nil
}

// AddMember links a membership to the team. The membership must belong to
// the same organization; linking an already linked member is swallowed,
// matching identity-provider retry semantics.
func (s *TeamService) AddMember(ctx context.Context, orgID, teamID, membershipID string) error {
	if _, err := s.Get(ctx, orgID, teamID); err != nil {
		return err
	}

	m, err := s.memberRepo.GetByID(ctx, orgID, membershipID)
	if err != nil {
		return err
	}
	if m.State == domain.MemberStateRemoved {
		return domain.ErrMemberNotFound
	}

	return s.teamRepo.AddLink(ctx, teamID, membershipID)
}

// RemoveMember detaches a membership from the team. The target membership id
// comes from the PATCH path expression. Only the link is removed, the
// membership itself stays untouched; a missing link is a no-op.
func (s *TeamService) RemoveMember(ctx context.Context, orgID, teamID, path string) error {
	membershipID, err := scim.ParseMemberPath(path)
	if err != nil {
		return err
	}

	if _, err := s.Get(ctx, orgID, teamID); err != nil {
		return err
	}

	return s.teamRepo.RemoveLink(ctx, teamID, membershipID)
}

// ReplaceMembers atomically replaces the team's member set under an
// exclusive per-team lock. Unknown or removed memberships are skipped,
// matching the soft-failure policy for membership batches.
func (s *TeamService) ReplaceMembers(ctx context.Context, orgID, teamID string, membershipIDs []string) error {
	if _, err := s.Get(ctx, orgID, teamID); err != nil {
		return err
	}

	valid := make([]string, 0, len(membershipIDs))
	for _, membershipID := range dedupe(membershipIDs) {
		m, err := s.memberRepo.GetByID(ctx, orgID, membershipID)
		if errors.Is(err, domain.ErrMemberNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if m.State == domain.MemberStateRemoved {
			continue
		}
		valid = append(valid, membershipID)
	}

	handle, err := s.locker.Acquire(ctx, teamLockKey(teamID), s.lockTTL)
	if err != nil {
		return err
	}
	defer handle.Release(ctx) //nolint:errcheck

	return s.teamRepo.ReplaceLinks(ctx, teamID, valid)
}

// Delete marks a team for deletion. The VISIBLE -> PENDING_DELETION
// transition is a compare-and-swap: only the call that actually flips the
// status schedules the deferred hard deletion and emits the audit event.
// Deleting a team already being deleted is a no-op success.
func (s *TeamService) Delete(ctx context.Context, orgID, id string) error {
	if _, err := s.teamRepo.GetByID(ctx, orgID, id); err != nil {
		return err
	}

	swapped, err := s.teamRepo.UpdateStatusCAS(ctx, orgID, id,
		domain.TeamVisible, domain.TeamPendingDeletion)
	if err != nil {
		return err
	}
	if !swapped {
		return nil
	}

	if err := s.scheduler.ScheduleTeamDeletion(ctx, orgID, id); err != nil {
		return err
	}

	s.recordAudit(ctx, orgID, id, audit.EventTeamRemove, nil)
	return nil
}

// recordAudit emits an audit event; delivery failures do not fail the operation
func (s *TeamService) recordAudit(ctx context.Context, orgID, targetID, event string, data map[string]any) {
	_ = s.sink.Record(ctx, audit.Event{
		OrgID:    orgID,
		TargetID: targetID,
		Event:    event,
		Data:     data,
		At:       time.Now().UTC(),
	})
}
