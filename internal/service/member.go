package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aidar/scim-provisioning/internal/audit"
	"github.com/aidar/scim-provisioning/internal/domain"
	"github.com/aidar/scim-provisioning/internal/lock"
	"github.com/aidar/scim-provisioning/internal/repository"
	"github.com/aidar/scim-provisioning/internal/scim"
)

// DeletionScheduler schedules deferred hard deletion of teams
type DeletionScheduler interface {
	ScheduleTeamDeletion(ctx context.Context, orgID, teamID string) error
}

// MemberConfig holds provisioning behavior settings, passed explicitly
// instead of being read from ambient global state
type MemberConfig struct {
	DefaultInviteRole string
	InvitesEnabled    bool
	LockTTL           time.Duration
}

// MemberService handles SCIM user provisioning against membership records
type MemberService struct {
	memberRepo repository.MembershipRepository
	teamRepo   repository.TeamRepository
	locker     lock.Locker
	sink       audit.Sink
	cfg        MemberConfig
}

// NewMemberService creates a new MemberService
func NewMemberService(
	memberRepo repository.MembershipRepository,
	teamRepo repository.TeamRepository,
	locker lock.Locker,
	sink audit.Sink,
	cfg MemberConfig,
) *MemberService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Second
	}
	return &MemberService{
		memberRepo: memberRepo,
		teamRepo:   teamRepo,
		locker:     locker,
		sink:       sink,
		cfg:        cfg,
	}
}

// memberLockKey returns the exclusive lock key for a membership's team-link set
func memberLockKey(membershipID string) string {
	return fmt.Sprintf("org:member:%s", membershipID)
}

// Provision looks up or creates a membership for the given userName.
// A pending join/invite request or a logically removed record for the same
// email is superseded: the identity provider's call wins over it. An existing
// live membership yields ErrMemberExists.
func (s *MemberService) Provision(ctx context.Context, orgID, userName string, teamIDs []string) (*domain.Membership, error) {
	email := strings.ToLower(strings.TrimSpace(userName))
	if email == "" {
		return nil, fmt.Errorf("%w: userName is required", domain.ErrValidation)
	}

	existing, err := s.memberRepo.GetByEmail(ctx, orgID, email)
	switch {
	case err == nil:
		if !existing.IsPendingRequest() && existing.State != domain.MemberStateRemoved {
			return nil, domain.ErrMemberExists
		}
		// Remove superseded records before creating the new one
		if err := s.memberRepo.DeleteSuperseded(ctx, orgID, email); err != nil {
			return nil, err
		}
	case errors.Is(err, domain.ErrMemberNotFound):
		// No record for this email, proceed with creation
	default:
		return nil, err
	}

	m := &domain.Membership{
		ID:           uuid.NewString(),
		OrgID:        orgID,
		Email:        email,
		Role:         s.cfg.DefaultInviteRole,
		InviteStatus: domain.InviteApproved,
		State:        domain.MemberStatePending,
	}
	if s.cfg.InvitesEnabled {
		token, err := generateInviteToken()
		if err != nil {
			return nil, err
		}
		m.InviteToken = token
	}

	if err := s.memberRepo.Create(ctx, m); err != nil {
		return nil, err
	}

	if len(teamIDs) > 0 {
		if err := s.SetTeams(ctx, m, teamIDs); err != nil {
			return nil, err
		}
	}

	event := audit.EventMemberAdd
	if s.cfg.InvitesEnabled {
		event = audit.EventMemberInvite
	}
	s.recordAudit(ctx, orgID, m.ID, event, map[string]any{"email": email, "role": m.Role})

	return m, nil
}

// SetTeams atomically replaces the full team-link set of a membership.
// The replace runs inside a single transaction and is wrapped by an exclusive
// per-membership lock so that concurrent provisioning calls cannot interleave
// partial replacements. Lock exhaustion is surfaced as ErrLockTimeout.
func (s *MemberService) SetTeams(ctx context.Context, m *domain.Membership, teamIDs []string) error {
	// Identity providers retry and may repeat the same team in one payload;
	// the link insert targets a composite primary key, so dedupe first
	teamIDs = dedupe(teamIDs)

	teams, err := s.teamRepo.ListByIDs(ctx, m.OrgID, teamIDs)
	if err != nil {
		return err
	}
	// Every referenced team must exist within the membership's organization
	known := make(map[string]struct{}, len(teams))
	for _, t := range teams {
		known[t.ID] = struct{}{}
	}
	for _, teamID := range teamIDs {
		if _, ok := known[teamID]; !ok {
			return fmt.Errorf("%w: %s", domain.ErrTeamNotFound, teamID)
		}
	}

	handle, err := s.locker.Acquire(ctx, memberLockKey(m.ID), s.cfg.LockTTL)
	if err != nil {
		return err
	}
	defer handle.Release(ctx) //nolint:errcheck

	return s.memberRepo.ReplaceTeamLinks(ctx, m.ID, teamIDs)
}

// Teams returns the teams the membership is currently linked to,
// for rendering the groups attribute of the user resource.
func (s *MemberService) Teams(ctx context.Context, m *domain.Membership) ([]*domain.Team, error) {
	teamIDs, err := s.memberRepo.ListTeamIDs(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if len(teamIDs) == 0 {
		return nil, nil
	}
	return s.teamRepo.ListByIDs(ctx, m.OrgID, teamIDs)
}

// Activate transitions a membership to PROVISIONED_ACTIVE.
// Re-applying the transition is a no-op success.
func (s *MemberService) Activate(ctx context.Context, orgID, id string) (*domain.Membership, error) {
	return s.setState(ctx, orgID, id, domain.MemberStateActive, audit.EventMemberActivate)
}

// Deactivate transitions a membership to PROVISIONED_INACTIVE.
// Re-applying the transition is a no-op success.
func (s *MemberService) Deactivate(ctx context.Context, orgID, id string) (*domain.Membership, error) {
	return s.setState(ctx, orgID, id, domain.MemberStateInactive, audit.EventMemberDeactivate)
}

// setState applies an idempotent state transition
func (s *MemberService) setState(ctx context.Context, orgID, id string, state domain.MembershipState, event string) (*domain.Membership, error) {
	m, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if m.State == state {
		return m, nil
	}

	if err := s.memberRepo.SetState(ctx, orgID, id, state); err != nil {
		return nil, err
	}
	m.State = state

	s.recordAudit(ctx, orgID, id, event, map[string]any{"email": m.Email})
	return m, nil
}

// Remove logically removes a membership and detaches all of its team links.
// The link detach runs under the same per-membership lock as SetTeams.
// Removing an already removed membership is a no-op success.
func (s *MemberService) Remove(ctx context.Context, orgID, id string) error {
	m, err := s.memberRepo.GetByID(ctx, orgID, id)
	if err != nil {
		return err
	}
	if m.State == domain.MemberStateRemoved {
		return nil
	}

	handle, err := s.locker.Acquire(ctx, memberLockKey(m.ID), s.cfg.LockTTL)
	if err != nil {
		return err
	}
	defer handle.Release(ctx) //nolint:errcheck

	if err := s.memberRepo.ReplaceTeamLinks(ctx, m.ID, nil); err != nil {
		return err
	}
	if err := s.memberRepo.SetState(ctx, orgID, id, domain.MemberStateRemoved); err != nil {
		return err
	}

	s.recordAudit(ctx, orgID, id, audit.EventMemberRemove, map[string]any{"email": m.Email})
	return nil
}

// Get retrieves a membership; logically removed records are reported
// as not found instead of being silently returned
func (s *MemberService) Get(ctx context.Context, orgID, id string) (*domain.Membership, error) {
	m, err := s.memberRepo.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if m.State == domain.MemberStateRemoved {
		return nil, domain.ErrMemberNotFound
	}
	return m, nil
}

// List returns the organization's memberships, optionally narrowed by filter
// predicates. Like the reference behavior, only the first predicate's value
// is applied, matched against the membership email.
func (s *MemberService) List(ctx context.Context, orgID string, predicates []scim.Predicate) ([]*domain.Membership, error) {
	var email string
	if len(predicates) > 0 {
		email = predicates[0].Value
	}
	return s.memberRepo.List(ctx, orgID, email)
}

// recordAudit emits an audit event; delivery failures do not fail the operation
func (s *MemberService) recordAudit(ctx context.Context, orgID, targetID, event string, data map[string]any) {
	_ = s.sink.Record(ctx, audit.Event{
		OrgID:    orgID,
		TargetID: targetID,
		Event:    event,
		Data:     data,
		At:       time.Now().UTC(),
	})
}

// generateInviteToken returns a random token for invite emails
func generateInviteToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate invite token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
