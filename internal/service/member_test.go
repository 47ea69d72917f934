package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidar/scim-provisioning/internal/audit"
	"github.com/aidar/scim-provisioning/internal/domain"
	"github.com/aidar/scim-provisioning/internal/lock"
	"github.com/aidar/scim-provisioning/internal/scim"
)

func TestMemberService_Provision(t *testing.T) {
	e := newEnv(MemberConfig{DefaultInviteRole: "member"})
	ctx := context.Background()

	m, err := e.members.Provision(ctx, testOrg, "Alice@Example.com", nil)
	require.NoError(t, err)

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "alice@example.com", m.Email, "email must be lowercased")
	assert.Equal(t, "member", m.Role)
	assert.Equal(t, domain.InviteApproved, m.InviteStatus)
	assert.Equal(t, domain.MemberStatePending, m.State)
	assert.Empty(t, m.InviteToken, "no token when invites are disabled")

	require.Len(t, e.sink.byName(audit.EventMemberAdd), 1)
	assert.Empty(t, e.sink.byName(audit.EventMemberInvite))
}

func TestMemberService_Provision_InvitesEnabled(t *testing.T) {
	e := newEnv(MemberConfig{DefaultInviteRole: "member", InvitesEnabled: true})
	ctx := context.Background()

	m, err := e.members.Provision(ctx, testOrg, "alice@example.com", nil)
	require.NoError(t, err)

	assert.NotEmpty(t, m.InviteToken)
	require.Len(t, e.sink.byName(audit.EventMemberInvite), 1)
	assert.Empty(t, e.sink.byName(audit.EventMemberAdd))
}

func TestMemberService_Provision_Conflict(t *testing.T) {
	e := newEnv(MemberConfig{DefaultInviteRole: "member"})
	ctx := context.Background()

	_, err := e.members.Provision(ctx, testOrg, "x@y.com", nil)
	require.NoError(t, err)

	// Повторный вызов без промежуточного удаления дает конфликт,
	// а не дублирующую запись
	_, err = e.members.Provision(ctx, testOrg, "x@y.com", nil)
	require.ErrorIs(t, err, domain.ErrMemberExists)

	members, err := e.members.List(ctx, testOrg, nil)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestMemberService_Provision_SupersedesPendingRequest(t *testing.T) {
	e := newEnv(MemberConfig{DefaultInviteRole: "member"})
	ctx := context.Background()

	// Необработанный запрос на вступление от человека
	pending := &domain.Membership{
		ID:           "pending-1",
		OrgID:        testOrg,
		Email:        "x@y.com",
		Role:         "member",
		InviteStatus: domain.InviteRequestedToJoin,
		State:        domain.MemberStatePending,
	}
	require.NoError(t, e.store.Memberships().Create(ctx, pending))

	// Провайдер выдает провизионинг для того же email — запрос вытесняется
	m, err := e.members.Provision(ctx, testOrg, "x@y.com", nil)
	require.NoError(t, err)
	assert.NotEqual(t, "pending-1", m.ID)

	_, err = e.members.Get(ctx, testOrg, "pending-1")
	require.ErrorIs(t, err, domain.ErrMemberNotFound)
}

func TestMemberService_Provision_AfterRemove(t *testing.T) {
	e := newEnv(MemberConfig{DefaultInviteRole: "member"})
	ctx := context.Background()

	m, err := e.members.Provision(ctx, testOrg, "x@y.com", nil)
	require.NoError(t, err)
	require.NoError(t, e.members.Remove(ctx, testOrg, m.ID))

	// После логического удаления провайдер может создать членство заново
	fresh, err := e.members.Provision(ctx, testOrg, "x@y.com", nil)
	require.NoError(t, err)
	assert.NotEqual(t, m.ID, fresh.ID)
}

func TestMemberService_Provision_ValidatesUserName(t *testing.T) {
	e := newEnv(MemberConfig{DefaultInviteRole: "member"})

	_, err := e.members.Provision(context.Background(), testOrg, "   ", nil)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestMemberService_Provision_WithTeams(t *testing.T) {
	e := newEnv(MemberConfig{DefaultInviteRole: "member"})
	ctx := context.Background()

	team, err := e.teams.Create(ctx, testOrg, "Backend")
	require.NoError(t, err)

	m, err := e.members.Provision(ctx, testOrg, "x@y.com", []string{team.ID})
	require.NoError(t, err)

	teamIDs, err := e.store.Memberships().ListTeamIDs(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{team.ID}, teamIDs)
}

func TestMemberService_Provision_DuplicateTeamRefs(t *testing.T) {
	e := newEnv(MemberConfig{DefaultInviteRole: "member"})
	ctx := context.Background()

	team, err := e.teams.Create(ctx, testOrg, "Backend")
	require.NoError(t, err)

	// Провайдер может повторить одну команду в payload, вставка связей
	// не должна упираться в первичный ключ
	m, err := e.members.Provision(ctx, testOrg, "x@y.com", []string{team.ID, team.ID})
	require.NoError(t, err)

	teamIDs, err := e.store.Memberships().ListTeamIDs(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{team.ID}, teamIDs)
}

func TestMemberService_SetTeams_Replace(t *testing.T) {
	e := newEnv(MemberConfig{DefaultInviteRole: "member"})
	ctx := context.Background()

	teamA, err := e.teams.Create(ctx, testOrg, "Team A")
	require.NoError(t, err)
	teamB, err := e.teams.Create(ctx, testOrg, "Team B")
	require.NoError(t, err)
	teamC, err := e.teams.Create(ctx, testOrg, "Team C")
	require.NoError(t, err)

	m, err := e.members.Provision(ctx, testOrg, "x@y.com", nil)
	require.NoError(t, err)

	require.NoError(t, e.members.SetTeams(ctx, m, []string{teamA.ID, teamB.ID}))
	require.NoError(t, e.members.SetTeams(ctx, m, []string{teamB.ID, teamC.ID}))

	// Итоговый набор связей — ровно {B, C}
	teamIDs, err := e.store.Memberships().ListTeamIDs(ctx, m.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{teamB.ID, teamC.ID}, teamIDs)
}

func TestMemberService_SetTeams_UnknownTeam(t *testing.T) {
	e := newEnv(MemberConfig{DefaultInviteRole: "member"})
	ctx := context.Background()

	m, err := e.members.Provision(ctx, testOrg, "x@y.com", nil)
	require.NoError(t, err)

	err = e.members.SetTeams(ctx, m, []string{"no-such-team"})
	require.ErrorIs(t, err, domain.ErrTeamNotFound)
}

func TestMemberService_SetTeams_OtherOrgTeam(t *testing.T) {
	e := newEnv(MemberConfig{DefaultInviteRole: "member"})
	ctx := context.Background()

	foreign, err := e.teams.Create(ctx, "other-org", "Backend")
	require.NoError(t, err)

	m, err := e.members.Provision(ctx, testOrg, "x@y.com", nil)
	require.NoError(t, err)

	// Команда чужой организации не может быть связана с членством
	err = e.members.SetTeams(ctx, m, []string{foreign.ID})
	require.ErrorIs(t, err, domain.ErrTeamNotFound)
}

func TestMemberService_SetTeams_LockTimeout(t *testing.T) {
	e := newEnv(MemberConfig{DefaultInviteRole: "member"})
	ctx := context.Background()

	m, err := e.members.Provision(ctx, testOrg, "x@y.com", nil)
	require.NoError(t, err)

	// Держим блокировку членства, не отпуская ее
	locker := lock.NewMemoryLocker(lock.RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond})
	blocked := NewMemberService(e.store.Memberships(), e.store.Teams(), locker, e.sink,
		MemberConfig{DefaultInviteRole: "member"})

	handle, err := locker.Acquire(ctx, "org:member:"+m.ID, time.Minute)
	require.NoError(t, err)
	defer handle.Release(ctx) //nolint:errcheck

	// Бюджет повторов исчерпан — ошибка выходит наружу
	err = blocked.SetTeams(ctx, m, nil)
	require.ErrorIs(t, err, domain.ErrLockTimeout)
}

func TestMemberService_SetTeams_Concurrent(t *testing.T) {
	e := newEnv(MemberConfig{DefaultInviteRole: "member"})
	ctx := context.Background()

	teamA, err := e.teams.Create(ctx, testOrg, "Team A")
	require.NoError(t, err)
	teamB, err := e.teams.Create(ctx, testOrg, "Team B")
	require.NoError(t, err)

	m, err := e.members.Provision(ctx, testOrg, "x@y.com", nil)
	require.NoError(t, err)

	// Два конкурентных вызова SetTeams: итоговое состояние — набор
	// одного из них целиком, никогда не перемешанный частичный результат
	var wg sync.WaitGroup
	for _, set := range [][]string{{teamA.ID}, {teamB.ID}} {
		wg.Add(1)
		go func(teamIDs []string) {
			defer wg.Done()
			assert.NoError(t, e.members.SetTeams(ctx, m, teamIDs))
		}(set)
	}
	wg.Wait()

	teamIDs, err := e.store.Memberships().ListTeamIDs(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, teamIDs, 1)
	assert.Contains(t, [][]string{{teamA.ID}, {teamB.ID}}, teamIDs)
}

func TestMemberService_Teams(t *testing.T) {
	e := newEnv(MemberConfig{DefaultInviteRole: "member"})
	ctx := context.Background()

	team, err := e.teams.Create(ctx, testOrg, "Backend")
	require.NoError(t, err)

	m, err := e.members.Provision(ctx, testOrg, "x@y.com", []string{team.ID})
	require.NoError(t, err)

	teams, err := e.members.Teams(ctx, m)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, team.ID, teams[0].ID)

	// Членство без связей отдает пустой список
	other, err := e.members.Provision(ctx, testOrg, "z@y.com", nil)
	require.NoError(t, err)

	teams, err = e.members.Teams(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, teams)
}

func TestMemberService_ActivateDeactivate_Idempotent(t *testing.T) {
	e := newEnv(MemberConfig{DefaultInviteRole: "member"})
	ctx := context.Background()

	m, err := e.members.Provision(ctx, testOrg, "x@y.com", nil)
	require.NoError(t, err)

	deactivated, err := e.members.Deactivate(ctx, testOrg, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MemberStateInactive, deactivated.State)

	// Повторная деактивация — no-op успех без второго события аудита
	_, err = e.members.Deactivate(ctx, testOrg, m.ID)
	require.NoError(t, err)
	assert.Len(t, e.sink.byName(audit.EventMemberDeactivate), 1)

	activated, err := e.members.Activate(ctx, testOrg, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MemberStateActive, activated.State)

	_, err = e.members.Activate(ctx, testOrg, m.ID)
	require.NoError(t, err)
	assert.Len(t, e.sink.byName(audit.EventMemberActivate), 1)
}

func TestMemberService_Remove(t *testing.T) {
	e := newEnv(MemberConfig{DefaultInviteRole: "member"})
	ctx := context.Background()

	team, err := e.teams.Create(ctx, testOrg, "Backend")
	require.NoError(t, err)

	m, err := e.members.Provision(ctx, testOrg, "x@y.com", []string{team.ID})
	require.NoError(t, err)

	require.NoError(t, e.members.Remove(ctx, testOrg, m.ID))

	// Членство больше не находится, связи с командами сняты
	_, err = e.members.Get(ctx, testOrg, m.ID)
	require.ErrorIs(t, err, domain.ErrMemberNotFound)

	teamIDs, err := e.store.Memberships().ListTeamIDs(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, teamIDs)

	// Повторное удаление — no-op успех
	require.NoError(t, e.members.Remove(ctx, testOrg, m.ID))
	assert.Len(t, e.sink.byName(audit.EventMemberRemove), 1)
}

func TestMemberService_List_Filter(t *testing.T) {
	e := newEnv(MemberConfig{DefaultInviteRole: "member"})
	ctx := context.Background()

	_, err := e.members.Provision(ctx, testOrg, "a@x.com", nil)
	require.NoError(t, err)
	_, err = e.members.Provision(ctx, testOrg, "b@x.com", nil)
	require.NoError(t, err)

	all, err := e.members.List(ctx, testOrg, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	predicates, err := scim.ParseFilter(`userName eq "A@x.com"`)
	require.NoError(t, err)

	filtered, err := e.members.List(ctx, testOrg, predicates)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "a@x.com", filtered[0].Email)
}

func TestMemberService_Get_WrongOrg(t *testing.T) {
	e := newEnv(MemberConfig{DefaultInviteRole: "member"})
	ctx := context.Background()

	m, err := e.members.Provision(ctx, testOrg, "x@y.com", nil)
	require.NoError(t, err)

	_, err = e.members.Get(ctx, "other-org", m.ID)
	require.ErrorIs(t, err, domain.ErrMemberNotFound)
}
