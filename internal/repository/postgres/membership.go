package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aidar/scim-provisioning/internal/domain"
)

// MembershipRepository реализует repository.MembershipRepository для PostgreSQL
type MembershipRepository struct {
	db *pgxpool.Pool
}

// NewMembershipRepository создает новый экземпляр MembershipRepository
func NewMembershipRepository(db *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Create создает новую запись членства
func (r *MembershipRepository) Create(ctx context.Context, m *domain.Membership) error {
	query := `
		INSERT INTO memberships (id, org_id, email, user_id, role, invite_status, state, invite_token)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, NULLIF($8, ''))
	`

	_, err := r.db.Exec(ctx, query,
		m.ID, m.OrgID, m.Email, m.UserID, m.Role, m.InviteStatus, m.State, m.InviteToken,
	)
	if err != nil {
		// Check for unique constraint violation (email already taken in org)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return domain.ErrMemberExists
		}
		return err
	}

	return nil
}

// GetByID получает членство по ID в рамках организации
func (r *MembershipRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Membership, error) {
	query := `
		SELECT id, org_id, email, COALESCE(user_id, ''), role, invite_status, state, COALESCE(invite_token, '')
		FROM memberships
		WHERE org_id = $1 AND id = $2
	`

	return r.scanOne(r.db.QueryRow(ctx, query, orgID, id))
}

// GetByEmail получает членство по email
func (r *MembershipRepository) GetByEmail(ctx context.Context, orgID, email string) (*domain.Membership, error) {
	query := `
		SELECT id, org_id, email, COALESCE(user_id, ''), role, invite_status, state, COALESCE(invite_token, '')
		FROM memberships
		WHERE org_id = $1 AND email = $2
	`

	return r.scanOne(r.db.QueryRow(ctx, query, orgID, email))
}

// List возвращает членства организации, исключая логически удаленные
func (r *MembershipRepository) List(ctx context.Context, orgID, email string) ([]*domain.Membership, error) {
	query := `
		SELECT id, org_id, email, COALESCE(user_id, ''), role, invite_status, state, COALESCE(invite_token, '')
		FROM memberships
		WHERE org_id = $1
		  AND state != 'REMOVED'
		  AND ($2 = '' OR email = $2)
		ORDER BY email
	`

	rows, err := r.db.Query(ctx, query, orgID, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*domain.Membership
	for rows.Next() {
		m, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

// SetState обновляет состояние членства
func (r *MembershipRepository) SetState(ctx context.Context, orgID, id string, state domain.MembershipState) error {
	query := `
		UPDATE memberships
		SET state = $1, updated_at = NOW()
		WHERE org_id = $2 AND id = $3
	`

	result, err := r.db.Exec(ctx, query, state, orgID, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrMemberNotFound
	}

	return nil
}

// DeleteSuperseded удаляет вытесняемые провайдером записи для email:
// необработанные запросы на вступление/приглашение и логически удаленные членства
func (r *MembershipRepository) DeleteSuperseded(ctx context.Context, orgID, email string) error {
	query := `
		DELETE FROM memberships
		WHERE org_id = $1
		  AND email = $2
		  AND (invite_status IN ('REQUESTED_TO_JOIN', 'REQUESTED_TO_BE_INVITED') OR state = 'REMOVED')
	`

	_, err := r.db.Exec(ctx, query, orgID, email)
	return err
}

// ReplaceTeamLinks атомарно заменяет весь набор связей членства с командами.
// Удаление старых связей и вставка новых выполняются в одной транзакции,
// промежуточное состояние не наблюдаемо конкурентными читателями.
func (r *MembershipRepository) ReplaceTeamLinks(ctx context.Context, membershipID string, teamIDs []string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM membership_teams WHERE membership_id = $1`, membershipID); err != nil {
		return err
	}

	if len(teamIDs) > 0 {
		batch := &pgx.Batch{}
		for _, teamID := range teamIDs {
			batch.Queue(
				`INSERT INTO membership_teams (membership_id, team_id) VALUES ($1, $2)`,
				membershipID, teamID,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ListTeamIDs возвращает идентификаторы команд членства
func (r *MembershipRepository) ListTeamIDs(ctx context.Context, membershipID string) ([]string, error) {
	query := `
		SELECT team_id
		FROM membership_teams
		WHERE membership_id = $1
		ORDER BY team_id
	`

	rows, err := r.db.Query(ctx, query, membershipID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teamIDs []string
	for rows.Next() {
		var teamID string
		if err := rows.Scan(&teamID); err != nil {
			return nil, err
		}
		teamIDs = append(teamIDs, teamID)
	}

	return teamIDs, rows.Err()
}

// scanOne читает одну запись членства из строки выборки
func (r *MembershipRepository) scanOne(row pgx.Row) (*domain.Membership, error) {
	var m domain.Membership
	err := row.Scan(
		&m.ID,
		&m.OrgID,
		&m.Email,
		&m.UserID,
		&m.Role,
		&m.InviteStatus,
		&m.State,
		&m.InviteToken,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}

	return &m, nil
}
