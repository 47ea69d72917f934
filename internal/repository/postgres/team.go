package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aidar/scim-provisioning/internal/domain"
)

// TeamRepository реализует repository.TeamRepository для PostgreSQL
type TeamRepository struct {
	db *pgxpool.Pool
}

// NewTeamRepository создает новый экземпляр TeamRepository
func NewTeamRepository(db *pgxpool.Pool) *TeamRepository {
	return &TeamRepository{db: db}
}

// Create создает новую команду
func (r *TeamRepository) Create(ctx context.Context, t *domain.Team) error {
	query := `
		INSERT INTO teams (id, org_id, name, slug, status)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(ctx, query, t.ID, t.OrgID, t.Name, t.Slug, t.Status)
	if err != nil {
		// Check for unique constraint violation (slug already taken in org)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return &domain.SlugConflictError{Slug: t.Slug}
		}
		return err
	}

	return nil
}

// GetByID получает команду по ID в рамках организации
func (r *TeamRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Team, error) {
	query := `
		SELECT id, org_id, name, slug, status
		FROM teams
		WHERE org_id = $1 AND id = $2
	`

	var t domain.Team
	err := r.db.QueryRow(ctx, query, orgID, id).Scan(&t.ID, &t.OrgID, &t.Name, &t.Slug, &t.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTeamNotFound
		}
		return nil, err
	}

	return &t, nil
}

// List возвращает команды организации, исключая находящиеся в процессе удаления
func (r *TeamRepository) List(ctx context.Context, orgID, name string) ([]*domain.Team, error) {
	query := `
		SELECT id, org_id, name, slug, status
		FROM teams
		WHERE org_id = $1
		  AND status = 'VISIBLE'
		  AND ($2 = '' OR name = $2)
		ORDER BY slug
	`

	return r.queryTeams(ctx, query, orgID, name)
}

// ListByIDs возвращает команды организации по списку идентификаторов
func (r *TeamRepository) ListByIDs(ctx context.Context, orgID string, ids []string) ([]*domain.Team, error) {
	query := `
		SELECT id, org_id, name, slug, status
		FROM teams
		WHERE org_id = $1 AND id = ANY($2)
	`

	return r.queryTeams(ctx, query, orgID, ids)
}

// SlugExists проверяет занятость slug в организации.
// Сравнение точное, команды в процессе удаления не учитываются.
func (r *TeamRepository) SlugExists(ctx context.Context, orgID, slug, excludeID string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM teams
			WHERE org_id = $1
			  AND slug = $2
			  AND id != $3
			  AND status = 'VISIBLE'
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, orgID, slug, excludeID).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

// Rename обновляет имя и slug команды
func (r *TeamRepository) Rename(ctx context.Context, orgID, id, name, slug string) error {
	query := `
		UPDATE teams
		SET name = $1, slug = $2, updated_at = NOW()
		WHERE org_id = $3 AND id = $4
	`

	result, err := r.db.Exec(ctx, query, name, slug, orgID, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return &domain.SlugConflictError{Slug: slug}
		}
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrTeamNotFound
	}

	return nil
}

// UpdateStatusCAS переводит команду из статуса from в to.
// Сравнение и замена выполняются одним UPDATE, поэтому два конкурентных
// удаления не могут запланировать физическое удаление дважды.
func (r *TeamRepository) UpdateStatusCAS(ctx context.Context, orgID, id string, from, to domain.TeamStatus) (bool, error) {
	query := `
		UPDATE teams
		SET status = $1, updated_at = NOW()
		WHERE org_id = $2 AND id = $3 AND status = $4
	`

	result, err := r.db.Exec(ctx, query, to, orgID, id, from)
	if err != nil {
		return false, err
	}

	return result.RowsAffected() > 0, nil
}

// AddLink создает связь команды и членства.
// Повторная вставка существующей связи поглощается (идемпотентность
// повторов со стороны провайдера).
func (r *TeamRepository) AddLink(ctx context.Context, teamID, membershipID string) error {
	query := `
		INSERT INTO membership_teams (membership_id, team_id)
		VALUES ($1, $2)
		ON CONFLICT (membership_id, team_id) DO NOTHING
	`

	_, err := r.db.Exec(ctx, query, membershipID, teamID)
	return err
}

// RemoveLink удаляет связь команды и членства; отсутствие связи не ошибка
func (r *TeamRepository) RemoveLink(ctx context.Context, teamID, membershipID string) error {
	query := `DELETE FROM membership_teams WHERE membership_id = $1 AND team_id = $2`

	_, err := r.db.Exec(ctx, query, membershipID, teamID)
	return err
}

// ReplaceLinks атомарно заменяет весь состав команды в одной транзакции
func (r *TeamRepository) ReplaceLinks(ctx context.Context, teamID string, membershipIDs []string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM membership_teams WHERE team_id = $1`, teamID); err != nil {
		return err
	}

	if len(membershipIDs) > 0 {
		batch := &pgx.Batch{}
		for _, membershipID := range membershipIDs {
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

// ListMembers возвращает участников команды
func (r *TeamRepository) ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	query := `
		SELECT m.id, m.email
		FROM membership_teams mt
		JOIN memberships m ON m.id = mt.membership_id
		WHERE mt.team_id = $1
		ORDER BY m.email
	`

	rows, err := r.db.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.TeamMember
	for rows.Next() {
		var member domain.TeamMember
		if err := rows.Scan(&member.MembershipID, &member.Email); err != nil {
			return nil, err
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

// HardDelete физически удаляет команду вместе со связями
func (r *TeamRepository) HardDelete(ctx context.Context, id string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM membership_teams WHERE team_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// queryTeams выполняет выборку команд по запросу
func (r *TeamRepository) queryTeams(ctx context.Context, query string, args ...any) ([]*domain.Team, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []*domain.Team
	for rows.Next() {
		var t domain.Team
		if err := rows.Scan(&t.ID, &t.OrgID, &t.Name, &t.Slug, &t.Status); err != nil {
			return nil, err
		}
		teams = append(teams, &t)
	}

	return teams, rows.Err()
}
