package repository

import (
	"context"

	"github.com/aidar/scim-provisioning/internal/domain"
)

// MembershipRepository определяет методы для работы с записями членства
type MembershipRepository interface {
	// Create создает новую запись членства
	Create(ctx context.Context, m *domain.Membership) error

	// GetByID получает членство по ID в рамках организации
	GetByID(ctx context.Context, orgID, id string) (*domain.Membership, error)

	// GetByEmail получает членство по email (email хранится в нижнем регистре)
	GetByEmail(ctx context.Context, orgID, email string) (*domain.Membership, error)

	// List возвращает членства организации, исключая логически удаленные.
	// Непустой email сужает выборку до точного совпадения.
	List(ctx context.Context, orgID, email string) ([]*domain.Membership, error)

	// SetState обновляет состояние членства
	SetState(ctx context.Context, orgID, id string, state domain.MembershipState) error

	// DeleteSuperseded удаляет записи для email, которые провайдер вправе
	// вытеснить: необработанные запросы на вступление/приглашение и
	// логически удаленные членства
	DeleteSuperseded(ctx context.Context, orgID, email string) error

	// ReplaceTeamLinks атомарно заменяет весь набор связей членства с
	// командами в одной транзакции: удаление старых и вставка новых
	ReplaceTeamLinks(ctx context.Context, membershipID string, teamIDs []string) error

	// ListTeamIDs возвращает идентификаторы команд, с которыми связано членство
	ListTeamIDs(ctx context.Context, membershipID string) ([]string, error)
}

// TeamRepository определяет методы для работы с командами и их составом
type TeamRepository interface {
	// Create создает новую команду
	Create(ctx context.Context, t *domain.Team) error

	// GetByID получает команду по ID в рамках организации
	GetByID(ctx context.Context, orgID, id string) (*domain.Team, error)

	// List возвращает команды организации, исключая находящиеся в процессе
	// удаления. Непустой name сужает выборку до точного совпадения.
	List(ctx context.Context, orgID, name string) ([]*domain.Team, error)

	// ListByIDs возвращает команды организации по списку идентификаторов
	ListByIDs(ctx context.Context, orgID string, ids []string) ([]*domain.Team, error)

	// SlugExists проверяет занятость slug в организации, исключая команду
	// excludeID и команды в процессе удаления. Сравнение точное,
	// с учетом регистра.
	SlugExists(ctx context.Context, orgID, slug, excludeID string) (bool, error)

	// Rename обновляет имя и slug команды
	Rename(ctx context.Context, orgID, id, name, slug string) error

	// UpdateStatusCAS переводит команду из статуса from в to.
	// Возвращает true только если переход действительно произошел.
	UpdateStatusCAS(ctx context.Context, orgID, id string, from, to domain.TeamStatus) (bool, error)

	// AddLink создает связь команды и членства; повторная вставка
	// существующей связи не является ошибкой
	AddLink(ctx context.Context, teamID, membershipID string) error

	// RemoveLink удаляет связь команды и членства; отсутствие связи
	// не является ошибкой
	RemoveLink(ctx context.Context, teamID, membershipID string) error

	// ReplaceLinks атомарно заменяет весь состав команды в одной транзакции
	ReplaceLinks(ctx context.Context, teamID string, membershipIDs []string) error

	// ListMembers возвращает участников команды
	ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error)

	// HardDelete физически удаляет команду вместе со связями.
	// Вызывается только воркером отложенного удаления.
	HardDelete(ctx context.Context, id string) error
}
