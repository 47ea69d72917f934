package domain

// TeamStatus представляет статус жизненного цикла команды
type TeamStatus string

// Возможные статусы команды
const (
	TeamVisible            TeamStatus = "VISIBLE"              // Обычная видимая команда
	TeamPendingDeletion    TeamStatus = "PENDING_DELETION"     // Помечена на удаление (SCIM DELETE)
	TeamDeletionInProgress TeamStatus = "DELETION_IN_PROGRESS" // Воркер начал физическое удаление
)

// Team представляет группу участников в рамках организации.
// В терминах SCIM команда отображается на ресурс Group.
type Team struct {
	ID     string     `json:"id"`
	OrgID  string     `json:"org_id"`
	Name   string     `json:"name"`
	Slug   string     `json:"slug"` // Уникален в рамках организации
	Status TeamStatus `json:"status"`
}

// IsVisible возвращает true если команда не находится в процессе удаления
func (t *Team) IsVisible() bool {
	return t.Status == TeamVisible
}

// TeamMember представляет участника команды (элемент списка members ресурса Group)
type TeamMember struct {
	MembershipID string `json:"membership_id"`
	Email        string `json:"email"`
}
