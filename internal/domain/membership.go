package domain

// MembershipState представляет состояние членства в организации
type MembershipState string

// Возможные состояния членства
const (
	MemberStatePending  MembershipState = "PROVISIONED_PENDING"  // Создано провайдером, приглашение еще не принято
	MemberStateActive   MembershipState = "PROVISIONED_ACTIVE"   // Активное членство
	MemberStateInactive MembershipState = "PROVISIONED_INACTIVE" // Деактивировано провайдером
	MemberStateRemoved  MembershipState = "REMOVED"              // Логически удалено (SCIM DELETE)
)

// InviteStatus представляет статус приглашения
type InviteStatus string

// Возможные статусы приглашения
const (
	InviteNotRequested       InviteStatus = "NOT_REQUESTED"
	InviteRequestedToJoin    InviteStatus = "REQUESTED_TO_JOIN"       // Человек запросил вступление сам
	InviteRequestedToBeAsked InviteStatus = "REQUESTED_TO_BE_INVITED" // Кто-то запросил приглашение для него
	InviteApproved           InviteStatus = "APPROVED"
)

// Membership представляет связь человека с организацией
type Membership struct {
	ID           string          `json:"id"`
	OrgID        string          `json:"org_id"`
	Email        string          `json:"email"` // Уникален в рамках организации, хранится в нижнем регистре
	UserID       string          `json:"user_id,omitempty"`
	Role         string          `json:"role"`
	InviteStatus InviteStatus    `json:"invite_status"`
	State        MembershipState `json:"state"`
	InviteToken  string          `json:"-"`
}

// IsActive возвращает true если членство не деактивировано.
// SCIM атрибут active выводится именно из этого условия для всех состояний.
func (m *Membership) IsActive() bool {
	return m.State != MemberStateInactive
}

// IsPendingRequest возвращает true если запись является необработанным
// запросом на вступление/приглашение (может быть вытеснена провайдером)
func (m *Membership) IsPendingRequest() bool {
	return m.InviteStatus == InviteRequestedToJoin || m.InviteStatus == InviteRequestedToBeAsked
}
