package scim

import (
	"encoding/json"

	"github.com/aidar/scim-provisioning/internal/domain"
)

// Схемы SCIM v2, отдаются в ответах дословно
const (
	SchemaError        = "urn:ietf:params:scim:api:messages:2.0:Error"
	SchemaListResponse = "urn:ietf:params:scim:api:messages:2.0:ListResponse"
	SchemaPatchOp      = "urn:ietf:params:scim:api:messages:2.0:PatchOp"
	SchemaUser         = "urn:ietf:params:scim:schemas:core:2.0:User"
	SchemaGroup        = "urn:ietf:params:scim:schemas:core:2.0:Group"
)

// Email представляет email адрес ресурса User
type Email struct {
	Primary bool   `json:"primary"`
	Value   string `json:"value"`
	Type    string `json:"type"`
}

// Meta содержит метаданные ресурса
type Meta struct {
	ResourceType string `json:"resourceType"`
}

// UserResource представляет SCIM ресурс User
type UserResource struct {
	Schemas    []string    `json:"schemas"`
	ID         string      `json:"id"`
	UserName   string      `json:"userName"`
	Emails     []Email     `json:"emails"`
	ExternalID string      `json:"externalId,omitempty"`
	Active     bool        `json:"active"`
	Groups     []MemberRef `json:"groups"`
	Meta       Meta        `json:"meta"`
}

// MemberRef представляет ссылку на участника в списке members ресурса Group
type MemberRef struct {
	Value   string `json:"value"`
	Display string `json:"display,omitempty"`
}

// GroupResource представляет SCIM ресурс Group
type GroupResource struct {
	Schemas     []string    `json:"schemas"`
	ID          string      `json:"id"`
	DisplayName string      `json:"displayName"`
	Members     []MemberRef `json:"members"`
	Meta        Meta        `json:"meta"`
}

// ListResponse представляет обертку списочного ответа SCIM
type ListResponse struct {
	Schemas      []string `json:"schemas"`
	TotalResults int      `json:"totalResults"`
	StartIndex   int      `json:"startIndex"`
	ItemsPerPage int      `json:"itemsPerPage"`
	Resources    []any    `json:"Resources"`
}

// PatchOperation представляет одну операцию PATCH запроса.
// Value разбирается потребителем в зависимости от op и path.
type PatchOperation struct {
	Op    string          `json:"op"`
	Path  string          `json:"path,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// PatchRequest представляет тело SCIM PATCH запроса
type PatchRequest struct {
	Schemas    []string         `json:"schemas"`
	Operations []PatchOperation `json:"Operations"`
}

// ErrorResponse представляет ответ с ошибкой по схеме SCIM.
// RFC 7644 сериализует status строкой, так его и ожидают провайдеры.
type ErrorResponse struct {
	Schemas  []string `json:"schemas"`
	ScimType string   `json:"scimType,omitempty"`
	Detail   string   `json:"detail"`
	Status   string   `json:"status"`
}

// SerializeUser отображает членство на ресурс User.
// Флаг active выводится из состояния членства: state != PROVISIONED_INACTIVE.
func SerializeUser(m *domain.Membership, externalID string, teams []*domain.Team) *UserResource {
	groups := make([]MemberRef, 0, len(teams))
	for _, t := range teams {
		groups = append(groups, MemberRef{Value: t.ID, Display: t.Name})
	}
	return &UserResource{
		Schemas:  []string{SchemaUser},
		ID:       m.ID,
		UserName: m.Email,
		Emails: []Email{
			{Primary: true, Value: m.Email, Type: "work"},
		},
		ExternalID: externalID,
		Active:     m.IsActive(),
		Groups:     groups,
		Meta:       Meta{ResourceType: "User"},
	}
}

// SerializeGroup отображает команду с участниками на ресурс Group
func SerializeGroup(t *domain.Team, members []domain.TeamMember) *GroupResource {
	refs := make([]MemberRef, 0, len(members))
	for _, m := range members {
		refs = append(refs, MemberRef{Value: m.MembershipID, Display: m.Email})
	}
	return &GroupResource{
		Schemas:     []string{SchemaGroup},
		ID:          t.ID,
		DisplayName: t.Name,
		Members:     refs,
		Meta:        Meta{ResourceType: "Group"},
	}
}

// NewListResponse собирает списочный ответ. Пагинация не поддерживается:
// отдается вся выборка с startIndex равным 1.
func NewListResponse(resources []any) *ListResponse {
	return &ListResponse{
		Schemas:      []string{SchemaListResponse},
		TotalResults: len(resources),
		StartIndex:   1,
		ItemsPerPage: len(resources),
		Resources:    resources,
	}
}
