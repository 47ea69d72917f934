package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aidar/scim-provisioning/internal/domain"
	"github.com/aidar/scim-provisioning/internal/middleware"
	"github.com/aidar/scim-provisioning/internal/scim"
	"github.com/aidar/scim-provisioning/internal/service"
)

// UserHandler обрабатывает SCIM эндпоинты /Users
type UserHandler struct {
	memberService *service.MemberService
}

// NewUserHandler создает новый UserHandler
func NewUserHandler(memberService *service.MemberService) *UserHandler {
	return &UserHandler{
		memberService: memberService,
	}
}

// CreateUserRequest представляет тело POST /Users
type CreateUserRequest struct {
	UserName   string           `json:"userName"`
	ExternalID string           `json:"externalId"`
	Groups     []scim.MemberRef `json:"groups"`
}

// patchUserValue представляет value операции replace для пользователя
type patchUserValue struct {
	Active *bool `json:"active"`
}

// ListUsers обрабатывает GET /scim/v2/Users?filter=...
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgIDFromContext(r.Context())

	predicates, err := scim.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		HandleError(w, r, err)
		return
	}

	members, err := h.memberService.List(r.Context(), orgID, predicates)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	resources := make([]any, 0, len(members))
	for _, m := range members {
		teams, err := h.memberService.Teams(r.Context(), m)
		if err != nil {
			HandleError(w, r, err)
			return
		}
		resources = append(resources, scim.SerializeUser(m, "", teams))
	}

	RespondWithJSON(w, r, http.StatusOK, scim.NewListResponse(resources))
}

// respondUser отдает ресурс User вместе со списком его команд
func (h *UserHandler) respondUser(w http.ResponseWriter, r *http.Request, statusCode int, m *domain.Membership, externalID string) {
	teams, err := h.memberService.Teams(r.Context(), m)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	RespondWithJSON(w, r, statusCode, scim.SerializeUser(m, externalID, teams))
}

// CreateUser обрабатывает POST /scim/v2/Users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgIDFromContext(r.Context())

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, domain.ScimTypeInvalidValue, "Invalid request body")
		return
	}

	teamIDs := make([]string, 0, len(req.Groups))
	for _, g := range req.Groups {
		teamIDs = append(teamIDs, g.Value)
	}

	member, err := h.memberService.Provision(r.Context(), orgID, req.UserName, teamIDs)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	h.respondUser(w, r, http.StatusCreated, member, req.ExternalID)
}

// GetUser обрабатывает GET /scim/v2/Users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgIDFromContext(r.Context())

	member, err := h.memberService.Get(r.Context(), orgID, chi.URLParam(r, "id"))
	if err != nil {
		HandleError(w, r, err)
		return
	}

	h.respondUser(w, r, http.StatusOK, member, "")
}

// PatchUser обрабатывает PATCH /scim/v2/Users/{id}.
// Поддерживается единственная операция: replace со значением active.
func (h *UserHandler) PatchUser(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req scim.PatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, domain.ScimTypeInvalidValue, "Invalid request body")
		return
	}

	member, err := h.memberService.Get(r.Context(), orgID, id)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	for _, op := range req.Operations {
		if strings.ToLower(op.Op) != "replace" {
			RespondWithError(w, r, http.StatusBadRequest, domain.ScimTypeInvalidValue, "Unsupported operation: "+op.Op)
			return
		}

		active, ok := decodeActive(op)
		if !ok {
			RespondWithError(w, r, http.StatusBadRequest, domain.ScimTypeInvalidValue, "Operation value must contain active")
			return
		}

		if active {
			member, err = h.memberService.Activate(r.Context(), orgID, id)
		} else {
			member, err = h.memberService.Deactivate(r.Context(), orgID, id)
		}
		if err != nil {
			HandleError(w, r, err)
			return
		}
	}

	h.respondUser(w, r, http.StatusOK, member, "")
}

// DeleteUser обрабатывает DELETE /scim/v2/Users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgIDFromContext(r.Context())

	if err := h.memberService.Remove(r.Context(), orgID, chi.URLParam(r, "id")); err != nil {
		HandleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodeActive извлекает флаг active из value операции. Провайдеры
// присылают либо объект {"active": bool}, либо голый bool при path=active.
func decodeActive(op scim.PatchOperation) (bool, bool) {
	if strings.EqualFold(op.Path, "active") {
		var active bool
		if err := json.Unmarshal(op.Value, &active); err == nil {
			return active, true
		}
	}

	var value patchUserValue
	if err := json.Unmarshal(op.Value, &value); err != nil || value.Active == nil {
		return false, false
	}
	return *value.Active, true
}
