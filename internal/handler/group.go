package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aidar/scim-provisioning/internal/domain"
	"github.com/aidar/scim-provisioning/internal/middleware"
	"github.com/aidar/scim-provisioning/internal/scim"
	"github.com/aidar/scim-provisioning/internal/service"
)

// GroupHandler обрабатывает SCIM эндпоинты /Groups
type GroupHandler struct {
	teamService *service.TeamService
}

// NewGroupHandler создает новый GroupHandler
func NewGroupHandler(teamService *service.TeamService) *GroupHandler {
	return &GroupHandler{
		teamService: teamService,
	}
}

// CreateGroupRequest представляет тело POST /Groups
type CreateGroupRequest struct {
	DisplayName string `json:"displayName"`
}

// patchGroupValue представляет value операции replace без path
type patchGroupValue struct {
	DisplayName string `json:"displayName"`
}

// ListGroups обрабатывает GET /scim/v2/Groups?filter=...
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgIDFromContext(r.Context())

	predicates, err := scim.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		HandleError(w, r, err)
		return
	}

	teams, err := h.teamService.List(r.Context(), orgID, predicates)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	resources := make([]any, 0, len(teams))
	for _, t := range teams {
		members, err := h.teamService.Members(r.Context(), t.ID)
		if err != nil {
			HandleError(w, r, err)
			return
		}
		resources = append(resources, scim.SerializeGroup(t, members))
	}

	RespondWithJSON(w, r, http.StatusOK, scim.NewListResponse(resources))
}

// CreateGroup обрабатывает POST /scim/v2/Groups
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgIDFromContext(r.Context())

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, domain.ScimTypeInvalidValue, "Invalid request body")
		return
	}

	team, err := h.teamService.Create(r.Context(), orgID, req.DisplayName)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusCreated, scim.SerializeGroup(team, nil))
}

// GetGroup обрабатывает GET /scim/v2/Groups/{id}
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgIDFromContext(r.Context())

	team, err := h.teamService.Get(r.Context(), orgID, chi.URLParam(r, "id"))
	if err != nil {
		HandleError(w, r, err)
		return
	}

	members, err := h.teamService.Members(r.Context(), team.ID)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, scim.SerializeGroup(team, members))
}

// PatchGroup обрабатывает PATCH /scim/v2/Groups/{id}.
// Операции применяются по порядку. Ошибки "участник не найден" и
// "уже в команде" пропускаются, конфликты slug и таймауты блокировки
// прерывают запрос.
func (h *GroupHandler) PatchGroup(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgIDFromContext(r.Context())
	teamID := chi.URLParam(r, "id")

	var req scim.PatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, domain.ScimTypeInvalidValue, "Invalid request body")
		return
	}

	for _, op := range req.Operations {
		if err := h.applyOperation(r, orgID, teamID, op); err != nil {
			HandleError(w, r, err)
			return
		}
	}

	team, err := h.teamService.Get(r.Context(), orgID, teamID)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	members, err := h.teamService.Members(r.Context(), team.ID)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, scim.SerializeGroup(team, members))
}

// applyOperation применяет одну PATCH операцию к команде
func (h *GroupHandler) applyOperation(r *http.Request, orgID, teamID string, op scim.PatchOperation) error {
	ctx := r.Context()

	switch strings.ToLower(op.Op) {
	case "add":
		refs, err := decodeMemberRefs(op.Value)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			err := h.teamService.AddMember(ctx, orgID, teamID, ref.Value)
			if errors.Is(err, domain.ErrMemberNotFound) {
				continue
			}
			if err != nil {
				return err
			}
		}
		return nil

	case "remove":
		return h.teamService.RemoveMember(ctx, orgID, teamID, op.Path)

	case "replace":
		switch {
		case strings.EqualFold(op.Path, "members"):
			refs, err := decodeMemberRefs(op.Value)
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(refs))
			for _, ref := range refs {
				ids = append(ids, ref.Value)
			}
			return h.teamService.ReplaceMembers(ctx, orgID, teamID, ids)
		case op.Path == "":
			var value patchGroupValue
			if err := json.Unmarshal(op.Value, &value); err != nil || value.DisplayName == "" {
				return domain.ErrValidation
			}
			_, err := h.teamService.Rename(ctx, orgID, teamID, value.DisplayName)
			return err
		default:
			return domain.ErrInvalidPath
		}

	default:
		return domain.ErrValidation
	}
}

// DeleteGroup обрабатывает DELETE /scim/v2/Groups/{id}
func (h *GroupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgIDFromContext(r.Context())

	if err := h.teamService.Delete(r.Context(), orgID, chi.URLParam(r, "id")); err != nil {
		HandleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodeMemberRefs разбирает value операции со списком участников
func decodeMemberRefs(raw json.RawMessage) ([]scim.MemberRef, error) {
	var refs []scim.MemberRef
	if err := json.Unmarshal(raw, &refs); err != nil {
		return nil, domain.ErrValidation
	}
	return refs, nil
}
