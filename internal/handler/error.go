package handler

import (
	"errors"
	"net/http"

	"github.com/aidar/scim-provisioning/internal/domain"
)

// HandleError преобразует доменные ошибки в HTTP ответы по схеме SCIM
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	var slugConflict *domain.SlugConflictError

	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidFilter),
		errors.Is(err, domain.ErrInvalidPath):
		RespondWithError(w, r, http.StatusBadRequest, domain.MapErrorToScimType(err), err.Error())
	case errors.Is(err, domain.ErrMemberNotFound), errors.Is(err, domain.ErrTeamNotFound):
		RespondWithError(w, r, http.StatusNotFound, "", "Resource not found.")
	case errors.As(err, &slugConflict):
		RespondWithError(w, r, http.StatusConflict, domain.ScimTypeUniqueness, slugConflict.Error())
	case errors.Is(err, domain.ErrMemberExists):
		RespondWithError(w, r, http.StatusConflict, domain.ScimTypeUniqueness, "User already exists in the database.")
	case errors.Is(err, domain.ErrLockTimeout):
		RespondWithError(w, r, http.StatusConflict, "", "Resource is being modified, please retry.")
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidToken):
		RespondWithError(w, r, http.StatusUnauthorized, "", "Unauthorized")
	default:
		RespondWithError(w, r, http.StatusInternalServerError, "", "Internal server error")
	}
}
