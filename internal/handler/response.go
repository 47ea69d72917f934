package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/render"

	"github.com/aidar/scim-provisioning/internal/domain"
	"github.com/aidar/scim-provisioning/internal/scim"
)

// RespondWithJSON отправляет JSON ответ с указанным статус кодом.
// Согласование контента намеренно обходится: независимо от заголовков
// Accept/Content-Type клиента сервер всегда отдает каноническое JSON
// представление.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	render.Status(r, statusCode)
	render.JSON(w, r, data)
}

// RespondWithError отправляет ответ с ошибкой по схеме SCIM
func RespondWithError(w http.ResponseWriter, r *http.Request, statusCode int, scimType domain.ScimType, detail string) {
	render.Status(r, statusCode)
	render.JSON(w, r, scim.ErrorResponse{
		Schemas:  []string{scim.SchemaError},
		ScimType: string(scimType),
		Detail:   detail,
		Status:   strconv.Itoa(statusCode),
	})
}
