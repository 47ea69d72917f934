package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"

	"github.com/aidar/scim-provisioning/internal/scim"
	"github.com/aidar/scim-provisioning/internal/service"
)

// ContextKey это кастомный тип для ключей контекста
type ContextKey string

const (
	// OrgIDKey ключ контекста для ID организации
	OrgIDKey ContextKey = "org_id"
)

// AuthMiddleware создает middleware для валидации provisioning токенов
func AuthMiddleware(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Получаем токен из заголовка Authorization
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, r, "Missing authorization header")
				return
			}

			// Проверяем формат Bearer
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(w, r, "Invalid authorization header format")
				return
			}

			// Валидируем токен
			claims, err := authService.ValidateToken(parts[1])
			if err != nil {
				unauthorized(w, r, "Invalid or expired token")
				return
			}

			// Добавляем организацию в контекст
			ctx := context.WithValue(r.Context(), OrgIDKey, claims.OrgID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetOrgIDFromContext извлекает ID организации из контекста
func GetOrgIDFromContext(ctx context.Context) string {
	orgID, ok := ctx.Value(OrgIDKey).(string)
	if !ok {
		return ""
	}
	return orgID
}

func unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, scim.ErrorResponse{
		Schemas: []string{scim.SchemaError},
		Detail:  detail,
		Status:  strconv.Itoa(http.StatusUnauthorized),
	})
}
