package domain

import (
	"errors"
	"fmt"
)

// Доменные ошибки ядра провизионинга
var (
	// ErrMemberExists возвращается при попытке создать членство с уже занятым email
	ErrMemberExists = errors.New("membership already exists")

	// ErrMemberNotFound возвращается когда членство не найдено
	ErrMemberNotFound = errors.New("membership not found")

	// ErrTeamNotFound возвращается когда команда не найдена
	ErrTeamNotFound = errors.New("team not found")

	// ErrTeamOrgMismatch возвращается при попытке связать членство и команду разных организаций
	ErrTeamOrgMismatch = errors.New("team belongs to another organization")

	// ErrLockTimeout возвращается когда эксклюзивная блокировка не получена за отведенные попытки
	ErrLockTimeout = errors.New("failed to acquire lock within retry budget")

	// ErrInvalidFilter возвращается при некорректном выражении SCIM-фильтра
	ErrInvalidFilter = errors.New("invalid filter expression")

	// ErrInvalidPath возвращается при некорректном path выражении PATCH операции
	ErrInvalidPath = errors.New("invalid path expression")

	// ErrValidation возвращается при отсутствующем или некорректном поле запроса
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized возвращается при неудачной аутентификации
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidToken возвращается когда provisioning токен невалиден
	ErrInvalidToken = errors.New("invalid token")
)

// SlugConflictError возвращается когда slug команды уже занят в организации.
// Текст сообщения показывается провайдеру как есть.
type SlugConflictError struct {
	Slug string
}

func (e *SlugConflictError) Error() string {
	return fmt.Sprintf("The slug %q is already in use.", e.Slug)
}

// ScimType представляет значение scimType из RFC 7644 для ответов с ошибкой
type ScimType string

// Значения scimType, используемые сервисом
const (
	ScimTypeUniqueness    ScimType = "uniqueness"    // Конфликт уникальности (email, slug)
	ScimTypeInvalidFilter ScimType = "invalidFilter" // Некорректный фильтр
	ScimTypeInvalidPath   ScimType = "invalidPath"   // Некорректный path в PATCH
	ScimTypeInvalidValue  ScimType = "invalidValue"  // Некорректное значение поля
)

// MapErrorToScimType преобразует доменные ошибки в значения scimType.
// Пустая строка означает, что атрибут scimType в ответ не включается.
func MapErrorToScimType(err error) ScimType {
	var slugConflict *SlugConflictError
	switch {
	case errors.Is(err, ErrMemberExists), errors.As(err, &slugConflict):
		return ScimTypeUniqueness
	case errors.Is(err, ErrInvalidFilter):
		return ScimTypeInvalidFilter
	case errors.Is(err, ErrInvalidPath):
		return ScimTypeInvalidPath
	case errors.Is(err, ErrValidation):
		return ScimTypeInvalidValue
	default:
		return ""
	}
}
