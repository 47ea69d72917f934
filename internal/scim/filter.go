package scim

import (
	"fmt"
	"strings"

	"github.com/aidar/scim-provisioning/internal/domain"
)

// Поддерживаемый оператор фильтрации. Грамматика ограничена плоскими
// конъюнкциями равенств: `attr eq "value"`, клаузы разделяются запятой.
// Операторы and/or, co/sw/ew и вложенные скобки не поддерживаются.
const opEq = " eq "

// Predicate представляет разобранную клаузу фильтра (attribute, operator, value);
// оператор всегда eq
type Predicate struct {
	Attribute string
	Value     string
}

// ParseFilter разбирает SCIM-выражение фильтра в список предикатов.
// Пустая строка дает пустой список без ошибки. Значения атрибута userName
// приводятся к нижнему регистру (email сравнивается без учета регистра).
//
// Клауза без разделителя ` eq ` или с пустой стороной считается ошибкой:
// исходная реализация молча отбрасывала такие клаузы, здесь осознанно
// выбран строгий разбор с ErrInvalidFilter.
func ParseFilter(raw string) ([]Predicate, error) {
	if raw == "" {
		return nil, nil
	}

	var predicates []Predicate
	for _, clause := range strings.Split(raw, ",") {
		attr, value, found := strings.Cut(clause, opEq)
		if !found {
			return nil, fmt.Errorf("%w: clause %q has no eq operator", domain.ErrInvalidFilter, strings.TrimSpace(clause))
		}

		attr = strings.TrimSpace(attr)
		value = unquote(strings.TrimSpace(value))
		if attr == "" || value == "" {
			return nil, fmt.Errorf("%w: clause %q is missing attribute or value", domain.ErrInvalidFilter, strings.TrimSpace(clause))
		}

		// Уникальный userName всегда хранится в нижнем регистре
		if attr == "userName" {
			value = strings.ToLower(value)
		}

		predicates = append(predicates, Predicate{Attribute: attr, Value: value})
	}

	return predicates, nil
}

// ParseMemberPath извлекает идентификатор членства из path выражения PATCH
// операции вида `members[value eq "<id>"]`
func ParseMemberPath(path string) (string, error) {
	inner, ok := strings.CutPrefix(strings.TrimSpace(path), "members[")
	if !ok {
		return "", fmt.Errorf("%w: %q does not target members", domain.ErrInvalidPath, path)
	}
	inner, ok = strings.CutSuffix(inner, "]")
	if !ok {
		return "", fmt.Errorf("%w: %q is missing closing bracket", domain.ErrInvalidPath, path)
	}

	predicates, err := ParseFilter(inner)
	if err != nil {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidPath, path)
	}
	if len(predicates) != 1 || predicates[0].Attribute != "value" {
		return "", fmt.Errorf("%w: %q must filter on value", domain.ErrInvalidPath, path)
	}

	return predicates[0].Value, nil
}

// unquote снимает один слой парных двойных или одинарных кавычек
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
