package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aidar/scim-provisioning/internal/domain"
)

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives a URL-safe slug from a group display name.
// The derivation is deterministic so that two groups with equivalent
// names collide instead of silently coexisting.
func slugify(displayName string) (string, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return "", fmt.Errorf("%w: displayName is required", domain.ErrValidation)
	}

	slug := slugInvalidChars.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "", fmt.Errorf("%w: displayName %q produces an empty slug", domain.ErrValidation, displayName)
	}

	return slug, nil
}

// dedupe drops repeated ids while keeping the first-seen order
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
