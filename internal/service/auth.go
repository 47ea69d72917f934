package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aidar/scim-provisioning/internal/domain"
)

// Claims represents provisioning token claims. Each token is scoped to
// exactly one organization; handlers never take the org from the request body.
type Claims struct {
	OrgID string `json:"org_id"`
	jwt.RegisteredClaims
}

// AuthService issues and validates provisioning tokens for identity providers
type AuthService struct {
	secret string
	expiry time.Duration
}

// NewAuthService creates a new AuthService
func NewAuthService(secret string, expiry time.Duration) *AuthService {
	return &AuthService{secret: secret, expiry: expiry}
}

// IssueToken generates a provisioning token for an organization
func (s *AuthService) IssueToken(orgID string) (string, error) {
	claims := &Claims{
		OrgID: orgID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(s.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken validates a provisioning token and returns its claims
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})

	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.OrgID == "" {
		return nil, domain.ErrInvalidToken
	}

	return claims, nil
}
