package session

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joescharf/tickeasy/internal/models"
)

// ActorFromToken decodes the token's claims without verifying the signature.
// The remote service stays the authority; this only lets local checks use
// the identity carried by the current token instead of a cached profile.
// Opaque (non-JWT) tokens yield false.
func ActorFromToken(token string) (*models.Actor, bool) {
	if token == "" {
		return nil, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}

	a := &models.Actor{
		ID:    firstString(claims, "userId", "sub", "id"),
		Email: firstString(claims, "email"),
		Name:  firstString(claims, "name"),
		Role:  models.Role(firstString(claims, "role")),
	}
	if a.ID == "" && a.Email == "" && a.Role == "" {
		return nil, false
	}
	return a, true
}

func firstString(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		switch v := claims[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
