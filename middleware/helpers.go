package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/golang-jwt/jwt/v4"
)

// Имена JWT claims
const (
	jwtClaimUserID = "user_id"
	jwtClaimRole   = "role"
)

// ContextWithUser stores an authenticated user the way Authenticate does.
func ContextWithUser(ctx context.Context, userID string, role models.UserRole) context.Context {
	return context.WithValue(ctx, userContextKey, jwt.MapClaims{
		jwtClaimUserID: userID,
		jwtClaimRole:   string(role),
	})
}

func GetUserIDFromContext(ctx context.Context) (string, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return "", errors.New("user claims not found in context or invalid type")
	}

	userIDClaim, ok := claims[jwtClaimUserID]
	if !ok {
		return "", fmt.Errorf("missing '%s' claim in token", jwtClaimUserID)
	}

	switch v := userIDClaim.(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("empty '%s' claim", jwtClaimUserID)
		}
		return v, nil
	case float64:
		// Numeric ids from older tokens.
		if v != float64(int64(v)) || v <= 0 {
			return "", fmt.Errorf("invalid user ID value in '%s' claim: %v", jwtClaimUserID, v)
		}
		return strconv.FormatInt(int64(v), 10), nil
	default:
		return "", fmt.Errorf("invalid type for '%s' claim: expected string or number, got %T", jwtClaimUserID, userIDClaim)
	}
}

func GetUserRoleFromContext(ctx context.Context) (models.UserRole, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return "", errors.New("user claims not found in context or invalid type")
	}

	roleClaim, ok := claims[jwtClaimRole]
	if !ok {
		return "", fmt.Errorf("missing '%s' claim in token", jwtClaimRole)
	}

	roleStr, ok := roleClaim.(string)
	if !ok {
		return "", fmt.Errorf("invalid type for '%s' claim: expected string, got %T", jwtClaimRole, roleClaim)
	}

	role := models.UserRole(roleStr)
	switch role {
	case models.RoleAdmin, models.RoleOrganizer, models.RolePlayer:
		return role, nil
	default:
		return "", fmt.Errorf("invalid role value in claim: %q", roleStr)
	}
}
