package utils

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrMissingUserID is returned when a token carries no usable user_id claim
var ErrMissingUserID = errors.New("token has no user_id claim")

// GetUserIDFromToken extracts user ID from JWT token in the request
// This assumes the JWT has already been validated by middleware
func GetUserIDFromToken(c *gin.Context) (uuid.UUID, error) {
	authHeader := c.GetHeader("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == "" || tokenString == authHeader {
		return uuid.Nil, errors.New("missing bearer token")
	}

	// Parse without verification since middleware already validated it
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return uuid.Nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrMissingUserID
	}

	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, ErrMissingUserID
	}

	return uuid.Parse(userIDStr)
}

// GetOptionalUserID returns nil for anonymous requests and the token's user
// otherwise
func GetOptionalUserID(c *gin.Context) (*uuid.UUID, error) {
	if c.GetHeader("Authorization") == "" {
		return nil, nil
	}
	id, err := GetUserIDFromToken(c)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
