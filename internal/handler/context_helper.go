package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Milankumar13/automated-timetable-backend/internal/middleware"
	"github.com/Milankumar13/automated-timetable-backend/internal/models"
	appErrors "github.com/Milankumar13/automated-timetable-backend/pkg/errors"
	"github.com/Milankumar13/automated-timetable-backend/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// requireClaims aborts with 401 when no tenant-scoped claims are attached.
// Every engine endpoint goes through this; the tenant never comes from the
// request payload.
func requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		c.Abort()
		return nil, false
	}
	return claims, true
}

func actorFrom(claims *models.JWTClaims) *string {
	if claims == nil || claims.UserID == "" {
		return nil
	}
	actor := claims.UserID
	return &actor
}
