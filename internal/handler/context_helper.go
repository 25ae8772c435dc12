package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/advising-api/internal/middleware"
	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
	"github.com/noah-isme/advising-api/pkg/logger"
	"github.com/noah-isme/advising-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

// actorID returns the caller's user id, answering 401 when the request carries no claims.
func actorID(c *gin.Context) (string, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	c.Set(logger.ActorKey, claims.UserID)
	return claims.UserID, true
}

func parseDate(c *gin.Context, raw, field string, required bool) (models.Date, bool) {
	if raw == "" {
		if required {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, field+" is required"))
			return models.Date{}, false
		}
		return models.Date{}, true
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, field+" must be YYYY-MM-DD"))
		return models.Date{}, false
	}
	return d, true
}

func invalidPayload(c *gin.Context, err error) {
	response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
}
