package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"school-service/internal/middleware"
	"school-service/internal/observability"
	"school-service/internal/services"
)

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(observability.RequestIDContextKey); id != "" {
		return id
	}

	requestID := observability.RequestIDFromRequest(c.Request)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(observability.RequestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *string {
	if id := c.GetString(middleware.UserIDKey); id != "" {
		return &id
	}
	return nil
}

func viewerFromContext(c *gin.Context) services.Viewer {
	return services.Viewer{
		UserID:     c.GetString(middleware.UserIDKey),
		Role:       c.GetString(middleware.RoleKey),
		StudentIDs: c.GetStringSlice(middleware.StudentIDsKey),
	}
}
