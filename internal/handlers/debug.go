package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"school-service/internal/telemetry"
)

// ConnectionCounter reports open notification sockets per user.
type ConnectionCounter interface {
	Connections(userID string) int
}

// RegisterDebugRoutes wires operator-only endpoints when enabled.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, conns ConnectionCounter, enabled bool) {
	if !enabled {
		return
	}
	debug := router.Group("/debug")

	debug.GET("/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		uid := ""
		if id := userIDFromContext(c); id != nil {
			uid = *id
		}
		emitter.Action(c.Request.Context(), "debug.audit_test", "audit pipeline check", requestIDFromContext(c), uid)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	debug.GET("/connections/:user_id", func(c *gin.Context) {
		userID := c.Param("user_id")
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "connections": conns.Connections(userID)})
	})
}
