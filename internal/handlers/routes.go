package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"school-service/internal/middleware"
	"school-service/internal/services"
)

// Routes bundles what the API needs to register its endpoints.
type Routes struct {
	Messages   *MessageHandler
	Results    *ResultHandler
	Grading    *GradingHandler
	Auth       gin.HandlerFunc
	WebSockets gin.HandlerFunc
}

// Register mounts the versioned API, the health check and the websocket endpoint.
func (r Routes) Register(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	staff := middleware.RequireRole(services.RoleTeacher, services.RoleAdmin)

	api := router.Group("/api/v1", r.Auth)

	msgs := api.Group("/messages")
	msgs.POST("", r.Messages.Send)
	msgs.GET("/inbox", r.Messages.Inbox)
	msgs.GET("/sent", r.Messages.Sent)
	msgs.GET("/unread-count", r.Messages.UnreadCount)
	msgs.GET("/:message_id", r.Messages.Get)
	msgs.GET("/:message_id/thread", r.Messages.Thread)
	msgs.POST("/:message_id/read", r.Messages.MarkRead)
	msgs.DELETE("/:message_id", r.Messages.Delete)

	api.POST("/grades/compute", r.Grading.Compute)
	api.POST("/grades/aggregate", r.Grading.Aggregate)

	api.POST("/results", staff, r.Results.Create)
	api.GET("/results/:result_id", r.Results.Get)
	api.PATCH("/results/:result_id/marks", staff, r.Results.UpdateMarks)
	api.POST("/results/:result_id/status", staff, r.Results.Transition)
	api.GET("/students/:student_id/results", r.Results.ListByStudent)
	api.GET("/students/:student_id/report", r.Results.Report)
	api.POST("/submissions/:submission_id/grade", staff, r.Results.GradeSubmission)

	if r.WebSockets != nil {
		router.GET("/ws/notifications", r.Auth, r.WebSockets)
	}
}
