package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"school-service/internal/grading"
	"school-service/internal/observability"
)

// GradingHandler exposes the stateless grade calculator.
type GradingHandler struct{}

func NewGradingHandler() *GradingHandler {
	return &GradingHandler{}
}

type computeRequest struct {
	MarksObtained *float64 `json:"marks_obtained" binding:"required"`
	TotalMarks    *float64 `json:"total_marks" binding:"required"`
	PassingMarks  *float64 `json:"passing_marks" binding:"required"`
}

func (h *GradingHandler) Compute(c *gin.Context) {
	var req computeRequest
	if !bindJSON(c, &req) {
		return
	}

	g, err := grading.Compute(*req.MarksObtained, *req.TotalMarks, *req.PassingMarks)
	if err != nil {
		respondError(c, err)
		return
	}
	observability.IncGradeComputed(string(g.Outcome))
	c.JSON(http.StatusOK, g)
}

type aggregateRequest struct {
	Subjects []grading.SubjectMarks `json:"subjects" binding:"required,min=1,dive"`
}

func (h *GradingHandler) Aggregate(c *gin.Context) {
	var req aggregateRequest
	if !bindJSON(c, &req) {
		return
	}

	summary, err := grading.Aggregate(req.Subjects)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
