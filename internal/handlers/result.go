package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"school-service/internal/middleware"
	"school-service/internal/models"
	"school-service/internal/services"
	"school-service/internal/telemetry"
)

// ResultHandler serves exam results and assignment grading.
type ResultHandler struct {
	results *services.ResultService
	audit   *telemetry.AuditEmitter
}

// NewResultHandler builds a ResultHandler. audit may be nil.
func NewResultHandler(results *services.ResultService, audit *telemetry.AuditEmitter) *ResultHandler {
	return &ResultHandler{results: results, audit: audit}
}

type createResultRequest struct {
	Kind          models.ResultKind `json:"kind" binding:"required,oneof=exam assignment"`
	StudentID     string            `json:"student_id" binding:"notblank"`
	SubjectID     *string           `json:"subject_id"`
	ExamID        *string           `json:"exam_id"`
	AssignmentID  *string           `json:"assignment_id"`
	SubmissionID  *string           `json:"submission_id"`
	MarksObtained *float64          `json:"marks_obtained" binding:"required"`
	TotalMarks    *float64          `json:"total_marks" binding:"required"`
	PassingMarks  *float64          `json:"passing_marks" binding:"required"`
	Remarks       string            `json:"remarks" binding:"max=1000"`
}

// Create records a new Draft result.
func (h *ResultHandler) Create(c *gin.Context) {
	var req createResultRequest
	if !bindJSON(c, &req) {
		return
	}

	gradedBy := c.GetString(middleware.UserIDKey)
	result, err := h.results.Create(c.Request.Context(), gradedBy, services.ResultDraft{
		Kind:          req.Kind,
		StudentID:     req.StudentID,
		SubjectID:     req.SubjectID,
		ExamID:        req.ExamID,
		AssignmentID:  req.AssignmentID,
		SubmissionID:  req.SubmissionID,
		MarksObtained: *req.MarksObtained,
		TotalMarks:    *req.TotalMarks,
		PassingMarks:  *req.PassingMarks,
		Remarks:       req.Remarks,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit.Action(c.Request.Context(), "result.created", fmt.Sprintf("result %s created for student %s", result.ID, result.StudentID), requestIDFromContext(c), gradedBy)
	c.JSON(http.StatusCreated, result)
}

func (h *ResultHandler) Get(c *gin.Context) {
	result, err := h.results.Get(c.Request.Context(), viewerFromContext(c), c.Param("result_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type updateMarksRequest struct {
	MarksObtained *float64 `json:"marks_obtained"`
	TotalMarks    *float64 `json:"total_marks"`
	PassingMarks  *float64 `json:"passing_marks"`
	Remarks       *string  `json:"remarks" binding:"omitempty,max=1000"`
}

// UpdateMarks corrects marks on a result that is not yet published.
func (h *ResultHandler) UpdateMarks(c *gin.Context) {
	var req updateMarksRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.MarksObtained == nil && req.TotalMarks == nil && req.PassingMarks == nil && req.Remarks == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	gradedBy := c.GetString(middleware.UserIDKey)
	result, err := h.results.UpdateMarks(c.Request.Context(), gradedBy, c.Param("result_id"), services.MarksUpdate{
		MarksObtained: req.MarksObtained,
		TotalMarks:    req.TotalMarks,
		PassingMarks:  req.PassingMarks,
		Remarks:       req.Remarks,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit.Action(c.Request.Context(), "result.marks_updated", fmt.Sprintf("result %s regraded to %s", result.ID, result.Grade), requestIDFromContext(c), gradedBy)
	c.JSON(http.StatusOK, result)
}

type transitionRequest struct {
	Status models.ResultStatus `json:"status" binding:"required,oneof=Draft Submitted Published"`
}

// Transition moves a result one step forward in its lifecycle.
func (h *ResultHandler) Transition(c *gin.Context) {
	var req transitionRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.results.Transition(c.Request.Context(), c.Param("result_id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit.Action(c.Request.Context(), "result.status_changed", fmt.Sprintf("result %s moved to %s", result.ID, result.Status), requestIDFromContext(c), c.GetString(middleware.UserIDKey))
	c.JSON(http.StatusOK, result)
}

// ListByStudent lists a student's results, optionally filtered by ?kind=.
func (h *ResultHandler) ListByStudent(c *gin.Context) {
	kind := models.ResultKind(c.Query("kind"))
	if kind != "" && kind != models.ResultKindExam && kind != models.ResultKindAssignment {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid kind"})
		return
	}

	results, err := h.results.ListByStudent(c.Request.Context(), viewerFromContext(c), c.Param("student_id"), kind)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// Report aggregates published exam results, optionally for one ?exam_id=.
func (h *ResultHandler) Report(c *gin.Context) {
	report, err := h.results.StudentReport(c.Request.Context(), viewerFromContext(c), c.Param("student_id"), c.Query("exam_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type gradeSubmissionRequest struct {
	AssignmentID  string   `json:"assignment_id" binding:"notblank"`
	StudentID     string   `json:"student_id" binding:"notblank"`
	MarksObtained *float64 `json:"marks_obtained" binding:"required"`
	TotalMarks    *float64 `json:"total_marks" binding:"required"`
	PassingMarks  *float64 `json:"passing_marks" binding:"required"`
	Remarks       string   `json:"remarks" binding:"max=1000"`
}

// GradeSubmission grades, or regrades, an assignment submission.
func (h *ResultHandler) GradeSubmission(c *gin.Context) {
	var req gradeSubmissionRequest
	if !bindJSON(c, &req) {
		return
	}

	gradedBy := c.GetString(middleware.UserIDKey)
	result, err := h.results.GradeSubmission(c.Request.Context(), gradedBy, c.Param("submission_id"), services.SubmissionGrade{
		AssignmentID:  req.AssignmentID,
		StudentID:     req.StudentID,
		MarksObtained: *req.MarksObtained,
		TotalMarks:    *req.TotalMarks,
		PassingMarks:  *req.PassingMarks,
		Remarks:       req.Remarks,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit.Action(c.Request.Context(), "submission.graded", fmt.Sprintf("submission %s graded %s", c.Param("submission_id"), result.Grade), requestIDFromContext(c), gradedBy)
	c.JSON(http.StatusOK, result)
}
