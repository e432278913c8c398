package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"school-service/internal/grading"
	"school-service/internal/models"
	"school-service/internal/observability"
	"school-service/internal/repositories"
)

// Roles carried in access tokens.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleParent  = "parent"
	RoleStudent = "student"
)

// Viewer is the caller on whose behalf results are read.
type Viewer struct {
	UserID     string
	Role       string
	StudentIDs []string
}

// IsStaff reports whether the viewer may see unpublished results.
func (v Viewer) IsStaff() bool {
	return v.Role == RoleAdmin || v.Role == RoleTeacher
}

// CanSee reports whether the viewer may read results of studentID.
func (v Viewer) CanSee(studentID string) bool {
	switch v.Role {
	case RoleAdmin, RoleTeacher:
		return true
	case RoleStudent:
		return v.UserID == studentID
	case RoleParent:
		for _, id := range v.StudentIDs {
			if id == studentID {
				return true
			}
		}
	}
	return false
}

// ResultDraft is the input for a new result.
type ResultDraft struct {
	Kind          models.ResultKind
	StudentID     string
	SubjectID     *string
	ExamID        *string
	AssignmentID  *string
	SubmissionID  *string
	MarksObtained float64
	TotalMarks    float64
	PassingMarks  float64
	Remarks       string
}

// MarksUpdate carries the fields of a marks correction. Nil fields keep the
// stored value.
type MarksUpdate struct {
	MarksObtained *float64
	TotalMarks    *float64
	PassingMarks  *float64
	Remarks       *string
}

// SubmissionGrade grades one assignment submission.
type SubmissionGrade struct {
	AssignmentID  string
	StudentID     string
	MarksObtained float64
	TotalMarks    float64
	PassingMarks  float64
	Remarks       string
}

// ResultService owns the result lifecycle. Derived grade fields are always
// recomputed from the marks being written.
type ResultService struct {
	repo     repositories.ResultRepository
	notifier Notifier
	events   EventPublisher
}

// NewResultService builds a ResultService. notifier and events may be nil.
func NewResultService(repo repositories.ResultRepository, notifier Notifier, events EventPublisher) *ResultService {
	return &ResultService{
		repo:     repo,
		notifier: notifier,
		events:   events,
	}
}

// Create stores a new Draft result graded by gradedBy.
func (s *ResultService) Create(ctx context.Context, gradedBy string, draft ResultDraft) (models.Result, error) {
	if err := validateDraft(draft); err != nil {
		return models.Result{}, err
	}
	grade, err := grading.Compute(draft.MarksObtained, draft.TotalMarks, draft.PassingMarks)
	if err != nil {
		return models.Result{}, err
	}

	result := models.Result{
		Kind:          draft.Kind,
		StudentID:     strings.TrimSpace(draft.StudentID),
		SubjectID:     trimmed(draft.SubjectID),
		ExamID:        trimmed(draft.ExamID),
		AssignmentID:  trimmed(draft.AssignmentID),
		SubmissionID:  trimmed(draft.SubmissionID),
		MarksObtained: draft.MarksObtained,
		TotalMarks:    draft.TotalMarks,
		PassingMarks:  draft.PassingMarks,
		Status:        models.ResultDraft,
		Remarks:       strings.TrimSpace(draft.Remarks),
		GradedBy:      gradedBy,
	}
	result.ApplyGrade(grade)

	if err := s.repo.CreateResult(ctx, &result); err != nil {
		if errors.Is(err, repositories.ErrDuplicateResult) {
			return models.Result{}, fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return models.Result{}, storageError("create result", err)
	}
	return result, nil
}

func validateDraft(d ResultDraft) error {
	if strings.TrimSpace(d.StudentID) == "" {
		return fmt.Errorf("%w: student_id is required", ErrInvalidResult)
	}
	switch d.Kind {
	case models.ResultKindExam:
		if isBlank(d.SubjectID) {
			return fmt.Errorf("%w: subject_id is required for exam results", ErrInvalidResult)
		}
	case models.ResultKindAssignment:
		if isBlank(d.AssignmentID) {
			return fmt.Errorf("%w: assignment_id is required for assignment results", ErrInvalidResult)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidResult, d.Kind)
	}
	return nil
}

// Get returns a result the viewer is allowed to see. Hidden results look
// missing rather than forbidden.
func (s *ResultService) Get(ctx context.Context, viewer Viewer, resultID string) (models.Result, error) {
	result, err := s.load(ctx, resultID)
	if err != nil {
		return models.Result{}, err
	}
	if !viewer.CanSee(result.StudentID) {
		return models.Result{}, ErrForbidden
	}
	if !viewer.IsStaff() && result.Status != models.ResultPublished {
		return models.Result{}, repositories.ErrResultNotFound
	}
	return result, nil
}

// UpdateMarks corrects the marks of an unpublished result.
func (s *ResultService) UpdateMarks(ctx context.Context, gradedBy, resultID string, update MarksUpdate) (models.Result, error) {
	result, err := s.load(ctx, resultID)
	if err != nil {
		return models.Result{}, err
	}
	return s.regrade(ctx, result, gradedBy, update)
}

func (s *ResultService) regrade(ctx context.Context, result models.Result, gradedBy string, update MarksUpdate) (models.Result, error) {
	if result.Status == models.ResultPublished {
		return models.Result{}, fmt.Errorf("%w: published results cannot be changed", ErrConflict)
	}

	if update.MarksObtained != nil {
		result.MarksObtained = *update.MarksObtained
	}
	if update.TotalMarks != nil {
		result.TotalMarks = *update.TotalMarks
	}
	if update.PassingMarks != nil {
		result.PassingMarks = *update.PassingMarks
	}
	if update.Remarks != nil {
		result.Remarks = strings.TrimSpace(*update.Remarks)
	}

	grade, err := grading.Compute(result.MarksObtained, result.TotalMarks, result.PassingMarks)
	if err != nil {
		return models.Result{}, err
	}
	result.ApplyGrade(grade)
	result.GradedBy = gradedBy

	if err := s.repo.UpdateMarks(ctx, &result, result.Status); err != nil {
		if errors.Is(err, repositories.ErrStaleResult) {
			return models.Result{}, fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return models.Result{}, storageError("update marks", err)
	}
	return result, nil
}

// Transition advances a result one step along Draft, Submitted, Published.
func (s *ResultService) Transition(ctx context.Context, resultID string, to models.ResultStatus) (models.Result, error) {
	if !to.Valid() {
		return models.Result{}, fmt.Errorf("%w: unknown status %q", ErrInvalidResult, to)
	}
	current, err := s.load(ctx, resultID)
	if err != nil {
		return models.Result{}, err
	}
	if !current.Status.CanAdvanceTo(to) {
		return models.Result{}, fmt.Errorf("%w: cannot move result from %s to %s", ErrConflict, current.Status, to)
	}

	updated, err := s.repo.UpdateStatus(ctx, resultID, current.Status, to)
	if err != nil {
		if errors.Is(err, repositories.ErrStaleResult) {
			return models.Result{}, fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return models.Result{}, storageError("update status", err)
	}

	observability.IncResultTransition(string(to))

	if to == models.ResultPublished {
		if s.notifier != nil {
			s.notifier.NotifyUsers([]string{updated.StudentID}, models.NotificationEvent{Type: "result.published", UserID: updated.StudentID})
		}
		publishEvent(ctx, s.events, "results.published", "result_published", map[string]any{
			"result_id":  updated.ID,
			"student_id": updated.StudentID,
			"kind":       updated.Kind,
			"grade":      updated.Grade,
			"outcome":    updated.Outcome,
		})
	}
	return updated, nil
}

// ListByStudent lists a student's results visible to the viewer.
func (s *ResultService) ListByStudent(ctx context.Context, viewer Viewer, studentID string, kind models.ResultKind) ([]models.Result, error) {
	if !viewer.CanSee(studentID) {
		return nil, ErrForbidden
	}
	filter := models.ResultFilter{StudentID: studentID, Kind: kind}
	if !viewer.IsStaff() {
		filter.Status = models.ResultPublished
	}
	results, err := s.repo.ListResults(ctx, filter)
	if err != nil {
		return nil, storageError("list results", err)
	}
	return results, nil
}

// StudentReport aggregates a student's published exam results. Without an
// exam id the most recent result of each subject is used.
func (s *ResultService) StudentReport(ctx context.Context, viewer Viewer, studentID, examID string) (models.StudentReport, error) {
	if !viewer.CanSee(studentID) {
		return models.StudentReport{}, ErrForbidden
	}
	results, err := s.repo.ListResults(ctx, models.ResultFilter{
		StudentID: studentID,
		ExamID:    examID,
		Kind:      models.ResultKindExam,
		Status:    models.ResultPublished,
	})
	if err != nil {
		return models.StudentReport{}, storageError("list results", err)
	}

	latest := map[string]models.Result{}
	var order []string
	for _, r := range results {
		if r.SubjectID == nil {
			continue
		}
		prev, seen := latest[*r.SubjectID]
		if !seen {
			order = append(order, *r.SubjectID)
		}
		if !seen || !r.CreatedAt.Before(prev.CreatedAt) {
			latest[*r.SubjectID] = r
		}
	}
	if len(order) == 0 {
		return models.StudentReport{}, repositories.ErrResultNotFound
	}

	subjects := make([]grading.SubjectMarks, 0, len(order))
	for _, id := range order {
		r := latest[id]
		subjects = append(subjects, grading.SubjectMarks{
			SubjectID:     id,
			MarksObtained: r.MarksObtained,
			TotalMarks:    r.TotalMarks,
			PassingMarks:  r.PassingMarks,
		})
	}
	summary, err := grading.Aggregate(subjects)
	if err != nil {
		return models.StudentReport{}, err
	}
	return models.StudentReport{StudentID: studentID, Summary: summary}, nil
}

// GradeSubmission creates the assignment result for a submission, or
// regrades it when one already exists.
func (s *ResultService) GradeSubmission(ctx context.Context, gradedBy, submissionID string, in SubmissionGrade) (models.Result, error) {
	submissionID = strings.TrimSpace(submissionID)
	if submissionID == "" {
		return models.Result{}, fmt.Errorf("%w: submission_id is required", ErrInvalidResult)
	}

	existing, err := s.repo.FindBySubmission(ctx, submissionID)
	switch {
	case err == nil:
		if in.StudentID != "" && in.StudentID != existing.StudentID {
			return models.Result{}, fmt.Errorf("%w: submission belongs to another student", ErrConflict)
		}
		remarks := in.Remarks
		return s.regrade(ctx, existing, gradedBy, MarksUpdate{
			MarksObtained: &in.MarksObtained,
			TotalMarks:    &in.TotalMarks,
			PassingMarks:  &in.PassingMarks,
			Remarks:       &remarks,
		})
	case !errors.Is(err, repositories.ErrResultNotFound):
		return models.Result{}, storageError("find submission result", err)
	}

	return s.Create(ctx, gradedBy, ResultDraft{
		Kind:          models.ResultKindAssignment,
		StudentID:     in.StudentID,
		AssignmentID:  &in.AssignmentID,
		SubmissionID:  &submissionID,
		MarksObtained: in.MarksObtained,
		TotalMarks:    in.TotalMarks,
		PassingMarks:  in.PassingMarks,
		Remarks:       in.Remarks,
	})
}

func (s *ResultService) load(ctx context.Context, resultID string) (models.Result, error) {
	result, err := s.repo.GetResult(ctx, resultID)
	if err != nil {
		if errors.Is(err, repositories.ErrResultNotFound) {
			return models.Result{}, err
		}
		return models.Result{}, storageError("load result", err)
	}
	return result, nil
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func trimmed(s *string) *string {
	if isBlank(s) {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
