package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"school-service/internal/models"
)

var (
	ErrResultNotFound  = errors.New("result not found")
	ErrStaleResult     = errors.New("result changed concurrently")
	ErrDuplicateResult = errors.New("result already exists")
)

// ResultRepository abstracts result persistence. Mutations are conditional on
// the status the caller last observed.
type ResultRepository interface {
	CreateResult(ctx context.Context, result *models.Result) error
	GetResult(ctx context.Context, resultID string) (models.Result, error)
	FindBySubmission(ctx context.Context, submissionID string) (models.Result, error)
	ListResults(ctx context.Context, filter models.ResultFilter) ([]models.Result, error)
	UpdateMarks(ctx context.Context, result *models.Result, expected models.ResultStatus) error
	UpdateStatus(ctx context.Context, resultID string, from, to models.ResultStatus) (models.Result, error)
}

// ResultRepo is a sqlx implementation of ResultRepository.
type ResultRepo struct {
	db *sqlx.DB
}

// NewResultRepo constructs a ResultRepo.
func NewResultRepo(db *sqlx.DB) *ResultRepo {
	return &ResultRepo{db: db}
}

const resultColumns = `id, kind, student_id, subject_id, exam_id, assignment_id, submission_id, marks_obtained, total_marks,
        passing_marks, percentage, grade, outcome, status, remarks, graded_by, created_at, updated_at`

// CreateResult inserts a result.
func (r *ResultRepo) CreateResult(ctx context.Context, result *models.Result) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	err := r.db.QueryRowxContext(ctx, `INSERT INTO results (id, kind, student_id, subject_id, exam_id, assignment_id, submission_id,
        marks_obtained, total_marks, passing_marks, percentage, grade, outcome, status, remarks, graded_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
        RETURNING created_at, updated_at`,
		result.ID, result.Kind, result.StudentID, result.SubjectID, result.ExamID, result.AssignmentID, result.SubmissionID,
		result.MarksObtained, result.TotalMarks, result.PassingMarks, result.Percentage, result.Grade, result.Outcome,
		result.Status, result.Remarks, result.GradedBy).
		Scan(&result.CreatedAt, &result.UpdatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicateResult
	}
	return err
}

// GetResult fetches a result by id.
func (r *ResultRepo) GetResult(ctx context.Context, resultID string) (models.Result, error) {
	if _, err := uuid.Parse(resultID); err != nil {
		return models.Result{}, ErrResultNotFound
	}
	var result models.Result
	err := r.db.GetContext(ctx, &result, `SELECT `+resultColumns+` FROM results WHERE id=$1`, resultID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Result{}, ErrResultNotFound
	}
	return result, err
}

// FindBySubmission fetches the result grading a submission.
func (r *ResultRepo) FindBySubmission(ctx context.Context, submissionID string) (models.Result, error) {
	var result models.Result
	err := r.db.GetContext(ctx, &result, `SELECT `+resultColumns+` FROM results WHERE submission_id=$1`, submissionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Result{}, ErrResultNotFound
	}
	return result, err
}

// ListResults returns results matching filter ordered by creation.
func (r *ResultRepo) ListResults(ctx context.Context, filter models.ResultFilter) ([]models.Result, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.StudentID != "" {
		add("student_id=$%d", filter.StudentID)
	}
	if filter.ExamID != "" {
		add("exam_id=$%d", filter.ExamID)
	}
	if filter.Kind != "" {
		add("kind=$%d", filter.Kind)
	}
	if filter.Status != "" {
		add("status=$%d", filter.Status)
	}

	query := `SELECT ` + resultColumns + ` FROM results`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at ASC`

	results := []models.Result{}
	err := r.db.SelectContext(ctx, &results, query, args...)
	return results, err
}

// UpdateMarks writes marks and derived grade fields when the stored status
// still equals expected.
func (r *ResultRepo) UpdateMarks(ctx context.Context, result *models.Result, expected models.ResultStatus) error {
	err := r.db.QueryRowxContext(ctx, `UPDATE results SET marks_obtained=$3, total_marks=$4, passing_marks=$5,
        percentage=$6, grade=$7, outcome=$8, remarks=$9, graded_by=$10, updated_at=NOW()
        WHERE id=$1 AND status=$2 RETURNING updated_at`,
		result.ID, expected, result.MarksObtained, result.TotalMarks, result.PassingMarks,
		result.Percentage, result.Grade, result.Outcome, result.Remarks, result.GradedBy).
		Scan(&result.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrStaleResult
	}
	return err
}

// UpdateStatus moves a result from one status to another as a compare-and-set.
func (r *ResultRepo) UpdateStatus(ctx context.Context, resultID string, from, to models.ResultStatus) (models.Result, error) {
	var result models.Result
	err := r.db.GetContext(ctx, &result, `UPDATE results SET status=$3, updated_at=NOW()
        WHERE id=$1 AND status=$2 RETURNING `+resultColumns, resultID, from, to)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Result{}, ErrStaleResult
	}
	return result, err
}
