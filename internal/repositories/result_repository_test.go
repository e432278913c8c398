package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school-service/internal/grading"
	"school-service/internal/models"
)

const resultID = "5a1d6c1e-3f4b-4e0a-8a7f-6b1b2a3c4d5e"

var resultRowColumns = []string{"id", "kind", "student_id", "subject_id", "exam_id", "assignment_id", "submission_id",
	"marks_obtained", "total_marks", "passing_marks", "percentage", "grade", "outcome", "status", "remarks", "graded_by",
	"created_at", "updated_at"}

func TestCreateResultDuplicateSubmission(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewResultRepo(db)

	mock.ExpectQuery(`INSERT INTO results`).WillReturnError(&pq.Error{Code: "23505"})

	sub := "sub-1"
	err := repo.CreateResult(context.Background(), &models.Result{Kind: models.ResultKindAssignment, StudentID: "s-1", SubmissionID: &sub})
	assert.ErrorIs(t, err, ErrDuplicateResult)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusIsCompareAndSet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewResultRepo(db)
	now := time.Now()

	mock.ExpectQuery(`UPDATE results SET status=\$3, updated_at=NOW\(\)\s+WHERE id=\$1 AND status=\$2 RETURNING`).
		WithArgs(resultID, "Draft", "Submitted").
		WillReturnRows(sqlmock.NewRows(resultRowColumns).AddRow(resultID, "exam", "s-1", "math", nil, nil, nil,
			85.0, 100.0, 40.0, 85.0, "A", "Pass", "Submitted", "", "t-1", now, now))
	mock.ExpectQuery(`UPDATE results SET status=\$3`).
		WithArgs(resultID, "Draft", "Submitted").
		WillReturnRows(sqlmock.NewRows(resultRowColumns))

	result, err := repo.UpdateStatus(context.Background(), resultID, models.ResultDraft, models.ResultSubmitted)
	require.NoError(t, err)
	assert.Equal(t, models.ResultSubmitted, result.Status)
	assert.Equal(t, grading.Pass, result.Outcome)

	_, err = repo.UpdateStatus(context.Background(), resultID, models.ResultDraft, models.ResultSubmitted)
	assert.ErrorIs(t, err, ErrStaleResult)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMarksStale(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewResultRepo(db)

	mock.ExpectQuery(`UPDATE results SET marks_obtained=\$3,.* WHERE id=\$1 AND status=\$2 RETURNING updated_at`).
		WithArgs(resultID, "Draft", 50.0, 100.0, 40.0, 50.0, "D", "Pass", "", "t-1").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}))

	err := repo.UpdateMarks(context.Background(), &models.Result{
		ID: resultID, MarksObtained: 50, TotalMarks: 100, PassingMarks: 40,
		Percentage: 50, Grade: "D", Outcome: grading.Pass, GradedBy: "t-1",
	}, models.ResultDraft)
	assert.ErrorIs(t, err, ErrStaleResult)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListResultsBuildsFilter(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewResultRepo(db)

	mock.ExpectQuery(`FROM results WHERE student_id=\$1 AND kind=\$2 AND status=\$3 ORDER BY created_at ASC`).
		WithArgs("s-1", "exam", "Published").
		WillReturnRows(sqlmock.NewRows(resultRowColumns))

	results, err := repo.ListResults(context.Background(), models.ResultFilter{StudentID: "s-1", Kind: models.ResultKindExam, Status: models.ResultPublished})
	require.NoError(t, err)
	assert.Empty(t, results)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetResultRejectsNonUUID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewResultRepo(db)

	_, err := repo.GetResult(context.Background(), "r-1")
	assert.ErrorIs(t, err, ErrResultNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
