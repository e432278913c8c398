package grading

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateOneFailingSubjectFailsOverall(t *testing.T) {
	summary, err := Aggregate([]SubjectMarks{
		{SubjectID: "math", MarksObtained: 90, TotalMarks: 100, PassingMarks: 40},
		{SubjectID: "physics", MarksObtained: 30, TotalMarks: 100, PassingMarks: 40},
	})
	require.NoError(t, err)

	require.Len(t, summary.Subjects, 2)
	assert.Equal(t, Pass, summary.Subjects[0].Outcome)
	assert.Equal(t, Fail, summary.Subjects[1].Outcome)
	assert.Equal(t, Fail, summary.OverallStatus)
	assert.InDelta(t, 60, summary.OverallPercentage, 1e-9)
	assert.Equal(t, "C", summary.OverallGrade)
}

func TestAggregateUsesUnweightedMean(t *testing.T) {
	summary, err := Aggregate([]SubjectMarks{
		{SubjectID: "essay", MarksObtained: 10, TotalMarks: 10, PassingMarks: 4},
		{SubjectID: "exam", MarksObtained: 100, TotalMarks: 200, PassingMarks: 80},
	})
	require.NoError(t, err)

	// (100 + 50) / 2, not 110 / 210.
	assert.InDelta(t, 75, summary.OverallPercentage, 1e-9)
	assert.Equal(t, Pass, summary.OverallStatus)
	assert.Equal(t, "B+", summary.OverallGrade)
}

func TestAggregateRejectsEmptyAndInvalid(t *testing.T) {
	_, err := Aggregate(nil)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "subjects", verr.Field)

	_, err = Aggregate([]SubjectMarks{{SubjectID: "bio", MarksObtained: 12, TotalMarks: 10}})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "bio.marks_obtained", verr.Field)
}
