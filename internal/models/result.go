package models

import (
	"time"

	"school-service/internal/grading"
)

// ResultKind distinguishes exam marks from assignment grading.
type ResultKind string

const (
	ResultKindExam       ResultKind = "exam"
	ResultKindAssignment ResultKind = "assignment"
)

// ResultStatus is the editorial lifecycle of a result.
type ResultStatus string

const (
	ResultDraft     ResultStatus = "Draft"
	ResultSubmitted ResultStatus = "Submitted"
	ResultPublished ResultStatus = "Published"
)

// Next returns the only status a result may move to from s.
func (s ResultStatus) Next() (ResultStatus, bool) {
	switch s {
	case ResultDraft:
		return ResultSubmitted, true
	case ResultSubmitted:
		return ResultPublished, true
	}
	return "", false
}

// CanAdvanceTo reports whether s -> next is a legal transition.
func (s ResultStatus) CanAdvanceTo(next ResultStatus) bool {
	allowed, ok := s.Next()
	return ok && allowed == next
}

// Valid reports whether s is a known status.
func (s ResultStatus) Valid() bool {
	switch s {
	case ResultDraft, ResultSubmitted, ResultPublished:
		return true
	}
	return false
}

// Result holds raw marks together with the grade derived from them.
// Percentage, Grade and Outcome are never written independently of the marks.
type Result struct {
	ID            string          `db:"id" bson:"_id" json:"id"`
	Kind          ResultKind      `db:"kind" bson:"kind" json:"kind"`
	StudentID     string          `db:"student_id" bson:"student_id" json:"student_id"`
	SubjectID     *string         `db:"subject_id" bson:"subject_id,omitempty" json:"subject_id,omitempty"`
	ExamID        *string         `db:"exam_id" bson:"exam_id,omitempty" json:"exam_id,omitempty"`
	AssignmentID  *string         `db:"assignment_id" bson:"assignment_id,omitempty" json:"assignment_id,omitempty"`
	SubmissionID  *string         `db:"submission_id" bson:"submission_id,omitempty" json:"submission_id,omitempty"`
	MarksObtained float64         `db:"marks_obtained" bson:"marks_obtained" json:"marks_obtained"`
	TotalMarks    float64         `db:"total_marks" bson:"total_marks" json:"total_marks"`
	PassingMarks  float64         `db:"passing_marks" bson:"passing_marks" json:"passing_marks"`
	Percentage    float64         `db:"percentage" bson:"percentage" json:"percentage"`
	Grade         string          `db:"grade" bson:"grade" json:"grade"`
	Outcome       grading.Outcome `db:"outcome" bson:"outcome" json:"outcome"`
	Status        ResultStatus    `db:"status" bson:"status" json:"status"`
	Remarks       string          `db:"remarks" bson:"remarks" json:"remarks,omitempty"`
	GradedBy      string          `db:"graded_by" bson:"graded_by" json:"graded_by"`
	CreatedAt     time.Time       `db:"created_at" bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" bson:"updated_at" json:"updated_at"`
}

// ApplyGrade copies a computed grade onto the result.
func (r *Result) ApplyGrade(g grading.Grade) {
	r.Percentage = g.Percentage
	r.Grade = g.Letter
	r.Outcome = g.Outcome
}

// ResultFilter narrows result listings.
type ResultFilter struct {
	StudentID string
	ExamID    string
	Kind      ResultKind
	Status    ResultStatus
}

// StudentReport is the aggregate standing of a student across subjects.
type StudentReport struct {
	StudentID string `json:"student_id"`
	grading.Summary
}
