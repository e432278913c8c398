// Package grading turns raw marks into a percentage, a letter grade and a
// pass/fail outcome. Every call site in the service (exam results, assignment
// feedback, the grading RPC) goes through Compute so the same scale applies
// everywhere.
package grading

import (
	"fmt"
	"math"
)

// Outcome is the academic result of a graded piece of work.
type Outcome string

const (
	Pass Outcome = "Pass"
	Fail Outcome = "Fail"
)

// Band maps every percentage at or above Min to Letter.
type Band struct {
	Min    float64
	Letter string
}

// Scale is the canonical grading table, ordered by descending Min.
// Anything below the last band is FailingLetter.
var Scale = []Band{
	{Min: 90, Letter: "A+"},
	{Min: 80, Letter: "A"},
	{Min: 75, Letter: "B+"},
	{Min: 70, Letter: "B"},
	{Min: 65, Letter: "C+"},
	{Min: 60, Letter: "C"},
	{Min: 50, Letter: "D"},
}

const FailingLetter = "F"

// ValidationError reports an input that cannot be graded.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Grade is the derived part of a result.
type Grade struct {
	Percentage float64 `json:"percentage"`
	Letter     string  `json:"grade"`
	Outcome    Outcome `json:"status"`
}

// Compute grades marksObtained out of totalMarks against passingMarks.
// Invalid input never yields a partial Grade.
func Compute(marksObtained, totalMarks, passingMarks float64) (Grade, error) {
	if err := Validate(marksObtained, totalMarks, passingMarks); err != nil {
		return Grade{}, err
	}

	percentage := Percentage(marksObtained, totalMarks)
	outcome := Fail
	if percentage >= Percentage(passingMarks, totalMarks) {
		outcome = Pass
	}
	return Grade{
		Percentage: percentage,
		Letter:     Letter(percentage),
		Outcome:    outcome,
	}, nil
}

// Validate checks the preconditions of Compute.
func Validate(marksObtained, totalMarks, passingMarks float64) error {
	for _, v := range []struct {
		field string
		value float64
	}{
		{"marks_obtained", marksObtained},
		{"total_marks", totalMarks},
		{"passing_marks", passingMarks},
	} {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) {
			return &ValidationError{Field: v.field, Reason: "must be a finite number"}
		}
	}

	switch {
	case totalMarks <= 0:
		return &ValidationError{Field: "total_marks", Reason: "must be greater than zero"}
	case marksObtained < 0:
		return &ValidationError{Field: "marks_obtained", Reason: "cannot be negative"}
	case marksObtained > totalMarks:
		return &ValidationError{Field: "marks_obtained", Reason: "cannot exceed total_marks"}
	case passingMarks < 0:
		return &ValidationError{Field: "passing_marks", Reason: "cannot be negative"}
	case passingMarks > totalMarks:
		return &ValidationError{Field: "passing_marks", Reason: "cannot exceed total_marks"}
	}
	return nil
}

// Percentage returns marks as a share of total, scaled to 100. Multiplying
// first keeps whole-number inputs exact.
func Percentage(marks, total float64) float64 {
	return marks * 100 / total
}

// Letter maps a percentage onto Scale; first match wins.
func Letter(percentage float64) string {
	for _, band := range Scale {
		if percentage >= band.Min {
			return band.Letter
		}
	}
	return FailingLetter
}

// Rank orders letters so that higher grades compare greater. Unknown letters
// rank below F.
func Rank(letter string) int {
	for i, band := range Scale {
		if band.Letter == letter {
			return len(Scale) - i
		}
	}
	if letter == FailingLetter {
		return 0
	}
	return -1
}
