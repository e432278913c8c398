package grading

// SubjectMarks is one line of a multi-subject report.
type SubjectMarks struct {
	SubjectID     string  `json:"subject_id" binding:"required"`
	MarksObtained float64 `json:"marks_obtained"`
	TotalMarks    float64 `json:"total_marks"`
	PassingMarks  float64 `json:"passing_marks"`
}

// SubjectGrade is a graded SubjectMarks.
type SubjectGrade struct {
	SubjectMarks
	Grade
}

// Summary is the overall standing across subjects.
type Summary struct {
	Subjects          []SubjectGrade `json:"subjects"`
	OverallPercentage float64        `json:"overall_percentage"`
	OverallGrade      string         `json:"overall_grade"`
	OverallStatus     Outcome        `json:"overall_status"`
}

// Aggregate grades each subject and combines them. The overall percentage is
// the plain mean of subject percentages regardless of each subject's total,
// and a single failed subject fails the whole summary.
func Aggregate(subjects []SubjectMarks) (Summary, error) {
	if len(subjects) == 0 {
		return Summary{}, &ValidationError{Field: "subjects", Reason: "at least one subject is required"}
	}

	graded := make([]SubjectGrade, 0, len(subjects))
	var sum float64
	overall := Pass
	for _, s := range subjects {
		g, err := Compute(s.MarksObtained, s.TotalMarks, s.PassingMarks)
		if err != nil {
			if verr, ok := err.(*ValidationError); ok {
				return Summary{}, &ValidationError{Field: s.SubjectID + "." + verr.Field, Reason: verr.Reason}
			}
			return Summary{}, err
		}
		if g.Outcome == Fail {
			overall = Fail
		}
		sum += g.Percentage
		graded = append(graded, SubjectGrade{SubjectMarks: s, Grade: g})
	}

	mean := sum / float64(len(graded))
	return Summary{
		Subjects:          graded,
		OverallPercentage: mean,
		OverallGrade:      Letter(mean),
		OverallStatus:     overall,
	}, nil
}
