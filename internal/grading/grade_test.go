package grading

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeScenarios(t *testing.T) {
	cases := []struct {
		name    string
		marks   float64
		total   float64
		passing float64
		want    Grade
	}{
		{"distinction band", 85, 100, 40, Grade{Percentage: 85, Letter: "A", Outcome: Pass}},
		{"below pass mark", 38, 100, 40, Grade{Percentage: 38, Letter: "F", Outcome: Fail}},
		{"full marks", 50, 50, 20, Grade{Percentage: 100, Letter: "A+", Outcome: Pass}},
		{"zero marks", 0, 30, 12, Grade{Percentage: 0, Letter: "F", Outcome: Fail}},
		{"scaled total", 39, 60, 24, Grade{Percentage: 65, Letter: "C+", Outcome: Pass}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compute(tc.marks, tc.total, tc.passing)
			require.NoError(t, err)
			assert.InDelta(t, tc.want.Percentage, got.Percentage, 1e-9)
			assert.Equal(t, tc.want.Letter, got.Letter)
			assert.Equal(t, tc.want.Outcome, got.Outcome)
		})
	}
}

func TestComputeBandEdges(t *testing.T) {
	edges := map[float64]string{
		90: "A+", 89.99: "A",
		80: "A", 79.99: "B+",
		75: "B+", 74.99: "B",
		70: "B", 69.99: "C+",
		65: "C+", 64.99: "C",
		60: "C", 59.99: "D",
		50: "D", 49.99: "F",
	}
	for marks, letter := range edges {
		got, err := Compute(marks, 100, 40)
		require.NoError(t, err)
		assert.Equal(t, letter, got.Letter, "marks %v", marks)
	}
}

func TestComputePassBoundaryIsInclusive(t *testing.T) {
	for _, total := range []float64{7, 30, 100, 120, 333} {
		passing := math.Round(total * 0.4)
		got, err := Compute(passing, total, passing)
		require.NoError(t, err)
		assert.Equal(t, Pass, got.Outcome, "total %v", total)

		below := passing - 0.5
		got, err = Compute(below, total, passing)
		require.NoError(t, err)
		assert.Equal(t, Fail, got.Outcome, "total %v", total)
	}
}

func TestComputeMonotonic(t *testing.T) {
	for _, total := range []float64{10, 37, 100, 250} {
		prev, err := Compute(0, total, total/2)
		require.NoError(t, err)
		for marks := 0.25; marks <= total; marks += 0.25 {
			cur, err := Compute(marks, total, total/2)
			require.NoError(t, err)
			require.GreaterOrEqual(t, cur.Percentage, prev.Percentage, "total %v marks %v", total, marks)
			require.GreaterOrEqual(t, Rank(cur.Letter), Rank(prev.Letter), "total %v marks %v", total, marks)
			prev = cur
		}
	}
}

func TestComputeRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		name    string
		marks   float64
		total   float64
		passing float64
		field   string
	}{
		{"marks above total", 101, 100, 40, "marks_obtained"},
		{"negative marks", -1, 100, 40, "marks_obtained"},
		{"zero total", 0, 0, 0, "total_marks"},
		{"negative total", 5, -10, 0, "total_marks"},
		{"passing above total", 10, 20, 21, "passing_marks"},
		{"negative passing", 10, 20, -1, "passing_marks"},
		{"nan marks", math.NaN(), 100, 40, "marks_obtained"},
		{"infinite total", 10, math.Inf(1), 40, "total_marks"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compute(tc.marks, tc.total, tc.passing)
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
			assert.Equal(t, Grade{}, got)
		})
	}
}

func TestRankOrdering(t *testing.T) {
	letters := []string{"F", "D", "C", "C+", "B", "B+", "A", "A+"}
	for i := 1; i < len(letters); i++ {
		assert.Greater(t, Rank(letters[i]), Rank(letters[i-1]))
	}
	assert.Less(t, Rank("Z"), Rank("F"))
}
