// Package models contains domain models for studycoach.
package models

import "strings"

// Grade is the closed three-valued performance rating for one review.
type Grade string

const (
	GradeLow    Grade = "low"
	GradeMedium Grade = "medium"
	GradeHigh   Grade = "high"
)

// Rank returns the total order of a grade: low=1, medium=2, high=3.
// Unknown grades rank as low so comparisons stay defined.
func (g Grade) Rank() int {
	switch g {
	case GradeHigh:
		return 3
	case GradeMedium:
		return 2
	default:
		return 1
	}
}

// Valid reports whether g is one of the three known grades.
func (g Grade) Valid() bool {
	switch g {
	case GradeLow, GradeMedium, GradeHigh:
		return true
	}
	return false
}

// ParseGrade normalizes free-form evaluator output into a Grade.
// Exact matches win; otherwise a substring match is attempted and
// anything unrecognized falls back to low.
func ParseGrade(s string) Grade {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "low", "medium", "high":
		return Grade(v)
	}
	switch {
	case strings.Contains(v, "high"):
		return GradeHigh
	case strings.Contains(v, "medium"), strings.Contains(v, "mid"):
		return GradeMedium
	default:
		return GradeLow
	}
}
