package quiz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQuiz() *Quiz {
	return &Quiz{
		Easy: []Question{
			{Text: "e1", Answer: "a1"},
			{Text: "e2", Answer: "a2"},
		},
		Development: []Question{
			{Text: "d1", Answer: "a3"},
			{Text: "d2", Answer: "a4"},
		},
		CaseStudy: []Question{
			{Text: "c1", Answer: "a5"},
			{Text: "c2", Answer: "a6"},
		},
	}
}

func TestQuizValidate_TableDriven(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(q *Quiz)
		wantErr string
	}{
		{
			name:   "valid quiz",
			mutate: func(q *Quiz) {},
		},
		{
			name:    "missing section",
			mutate:  func(q *Quiz) { q.CaseStudy = nil },
			wantErr: "case_study",
		},
		{
			name:    "too many questions",
			mutate:  func(q *Quiz) { q.Easy = append(q.Easy, Question{Text: "e3"}) },
			wantErr: "easy",
		},
		{
			name:    "empty question text",
			mutate:  func(q *Quiz) { q.Development[1].Text = "" },
			wantErr: "development question 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validQuiz()
			tt.mutate(q)

			err := q.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestQuizFlatten(t *testing.T) {
	got := validQuiz().Flatten()
	assert.Equal(t, []string{"e1", "e2", "d1", "d2", "c1", "c2"}, got)
}

func TestTokenBudget_Truncate(t *testing.T) {
	budget, err := NewTokenBudget(10)
	require.NoError(t, err)

	short := "one two three"
	assert.Equal(t, short, budget.Truncate(short))

	long := strings.Repeat("the quick brown fox jumps over the lazy dog ", 50)
	truncated := budget.Truncate(long)
	assert.Less(t, len(truncated), len(long))
	assert.LessOrEqual(t, budget.Count(truncated), 10)
	assert.True(t, strings.HasPrefix(long, truncated))
}

func TestTokenBudget_Disabled(t *testing.T) {
	budget, err := NewTokenBudget(0)
	require.NoError(t, err)

	long := strings.Repeat("word ", 1000)
	assert.Equal(t, long, budget.Truncate(long))
}
