package models

import "time"

// CycleState represents the state of one study cycle.
type CycleState string

const (
	CycleSelecting       CycleState = "selecting"
	CycleGenerating      CycleState = "generating"
	CycleAwaitingAnswers CycleState = "awaiting_answers"
	CycleGrading         CycleState = "grading"
	CycleCommitting      CycleState = "committing"
	CycleDone            CycleState = "done"
	CycleFailed          CycleState = "failed"
)

// Diagnostic records a recovered per-topic or per-subtree failure.
// Diagnostics never abort a cycle; they are returned so the caller can
// see what was skipped or defaulted.
type Diagnostic struct {
	Stage   string `json:"stage"`
	TopicID string `json:"topic_id,omitempty"`
	Err     string `json:"error"`
}

// Diagnostic stages.
const (
	StageExtract  = "extract"
	StageGenerate = "generate"
	StageCollect  = "collect"
	StageGrade    = "grade"
)

// TopicResult is the outcome for one topic within a cycle.
type TopicResult struct {
	TopicID    string   `json:"topic_id"`
	Title      string   `json:"title"`
	Questions  []string `json:"questions"`
	AnswerText string   `json:"answer_text,omitempty"`
	Answered   bool     `json:"answered"`
	Grade      Grade    `json:"grade"`
	Feedback   string   `json:"feedback,omitempty"`
}

// SessionResult is the ephemeral record of one cycle. It is consumed
// by the caller after commit; the progress store is the only durable
// artifact.
type SessionResult struct {
	CycleID     string         `json:"cycle_id"`
	State       CycleState     `json:"state"`
	StartedAt   time.Time      `json:"started_at"`
	Selected    []UrgencyScore `json:"selected"`
	Topics      []TopicResult  `json:"topics"`
	Diagnostics []Diagnostic   `json:"diagnostics,omitempty"`
}

// Failed reports whether the cycle ended in the failed state.
func (r *SessionResult) Failed() bool {
	return r.State == CycleFailed
}
