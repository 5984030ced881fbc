package models

// Topic is an atomic study unit derived from a node in the source
// content hierarchy.
type Topic struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Depth   int    `json:"depth"`
}

// UrgencyScore is the per-session score that drives topic selection.
// The three components are retained so a selection can be explained
// and asserted on in tests; scores are never persisted.
type UrgencyScore struct {
	TopicID     string  `json:"topic_id"`
	Value       float64 `json:"value"`
	Forgetting  float64 `json:"forgetting"`
	Performance float64 `json:"performance"`
	Starvation  float64 `json:"starvation"`
}
