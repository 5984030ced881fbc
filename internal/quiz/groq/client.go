// Package groq implements quiz.Generator and quiz.Evaluator against
// the Groq OpenAI-compatible chat completions API.
package groq

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/dmaranges/studycoach/internal/quiz"
	"github.com/dmaranges/studycoach/pkg/models"
)

const (
	defaultBaseURL = "https://api.groq.com/openai"
	defaultModel   = "llama-3.3-70b-versatile"

	generateTemperature = 0.5
	evaluateTemperature = 0.2
)

// Config configures the Groq client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	// Budget bounds topic content shipped in prompts; nil disables
	// truncation.
	Budget *quiz.TokenBudget
}

// Client calls the chat completions endpoint for both question
// generation and answer grading.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	budget     *quiz.TokenBudget
	httpClient *http.Client
}

// New creates a Groq client.
func New(cfg Config) *Client {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		budget:     cfg.Budget,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const generateSystemPrompt = "You are a helpful assistant that produces exam questions as pure JSON."

const generatePromptTemplate = `Act as a senior technical examiner.

Goal: produce a deep, practical exam based on the following text ("%s").

Question strategy:
1. Mine the text for hard data: exact commands, payloads, dosages, configuration flags, error messages, code lines.
2. Prefer scenarios over definitions: "you are in situation Y with error Z, write the exact fix" beats "what is X".

Return valid JSON with exactly this structure, two questions per section:
{
  "easy": [{"question": "...", "answer": "..."}, {"question": "...", "answer": "..."}],
  "development": [{"question": "...", "answer": "..."}, {"question": "...", "answer": "..."}],
  "case_study": [{"question": "...", "answer": "..."}, {"question": "...", "answer": "..."}]
}

Sections:
- "easy": precise basics — technical definitions, command flags, default values, syntax.
- "development": analysis — explain why something works, compare two methods from the text.
- "case_study": a realistic scenario the learner resolves by applying a specific fact from the text.

Rules:
- No generic questions such as "what does the text say".
- If the text contains code, make the learner interpret or complete code.

Source text:
%s`

// Generate implements quiz.Generator. Any transport, decoding or
// structural failure wraps quiz.ErrGeneration.
func (c *Client) Generate(ctx context.Context, topic models.Topic) (*quiz.Quiz, error) {
	content := topic.Content
	if c.budget != nil {
		content = c.budget.Truncate(content)
	}

	prompt := fmt.Sprintf(generatePromptTemplate, topic.Title, content)
	raw, err := c.complete(ctx, generateSystemPrompt, prompt, generateTemperature)
	if err != nil {
		return nil, fmt.Errorf("%w: topic %s: %v", quiz.ErrGeneration, topic.ID, err)
	}

	var q quiz.Quiz
	if err := json.Unmarshal([]byte(stripFences(raw)), &q); err != nil {
		return nil, fmt.Errorf("%w: topic %s: decode: %v", quiz.ErrGeneration, topic.ID, err)
	}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: topic %s: %v", quiz.ErrGeneration, topic.ID, err)
	}

	log.Debug().Str("topic", topic.ID).Msg("Quiz generated")
	return &q, nil
}

const evaluateSystemPrompt = "Return exclusively valid JSON following the schema."

const evaluatePromptTemplate = `You are a strict but fair evaluator.

Topic: "%s"

Questions and suggested answers (context):
%s

The learner's freeform answer:
%s

Task:
1. Judge how well the answer covers the relevant content.
2. Classify performance as exactly one of: "low", "medium", "high".
3. Return ONLY valid JSON with this structure:
{
  "level": "low" | "medium" | "high",
  "confidence": 0.0,
  "rationale": "2-5 sentences",
  "gaps": ["short list of missing concepts or mistakes"],
  "suggested_review": ["3 concrete bullets on what to revisit"]
}

No markdown, no text outside the JSON.`

// Evaluate implements quiz.Evaluator. Failures wrap quiz.ErrEvaluation.
func (c *Client) Evaluate(ctx context.Context, topic models.Topic, q *quiz.Quiz, answer string) (*quiz.Evaluation, error) {
	quizJSON, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("%w: topic %s: encode quiz: %v", quiz.ErrEvaluation, topic.ID, err)
	}

	prompt := fmt.Sprintf(evaluatePromptTemplate, topic.Title, string(quizJSON), answer)
	raw, err := c.complete(ctx, evaluateSystemPrompt, prompt, evaluateTemperature)
	if err != nil {
		return nil, fmt.Errorf("%w: topic %s: %v", quiz.ErrEvaluation, topic.ID, err)
	}

	var payload struct {
		Level           string   `json:"level"`
		Confidence      float64  `json:"confidence"`
		Rationale       string   `json:"rationale"`
		Gaps            []string `json:"gaps"`
		SuggestedReview []string `json:"suggested_review"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		return nil, fmt.Errorf("%w: topic %s: decode: %v", quiz.ErrEvaluation, topic.ID, err)
	}

	return &quiz.Evaluation{
		Level:           models.ParseGrade(payload.Level),
		Confidence:      payload.Confidence,
		Rationale:       payload.Rationale,
		Gaps:            payload.Gaps,
		SuggestedReview: payload.SuggestedReview,
	}, nil
}

// complete issues one chat completion and returns the first choice.
func (c *Client) complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// stripFences removes markdown code fences some models wrap around
// JSON output.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
