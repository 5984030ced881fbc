// Package telegram implements channel.AnswerChannel over the Telegram
// Bot API: one sendMessage per quiz, then a getUpdates long-poll loop
// collecting numbered replies until every question is answered or the
// deadline expires.
package telegram

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/dmaranges/studycoach/internal/channel"
	"github.com/dmaranges/studycoach/pkg/models"
)

const (
	defaultBaseURL     = "https://api.telegram.org"
	defaultPollSeconds = 25
)

// answerPattern matches one numbered answer line: "3) text", "3. text"
// or "3: text".
var answerPattern = regexp.MustCompile(`(?m)^\s*(\d+)[).:]\s*(.+)$`)

// Config configures the Telegram client.
type Config struct {
	Token string
	// ChatID restricts the bot to a single conversation. Updates from
	// any other chat are discarded.
	ChatID      int64
	BaseURL     string
	PollSeconds int
	HTTPClient  *http.Client
}

// Client is the Telegram Bot API transport.
type Client struct {
	token       string
	baseURL     string
	chatID      int64
	pollSeconds int
	httpClient  *http.Client

	// offset is the next update ID to request; advancing it marks
	// earlier updates as consumed on Telegram's side.
	offset int64
}

// New creates a Telegram client.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	pollSeconds := cfg.PollSeconds
	if pollSeconds <= 0 {
		pollSeconds = defaultPollSeconds
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// No Timeout here: long-poll requests are bounded by ctx.
		httpClient = &http.Client{}
	}
	return &Client{
		token:       cfg.Token,
		baseURL:     strings.TrimRight(baseURL, "/"),
		chatID:      cfg.ChatID,
		pollSeconds: pollSeconds,
		httpClient:  httpClient,
	}
}

// Ask implements channel.AnswerChannel. On deadline expiry the answers
// collected so far are returned together with channel.ErrAnswerTimeout.
//
// Only messages sent after the quiz count as answers. getUpdates keeps
// undelivered messages pending across process runs, so without the
// timestamp filter a numbered reply left over from a previous cycle
// would be graded as today's answer.
func (c *Client) Ask(ctx context.Context, topic models.Topic, questions []string) (string, error) {
	sentAt, err := c.send(ctx, formatQuiz(topic, questions))
	if err != nil {
		return "", fmt.Errorf("send quiz: %w", err)
	}

	answers := make(map[int]string, len(questions))
	for {
		updates, err := c.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return joinAnswers(answers, len(questions)),
					fmt.Errorf("collected %d of %d answers: %w", len(answers), len(questions), channel.ErrAnswerTimeout)
			}
			log.Warn().Err(err).Msg("Update poll failed, retrying")
			select {
			case <-ctx.Done():
				return joinAnswers(answers, len(questions)),
					fmt.Errorf("collected %d of %d answers: %w", len(answers), len(questions), channel.ErrAnswerTimeout)
			case <-time.After(2 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= c.offset {
				c.offset = u.UpdateID + 1
			}
			if u.Message == nil || u.Message.Chat.ID != c.chatID {
				continue
			}
			if u.Message.Date < sentAt {
				// Backlog from before this quiz was sent.
				continue
			}
			collectAnswers(u.Message.Text, len(questions), answers)
		}

		if len(answers) == len(questions) {
			return joinAnswers(answers, len(questions)), nil
		}
	}
}

// Notify implements channel.AnswerChannel.
func (c *Client) Notify(ctx context.Context, text string) error {
	_, err := c.send(ctx, text)
	return err
}

// formatQuiz renders the numbered quiz message.
func formatQuiz(topic models.Topic, questions []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Quiz: %s\n\n", topic.Title)
	for i, q := range questions {
		fmt.Fprintf(&b, "%d) %s\n", i+1, q)
	}
	b.WriteString("\nReply with numbered answers, one per line, e.g. \"1) ...\". Several answers may share one message.")
	return b.String()
}

// collectAnswers parses numbered answer lines out of one message.
// A later answer to the same number replaces the earlier one.
func collectAnswers(text string, total int, answers map[int]string) {
	for _, m := range answerPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > total {
			continue
		}
		answers[n] = strings.TrimSpace(m[2])
	}
}

// joinAnswers renders collected answers in question order.
func joinAnswers(answers map[int]string, total int) string {
	var b strings.Builder
	for n := 1; n <= total; n++ {
		text, ok := answers[n]
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d) %s", n, text)
	}
	return b.String()
}

type chat struct {
	ID int64 `json:"id"`
}

type incomingMessage struct {
	Chat chat   `json:"chat"`
	Text string `json:"text"`
	// Date is the server-side send time in unix seconds.
	Date int64 `json:"date"`
}

type update struct {
	UpdateID int64            `json:"update_id"`
	Message  *incomingMessage `json:"message"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// send delivers one text message to the configured chat and returns
// the server-side send timestamp in unix seconds. Answers are compared
// against this clock, not the local one, so skew cannot misattribute
// replies.
func (c *Client) send(ctx context.Context, text string) (int64, error) {
	payload := map[string]any{
		"chat_id": c.chatID,
		"text":    text,
	}
	raw, err := c.call(ctx, "sendMessage", payload)
	if err != nil {
		return 0, err
	}

	var sent struct {
		Date int64 `json:"date"`
	}
	if err := json.Unmarshal(raw, &sent); err != nil || sent.Date == 0 {
		return time.Now().Unix(), nil
	}
	return sent.Date, nil
}

// getUpdates long-polls for new updates past the current offset.
func (c *Client) getUpdates(ctx context.Context) ([]update, error) {
	payload := map[string]any{
		"offset":          c.offset,
		"timeout":         c.pollSeconds,
		"allowed_updates": []string{"message"},
	}
	raw, err := c.call(ctx, "getUpdates", payload)
	if err != nil {
		return nil, err
	}

	var updates []update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("parse updates: %w", err)
	}
	return updates, nil
}

// call issues one Bot API method and returns the raw result payload.
func (c *Client) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("%s returned status %d: %s", method, resp.StatusCode, parsed.Description)
	}
	return parsed.Result, nil
}
