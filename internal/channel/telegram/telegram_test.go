package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/dmaranges/studycoach/internal/channel"
	"github.com/dmaranges/studycoach/pkg/models"
)

const (
	testChatID int64 = 42

	// quizSentDate is the server-side timestamp the fake bot server
	// assigns to every sent quiz.
	quizSentDate int64 = 1000
)

// botServer emulates the two Bot API methods the client uses. Each
// getUpdates call pops the next batch; once batches run out it blocks
// briefly and returns an empty result, like a real long poll.
type botServer struct {
	mu      sync.Mutex
	sent    []string
	batches [][]update
	offsets []int64
}

func (b *botServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var payload struct {
				ChatID int64  `json:"chat_id"`
				Text   string `json:"text"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			b.mu.Lock()
			b.sent = append(b.sent, payload.Text)
			b.mu.Unlock()
			fmt.Fprintf(w, `{"ok": true, "result": {"date": %d}}`, quizSentDate)

		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			var payload struct {
				Offset int64 `json:"offset"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			b.mu.Lock()
			b.offsets = append(b.offsets, payload.Offset)
			var batch []update
			if len(b.batches) > 0 {
				batch = b.batches[0]
				b.batches = b.batches[1:]
			}
			b.mu.Unlock()
			if batch == nil {
				time.Sleep(20 * time.Millisecond)
				batch = []update{}
			}
			result, _ := json.Marshal(batch)
			fmt.Fprintf(w, `{"ok": true, "result": %s}`, result)

		default:
			http.NotFound(w, r)
		}
	}
}

func reply(updateID int64, chatID int64, text string) update {
	return replyAt(updateID, chatID, quizSentDate, text)
}

func replyAt(updateID int64, chatID int64, date int64, text string) update {
	return update{
		UpdateID: updateID,
		Message:  &incomingMessage{Chat: chat{ID: chatID}, Text: text, Date: date},
	}
}

// TelegramSuite is a test suite for the Telegram answer channel.
type TelegramSuite struct {
	suite.Suite
	topic     models.Topic
	questions []string
}

func (s *TelegramSuite) SetupTest() {
	s.topic = models.Topic{ID: "tcp", Title: "TCP Basics"}
	s.questions = []string{"What is SYN?", "What is ACK?"}
}

func TestTelegramSuite(t *testing.T) {
	suite.Run(t, new(TelegramSuite))
}

func (s *TelegramSuite) newClient(server *botServer) (*Client, func()) {
	ts := httptest.NewServer(server.handler())
	client := New(Config{
		Token:       "test-token",
		ChatID:      testChatID,
		BaseURL:     ts.URL,
		PollSeconds: 0,
	})
	return client, ts.Close
}

// TestAsk_SingleMessage tests a learner answering everything at once.
func (s *TelegramSuite) TestAsk_SingleMessage() {
	server := &botServer{batches: [][]update{
		{reply(100, testChatID, "1) three-way handshake start\n2) acknowledgement flag")},
	}}
	client, done := s.newClient(server)
	defer done()

	answer, err := client.Ask(context.Background(), s.topic, s.questions)
	s.Require().NoError(err)
	s.Equal("1) three-way handshake start\n2) acknowledgement flag", answer)

	s.Require().Len(server.sent, 1)
	s.Contains(server.sent[0], "Quiz: TCP Basics")
	s.Contains(server.sent[0], "1) What is SYN?")
	s.Contains(server.sent[0], "2) What is ACK?")
}

// TestAsk_SpreadAcrossPolls tests answers arriving in separate messages
// and offset tracking between polls.
func (s *TelegramSuite) TestAsk_SpreadAcrossPolls() {
	server := &botServer{batches: [][]update{
		{reply(100, testChatID, "2. acknowledgement flag")},
		{reply(101, testChatID, "1: synchronize flag")},
	}}
	client, done := s.newClient(server)
	defer done()

	answer, err := client.Ask(context.Background(), s.topic, s.questions)
	s.Require().NoError(err)
	s.Equal("1) synchronize flag\n2) acknowledgement flag", answer)

	// Second poll requests past the first consumed update.
	s.Require().GreaterOrEqual(len(server.offsets), 2)
	s.Equal(int64(0), server.offsets[0])
	s.Equal(int64(101), server.offsets[1])
}

// TestAsk_IgnoresOtherChats tests the chat ID restriction.
func (s *TelegramSuite) TestAsk_IgnoresOtherChats() {
	server := &botServer{batches: [][]update{
		{reply(100, 999, "1) from a stranger\n2) also a stranger")},
		{reply(101, testChatID, "1) mine\n2) also mine")},
	}}
	client, done := s.newClient(server)
	defer done()

	answer, err := client.Ask(context.Background(), s.topic, s.questions)
	s.Require().NoError(err)
	s.Equal("1) mine\n2) also mine", answer)
}

// TestAsk_Timeout tests that the deadline returns partial answers with
// the timeout error class.
func (s *TelegramSuite) TestAsk_Timeout() {
	server := &botServer{batches: [][]update{
		{reply(100, testChatID, "1) only the first")},
	}}
	client, done := s.newClient(server)
	defer done()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	answer, err := client.Ask(ctx, s.topic, s.questions)
	s.Require().Error(err)
	s.True(errors.Is(err, channel.ErrAnswerTimeout))
	s.Equal("1) only the first", answer)
}

// TestAsk_DiscardsBacklog tests that numbered messages sent before the
// quiz are not accepted as answers. getUpdates keeps undelivered
// messages pending across runs, so a one-shot binary sees yesterday's
// replies on its first poll.
func (s *TelegramSuite) TestAsk_DiscardsBacklog() {
	server := &botServer{batches: [][]update{
		{replyAt(7, testChatID, quizSentDate-1, "1) answer meant for yesterday\n2) also old")},
		{reply(8, testChatID, "1) synchronize flag\n2) acknowledgement flag")},
	}}
	client, done := s.newClient(server)
	defer done()

	answer, err := client.Ask(context.Background(), s.topic, s.questions)
	s.Require().NoError(err)
	s.Equal("1) synchronize flag\n2) acknowledgement flag", answer)

	// The stale update is still consumed so it never resurfaces.
	s.Require().GreaterOrEqual(len(server.offsets), 2)
	s.Equal(int64(8), server.offsets[1])
}

// TestNotify tests the push path.
func (s *TelegramSuite) TestNotify() {
	server := &botServer{}
	client, done := s.newClient(server)
	defer done()

	s.Require().NoError(client.Notify(context.Background(), "Grade: high"))
	s.Require().Len(server.sent, 1)
	s.Equal("Grade: high", server.sent[0])
}

func TestCollectAnswers(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[int]string
	}{
		{
			name: "paren and dot and colon formats",
			text: "1) alpha\n2. beta\n3: gamma",
			want: map[int]string{1: "alpha", 2: "beta", 3: "gamma"},
		},
		{
			name: "out of range numbers ignored",
			text: "0) nope\n4) nope\n2) yes",
			want: map[int]string{2: "yes"},
		},
		{
			name: "chatter without numbers ignored",
			text: "let me think about this one",
			want: map[int]string{},
		},
		{
			name: "later answer replaces earlier",
			text: "1) first try\n1) second try",
			want: map[int]string{1: "second try"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answers := make(map[int]string)
			collectAnswers(tt.text, 3, answers)
			assert.Equal(t, tt.want, answers)
		})
	}
}

func TestJoinAnswers_SkipsGaps(t *testing.T) {
	got := joinAnswers(map[int]string{1: "a", 3: "c"}, 3)
	require.Equal(t, "1) a\n3) c", got)
}
