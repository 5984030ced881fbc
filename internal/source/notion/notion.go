// Package notion implements source.TreeSource against the Notion
// block API.
package notion

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/dmaranges/studycoach/internal/source"
)

const (
	defaultBaseURL = "https://api.notion.com"
	apiVersion     = "2022-06-28"
	pageSize       = 100
)

// textBlockTypes are the block types whose rich text folds into a
// node's content.
var textBlockTypes = map[string]bool{
	"paragraph":          true,
	"heading_1":          true,
	"heading_2":          true,
	"heading_3":          true,
	"bulleted_list_item": true,
	"numbered_list_item": true,
	"to_do":              true,
	"toggle":             true,
}

// Client talks to the Notion API.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client

	mu     sync.Mutex
	titles map[string]string // node id -> title, discovered while walking
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// New creates a Notion client authenticated with the given integration
// token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		titles:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PageRef identifies one page visible to the integration.
type PageRef struct {
	ID    string
	Title string
}

type richText struct {
	PlainText string `json:"plain_text"`
}

type searchResponse struct {
	Results []struct {
		ID         string `json:"id"`
		Properties map[string]struct {
			ID    string     `json:"id"`
			Title []richText `json:"title"`
		} `json:"properties"`
	} `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// SearchPages lists all pages the integration has access to, following
// cursor pagination.
func (c *Client) SearchPages(ctx context.Context) ([]PageRef, error) {
	var refs []PageRef
	cursor := ""

	for {
		body := map[string]any{
			"filter":    map[string]string{"value": "page", "property": "object"},
			"page_size": pageSize,
		}
		if cursor != "" {
			body["start_cursor"] = cursor
		}

		var resp searchResponse
		if err := c.do(ctx, http.MethodPost, "/v1/search", body, &resp); err != nil {
			return nil, fmt.Errorf("search pages: %w", err)
		}

		for _, res := range resp.Results {
			ref := PageRef{ID: res.ID, Title: "Untitled"}
			// The title property name varies; it is identified by id.
			for _, prop := range res.Properties {
				if prop.ID == "title" && len(prop.Title) > 0 {
					ref.Title = prop.Title[0].PlainText
					break
				}
			}
			c.rememberTitle(ref.ID, ref.Title)
			refs = append(refs, ref)
		}

		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor
	}

	return refs, nil
}

type childrenResponse struct {
	Results    []json.RawMessage `json:"results"`
	HasMore    bool              `json:"has_more"`
	NextCursor string            `json:"next_cursor"`
}

type blockHeader struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Node implements source.TreeSource. It lists a node's child blocks,
// folding text-bearing blocks into Text and surfacing child pages as
// Children.
func (c *Client) Node(ctx context.Context, id string) (*source.Node, error) {
	node := &source.Node{ID: id, Title: c.titleFor(id)}

	var lines []string
	cursor := ""

	for {
		path := fmt.Sprintf("/v1/blocks/%s/children?page_size=%d", id, pageSize)
		if cursor != "" {
			path += "&start_cursor=" + cursor
		}

		var resp childrenResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, &source.AccessError{NodeID: id, Err: err}
		}

		for _, raw := range resp.Results {
			var hdr blockHeader
			if err := json.Unmarshal(raw, &hdr); err != nil {
				log.Debug().Str("node", id).Err(err).Msg("Skipping undecodable block")
				continue
			}

			switch {
			case hdr.Type == "child_page":
				var payload struct {
					ChildPage struct {
						Title string `json:"title"`
					} `json:"child_page"`
				}
				if err := json.Unmarshal(raw, &payload); err == nil {
					c.rememberTitle(hdr.ID, payload.ChildPage.Title)
				}
				node.Children = append(node.Children, hdr.ID)

			case textBlockTypes[hdr.Type]:
				if text := extractText(raw, hdr.Type); text != "" {
					lines = append(lines, text)
				}
			}
		}

		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor
	}

	node.Text = strings.Join(lines, "\n")
	return node, nil
}

// extractText pulls the concatenated plain text of a text-bearing block.
func extractText(raw json.RawMessage, blockType string) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	payload, ok := fields[blockType]
	if !ok {
		return ""
	}

	var body struct {
		RichText []richText `json:"rich_text"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}

	var b strings.Builder
	for _, rt := range body.RichText {
		b.WriteString(rt.PlainText)
	}
	return b.String()
}

func (c *Client) rememberTitle(id, title string) {
	if title == "" {
		return
	}
	c.mu.Lock()
	c.titles[id] = title
	c.mu.Unlock()
}

func (c *Client) titleFor(id string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.titles[id]; ok {
		return t
	}
	return "Untitled"
}

// do issues one API request and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notion API returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
