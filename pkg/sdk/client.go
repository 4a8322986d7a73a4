package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 90 * time.Second

// Client talks to a tutor API server.
type Client struct {
	baseURL    string
	apiKey     string
	userID     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the Bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithUserID sets the learner identity header sent with every request.
func WithUserID(userID string) Option {
	return func(c *Client) { c.userID = userID }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client for the given base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("tutor: base URL required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ChatRequest is one question for the textbook assistant.
type ChatRequest struct {
	Message       string `json:"message"`
	SelectedText  string `json:"selected_text,omitempty"`
	ChapterNumber int    `json:"chapter_number,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
}

// Source attributes part of an answer to a textbook passage.
// Chapter is 0 when the server reports the passage's chapter as "N/A".
type Source struct {
	Chapter int     `json:"chapter"`
	Section string  `json:"section,omitempty"`
	Excerpt string  `json:"excerpt"`
	Score   float64 `json:"score"`
}

// UnmarshalJSON accepts both the numeric and the "N/A" chapter forms.
func (s *Source) UnmarshalJSON(data []byte) error {
	var w struct {
		Chapter json.RawMessage `json:"chapter"`
		Section string          `json:"section"`
		Excerpt string          `json:"excerpt"`
		Score   float64         `json:"score"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Section = w.Section
	s.Excerpt = w.Excerpt
	s.Score = w.Score
	s.Chapter = 0
	if len(w.Chapter) > 0 && w.Chapter[0] != '"' {
		if err := json.Unmarshal(w.Chapter, &s.Chapter); err != nil {
			return err
		}
	}
	return nil
}

// ChatResponse is a generated answer with source attribution.
type ChatResponse struct {
	Message string   `json:"message"`
	Sources []Source `json:"sources"`
}

// Chat sends a question and returns the grounded answer.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TranslateRequest asks for a translation of answer text. An empty
// TargetLang defaults to "ur" on the server.
type TranslateRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang,omitempty"`
}

// TranslateResponse carries the translated text.
type TranslateResponse struct {
	Translated string `json:"translated"`
}

// Translate renders text into the target language ("ur").
func (c *Client) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	var resp TranslateResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat/translate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Interaction is one stored question/answer exchange.
type Interaction struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	SessionID        string    `json:"session_id"`
	Chapter          int       `json:"chapter,omitempty"`
	SelectedText     string    `json:"selected_text,omitempty"`
	UserMessage      string    `json:"user_message"`
	AssistantMessage string    `json:"assistant_message"`
	Sources          []Source  `json:"sources"`
	CreatedAt        time.Time `json:"created_at"`
}

// History lists a session's exchanges, oldest first. limit<=0 uses the
// server default.
func (c *Client) History(ctx context.Context, sessionID string, limit int) ([]Interaction, error) {
	q := url.Values{"session_id": {sessionID}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp struct {
		Items []Interaction `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chat/history?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Health reports the server's component health.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("tutor: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("tutor: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tutor: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return parseAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("tutor: decode response: %w", err)
		}
	}
	return nil
}

func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err == nil {
		apiErr.Code = parsed.Code
		apiErr.Message = parsed.Message
	} else {
		apiErr.Message = resp.Status
	}
	return apiErr
}
