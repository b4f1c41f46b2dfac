package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jishankai/sp-telegram-bot/internal/config"
	"github.com/jishankai/sp-telegram-bot/internal/domain"
)

// LanguageModel answers a user message given the dialog history and chat mode.
type LanguageModel interface {
	Generate(ctx context.Context, p Prompt) (*Completion, error)
}

type Prompt struct {
	Text    string
	History []domain.Turn
	Mode    config.ChatMode
}

type Completion struct {
	Answer     string
	TokensUsed int
	// TurnsRemoved counts history turns the model dropped from the front to fit its context.
	TurnsRemoved int
}

// HTTPStatusError captures non-2xx responses from an upstream HTTP API.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) contextLengthExceeded() bool {
	if e.StatusCode != http.StatusBadRequest {
		return false
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(e.Body), &payload); err != nil {
		return strings.Contains(e.Body, "context_length_exceeded")
	}
	return payload.Error.Code == "context_length_exceeded"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// OpenAIClient talks to an OpenAI-compatible /chat/completions endpoint.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

type OpenAIOption func(*OpenAIClient)

func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithOpenAIHTTPClient(httpClient *http.Client) OpenAIOption {
	return func(c *OpenAIClient) {
		c.httpClient = httpClient
	}
}

func NewOpenAIClient(apiKey, model string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		apiKey:     apiKey,
		baseURL:    "https://api.openai.com/v1",
		model:      model,
		httpClient: &http.Client{Timeout: config.RequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate sends the prompt, dropping the oldest history turn and retrying while the
// endpoint reports that the context window is exceeded.
func (c *OpenAIClient) Generate(ctx context.Context, p Prompt) (*Completion, error) {
	history := p.History
	removed := 0

	for {
		resp, err := c.chat(ctx, buildMessages(p.Text, history, p.Mode))
		if err != nil {
			var statusErr *HTTPStatusError
			if errors.As(err, &statusErr) && statusErr.contextLengthExceeded() && len(history) > 0 {
				history = history[1:]
				removed++
				continue
			}
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("llm: no choices in response")
		}
		return &Completion{
			Answer:       strings.TrimSpace(resp.Choices[0].Message.Content),
			TokensUsed:   resp.Usage.TotalTokens,
			TurnsRemoved: removed,
		}, nil
	}
}

func buildMessages(text string, history []domain.Turn, mode config.ChatMode) []chatMessage {
	messages := make([]chatMessage, 0, 2*len(history)+2)
	if prompt := strings.TrimSpace(mode.PromptStart); prompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: prompt})
	}
	for _, t := range history {
		messages = append(messages,
			chatMessage{Role: "user", Content: t.User},
			chatMessage{Role: "assistant", Content: t.Bot},
		)
	}
	return append(messages, chatMessage{Role: "user", Content: text})
}

func (c *OpenAIClient) chat(ctx context.Context, messages []chatMessage) (*chatResponse, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, URL: url, Body: string(buf)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &chatResp, nil
}
