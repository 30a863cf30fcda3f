// Package litellm is a chat completion client for a LiteLLM proxy or any
// OpenAI-compatible endpoint.
package litellm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/doctorauto/sophia/internal/domain"
	"github.com/doctorauto/sophia/internal/port/llm"
	"github.com/doctorauto/sophia/internal/resilience"
)

// Client calls /chat/completions.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
	breaker     *resilience.Breaker
}

// NewClient creates a chat client for model.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		temperature: 0.3,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message llm.Message `json:"message"`
	} `json:"choices"`
}

// Complete returns the first choice's content.
func (c *Client) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	body, err := json.Marshal(completionRequest{Model: c.model, Messages: messages, Temperature: c.temperature})
	if err != nil {
		return "", fmt.Errorf("marshal completion: %w", err)
	}

	var out completionResponse
	call := func(ctx context.Context) error {
		data, err := c.post(ctx, "/chat/completions", body)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &out)
	}
	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %w", domain.ErrUpstream, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: chat completion returned no choices", domain.ErrUpstream)
	}
	return out.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("llm API error %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}
