// Package ai provides optional Claude-backed summaries of categorized
// log reports.
package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"

	internalerrors "github.com/dkovalev/logsentry-bot/internal/errors"
)

const (
	maxAttempts = 3
	// baseBackoff doubles on every failed attempt
	baseBackoff = 2 * time.Second
)

// Client wraps the Anthropic API client for report summarization.
type Client struct {
	client    *anthropic.Client
	model     string
	timeout   time.Duration
	maxTokens int
}

// NewClient creates a new Claude client.
func NewClient(apiKey, model string, timeoutSeconds, maxTokens int) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	timeout := time.Duration(timeoutSeconds) * time.Second
	httpClient := &http.Client{Timeout: timeout}

	return &Client{
		client:    anthropic.NewClient(apiKey, anthropic.WithHTTPClient(httpClient)),
		model:     model,
		timeout:   timeout,
		maxTokens: maxTokens,
	}, nil
}

// Summarize condenses a categorized log report into a short natural-
// language summary.
func (c *Client) Summarize(ctx context.Context, report string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var response anthropic.MessagesResponse
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var err error
		response, err = c.callAPI(ctx, report)
		if err == nil {
			lastErr = nil
			break
		}

		lastErr = err
		if attempt < maxAttempts {
			backoff := baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("all retry attempts failed: %w", lastErr)
	}

	if len(response.Content) == 0 {
		return "", fmt.Errorf("empty response from Claude")
	}

	var text strings.Builder
	for _, content := range response.Content {
		if content.Type == "text" && content.Text != nil {
			text.WriteString(*content.Text)
		}
	}
	summary := strings.TrimSpace(text.String())
	if summary == "" {
		return "", fmt.Errorf("response contained no text content")
	}
	return summary, nil
}

// callAPI makes the actual API call to Claude
func (c *Client) callAPI(ctx context.Context, report string) (anthropic.MessagesResponse, error) {
	request := anthropic.MessagesRequest{
		Model: anthropic.Model(c.model),
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewTextMessageContent(BuildUserPrompt(report)),
				},
			},
		},
		System:    SystemPrompt(),
		MaxTokens: c.maxTokens,
	}

	response, err := c.client.CreateMessages(ctx, request)
	if err != nil {
		// Sanitized so the API key cannot surface in error output
		return anthropic.MessagesResponse{}, internalerrors.Wrapf(err, "API call failed")
	}
	return response, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}
