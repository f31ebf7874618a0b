// Package ai wraps the generative model used to extract scholarships from
// unstructured pages.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mochatech1725/scholarship-scraper2/internal/retry"
)

// Generator turns a prompt into model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("generative model not configured")

const (
	defaultMaxTokens = 4096
	requestTimeout   = 90 * time.Second
)

// AnthropicGenerator calls the Anthropic Messages API. Retries are left to
// the caller's retry policy, so the SDK's own retries are disabled.
type AnthropicGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic returns a generator for model.
func NewAnthropic(apiKey, model string, opts ...option.RequestOption) (*AnthropicGenerator, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(requestTimeout),
	}
	return &AnthropicGenerator{
		client:    anthropic.NewClient(append(base, opts...)...),
		model:     model,
		maxTokens: defaultMaxTokens,
	}, nil
}

// Generate sends prompt as a single user message and returns the text blocks
// of the reply. Rate-limit and overload responses wrap retry.ErrThrottled.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", classify(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, 529:
			return fmt.Errorf("anthropic %d: %w: %w", apiErr.StatusCode, retry.ErrThrottled, err)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return fmt.Errorf("anthropic %d: %w: %w", apiErr.StatusCode, retry.ErrTimeout, err)
		}
	}
	return fmt.Errorf("anthropic: %w", err)
}
