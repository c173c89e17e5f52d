// Package openai talks to OpenAI-compatible chat completion APIs for receipt
// extraction and draft categorization.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/expense-drafts/internal/domain/payload"
)

// ErrEmptyResponse is returned when the model sends no choices or no JSON object
var ErrEmptyResponse = errors.New("no JSON object in model response")

// Config configures the OpenAI client
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	VisionModel string
	Timeout     time.Duration
	Prompts     *PromptConfig
}

// NewClient creates a go-openai client, honoring a custom base URL
func NewClient(cfg Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

// complete sends one chat request under timeout and decodes the first JSON
// object found in the reply
func complete(ctx context.Context, client *openai.Client, timeout time.Duration, req openai.ChatCompletionRequest, logger *zap.Logger) (map[string]any, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		logger.Error("OpenAI API call failed", zap.String("model", req.Model), zap.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		parts := make([]string, 0, len(resp.Choices[0].Message.MultiContent))
		for _, part := range resp.Choices[0].Message.MultiContent {
			parts = append(parts, part.Text)
		}
		content = strings.Join(parts, "\n")
	}

	jsonStr := payload.ExtractJSON(content)
	if jsonStr == "" {
		logger.Error("Model response carried no JSON object", zap.String("content", content))
		return nil, ErrEmptyResponse
	}

	obj, err := payload.DecodeObject([]byte(jsonStr))
	if err != nil {
		logger.Error("Failed to parse OpenAI response",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	logger.Debug("OpenAI call completed",
		zap.String("model", req.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	return obj, nil
}
