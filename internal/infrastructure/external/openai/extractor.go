package openai

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/expense-drafts/internal/application/port"
)

// Extractor implements port.Extractor with a vision-capable chat model
type Extractor struct {
	client *openai.Client
	cfg    Config
	logger *zap.Logger
}

// NewExtractor creates a new OpenAI receipt extractor
func NewExtractor(client *openai.Client, cfg Config, logger *zap.Logger) port.Extractor {
	if cfg.Prompts == nil {
		cfg.Prompts = DefaultPrompts()
	}
	return &Extractor{client: client, cfg: cfg, logger: logger}
}

// Name identifies provider and model for receipts' ocrModel
func (e *Extractor) Name() string {
	return "openai:" + e.cfg.VisionModel
}

// Extract sends the receipt image and returns the model's raw JSON object
func (e *Extractor) Extract(ctx context.Context, image []byte, mime string) (map[string]any, error) {
	spec := e.cfg.Prompts.ReceiptExtraction

	prompt, err := renderTemplate(spec.UserTemplate, nil)
	if err != nil {
		return nil, err
	}

	req := openai.ChatCompletionRequest{
		Model:       e.cfg.VisionModel,
		MaxTokens:   spec.MaxTokens,
		Temperature: spec.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: spec.System,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(image)),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	e.logger.Info("Extracting receipt with vision model",
		zap.String("model", e.cfg.VisionModel),
		zap.String("mime", mime),
		zap.Int("size", len(image)))

	return complete(ctx, e.client, e.cfg.Timeout, req, e.logger)
}
