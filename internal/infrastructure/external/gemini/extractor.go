// Package gemini extracts receipts with Google Gemini vision models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/garyjia/expense-drafts/internal/application/port"
	"github.com/garyjia/expense-drafts/internal/domain/payload"
)

const defaultModel = "gemini-1.5-flash"

// ErrEmptyResponse is returned when Gemini answers without a JSON object
var ErrEmptyResponse = errors.New("no JSON object in gemini response")

// Config configures the Gemini extractor
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	// Prompt is the instruction sent alongside the receipt image
	Prompt string
}

// Extractor implements port.Extractor using Google Gemini
type Extractor struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	name    string
	timeout time.Duration
	prompt  string
	logger  *zap.Logger
}

// NewExtractor creates a Gemini client. The caller owns Close.
func NewExtractor(ctx context.Context, cfg Config, logger *zap.Logger) (*Extractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Prompt == "" {
		return nil, fmt.Errorf("gemini extraction prompt is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(0)

	return &Extractor{
		client:  client,
		model:   model,
		name:    "gemini:" + cfg.Model,
		timeout: cfg.Timeout,
		prompt:  cfg.Prompt,
		logger:  logger,
	}, nil
}

// Name identifies provider and model
func (g *Extractor) Name() string {
	return g.name
}

// Extract sends the receipt image and decodes the JSON object Gemini returns
func (g *Extractor) Extract(ctx context.Context, image []byte, mime string) (map[string]any, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	g.logger.Info("Extracting receipt with Gemini",
		zap.String("model", g.name),
		zap.String("mime", mime),
		zap.Int("size", len(image)))

	resp, err := g.model.GenerateContent(ctx,
		genai.ImageData(imageFormat(mime), image),
		genai.Text(g.prompt),
	)
	if err != nil {
		g.logger.Error("Gemini API call failed", zap.Error(err))
		return nil, fmt.Errorf("generating content: %w", err)
	}

	return decodeResponse(resp)
}

// Close closes the Gemini client
func (g *Extractor) Close() error {
	return g.client.Close()
}

// imageFormat maps a MIME type to the suffix genai.ImageData expects
func imageFormat(mime string) string {
	format := strings.TrimPrefix(strings.ToLower(mime), "image/")
	switch format {
	case "", "jpg":
		return "jpeg"
	}
	return format
}

func decodeResponse(resp *genai.GenerateContentResponse) (map[string]any, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrEmptyResponse
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	jsonStr := payload.ExtractJSON(text.String())
	if jsonStr == "" {
		return nil, ErrEmptyResponse
	}
	obj, err := payload.DecodeObject([]byte(jsonStr))
	if err != nil {
		return nil, fmt.Errorf("parsing gemini response: %w", err)
	}
	return obj, nil
}

var _ port.Extractor = (*Extractor)(nil)
