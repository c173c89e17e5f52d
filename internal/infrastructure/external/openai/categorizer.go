package openai

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/expense-drafts/internal/application/port"
	"github.com/garyjia/expense-drafts/internal/domain/entity"
)

// Categorizer implements port.Categorizer with a chat model
type Categorizer struct {
	client *openai.Client
	cfg    Config
	logger *zap.Logger
}

// NewCategorizer creates a new OpenAI categorization assistant
func NewCategorizer(client *openai.Client, cfg Config, logger *zap.Logger) port.Categorizer {
	if cfg.Prompts == nil {
		cfg.Prompts = DefaultPrompts()
	}
	return &Categorizer{client: client, cfg: cfg, logger: logger}
}

// categorizePromptData fills the categorization template. Each field is indented JSON.
type categorizePromptData struct {
	Receipt    string
	Assignment string
	Employees  string
	Teams      string
	Trips      string
}

// Suggest asks the model to assign the draft and returns its raw JSON object
func (c *Categorizer) Suggest(ctx context.Context, req port.CategorizeRequest) (map[string]any, error) {
	spec := c.cfg.Prompts.Categorization

	data, err := buildCategorizePromptData(req)
	if err != nil {
		return nil, err
	}
	prompt, err := renderTemplate(spec.UserTemplate, data)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Requesting categorization",
		zap.String("draft_id", req.Draft.ID),
		zap.String("model", c.cfg.Model),
		zap.Int("employees", len(req.Employees)),
		zap.Int("teams", len(req.Teams)),
		zap.Int("trips", len(req.Trips)))

	return complete(ctx, c.client, c.cfg.Timeout, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   spec.MaxTokens,
		Temperature: spec.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: spec.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}, c.logger)
}

func buildCategorizePromptData(req port.CategorizeRequest) (categorizePromptData, error) {
	ext := req.Draft.Extraction

	items := make([]map[string]any, 0, len(ext.Items))
	for _, item := range ext.Items {
		items = append(items, map[string]any{
			"description": item.Description,
			"amount":      json.Number(item.Amount.String()),
		})
	}
	location := map[string]any{}
	if ext.Location != nil {
		location["city"] = ext.Location.City
		location["state"] = ext.Location.State
		location["country"] = ext.Location.Country
	}

	receipt := map[string]any{
		"merchant":      ext.Merchant,
		"date":          ext.Date,
		"amountTotal":   nil,
		"currency":      ext.Currency,
		"category":      ext.Category,
		"items":         items,
		"location":      location,
		"invoiceNumber": ext.InvoiceNumber,
	}
	if ext.AmountTotal.Valid {
		receipt["amountTotal"] = json.Number(ext.AmountTotal.Decimal.String())
	}
	if ext.Currency == "" {
		receipt["currency"] = entity.DefaultCurrency
	}

	assignment := map[string]any{
		"employeeId":         req.Draft.EmployeeID,
		"functionalTeamCode": req.Draft.FunctionalTeamCode,
		"tripId":             req.Draft.TripID,
		"glAccount":          req.Draft.GLAccount,
		"businessCategory":   req.Draft.BusinessCategory,
	}

	employees := make([]map[string]any, 0, len(req.Employees))
	for _, e := range req.Employees {
		employees = append(employees, map[string]any{
			"id": e.ID, "name": e.Name, "email": e.Email, "teamCode": e.TeamCode,
		})
	}
	teams := make([]map[string]any, 0, len(req.Teams))
	for _, t := range req.Teams {
		teams = append(teams, map[string]any{
			"code": t.Code, "name": t.Name, "description": t.Description,
		})
	}
	trips := make([]map[string]any, 0, len(req.Trips))
	for _, t := range req.Trips {
		trips = append(trips, map[string]any{
			"id": t.ID, "name": t.Name, "startDate": t.StartDate, "endDate": t.EndDate,
			"city": t.City, "country": t.Country,
		})
	}

	var data categorizePromptData
	for dst, v := range map[*string]any{
		&data.Receipt:    receipt,
		&data.Assignment: assignment,
		&data.Employees:  employees,
		&data.Teams:      teams,
		&data.Trips:      trips,
	} {
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return data, fmt.Errorf("failed to encode prompt context: %w", err)
		}
		*dst = string(out)
	}
	return data, nil
}
