package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/expense-drafts/internal/application/port"
	"github.com/garyjia/expense-drafts/internal/domain/entity"
)

// sender is the slice of Messenger the notifier needs
type sender interface {
	Send(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
}

// Notifier posts a card to the reviewer chat when a draft is submitted
type Notifier struct {
	sender sender
	chatID string
	logger *zap.Logger
}

// NewNotifier creates a notifier. With notifications disabled in cfg it returns
// a notifier that only logs.
func NewNotifier(cfg Config, logger *zap.Logger) port.SubmissionNotifier {
	if !cfg.Enabled() {
		logger.Info("Lark notifications disabled")
		return disabledNotifier{logger: logger}
	}
	return newNotifier(NewMessenger(NewClient(cfg), logger), cfg.ReviewerChatID, logger)
}

func newNotifier(s sender, chatID string, logger *zap.Logger) *Notifier {
	return &Notifier{sender: s, chatID: chatID, logger: logger}
}

// NotifySubmitted sends the submission card
func (n *Notifier) NotifySubmitted(ctx context.Context, draft entity.ExpenseDraft) error {
	card, err := json.Marshal(submissionCard(draft))
	if err != nil {
		return fmt.Errorf("failed to marshal card content: %w", err)
	}

	if _, err := n.sender.Send(ctx, "chat_id", n.chatID, "interactive", string(card)); err != nil {
		return fmt.Errorf("failed to notify reviewers: %w", err)
	}
	n.logger.Info("Reviewers notified", zap.String("draft_id", draft.ID))
	return nil
}

type disabledNotifier struct {
	logger *zap.Logger
}

func (d disabledNotifier) NotifySubmitted(ctx context.Context, draft entity.ExpenseDraft) error {
	d.logger.Debug("Skipping reviewer notification", zap.String("draft_id", draft.ID))
	return nil
}

type cardText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type cardField struct {
	IsShort bool     `json:"is_short"`
	Text    cardText `json:"text"`
}

type cardElement struct {
	Tag      string      `json:"tag"`
	Fields   []cardField `json:"fields,omitempty"`
	Text     *cardText   `json:"text,omitempty"`
	Elements []cardText  `json:"elements,omitempty"`
}

type card struct {
	Config struct {
		WideScreenMode bool `json:"wide_screen_mode"`
	} `json:"config"`
	Header struct {
		Template string   `json:"template"`
		Title    cardText `json:"title"`
	} `json:"header"`
	Elements []cardElement `json:"elements"`
}

func submissionCard(d entity.ExpenseDraft) card {
	var c card
	c.Config.WideScreenMode = true
	c.Header.Template = "blue"
	c.Header.Title = cardText{Tag: "plain_text", Content: "Expense draft submitted"}

	ext := d.Extraction
	amount := "-"
	if ext.AmountTotal.Valid {
		amount = ext.AmountTotal.Decimal.StringFixed(2) + " " + currency(ext.Currency)
	}

	fields := []cardField{
		field("Merchant", deref(ext.Merchant)),
		field("Amount", amount),
		field("Date", deref(ext.Date)),
		field("Category", deref(ext.Category)),
		field("Employee", deref(d.EmployeeID)),
		field("Team", deref(d.FunctionalTeamCode)),
		field("Trip", deref(d.TripID)),
		field("GL account", deref(d.GLAccount)),
	}
	if d.AIConfidence != nil {
		fields = append(fields, field("AI confidence", fmt.Sprintf("%.0f%%", *d.AIConfidence*100)))
	}
	c.Elements = append(c.Elements, cardElement{Tag: "div", Fields: fields})

	if len(d.Validation) > 0 {
		lines := make([]string, 0, len(d.Validation))
		for _, f := range d.Validation {
			lines = append(lines, fmt.Sprintf("- [%s] %s", f.Severity, f.Message))
		}
		c.Elements = append(c.Elements, cardElement{
			Tag:  "div",
			Text: &cardText{Tag: "lark_md", Content: "**Policy findings**\n" + strings.Join(lines, "\n")},
		})
	}

	c.Elements = append(c.Elements, cardElement{
		Tag:      "note",
		Elements: []cardText{{Tag: "plain_text", Content: "Draft " + d.ID}},
	})
	return c
}

func field(label, value string) cardField {
	return cardField{IsShort: true, Text: cardText{Tag: "lark_md", Content: "**" + label + "**\n" + value}}
}

func deref(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func currency(c string) string {
	if c == "" {
		return entity.DefaultCurrency
	}
	return c
}
