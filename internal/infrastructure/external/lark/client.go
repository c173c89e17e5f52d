// Package lark notifies reviewers in a Lark (Feishu) group chat.
package lark

import (
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
)

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
	// BaseURL overrides the open platform endpoint, e.g. for Lark international
	BaseURL string
	// ReviewerChatID is the group chat that receives submission cards
	ReviewerChatID string
}

// Enabled reports whether notifications can be sent
func (c Config) Enabled() bool {
	return c.AppID != "" && c.ReviewerChatID != ""
}

// NewClient creates a Lark SDK client with tenant token caching
func NewClient(cfg Config) *lark.Client {
	opts := []lark.ClientOptionFunc{
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(cfg.BaseURL))
	}
	return lark.NewClient(cfg.AppID, cfg.AppSecret, opts...)
}
