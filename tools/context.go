// Package tools holds the catalog of query tools the model may invoke, the
// registry that validates and dispatches calls, and the executors that
// translate structured parameters into message-store queries.
package tools

import "github.com/xiaorui775/ChatLab/store"

// Owner identifies the person asking questions, so executors can resolve
// "I"/"my" in queries.
type Owner struct {
	DisplayName string `json:"display_name"`
	PlatformID  string `json:"platform_id"`
}

// ToolContext is per-turn, read-only during execution. A user-configured
// MaxMessages always takes precedence over a model-requested limit, and
// DefaultTimeFilter is attached to tools that carry no explicit time
// parameters.
type ToolContext struct {
	SessionID         string
	Owner             *Owner
	DefaultTimeFilter *store.TimeRange
	MaxMessages       int // 0 means no override
	Locale            string
}
