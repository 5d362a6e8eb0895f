// Package llm provides the model client used by the campaign agent.
package llm

import (
	"context"
	"log/slog"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message is a single chat turn in provider-neutral form.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on role "tool" messages
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id,omitempty"` // provider-assigned, echoed back on the tool result
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its decoded arguments.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ChatResponse is the unified response from a model call.
// Wire-format conversion happens at the provider boundary.
type ChatResponse struct {
	Model      string
	Message    Message
	StopReason string // end_turn, tool_use, max_tokens, stop_sequence

	InputTokens  int
	OutputTokens int
}

// StreamEvent is a single event in a streaming response.
// Consumers switch on Kind.
type StreamEvent struct {
	Kind StreamEventKind

	// Token is set for KindToken events.
	Token string

	// ToolCall is set for KindToolCallStart events.
	ToolCall *ToolCall
}

// StreamEventKind identifies the type of stream event.
type StreamEventKind int

const (
	// KindToken is an incremental text token from the model.
	KindToken StreamEventKind = iota

	// KindToolCallStart fires when the model requests a tool invocation.
	KindToolCallStart
)

// StreamCallback receives streaming events as they arrive.
type StreamCallback func(event StreamEvent)

// Client is the model interface the agent loop depends on.
// Tools use Anthropic-format definitions (name/description/input_schema).
type Client interface {
	Chat(ctx context.Context, system string, messages []Message, tools []ToolDefinition) (*ChatResponse, error)
	ChatStream(ctx context.Context, system string, messages []Message, tools []ToolDefinition, callback StreamCallback) (*ChatResponse, error)
}

// ToolDefinition describes a tool the model may call.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema"`
}
