// Package agent implements the tool-calling orchestration loop: model
// call, sequential tool execution, result feedback, and the grounding
// gate on the final text.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/signal42/campaign-agent/internal/campaign"
	"github.com/signal42/campaign-agent/internal/events"
	"github.com/signal42/campaign-agent/internal/grounding"
	"github.com/signal42/campaign-agent/internal/llm"
	"github.com/signal42/campaign-agent/internal/tools"
)

// DefaultMaxTurns bounds the number of model calls per request.
const DefaultMaxTurns = 10

// ErrMaxTurnsExceeded is returned when the model keeps requesting tools
// past the turn ceiling. The conversation is left unchanged; the caller
// decides whether to surface or retry.
var ErrMaxTurnsExceeded = errors.New("max tool-calling turns exceeded")

// Stream event kinds.
const (
	StreamToken      = "token"
	StreamToolCall   = "tool_call"
	StreamToolResult = "tool_result"
)

// StreamEvent is one incremental event during RespondStream.
type StreamEvent struct {
	Kind     string         `json:"kind"`
	Token    string         `json:"token,omitempty"`
	ToolName string         `json:"tool_name,omitempty"`
	Input    map[string]any `json:"input,omitempty"`
	Result   any            `json:"result,omitempty"`
}

// StreamFunc receives stream events as they happen.
type StreamFunc func(StreamEvent)

// ToolCallRecord is one executed tool call with its result envelope.
type ToolCallRecord struct {
	Name   string         `json:"name"`
	Input  map[string]any `json:"input"`
	Result any            `json:"result"`
}

// Result is the outcome of one agent request.
type Result struct {
	Message      string             `json:"message"`
	ToolCalls    []ToolCallRecord   `json:"tool_calls"`
	NewMessages  []llm.Message      `json:"-"`
	Grounding    grounding.Metadata `json:"grounding"`
	Turns        int                `json:"turns"`
	InputTokens  int                `json:"input_tokens"`
	OutputTokens int                `json:"output_tokens"`
}

// Config tunes the orchestrator.
type Config struct {
	SystemPrompt string
	MaxTurns     int
}

// Orchestrator drives the request loop against an LLM client and the
// closed tool registry.
type Orchestrator struct {
	llm          llm.Client
	registry     *tools.Registry
	store        *campaign.Store
	bus          *events.Bus
	logger       *slog.Logger
	systemPrompt string
	maxTurns     int
}

// New creates an orchestrator. bus may be nil.
func New(llmClient llm.Client, registry *tools.Registry, store *campaign.Store, bus *events.Bus, logger *slog.Logger, cfg Config) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Orchestrator{
		llm:          llmClient,
		registry:     registry,
		store:        store,
		bus:          bus,
		logger:       logger.With("component", "agent"),
		systemPrompt: cfg.SystemPrompt,
		maxTurns:     maxTurns,
	}
}

// Respond runs one full request loop and returns the final grounded
// message.
func (o *Orchestrator) Respond(ctx context.Context, history []llm.Message, userMessage string) (*Result, error) {
	return o.run(ctx, history, userMessage, nil)
}

// RespondStream is Respond with token, tool-call, and tool-result
// events forwarded to fn as they happen. The grounding gate still
// applies to the final text, so a blocked message may differ from the
// streamed tokens.
func (o *Orchestrator) RespondStream(ctx context.Context, history []llm.Message, userMessage string, fn StreamFunc) (*Result, error) {
	return o.run(ctx, history, userMessage, fn)
}

func (o *Orchestrator) run(ctx context.Context, history []llm.Message, userMessage string, fn StreamFunc) (*Result, error) {
	var callback llm.StreamCallback
	if fn != nil {
		callback = func(ev llm.StreamEvent) {
			switch ev.Kind {
			case llm.KindToken:
				fn(StreamEvent{Kind: StreamToken, Token: ev.Token})
			case llm.KindToolCallStart:
				if ev.ToolCall != nil {
					fn(StreamEvent{Kind: StreamToolCall, ToolName: ev.ToolCall.Function.Name, Input: ev.ToolCall.Function.Arguments})
				}
			}
		}
	}
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: userMessage})
	baseLen := len(history)

	o.bus.Publish(events.Event{
		Source: events.SourceAgent,
		Kind:   events.KindRequestStart,
		Data:   map[string]any{"history": len(history)},
	})

	start := time.Now()
	var (
		records     []ToolCallRecord
		toolNames   []string
		totalInput  int
		totalOutput int
	)

	for turn := 0; turn < o.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("agent request cancelled: %w", err)
		}

		o.logger.Debug("model call", "turn", turn, "msgs", len(messages))
		o.bus.Publish(events.Event{
			Source: events.SourceAgent,
			Kind:   events.KindModelCall,
			Data:   map[string]any{"turn": turn, "messages": len(messages)},
		})

		resp, err := o.llm.ChatStream(ctx, o.systemPrompt, messages, tools.Definitions(), callback)
		if err != nil {
			return nil, fmt.Errorf("model call failed (turn %d): %w", turn, err)
		}
		totalInput += resp.InputTokens
		totalOutput += resp.OutputTokens

		o.bus.Publish(events.Event{
			Source: events.SourceAgent,
			Kind:   events.KindModelResponse,
			Data: map[string]any{
				"turn":          turn,
				"stop_reason":   resp.StopReason,
				"tool_calls":    len(resp.Message.ToolCalls),
				"output_tokens": resp.OutputTokens,
			},
		})

		if len(resp.Message.ToolCalls) == 0 {
			return o.finish(resp, messages, baseLen, records, toolNames, totalInput, totalOutput, turn+1, start)
		}

		messages = append(messages, resp.Message)
		for _, tc := range resp.Message.ToolCalls {
			result := o.registry.Dispatch(ctx, tc.Function.Name, tc.Function.Arguments)
			if fn != nil {
				fn(StreamEvent{Kind: StreamToolResult, ToolName: tc.Function.Name, Result: result})
			}
			records = append(records, ToolCallRecord{
				Name:   tc.Function.Name,
				Input:  tc.Function.Arguments,
				Result: result,
			})
			toolNames = append(toolNames, tc.Function.Name)

			payload, err := json.Marshal(result)
			if err != nil {
				payload = []byte(fmt.Sprintf(`{"success":false,"error":"failed to encode tool result: %s"}`, err))
			}
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    string(payload),
				ToolCallID: tc.ID,
			})
		}
	}

	o.logger.Warn("turn ceiling reached", "max_turns", o.maxTurns, "tool_calls", len(records))
	return nil, fmt.Errorf("%w after %d turns", ErrMaxTurnsExceeded, o.maxTurns)
}

// finish applies the grounding gate and assembles the result. The
// assistant message appended to history carries the enforced text, so
// a blocked claim never enters the conversation record.
func (o *Orchestrator) finish(resp *llm.ChatResponse, messages []llm.Message, baseLen int, records []ToolCallRecord, toolNames []string, totalInput, totalOutput, turns int, start time.Time) (*Result, error) {
	decision := grounding.EvaluatePolicy(resp.Message.Content, len(records))
	final := grounding.Enforce(resp.Message.Content, decision)

	snapshotTS := ""
	if agg, ok := o.store.Aggregations(); ok {
		snapshotTS = agg.PortfolioSummary.AsOf
	}
	meta := grounding.BuildMetadata(toolNames, decision, snapshotTS)

	messages = append(messages, llm.Message{Role: "assistant", Content: final})

	if records == nil {
		records = []ToolCallRecord{}
	}
	res := &Result{
		Message:      final,
		ToolCalls:    records,
		NewMessages:  messages[baseLen:],
		Grounding:    meta,
		Turns:        turns,
		InputTokens:  totalInput,
		OutputTokens: totalOutput,
	}

	o.logger.Info("request complete",
		"turns", turns,
		"tool_calls", len(records),
		"confidence", meta.Confidence,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	o.bus.Publish(events.Event{
		Source: events.SourceAgent,
		Kind:   events.KindRequestComplete,
		Data: map[string]any{
			"turns":      turns,
			"tool_calls": len(records),
			"confidence": meta.Confidence,
			"elapsed_ms": time.Since(start).Milliseconds(),
			"blocked":    meta.SourceScope == grounding.ScopeInsufficientEvidence,
		},
	})

	return res, nil
}
