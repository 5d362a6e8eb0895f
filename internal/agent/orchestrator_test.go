package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/signal42/campaign-agent/internal/campaign"
	"github.com/signal42/campaign-agent/internal/grounding"
	"github.com/signal42/campaign-agent/internal/llm"
	"github.com/signal42/campaign-agent/internal/tools"
)

// scriptedClient returns canned responses in order. When the script is
// exhausted it repeats the last entry, which lets a tool-only script
// model a runaway loop.
type scriptedClient struct {
	script []llm.ChatResponse
	calls  int
	seen   [][]llm.Message
}

func (c *scriptedClient) Chat(ctx context.Context, system string, messages []llm.Message, defs []llm.ToolDefinition) (*llm.ChatResponse, error) {
	return c.ChatStream(ctx, system, messages, defs, nil)
}

func (c *scriptedClient) ChatStream(_ context.Context, _ string, messages []llm.Message, _ []llm.ToolDefinition, callback llm.StreamCallback) (*llm.ChatResponse, error) {
	snapshot := make([]llm.Message, len(messages))
	copy(snapshot, messages)
	c.seen = append(c.seen, snapshot)

	idx := c.calls
	if idx >= len(c.script) {
		idx = len(c.script) - 1
	}
	c.calls++
	resp := c.script[idx]

	if callback != nil && resp.Message.Content != "" {
		callback(llm.StreamEvent{Kind: llm.KindToken, Token: resp.Message.Content})
	}
	return &resp, nil
}

func toolCallResponse(id, name string, args map[string]any) llm.ChatResponse {
	return llm.ChatResponse{
		StopReason: "tool_use",
		Message: llm.Message{
			Role: "assistant",
			ToolCalls: []llm.ToolCall{{
				ID:       id,
				Function: llm.FunctionCall{Name: name, Arguments: args},
			}},
		},
		InputTokens:  100,
		OutputTokens: 20,
	}
}

func textResponse(text string) llm.ChatResponse {
	return llm.ChatResponse{
		StopReason:   "end_turn",
		Message:      llm.Message{Role: "assistant", Content: text},
		InputTokens:  100,
		OutputTokens: 30,
	}
}

func newTestOrchestrator(client llm.Client, maxTurns int) (*Orchestrator, *campaign.Store) {
	store := campaign.NewStore()
	store.UpsertMediaBuy(campaign.MediaBuy{
		MediaBuyID:    "mb_apex_001",
		BrandManifest: campaign.BrandManifest{Name: "Apex Running"},
		Status:        campaign.StatusActive,
	})
	store.UpsertMetrics(campaign.DeliveryMetrics{
		MediaBuyID:  "mb_apex_001",
		Brand:       "Apex Running",
		TotalBudget: 30000,
		TotalSpend:  12000,
	})
	store.SetAggregations(campaign.Aggregations{
		PortfolioSummary: campaign.PortfolioSummary{AsOf: "2026-08-31T12:00:00Z"},
	})

	registry := tools.NewRegistry(store, nil, nil, nil)
	return New(client, registry, store, nil, nil, Config{MaxTurns: maxTurns}), store
}

func TestRespondToolRoundsThenText(t *testing.T) {
	client := &scriptedClient{script: []llm.ChatResponse{
		toolCallResponse("tc_1", tools.ToolGetMediaBuyDelivery, map[string]any{"media_buy_id": "apex"}),
		toolCallResponse("tc_2", tools.ToolGetMediaBuyDelivery, map[string]any{}),
		textResponse("The Apex campaign spend is $12,000 of a $30,000 budget."),
	}}
	o, _ := newTestOrchestrator(client, 10)

	history := []llm.Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "Hello! How can I help with your campaigns?"},
	}
	res, err := o.Respond(context.Background(), history, "How is Apex pacing?")
	if err != nil {
		t.Fatal(err)
	}

	if res.Message != "The Apex campaign spend is $12,000 of a $30,000 budget." {
		t.Errorf("message = %q", res.Message)
	}
	if len(res.ToolCalls) != 2 {
		t.Fatalf("tool calls = %d", len(res.ToolCalls))
	}
	if res.ToolCalls[0].Name != tools.ToolGetMediaBuyDelivery {
		t.Errorf("first tool = %q", res.ToolCalls[0].Name)
	}
	if res.Turns != 3 {
		t.Errorf("turns = %d", res.Turns)
	}

	// user + (assistant+tool)x2 + final assistant.
	if len(res.NewMessages) != 6 {
		t.Fatalf("new messages = %d: %+v", len(res.NewMessages), res.NewMessages)
	}
	if res.NewMessages[0].Role != "user" || res.NewMessages[0].Content != "How is Apex pacing?" {
		t.Errorf("first new message = %+v", res.NewMessages[0])
	}
	last := res.NewMessages[len(res.NewMessages)-1]
	if last.Role != "assistant" || last.Content != res.Message {
		t.Errorf("last new message = %+v", last)
	}

	// Tool results are fed back as tool-role messages correlated by id.
	toolMsg := res.NewMessages[2]
	if toolMsg.Role != "tool" || toolMsg.ToolCallID != "tc_1" {
		t.Errorf("tool message = %+v", toolMsg)
	}
	if !strings.Contains(toolMsg.Content, `"media_buy_id":"mb_apex_001"`) {
		t.Errorf("tool result payload = %q", toolMsg.Content)
	}

	// Each model call sees the prior history plus accumulated turn messages.
	if len(client.seen) != 3 {
		t.Fatalf("model calls = %d", len(client.seen))
	}
	if len(client.seen[0]) != 3 || len(client.seen[2]) != 7 {
		t.Errorf("message growth = %d then %d", len(client.seen[0]), len(client.seen[2]))
	}

	if res.Grounding.Confidence != grounding.ConfidenceHigh || res.Grounding.SourceScope != grounding.ScopeToolData {
		t.Errorf("grounding = %+v", res.Grounding)
	}
	if res.Grounding.DataSnapshotTS != "2026-08-31T12:00:00Z" {
		t.Errorf("snapshot = %q, want portfolio as_of", res.Grounding.DataSnapshotTS)
	}
	if len(res.Grounding.ToolCallsUsed) != 1 {
		t.Errorf("tool names not deduplicated: %v", res.Grounding.ToolCallsUsed)
	}
}

func TestRespondBlocksUngroundedMetricClaim(t *testing.T) {
	client := &scriptedClient{script: []llm.ChatResponse{
		textResponse("Your Apex campaign CTR is 2.5% and trending up."),
	}}
	o, _ := newTestOrchestrator(client, 10)

	res, err := o.Respond(context.Background(), nil, "How is Apex doing?")
	if err != nil {
		t.Fatal(err)
	}

	if res.Message != grounding.InsufficientEvidenceMessage {
		t.Errorf("message = %q, want refusal", res.Message)
	}
	if res.Grounding.SourceScope != grounding.ScopeInsufficientEvidence {
		t.Errorf("grounding = %+v", res.Grounding)
	}
	// The conversation record carries the enforced text, not the claim.
	last := res.NewMessages[len(res.NewMessages)-1]
	if last.Content != grounding.InsufficientEvidenceMessage {
		t.Errorf("recorded assistant message = %q", last.Content)
	}
}

func TestRespondGeneralAnswerPasses(t *testing.T) {
	client := &scriptedClient{script: []llm.ChatResponse{
		textResponse("A healthy CTR for display is typically around 0.5-1%."),
	}}
	o, _ := newTestOrchestrator(client, 10)

	res, err := o.Respond(context.Background(), nil, "What is a good CTR?")
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != "A healthy CTR for display is typically around 0.5-1%." {
		t.Errorf("general answer altered: %q", res.Message)
	}
	if res.Grounding.SourceScope != grounding.ScopeGeneralResponse {
		t.Errorf("grounding = %+v", res.Grounding)
	}
}

func TestRespondMaxTurnsExceeded(t *testing.T) {
	client := &scriptedClient{script: []llm.ChatResponse{
		toolCallResponse("tc_loop", tools.ToolGetMediaBuyDelivery, map[string]any{}),
	}}
	o, _ := newTestOrchestrator(client, 3)

	_, err := o.Respond(context.Background(), nil, "loop forever")
	if !errors.Is(err, ErrMaxTurnsExceeded) {
		t.Fatalf("err = %v, want ErrMaxTurnsExceeded", err)
	}
	if client.calls != 3 {
		t.Errorf("model calls = %d, want the configured ceiling", client.calls)
	}
}

func TestRespondStreamForwardsTokens(t *testing.T) {
	client := &scriptedClient{script: []llm.ChatResponse{
		textResponse("All good."),
	}}
	o, _ := newTestOrchestrator(client, 10)

	var streamed strings.Builder
	res, err := o.RespondStream(context.Background(), nil, "hi", func(ev StreamEvent) {
		if ev.Kind == StreamToken {
			streamed.WriteString(ev.Token)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if streamed.String() != "All good." || res.Message != "All good." {
		t.Errorf("streamed %q, result %q", streamed.String(), res.Message)
	}
}

func TestRespondStreamEmitsToolResults(t *testing.T) {
	client := &scriptedClient{script: []llm.ChatResponse{
		toolCallResponse("tc_1", tools.ToolGetMediaBuyDelivery, map[string]any{"media_buy_id": "apex"}),
		textResponse("Done."),
	}}
	o, _ := newTestOrchestrator(client, 10)

	var toolResults []StreamEvent
	_, err := o.RespondStream(context.Background(), nil, "check apex", func(ev StreamEvent) {
		if ev.Kind == StreamToolResult {
			toolResults = append(toolResults, ev)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(toolResults) != 1 || toolResults[0].ToolName != tools.ToolGetMediaBuyDelivery {
		t.Errorf("tool result events = %+v", toolResults)
	}
}

func TestRespondUnknownToolFedBackAsError(t *testing.T) {
	client := &scriptedClient{script: []llm.ChatResponse{
		toolCallResponse("tc_bad", "summon_demons", nil),
		textResponse("I can't do that."),
	}}
	o, _ := newTestOrchestrator(client, 10)

	res, err := o.Respond(context.Background(), nil, "do the thing")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d", len(res.ToolCalls))
	}
	env, ok := res.ToolCalls[0].Result.(tools.ErrorEnvelope)
	if !ok || !strings.Contains(env.Error, "Unknown tool") {
		t.Errorf("result = %+v", res.ToolCalls[0].Result)
	}
	// The error envelope reaches the model as a tool result.
	toolMsg := res.NewMessages[2]
	if !strings.Contains(toolMsg.Content, "Unknown tool: summon_demons") {
		t.Errorf("tool message = %q", toolMsg.Content)
	}
}
