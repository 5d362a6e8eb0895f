// Package events provides a publish/subscribe event bus for operational
// observability. Events flow from components (agent loop, tool registry,
// notification dispatcher) to subscribers (WebSocket dashboard broadcast,
// future metrics collector). The bus is nil-safe: calling Publish on a
// nil *Bus is a no-op, so components do not need guard checks.
package events

import (
	"sync"
	"time"
)

// Source constants identify which component published an event.
const (
	// SourceAgent identifies events from the orchestration loop.
	SourceAgent = "agent"
	// SourceTools identifies events from tool execution.
	SourceTools = "tools"
	// SourceCampaign identifies campaign mutation events.
	SourceCampaign = "campaign"
	// SourceNotify identifies events from the notification dispatcher.
	SourceNotify = "notify"
)

// Kind constants describe the type of event within a source.
const (
	// KindRequestStart signals the beginning of a chat request.
	// Data: request_id, conversation_id.
	KindRequestStart = "request_start"
	// KindModelCall signals the start of a model API call.
	// Data: request_id, turn, model.
	KindModelCall = "model_call"
	// KindModelResponse signals completion of a model API call.
	// Data: request_id, turn, model, tokens_in, tokens_out, tool_calls.
	KindModelResponse = "model_response"
	// KindToolCall signals the start of a tool execution.
	// Data: request_id, tool.
	KindToolCall = "tool_call"
	// KindToolDone signals completion of a tool execution.
	// Data: request_id, tool, ok, duration_ms.
	KindToolDone = "tool_done"
	// KindRequestComplete signals the end of a chat request.
	// Data: request_id, turns, tokens_in, tokens_out, elapsed_ms.
	KindRequestComplete = "request_complete"

	// KindMediaBuyCreated signals a new campaign was created.
	// Data: media_buy_id, brand, budget.
	KindMediaBuyCreated = "media_buy_created"
	// KindMediaBuyUpdated signals a campaign mutation was applied.
	// Data: media_buy_id, operations, changes.
	KindMediaBuyUpdated = "media_buy_updated"
	// KindFeedbackSubmitted signals performance feedback was recorded.
	// Data: media_buy_id, feedback_type.
	KindFeedbackSubmitted = "feedback_submitted"

	// KindNotifySent signals a notification channel delivery attempt.
	// Data: channel, ok.
	KindNotifySent = "notify_sent"
)

// Event represents a single operational event published by a component.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"ts"`
	// Source identifies the component that published the event.
	Source string `json:"source"`
	// Kind describes the type of event within the source.
	Kind string `json:"kind"`
	// Data holds event-specific key/value pairs.
	Data map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast event bus. Subscribers receive events
// on buffered channels; slow subscribers miss events rather than
// blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	// recvToSend maps the receive-only channel returned by Subscribe
	// back to the bidirectional channel stored in subs, so Unsubscribe
	// can accept <-chan Event without an illegal type conversion.
	recvToSend map[<-chan Event]chan Event
}

// New creates a new event bus ready for use.
func New() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish sends an event to all subscribers. Non-blocking: if a
// subscriber's channel is full, the event is dropped for that
// subscriber. Safe to call on a nil receiver (no-op).
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is full; drop rather than block.
		}
	}
}

// Subscribe returns a channel that receives published events. The
// caller must eventually call Unsubscribe to avoid resource leaks.
// bufSize controls the channel buffer; 64 is a reasonable default for
// WebSocket consumers.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes the channel. Safe to
// call with a channel that is already unsubscribed (no-op).
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
