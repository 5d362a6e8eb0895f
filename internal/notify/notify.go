// Package notify fans campaign-change notifications out to configured
// channels through a bounded queue. Channels fail independently: a
// Slack outage never blocks the email draft or the MQTT feed, and no
// channel failure ever reaches the campaign mutation path.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/signal42/campaign-agent/internal/campaign"
	"github.com/signal42/campaign-agent/internal/events"
	"github.com/signal42/campaign-agent/internal/updates"
)

// defaultQueueSize bounds pending notifications. When the queue is
// full, new updates are dropped with a warning rather than blocking
// the tool handler.
const defaultQueueSize = 64

// sendTimeout bounds each channel delivery attempt.
const sendTimeout = 15 * time.Second

// Update describes a campaign change for delivery.
type Update struct {
	MediaBuyID   string           `json:"media_buy_id"`
	Brand        string           `json:"brand"`
	Status       string           `json:"status"`
	TotalBudget  float64          `json:"total_budget"`
	TotalSpend   float64          `json:"total_spend"`
	Pacing       string           `json:"pacing"`
	Health       string           `json:"health"`
	Changes      []updates.Change `json:"changes"`
	Impact       updates.Impact   `json:"impact"`
	DashboardURL string           `json:"dashboard_url,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
}

// Channel delivers an update to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, u Update) error
}

// Service owns the notification queue and its worker.
type Service struct {
	channels     []Channel
	queue        chan Update
	bus          *events.Bus
	logger       *slog.Logger
	dashboardURL string
	wg           sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewService creates a notification service. queueSize <= 0 selects the
// default. bus may be nil.
func NewService(channels []Channel, bus *events.Bus, logger *slog.Logger, dashboardURL string, queueSize int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Service{
		channels:     channels,
		queue:        make(chan Update, queueSize),
		bus:          bus,
		logger:       logger.With("component", "notify"),
		dashboardURL: dashboardURL,
	}
}

// Start launches the delivery worker. It returns immediately; call
// Stop to drain and shut down.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-s.queue:
				if !ok {
					return
				}
				s.deliver(ctx, u)
			}
		}
	}()
}

// Stop closes the queue and waits for in-flight deliveries.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	s.wg.Wait()
}

// CampaignUpdated enqueues a notification. Non-blocking: when the
// queue is full the update is dropped and logged.
func (s *Service) CampaignUpdated(mb campaign.MediaBuy, metrics campaign.DeliveryMetrics, changes []updates.Change, impact updates.Impact) {
	u := Update{
		MediaBuyID:   mb.MediaBuyID,
		Brand:        mb.BrandManifest.Name,
		Status:       mb.Status,
		TotalBudget:  metrics.TotalBudget,
		TotalSpend:   metrics.TotalSpend,
		Pacing:       metrics.Pacing,
		Health:       metrics.Health,
		Changes:      changes,
		Impact:       impact,
		DashboardURL: s.dashboardURL,
		OccurredAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	select {
	case s.queue <- u:
	default:
		s.logger.Warn("notification queue full, dropping update",
			"media_buy_id", u.MediaBuyID, "changes", len(u.Changes))
	}
}

// deliver sends one update to every channel. Failures are logged and
// reported on the bus per channel; they never abort the loop.
func (s *Service) deliver(ctx context.Context, u Update) {
	for _, ch := range s.channels {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := ch.Send(sendCtx, u)
		cancel()

		data := map[string]any{
			"channel":      ch.Name(),
			"media_buy_id": u.MediaBuyID,
			"ok":           err == nil,
		}
		if err != nil {
			data["error"] = err.Error()
			s.logger.Warn("notification delivery failed",
				"channel", ch.Name(), "media_buy_id", u.MediaBuyID, "error", err)
		} else {
			s.logger.Debug("notification delivered",
				"channel", ch.Name(), "media_buy_id", u.MediaBuyID)
		}
		s.bus.Publish(events.Event{
			Source: events.SourceNotify,
			Kind:   events.KindNotifySent,
			Data:   data,
		})
	}
}
