package notify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/signal42/campaign-agent/internal/campaign"
	"github.com/signal42/campaign-agent/internal/config"
	"github.com/signal42/campaign-agent/internal/updates"
)

type fakeChannel struct {
	name string
	err  error

	mu   sync.Mutex
	sent []Update
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Send(_ context.Context, u Update) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, u)
	return c.err
}

func (c *fakeChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func testUpdate() (campaign.MediaBuy, campaign.DeliveryMetrics, []updates.Change, updates.Impact) {
	mb := campaign.MediaBuy{
		MediaBuyID:    "mb_apex_001",
		BrandManifest: campaign.BrandManifest{Name: "Apex Running"},
		Status:        campaign.StatusActive,
	}
	m := campaign.DeliveryMetrics{
		MediaBuyID:  "mb_apex_001",
		TotalBudget: 30000,
		TotalSpend:  12000,
		Pacing:      campaign.PacingOnTrack,
		Health:      campaign.HealthGood,
	}
	changes := []updates.Change{{
		Operation: updates.OpAdjustBid,
		Details:   "Adjusted mobile bid by -20%",
		Previous:  8.50,
		New:       6.80,
	}}
	impact := updates.Impact{
		EfficiencyImprovement: "CPM reduced by $1.70",
		Description:           "Changes applied successfully",
	}
	return mb, m, changes, impact
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestServiceFansOutToAllChannels(t *testing.T) {
	a := &fakeChannel{name: "a"}
	b := &fakeChannel{name: "b"}
	s := NewService([]Channel{a, b}, nil, nil, "https://dash.example.com", 0)
	s.Start(context.Background())
	defer s.Stop()

	s.CampaignUpdated(testUpdate())

	waitFor(t, func() bool { return a.count() == 1 && b.count() == 1 })

	a.mu.Lock()
	got := a.sent[0]
	a.mu.Unlock()
	if got.MediaBuyID != "mb_apex_001" || got.Brand != "Apex Running" {
		t.Errorf("update = %+v", got)
	}
	if got.DashboardURL != "https://dash.example.com" {
		t.Errorf("dashboard url = %q", got.DashboardURL)
	}
}

func TestServiceChannelFailuresAreIndependent(t *testing.T) {
	failing := &fakeChannel{name: "slack", err: errors.New("webhook down")}
	healthy := &fakeChannel{name: "mqtt"}
	s := NewService([]Channel{failing, healthy}, nil, nil, "", 0)
	s.Start(context.Background())
	defer s.Stop()

	s.CampaignUpdated(testUpdate())
	s.CampaignUpdated(testUpdate())

	waitFor(t, func() bool { return healthy.count() == 2 })
	if failing.count() != 2 {
		t.Errorf("failing channel attempts = %d, want 2", failing.count())
	}
}

func TestServiceDropsWhenQueueFull(t *testing.T) {
	// No worker running: the queue fills and extra updates are dropped
	// without blocking the caller.
	ch := &fakeChannel{name: "a"}
	s := NewService([]Channel{ch}, nil, nil, "", 2)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			s.CampaignUpdated(testUpdate())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("CampaignUpdated blocked on full queue")
	}
	if len(s.queue) != 2 {
		t.Errorf("queued = %d, want capacity 2", len(s.queue))
	}
}

func TestRenderMarkdown(t *testing.T) {
	mb, m, changes, impact := testUpdate()
	s := NewService(nil, nil, nil, "https://dash.example.com", 0)
	u := Update{
		MediaBuyID:   mb.MediaBuyID,
		Brand:        mb.BrandManifest.Name,
		Status:       mb.Status,
		TotalBudget:  m.TotalBudget,
		TotalSpend:   m.TotalSpend,
		Pacing:       m.Pacing,
		Health:       m.Health,
		Changes:      changes,
		Impact:       impact,
		DashboardURL: s.dashboardURL,
	}

	body := renderMarkdown(u)
	for _, want := range []string{
		"Campaign update: Apex Running",
		"adjust_bid: Adjusted mobile bid by -20% (was 8.5, now 6.8)",
		"Why: Tuning bids toward the efficiency target",
		"CPM reduced by $1.70",
		"https://dash.example.com/campaigns/mb_apex_001",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestEmailDraftChannelWritesDraft(t *testing.T) {
	dir := t.TempDir()
	ch := NewEmailDraftChannel("Campaign Agent <agent@example.com>", "Media Ops <ops@example.com>", dir)

	mb, m, changes, impact := testUpdate()
	u := Update{
		MediaBuyID:  mb.MediaBuyID,
		Brand:       mb.BrandManifest.Name,
		Status:      mb.Status,
		TotalBudget: m.TotalBudget,
		TotalSpend:  m.TotalSpend,
		Changes:     changes,
		Impact:      impact,
		OccurredAt:  time.Now().UTC(),
	}
	if err := ch.Send(context.Background(), u); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("drafts = %d", len(entries))
	}

	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	content := string(raw)
	for _, want := range []string{
		"Subject: Campaign update: Apex Running (mb_apex_001)",
		"ops@example.com",
		"multipart/alternative",
		"text/plain",
		"text/html",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("draft missing %q", want)
		}
	}
}

func TestMQTTChannelRequiresConnection(t *testing.T) {
	ch := NewMQTTChannel(config.MQTTConfig{Broker: "mqtt://localhost:1883"})
	err := ch.Send(context.Background(), Update{MediaBuyID: "mb_x"})
	if err == nil || !strings.Contains(err.Error(), "not connected") {
		t.Errorf("err = %v", err)
	}
}
