package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/signal42/campaign-agent/internal/campaign"
	"github.com/signal42/campaign-agent/internal/updates"
)

func testStore() *campaign.Store {
	s := campaign.NewStore()
	s.SetProducts([]campaign.Product{
		{
			ProductID:     "prod_sports_video",
			Name:          "Sports Video Premium",
			Description:   "Pre-roll video across live sports streams",
			Category:      "Sports",
			Platform:      "display_programmatic",
			MinimumBudget: 5000,
			PricingOptions: []campaign.PricingOption{
				{PricingOptionID: "po_guaranteed", Currency: "USD", CPM: 25.00, PricingModel: "guaranteed"},
				{PricingOptionID: "po_open", Currency: "USD", CPM: 18.00, PricingModel: "auction"},
			},
		},
		{
			ProductID:     "prod_news_display",
			Name:          "News Display",
			Description:   "Standard display on news properties",
			Category:      "News",
			Platform:      "google_ads",
			MinimumBudget: 1000,
			PricingOptions: []campaign.PricingOption{
				{PricingOptionID: "po_news", Currency: "USD", CPM: 6.50, PricingModel: "auction"},
			},
		},
	})
	s.SetCreativeFormats([]campaign.CreativeFormat{
		{FormatID: "display_300x250", Name: "Medium Rectangle", Type: "display"},
		{FormatID: "video_16x9", Name: "Widescreen Video", Type: "video"},
	})
	s.SetAuthorizedProperties([]campaign.AuthorizedProperty{
		{PropertyID: "prop_sportstream", Name: "SportStream", AuthorizationLevel: "full"},
	})
	s.UpsertMediaBuy(campaign.MediaBuy{
		MediaBuyID:    "mb_apex_001",
		BuyerRef:      "apex_1700000000",
		BrandManifest: campaign.BrandManifest{Name: "Apex Running"},
		Status:        campaign.StatusActive,
		Packages: []campaign.Package{{
			PackageID: "pkg_mb_apex_001_001",
			ProductID: "prod_sports_video",
			Budget:    30000,
			TargetingOverlay: campaign.TargetingOverlay{
				campaign.DimGeoCountry: []string{"US", "CA"},
				campaign.DimDeviceType: []string{"mobile", "desktop"},
			},
		}},
	})
	s.UpsertMetrics(campaign.DeliveryMetrics{
		MediaBuyID:  "mb_apex_001",
		Brand:       "Apex Running",
		TotalBudget: 30000,
		TotalSpend:  12000,
		Pacing:      campaign.PacingOnTrack,
		Health:      campaign.HealthGood,
		Summary: campaign.MetricsSummary{
			Impressions: 1500000,
			Clicks:      12000,
			CTR:         0.8,
			CPM:         8.0,
			Viewability: 68,
		},
		ByDevice: map[string]campaign.DeviceMetrics{
			"mobile":  {Spend: 8000},
			"desktop": {Spend: 4000},
		},
		ByGeo: map[string]campaign.GeoMetrics{
			"US": {Spend: 9000},
			"CA": {Spend: 3000},
		},
		CurrentBids: map[string]float64{"mobile_cpm": 8.50, "desktop_cpm": 10.00},
		Platform:    "display_programmatic",
	})
	return s
}

type recordingNotifier struct {
	calls   int
	changes []updates.Change
}

func (n *recordingNotifier) CampaignUpdated(_ campaign.MediaBuy, _ campaign.DeliveryMetrics, changes []updates.Change, _ updates.Impact) {
	n.calls++
	n.changes = changes
}

func newTestRegistry(t *testing.T) (*Registry, *campaign.Store, *recordingNotifier) {
	t.Helper()
	store := testStore()
	notifier := &recordingNotifier{}
	return NewRegistry(store, notifier, nil, nil), store, notifier
}

func TestDispatchUnknownTool(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	res := r.Dispatch(context.Background(), "delete_everything", nil)
	env, ok := res.(ErrorEnvelope)
	if !ok {
		t.Fatalf("result = %T, want ErrorEnvelope", res)
	}
	if env.Error != "Unknown tool: delete_everything" {
		t.Errorf("error = %q", env.Error)
	}
}

func TestGetProductsFilters(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	res := r.Dispatch(context.Background(), ToolGetProducts, map[string]any{"category": "sports"}).(GetProductsResult)
	if res.Count != 1 || res.Products[0].ProductID != "prod_sports_video" {
		t.Fatalf("category filter: %+v", res)
	}
	if res.FiltersApplied["category"] != "sports" {
		t.Errorf("filters_applied = %v", res.FiltersApplied)
	}

	// max_cpm keeps a product if any pricing option qualifies.
	res = r.Dispatch(context.Background(), ToolGetProducts, map[string]any{"max_cpm": 20.0}).(GetProductsResult)
	if res.Count != 2 {
		t.Errorf("max_cpm 20 count = %d, want 2", res.Count)
	}
	res = r.Dispatch(context.Background(), ToolGetProducts, map[string]any{"max_cpm": 10.0}).(GetProductsResult)
	if res.Count != 1 || res.Products[0].ProductID != "prod_news_display" {
		t.Errorf("max_cpm 10: %+v", res)
	}
}

func TestListCreativeFormatsTypeFilter(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	res := r.Dispatch(context.Background(), ToolListCreativeFormats, map[string]any{"type": "video"}).(ListCreativeFormatsResult)
	if res.Count != 1 || res.Formats[0].FormatID != "video_16x9" {
		t.Fatalf("type filter: %+v", res)
	}

	res = r.Dispatch(context.Background(), ToolListCreativeFormats, map[string]any{}).(ListCreativeFormatsResult)
	if res.Count != 2 {
		t.Errorf("unfiltered count = %d", res.Count)
	}
}

func TestListAuthorizedProperties(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	res := r.Dispatch(context.Background(), ToolListAuthorizedProperties, nil).(ListAuthorizedPropertiesResult)
	if !res.Success || res.Count != 1 || res.Properties[0].PropertyID != "prop_sportstream" {
		t.Fatalf("result: %+v", res)
	}
}

func TestCreateMediaBuy(t *testing.T) {
	r, store, _ := newTestRegistry(t)

	args := map[string]any{
		"brand_name": "Luxe Beauty Co",
		"product_id": "prod_sports_video",
		"budget":     20000.0,
		"targeting":  map[string]any{"geo_country_any_of": []any{"US"}},
		"start_time": "2026-09-01T00:00:00Z",
		"end_time":   "2026-10-01T00:00:00Z",
	}
	res := r.Dispatch(context.Background(), ToolCreateMediaBuy, args).(CreateMediaBuyResult)
	if !res.Success {
		t.Fatalf("create failed: %q", res.Error)
	}
	if res.MediaBuy.MediaBuyID != "mb_luxe_beauty_co_1" {
		t.Errorf("id = %q", res.MediaBuy.MediaBuyID)
	}
	if res.MediaBuy.Status != campaign.StatusSubmitted {
		t.Errorf("status = %q", res.MediaBuy.Status)
	}
	// Lowest CPM option (18.00) drives the estimate: 20000/18*1000.
	if res.MediaBuy.EstimatedImpressions != 1111111 {
		t.Errorf("estimated_impressions = %d", res.MediaBuy.EstimatedImpressions)
	}

	mb, ok := store.MediaBuy("mb_luxe_beauty_co_1")
	if !ok {
		t.Fatal("media buy not stored")
	}
	if len(mb.Packages) != 1 || mb.Packages[0].PricingOptionID != "po_guaranteed" {
		t.Errorf("package = %+v", mb.Packages)
	}
	m, ok := store.Metrics("mb_luxe_beauty_co_1")
	if !ok {
		t.Fatal("metrics not seeded")
	}
	if m.TotalSpend != 0 || len(m.Recommendations) != 1 || !strings.Contains(m.Recommendations[0], "just launched") {
		t.Errorf("seeded metrics = %+v", m)
	}

	// Same brand again gets the next sequence suffix.
	res = r.Dispatch(context.Background(), ToolCreateMediaBuy, args).(CreateMediaBuyResult)
	if res.MediaBuy.MediaBuyID != "mb_luxe_beauty_co_2" {
		t.Errorf("second id = %q", res.MediaBuy.MediaBuyID)
	}
}

func TestCreateMediaBuyValidation(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	res := r.Dispatch(context.Background(), ToolCreateMediaBuy, map[string]any{"brand_name": "Apex"}).(CreateMediaBuyResult)
	if res.Success || !strings.Contains(res.Error, "Missing required fields") {
		t.Errorf("missing fields: %+v", res)
	}

	res = r.Dispatch(context.Background(), ToolCreateMediaBuy, map[string]any{
		"brand_name": "Apex",
		"product_id": "prod_nope",
		"budget":     20000.0,
		"start_time": "2026-09-01",
		"end_time":   "2026-10-01",
	}).(CreateMediaBuyResult)
	if res.Success || !strings.Contains(res.Error, "Product not found") {
		t.Errorf("unknown product: %+v", res)
	}

	res = r.Dispatch(context.Background(), ToolCreateMediaBuy, map[string]any{
		"brand_name": "Apex",
		"product_id": "prod_sports_video",
		"budget":     100.0,
		"start_time": "2026-09-01",
		"end_time":   "2026-10-01",
	}).(CreateMediaBuyResult)
	if res.Success || !strings.Contains(res.Error, "below minimum") {
		t.Errorf("below minimum: %+v", res)
	}
}

func TestGetMediaBuyDeliverySingle(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	// Fuzzy brand-name resolution reaches the same campaign.
	for _, ref := range []string{"mb_apex_001", "apex"} {
		res := r.Dispatch(context.Background(), ToolGetMediaBuyDelivery, map[string]any{"media_buy_id": ref}).(DeliverySingleResult)
		if !res.Success {
			t.Fatalf("lookup %q failed: %q", ref, res.Error)
		}
		if res.Metrics.MediaBuyID != "mb_apex_001" {
			t.Errorf("lookup %q resolved to %q", ref, res.Metrics.MediaBuyID)
		}
	}

	res := r.Dispatch(context.Background(), ToolGetMediaBuyDelivery, map[string]any{"media_buy_id": "nope"}).(DeliverySingleResult)
	if res.Success || !strings.Contains(res.Error, "not found") {
		t.Errorf("unknown id: %+v", res)
	}
}

func TestGetMediaBuyDeliveryGuaranteeCompliance(t *testing.T) {
	r, store, _ := newTestRegistry(t)

	res := r.Dispatch(context.Background(), ToolGetMediaBuyDelivery, map[string]any{"media_buy_id": "mb_apex_001"}).(DeliverySingleResult)
	if res.GuaranteeCompliance != nil {
		t.Errorf("compliance without guarantees = %+v", res.GuaranteeCompliance)
	}

	store.SetGuarantees("mb_apex_001", []campaign.ContractualGuarantee{
		{GuaranteeID: "g_impressions", Metric: "impressions", Operator: campaign.OpGTE, GuaranteedValue: 1600000},
		{GuaranteeID: "g_viewability", Metric: "viewability", Operator: campaign.OpGTE, GuaranteedValue: 65},
	})

	res = r.Dispatch(context.Background(), ToolGetMediaBuyDelivery, map[string]any{"media_buy_id": "mb_apex_001"}).(DeliverySingleResult)
	c := res.GuaranteeCompliance
	if c == nil {
		t.Fatal("expected guarantee compliance in delivery result")
	}
	if !c.HasGuarantees || c.OverallStatus != campaign.ComplianceAtRisk {
		t.Errorf("overall = %+v", c)
	}
	if got := c.Guarantees[0]; got.ComplianceStatus != campaign.ComplianceAtRisk || *got.PercentToTarget != 94 {
		t.Errorf("impressions guarantee = %+v", got)
	}
	if got := c.Guarantees[1]; got.ComplianceStatus != campaign.ComplianceCompliant || *got.CurrentValue != 68 {
		t.Errorf("viewability guarantee = %+v", got)
	}
}

func TestGetMediaBuyDeliveryAll(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	res := r.Dispatch(context.Background(), ToolGetMediaBuyDelivery, map[string]any{}).(DeliveryAllResult)
	if !res.Success || res.Count != 1 {
		t.Fatalf("all: %+v", res)
	}

	res = r.Dispatch(context.Background(), ToolGetMediaBuyDelivery, map[string]any{"platform": "google_ads"}).(DeliveryAllResult)
	if res.Count != 0 {
		t.Errorf("platform filter count = %d", res.Count)
	}
}

func TestUpdateMediaBuyAdjustBid(t *testing.T) {
	r, store, notifier := newTestRegistry(t)

	res := r.Dispatch(context.Background(), ToolUpdateMediaBuy, map[string]any{
		"media_buy_id": "apex",
		"updates": map[string]any{
			"adjust_bid": map[string]any{"device": "mobile", "change_percent": -20.0},
		},
	}).(UpdateMediaBuyResult)
	if !res.Success {
		t.Fatalf("update failed: %q", res.Error)
	}
	if res.Result.MediaBuyID != "mb_apex_001" || !res.Result.Success {
		t.Errorf("result = %+v", res.Result)
	}
	if len(res.Result.ChangesApplied) != 1 {
		t.Fatalf("changes = %+v", res.Result.ChangesApplied)
	}
	if !strings.Contains(res.Result.EstimatedImpact.EfficiencyImprovement, "$1.70") {
		t.Errorf("impact = %+v", res.Result.EstimatedImpact)
	}

	m, _ := store.Metrics("mb_apex_001")
	if m.CurrentBids["mobile_cpm"] != 6.80 {
		t.Errorf("stored bid = %v", m.CurrentBids["mobile_cpm"])
	}
	if notifier.calls != 1 {
		t.Errorf("notifier calls = %d", notifier.calls)
	}
}

func TestUpdateMediaBuyValidation(t *testing.T) {
	r, _, notifier := newTestRegistry(t)

	res := r.Dispatch(context.Background(), ToolUpdateMediaBuy, map[string]any{}).(UpdateMediaBuyResult)
	if res.Success || !strings.Contains(res.Error, "media_buy_id") {
		t.Errorf("missing id: %+v", res)
	}

	res = r.Dispatch(context.Background(), ToolUpdateMediaBuy, map[string]any{
		"media_buy_id": "apex",
		"updates":      map[string]any{},
	}).(UpdateMediaBuyResult)
	if res.Success || !strings.Contains(res.Error, "at least one operation") {
		t.Errorf("empty updates: %+v", res)
	}

	res = r.Dispatch(context.Background(), ToolUpdateMediaBuy, map[string]any{
		"media_buy_id": "zzz",
		"updates": map[string]any{
			"set_status": map[string]any{"status": "paused"},
		},
	}).(UpdateMediaBuyResult)
	if res.Success || !strings.Contains(res.Error, "not found") {
		t.Errorf("unknown campaign: %+v", res)
	}
	if notifier.calls != 0 {
		t.Errorf("notifier fired on failed updates: %d", notifier.calls)
	}
}

func TestProvidePerformanceFeedback(t *testing.T) {
	r, store, _ := newTestRegistry(t)

	res := r.Dispatch(context.Background(), ToolProvidePerformanceFeedback, map[string]any{
		"media_buy_id":  "apex",
		"feedback_type": "conversion_data",
		"data": map[string]any{
			"conversions":      150.0,
			"conversion_value": 48000.0,
		},
	}).(FeedbackResult)
	if !res.Success {
		t.Fatalf("feedback failed: %q", res.Error)
	}
	// 48000 / 12000 spend = 4.0x ROAS.
	if !strings.Contains(res.Result.Impact, "Strong ROAS of 4.0x") {
		t.Errorf("impact = %q", res.Result.Impact)
	}
	if !strings.HasPrefix(res.Result.FeedbackID, "fb_mb_apex_001_conversion_") {
		t.Errorf("feedback id = %q", res.Result.FeedbackID)
	}
	if res.Result.Status != "processed" {
		t.Errorf("status = %q", res.Result.Status)
	}

	log := store.Feedback("mb_apex_001")
	if len(log) != 1 || log[0].FeedbackType != campaign.FeedbackConversionData {
		t.Errorf("feedback log = %+v", log)
	}
}

func TestProvidePerformanceFeedbackBands(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	tests := []struct {
		name         string
		feedbackType string
		data         map[string]any
		wantFragment string
	}{
		{
			"lead quality excellent",
			"lead_quality",
			map[string]any{"leads_submitted": 100.0, "leads_qualified": 45.0, "pipeline_value": 250000.0},
			"Excellent lead quality: 45%",
		},
		{
			"lead quality below target",
			"lead_quality",
			map[string]any{"leads_submitted": 100.0, "leads_qualified": 10.0},
			"below target at 10%",
		},
		{
			"brand lift strong",
			"brand_lift",
			map[string]any{"awareness_lift": 15.0, "consideration_lift": 12.0, "purchase_intent_lift": 9.0, "sample_size": 2400.0},
			"Strong brand lift results (n=2400)",
		},
		{
			"brand lift limited",
			"brand_lift",
			map[string]any{"awareness_lift": 2.0, "consideration_lift": 1.0, "purchase_intent_lift": 1.0},
			"Limited brand lift",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Dispatch(context.Background(), ToolProvidePerformanceFeedback, map[string]any{
				"media_buy_id":  "apex",
				"feedback_type": tt.feedbackType,
				"data":          tt.data,
			}).(FeedbackResult)
			if !res.Success {
				t.Fatalf("feedback failed: %q", res.Error)
			}
			if !strings.Contains(res.Result.Impact, tt.wantFragment) {
				t.Errorf("impact = %q, want fragment %q", res.Result.Impact, tt.wantFragment)
			}
		})
	}
}

func TestProvidePerformanceFeedbackValidation(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	res := r.Dispatch(context.Background(), ToolProvidePerformanceFeedback, map[string]any{
		"media_buy_id":  "apex",
		"feedback_type": "vibes",
		"data":          map[string]any{},
	}).(FeedbackResult)
	if res.Success || !strings.Contains(res.Error, "Invalid feedback_type") {
		t.Errorf("invalid type: %+v", res)
	}
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	// A nil store makes every handler panic on first access.
	r := NewRegistry(nil, nil, nil, nil)

	res := r.Dispatch(context.Background(), ToolGetProducts, map[string]any{})
	env, ok := res.(ErrorEnvelope)
	if !ok {
		t.Fatalf("result = %T, want ErrorEnvelope", res)
	}
	if !strings.Contains(env.Error, "internal error executing get_products") {
		t.Errorf("error = %q", env.Error)
	}
}
