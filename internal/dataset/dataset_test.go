package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/signal42/campaign-agent/internal/campaign"
)

const fixture = `{
  "_metadata": {"generated": "2026-08-31"},
  "products": [
    {
      "product_id": "prod_sports_video",
      "name": "Sports Video Premium",
      "category": "Sports",
      "pricing_options": [
        {"pricing_option_id": "po_1", "currency": "USD", "cpm": 18.0, "pricing_model": "auction"}
      ],
      "minimum_budget": 5000
    }
  ],
  "media_buys": [
    {
      "media_buy_id": "mb_apex_001",
      "buyer_ref": "apex_1700000000",
      "brand_manifest": {"name": "Apex Running", "url": "https://apexrunning.com"},
      "packages": [
        {
          "package_id": "pkg_mb_apex_001_001",
          "product_id": "prod_sports_video",
          "pricing_option_id": "po_1",
          "budget": 30000,
          "targeting_overlay": {"geo_country_any_of": ["US", "CA"]}
        }
      ],
      "start_time": "2026-08-01T00:00:00Z",
      "end_time": "2026-10-01T00:00:00Z",
      "status": "active",
      "created_at": "2026-07-28T00:00:00Z",
      "contractual_guarantees": [
        {
          "guarantee_id": "g1",
          "metric": "impressions",
          "operator": "gte",
          "guaranteed_value": 1000000,
          "penalty_description": "5% rebate"
        }
      ]
    }
  ],
  "delivery_metrics": [
    {
      "media_buy_id": "mb_apex_001",
      "brand": "Apex Running",
      "total_budget": 30000,
      "total_spend": 12000,
      "pacing": "on_track",
      "health": "good",
      "summary": {"impressions": 1500000, "clicks": 30000, "conversions": 900, "ctr": 2.0, "cpm": 8.0, "cpa": 13.3, "viewability": 70.1, "completion_rate": null},
      "by_device": {"mobile": {"impressions": 900000, "clicks": 20000, "ctr": 2.2, "spend": 8000, "cpm": 8.9}},
      "by_geo": {"US": {"impressions": 1200000, "clicks": 26000, "ctr": 2.1, "spend": 9000}},
      "current_bids": {"mobile_cpm": 8.5},
      "recommendations": ["Shift more budget to mobile"]
    }
  ],
  "aggregations": {
    "portfolio_summary": {"as_of": "2026-08-31T12:00:00Z", "total_active_campaigns": 1, "total_budget": 30000, "total_spend": 12000},
    "spend_by_category": {"Sports": {"spend": 12000, "share": 100}},
    "top_performing_campaigns": [],
    "underperforming_campaigns": []
  },
  "performance_feedback_log": [
    {
      "feedback_id": "fb_mb_apex_001_conversion_1700000001",
      "media_buy_id": "mb_apex_001",
      "submitted_at": "2026-08-20T00:00:00Z",
      "feedback_type": "conversion_data",
      "data": {"conversions": 120, "conversion_value": 36000},
      "status": "processed",
      "impact": "Positive ROAS of 3.0x with 120 conversions."
    }
  ],
  "query_examples": ["How is Apex pacing?"]
}`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.json")
	if err := os.WriteFile(path, []byte(fixture), 0o644); err != nil {
		t.Fatal(err)
	}

	store := campaign.NewStore()
	if err := Load(path, store, nil); err != nil {
		t.Fatal(err)
	}

	products := store.Products()
	if len(products) != 1 || products[0].ProductID != "prod_sports_video" {
		t.Errorf("products = %+v", products)
	}

	mb, ok := store.MediaBuy("mb_apex_001")
	if !ok {
		t.Fatal("media buy not loaded")
	}
	if mb.BrandManifest.Name != "Apex Running" || len(mb.Packages) != 1 {
		t.Errorf("media buy = %+v", mb)
	}
	geos, _ := mb.Packages[0].TargetingOverlay.StringList(campaign.DimGeoCountry)
	if len(geos) != 2 || geos[0] != "US" {
		t.Errorf("targeting geos = %v", geos)
	}

	gs := store.Guarantees("mb_apex_001")
	if len(gs) != 1 || gs[0].Metric != "impressions" || gs[0].Operator != campaign.OpGTE {
		t.Errorf("guarantees = %+v", gs)
	}

	m, ok := store.Metrics("mb_apex_001")
	if !ok {
		t.Fatal("metrics not loaded")
	}
	if m.Summary.Impressions != 1500000 || m.Summary.CompletionRate != nil {
		t.Errorf("summary = %+v", m.Summary)
	}
	if m.CurrentBids["mobile_cpm"] != 8.5 {
		t.Errorf("current bids = %v", m.CurrentBids)
	}

	agg, ok := store.Aggregations()
	if !ok || agg.PortfolioSummary.AsOf != "2026-08-31T12:00:00Z" {
		t.Errorf("aggregations = %+v", agg)
	}

	fb := store.Feedback("mb_apex_001")
	if len(fb) != 1 || fb[0].FeedbackType != campaign.FeedbackConversionData {
		t.Errorf("feedback = %+v", fb)
	}
}

func TestLoadSeedsStaticReferenceData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.json")
	if err := os.WriteFile(path, []byte(`{"products": [], "media_buys": [], "delivery_metrics": []}`), 0o644); err != nil {
		t.Fatal(err)
	}

	store := campaign.NewStore()
	if err := Load(path, store, nil); err != nil {
		t.Fatal(err)
	}

	formats := store.CreativeFormats()
	if len(formats) != 13 {
		t.Errorf("formats = %d, want 13", len(formats))
	}
	props := store.AuthorizedProperties()
	if len(props) != 10 {
		t.Errorf("properties = %d, want 10", len(props))
	}
	if props[0].PropertyID != "prop_espn" || props[0].AuthorizationLevel != "premium" {
		t.Errorf("first property = %+v", props[0])
	}
}

func TestLoadMissingFile(t *testing.T) {
	store := campaign.NewStore()
	if err := Load(filepath.Join(t.TempDir(), "nope.json"), store, nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}
