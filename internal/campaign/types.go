// Package campaign holds the advertising domain model: media buys,
// delivery metrics, contractual guarantees, and the in-memory store
// the tool handlers mutate.
package campaign

// PricingOption is one way a product can be bought.
type PricingOption struct {
	PricingOptionID string  `json:"pricing_option_id"`
	Currency        string  `json:"currency"`
	CPM             float64 `json:"cpm"`
	PricingModel    string  `json:"pricing_model"`
}

// FormatRef points at a creative format a product supports.
type FormatRef struct {
	AgentURL string `json:"agent_url"`
	ID       string `json:"id"`
}

// Product is a purchasable inventory offering.
type Product struct {
	ProductID             string          `json:"product_id"`
	Name                  string          `json:"name"`
	Description           string          `json:"description"`
	Category              string          `json:"category"`
	PricingOptions        []PricingOption `json:"pricing_options"`
	FormatIDs             []FormatRef     `json:"format_ids"`
	TargetingCapabilities []string        `json:"targeting_capabilities"`
	MinimumBudget         float64         `json:"minimum_budget"`
	AvailableInventory    int64           `json:"available_inventory"`
	Platform              string          `json:"platform,omitempty"`
}

// BrandManifest identifies the advertiser behind a media buy.
type BrandManifest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// TargetingOverlay is an open map of targeting dimension to value(s).
// Values are strings or string lists; JSON decoding yields []any for
// lists, so access goes through the typed helpers below.
type TargetingOverlay map[string]any

// Well-known targeting dimensions.
const (
	DimGeoCountry     = "geo_country_any_of"
	DimDeviceType     = "device_type"
	DimSportsInterest = "sports_interest"
)

// StringList returns the named dimension as a string slice.
// Handles both []string and JSON-decoded []any values.
func (t TargetingOverlay) StringList(dim string) ([]string, bool) {
	v, ok := t[dim]
	if !ok {
		return nil, false
	}
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	case string:
		return []string{vv}, true
	}
	return nil, false
}

// SetStringList replaces the named dimension with a string slice.
func (t TargetingOverlay) SetStringList(dim string, values []string) {
	t[dim] = values
}

// Package is a (product, pricing, budget, targeting) tuple within a media buy.
type Package struct {
	PackageID        string           `json:"package_id"`
	ProductID        string           `json:"product_id"`
	PricingOptionID  string           `json:"pricing_option_id"`
	Budget           float64          `json:"budget"`
	TargetingOverlay TargetingOverlay `json:"targeting_overlay"`
}

// Campaign status values.
const (
	StatusSubmitted = "submitted"
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
)

// MediaBuy is a time-boxed advertising purchase with one or more packages.
// Media buys are never deleted, only status-transitioned.
type MediaBuy struct {
	MediaBuyID    string        `json:"media_buy_id"`
	BuyerRef      string        `json:"buyer_ref"`
	BrandManifest BrandManifest `json:"brand_manifest"`
	Packages      []Package     `json:"packages"`
	StartTime     string        `json:"start_time"`
	EndTime       string        `json:"end_time"`
	Status        string        `json:"status"`
	CreatedAt     string        `json:"created_at"`
	Platform      string        `json:"platform,omitempty"`
}

// MetricsSummary holds campaign-level performance numbers.
// CompletionRate is nil for campaigns without video inventory.
type MetricsSummary struct {
	Impressions    int64    `json:"impressions"`
	Clicks         int64    `json:"clicks"`
	Conversions    int64    `json:"conversions"`
	CTR            float64  `json:"ctr"`
	CPM            float64  `json:"cpm"`
	CPA            float64  `json:"cpa"`
	Viewability    float64  `json:"viewability"`
	CompletionRate *float64 `json:"completion_rate"`
}

// DeviceMetrics is the per-device breakdown of delivery.
type DeviceMetrics struct {
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	CTR         float64 `json:"ctr"`
	Spend       float64 `json:"spend"`
	CPM         float64 `json:"cpm"`
}

// GeoMetrics is the per-country breakdown of delivery.
type GeoMetrics struct {
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	CTR         float64 `json:"ctr"`
	Spend       float64 `json:"spend"`
}

// Pacing values.
const (
	PacingOnTrack   = "on_track"
	PacingBehind    = "behind"
	PacingOverspend = "overspend"
)

// Health values.
const (
	HealthGood    = "good"
	HealthWarning = "warning"
	HealthPoor    = "poor"
)

// DeliveryMetrics is the observed performance record for one media buy.
type DeliveryMetrics struct {
	MediaBuyID      string                   `json:"media_buy_id"`
	Brand           string                   `json:"brand"`
	TotalBudget     float64                  `json:"total_budget"`
	TotalSpend      float64                  `json:"total_spend"`
	Pacing          string                   `json:"pacing"`
	Health          string                   `json:"health"`
	Summary         MetricsSummary           `json:"summary"`
	ByDevice        map[string]DeviceMetrics `json:"by_device"`
	ByGeo           map[string]GeoMetrics    `json:"by_geo"`
	CurrentBids     map[string]float64       `json:"current_bids"`
	Recommendations []string                 `json:"recommendations"`
	Platform        string                   `json:"platform,omitempty"`
}

// Guarantee operators.
const (
	OpGTE = "gte" // at least
	OpLTE = "lte" // at most
)

// Compliance statuses, worst to best.
const (
	ComplianceViolated  = "violated"
	ComplianceAtRisk    = "at_risk"
	ComplianceCompliant = "compliant"
)

// ContractualGuarantee is a threshold on a metric the campaign must meet.
// CurrentValue, ComplianceStatus, and PercentToTarget are populated by
// EvaluateGuarantees; they are derived, never stored.
type ContractualGuarantee struct {
	GuaranteeID        string  `json:"guarantee_id"`
	Metric             string  `json:"metric"`
	Operator           string  `json:"operator"`
	GuaranteedValue    float64 `json:"guaranteed_value"`
	PenaltyDescription string  `json:"penalty_description,omitempty"`

	CurrentValue     *float64 `json:"current_value,omitempty"`
	ComplianceStatus string   `json:"compliance_status,omitempty"`
	PercentToTarget  *float64 `json:"percent_to_target,omitempty"`
}

// GuaranteeComplianceResult is the evaluated compliance picture for one
// media buy. Recomputed on every evaluation call.
type GuaranteeComplianceResult struct {
	MediaBuyID    string                 `json:"media_buy_id"`
	HasGuarantees bool                   `json:"has_guarantees"`
	Guarantees    []ContractualGuarantee `json:"guarantees"`
	OverallStatus string                 `json:"overall_status"`
	Summary       string                 `json:"summary"`
}

// Feedback types.
const (
	FeedbackConversionData = "conversion_data"
	FeedbackLeadQuality    = "lead_quality"
	FeedbackBrandLift      = "brand_lift"
)

// PerformanceFeedback is an advertiser-reported outcome record.
// Data keys depend on the feedback type (conversions, qualification_rate,
// awareness_lift, ...).
type PerformanceFeedback struct {
	FeedbackID   string         `json:"feedback_id"`
	MediaBuyID   string         `json:"media_buy_id"`
	SubmittedAt  string         `json:"submitted_at"`
	FeedbackType string         `json:"feedback_type"`
	Data         map[string]any `json:"data"`
	Status       string         `json:"status"`
	Impact       string         `json:"impact"`
}

// CreativeFormatSpecs holds per-format technical constraints.
type CreativeFormatSpecs struct {
	MaxFileSize     string   `json:"max_file_size,omitempty"`
	FileTypes       []string `json:"file_types,omitempty"`
	MaxDuration     int      `json:"max_duration,omitempty"`
	SkipAfter       int      `json:"skip_after,omitempty"`
	HeadlineMax     int      `json:"headline_max,omitempty"`
	DescriptionMax  int      `json:"description_max,omitempty"`
	ImageDimensions string   `json:"image_dimensions,omitempty"`
	CTAMax          int      `json:"cta_max,omitempty"`
	Interaction     string   `json:"interaction,omitempty"`
}

// CreativeFormat is a supported ad format (display, video, native, audio).
type CreativeFormat struct {
	FormatID   string              `json:"format_id"`
	Name       string              `json:"name"`
	Type       string              `json:"type"`
	Dimensions string              `json:"dimensions,omitempty"`
	Specs      CreativeFormatSpecs `json:"specs"`
}

// AuthorizedProperty is a publisher property the buyer may run on.
type AuthorizedProperty struct {
	PropertyID          string   `json:"property_id"`
	Name                string   `json:"name"`
	Domain              string   `json:"domain"`
	Category            string   `json:"category"`
	MonthlyUniques      int64    `json:"monthly_uniques"`
	AuthorizationLevel  string   `json:"authorization_level"`
	AvailableFormats    []string `json:"available_formats"`
	DiscountPercent     float64  `json:"discount_percent,omitempty"`
	AudienceProfile     string   `json:"audience_profile,omitempty"`
	SpecialCapabilities []string `json:"special_capabilities,omitempty"`
}

// PortfolioSummary is the as-of snapshot across all campaigns.
type PortfolioSummary struct {
	AsOf                 string  `json:"as_of"`
	TotalActiveCampaigns int     `json:"total_active_campaigns"`
	TotalBudget          float64 `json:"total_budget"`
	TotalSpend           float64 `json:"total_spend"`
	TotalRemaining       float64 `json:"total_remaining"`
	TotalImpressions     int64   `json:"total_impressions"`
	TotalClicks          int64   `json:"total_clicks"`
	TotalConversions     int64   `json:"total_conversions"`
	OverallCTR           float64 `json:"overall_ctr"`
	OverallCPM           float64 `json:"overall_cpm"`
	OverallCPA           float64 `json:"overall_cpa"`
	CampaignsOnTrack     int     `json:"campaigns_on_track"`
	CampaignsWarning     int     `json:"campaigns_warning"`
	CampaignsPoor        int     `json:"campaigns_poor"`
}

// SpendCategory is a spend total with its share of the portfolio.
type SpendCategory struct {
	Spend float64 `json:"spend"`
	Share float64 `json:"share"`
}

// PerformingCampaign highlights a top or underperforming campaign.
type PerformingCampaign struct {
	MediaBuyID string  `json:"media_buy_id"`
	Brand      string  `json:"brand"`
	Metric     string  `json:"metric"`
	Value      float64 `json:"value"`
	Reason     string  `json:"reason,omitempty"`
	Issue      string  `json:"issue,omitempty"`
}

// Aggregations is the portfolio-level rollup view. Its as_of timestamp
// feeds grounding metadata snapshots.
type Aggregations struct {
	PortfolioSummary         PortfolioSummary         `json:"portfolio_summary"`
	SpendByCategory          map[string]SpendCategory `json:"spend_by_category"`
	SpendByFormat            map[string]SpendCategory `json:"spend_by_format"`
	SpendByDevice            map[string]SpendCategory `json:"spend_by_device"`
	SpendByGeo               map[string]SpendCategory `json:"spend_by_geo"`
	SpendByPlatform          map[string]SpendCategory `json:"spend_by_platform,omitempty"`
	SpendByBrand             map[string]SpendCategory `json:"spend_by_brand,omitempty"`
	TopPerformingCampaigns   []PerformingCampaign     `json:"top_performing_campaigns"`
	UnderperformingCampaigns []PerformingCampaign     `json:"underperforming_campaigns"`
}

// SummaryMetric returns the named metric from the summary.
// The second return is false when the metric is unknown or absent
// (a nil completion_rate counts as absent).
func (s MetricsSummary) SummaryMetric(name string) (float64, bool) {
	switch name {
	case "impressions":
		return float64(s.Impressions), true
	case "clicks":
		return float64(s.Clicks), true
	case "conversions":
		return float64(s.Conversions), true
	case "ctr":
		return s.CTR, true
	case "cpm":
		return s.CPM, true
	case "cpa":
		return s.CPA, true
	case "viewability":
		return s.Viewability, true
	case "completion_rate":
		if s.CompletionRate == nil {
			return 0, false
		}
		return *s.CompletionRate, true
	}
	return 0, false
}

// Clone returns a deep copy of the media buy.
func (m MediaBuy) Clone() MediaBuy {
	out := m
	out.Packages = make([]Package, len(m.Packages))
	for i, p := range m.Packages {
		cp := p
		cp.TargetingOverlay = make(TargetingOverlay, len(p.TargetingOverlay))
		for k, v := range p.TargetingOverlay {
			if list, ok := TargetingOverlay(p.TargetingOverlay).StringList(k); ok && !isScalar(v) {
				cp.TargetingOverlay[k] = append([]string(nil), list...)
			} else {
				cp.TargetingOverlay[k] = v
			}
		}
		out.Packages[i] = cp
	}
	return out
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, float64, int, bool:
		return true
	}
	return false
}

// Clone returns a deep copy of the delivery metrics.
func (d DeliveryMetrics) Clone() DeliveryMetrics {
	out := d
	if d.Summary.CompletionRate != nil {
		cr := *d.Summary.CompletionRate
		out.Summary.CompletionRate = &cr
	}
	out.ByDevice = make(map[string]DeviceMetrics, len(d.ByDevice))
	for k, v := range d.ByDevice {
		out.ByDevice[k] = v
	}
	out.ByGeo = make(map[string]GeoMetrics, len(d.ByGeo))
	for k, v := range d.ByGeo {
		out.ByGeo[k] = v
	}
	out.CurrentBids = make(map[string]float64, len(d.CurrentBids))
	for k, v := range d.CurrentBids {
		out.CurrentBids[k] = v
	}
	out.Recommendations = append([]string(nil), d.Recommendations...)
	return out
}
