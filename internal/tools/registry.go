package tools

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/signal42/campaign-agent/internal/campaign"
	"github.com/signal42/campaign-agent/internal/events"
	"github.com/signal42/campaign-agent/internal/updates"
)

// Notifier receives campaign-change notifications. Implementations are
// best-effort and asynchronous; Dispatch never waits on delivery and a
// delivery failure never affects the campaign mutation.
type Notifier interface {
	CampaignUpdated(mb campaign.MediaBuy, metrics campaign.DeliveryMetrics, changes []updates.Change, impact updates.Impact)
}

// Registry dispatches model tool calls to their handlers. Side effects
// (store mutation, event broadcast, notifications) happen only on the
// success path of each handler.
type Registry struct {
	store    *campaign.Store
	notifier Notifier
	bus      *events.Bus
	logger   *slog.Logger
}

// NewRegistry creates a registry. notifier and bus may be nil.
func NewRegistry(store *campaign.Store, notifier Notifier, bus *events.Bus, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:    store,
		notifier: notifier,
		bus:      bus,
		logger:   logger.With("component", "tools"),
	}
}

// ErrorEnvelope is the failure payload every handler returns for
// expected validation problems and the dispatch boundary returns for
// panics and unknown tools.
type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func errorEnvelope(msg string) ErrorEnvelope {
	return ErrorEnvelope{Success: false, Error: msg}
}

// Dispatch routes a tool call by name. Unknown names and handler
// panics yield error envelopes, never a crash, so the orchestration
// loop can feed the failure back to the model as a tool result.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (result any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool handler panic", "tool", name, "panic", rec)
			result = errorEnvelope(fmt.Sprintf("internal error executing %s: %v", name, rec))
		}
	}()

	start := time.Now()
	r.bus.Publish(events.Event{
		Source: events.SourceTools,
		Kind:   events.KindToolCall,
		Data:   map[string]any{"tool": name},
	})

	switch name {
	case ToolGetProducts:
		result = r.getProducts(args)
	case ToolListCreativeFormats:
		result = r.listCreativeFormats(args)
	case ToolListAuthorizedProperties:
		result = r.listAuthorizedProperties()
	case ToolCreateMediaBuy:
		result = r.createMediaBuy(args)
	case ToolGetMediaBuyDelivery:
		result = r.getMediaBuyDelivery(args)
	case ToolUpdateMediaBuy:
		result = r.updateMediaBuy(args)
	case ToolProvidePerformanceFeedback:
		result = r.providePerformanceFeedback(args)
	default:
		result = errorEnvelope("Unknown tool: " + name)
	}

	_, failed := result.(ErrorEnvelope)
	r.bus.Publish(events.Event{
		Source: events.SourceTools,
		Kind:   events.KindToolDone,
		Data: map[string]any{
			"tool":        name,
			"ok":          !failed,
			"duration_ms": time.Since(start).Milliseconds(),
		},
	})
	return result
}

// get_products

// ProductOutput trims a product for the model.
type ProductOutput struct {
	ProductID      string                   `json:"product_id"`
	Name           string                   `json:"name"`
	Description    string                   `json:"description"`
	Category       string                   `json:"category"`
	Platform       string                   `json:"platform,omitempty"`
	PricingOptions []campaign.PricingOption `json:"pricing_options"`
}

// GetProductsResult is the get_products envelope.
type GetProductsResult struct {
	Success        bool            `json:"success"`
	Products       []ProductOutput `json:"products"`
	Count          int             `json:"count"`
	FiltersApplied map[string]any  `json:"filters_applied"`
}

func (r *Registry) getProducts(args map[string]any) any {
	category, _ := args["category"].(string)
	platform, _ := args["platform"].(string)
	maxCPM, hasMaxCPM := args["max_cpm"].(float64)

	out := []ProductOutput{}
	for _, p := range r.store.Products() {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if platform != "" && p.Platform != platform {
			continue
		}
		if hasMaxCPM && !anyPricingAtOrUnder(p.PricingOptions, maxCPM) {
			continue
		}
		out = append(out, ProductOutput{
			ProductID:      p.ProductID,
			Name:           p.Name,
			Description:    p.Description,
			Category:       p.Category,
			Platform:       p.Platform,
			PricingOptions: p.PricingOptions,
		})
	}

	filters := map[string]any{}
	if category != "" {
		filters["category"] = category
	}
	if hasMaxCPM {
		filters["max_cpm"] = maxCPM
	}
	if platform != "" {
		filters["platform"] = platform
	}

	return GetProductsResult{Success: true, Products: out, Count: len(out), FiltersApplied: filters}
}

func anyPricingAtOrUnder(options []campaign.PricingOption, maxCPM float64) bool {
	for _, po := range options {
		if po.CPM <= maxCPM {
			return true
		}
	}
	return false
}

// list_creative_formats

// ListCreativeFormatsResult is the list_creative_formats envelope.
type ListCreativeFormatsResult struct {
	Success        bool                      `json:"success"`
	Formats        []campaign.CreativeFormat `json:"formats"`
	Count          int                       `json:"count"`
	FiltersApplied map[string]any            `json:"filters_applied"`
}

func (r *Registry) listCreativeFormats(args map[string]any) any {
	formatType, _ := args["type"].(string)

	out := []campaign.CreativeFormat{}
	for _, f := range r.store.CreativeFormats() {
		if formatType != "" && f.Type != formatType {
			continue
		}
		out = append(out, f)
	}

	filters := map[string]any{}
	if formatType != "" {
		filters["type"] = formatType
	}

	return ListCreativeFormatsResult{Success: true, Formats: out, Count: len(out), FiltersApplied: filters}
}

// list_authorized_properties

// ListAuthorizedPropertiesResult is the list_authorized_properties envelope.
type ListAuthorizedPropertiesResult struct {
	Success    bool                          `json:"success"`
	Properties []campaign.AuthorizedProperty `json:"properties"`
	Count      int                           `json:"count"`
}

func (r *Registry) listAuthorizedProperties() any {
	props := r.store.AuthorizedProperties()
	return ListAuthorizedPropertiesResult{Success: true, Properties: props, Count: len(props)}
}

// create_media_buy

// CreateMediaBuyOutput summarizes a newly created campaign.
type CreateMediaBuyOutput struct {
	MediaBuyID           string  `json:"media_buy_id"`
	Status               string  `json:"status"`
	EstimatedImpressions int64   `json:"estimated_impressions"`
	BrandName            string  `json:"brand_name"`
	ProductID            string  `json:"product_id"`
	Budget               float64 `json:"budget"`
	StartTime            string  `json:"start_time"`
	EndTime              string  `json:"end_time"`
}

// CreateMediaBuyResult is the create_media_buy envelope.
type CreateMediaBuyResult struct {
	Success  bool                  `json:"success"`
	MediaBuy *CreateMediaBuyOutput `json:"media_buy"`
	Error    string                `json:"error,omitempty"`
}

// defaultCPM is assumed when a product carries no pricing options.
const defaultCPM = 15.0

var brandSanitizer = regexp.MustCompile(`[^a-z0-9_]`)

func (r *Registry) createMediaBuy(args map[string]any) any {
	brandName, _ := args["brand_name"].(string)
	productID, _ := args["product_id"].(string)
	budget, _ := args["budget"].(float64)
	startTime, _ := args["start_time"].(string)
	endTime, _ := args["end_time"].(string)

	if brandName == "" || productID == "" || budget == 0 || startTime == "" || endTime == "" {
		return CreateMediaBuyResult{
			Error: "Missing required fields: brand_name, product_id, budget, start_time, and end_time are required",
		}
	}

	product, ok := r.findProduct(productID)
	if !ok {
		return CreateMediaBuyResult{Error: "Product not found: " + productID}
	}
	if budget < product.MinimumBudget {
		return CreateMediaBuyResult{
			Error: fmt.Sprintf("Budget %g is below minimum %g for product %s", budget, product.MinimumBudget, product.Name),
		}
	}

	mediaBuyID := r.generateMediaBuyID(brandName)
	estimated := estimateImpressions(product, budget)

	targeting := campaign.TargetingOverlay{}
	if t, ok := args["targeting"].(map[string]any); ok {
		for k, v := range t {
			targeting[k] = v
		}
	}

	pricingOptionID := "default"
	if len(product.PricingOptions) > 0 {
		pricingOptionID = product.PricingOptions[0].PricingOptionID
	}

	now := time.Now().UTC()
	mb := campaign.MediaBuy{
		MediaBuyID: mediaBuyID,
		BuyerRef:   fmt.Sprintf("%s_%d", strings.ReplaceAll(strings.ToLower(brandName), " ", "_"), now.UnixMilli()),
		BrandManifest: campaign.BrandManifest{
			Name: brandName,
			URL:  "https://" + strings.ReplaceAll(strings.ToLower(brandName), " ", "") + ".com",
		},
		Packages: []campaign.Package{{
			PackageID:        fmt.Sprintf("pkg_%s_001", mediaBuyID),
			ProductID:        productID,
			PricingOptionID:  pricingOptionID,
			Budget:           budget,
			TargetingOverlay: targeting,
		}},
		StartTime: startTime,
		EndTime:   endTime,
		Status:    campaign.StatusSubmitted,
		CreatedAt: now.Format(time.RFC3339),
		Platform:  product.Platform,
	}

	metrics := campaign.DeliveryMetrics{
		MediaBuyID:      mediaBuyID,
		Brand:           brandName,
		TotalBudget:     budget,
		TotalSpend:      0,
		Pacing:          campaign.PacingOnTrack,
		Health:          campaign.HealthGood,
		ByDevice:        map[string]campaign.DeviceMetrics{},
		ByGeo:           map[string]campaign.GeoMetrics{},
		CurrentBids:     map[string]float64{},
		Recommendations: []string{"Campaign just launched - gathering initial data"},
		Platform:        product.Platform,
	}

	r.store.UpsertMediaBuy(mb)
	r.store.UpsertMetrics(metrics)

	r.bus.Publish(events.Event{
		Source: events.SourceCampaign,
		Kind:   events.KindMediaBuyCreated,
		Data: map[string]any{
			"media_buy_id":          mediaBuyID,
			"brand":                 brandName,
			"budget":                budget,
			"estimated_impressions": estimated,
		},
	})

	return CreateMediaBuyResult{
		Success: true,
		MediaBuy: &CreateMediaBuyOutput{
			MediaBuyID:           mediaBuyID,
			Status:               campaign.StatusSubmitted,
			EstimatedImpressions: estimated,
			BrandName:            brandName,
			ProductID:            productID,
			Budget:               budget,
			StartTime:            startTime,
			EndTime:              endTime,
		},
	}
}

func (r *Registry) findProduct(productID string) (campaign.Product, bool) {
	for _, p := range r.store.Products() {
		if p.ProductID == productID {
			return p, true
		}
	}
	return campaign.Product{}, false
}

// generateMediaBuyID derives an id from the sanitized brand name with a
// per-prefix sequence suffix.
func (r *Registry) generateMediaBuyID(brandName string) string {
	sanitized := strings.ReplaceAll(strings.ToLower(brandName), " ", "_")
	sanitized = brandSanitizer.ReplaceAllString(sanitized, "")
	baseID := "mb_" + sanitized

	count := 0
	for _, mb := range r.store.List() {
		if strings.HasPrefix(mb.MediaBuyID, baseID) {
			count++
		}
	}
	return fmt.Sprintf("%s_%d", baseID, count+1)
}

// estimateImpressions uses the lowest CPM option to compute maximum
// impressions for the budget.
func estimateImpressions(product campaign.Product, budget float64) int64 {
	cpm := defaultCPM
	if len(product.PricingOptions) > 0 {
		cpm = product.PricingOptions[0].CPM
		for _, po := range product.PricingOptions[1:] {
			cpm = math.Min(cpm, po.CPM)
		}
	}
	return int64(math.Floor(budget / cpm * 1000))
}

// get_media_buy_delivery

// DeliveryOutput is delivery metrics without current_bids, which are
// internal to the update engine.
type DeliveryOutput struct {
	MediaBuyID      string                            `json:"media_buy_id"`
	Brand           string                            `json:"brand"`
	TotalBudget     float64                           `json:"total_budget"`
	TotalSpend      float64                           `json:"total_spend"`
	Pacing          string                            `json:"pacing"`
	Health          string                            `json:"health"`
	Summary         campaign.MetricsSummary           `json:"summary"`
	ByDevice        map[string]campaign.DeviceMetrics `json:"by_device"`
	ByGeo           map[string]campaign.GeoMetrics    `json:"by_geo"`
	Recommendations []string                          `json:"recommendations"`
	Platform        string                            `json:"platform,omitempty"`
}

// DeliverySingleResult is the envelope for one campaign's metrics.
// GuaranteeCompliance is present only for campaigns with contractual
// guarantees attached.
type DeliverySingleResult struct {
	Success             bool                                `json:"success"`
	Metrics             *DeliveryOutput                     `json:"metrics"`
	GuaranteeCompliance *campaign.GuaranteeComplianceResult `json:"guarantee_compliance,omitempty"`
	Error               string                              `json:"error,omitempty"`
}

// DeliveryAllResult is the envelope for the whole portfolio.
type DeliveryAllResult struct {
	Success bool             `json:"success"`
	Metrics []DeliveryOutput `json:"metrics"`
	Count   int              `json:"count"`
}

func toDeliveryOutput(m campaign.DeliveryMetrics) DeliveryOutput {
	return DeliveryOutput{
		MediaBuyID:      m.MediaBuyID,
		Brand:           m.Brand,
		TotalBudget:     m.TotalBudget,
		TotalSpend:      m.TotalSpend,
		Pacing:          m.Pacing,
		Health:          m.Health,
		Summary:         m.Summary,
		ByDevice:        m.ByDevice,
		ByGeo:           m.ByGeo,
		Recommendations: m.Recommendations,
		Platform:        m.Platform,
	}
}

func (r *Registry) getMediaBuyDelivery(args map[string]any) any {
	mediaBuyID, _ := args["media_buy_id"].(string)
	platform, _ := args["platform"].(string)

	if mediaBuyID != "" {
		resolved, ok := r.store.ResolveID(mediaBuyID)
		if !ok {
			return DeliverySingleResult{Error: "Media buy not found: " + mediaBuyID}
		}
		m, ok := r.store.Metrics(resolved)
		if !ok {
			return DeliverySingleResult{Error: "Media buy not found: " + mediaBuyID}
		}
		out := toDeliveryOutput(m)
		res := DeliverySingleResult{Success: true, Metrics: &out}
		if gs := r.store.Guarantees(resolved); len(gs) > 0 {
			compliance := campaign.EvaluateGuarantees(resolved, gs, m.Summary)
			res.GuaranteeCompliance = &compliance
		}
		return res
	}

	out := []DeliveryOutput{}
	for _, m := range r.store.ListMetrics() {
		if platform != "" && m.Platform != platform {
			continue
		}
		out = append(out, toDeliveryOutput(m))
	}
	return DeliveryAllResult{Success: true, Metrics: out, Count: len(out)}
}

// update_media_buy

// UpdateMediaBuyOutput carries the audit trail and advisory impact of
// an applied update.
type UpdateMediaBuyOutput struct {
	MediaBuyID      string           `json:"media_buy_id"`
	Success         bool             `json:"success"`
	ChangesApplied  []updates.Change `json:"changes_applied"`
	EstimatedImpact updates.Impact   `json:"estimated_impact"`
}

// UpdateMediaBuyResult is the update_media_buy envelope.
type UpdateMediaBuyResult struct {
	Success bool                  `json:"success"`
	Result  *UpdateMediaBuyOutput `json:"result"`
	Error   string                `json:"error,omitempty"`
}

func (r *Registry) updateMediaBuy(args map[string]any) any {
	mediaBuyID, _ := args["media_buy_id"].(string)
	if mediaBuyID == "" {
		return UpdateMediaBuyResult{Error: "Missing required field: media_buy_id"}
	}

	rawUpdates, ok := args["updates"].(map[string]any)
	if !ok || len(rawUpdates) == 0 {
		return UpdateMediaBuyResult{Error: "Missing required field: updates object with at least one operation"}
	}

	ops := updates.Normalize(rawUpdates)
	if ops.Empty() {
		return UpdateMediaBuyResult{Error: "Missing required field: updates object with at least one operation"}
	}

	resolved, ok := r.store.ResolveID(mediaBuyID)
	if !ok {
		return UpdateMediaBuyResult{Error: "Media buy not found: " + mediaBuyID}
	}

	var (
		changes  []updates.Change
		impact   updates.Impact
		afterBuy campaign.MediaBuy
		afterMet campaign.DeliveryMetrics
	)
	err := r.store.Mutate(resolved, func(mb *campaign.MediaBuy, m *campaign.DeliveryMetrics) error {
		changes = updates.Apply(mb, m, ops)
		impact = updates.EstimateImpact(m, changes)
		afterBuy = *mb
		afterMet = *m
		return nil
	})
	if err != nil {
		return UpdateMediaBuyResult{Error: err.Error()}
	}

	if len(changes) > 0 {
		r.bus.Publish(events.Event{
			Source: events.SourceCampaign,
			Kind:   events.KindMediaBuyUpdated,
			Data: map[string]any{
				"media_buy_id": resolved,
				"changes":      len(changes),
			},
		})
		if r.notifier != nil {
			r.notifier.CampaignUpdated(afterBuy, afterMet, changes, impact)
		}
	}

	return UpdateMediaBuyResult{
		Success: true,
		Result: &UpdateMediaBuyOutput{
			MediaBuyID:      resolved,
			Success:         len(changes) > 0,
			ChangesApplied:  emptyIfNilChanges(changes),
			EstimatedImpact: impact,
		},
	}
}

func emptyIfNilChanges(cs []updates.Change) []updates.Change {
	if cs == nil {
		return []updates.Change{}
	}
	return cs
}

// provide_performance_feedback

// FeedbackOutput summarizes a recorded feedback entry.
type FeedbackOutput struct {
	FeedbackID string `json:"feedback_id"`
	MediaBuyID string `json:"media_buy_id"`
	Status     string `json:"status"`
	Impact     string `json:"impact"`
}

// FeedbackResult is the provide_performance_feedback envelope.
type FeedbackResult struct {
	Success bool            `json:"success"`
	Result  *FeedbackOutput `json:"result"`
	Error   string          `json:"error,omitempty"`
}

func (r *Registry) providePerformanceFeedback(args map[string]any) any {
	mediaBuyID, _ := args["media_buy_id"].(string)
	if mediaBuyID == "" {
		return FeedbackResult{Error: "Missing required field: media_buy_id"}
	}

	feedbackType, _ := args["feedback_type"].(string)
	if feedbackType == "" {
		return FeedbackResult{Error: "Missing required field: feedback_type"}
	}
	switch feedbackType {
	case campaign.FeedbackConversionData, campaign.FeedbackLeadQuality, campaign.FeedbackBrandLift:
	default:
		return FeedbackResult{
			Error: fmt.Sprintf("Invalid feedback_type: %s. Must be one of: conversion_data, lead_quality, brand_lift", feedbackType),
		}
	}

	data, ok := args["data"].(map[string]any)
	if !ok {
		return FeedbackResult{Error: "Missing required field: data object"}
	}

	resolved, ok := r.store.ResolveID(mediaBuyID)
	if !ok {
		return FeedbackResult{Error: "Media buy not found: " + mediaBuyID}
	}

	metrics, _ := r.store.Metrics(resolved)
	impact := feedbackImpact(feedbackType, data, metrics)

	typePrefix := strings.SplitN(feedbackType, "_", 2)[0]
	feedbackID := fmt.Sprintf("fb_%s_%s_%d", resolved, typePrefix, time.Now().UnixMilli())

	fb := campaign.PerformanceFeedback{
		FeedbackID:   feedbackID,
		MediaBuyID:   resolved,
		SubmittedAt:  time.Now().UTC().Format(time.RFC3339),
		FeedbackType: feedbackType,
		Data:         data,
		Status:       "processed",
		Impact:       impact,
	}
	r.store.AppendFeedback(fb)

	r.bus.Publish(events.Event{
		Source: events.SourceCampaign,
		Kind:   events.KindFeedbackSubmitted,
		Data: map[string]any{
			"media_buy_id":  resolved,
			"feedback_type": feedbackType,
			"feedback_id":   feedbackID,
		},
	})

	return FeedbackResult{
		Success: true,
		Result: &FeedbackOutput{
			FeedbackID: feedbackID,
			MediaBuyID: resolved,
			Status:     "processed",
			Impact:     impact,
		},
	}
}

// feedbackImpact renders the advisory impact line for a feedback entry,
// banded by ROAS, qualification rate, or average brand lift.
func feedbackImpact(feedbackType string, data map[string]any, metrics campaign.DeliveryMetrics) string {
	num := func(key string) float64 {
		v, _ := data[key].(float64)
		return v
	}

	switch feedbackType {
	case campaign.FeedbackConversionData:
		conversions := num("conversions")
		conversionValue := num("conversion_value")
		window, _ := data["attribution_window"].(string)
		if window == "" {
			window = "30-day"
		}

		if metrics.TotalSpend > 0 && conversions > 0 {
			roas := conversionValue / metrics.TotalSpend
			switch {
			case roas >= 3:
				return fmt.Sprintf("Strong ROAS of %.1fx with %g conversions in %s window. Recommend increasing budget.", roas, conversions, window)
			case roas >= 1:
				return fmt.Sprintf("Positive ROAS of %.1fx with %g conversions. Campaign is profitable.", roas, conversions)
			default:
				return fmt.Sprintf("ROAS of %.1fx below target. Consider bid or targeting optimizations.", roas)
			}
		}
		return fmt.Sprintf("Conversion data logged: %g conversions worth $%g", conversions, conversionValue)

	case campaign.FeedbackLeadQuality:
		submitted := num("leads_submitted")
		qualified := num("leads_qualified")
		rate := num("qualification_rate")
		if rate == 0 && submitted > 0 {
			rate = qualified / submitted * 100
		}
		pipeline := num("pipeline_value")

		switch {
		case rate >= 40:
			return fmt.Sprintf("Excellent lead quality: %.0f%% qualification rate with $%g pipeline value. High-intent audience being reached.", rate, pipeline)
		case rate >= 20:
			return fmt.Sprintf("Good lead quality: %.0f%% qualification rate. Consider refining targeting to improve further.", rate)
		default:
			return fmt.Sprintf("Lead quality below target at %.0f%%. Recommend reviewing targeting and creative messaging.", rate)
		}

	case campaign.FeedbackBrandLift:
		awareness := num("awareness_lift")
		consideration := num("consideration_lift")
		intent := num("purchase_intent_lift")
		sample := num("sample_size")

		avgLift := (awareness + consideration + intent) / 3
		sampleNote := ""
		if sample > 0 {
			sampleNote = fmt.Sprintf(" (n=%g)", sample)
		}

		switch {
		case avgLift >= 10:
			return fmt.Sprintf("Strong brand lift results%s: +%g%% awareness, +%g%% consideration, +%g%% purchase intent.", sampleNote, awareness, consideration, intent)
		case avgLift >= 5:
			return fmt.Sprintf("Moderate brand lift%s: +%g%% awareness, +%g%% consideration. Consider increasing frequency.", sampleNote, awareness, consideration)
		default:
			return fmt.Sprintf("Limited brand lift detected%s. Recommend creative refresh or audience expansion.", sampleNote)
		}
	}

	return "Feedback processed and logged for analysis."
}
