// Package tools implements the closed seven-tool registry the model
// calls through: input schemas, dispatch, per-handler validation, and
// the success/failure envelopes fed back into the conversation.
package tools

import "github.com/signal42/campaign-agent/internal/llm"

// Tool names. The set is closed; there is no dynamic registration.
const (
	ToolGetProducts                = "get_products"
	ToolListCreativeFormats        = "list_creative_formats"
	ToolListAuthorizedProperties   = "list_authorized_properties"
	ToolCreateMediaBuy             = "create_media_buy"
	ToolGetMediaBuyDelivery        = "get_media_buy_delivery"
	ToolUpdateMediaBuy             = "update_media_buy"
	ToolProvidePerformanceFeedback = "provide_performance_feedback"
)

// Names lists all tool names in definition order.
func Names() []string {
	return []string{
		ToolGetProducts,
		ToolListCreativeFormats,
		ToolListAuthorizedProperties,
		ToolCreateMediaBuy,
		ToolGetMediaBuyDelivery,
		ToolUpdateMediaBuy,
		ToolProvidePerformanceFeedback,
	}
}

func obj(properties map[string]any, required ...string) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func num(desc string) map[string]any {
	return map[string]any{"type": "number", "description": desc}
}

func strArr(desc string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": desc,
	}
}

func strEnum(desc string, values ...string) map[string]any {
	return map[string]any{"type": "string", "enum": values, "description": desc}
}

// Definitions returns the tool contracts sent to the model.
func Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        ToolGetProducts,
			Description: "Discover available advertising inventory with optional filtering by category, maximum CPM, or platform. Returns products with pricing options.",
			InputSchema: obj(map[string]any{
				"category": str(`Filter products by category (e.g., "display", "video", "native", "audio", "Sports", "News")`),
				"max_cpm":  num("Maximum CPM (cost per thousand impressions) to filter products"),
				"platform": str(`Filter products by advertising platform (e.g., "facebook_ads", "google_ads", "display_programmatic")`),
			}),
		},
		{
			Name:        ToolListCreativeFormats,
			Description: "Get available ad format specifications with optional filtering by type.",
			InputSchema: obj(map[string]any{
				"type": strEnum("Filter formats by type", "display", "video", "native", "audio"),
			}),
		},
		{
			Name:        ToolListAuthorizedProperties,
			Description: "Get all accessible publisher properties with authorization levels and available formats.",
			InputSchema: obj(map[string]any{}),
		},
		{
			Name:        ToolCreateMediaBuy,
			Description: "Create a new advertising campaign (media buy). Requires brand name, product, budget, targeting, and date range.",
			InputSchema: obj(map[string]any{
				"brand_name": str("Name of the brand/advertiser"),
				"product_id": str("ID of the product to use (from get_products)"),
				"budget":     num("Total budget for the campaign in USD"),
				"targeting": obj(map[string]any{
					"geo_country_any_of": strArr(`List of country codes to target (e.g., ["US", "UK", "DE"])`),
					"device_type":        strArr(`Device types to target (e.g., ["desktop", "mobile", "tablet"])`),
					"sports_interest":    strArr("Sports interests to target"),
				}),
				"start_time": str("Campaign start date in ISO 8601 format"),
				"end_time":   str("Campaign end date in ISO 8601 format"),
			}, "brand_name", "product_id", "budget", "targeting", "start_time", "end_time"),
		},
		{
			Name:        ToolGetMediaBuyDelivery,
			Description: "Get delivery/performance metrics for campaigns. Returns budget, spend, pacing, health status, and detailed metrics. Can filter by platform.",
			InputSchema: obj(map[string]any{
				"media_buy_id": str("Specific media buy ID to get metrics for. If omitted, returns all campaigns."),
				"platform":     str("Filter delivery metrics by advertising platform. Only used when media_buy_id is not specified."),
			}),
		},
		{
			Name:        ToolUpdateMediaBuy,
			Description: "Update an existing campaign with various operations: pause/resume campaign, remove/add geo targeting, adjust bids, set daily caps, or shift budget allocation.",
			InputSchema: obj(map[string]any{
				"media_buy_id": str("ID of the media buy to update"),
				"updates": obj(map[string]any{
					"remove_geo": obj(map[string]any{
						"countries": strArr("Country codes to remove from targeting"),
					}, "countries"),
					"add_geo": obj(map[string]any{
						"countries": strArr("Country codes to add to targeting"),
					}, "countries"),
					"adjust_bid": obj(map[string]any{
						"device":         str("Device type to adjust bid for"),
						"change_percent": num("Percentage to change bid (positive to increase, negative to decrease)"),
					}, "device", "change_percent"),
					"set_daily_cap": obj(map[string]any{
						"amount": num("Daily budget cap in USD"),
					}, "amount"),
					"shift_budget": obj(map[string]any{
						"from_device":   str("Device to shift budget from"),
						"to_device":     str("Device to shift budget to"),
						"from_audience": str("Audience segment to shift from"),
						"to_audience":   str("Audience segment to shift to"),
						"percent":       num("Percentage of budget to shift"),
					}, "percent"),
					"set_status": obj(map[string]any{
						"status": strEnum(`New status for the campaign. Use "paused" to stop a campaign, "active" to resume it.`, "active", "paused"),
					}, "status"),
				}),
			}, "media_buy_id", "updates"),
		},
		{
			Name:        ToolProvidePerformanceFeedback,
			Description: "Submit performance feedback for a campaign: conversion data, lead quality, or brand lift metrics.",
			InputSchema: obj(map[string]any{
				"media_buy_id":  str("ID of the media buy to provide feedback for"),
				"feedback_type": strEnum("Type of feedback being submitted", "conversion_data", "lead_quality", "brand_lift"),
				"data": obj(map[string]any{
					"conversions":          num("Number of conversions (for conversion_data)"),
					"conversion_value":     num("Total value of conversions (for conversion_data)"),
					"attribution_window":   str("Attribution window (for conversion_data)"),
					"leads_submitted":      num("Number of leads submitted (for lead_quality)"),
					"leads_qualified":      num("Number of qualified leads (for lead_quality)"),
					"pipeline_value":       num("Pipeline value (for lead_quality)"),
					"awareness_lift":       num("Awareness lift percentage (for brand_lift)"),
					"consideration_lift":   num("Consideration lift percentage (for brand_lift)"),
					"purchase_intent_lift": num("Purchase intent lift percentage (for brand_lift)"),
					"sample_size":          num("Sample size for study (for brand_lift)"),
				}),
			}, "media_buy_id", "feedback_type", "data"),
		},
	}
}
