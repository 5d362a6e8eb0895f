package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/signal42/campaign-agent/internal/updates"
)

// changeReasons supplies a default rationale per operation for channels
// that present a "why" next to each change.
var changeReasons = map[string]string{
	updates.OpRemoveGeo:   "Cutting spend in regions that are not converting",
	updates.OpAddGeo:      "Expanding reach into additional markets",
	updates.OpAdjustBid:   "Tuning bids toward the efficiency target",
	updates.OpSetDailyCap: "Keeping daily spend inside the planned run rate",
	updates.OpShiftBudget: "Reallocating budget toward stronger segments",
	updates.OpSetStatus:   "Delivery state changed by the buyer",
}

func reasonFor(op string) string {
	if r, ok := changeReasons[op]; ok {
		return r
	}
	return "Campaign configuration changed"
}

// changeLine renders one change as "operation: details (was X, now Y)".
func changeLine(c updates.Change) string {
	var b strings.Builder
	b.WriteString(c.Operation)
	b.WriteString(": ")
	b.WriteString(c.Details)
	if c.Previous != nil || c.New != nil {
		b.WriteString(" (was ")
		b.WriteString(renderValue(c.Previous))
		b.WriteString(", now ")
		b.WriteString(renderValue(c.New))
		b.WriteString(")")
	}
	return b.String()
}

func renderValue(v any) string {
	switch vv := v.(type) {
	case nil:
		return "unset"
	case string:
		return vv
	case float64:
		return fmt.Sprintf("%g", vv)
	case []string:
		return strings.Join(vv, ", ")
	default:
		b, err := json.Marshal(vv)
		if err != nil {
			return fmt.Sprintf("%v", vv)
		}
		return string(b)
	}
}

// renderMarkdown builds the shared notification body. Channels that
// speak richer formats (Slack blocks) compose their own layout from the
// same pieces.
func renderMarkdown(u Update) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Campaign update: %s\n\n", u.Brand)
	fmt.Fprintf(&b, "Media buy `%s` (%s, pacing %s, health %s)\n\n", u.MediaBuyID, u.Status, u.Pacing, u.Health)
	fmt.Fprintf(&b, "Budget $%.2f, spend to date $%.2f\n\n", u.TotalBudget, u.TotalSpend)

	b.WriteString("**What changed**\n\n")
	for _, c := range u.Changes {
		fmt.Fprintf(&b, "- %s\n", changeLine(c))
		fmt.Fprintf(&b, "  - Why: %s\n", reasonFor(c.Operation))
	}
	b.WriteString("\n")

	if u.Impact.Description != "" {
		fmt.Fprintf(&b, "**Estimated impact**: %s", u.Impact.Description)
		if u.Impact.ReachChangePercent != 0 {
			fmt.Fprintf(&b, " Reach %+g%%.", u.Impact.ReachChangePercent)
		}
		if u.Impact.BudgetChange != 0 {
			fmt.Fprintf(&b, " Budget change $%.2f.", u.Impact.BudgetChange)
		}
		if u.Impact.EfficiencyImprovement != "" {
			fmt.Fprintf(&b, " %s.", u.Impact.EfficiencyImprovement)
		}
		b.WriteString("\n\n")
	}

	if u.DashboardURL != "" {
		fmt.Fprintf(&b, "[Open dashboard](%s/campaigns/%s)\n", strings.TrimRight(u.DashboardURL, "/"), u.MediaBuyID)
	}

	return b.String()
}
