// Package updates implements the campaign update engine: a small
// interpreter over six named mutation operations applied to a media
// buy and its delivery metrics, producing an audit trail of change
// records and a derived impact estimate.
package updates

import (
	"fmt"
	"math"
	"strings"

	"github.com/signal42/campaign-agent/internal/campaign"
)

// Operation names, in application order.
const (
	OpRemoveGeo   = "remove_geo"
	OpAddGeo      = "add_geo"
	OpAdjustBid   = "adjust_bid"
	OpSetDailyCap = "set_daily_cap"
	OpShiftBudget = "shift_budget"
	OpSetStatus   = "set_status"
)

// DailyCapBidKey is where the daily cap lives in current_bids.
const DailyCapBidKey = "daily_cap"

// RemoveGeo drops countries from every package's geo targeting and
// deletes their by_geo metrics.
type RemoveGeo struct {
	Countries []string `json:"countries"`
}

// AddGeo adds countries to every package's geo targeting.
type AddGeo struct {
	Countries []string `json:"countries"`
}

// AdjustBid changes a per-device CPM bid by a percentage.
type AdjustBid struct {
	Device        string  `json:"device"`
	ChangePercent float64 `json:"change_percent"`
}

// SetDailyCap overwrites the daily spend cap.
type SetDailyCap struct {
	Amount float64 `json:"amount"`
}

// ShiftBudget reallocates spend between devices and/or audiences.
type ShiftBudget struct {
	FromAudience string  `json:"from_audience,omitempty"`
	ToAudience   string  `json:"to_audience,omitempty"`
	FromDevice   string  `json:"from_device,omitempty"`
	ToDevice     string  `json:"to_device,omitempty"`
	Percent      float64 `json:"percent"`
}

// SetStatus pauses or resumes the campaign.
type SetStatus struct {
	Status string `json:"status"` // active or paused
}

// Operations is the set of requested mutations. Each field is optional;
// at least one must be present. Application order is fixed regardless
// of how the request was phrased: remove_geo, add_geo, adjust_bid,
// set_daily_cap, shift_budget, set_status.
type Operations struct {
	RemoveGeo   *RemoveGeo   `json:"remove_geo,omitempty"`
	AddGeo      *AddGeo      `json:"add_geo,omitempty"`
	AdjustBid   *AdjustBid   `json:"adjust_bid,omitempty"`
	SetDailyCap *SetDailyCap `json:"set_daily_cap,omitempty"`
	ShiftBudget *ShiftBudget `json:"shift_budget,omitempty"`
	SetStatus   *SetStatus   `json:"set_status,omitempty"`
}

// Empty reports whether no operation is present.
func (o Operations) Empty() bool {
	return o.RemoveGeo == nil && o.AddGeo == nil && o.AdjustBid == nil &&
		o.SetDailyCap == nil && o.ShiftBudget == nil && o.SetStatus == nil
}

// Change is one audit entry describing an applied mutation.
// Previous and New hold strings, numbers, or string lists depending on
// the operation. Never mutated after creation.
type Change struct {
	Operation string `json:"operation"`
	Details   string `json:"details"`
	Previous  any    `json:"previous_value,omitempty"`
	New       any    `json:"new_value,omitempty"`
}

// Impact is the advisory estimate derived from applied changes.
// These are heuristic figures, not measured outcomes.
type Impact struct {
	BudgetChange          float64 `json:"budget_change,omitempty"`
	ReachChangePercent    float64 `json:"reach_change_percent,omitempty"`
	EfficiencyImprovement string  `json:"efficiency_improvement,omitempty"`
	Description           string  `json:"description"`
}

// Apply runs the requested operations against the media buy and its
// metrics in fixed order. Each operation either appends one change
// record or contributes nothing (for example removing a geo that was
// never targeted). Both arguments are mutated in place; callers provide
// isolation (the store's Mutate does).
func Apply(mb *campaign.MediaBuy, m *campaign.DeliveryMetrics, ops Operations) []Change {
	var changes []Change

	if ops.RemoveGeo != nil {
		if c := applyRemoveGeo(mb, m, *ops.RemoveGeo); c != nil {
			changes = append(changes, *c)
		}
	}
	if ops.AddGeo != nil {
		if c := applyAddGeo(mb, *ops.AddGeo); c != nil {
			changes = append(changes, *c)
		}
	}
	if ops.AdjustBid != nil {
		if c := applyAdjustBid(m, *ops.AdjustBid); c != nil {
			changes = append(changes, *c)
		}
	}
	if ops.SetDailyCap != nil {
		changes = append(changes, applySetDailyCap(m, *ops.SetDailyCap))
	}
	if ops.ShiftBudget != nil {
		changes = append(changes, applyShiftBudget(mb, m, *ops.ShiftBudget))
	}
	if ops.SetStatus != nil {
		changes = append(changes, applySetStatus(mb, *ops.SetStatus))
	}

	return changes
}

func applyRemoveGeo(mb *campaign.MediaBuy, m *campaign.DeliveryMetrics, op RemoveGeo) *Change {
	toRemove := upperAll(op.Countries)
	change := &Change{
		Operation: OpRemoveGeo,
		Details:   fmt.Sprintf("Removed countries: %s", strings.Join(toRemove, ", ")),
		Previous:  []string{},
		New:       []string{},
	}

	removed := false
	for i := range mb.Packages {
		targeting := mb.Packages[i].TargetingOverlay
		previous, ok := targeting.StringList(campaign.DimGeoCountry)
		if !ok {
			continue
		}
		var kept []string
		for _, geo := range previous {
			if !containsFold(toRemove, geo) {
				kept = append(kept, geo)
			}
		}
		if len(kept) != len(previous) {
			change.Previous = previous
			change.New = emptyIfNil(kept)
			targeting.SetStringList(campaign.DimGeoCountry, emptyIfNil(kept))
			removed = true
		}
	}

	// The geo's historical breakdown is discarded, not archived.
	for _, country := range toRemove {
		delete(m.ByGeo, country)
	}

	if !removed {
		return nil
	}
	return change
}

func applyAddGeo(mb *campaign.MediaBuy, op AddGeo) *Change {
	// Comparison is case-insensitive but the caller's casing is kept.
	toAdd := op.Countries
	change := &Change{
		Operation: OpAddGeo,
		Details:   fmt.Sprintf("Added countries: %s", strings.Join(toAdd, ", ")),
		Previous:  []string{},
		New:       []string{},
	}

	added := false
	for i := range mb.Packages {
		targeting := mb.Packages[i].TargetingOverlay
		previous, _ := targeting.StringList(campaign.DimGeoCountry)
		merged := append([]string(nil), previous...)
		for _, geo := range toAdd {
			if !containsFold(merged, geo) {
				merged = append(merged, geo)
			}
		}
		if len(merged) != len(previous) {
			change.Previous = emptyIfNil(previous)
			change.New = merged
			targeting.SetStringList(campaign.DimGeoCountry, merged)
			added = true
		}
	}

	if !added {
		return nil
	}
	return change
}

func applyAdjustBid(m *campaign.DeliveryMetrics, op AdjustBid) *Change {
	device := strings.ToLower(op.Device)
	bidKey := device + "_cpm"

	key := bidKey
	oldBid, ok := m.CurrentBids[key]
	details := fmt.Sprintf("Adjusted %s bid by %g%%", device, op.ChangePercent)
	if !ok {
		// Fuzzy fallback: any bid key containing the device name.
		key = ""
		for k := range m.CurrentBids {
			if strings.Contains(strings.ToLower(k), device) {
				key = k
				break
			}
		}
		if key == "" {
			return nil
		}
		oldBid = m.CurrentBids[key]
		details = fmt.Sprintf("Adjusted %s by %g%%", key, op.ChangePercent)
	}

	newBid := round2(oldBid * (1 + op.ChangePercent/100))
	m.CurrentBids[key] = newBid

	return &Change{
		Operation: OpAdjustBid,
		Details:   details,
		Previous:  oldBid,
		New:       newBid,
	}
}

func applySetDailyCap(m *campaign.DeliveryMetrics, op SetDailyCap) Change {
	var previous any = "unlimited"
	if cap, ok := m.CurrentBids[DailyCapBidKey]; ok {
		previous = cap
	}
	m.CurrentBids[DailyCapBidKey] = op.Amount

	return Change{
		Operation: OpSetDailyCap,
		Details:   fmt.Sprintf("Set daily budget cap to $%g", op.Amount),
		Previous:  previous,
		New:       op.Amount,
	}
}

func applyShiftBudget(mb *campaign.MediaBuy, m *campaign.DeliveryMetrics, op ShiftBudget) Change {
	var details []string

	if op.FromDevice != "" && op.ToDevice != "" {
		details = append(details, fmt.Sprintf("Shifted %g%% budget from %s to %s",
			op.Percent, op.FromDevice, op.ToDevice))

		from := strings.ToLower(op.FromDevice)
		to := strings.ToLower(op.ToDevice)
		fromMetrics, okFrom := m.ByDevice[from]
		toMetrics, okTo := m.ByDevice[to]
		if okFrom && okTo {
			// Spend-level reallocation, not a targeting change.
			shift := fromMetrics.Spend * op.Percent / 100
			fromMetrics.Spend -= shift
			toMetrics.Spend += shift
			m.ByDevice[from] = fromMetrics
			m.ByDevice[to] = toMetrics
		}
	}

	if op.FromAudience != "" && op.ToAudience != "" {
		details = append(details, fmt.Sprintf("Shifted %g%% allocation from %s to %s",
			op.Percent, op.FromAudience, op.ToAudience))

		// The target audience is added if absent; the source audience is
		// kept. Documented looseness, preserved deliberately.
		for i := range mb.Packages {
			targeting := mb.Packages[i].TargetingOverlay
			interests, ok := targeting.StringList(campaign.DimSportsInterest)
			if !ok {
				continue
			}
			if !containsFold(interests, op.ToAudience) {
				targeting.SetStringList(campaign.DimSportsInterest, append(interests, op.ToAudience))
			}
		}
	}

	detail := strings.Join(details, "; ")
	if detail == "" {
		detail = fmt.Sprintf("Shifted %g%% of budget", op.Percent)
	}

	return Change{
		Operation: OpShiftBudget,
		Details:   detail,
		Previous:  "original allocation",
		New:       fmt.Sprintf("%g%% shifted", op.Percent),
	}
}

func applySetStatus(mb *campaign.MediaBuy, op SetStatus) Change {
	previous := mb.Status
	mb.Status = op.Status

	return Change{
		Operation: OpSetStatus,
		Details:   fmt.Sprintf("Changed campaign status from %s to %s", previous, op.Status),
		Previous:  previous,
		New:       op.Status,
	}
}

// EstimateImpact derives a best-effort advisory summary from the
// applied change records using per-operation heuristics.
func EstimateImpact(m *campaign.DeliveryMetrics, changes []Change) Impact {
	var (
		descriptions []string
		budgetChange float64
		reachPercent float64
		efficiency   string
	)

	for _, change := range changes {
		switch change.Operation {
		case OpRemoveGeo:
			removed := listLen(change.Previous) - listLen(change.New)
			reachPercent -= float64(removed) * 10
			descriptions = append(descriptions, "Reach reduced by removing geo targets")
		case OpAddGeo:
			added := listLen(change.New) - listLen(change.Previous)
			reachPercent += float64(added) * 8
			descriptions = append(descriptions, "Reach expanded to new markets")
		case OpAdjustBid:
			oldBid, _ := change.Previous.(float64)
			newBid, _ := change.New.(float64)
			if newBid < oldBid {
				efficiency = fmt.Sprintf("CPM reduced by $%.2f", oldBid-newBid)
				descriptions = append(descriptions, "Bid efficiency improved")
			} else {
				descriptions = append(descriptions, "Bid competitiveness increased")
			}
		case OpSetDailyCap:
			cap, _ := change.New.(float64)
			budgetChange = -math.Max(0, m.TotalSpend/30-cap) * 30
			descriptions = append(descriptions, fmt.Sprintf("Daily spend capped at $%g", cap))
		case OpShiftBudget:
			descriptions = append(descriptions, "Budget allocation optimized")
			if efficiency == "" {
				efficiency = "Improved targeting efficiency expected"
			}
		case OpSetStatus:
			if change.New == campaign.StatusPaused {
				descriptions = append(descriptions, "Campaign paused - delivery stopped")
				reachPercent = -100
			} else {
				descriptions = append(descriptions, "Campaign resumed - delivery active")
			}
		}
	}

	description := strings.Join(descriptions, ". ")
	if description == "" {
		description = "Changes applied successfully"
	}

	return Impact{
		BudgetChange:          budgetChange,
		ReachChangePercent:    reachPercent,
		EfficiencyImprovement: efficiency,
		Description:           description,
	}
}

func upperAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(s)
	}
	return out
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func listLen(v any) int {
	switch vv := v.(type) {
	case []string:
		return len(vv)
	case []any:
		return len(vv)
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
