package updates

// Normalize converts a raw updates object into Operations, resolving
// the field-name aliases the model tends to produce: geo/country/
// countries, adjustment_percent/percent, cap/daily_cap/budget, bare
// pause/resume flags, and single-string geo values.
func Normalize(raw map[string]any) Operations {
	var ops Operations

	if op, ok := asMap(raw["remove_geo"]); ok {
		ops.RemoveGeo = &RemoveGeo{Countries: geoList(op)}
	}
	if op, ok := asMap(raw["add_geo"]); ok {
		ops.AddGeo = &AddGeo{Countries: geoList(op)}
	}
	if op, ok := asMap(raw["adjust_bid"]); ok {
		device, _ := asString(op["device"])
		if device == "" {
			device = "all"
		}
		ops.AdjustBid = &AdjustBid{
			Device:        device,
			ChangePercent: firstNumber(op, "change_percent", "adjustment_percent", "percent"),
		}
	}
	if op, ok := asMap(raw["set_daily_cap"]); ok {
		ops.SetDailyCap = &SetDailyCap{
			Amount: firstNumber(op, "amount", "cap", "daily_cap", "budget"),
		}
	}
	if op, ok := asMap(raw["shift_budget"]); ok {
		fromAudience, _ := asString(op["from_audience"])
		toAudience, _ := asString(op["to_audience"])
		fromDevice, _ := asString(op["from_device"])
		toDevice, _ := asString(op["to_device"])
		ops.ShiftBudget = &ShiftBudget{
			FromAudience: fromAudience,
			ToAudience:   toAudience,
			FromDevice:   fromDevice,
			ToDevice:     toDevice,
			Percent:      firstNumber(op, "percent", "percentage"),
		}
	}
	if op, ok := asMap(raw["set_status"]); ok {
		status, _ := asString(op["status"])
		if status == "" {
			status, _ = asString(op["state"])
		}
		if status == "active" || status == "paused" {
			ops.SetStatus = &SetStatus{Status: status}
		}
	}

	// Bare pause/resume flags map onto set_status.
	if isTrue(raw["pause"]) || isTrue(raw["paused"]) {
		ops.SetStatus = &SetStatus{Status: "paused"}
	}
	if isTrue(raw["resume"]) || isTrue(raw["activate"]) {
		ops.SetStatus = &SetStatus{Status: "active"}
	}

	return ops
}

// geoList pulls the country list from an operation map, accepting the
// countries/geo/country aliases and single-string values.
func geoList(op map[string]any) []string {
	for _, key := range []string{"countries", "geo", "country"} {
		switch v := op[key].(type) {
		case []string:
			return v
		case []any:
			var out []string
			for _, e := range v {
				if s, ok := e.(string); ok {
					out = append(out, s)
				}
			}
			if out != nil {
				return out
			}
		case string:
			return []string{v}
		}
	}
	return nil
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok && m != nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// firstNumber returns the first present numeric value among keys.
// JSON decoding yields float64; int is accepted for direct callers.
func firstNumber(op map[string]any, keys ...string) float64 {
	for _, key := range keys {
		switch v := op[key].(type) {
		case float64:
			return v
		case int:
			return float64(v)
		}
	}
	return 0
}

func isTrue(v any) bool {
	b, ok := v.(bool)
	return ok && b
}
