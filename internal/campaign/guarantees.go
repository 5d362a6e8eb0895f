package campaign

import (
	"fmt"
	"math"
	"strings"
)

// Thresholds for the at_risk band around a guarantee target.
const (
	atRiskFloorGTE   = 0.9 // a gte guarantee within 90% of target is at risk, not violated
	atRiskCeilingLTE = 1.1 // an lte guarantee within 110% of target is at risk, not violated
)

// EvaluateGuarantees computes compliance verdicts for every guarantee
// attached to a media buy against its current delivery metrics.
//
// A metric absent from the summary is classified at_risk with 0%
// progress; absence is never treated as success. The overall status is
// the worst verdict across all guarantees. A campaign with zero
// guarantees is compliant with HasGuarantees false.
func EvaluateGuarantees(mediaBuyID string, guarantees []ContractualGuarantee, summary MetricsSummary) GuaranteeComplianceResult {
	if len(guarantees) == 0 {
		return GuaranteeComplianceResult{
			MediaBuyID:    mediaBuyID,
			HasGuarantees: false,
			Guarantees:    []ContractualGuarantee{},
			OverallStatus: ComplianceCompliant,
			Summary:       "No contractual guarantees attached",
		}
	}

	evaluated := make([]ContractualGuarantee, len(guarantees))
	for i, g := range guarantees {
		evaluated[i] = evaluateOne(g, summary)
	}

	return GuaranteeComplianceResult{
		MediaBuyID:    mediaBuyID,
		HasGuarantees: true,
		Guarantees:    evaluated,
		OverallStatus: worstStatus(evaluated),
		Summary:       renderSummary(evaluated),
	}
}

func evaluateOne(g ContractualGuarantee, summary MetricsSummary) ContractualGuarantee {
	current, ok := summary.SummaryMetric(g.Metric)
	if !ok {
		g.ComplianceStatus = ComplianceAtRisk
		zero := 0.0
		g.PercentToTarget = &zero
		return g
	}

	g.CurrentValue = &current

	var status string
	switch g.Operator {
	case OpLTE:
		switch {
		case current <= g.GuaranteedValue:
			status = ComplianceCompliant
		case current <= g.GuaranteedValue*atRiskCeilingLTE:
			status = ComplianceAtRisk
		default:
			status = ComplianceViolated
		}
	default: // gte
		switch {
		case current >= g.GuaranteedValue:
			status = ComplianceCompliant
		case current >= g.GuaranteedValue*atRiskFloorGTE:
			status = ComplianceAtRisk
		default:
			status = ComplianceViolated
		}
	}
	g.ComplianceStatus = status

	percent := 100.0
	if g.GuaranteedValue != 0 {
		percent = math.Round(current / g.GuaranteedValue * 100)
	}
	g.PercentToTarget = &percent

	return g
}

// worstStatus picks the overall verdict: violated > at_risk > compliant.
func worstStatus(gs []ContractualGuarantee) string {
	for _, want := range []string{ComplianceViolated, ComplianceAtRisk} {
		for _, g := range gs {
			if g.ComplianceStatus == want {
				return want
			}
		}
	}
	return ComplianceCompliant
}

// renderSummary produces a one-line summary grouping guarantees by
// verdict with their metric names, worst bucket first.
func renderSummary(gs []ContractualGuarantee) string {
	buckets := map[string][]string{}
	for _, g := range gs {
		buckets[g.ComplianceStatus] = append(buckets[g.ComplianceStatus], g.Metric)
	}

	var parts []string
	for _, status := range []string{ComplianceViolated, ComplianceAtRisk, ComplianceCompliant} {
		metrics := buckets[status]
		if len(metrics) == 0 {
			continue
		}
		label := strings.ReplaceAll(status, "_", " ")
		parts = append(parts, fmt.Sprintf("%d %s (%s)", len(metrics), label, strings.Join(metrics, ", ")))
	}
	return strings.Join(parts, "; ")
}
