// Package grounding implements the evidence policy for the agent's
// final text: numeric campaign claims must be backed by at least one
// tool call in the same turn, or the whole message is replaced with a
// refusal directing the user to tool-backed data.
package grounding

import (
	"regexp"
	"strings"
	"time"
)

// Confidence levels attached to a response.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Source scopes describing where the response content came from.
const (
	ScopeToolData             = "tool_data"
	ScopeGeneralResponse      = "general_response"
	ScopeInsufficientEvidence = "insufficient_evidence"
)

// metricKeywords trigger the metric leg of the claim gate.
var metricKeywords = []string{
	"ctr",
	"cpm",
	"cpa",
	"roas",
	"impressions",
	"clicks",
	"conversions",
	"spend",
	"budget",
	"viewability",
	"completion rate",
	"quality score",
	"impression share",
	"pacing",
}

// campaignKeywords trigger the campaign-context leg of the claim gate.
// Includes the demo portfolio's brand names.
var campaignKeywords = []string{
	"campaign",
	"media buy",
	"delivery",
	"portfolio",
	"brand",
	"apex",
	"techflow",
	"sportmax",
	"financefirst",
	"greenenergy",
	"luxebeauty",
	"freshbite",
	"urbanliving",
	"chang",
}

// numericClaimPattern matches currency, percentage, comma-grouped, and
// magnitude-suffixed (k/m/b) numbers.
var numericClaimPattern = regexp.MustCompile(`(?i)(\$?\d[\d,]*(\.\d+)?%?|\b\d+(\.\d+)?\s?(k|m|b)\b)`)

// InsufficientEvidenceMessage replaces a blocked response in full.
const InsufficientEvidenceMessage = "I don't have tool-backed campaign data for that yet. " +
	"Ask me to pull delivery metrics for a specific brand, campaign, or platform and I'll provide grounded numbers."

// Decision is the per-turn outcome of the evidence policy.
type Decision struct {
	RequiresEvidence  bool   `json:"requires_evidence"`
	EvidenceSatisfied bool   `json:"evidence_satisfied"`
	PolicyReason      string `json:"policy_reason"` // campaign_metric_claim or no_metric_claim
}

// Metadata annotates a response with its grounding provenance.
type Metadata struct {
	ToolCallsUsed  []string `json:"tool_calls_used"`
	DataSnapshotTS string   `json:"data_snapshot_ts"`
	Confidence     string   `json:"confidence"`
	SourceScope    string   `json:"source_scope"`
	Note           string   `json:"note,omitempty"`
}

// IsMetricClaim reports whether text asserts a campaign metric value.
// The gate is conjunctive: a metric keyword AND a campaign-context
// keyword AND a numeric-looking substring must all be present. This
// deliberately minimizes false positives on generic advice text.
func IsMetricClaim(text string) bool {
	return containsAny(text, metricKeywords) &&
		containsAny(text, campaignKeywords) &&
		numericClaimPattern.MatchString(text)
}

// EvaluatePolicy decides whether the message needs tool evidence and
// whether that requirement is met. The check is coarse: any tool call
// this turn satisfies it, with no per-number provenance.
func EvaluatePolicy(message string, toolCallCount int) Decision {
	requires := IsMetricClaim(message)
	reason := "no_metric_claim"
	if requires {
		reason = "campaign_metric_claim"
	}
	return Decision{
		RequiresEvidence:  requires,
		EvidenceSatisfied: !requires || toolCallCount > 0,
		PolicyReason:      reason,
	}
}

// Enforce applies the decision: an unsatisfied evidence requirement
// replaces the entire message with the refusal text. All-or-nothing
// substitution, never partial redaction.
func Enforce(message string, d Decision) string {
	if d.RequiresEvidence && !d.EvidenceSatisfied {
		return InsufficientEvidenceMessage
	}
	return message
}

// BuildMetadata derives grounding provenance for the response.
// snapshotTS should be the portfolio as_of timestamp when tool evidence
// exists; if empty, wall-clock time is used.
func BuildMetadata(toolNames []string, d Decision, snapshotTS string) Metadata {
	used := dedupe(toolNames)
	hasEvidence := len(used) > 0

	meta := Metadata{
		ToolCallsUsed: used,
		Confidence:    ConfidenceMedium,
		SourceScope:   ScopeGeneralResponse,
	}

	switch {
	case d.RequiresEvidence && !d.EvidenceSatisfied:
		meta.Confidence = ConfidenceLow
		meta.SourceScope = ScopeInsufficientEvidence
		meta.Note = "Metric claim blocked due to missing tool evidence."
	case hasEvidence:
		meta.Confidence = ConfidenceHigh
		meta.SourceScope = ScopeToolData
	}

	if hasEvidence && snapshotTS != "" {
		meta.DataSnapshotTS = snapshotTS
	} else {
		meta.DataSnapshotTS = time.Now().UTC().Format(time.RFC3339)
	}

	return meta
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
