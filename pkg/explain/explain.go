// Package explain derives a structured, enumerable explanation from a
// scored result. The output is deliberately machine-oriented: stable reason
// codes and tactic names that a UI or localization layer renders into
// user-facing text. No free-form generation happens here.
package explain

import "strings"

// ReasonType is the primary reason code for a verdict. Values are stable
// identifiers; downstream formatters key translations off them.
type ReasonType string

const (
	ReasonBankImpersonation ReasonType = "bank-impersonation"
	ReasonUrgencyTactic     ReasonType = "urgency-tactic"
	ReasonCredentialRequest ReasonType = "credential-request"
	ReasonSuspiciousLink    ReasonType = "suspicious-link"
	ReasonRewardScam        ReasonType = "reward-scam"
	ReasonAccountThreat     ReasonType = "account-threat"
	ReasonSafe              ReasonType = "safe"
)

// Explanation is the structured rationale attached to a result.
type Explanation struct {
	RiskLevel  string     `json:"risk_level"`
	Reason     ReasonType `json:"primary_reason"`
	Tactics    []string   `json:"psychological_tactics"`
	Technical  []string   `json:"technical_indicators"`
	Confidence string     `json:"confidence"` // High, Medium, Low
}

// Input carries everything Derive needs from the pipeline.
type Input struct {
	RiskLevel string
	Score     float64
	Signals   []string
	Text      string
}

// Derive maps fired signals onto the reason enum. Precedence runs from the
// most specific manipulation (impersonation) down to link shape; a text
// with no firing signal is "safe" regardless of its numeric score.
func Derive(in Input) Explanation {
	exp := Explanation{
		RiskLevel:  in.RiskLevel,
		Reason:     ReasonSafe,
		Confidence: confidenceBand(in.Score),
	}

	has := func(substr string) bool {
		for _, s := range in.Signals {
			if strings.Contains(strings.ToLower(s), strings.ToLower(substr)) {
				return true
			}
		}
		return false
	}

	impersonation := has("impersonation")
	urgency := has("urgency")
	credential := has("credential")
	suspiciousURL := has("url")
	textLower := strings.ToLower(in.Text)
	reward := strings.Contains(textLower, "lottery") || strings.Contains(textLower, "prize") ||
		strings.Contains(textLower, "won") || strings.Contains(textLower, "winner")
	accountThreat := strings.Contains(textLower, "blocked") || strings.Contains(textLower, "suspend") ||
		strings.Contains(textLower, "freeze") || strings.Contains(textLower, "deactivat")

	switch {
	case impersonation:
		exp.Reason = ReasonBankImpersonation
	case urgency && credential:
		exp.Reason = ReasonCredentialRequest
	case credential:
		exp.Reason = ReasonCredentialRequest
	case urgency:
		exp.Reason = ReasonUrgencyTactic
	case suspiciousURL:
		exp.Reason = ReasonSuspiciousLink
	case reward && in.Score >= 0.35:
		exp.Reason = ReasonRewardScam
	case accountThreat && in.Score >= 0.35:
		exp.Reason = ReasonAccountThreat
	}

	if urgency {
		exp.Tactics = append(exp.Tactics, "Urgency")
	}
	if impersonation {
		exp.Tactics = append(exp.Tactics, "Authority")
	}
	if credential {
		exp.Tactics = append(exp.Tactics, "Fear")
	}
	if reward && exp.Reason != ReasonSafe {
		exp.Tactics = append(exp.Tactics, "Greed")
	}

	if suspiciousURL {
		exp.Technical = append(exp.Technical, "Suspicious URL")
	}
	if credential {
		exp.Technical = append(exp.Technical, "Credential Harvesting Pattern")
	}

	return exp
}

func confidenceBand(score float64) string {
	switch {
	case score >= 0.8:
		return "High"
	case score >= 0.45:
		return "Medium"
	default:
		return "Low"
	}
}
