package fusion

import (
	"sort"

	"github.com/SurakshaAI/shield/pkg/ml"
	"github.com/SurakshaAI/shield/pkg/oracle"
	"github.com/SurakshaAI/shield/pkg/rules"
)

// Evidence sources, most to least concrete.
const (
	EvidenceModelLine = "model-line" // per-line classifier detection
	EvidenceLink      = "link"       // suspicious URL flagged by the rule engine
	EvidenceTemplate  = "template"   // semantic match against a known scam template
	EvidenceOracle    = "oracle"     // tactic named by the AI second opinion
)

// Evidence is one concrete item supporting a verdict, suitable for
// highlighting in a client.
type Evidence struct {
	Phrase string  `json:"phrase"`
	Risk   float64 `json:"risk"`
	Source string  `json:"source"`
	Detail string  `json:"detail,omitempty"`
}

// suspiciousLinkRisk is the fixed risk attached to link evidence. Links are
// flagged structurally, so there is no per-link probability to report.
const suspiciousLinkRisk = 0.85

const maxPhraseRunes = 120

// buildEvidence assembles, dedupes, ranks, and caps the evidence list.
// Duplicate phrases keep their highest-risk occurrence. Ordering is risk
// descending with phrase as tiebreak so identical inputs produce identical
// lists.
func buildEvidence(pred ml.Prediction, a rules.Assessment, op *oracle.Opinion, match *ml.TemplateMatch, limit int) []Evidence {
	var items []Evidence

	for _, hit := range pred.LineHits {
		items = append(items, Evidence{
			Phrase: truncatePhrase(hit.Line),
			Risk:   hit.Probability,
			Source: EvidenceModelLine,
		})
	}
	for _, link := range a.SuspiciousLinks {
		items = append(items, Evidence{
			Phrase: truncatePhrase(link),
			Risk:   suspiciousLinkRisk,
			Source: EvidenceLink,
			Detail: "shortened, raw-IP, or high-abuse TLD",
		})
	}
	if match != nil {
		items = append(items, Evidence{
			Phrase: truncatePhrase(match.Template),
			Risk:   float64(match.Similarity),
			Source: EvidenceTemplate,
			Detail: match.Category,
		})
	}
	if op != nil {
		for _, tactic := range op.Tactics {
			items = append(items, Evidence{
				Phrase: tactic,
				Risk:   op.Risk,
				Source: EvidenceOracle,
				Detail: op.Explanation,
			})
		}
	}

	best := make(map[string]Evidence, len(items))
	for _, it := range items {
		if prev, ok := best[it.Phrase]; !ok || it.Risk > prev.Risk {
			best[it.Phrase] = it
		}
	}
	out := make([]Evidence, 0, len(best))
	for _, it := range best {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Risk != out[j].Risk {
			return out[i].Risk > out[j].Risk
		}
		return out[i].Phrase < out[j].Phrase
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func truncatePhrase(s string) string {
	runes := []rune(s)
	if len(runes) <= maxPhraseRunes {
		return s
	}
	return string(runes[:maxPhraseRunes]) + "..."
}
