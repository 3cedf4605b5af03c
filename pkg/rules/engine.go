// Package rules implements the deterministic contextual risk tier. The
// engine composes additive boosts and dampeners over five term categories
// and a link classifier, always producing the same assessment for the same
// input. It carries no network or model dependencies, so it is the floor
// the pipeline can always fall back to.
package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/SurakshaAI/shield/pkg/config"
	"github.com/SurakshaAI/shield/pkg/textproc"
)

var (
	urlRe   = regexp.MustCompile(`(?i)https?://\S+`)
	ipURLRe = regexp.MustCompile(`(?i)https?://(?:\d{1,3}\.){3}\d{1,3}(?:[:/]\S*)?`)
)

// Boost and dampener magnitudes. Each rule fires at most once per text.
const (
	boostUrgencyCredential = 0.12
	boostImpersonation     = 0.10
	boostActionWithLink    = 0.08
	boostSuspiciousLink    = 0.14
	boostContextChain      = 0.10
	dampenBenignTopic      = 0.15
	dampenIsolatedKeyword  = 0.12
)

// Signal names, stable across releases: callers key explanations off them.
const (
	SignalUrgencyCredential = "Urgency + credential ask"
	SignalImpersonation     = "Brand impersonation"
	SignalActionWithLink    = "Action request with link"
	SignalSuspiciousLink    = "Suspicious URL structure"
	SignalContextChain      = "Context chain: pressure -> action"
	SignalBenignDampener    = "Benign-topic dampener"
	SignalIsolatedKeyword   = "Isolated keyword (low confidence)"
)

// Assessment is the engine's verdict on one text.
type Assessment struct {
	Score           float64  // clamp(base + boosts - dampeners, 0, 1)
	Level           string   // severity band name for Score
	Signals         []string // fired signals plus caller-detected features, deduped and sorted
	Boost           float64  // net adjustment applied to the base score
	SuspiciousLinks []string // links flagged by the link classifier
}

// Engine scores text against its term sets. Safe for concurrent use; the
// lock only guards term-set reloads.
type Engine struct {
	mu          sync.RWMutex
	terms       Terms
	shortenerRe *regexp.Regexp
	tldRe       *regexp.Regexp
	bands       config.SeverityBands
}

// NewEngine builds an engine over the given term sets and severity bands.
func NewEngine(terms Terms, bands config.SeverityBands) *Engine {
	e := &Engine{bands: bands}
	e.setTerms(terms)
	return e
}

// Reload swaps in a new term-set file without restarting. Scoring in flight
// finishes against the old sets.
func (e *Engine) Reload(path string) error {
	terms, err := LoadTerms(path)
	if err != nil {
		return err
	}
	e.setTerms(terms)
	return nil
}

func (e *Engine) setTerms(terms Terms) {
	t := terms.lower()

	quoted := make([]string, len(t.Shorteners))
	for i, s := range t.Shorteners {
		quoted[i] = regexp.QuoteMeta(s)
	}
	shortenerRe := regexp.MustCompile(`(?i)https?://(?:` + strings.Join(quoted, "|") + `)/\S+`)

	tlds := make([]string, len(t.SuspiciousTLDs))
	for i, s := range t.SuspiciousTLDs {
		tlds[i] = regexp.QuoteMeta(s)
	}
	tldRe := regexp.MustCompile(`(?i)https?://[^\s]+\.(?:` + strings.Join(tlds, "|") + `)(?:[:/]|$)`)

	e.mu.Lock()
	e.terms = t
	e.shortenerRe = shortenerRe
	e.tldRe = tldRe
	e.mu.Unlock()
}

// ExtractLinks returns every http(s) URL in the text. Trailing sentence
// punctuation is stripped: a link quoted mid-sentence ("pay at
// http://x.xyz, today") would otherwise carry the comma into the host
// classifiers and escape the TLD check.
func ExtractLinks(text string) []string {
	links := urlRe.FindAllString(text, -1)
	for i, link := range links {
		links[i] = strings.TrimRight(link, `.,;:!?)]}'"`)
	}
	return links
}

// isSuspiciousLink flags raw-IP hosts, known shorteners, and high-abuse TLDs.
func (e *Engine) isSuspiciousLink(link string) bool {
	return ipURLRe.MatchString(link) || e.shortenerRe.MatchString(link) || e.tldRe.MatchString(link)
}

func hasAny(textLower string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(textLower, t) {
			return true
		}
	}
	return false
}

// Score evaluates the text against the rule set and composes the result
// with the given base score. detectedFeatures are caller-side signals (line
// detections, template matches) folded into the signal list; links, when
// nil, are extracted from the text. Rules are order-independent and each
// fires at most once, so the output is a pure function of the input.
func (e *Engine) Score(text string, detectedFeatures []string, links []string, baseScore float64) Assessment {
	e.mu.RLock()
	defer e.mu.RUnlock()

	textLower := strings.ToLower(text)
	if links == nil {
		links = ExtractLinks(text)
	}

	var boosts, dampeners float64
	signals := append([]string{}, detectedFeatures...)

	urgency := hasAny(textLower, e.terms.Urgency)
	impersonation := hasAny(textLower, e.terms.Impersonation)
	credential := hasAny(textLower, e.terms.Credential)
	action := hasAny(textLower, e.terms.Action)
	benign := hasAny(textLower, e.terms.BenignContext)

	var suspicious []string
	for _, link := range links {
		if e.isSuspiciousLink(link) {
			suspicious = append(suspicious, link)
		}
	}

	if urgency && credential {
		boosts += boostUrgencyCredential
		signals = append(signals, SignalUrgencyCredential)
	}
	if impersonation && (credential || action) {
		boosts += boostImpersonation
		signals = append(signals, SignalImpersonation)
	}
	if action && len(links) > 0 {
		boosts += boostActionWithLink
		signals = append(signals, SignalActionWithLink)
	}
	if len(suspicious) > 0 {
		boosts += boostSuspiciousLink
		signals = append(signals, SignalSuspiciousLink)
	}

	// Pressure in one sentence followed by an ask in the next is the classic
	// scam escalation shape. Fires once, on the first such pair.
	sentences := textproc.SplitSentences(textLower)
	for i := 0; i+1 < len(sentences); i++ {
		pressure := hasAny(sentences[i], e.terms.Urgency) || hasAny(sentences[i], e.terms.Impersonation)
		ask := hasAny(sentences[i+1], e.terms.Credential) || hasAny(sentences[i+1], e.terms.Action)
		if pressure && ask {
			boosts += boostContextChain
			signals = append(signals, SignalContextChain)
			break
		}
	}

	if benign && len(suspicious) == 0 && !(urgency && credential) {
		dampeners += dampenBenignTopic
		signals = append(signals, SignalBenignDampener)
	}

	riskCategories := 0
	for _, hit := range []bool{urgency, impersonation, credential, action} {
		if hit {
			riskCategories++
		}
	}
	if len(suspicious) == 0 && riskCategories <= 1 {
		dampeners += dampenIsolatedKeyword
		signals = append(signals, SignalIsolatedKeyword)
	}

	final := clamp01(baseScore + boosts - dampeners)
	return Assessment{
		Score:           final,
		Level:           e.bands.Severity(final),
		Signals:         dedupeSorted(signals),
		Boost:           boosts - dampeners,
		SuspiciousLinks: suspicious,
	}
}

// Bands exposes the engine's severity bands for callers that classify
// scores outside a full rule pass.
func (e *Engine) Bands() config.SeverityBands {
	return e.bands
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func dedupeSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// String implements fmt.Stringer for log lines.
func (a Assessment) String() string {
	return fmt.Sprintf("score=%.4f level=%s boost=%+.4f signals=%d", a.Score, a.Level, a.Boost, len(a.Signals))
}
