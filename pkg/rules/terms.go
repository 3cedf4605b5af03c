package rules

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Terms holds the data the engine matches against: the five case-folded
// substring categories plus the link classification lists. Deployments
// override it with a YAML file; the built-in defaults cover the common
// English and Indic scam vocabulary.
type Terms struct {
	Urgency        []string `yaml:"urgency"`
	Impersonation  []string `yaml:"impersonation"`
	Credential     []string `yaml:"credential"`
	Action         []string `yaml:"action"`
	BenignContext  []string `yaml:"benign_context"`
	Shorteners     []string `yaml:"shorteners"`
	SuspiciousTLDs []string `yaml:"suspicious_tlds"`
}

// DefaultTerms returns the built-in term sets.
func DefaultTerms() Terms {
	return Terms{
		Urgency: []string{
			"urgent", "immediately", "now", "final warning", "immediate",
			"urg3nt", "turant", "warna",
			"तुरंत", "இப்போது", "এখনই",
		},
		Impersonation: []string{
			"bank", "rbi", "sbi", "hdfc", "icici",
			"support team", "security desk", "customer care",
		},
		Credential: []string{
			"otp", "password", "pin", "cvv", "credential",
			"verify account", "kyc", "login",
		},
		Action: []string{
			"click", "tap", "open", "verify", "share", "submit", "update", "enter",
		},
		BenignContext: []string{
			"fixture", "score", "style", "match", "players", "schedule",
			"tournament", "semester", "admission", "class", "project",
			"notice", "agenda", "minutes", "invoice", "receipt",
			"weather", "festival",
		},
		Shorteners: []string{
			"bit.ly", "tinyurl.com", "t.co", "goo.gl",
		},
		SuspiciousTLDs: []string{
			"top", "xyz", "click", "gq", "tk", "work", "fit", "site", "link",
		},
	}
}

// LoadTerms reads term sets from a YAML file. Categories missing from the
// file keep their built-in defaults, so an override file only needs the
// lists it actually changes.
func LoadTerms(path string) (Terms, error) {
	terms := DefaultTerms()

	data, err := os.ReadFile(path)
	if err != nil {
		return terms, fmt.Errorf("read terms file: %w", err)
	}

	var loaded Terms
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return terms, fmt.Errorf("parse terms file %s: %w", path, err)
	}

	if len(loaded.Urgency) > 0 {
		terms.Urgency = loaded.Urgency
	}
	if len(loaded.Impersonation) > 0 {
		terms.Impersonation = loaded.Impersonation
	}
	if len(loaded.Credential) > 0 {
		terms.Credential = loaded.Credential
	}
	if len(loaded.Action) > 0 {
		terms.Action = loaded.Action
	}
	if len(loaded.BenignContext) > 0 {
		terms.BenignContext = loaded.BenignContext
	}
	if len(loaded.Shorteners) > 0 {
		terms.Shorteners = loaded.Shorteners
	}
	if len(loaded.SuspiciousTLDs) > 0 {
		terms.SuspiciousTLDs = loaded.SuspiciousTLDs
	}
	return terms, nil
}

// lower case-folds every list once at engine construction so matching is a
// plain substring check.
func (t Terms) lower() Terms {
	lowerAll := func(in []string) []string {
		out := make([]string, len(in))
		for i, s := range in {
			out[i] = strings.ToLower(s)
		}
		return out
	}
	return Terms{
		Urgency:        lowerAll(t.Urgency),
		Impersonation:  lowerAll(t.Impersonation),
		Credential:     lowerAll(t.Credential),
		Action:         lowerAll(t.Action),
		BenignContext:  lowerAll(t.BenignContext),
		Shorteners:     lowerAll(t.Shorteners),
		SuspiciousTLDs: lowerAll(t.SuspiciousTLDs),
	}
}
