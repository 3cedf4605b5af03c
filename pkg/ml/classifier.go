package ml

import (
	"log"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// scamHintRe gates per-line scoring: lines with none of these markers and a
// low model probability are skipped, keeping long benign texts cheap and
// their evidence lists empty. Mixed Latin and Devanagari forms match how
// regional scam texts are actually written.
var scamHintRe = regexp.MustCompile(`(?i)(otp|password|pin|cvv|kyc|verify|verification|account\s*(blocked|suspended|freeze)|click\s*here|update\s*now|urgent|immediately|bank|sbi|hdfc|icici|rbi|lottery|prize|winner|तुरंत|ओटीपी|खाता|बैंक|இப்போது|வங்கி|এখনই|ব্যাংক)`)

// ClassifierOptions bound the per-line scoring pass.
type ClassifierOptions struct {
	MinLineLength  int // lines shorter than this many runes are skipped (default 20)
	MaxScoredLines int // at most this many lines are scored (default 120)
	MaxLineHits    int // at most this many detections are kept (default 6)
}

func (o ClassifierOptions) withDefaults() ClassifierOptions {
	if o.MinLineLength <= 0 {
		o.MinLineLength = 20
	}
	if o.MaxScoredLines <= 0 {
		o.MaxScoredLines = 120
	}
	if o.MaxLineHits <= 0 {
		o.MaxLineHits = 6
	}
	return o
}

// Classifier performs read-only inference over a fitted model at document
// and line granularity. It never mutates the model, so a single instance
// serves concurrent requests.
type Classifier struct {
	model *Model
	opts  ClassifierOptions
}

// LineHit is one suspicious line found during per-line scoring.
type LineHit struct {
	Line        string
	Probability float64
}

// Prediction is the local model's verdict on one document.
type Prediction struct {
	DocProbability float64   // model probability for the whole text
	LineHits       []LineHit // suspicious lines, risk-descending
	Base           float64   // max(doc, best line), the rule engine's input
	ModelMissing   bool      // true when no trained model was available
}

// NewClassifier wraps a model for inference. A nil or unfitted model is
// accepted: predictions come back neutral with ModelMissing set, and a
// warning is logged once at construction instead of on every request.
func NewClassifier(model *Model, opts ClassifierOptions) *Classifier {
	if !model.Fitted() {
		log.Printf("[WARN] No trained model available, local tier will score neutral")
	}
	return &Classifier{model: model, opts: opts.withDefaults()}
}

// Ready reports whether a fitted model is backing this classifier.
func (c *Classifier) Ready() bool {
	return c.model.Fitted()
}

// Predict scores the document and its qualifying lines.
// A missing model yields a zero-risk neutral prediction, never an error:
// the deterministic rule tier still runs on top of it.
func (c *Classifier) Predict(text string) Prediction {
	if !c.model.Fitted() {
		return Prediction{ModelMissing: true}
	}

	pred := Prediction{DocProbability: c.model.PredictProba(text)}
	pred.Base = pred.DocProbability

	scored := 0
	for _, line := range strings.Split(text, "\n") {
		if scored >= c.opts.MaxScoredLines {
			break
		}
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) < c.opts.MinLineLength {
			continue
		}
		scored++

		p := c.model.PredictProba(line)
		if p < 0.50 && !scamHintRe.MatchString(line) {
			continue
		}
		pred.LineHits = append(pred.LineHits, LineHit{Line: line, Probability: p})
		if p > pred.Base {
			pred.Base = p
		}
	}

	sort.SliceStable(pred.LineHits, func(a, b int) bool {
		return pred.LineHits[a].Probability > pred.LineHits[b].Probability
	})
	if len(pred.LineHits) > c.opts.MaxLineHits {
		pred.LineHits = pred.LineHits[:c.opts.MaxLineHits]
	}
	return pred
}
