// Package fusion orchestrates the scoring tiers into one verdict.
//
// The flow per text: validate, check the fingerprint cache, run the local
// model at document and line granularity, compose the deterministic rule
// assessment on top of it, optionally consult the AI oracle, fuse the two
// scores, derive an explanation and evidence, then cache the result.
//
// Every tier above the rules is optional. A missing model scores neutral, a
// failing oracle is ignored, a cold template index simply never matches. The
// pipeline therefore always returns a verdict for valid input.
package fusion

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/SurakshaAI/shield/pkg/cache"
	"github.com/SurakshaAI/shield/pkg/config"
	"github.com/SurakshaAI/shield/pkg/explain"
	"github.com/SurakshaAI/shield/pkg/httputil"
	"github.com/SurakshaAI/shield/pkg/langdetect"
	"github.com/SurakshaAI/shield/pkg/ml"
	"github.com/SurakshaAI/shield/pkg/oracle"
	"github.com/SurakshaAI/shield/pkg/rules"
	"github.com/SurakshaAI/shield/pkg/textproc"
)

// Fusion method names reported in results.
const (
	MethodLocal  = "local"  // rules + model only
	MethodHybrid = "hybrid" // weighted blend of local and oracle scores
	MethodOracle = "oracle" // oracle overrode a strongly disagreeing local score
)

// benignLanguageDampener shrinks the local score when the language layer
// sees benign regional vocabulary and nothing link-shaped contradicts it.
const benignLanguageDampener = 0.85

// SignalBenignLanguage is appended when the dampener fires.
const SignalBenignLanguage = "Benign regional context"

// SignalLineDetection is folded into the rule pass when per-line scoring
// found at least one suspicious line.
const SignalLineDetection = "High-risk line detected"

// RiskResult is the pipeline's verdict on one text.
type RiskResult struct {
	ID          string              `json:"id"`
	Score       float64             `json:"score"`      // fused risk, 0.0-1.0
	RiskScore   int                 `json:"risk_score"` // Score scaled to 0-100 for display
	Level       string              `json:"risk_level"` // low, medium, high, critical
	Method      string              `json:"method"`     // local, hybrid, oracle
	Language    string              `json:"language"`
	Signals     []string            `json:"signals"`
	Evidence    []Evidence          `json:"evidence"`
	Explanation explain.Explanation `json:"explanation"`
	LocalScore  float64             `json:"local_score"`
	OracleScore float64             `json:"oracle_score,omitempty"`
	OracleUsed  bool                `json:"oracle_used"`
	Cached      bool                `json:"cached"`
	LatencyMs   float64             `json:"latency_ms"`
	Fingerprint string              `json:"fingerprint"`
}

// OracleClient is the second-opinion contract. *oracle.Client satisfies it;
// tests substitute a stub.
type OracleClient interface {
	Analyze(ctx context.Context, text string) (*oracle.Opinion, error)
}

// TemplateMatcher is the semantic similarity contract. *ml.TemplateMatcher
// satisfies it.
type TemplateMatcher interface {
	IsReady() bool
	Match(ctx context.Context, text string) (*ml.TemplateMatch, error)
}

// Options carries the pipeline's collaborators. Oracle and Matcher may be
// nil; Cache defaults to an in-process LRU sized from the config.
type Options struct {
	Classifier *ml.Classifier
	Engine     *rules.Engine
	Cache      cache.Cache[RiskResult]
	Oracle     OracleClient
	Matcher    TemplateMatcher
}

// Pipeline fuses the scoring tiers. Safe for concurrent use.
type Pipeline struct {
	cfg        *config.Config
	classifier *ml.Classifier
	engine     *rules.Engine
	cache      cache.Cache[RiskResult]
	oracle     OracleClient
	matcher    TemplateMatcher
	sem        *httputil.Semaphore

	analyzed       atomic.Int64
	oracleCalls    atomic.Int64
	oracleFailures atomic.Int64
}

// New builds a pipeline from configuration and collaborators.
func New(cfg *config.Config, opts Options) *Pipeline {
	c := opts.Cache
	if c == nil {
		c = cache.NewMemory[RiskResult](cfg.CacheCapacity, cfg.CacheTTL)
	}
	return &Pipeline{
		cfg:        cfg,
		classifier: opts.Classifier,
		engine:     opts.Engine,
		cache:      c,
		oracle:     opts.Oracle,
		matcher:    opts.Matcher,
		sem:        httputil.NewSemaphore(cfg.BatchWorkers),
	}
}

// Classify scores one text. Validation errors are the only error path;
// every downstream tier degrades instead of failing.
func (p *Pipeline) Classify(ctx context.Context, text string) (*RiskResult, error) {
	start := time.Now()

	if err := textproc.ValidateLength(text, p.cfg.MaxTextLength); err != nil {
		return nil, err
	}
	p.analyzed.Add(1)

	fp := textproc.Fingerprint(text)
	if hit, ok := p.cache.Get(ctx, fp); ok {
		hit.Cached = true
		hit.LatencyMs = latencyMs(start)
		return &hit, nil
	}

	pred := p.classifier.Predict(text)
	detected := []string{}
	if len(pred.LineHits) > 0 {
		detected = append(detected, SignalLineDetection)
	}

	var match *ml.TemplateMatch
	if p.matcher != nil && p.matcher.IsReady() {
		m, err := p.matcher.Match(ctx, text)
		if err != nil {
			log.Printf("[WARN] Template match failed: %v", err)
		} else if m != nil {
			match = m
			detected = append(detected, fmt.Sprintf("Matches known scam template (%s)", m.Category))
		}
	}

	assessment := p.engine.Score(text, detected, nil, pred.Base)
	localScore := assessment.Score
	signals := assessment.Signals

	det := langdetect.Detect(text)
	if det.LikelyBenign && len(assessment.SuspiciousLinks) == 0 && localScore < p.engine.Bands().High {
		localScore *= benignLanguageDampener
		signals = append(signals, SignalBenignLanguage)
		sort.Strings(signals)
	}

	fused := localScore
	method := MethodLocal
	var opinion *oracle.Opinion
	if p.oracle != nil && p.cfg.OracleProvider != config.ProviderNone && localScore >= p.cfg.OracleMinScore {
		p.oracleCalls.Add(1)
		op, err := p.oracle.Analyze(ctx, text)
		if err != nil {
			// Local verdict stands. The oracle is advisory.
			p.oracleFailures.Add(1)
			log.Printf("[WARN] Oracle unavailable, serving local verdict: %v", err)
		} else {
			opinion = op
			if math.Abs(localScore-op.Risk) > p.cfg.DisagreementDelta {
				fused = op.Risk
				method = MethodOracle
			} else {
				fused = p.cfg.LocalWeight*localScore + (1-p.cfg.LocalWeight)*op.Risk
				method = MethodHybrid
			}
		}
	}

	level := p.engine.Bands().Severity(fused)
	result := RiskResult{
		ID:          uuid.NewString(),
		Score:       fused,
		RiskScore:   int(math.Round(fused * 100)),
		Level:       level,
		Method:      method,
		Language:    det.PrimaryLanguage,
		Signals:     signals,
		Evidence:    buildEvidence(pred, assessment, opinion, match, p.cfg.EvidenceCap),
		Explanation: explain.Derive(explain.Input{RiskLevel: level, Score: fused, Signals: signals, Text: text}),
		LocalScore:  localScore,
		OracleUsed:  opinion != nil,
		LatencyMs:   latencyMs(start),
		Fingerprint: fp,
	}
	if opinion != nil {
		result.OracleScore = opinion.Risk
	}

	// A cancelled request must not publish a possibly partial verdict.
	if ctx.Err() == nil {
		p.cache.Set(ctx, fp, result)
	}
	return &result, nil
}

// BatchItem pairs one batch input with its outcome. Exactly one of Result
// and Error is set.
type BatchItem struct {
	Index  int         `json:"index"`
	Result *RiskResult `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// ClassifyBatch scores texts concurrently, bounded by the worker semaphore.
// Output order matches input order; per-text failures are reported in place
// and never abort the batch.
func (p *Pipeline) ClassifyBatch(ctx context.Context, texts []string) ([]BatchItem, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("batch is empty")
	}
	if len(texts) > p.cfg.MaxBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds limit of %d", len(texts), p.cfg.MaxBatchSize)
	}

	items := make([]BatchItem, len(texts))
	var wg sync.WaitGroup
	for i, text := range texts {
		items[i].Index = i
		if err := p.sem.Acquire(ctx); err != nil {
			items[i].Error = err.Error()
			continue
		}
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			defer p.sem.Release()
			res, err := p.Classify(ctx, text)
			if err != nil {
				items[i].Error = err.Error()
				return
			}
			items[i].Result = res
		}(i, text)
	}
	wg.Wait()
	return items, nil
}

// Stats reports pipeline counters and tier readiness.
type Stats struct {
	Analyzed       int64       `json:"analyzed"`
	OracleCalls    int64       `json:"oracle_calls"`
	OracleFailures int64       `json:"oracle_failures"`
	OracleProvider string      `json:"oracle_provider"`
	ModelReady     bool        `json:"model_ready"`
	SemanticReady  bool        `json:"semantic_ready"`
	Cache          cache.Stats `json:"cache"`
}

// Stats returns a snapshot of the pipeline's counters.
func (p *Pipeline) Stats() Stats {
	s := Stats{
		Analyzed:       p.analyzed.Load(),
		OracleCalls:    p.oracleCalls.Load(),
		OracleFailures: p.oracleFailures.Load(),
		OracleProvider: string(p.cfg.OracleProvider),
		ModelReady:     p.classifier.Ready(),
		Cache:          p.cache.Stats(),
	}
	if p.matcher != nil {
		s.SemanticReady = p.matcher.IsReady()
	}
	return s
}

func latencyMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
