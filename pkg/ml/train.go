package ml

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Sample is one labeled training example. Label 1 marks phishing/scam text.
type Sample struct {
	Text  string
	Label int
}

// TrainOptions tune the SGD fit. Zero values fall back to the defaults that
// the shipped model was trained with.
type TrainOptions struct {
	Epochs       int     // default 14
	LearningRate float64 // default 0.3, decays x0.92 per epoch
	L2           float64 // default 1e-5
	MaxFeatures  int     // default 120000
	Seed         int64   // default 42
}

func (o TrainOptions) withDefaults() TrainOptions {
	if o.Epochs <= 0 {
		o.Epochs = 14
	}
	if o.LearningRate <= 0 {
		o.LearningRate = 0.3
	}
	if o.L2 <= 0 {
		o.L2 = 1e-5
	}
	if o.MaxFeatures <= 0 {
		o.MaxFeatures = 120000
	}
	if o.Seed == 0 {
		o.Seed = 42
	}
	return o
}

// ThresholdReport describes the best decision threshold found on held-out
// data together with the metrics it achieves there.
type ThresholdReport struct {
	Threshold float64 `json:"threshold"`
	F1        float64 `json:"f1"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	Accuracy  float64 `json:"accuracy"`
}

// ConfusionMatrix counts prediction outcomes on held-out data.
type ConfusionMatrix struct {
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TP int `json:"tp"`
}

// Metrics is the evaluation report written beside the model artifact.
type Metrics struct {
	BestThreshold   ThresholdReport `json:"best_threshold"`
	Confusion       ConfusionMatrix `json:"confusion_matrix"`
	TrainSamples    int             `json:"train_samples"`
	HoldoutSamples  int             `json:"holdout_samples"`
	VocabularySize  int             `json:"vocabulary_size"`
}

// Train fits a model on the given samples. The fit is fully deterministic
// for a fixed seed: the only randomness is the per-epoch sample order.
func Train(samples []Sample, opts TrainOptions) *Model {
	opts = opts.withDefaults()
	m := NewModel()
	if len(samples) == 0 {
		return m
	}

	texts := make([]string, len(samples))
	labels := make([]int, len(samples))
	for i, s := range samples {
		texts[i] = s.Text
		labels[i] = s.Label
	}

	buildVocab(m, texts, opts.MaxFeatures)

	vectors := make([]map[int]float64, len(texts))
	for i, t := range texts {
		vectors[i] = m.Vectorize(t)
	}

	// Class-balancing weights keep the minority class from being drowned out
	pos := 0
	for _, y := range labels {
		pos += y
	}
	neg := len(labels) - pos
	wPos, wNeg := 1.0, 1.0
	if pos > 0 {
		wPos = float64(len(labels)) / float64(2*pos)
	}
	if neg > 0 {
		wNeg = float64(len(labels)) / float64(2*neg)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	idxs := make([]int, len(labels))
	for i := range idxs {
		idxs[i] = i
	}

	lr := opts.LearningRate
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		rng.Shuffle(len(idxs), func(a, b int) { idxs[a], idxs[b] = idxs[b], idxs[a] })
		for _, i := range idxs {
			x := vectors[i]
			y := float64(labels[i])

			p := sigmoid(m.Bias + dot(m.Weights, x))

			err := p - y
			if labels[i] == 1 {
				err *= wPos
			} else {
				err *= wNeg
			}
			for j, v := range x {
				m.Weights[j] -= lr * (err*v + opts.L2*m.Weights[j])
			}
			m.Bias -= lr * err
		}
		lr *= 0.92
	}

	m.TrainedAt = time.Now().UTC()
	return m
}

// buildVocab selects the top max features by global term frequency and
// assigns indices in frequency-descending order. Count ties break on the
// feature string so two runs over the same corpus build identical tables.
func buildVocab(m *Model, texts []string, maxFeatures int) {
	tf := make(map[string]int)
	df := make(map[string]int)
	for _, text := range texts {
		feats := features(text)
		seen := make(map[string]bool, len(feats))
		for _, f := range feats {
			tf[f]++
			if !seen[f] {
				df[f]++
				seen[f] = true
			}
		}
	}

	type featCount struct {
		feat  string
		count int
	}
	ranked := make([]featCount, 0, len(tf))
	for f, c := range tf {
		ranked = append(ranked, featCount{f, c})
	}
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].count != ranked[b].count {
			return ranked[a].count > ranked[b].count
		}
		return ranked[a].feat < ranked[b].feat
	})
	if len(ranked) > maxFeatures {
		ranked = ranked[:maxFeatures]
	}

	m.Vocab = make(map[string]int, len(ranked))
	m.IDF = make(map[int]float64, len(ranked))
	nDocs := float64(len(texts))
	for i, fc := range ranked {
		m.Vocab[fc.feat] = i
		m.IDF[i] = math.Log((1+nDocs)/(1+float64(df[fc.feat]))) + 1.0
	}
}

// SplitHoldout shuffles the samples with the given seed and carves off
// holdoutRatio of them for threshold tuning and evaluation.
func SplitHoldout(samples []Sample, holdoutRatio float64, seed int64) (train, holdout []Sample) {
	idxs := make([]int, len(samples))
	for i := range idxs {
		idxs[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(idxs), func(a, b int) { idxs[a], idxs[b] = idxs[b], idxs[a] })

	cut := int(float64(len(idxs)) * (1 - holdoutRatio))
	if cut < 1 {
		cut = 1
	}
	for _, i := range idxs[:cut] {
		train = append(train, samples[i])
	}
	for _, i := range idxs[cut:] {
		holdout = append(holdout, samples[i])
	}
	return train, holdout
}

// TuneThreshold sweeps decision thresholds from 0.20 to 0.90 in steps of
// 0.01 and returns the one maximizing F1 on the given labels/probabilities.
func TuneThreshold(labels []int, probs []float64) ThresholdReport {
	best := ThresholdReport{Threshold: 0.5}
	for i := 20; i <= 90; i++ {
		t := float64(i) / 100
		var tp, fp, fn, tn int
		for j, y := range labels {
			pred := 0
			if probs[j] >= t {
				pred = 1
			}
			switch {
			case y == 1 && pred == 1:
				tp++
			case y == 0 && pred == 1:
				fp++
			case y == 1 && pred == 0:
				fn++
			default:
				tn++
			}
		}
		precision, recall, f1 := prf(tp, fp, fn)
		acc := 0.0
		if len(labels) > 0 {
			acc = float64(tp+tn) / float64(len(labels))
		}
		if f1 > best.F1 {
			best = ThresholdReport{Threshold: t, F1: f1, Precision: precision, Recall: recall, Accuracy: acc}
		}
	}
	return best
}

func prf(tp, fp, fn int) (precision, recall, f1 float64) {
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

// Confusion computes the confusion matrix of thresholded predictions.
func Confusion(labels []int, probs []float64, threshold float64) ConfusionMatrix {
	var cm ConfusionMatrix
	for i, y := range labels {
		pred := probs[i] >= threshold
		switch {
		case y == 1 && pred:
			cm.TP++
		case y == 0 && pred:
			cm.FP++
		case y == 1 && !pred:
			cm.FN++
		default:
			cm.TN++
		}
	}
	return cm
}

// TrainAndEvaluate runs the full training flow: holdout split, fit,
// threshold sweep, evaluation, and persistence of model plus metrics.
// The metrics report lands next to the model as <name>_metrics.json.
func TrainAndEvaluate(samples []Sample, modelPath string, opts TrainOptions) (*Model, *Metrics, error) {
	if len(samples) < 10 {
		return nil, nil, fmt.Errorf("need at least 10 samples, got %d", len(samples))
	}
	opts = opts.withDefaults()

	trainSet, holdout := SplitHoldout(samples, 0.2, opts.Seed)
	model := Train(trainSet, opts)

	labels := make([]int, len(holdout))
	probs := make([]float64, len(holdout))
	for i, s := range holdout {
		labels[i] = s.Label
		probs[i] = model.PredictProba(s.Text)
	}

	best := TuneThreshold(labels, probs)
	model.Threshold = best.Threshold

	metrics := &Metrics{
		BestThreshold:  best,
		Confusion:      Confusion(labels, probs, model.Threshold),
		TrainSamples:   len(trainSet),
		HoldoutSamples: len(holdout),
		VocabularySize: len(model.Vocab),
	}

	if err := model.Save(modelPath); err != nil {
		return nil, nil, err
	}
	metricsPath := metricsPathFor(modelPath)
	data, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode metrics: %w", err)
	}
	if err := os.WriteFile(metricsPath, data, 0o644); err != nil {
		return nil, nil, fmt.Errorf("write metrics: %w", err)
	}

	log.Printf("[INFO] Model trained: %d features, threshold %.2f, F1 %.3f (%s)",
		len(model.Vocab), model.Threshold, best.F1, modelPath)
	return model, metrics, nil
}

func metricsPathFor(modelPath string) string {
	ext := filepath.Ext(modelPath)
	return modelPath[:len(modelPath)-len(ext)] + "_metrics.json"
}
