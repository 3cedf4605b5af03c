package ml

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestTrainSeparatesClasses(t *testing.T) {
	m := trainTinyModel(t)

	phishing := m.PredictProba("urgent verify your otp now or account blocked")
	benign := m.PredictProba("the cricket match schedule and player list for saturday")

	if phishing <= benign {
		t.Errorf("phishing sample scored %.4f, benign %.4f; want phishing higher", phishing, benign)
	}
	if phishing < 0.6 {
		t.Errorf("seen phishing sample scored only %.4f", phishing)
	}
	if benign > 0.4 {
		t.Errorf("seen benign sample scored %.4f", benign)
	}
}

func TestTrainDeterministic(t *testing.T) {
	a := trainTinyModel(t)
	b := trainTinyModel(t)

	texts := []string{
		"urgent verify your otp now",
		"class project deadline friday",
		"bank account kyc pending verify",
	}
	for _, text := range texts {
		pa, pb := a.PredictProba(text), b.PredictProba(text)
		if math.Abs(pa-pb) > 1e-12 {
			t.Errorf("same corpus and seed gave different scores for %q: %.15f vs %.15f", text, pa, pb)
		}
	}
}

func TestTrainEmptyCorpus(t *testing.T) {
	m := Train(nil, TrainOptions{})
	if m.Fitted() {
		t.Error("training on an empty corpus should yield an unfitted model")
	}
}

func TestTuneThreshold(t *testing.T) {
	labels := []int{1, 1, 0, 0}
	probs := []float64{0.9, 0.8, 0.1, 0.2}

	best := TuneThreshold(labels, probs)
	if best.F1 != 1.0 {
		t.Errorf("perfectly separable data: F1 = %f, want 1.0", best.F1)
	}
	if best.Threshold <= 0.20 || best.Threshold > 0.80 {
		t.Errorf("threshold %f outside the separating range (0.20, 0.80]", best.Threshold)
	}
	if best.Precision != 1.0 || best.Recall != 1.0 {
		t.Errorf("precision=%f recall=%f, want 1.0/1.0", best.Precision, best.Recall)
	}
}

func TestConfusion(t *testing.T) {
	labels := []int{1, 1, 0, 0, 1}
	probs := []float64{0.9, 0.3, 0.2, 0.7, 0.8}

	cm := Confusion(labels, probs, 0.5)
	if cm.TP != 2 || cm.FN != 1 || cm.TN != 1 || cm.FP != 1 {
		t.Errorf("got tp=%d fp=%d fn=%d tn=%d, want tp=2 fp=1 fn=1 tn=1", cm.TP, cm.FP, cm.FN, cm.TN)
	}
}

func TestSplitHoldoutDeterministic(t *testing.T) {
	samples := make([]Sample, 20)
	for i := range samples {
		samples[i] = Sample{Text: string(rune('a' + i)), Label: i % 2}
	}

	trainA, holdA := SplitHoldout(samples, 0.2, 42)
	trainB, holdB := SplitHoldout(samples, 0.2, 42)

	if len(trainA) != 16 || len(holdA) != 4 {
		t.Fatalf("split sizes = %d/%d, want 16/4", len(trainA), len(holdA))
	}
	for i := range holdA {
		if holdA[i] != holdB[i] {
			t.Errorf("holdout %d differs between runs with same seed", i)
		}
	}
	for i := range trainA {
		if trainA[i] != trainB[i] {
			t.Errorf("train %d differs between runs with same seed", i)
		}
	}
}

func TestTrainAndEvaluateWritesArtifacts(t *testing.T) {
	samples := []Sample{
		{"urgent verify your otp now or account blocked", 1},
		{"share your otp and pin to verify account immediately", 1},
		{"your bank account suspended click here verify now", 1},
		{"kyc pending verify account or service stops today", 1},
		{"urgent your card blocked share cvv to reactivate", 1},
		{"final warning verify otp immediately account freeze", 1},
		{"congratulations you won a lottery prize claim with fee", 1},
		{"the cricket match schedule and player list for saturday", 0},
		{"class project deadline is friday upload to the portal", 0},
		{"meeting agenda and minutes attached for review", 0},
		{"invoice and receipt for last month are attached", 0},
		{"the weather is pleasant for the festival this weekend", 0},
		{"semester admission forms are available at the office", 0},
		{"tournament fixture released check the style of play", 0},
	}

	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.json")
	model, metrics, err := TrainAndEvaluate(samples, modelPath, TrainOptions{})
	if err != nil {
		t.Fatalf("TrainAndEvaluate() error = %v", err)
	}

	if !model.Fitted() {
		t.Error("trained model should be fitted")
	}
	if model.Threshold < 0.20 || model.Threshold > 0.90 {
		t.Errorf("tuned threshold %.2f outside the sweep range", model.Threshold)
	}
	if metrics.VocabularySize != len(model.Vocab) {
		t.Errorf("metrics vocabulary size %d != model %d", metrics.VocabularySize, len(model.Vocab))
	}

	if _, err := os.Stat(modelPath); err != nil {
		t.Errorf("model artifact missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "model_metrics.json")); err != nil {
		t.Errorf("metrics report missing: %v", err)
	}
}

func TestTrainAndEvaluateRejectsTinyCorpus(t *testing.T) {
	_, _, err := TrainAndEvaluate([]Sample{{"x", 1}}, filepath.Join(t.TempDir(), "m.json"), TrainOptions{})
	if err == nil {
		t.Error("expected error for a corpus too small to split")
	}
}

func TestDedupe(t *testing.T) {
	in := []Sample{
		{"hello there friend", 0},
		{"verify your otp", 1},
		{"hello there friend", 1}, // conflict: risky label wins
		{"verify your otp", 1},
	}
	out := Dedupe(in)
	if len(out) != 2 {
		t.Fatalf("got %d samples, want 2", len(out))
	}
	if out[0].Text != "hello there friend" || out[0].Label != 1 {
		t.Errorf("conflicting labels should keep 1, got %+v", out[0])
	}
}
