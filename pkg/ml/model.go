package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// ArtifactVersion identifies the model JSON layout. Decoders ignore unknown
// fields, so newer artifacts with extra metadata still load here.
const ArtifactVersion = 1

// Model is a fitted TF-IDF + logistic regression phishing classifier.
// All fields are read-only after training or loading, so one Model can serve
// concurrent predictions without locking.
type Model struct {
	Vectorizer
	Weights   map[int]float64
	Bias      float64
	Threshold float64
	TrainedAt time.Time
}

// modelArtifact is the on-disk JSON layout. Sparse maps are keyed by the
// string form of the column index, keeping the file diffable and loadable
// from other runtimes.
type modelArtifact struct {
	Version   int                `json:"version"`
	ModelType string             `json:"model"`
	TrainedAt string             `json:"trained_at,omitempty"`
	Vocab     map[string]int     `json:"vocab"`
	IDF       map[string]float64 `json:"idf"`
	Weights   map[string]float64 `json:"weights"`
	Bias      float64            `json:"bias"`
	Threshold float64            `json:"threshold"`
}

// NewModel returns an unfitted model. Predictions on it are neutral until
// Train or Load populate it.
func NewModel() *Model {
	return &Model{
		Vectorizer: Vectorizer{
			Vocab: map[string]int{},
			IDF:   map[int]float64{},
		},
		Weights:   map[int]float64{},
		Threshold: 0.5,
	}
}

// Fitted reports whether the model carries a trained vocabulary.
func (m *Model) Fitted() bool {
	return m != nil && len(m.Vocab) > 0
}

// PredictProba returns the phishing probability for text in [0,1].
// An unfitted model scores everything at the sigmoid of its bias (0.5 for a
// zero bias) only in theory; callers gate on Fitted and substitute a neutral
// zero-risk result instead, so a missing artifact never inflates scores.
func (m *Model) PredictProba(text string) float64 {
	x := m.Vectorize(text)
	return sigmoid(m.Bias + dot(m.Weights, x))
}

// dot accumulates over sorted indices. Map iteration order varies between
// calls, and float addition is not associative, so summing in map order
// would make identical inputs score slightly differently.
func dot(weights, x map[int]float64) float64 {
	idxs := make([]int, 0, len(x))
	for j := range x {
		idxs = append(idxs, j)
	}
	sort.Ints(idxs)

	var z float64
	for _, j := range idxs {
		z += weights[j] * x[j]
	}
	return z
}

// Predict applies the tuned decision threshold.
func (m *Model) Predict(text string) bool {
	return m.PredictProba(text) >= m.Threshold
}

// sigmoid clamps z to [-30,30] before exponentiating so extreme dot products
// cannot overflow into Inf/NaN.
func sigmoid(z float64) float64 {
	if z > 30 {
		z = 30
	} else if z < -30 {
		z = -30
	}
	return 1.0 / (1.0 + math.Exp(-z))
}

// Save writes the model artifact as JSON, creating parent directories.
func (m *Model) Save(path string) error {
	art := modelArtifact{
		Version:   ArtifactVersion,
		ModelType: "tfidf-logreg",
		TrainedAt: m.TrainedAt.UTC().Format(time.RFC3339),
		Vocab:     m.Vocab,
		IDF:       make(map[string]float64, len(m.IDF)),
		Weights:   make(map[string]float64, len(m.Weights)),
		Bias:      m.Bias,
		Threshold: m.Threshold,
	}
	for idx, v := range m.IDF {
		art.IDF[strconv.Itoa(idx)] = v
	}
	for idx, w := range m.Weights {
		art.Weights[strconv.Itoa(idx)] = w
	}

	data, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create model dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	return nil
}

// Load reads a model artifact from disk.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return Decode(data)
}

// Decode parses a model artifact. Unknown JSON fields are ignored and a
// missing threshold defaults to 0.5, so older and newer artifacts both load.
func Decode(data []byte) (*Model, error) {
	var art modelArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}

	m := NewModel()
	if art.Vocab != nil {
		m.Vocab = art.Vocab
	}
	for k, v := range art.IDF {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("decode model: bad idf index %q", k)
		}
		m.IDF[idx] = v
	}
	for k, w := range art.Weights {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("decode model: bad weight index %q", k)
		}
		m.Weights[idx] = w
	}
	m.Bias = art.Bias
	if art.Threshold > 0 {
		m.Threshold = art.Threshold
	}
	if art.TrainedAt != "" {
		if t, err := time.Parse(time.RFC3339, art.TrainedAt); err == nil {
			m.TrainedAt = t
		}
	}
	return m, nil
}
