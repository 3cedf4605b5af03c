package ml

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var sampleSpaceRe = regexp.MustCompile(`\s+`)

// minSampleLength filters out fragments too short to carry any signal.
const minSampleLength = 8

// cleanSample collapses whitespace and drops fragments under the minimum
// length. Returns ok=false for rejects.
func cleanSample(text string) (string, bool) {
	clean := strings.TrimSpace(sampleSpaceRe.ReplaceAllString(text, " "))
	return clean, len([]rune(clean)) >= minSampleLength
}

// ReadCSV loads labeled samples from a CSV file with "text" and "label"
// columns. Label must be 0 or 1. Short or whitespace-only rows are skipped.
func ReadCSV(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read corpus header: %w", err)
	}
	textCol, labelCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "text":
			textCol = i
		case "label":
			labelCol = i
		}
	}
	if textCol < 0 || labelCol < 0 {
		return nil, fmt.Errorf("corpus %s: need text and label columns, got %v", path, header)
	}

	var samples []Sample
	line := 1
	for {
		row, err := r.Read()
		if err != nil {
			break
		}
		line++
		if len(row) <= textCol || len(row) <= labelCol {
			continue
		}
		label, err := strconv.Atoi(strings.TrimSpace(row[labelCol]))
		if err != nil || (label != 0 && label != 1) {
			return nil, fmt.Errorf("corpus %s line %d: invalid label %q", path, line, row[labelCol])
		}
		if text, ok := cleanSample(row[textCol]); ok {
			samples = append(samples, Sample{Text: text, Label: label})
		}
	}
	return samples, nil
}

// CorpusStore reads labeled samples from a Postgres table. Teams that
// curate training data centrally point `shield train --dsn` at it instead
// of shipping CSVs around.
type CorpusStore struct {
	pool *pgxpool.Pool
}

// NewCorpusStore connects to Postgres using the given DSN.
func NewCorpusStore(ctx context.Context, dsn string) (*CorpusStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect corpus store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping corpus store: %w", err)
	}
	return &CorpusStore{pool: pool}, nil
}

// LoadSamples reads every labeled sample from the training_samples table.
func (s *CorpusStore) LoadSamples(ctx context.Context) ([]Sample, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT text, label FROM training_samples WHERE label IN (0, 1)`)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var text string
		var label int
		if err := rows.Scan(&text, &label); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		if clean, ok := cleanSample(text); ok {
			samples = append(samples, Sample{Text: clean, Label: label})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}
	return samples, nil
}

// Close releases the connection pool.
func (s *CorpusStore) Close() {
	s.pool.Close()
}

// Dedupe merges duplicate texts, keeping the risky label when the same text
// appears with conflicting labels. Order of first appearance is preserved.
func Dedupe(samples []Sample) []Sample {
	labelFor := make(map[string]int, len(samples))
	order := make([]string, 0, len(samples))
	for _, s := range samples {
		prev, seen := labelFor[s.Text]
		if !seen {
			order = append(order, s.Text)
			labelFor[s.Text] = s.Label
		} else if s.Label > prev {
			labelFor[s.Text] = s.Label
		}
	}
	out := make([]Sample, 0, len(order))
	for _, t := range order {
		out = append(out, Sample{Text: t, Label: labelFor[t]})
	}
	return out
}
