package ml

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCorpus(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	return path
}

func TestReadCSV(t *testing.T) {
	path := writeCorpus(t, `text,label
"urgent verify your otp now",1
"the cricket match is on saturday",0
"short",1
"   spaced    out   benign   message   ",0
`)

	samples, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	// "short" is under the minimum sample length and dropped
	if len(samples) != 3 {
		t.Fatalf("got %d samples, want 3: %+v", len(samples), samples)
	}
	if samples[0].Label != 1 || samples[1].Label != 0 {
		t.Errorf("labels wrong: %+v", samples)
	}
	if samples[2].Text != "spaced out benign message" {
		t.Errorf("whitespace not collapsed: %q", samples[2].Text)
	}
}

func TestReadCSVColumnOrder(t *testing.T) {
	// Column order must not matter, only the header names
	path := writeCorpus(t, `label,text
1,"verify account immediately please"
`)
	samples, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if len(samples) != 1 || samples[0].Label != 1 {
		t.Fatalf("got %+v", samples)
	}
}

func TestReadCSVErrors(t *testing.T) {
	if _, err := ReadCSV(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("missing file should error")
	}

	path := writeCorpus(t, "message,category\nhello,1\n")
	if _, err := ReadCSV(path); err == nil {
		t.Error("missing text/label columns should error")
	}

	path = writeCorpus(t, "text,label\n\"some long enough text\",7\n")
	if _, err := ReadCSV(path); err == nil {
		t.Error("label outside {0,1} should error")
	}
}
