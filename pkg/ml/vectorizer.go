// Package ml implements the local classification tier: a word+char TF-IDF
// vectorizer and a from-scratch balanced logistic regression model, plus the
// trainer that fits them and an optional embedding-based template matcher.
package ml

import (
	"math"
	"regexp"
	"strings"
)

// wordRe matches Unicode word tokens so Devanagari, Tamil and Bengali text
// tokenizes the same way Latin text does. \p{M} keeps combining marks
// (matras) attached to their consonants; without it Indic words shred into
// single letters.
var wordRe = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)

var spaceRe = regexp.MustCompile(`\s+`)

const (
	charNgramMin = 3
	charNgramMax = 5
)

// Vectorizer maps text onto a sparse L2-normalized TF-IDF vector over a
// fitted vocabulary. It is immutable after fitting and safe for concurrent
// use.
type Vectorizer struct {
	Vocab map[string]int  // feature -> column index, frequency-descending
	IDF   map[int]float64 // column index -> inverse document frequency
}

// wordNgrams returns lowercase unigrams plus adjacent-word bigrams.
func wordNgrams(text string) []string {
	tokens := wordRe.FindAllString(strings.ToLower(text), -1)
	grams := make([]string, 0, 2*len(tokens))
	grams = append(grams, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		grams = append(grams, tokens[i]+" "+tokens[i+1])
	}
	return grams
}

// charNgrams returns rune n-grams of length 3 to 5 over the
// whitespace-collapsed lowercase text. Rune-based so multibyte scripts
// produce sensible grams.
func charNgrams(text string) []string {
	s := []rune(strings.TrimSpace(spaceRe.ReplaceAllString(strings.ToLower(text), " ")))
	var grams []string
	for n := charNgramMin; n <= charNgramMax; n++ {
		for i := 0; i+n <= len(s); i++ {
			grams = append(grams, string(s[i:i+n]))
		}
	}
	return grams
}

// features concatenates the word-level and character-level feature streams.
// Token-level features catch known scam phrasing; char n-grams catch
// obfuscated variants like "urg3nt" and code-mixed transliterations.
func features(text string) []string {
	return append(wordNgrams(text), charNgrams(text)...)
}

// Vectorize maps text onto the fitted feature space. Features outside the
// vocabulary are dropped; a text sharing nothing with the vocabulary yields
// an empty vector, which downstream scoring treats as "no signal".
func (v *Vectorizer) Vectorize(text string) map[int]float64 {
	if len(v.Vocab) == 0 {
		return map[int]float64{}
	}

	counts := make(map[int]int)
	total := 0
	for _, f := range features(text) {
		idx, ok := v.Vocab[f]
		if !ok {
			continue
		}
		counts[idx]++
		total++
	}
	if total == 0 {
		return map[int]float64{}
	}

	vec := make(map[int]float64, len(counts))
	var sumSq float64
	for idx, c := range counts {
		w := (float64(c) / float64(total)) * v.IDF[idx]
		vec[idx] = w
		sumSq += w * w
	}

	if norm := math.Sqrt(sumSq); norm > 0 {
		for idx := range vec {
			vec[idx] /= norm
		}
	}
	return vec
}
