// Package relevance estimates how relevant a signal is to a supplier roster
// when the signal carries no relevance score of its own.
package relevance

import (
	"math"
	"strings"
	"sync"
)

// Estimates fall in [MinScore, MaxScore].
const (
	MinScore = 0.3
	MaxScore = 1.0
)

// Vector is a sparse, L2-normalised TF-IDF vector.
type Vector map[string]float64

// Model holds the IDF table learned from a corpus.
type Model struct {
	mu       sync.RWMutex
	idf      map[string]float64
	docCount int
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{idf: make(map[string]float64)}
}

// Fit computes IDF scores over docs, replacing any previous state.
// IDF is smoothed as log(1 + N/df) so terms present in every document keep a
// non-zero weight.
func (m *Model) Fit(docs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	docFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, term := range tokenize(doc) {
			if !seen[term] {
				docFreq[term]++
				seen[term] = true
			}
		}
	}

	m.docCount = len(docs)
	m.idf = make(map[string]float64, len(docFreq))
	for term, df := range docFreq {
		m.idf[term] = math.Log(1 + float64(m.docCount)/float64(df))
	}
}

// Embed returns the TF-IDF vector for doc. Terms unknown to the model are
// ignored.
func (m *Model) Embed(doc string) Vector {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tf := make(map[string]int)
	maxTF := 0
	for _, term := range tokenize(doc) {
		if _, known := m.idf[term]; !known {
			continue
		}
		tf[term]++
		maxTF = max(maxTF, tf[term])
	}

	v := make(Vector, len(tf))
	norm := 0.0
	for term, count := range tf {
		w := float64(count) / float64(maxTF) * m.idf[term]
		v[term] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	if norm == 0 || math.IsNaN(norm) {
		return Vector{}
	}
	for term := range v {
		v[term] /= norm
	}
	return v
}

// Cosine returns the cosine similarity of two normalised vectors.
func Cosine(a, b Vector) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	dot := 0.0
	for term, w := range a {
		dot += w * b[term]
	}
	return dot
}

// tokenize lower-cases text and splits it on non-alphanumerics, dropping
// one-character terms.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	terms := strings.FieldsFunc(text, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})

	filtered := terms[:0]
	for _, term := range terms {
		if len(term) >= 2 {
			filtered = append(filtered, term)
		}
	}
	return filtered
}
