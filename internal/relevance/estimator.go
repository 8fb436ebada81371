package relevance

import (
	"math"
	"strings"

	"github.com/Benny93/sentinel-go/internal/risk"
	"github.com/Benny93/sentinel-go/internal/topology"
)

// Estimator scores signal text against a roster and the risk lexicon.
type Estimator struct {
	model *Model
	docs  []Vector
}

// NewEstimator builds an estimator whose corpus holds one document per
// supplier and one per risk category. A nil lexicon uses risk.DefaultLexicon.
func NewEstimator(sources []topology.SourceRecord, lex *risk.Lexicon) *Estimator {
	if lex == nil {
		lex = risk.DefaultLexicon()
	}
	corpus := Corpus(sources, lex)

	m := NewModel()
	m.Fit(corpus)

	e := &Estimator{model: m, docs: make([]Vector, 0, len(corpus))}
	for _, doc := range corpus {
		if v := m.Embed(doc); len(v) > 0 {
			e.docs = append(e.docs, v)
		}
	}
	return e
}

// Corpus returns the reference documents for sources and lex.
func Corpus(sources []topology.SourceRecord, lex *risk.Lexicon) []string {
	docs := make([]string, 0, len(sources)+len(lex.Categories))
	for _, s := range sources {
		country := strings.ToLower(s.Country)
		docs = append(docs, strings.Join([]string{s.Name, s.Country, lex.Adjective(country), s.Material}, " "))
	}
	for _, rule := range lex.Categories {
		docs = append(docs, strings.Join(rule.Keywords, " "))
	}
	return docs
}

// Similarity returns the best cosine similarity between text and any
// corpus document.
func (e *Estimator) Similarity(text string) float64 {
	q := e.model.Embed(text)
	if len(q) == 0 {
		return 0
	}
	best := 0.0
	for _, d := range e.docs {
		best = max(best, Cosine(q, d))
	}
	return math.Min(best, 1)
}

// Estimate maps Similarity into [MinScore, MaxScore], rounded to two decimals.
func (e *Estimator) Estimate(text string) float64 {
	score := MinScore + (MaxScore-MinScore)*e.Similarity(text)
	return math.Round(score*100) / 100
}

// Apply overwrites the relevance of the signals at the given indexes.
func (e *Estimator) Apply(signals []risk.Signal, indexes []int) {
	for _, i := range indexes {
		if i < 0 || i >= len(signals) {
			continue
		}
		signals[i].RelevanceScore = e.Estimate(signals[i].Title + " " + signals[i].Summary)
	}
}
