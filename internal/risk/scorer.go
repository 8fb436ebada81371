// Package risk matches external signals against supply graph nodes and
// scores the resulting risks.
package risk

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/Benny93/sentinel-go/internal/graph"
)

// Score weights.
const (
	materialBonus       = 0.25
	relevanceWeight     = 0.3
	countryEntityBonus  = 0.15
	materialEntityBonus = 0.20

	// DefaultRelevance applies to signals that carry no relevance score.
	DefaultRelevance = 0.5
)

// Signal is one external news or feed item.
type Signal struct {
	Title          string    `json:"title"`
	Summary        string    `json:"summary"`
	Published      time.Time `json:"published"`
	Source         string    `json:"source"`
	URL            string    `json:"url"`
	RelevanceScore float64   `json:"relevance_score"`
}

// Text returns the lower-cased title and summary joined by a space.
func (s Signal) Text() string {
	return strings.ToLower(s.Title + " " + s.Summary)
}

// RiskRecord is one (node, signal) match with its score.
type RiskRecord struct {
	NodeID        string     `json:"node_id"`
	Name          string     `json:"name"`
	Country       string     `json:"country"`
	Material      string     `json:"material"`
	RiskScore     float64    `json:"risk_score"`
	RiskTypes     []Category `json:"risk_types"`
	SignalTitle   string     `json:"signal_title"`
	SignalSummary string     `json:"signal_summary"`
	SignalURL     string     `json:"signal_url"`
}

// Entities holds the countries and materials explicitly named in a text.
type Entities struct {
	Countries []string `json:"countries"`
	Materials []string `json:"materials"`
}

// Scorer evaluates signals against a graph using a Lexicon.
type Scorer struct {
	lex *Lexicon
}

// NewScorer returns a Scorer for lex, or for DefaultLexicon when nil.
func NewScorer(lex *Lexicon) *Scorer {
	if lex == nil {
		lex = DefaultLexicon()
	}
	if lex.keywordRe == nil {
		lex.compile()
	}
	return &Scorer{lex: lex}
}

// Lexicon returns the scorer's rule table.
func (s *Scorer) Lexicon() *Lexicon {
	return s.lex
}

// ExtractCategories classifies text into risk categories by whole-word keyword
// match. Text with no match is tagged CategoryGeneral.
func (s *Scorer) ExtractCategories(text string) []Category {
	var found []Category
	for _, rule := range s.lex.Categories {
		for _, re := range s.lex.keywordRe[rule.Category] {
			if re.MatchString(text) {
				found = append(found, rule.Category)
				break
			}
		}
	}
	if len(found) == 0 {
		return []Category{CategoryGeneral}
	}
	return found
}

// ExtractEntities returns the countries and materials explicitly named in text.
func (s *Scorer) ExtractEntities(text string) Entities {
	lower := strings.ToLower(text)
	var e Entities
	for _, p := range s.lex.CountryEntities {
		if p.Pattern.MatchString(lower) {
			e.Countries = append(e.Countries, p.Name)
		}
	}
	for _, p := range s.lex.MaterialEntities {
		if p.Pattern.MatchString(lower) {
			e.Materials = append(e.Materials, p.Name)
		}
	}
	return e
}

// Score computes the bounded risk a signal poses to a source node.
func (s *Scorer) Score(node *graph.Node, sig Signal) float64 {
	text := sig.Text()
	country := strings.TrimSpace(node.Country)

	score := s.lex.Baseline(country)
	if s.lex.Sensitive(node.Material, s.ExtractCategories(text)) {
		score += materialBonus
	}
	score += clamp01(sig.RelevanceScore) * relevanceWeight

	ents := s.ExtractEntities(text)
	if contains(ents.Countries, country) {
		score += countryEntityBonus
	}
	if contains(ents.Materials, node.Material) {
		score += materialEntityBonus
	}
	return clamp01(round2(score))
}

// Affects reports whether a signal text mentions a node by country,
// material or name. The check is a loose substring match.
func (s *Scorer) Affects(node *graph.Node, text string) bool {
	country := strings.ToLower(strings.TrimSpace(node.Country))
	if country != "" && (strings.Contains(text, country) || strings.Contains(text, s.lex.Adjective(country))) {
		return true
	}

	material := strings.ToLower(strings.TrimSpace(node.Material))
	if material != "" {
		variants := []string{material, strings.ReplaceAll(material, " ", "")}
		if fields := strings.Fields(material); len(fields) > 0 {
			variants = append(variants, fields[0])
		}
		for _, v := range variants {
			if strings.Contains(text, v) {
				return true
			}
		}
	}

	name := strings.ToLower(strings.TrimSpace(node.Name))
	if name == "" {
		return false
	}
	if strings.Contains(text, name) {
		return true
	}
	for _, tok := range strings.Fields(name) {
		if significant(tok) && strings.Contains(text, tok) {
			return true
		}
	}
	return false
}

// FindAffectedNodes returns a RiskRecord for every source node the signal
// affects, in graph order. No match yields an empty result.
func (s *Scorer) FindAffectedNodes(g *graph.SupplyGraph, sig Signal) []RiskRecord {
	text := sig.Text()
	categories := s.ExtractCategories(text)

	var out []RiskRecord
	for _, n := range g.NodesByKind(graph.KindSource) {
		if !s.Affects(n, text) {
			continue
		}
		out = append(out, RiskRecord{
			NodeID:        n.ID,
			Name:          n.Name,
			Country:       n.Country,
			Material:      n.Material,
			RiskScore:     s.Score(n, sig),
			RiskTypes:     append([]Category(nil), categories...),
			SignalTitle:   sig.Title,
			SignalSummary: sig.Summary,
			SignalURL:     sig.URL,
		})
	}
	return out
}

// Assessment is the outcome of scoring a batch of signals.
type Assessment struct {
	Risks           []RiskRecord `json:"risks_detected"`
	MaxSeverity     float64      `json:"max_severity"`
	TotalRisks      int          `json:"total_risks_found"`
	SignalsAnalyzed int          `json:"signals_analyzed"`
	AnalyzedAt      time.Time    `json:"analysis_timestamp"`
}

// Assess scores every signal against g. Risks are ordered by score
// descending; equal scores keep signal order then graph order.
func (s *Scorer) Assess(g *graph.SupplyGraph, signals []Signal, now time.Time) Assessment {
	a := Assessment{SignalsAnalyzed: len(signals), AnalyzedAt: now}
	for _, sig := range signals {
		for _, r := range s.FindAffectedNodes(g, sig) {
			a.Risks = append(a.Risks, r)
			if r.RiskScore > a.MaxSeverity {
				a.MaxSeverity = r.RiskScore
			}
		}
	}
	sort.SliceStable(a.Risks, func(i, j int) bool {
		return a.Risks[i].RiskScore > a.Risks[j].RiskScore
	})
	a.TotalRisks = len(a.Risks)
	a.MaxSeverity = round2(a.MaxSeverity)
	return a
}

// Top returns at most n of the most severe risks.
func (a Assessment) Top(n int) []RiskRecord {
	if n < 0 || n >= len(a.Risks) {
		return a.Risks
	}
	return a.Risks[:n]
}

// significant reports whether a name token is long enough to match on.
func significant(tok string) bool {
	n := 0
	for _, r := range tok {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n >= 2
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
