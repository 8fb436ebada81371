package risk

import (
	"regexp"
	"strings"
)

// Category tags a signal with a kind of supply risk.
type Category string

const (
	CategoryGeopolitical Category = "geopolitical"
	CategoryDisaster     Category = "disaster"
	CategoryStrike       Category = "strike"
	CategoryOutage       Category = "outage"
	CategoryShortage     Category = "shortage"

	// CategoryGeneral is assigned when no keyword matches.
	CategoryGeneral Category = "general"
)

// CategoryRule lists the keywords that put text into a category.
type CategoryRule struct {
	Category Category
	Keywords []string
}

// EntityPattern detects an explicit mention of a country or material.
type EntityPattern struct {
	Name    string
	Pattern *regexp.Regexp
}

// Lexicon is the rule table the scorer runs on. It is plain data so it can be
// replaced or extended without touching the scoring code.
type Lexicon struct {
	// Categories are evaluated in order; the order is also the output order.
	Categories []CategoryRule

	// CountryBaseline is the baseline risk per country name.
	CountryBaseline map[string]float64

	// DefaultBaseline applies to countries missing from CountryBaseline.
	DefaultBaseline float64

	// MaterialSensitivity lists the categories each material reacts to.
	MaterialSensitivity map[string][]Category

	// CountryAdjectives maps a lower-case country name to its adjective.
	CountryAdjectives map[string]string

	CountryEntities  []EntityPattern
	MaterialEntities []EntityPattern

	keywordRe map[Category][]*regexp.Regexp
}

// DefaultLexicon returns the built-in rule table.
func DefaultLexicon() *Lexicon {
	l := &Lexicon{
		Categories: []CategoryRule{
			{CategoryGeopolitical, []string{"tariff", "sanction", "trade war", "embargo", "ban", "restriction"}},
			{CategoryDisaster, []string{"earthquake", "flood", "typhoon", "hurricane", "drought", "storm", "weather"}},
			{CategoryStrike, []string{"strike", "protest", "labor dispute", "shutdown", "walkout"}},
			{CategoryOutage, []string{"power outage", "blackout", "fire", "explosion", "cyberattack", "hack"}},
			{CategoryShortage, []string{"shortage", "supply constraint", "capacity reduction", "delay", "backlog"}},
		},
		CountryBaseline: map[string]float64{
			"China":   0.75,
			"Taiwan":  0.85,
			"Brazil":  0.45,
			"Sweden":  0.15,
			"Germany": 0.20,
		},
		DefaultBaseline: 0.3,
		MaterialSensitivity: map[string][]Category{
			"Semiconductors":     {CategoryOutage, CategoryGeopolitical, CategoryShortage, "cyberattack"},
			"Steel":              {"tariff", CategoryGeopolitical, CategoryStrike, CategoryShortage},
			"Paper pulp":         {CategoryStrike, CategoryDisaster},
			"Nuts & oils":        {CategoryDisaster, CategoryShortage},
			"Precision bearings": {CategoryOutage, CategoryShortage},
		},
		CountryAdjectives: map[string]string{
			"china":       "chinese",
			"taiwan":      "taiwanese",
			"brazil":      "brazilian",
			"sweden":      "swedish",
			"germany":     "german",
			"japan":       "japanese",
			"south korea": "korean",
			"vietnam":     "vietnamese",
			"india":       "indian",
		},
		CountryEntities: []EntityPattern{
			{"China", regexp.MustCompile(`\b(china|chinese)\b`)},
			{"Taiwan", regexp.MustCompile(`\btaiwan(ese)?\b`)},
			{"Brazil", regexp.MustCompile(`\b(brazil|brasil)\b`)},
			{"Sweden", regexp.MustCompile(`\b(sweden|swedish)\b`)},
			{"Germany", regexp.MustCompile(`\b(germany|german)\b`)},
		},
		MaterialEntities: []EntityPattern{
			{"Semiconductors", regexp.MustCompile(`\b(semiconductor|chip|semicon)`)},
			{"Steel", regexp.MustCompile(`\b(steel|iron)`)},
			{"Paper pulp", regexp.MustCompile(`\b(pulp|paper)`)},
			{"Nuts & oils", regexp.MustCompile(`\b(nuts|oils?)\b`)},
			{"Precision bearings", regexp.MustCompile(`\bbearings?\b`)},
		},
	}
	l.compile()
	return l
}

// compile builds whole-word, case-insensitive matchers for every keyword.
func (l *Lexicon) compile() {
	l.keywordRe = make(map[Category][]*regexp.Regexp, len(l.Categories))
	for _, rule := range l.Categories {
		for _, kw := range rule.Keywords {
			re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
			l.keywordRe[rule.Category] = append(l.keywordRe[rule.Category], re)
		}
	}
}

// Baseline returns the baseline risk for a country.
func (l *Lexicon) Baseline(country string) float64 {
	if v, ok := l.CountryBaseline[strings.TrimSpace(country)]; ok {
		return v
	}
	return l.DefaultBaseline
}

// Sensitive reports whether material reacts to any of the given categories.
func (l *Lexicon) Sensitive(material string, categories []Category) bool {
	sens, ok := l.MaterialSensitivity[material]
	if !ok {
		return false
	}
	for _, c := range categories {
		for _, s := range sens {
			if c == s {
				return true
			}
		}
	}
	return false
}

// Adjective returns the adjectival form of a lower-case country name.
// Countries missing from the table get an "ese" suffix.
func (l *Lexicon) Adjective(country string) string {
	if adj, ok := l.CountryAdjectives[country]; ok {
		return adj
	}
	return country + "ese"
}
