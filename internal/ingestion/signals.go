package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Benny93/sentinel-go/internal/risk"
	"github.com/Benny93/sentinel-go/internal/topology"
)

// DefaultRelevance is assigned to signals that carry no relevance score.
const DefaultRelevance = risk.DefaultRelevance

// publishedLayouts are tried in order when parsing a signal timestamp.
var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// SignalBatch is the outcome of reading signals.
type SignalBatch struct {
	Signals []risk.Signal
	// MissingRelevance indexes Signals whose relevance was absent and set to
	// DefaultRelevance.
	MissingRelevance []int
	Dropped          []error
}

type signalItem struct {
	Title     *string  `json:"title"`
	Summary   *string  `json:"summary"`
	Published string   `json:"published"`
	Source    string   `json:"source"`
	URL       string   `json:"url"`
	Relevance *float64 `json:"relevance_score"`
}

// LoadSignals reads a JSON array of signals from path.
func LoadSignals(path string) (SignalBatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return SignalBatch{}, fmt.Errorf("open signals: %w", err)
	}
	defer f.Close()

	batch, err := ParseSignals(f)
	if err != nil {
		return SignalBatch{}, fmt.Errorf("signals %s: %w", path, err)
	}
	return batch, nil
}

// ParseSignals decodes a JSON array of signal objects. Items are decoded one
// by one so a malformed item is dropped without losing the rest.
func ParseSignals(r io.Reader) (SignalBatch, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return SignalBatch{}, nil
		}
		return SignalBatch{}, fmt.Errorf("decoding signal array: %w", err)
	}

	var batch SignalBatch
	for i, msg := range raw {
		var item signalItem
		if err := json.Unmarshal(msg, &item); err != nil {
			batch.Dropped = append(batch.Dropped, fmt.Errorf("%w: item %d: %v", topology.ErrInvalidRecord, i, err))
			continue
		}

		sig := risk.Signal{
			Title:     deref(item.Title),
			Summary:   deref(item.Summary),
			Published: parsePublished(item.Published),
			Source:    item.Source,
			URL:       item.URL,
		}
		if sig.Title == "" && sig.Summary == "" {
			batch.Dropped = append(batch.Dropped, fmt.Errorf("%w: item %d: no title or summary", topology.ErrInvalidRecord, i))
			continue
		}

		if item.Relevance != nil {
			sig.RelevanceScore = *item.Relevance
		} else {
			sig.RelevanceScore = DefaultRelevance
			batch.MissingRelevance = append(batch.MissingRelevance, len(batch.Signals))
		}
		batch.Signals = append(batch.Signals, sig)
	}
	return batch, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// parsePublished returns the zero time when s matches no known layout.
func parsePublished(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
