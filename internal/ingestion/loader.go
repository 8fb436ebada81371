package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/Benny93/sentinel-go/internal/logging"
	"github.com/Benny93/sentinel-go/internal/metrics"
	"github.com/Benny93/sentinel-go/internal/pipeline"
	"github.com/Benny93/sentinel-go/internal/relevance"
)

// Signal source labels reported in the ingestion summary.
const (
	SourceFile     = "file"
	SourceNewsData = "newsdata"
)

// FileLoader gathers cycle inputs from a roster file, an optional signals
// file and an optional news client. Files are re-read on every Load.
type FileLoader struct {
	RosterPath  string
	SignalsPath string

	// News is queried when it has an API key.
	News *NewsClient

	// DefaultRelevance is given to file signals without a relevance score.
	// Zero means the package DefaultRelevance.
	DefaultRelevance float64

	// EstimateRelevance replaces the default relevance of file signals that
	// had none with a TF-IDF estimate against the roster.
	EstimateRelevance bool

	Logger  *slog.Logger
	Metrics *metrics.Registry
}

// Load implements pipeline.Loader. A missing roster or signals file is
// logged and treated as empty; any other read failure is returned.
func (l *FileLoader) Load(ctx context.Context) (pipeline.CycleInput, error) {
	log := logging.OrDefault(l.Logger)
	var in pipeline.CycleInput

	roster, err := l.loadRoster(log)
	if err != nil {
		return in, err
	}
	in.Sources = roster.Sources
	in.Ingestion.SuppliersLoaded = len(roster.Sources)
	in.Ingestion.SuppliersDropped = len(roster.Dropped)
	for _, d := range roster.Dropped {
		log.Warn("dropped roster row", "error", d)
	}
	l.Metrics.RecordInvalidRecords("roster_row", len(roster.Dropped))
	log.Info("roster loaded", "path", l.RosterPath, "suppliers", len(roster.Sources), "dropped", len(roster.Dropped))

	if l.SignalsPath != "" {
		batch, err := l.loadSignals(log)
		if err != nil {
			return in, err
		}
		for _, d := range batch.Dropped {
			log.Warn("dropped signal", "error", d)
		}
		l.Metrics.RecordInvalidRecords("signal", len(batch.Dropped))

		if l.DefaultRelevance > 0 {
			for _, i := range batch.MissingRelevance {
				batch.Signals[i].RelevanceScore = l.DefaultRelevance
			}
		}
		if l.EstimateRelevance && len(batch.MissingRelevance) > 0 {
			relevance.NewEstimator(in.Sources, nil).Apply(batch.Signals, batch.MissingRelevance)
			log.Debug("relevance estimated", "signals", len(batch.MissingRelevance))
		}

		in.Signals = append(in.Signals, batch.Signals...)
		in.Ingestion.SignalsDropped += len(batch.Dropped)
		in.Ingestion.SignalSources = append(in.Ingestion.SignalSources, SourceFile)
		log.Info("signals loaded", "path", l.SignalsPath, "signals", len(batch.Signals), "dropped", len(batch.Dropped))
	}

	if err := ctx.Err(); err != nil {
		return in, err
	}

	if l.News.Enabled() {
		news := l.News.Latest(ctx)
		in.Signals = append(in.Signals, news...)
		in.Ingestion.SignalSources = append(in.Ingestion.SignalSources, SourceNewsData)
	}

	in.Ingestion.SignalsLoaded = len(in.Signals)
	return in, nil
}

func (l *FileLoader) loadRoster(log *slog.Logger) (RosterBatch, error) {
	if l.RosterPath == "" {
		log.Error("no roster configured")
		return RosterBatch{}, nil
	}
	batch, err := LoadRoster(l.RosterPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Error("roster file not found", "path", l.RosterPath)
		return RosterBatch{}, nil
	}
	if err != nil {
		return RosterBatch{}, fmt.Errorf("load roster: %w", err)
	}
	return batch, nil
}

func (l *FileLoader) loadSignals(log *slog.Logger) (SignalBatch, error) {
	batch, err := LoadSignals(l.SignalsPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Error("signals file not found", "path", l.SignalsPath)
		return SignalBatch{}, nil
	}
	if err != nil {
		return SignalBatch{}, fmt.Errorf("load signals: %w", err)
	}
	return batch, nil
}
