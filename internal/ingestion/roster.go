// Package ingestion gathers cycle inputs: the supplier roster, signal files,
// live news and file-change notifications.
package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Benny93/sentinel-go/internal/topology"
)

// DefaultCountryBaseline replaces a missing or non-numeric risk_country_score.
const DefaultCountryBaseline = 0.3

// Roster column names.
const (
	colSupplierID = "supplier_id"
	colName       = "name"
	colCountry    = "country"
	colMaterial   = "material"
	colCapacity   = "capacity_tons_per_month"
	colBaseline   = "risk_country_score"
)

var requiredColumns = []string{colSupplierID, colName, colCountry, colMaterial, colCapacity}

// RosterBatch is the outcome of reading a roster.
type RosterBatch struct {
	Sources []topology.SourceRecord
	// Dropped holds one error per rejected row, each wrapping
	// topology.ErrInvalidRecord.
	Dropped []error
}

// LoadRoster reads the roster CSV at path.
func LoadRoster(path string) (RosterBatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return RosterBatch{}, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	batch, err := ParseRoster(f)
	if err != nil {
		return RosterBatch{}, fmt.Errorf("roster %s: %w", path, err)
	}
	return batch, nil
}

// ParseRoster reads a roster CSV. The header row selects columns by name, so
// column order is free and unknown columns are ignored. Bad rows are dropped
// and reported in the batch; only unreadable input or a header missing a
// required column fails the call.
func ParseRoster(r io.Reader) (RosterBatch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return RosterBatch{}, nil
	}
	if err != nil {
		return RosterBatch{}, fmt.Errorf("reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return RosterBatch{}, fmt.Errorf("missing column %q", col)
		}
	}

	var batch RosterBatch
	row := 1
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				batch.Dropped = append(batch.Dropped, fmt.Errorf("%w: row %d: %v", topology.ErrInvalidRecord, row, perr.Err))
				continue
			}
			return batch, fmt.Errorf("reading row %d: %w", row, err)
		}
		if isBlank(fields) {
			continue
		}

		rec, err := parseRosterRow(fields, index)
		if err != nil {
			batch.Dropped = append(batch.Dropped, fmt.Errorf("row %d: %w", row, err))
			continue
		}
		batch.Sources = append(batch.Sources, rec)
	}
	return batch, nil
}

func parseRosterRow(fields []string, index map[string]int) (topology.SourceRecord, error) {
	get := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	rec := topology.SourceRecord{
		ID:                  get(colSupplierID),
		Name:                get(colName),
		Country:             get(colCountry),
		Material:            get(colMaterial),
		CountryRiskBaseline: DefaultCountryBaseline,
	}

	capacity, err := strconv.ParseFloat(get(colCapacity), 64)
	if err != nil {
		return rec, fmt.Errorf("%w: supplier %q: capacity %q is not a number", topology.ErrInvalidRecord, rec.ID, get(colCapacity))
	}
	rec.Capacity = capacity

	if v, err := strconv.ParseFloat(get(colBaseline), 64); err == nil {
		rec.CountryRiskBaseline = v
	}

	if err := rec.Validate(); err != nil {
		return rec, err
	}
	return rec, nil
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
