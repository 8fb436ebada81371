// Package topology builds the supply graph from a supplier roster.
package topology

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Benny93/sentinel-go/internal/graph"
)

// ErrInvalidRecord marks a malformed roster or signal record. Such records are
// dropped and reported; they never abort a build.
var ErrInvalidRecord = errors.New("invalid record")

var validate = validator.New()

// SourceRecord is one supplier row of the roster.
type SourceRecord struct {
	ID                  string  `json:"supplier_id" validate:"required"`
	Name                string  `json:"name" validate:"required"`
	Country             string  `json:"country" validate:"required"`
	Material            string  `json:"material" validate:"required"`
	Capacity            float64 `json:"capacity_tons_per_month" validate:"gte=0"`
	CountryRiskBaseline float64 `json:"risk_country_score" validate:"gte=0,lte=1"`
}

// Validate checks the record's struct tags.
func (r SourceRecord) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: supplier %q: %s", ErrInvalidRecord, r.ID, formatValidationError(err))
	}
	return nil
}

// Builder constructs supply graphs using a set of routing rules.
type Builder struct {
	routes []Route
}

// NewBuilder returns a Builder using routes, or DefaultRoutes when nil.
func NewBuilder(routes []Route) *Builder {
	if routes == nil {
		routes = DefaultRoutes
	}
	return &Builder{routes: routes}
}

// Build creates a graph containing the fixed skeleton plus one node per valid
// record, wired by the routing rules. Records that fail validation, repeat an
// earlier ID or collide with a skeleton ID are dropped; each drop is returned
// as an error wrapping ErrInvalidRecord.
func (b *Builder) Build(records []SourceRecord) (*graph.SupplyGraph, []error) {
	g := graph.NewSupplyGraph()

	for _, s := range Skeleton {
		n, err := graph.NewStageNode(s.ID, s.Kind, s.Name)
		if err != nil {
			// Skeleton is static data; a failure here is a programming error.
			panic(err)
		}
		_ = g.AddNode(n)
	}

	var dropped []error
	for _, rec := range records {
		if err := b.addSource(g, rec); err != nil {
			dropped = append(dropped, err)
		}
	}

	for i := range SkeletonEdges {
		e := SkeletonEdges[i]
		_ = g.AddEdge(&e)
	}
	return g, dropped
}

func (b *Builder) addSource(g *graph.SupplyGraph, rec SourceRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if g.HasNode(rec.ID) {
		return fmt.Errorf("%w: duplicate supplier id %q", ErrInvalidRecord, rec.ID)
	}

	n, err := graph.NewSourceNode(rec.ID, rec.Name, rec.Country, rec.Material, rec.Capacity, rec.CountryRiskBaseline)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if err := g.AddNode(n); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	for _, r := range b.routes {
		if !r.Matches(rec.Material) {
			continue
		}
		if err := g.AddEdge(&graph.Edge{Source: rec.ID, Target: r.Target, Material: rec.Material, Weight: r.Weight}); err != nil {
			return fmt.Errorf("route %s -> %s: %w", rec.ID, r.Target, err)
		}
	}
	return nil
}

// Build is a convenience wrapper using DefaultRoutes.
func Build(records []SourceRecord) (*graph.SupplyGraph, []error) {
	return NewBuilder(nil).Build(records)
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
