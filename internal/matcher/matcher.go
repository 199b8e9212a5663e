// Package matcher answers "who is this?" by scoring a query embedding against every
// record in the gallery.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/kozaktomas/face-gallery/internal/embedding"
	"github.com/kozaktomas/face-gallery/internal/gallery"
	"github.com/kozaktomas/face-gallery/internal/similarity"
)

var (
	// ErrEmptyGallery is returned when no identities are registered and the matcher
	// was built with WithRequireNonEmpty.
	ErrEmptyGallery = errors.New("no identities registered")

	// ErrDimensionMismatch is returned when the query has the wrong length.
	ErrDimensionMismatch = embedding.ErrDimensionMismatch

	// ErrInvalidTopK is returned when topK is less than one.
	ErrInvalidTopK = errors.New("top_k must be positive")

	// ErrInvalidThreshold is returned for a threshold outside the convention's scale.
	ErrInvalidThreshold = errors.New("threshold out of range")
)

// Candidate is one scored gallery record.
type Candidate struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	ImageRef string  `json:"image_reference,omitempty"`
	Score    float64 `json:"score"`
	Accepted bool    `json:"accepted"`
}

// Result is a ranked, threshold-annotated match result.
type Result struct {
	Convention similarity.Convention `json:"convention"`
	Threshold  float64               `json:"threshold"`
	// Best is the top candidate if it passed the threshold, nil otherwise.
	Best       *Candidate  `json:"best_match"`
	Candidates []Candidate `json:"candidates"`
	// Scanned is the number of records compared.
	Scanned int `json:"scanned"`
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithRequireNonEmpty makes Match fail with ErrEmptyGallery instead of returning
// an empty result when the gallery has no records.
func WithRequireNonEmpty() Option {
	return func(m *Matcher) {
		m.requireNonEmpty = true
	}
}

// Matcher ranks gallery records against a query. It never mutates the gallery.
type Matcher struct {
	reader          gallery.Reader
	engine          *similarity.Engine
	requireNonEmpty bool
}

// New creates a matcher over reader using engine.
func New(reader gallery.Reader, engine *similarity.Engine, opts ...Option) *Matcher {
	m := &Matcher{reader: reader, engine: engine}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Engine returns the similarity engine the matcher ranks with.
func (m *Matcher) Engine() *similarity.Engine {
	return m.engine
}

// Match scores query against every record, ranks best-first (ties broken by lowest id),
// keeps the topK candidates and marks which pass threshold. Result.Best is nil when the
// top candidate fails the threshold; that is a normal outcome, not an error.
func (m *Matcher) Match(ctx context.Context, query []float32, topK int, threshold float64) (*Result, error) {
	if len(query) != embedding.Dim {
		return nil, fmt.Errorf("%w: query has %d values, want %d", ErrDimensionMismatch, len(query), embedding.Dim)
	}
	if topK < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}
	if !m.engine.ValidThreshold(threshold) {
		return nil, fmt.Errorf("%w: %v for %s", ErrInvalidThreshold, threshold, m.engine.Convention())
	}

	normalized, err := embedding.Normalize(query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	records, err := m.reader.ScanAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading gallery: %w", err)
	}

	result := &Result{
		Convention: m.engine.Convention(),
		Threshold:  threshold,
		Candidates: []Candidate{},
		Scanned:    len(records),
	}
	if len(records) == 0 {
		if m.requireNonEmpty {
			return nil, ErrEmptyGallery
		}
		return result, nil
	}

	candidates := make([]Candidate, 0, len(records))
	for i := range records {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec := &records[i]
		score, err := m.engine.Score(normalized, rec.Embedding)
		if err != nil {
			return nil, fmt.Errorf("scoring identity %d: %w", rec.ID, err)
		}
		candidates = append(candidates, Candidate{
			ID:       rec.ID,
			Name:     rec.Name,
			ImageRef: rec.ImageRef,
			Score:    score,
		})
	}

	m.rank(candidates)

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	for i := range candidates {
		candidates[i].Accepted = m.engine.Accepts(candidates[i].Score, threshold)
	}

	result.Candidates = candidates
	if candidates[0].Accepted {
		best := candidates[0]
		result.Best = &best
	}
	return result, nil
}

// rank sorts candidates best-first for the engine's convention, lowest id first on ties.
func (m *Matcher) rank(candidates []Candidate) {
	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		switch {
		case m.engine.Better(a.Score, b.Score):
			return -1
		case m.engine.Better(b.Score, a.Score):
			return 1
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
