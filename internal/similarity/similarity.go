// Package similarity scores pairs of face embeddings under one fixed convention.
//
// Two conventions are supported and never mixed:
//
//   - Cosine: similarity in [-1, 1], higher is more similar. A threshold is the
//     minimum similarity a candidate needs to be accepted.
//   - Euclidean: L2 distance >= 0, lower is more similar. A threshold is the
//     maximum distance a candidate may have to be accepted.
package similarity

import (
	"fmt"
	"math"
	"strings"

	"github.com/kozaktomas/face-gallery/internal/embedding"
)

var (
	// ErrDimensionMismatch is returned when the two vectors differ in length or are empty.
	ErrDimensionMismatch = embedding.ErrDimensionMismatch

	// ErrDegenerateVector is returned for zero-norm inputs or a non-finite score.
	ErrDegenerateVector = embedding.ErrDegenerateVector
)

// Convention selects the metric and with it the ranking direction and threshold meaning.
type Convention string

const (
	Cosine    Convention = "cosine"    // higher is better
	Euclidean Convention = "euclidean" // lower is better
)

// ParseConvention parses a convention name (case-insensitive).
func ParseConvention(s string) (Convention, error) {
	switch Convention(strings.ToLower(strings.TrimSpace(s))) {
	case Cosine:
		return Cosine, nil
	case Euclidean, "l2":
		return Euclidean, nil
	}
	return "", fmt.Errorf("unknown similarity convention %q (want cosine or euclidean)", s)
}

// Engine scores embeddings under a single convention.
type Engine struct {
	convention Convention
}

// NewEngine creates an engine for the given convention.
func NewEngine(c Convention) (*Engine, error) {
	if c != Cosine && c != Euclidean {
		return nil, fmt.Errorf("unknown similarity convention %q", c)
	}
	return &Engine{convention: c}, nil
}

// Convention returns the engine's convention.
func (e *Engine) Convention() Convention {
	return e.convention
}

// Score computes the similarity (cosine) or distance (euclidean) between a and b.
// Zero-norm inputs fail with ErrDegenerateVector instead of producing NaN.
func (e *Engine) Score(a, b []float32) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB, sqDist float64
	for i := range a {
		va, vb := float64(a[i]), float64(b[i])
		dot += va * vb
		normA += va * va
		normB += vb * vb
		d := va - vb
		sqDist += d * d
	}

	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("%w: zero-norm vector", ErrDegenerateVector)
	}

	var score float64
	switch e.convention {
	case Cosine:
		score = dot / (math.Sqrt(normA) * math.Sqrt(normB))
		// Clamp to [-1, 1] to absorb floating point error.
		score = max(-1, min(1, score))
	case Euclidean:
		score = math.Sqrt(sqDist)
	}

	// NaN survives the clamp above, so check after it.
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("%w: score is %v", ErrDegenerateVector, score)
	}
	return score, nil
}

// Better reports whether score x ranks strictly ahead of score y.
func (e *Engine) Better(x, y float64) bool {
	if e.convention == Euclidean {
		return x < y
	}
	return x > y
}

// Accepts reports whether a score passes the threshold.
// Cosine: score >= threshold. Euclidean: score <= threshold.
func (e *Engine) Accepts(score, threshold float64) bool {
	if e.convention == Euclidean {
		return score <= threshold
	}
	return score >= threshold
}

// Best returns the best attainable score: 1 for cosine, 0 for euclidean.
func (e *Engine) Best() float64 {
	if e.convention == Euclidean {
		return 0
	}
	return 1
}

// ValidThreshold reports whether threshold lies inside the convention's scale.
func (e *Engine) ValidThreshold(threshold float64) bool {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return false
	}
	if e.convention == Euclidean {
		return threshold >= 0
	}
	return threshold >= -1 && threshold <= 1
}
