// Package embedding defines the face embedding vector and its canonical byte encoding.
//
// The on-disk blob is a raw little-endian sequence of IEEE 754 float32 values with no
// header, exactly 4*Dim bytes long. The self-describing numpy array format is not
// accepted: the two formats are not interchangeable.
package embedding

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Dim is the fixed dimension of face embeddings (512 for FaceNet/ArcFace style models).
const Dim = 512

// BlobSize is the encoded size of one embedding in bytes.
const BlobSize = Dim * 4

var (
	// ErrMalformedEmbedding is returned when a blob is not exactly BlobSize bytes.
	ErrMalformedEmbedding = errors.New("malformed embedding")

	// ErrDimensionMismatch is returned when a vector does not have the expected length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrDegenerateVector is returned for zero-norm vectors or vectors holding NaN/Inf values.
	ErrDegenerateVector = errors.New("degenerate embedding vector")
)

// Encode serializes vec into the canonical blob format.
func Encode(vec []float32) ([]byte, error) {
	if len(vec) != Dim {
		return nil, fmt.Errorf("%w: encode got %d values, want %d", ErrMalformedEmbedding, len(vec), Dim)
	}
	b := make([]byte, BlobSize)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b, nil
}

// Decode parses a blob produced by Encode. It is the exact inverse of Encode.
func Decode(b []byte) ([]float32, error) {
	if len(b) != BlobSize {
		return nil, fmt.Errorf("%w: blob is %d bytes, want %d", ErrMalformedEmbedding, len(b), BlobSize)
	}
	vec := make([]float32, Dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// Validate checks the dimension and that every component is finite.
func Validate(vec []float32) error {
	if len(vec) != Dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), Dim)
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: component %d is %v", ErrDegenerateVector, i, v)
		}
	}
	return nil
}

// Norm returns the L2 norm of vec, accumulated in float64.
func Norm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of vec. The input is not modified.
func Normalize(vec []float32) ([]float32, error) {
	n := Norm(vec)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, fmt.Errorf("%w: norm is %v", ErrDegenerateVector, n)
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / n)
	}
	return out, nil
}
