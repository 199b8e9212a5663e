// Package gallery holds the identity record model, the storage contracts and the
// writer that registers new identities.
package gallery

import (
	"time"
)

// IdentityRecord is one registered face: a name, its embedding and the stored source image.
type IdentityRecord struct {
	ID        int64
	Name      string
	Embedding []float32 // embedding.Dim values, unit L2 norm
	ImageRef  string    // image store reference, empty if no image was kept
	CreatedAt time.Time
}

// Summary returns the record without its embedding.
func (r IdentityRecord) Summary() IdentitySummary {
	return IdentitySummary{
		ID:        r.ID,
		Name:      r.Name,
		ImageRef:  r.ImageRef,
		CreatedAt: r.CreatedAt,
	}
}

// IdentitySummary is an identity record without the embedding, used for listings.
type IdentitySummary struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ImageRef  string    `json:"image_reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewIdentity is the input to Store.Insert. ID and CreatedAt are assigned by the store.
type NewIdentity struct {
	Name      string
	Embedding []float32
	ImageRef  string
}
