package gallery

import (
	"fmt"
	"strings"

	"github.com/kozaktomas/face-gallery/internal/embedding"
)

// MaxNameLength bounds display names.
const MaxNameLength = 255

// ValidateName checks that a trimmed name is non-empty and not too long.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d bytes", ErrValidation, MaxNameLength)
	}
	return nil
}

// ValidateNew checks a record before it is written. Stores call this before touching
// the medium, so a rejected record never produces a partial write.
func ValidateNew(identity NewIdentity) error {
	if err := ValidateName(identity.Name); err != nil {
		return err
	}
	if err := embedding.Validate(identity.Embedding); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}
