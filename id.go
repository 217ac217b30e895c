package sendq

import "github.com/google/uuid"

// IDGenerator creates new message identifiers.
type IDGenerator interface {
	// New returns a new identifier.
	New() (uuid.UUID, error)
}

// UUIDv7Generator produces time-ordered UUID v7 identifiers so that message
// IDs sort in creation order.
type UUIDv7Generator struct{}

// New creates a new UUID v7 identifier.
func (UUIDv7Generator) New() (uuid.UUID, error) {
	return uuid.NewV7()
}
