package idgen

import "github.com/google/uuid"

// Generator creates random identifiers.
type Generator struct{}

// NewID returns a UUIDv4 string.
func (Generator) NewID() string {
	return uuid.NewString()
}

// Short returns the first eight characters of a fresh UUID, used for
// node and client suffixes.
func Short() string {
	return uuid.NewString()[:8]
}
