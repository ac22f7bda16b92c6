package engine

import "github.com/google/uuid"

// IDGenerator names engine instances. The instance ID appears in every log
// line of the instance so restarts of the same engine can be told apart.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 instance IDs.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7. Panics if the random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
