package testutil

// FixedIDGenerator returns the same instance ID every time, so a scenario
// can create any number of engines and still log identically on every run.
//
// Thread-safety: stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator returning id.
// If id is empty, Generate returns "test-instance".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-instance"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed ID. Implements engine.IDGenerator.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
