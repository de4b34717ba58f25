package testutil

// FixedIDGenerator returns the same engine id every time.
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario with the same FixedIDGenerator persists byte-identical
// snapshots.
//
// Unlike engine.FixedGenerator, which returns ids in sequence and panics when
// exhausted, this generator can back any number of engines.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator returning id.
//
// The id is typically set in the scenario YAML:
//
//	engine_id: "test-engine-00000000-0000-0000-0000-000000000001"
//
// If id is empty, Generate returns "test-engine-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-engine-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
//
// Implements engine.IDGenerator.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
