package ir

// Snapshot is one committed state change, as handed to a persistence hook.
//
// Seq comes from the engine's logical clock and is strictly increasing per
// EngineID. DeclaredKeys are the keys named by the update that produced
// State, sorted.
type Snapshot struct {
	EngineID      string   `json:"engine_id"`
	Seq           int64    `json:"seq"`
	State         IRObject `json:"state"`
	DeclaredKeys  []string `json:"declared_keys"`
	StateHash     string   `json:"state_hash"`
	EngineVersion string   `json:"engine_version"`
}
