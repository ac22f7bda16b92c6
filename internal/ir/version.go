package ir

// Version constants for persisted records.
const (
	// SchemaVersion is the provenance store layout version.
	SchemaVersion = "1"

	// EngineVersion is the provstream engine version.
	EngineVersion = "0.1.0"
)
