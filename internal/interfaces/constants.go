package interfaces

// Metadata keys used on deployment requests
const (
	// MetadataKeyRequestID carries the HTTP request ID for tracing
	MetadataKeyRequestID = "request_id"
	// MetadataKeyEngine carries an engine selection made at the API boundary
	MetadataKeyEngine = "engine"
)

// EngineHeader is the dedicated request header for engine selection
const EngineHeader = "X-Transform-Engine"

// Engine identifiers for the supported transformation backends
const (
	EngineSQLMesh = "sqlmesh"
	EngineDbt     = "dbt"
)

// DefaultHistoryLimit bounds "most recent N" history queries when the caller
// does not specify one
const DefaultHistoryLimit = 20
