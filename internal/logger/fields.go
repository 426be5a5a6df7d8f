package logger

// Standard field names for consistent structured logging.
// Use these constants instead of raw strings.
const (
	FieldComponent = "component"
	FieldOperation = "operation"
	FieldMethod    = "method"

	FieldDurationMS = "duration_ms"

	FieldError = "error"

	FieldCount      = "count"
	FieldTotalCount = "total_count"
	FieldAttempt    = "attempt"

	FieldFile      = "file"
	FieldLine      = "line"
	FieldColumn    = "column"
	FieldFolder    = "folder"
	FieldBinary    = "binary"
	FieldWorkspace = "workspace"

	FieldSymbol    = "symbol"
	FieldRelation  = "relation"
	FieldSnapshot  = "snapshot"
	FieldNodeCount = "nodes"
	FieldEdgeCount = "edges"
)
