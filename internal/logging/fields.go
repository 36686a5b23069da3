package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldBatchID is the standardized structured logging key for batch run identifiers.
	FieldBatchID = "batch_id"
	// FieldItemIndex is the standardized structured logging key for the 1-based item index within a run.
	FieldItemIndex = "item_index"
	// FieldAttempt is the standardized structured logging key for retry attempt numbers.
	FieldAttempt = "attempt"
	// FieldState is the standardized structured logging key for lifecycle state names.
	FieldState = "state"
	// FieldEventType tags records that mark a state-relevant milestone.
	FieldEventType = "event_type"
	// FieldErrorHint suggests an operator next step alongside warnings and errors.
	FieldErrorHint = "error_hint"
)
