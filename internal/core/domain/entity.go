package domain

import "time"

// Entity is one named record inside a session collection (e.g. a goal).
type Entity struct {
	ID        string    `json:"id"`
	Heading   string    `json:"heading"`
	Content   string    `json:"content"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Operation is a mutation instruction emitted by the reasoning engine.
// Nil field pointers mean the field was not present in the instruction.
type Operation struct {
	ID      string  `json:"identifier"`
	Delete  bool    `json:"delete,omitempty"`
	Heading *string `json:"heading,omitempty"`
	Content *string `json:"content,omitempty"`
	Notes   *string `json:"notes,omitempty"`
}

// OperationAction is the resolved action of an operation.
type OperationAction string

const (
	ActionCreate OperationAction = "create"
	ActionUpdate OperationAction = "update"
	ActionDelete OperationAction = "delete"
	ActionUpsert OperationAction = "upsert" // unresolved, used when validation fails before lookup
)

// OperationStatus is the outcome of a single operation.
type OperationStatus string

const (
	OperationSuccess OperationStatus = "success"
	OperationError   OperationStatus = "error"
)

// OperationResult reports the outcome of one submitted operation.
type OperationResult struct {
	ID     string          `json:"id"`
	Action OperationAction `json:"action"`
	Status OperationStatus `json:"status"`
	Error  string          `json:"error,omitempty"`
}

// BatchError is a batch-level error entry.
type BatchError struct {
	ID             string         `json:"id"`
	Classification Classification `json:"classification"`
	Message        string         `json:"message"`
}

// Activity is an audit record of a successful mutation.
type Activity struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Action    OperationAction `json:"action"`
	EntityID  string          `json:"entity_id"`
	Status    OperationStatus `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string { return &s }
