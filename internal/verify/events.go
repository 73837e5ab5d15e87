package verify

import "github.com/sells-group/prospectkeeper/internal/model"

// EventType identifies a batch lifecycle event.
type EventType string

const (
	EventBatchStart    EventType = "batch_start"
	EventContactStart  EventType = "contact_start"
	EventContactDone   EventType = "contact_done"
	EventContactError  EventType = "contact_error"
	EventBatchComplete EventType = "batch_complete"
)

// Event is an immutable progress record emitted during a batch run. Indexes
// reflect completion order, not load order.
type Event struct {
	Type    EventType `json:"type"`
	BatchID string    `json:"batch_id"`
	Index   int       `json:"index,omitempty"`
	Total   int       `json:"total"`

	ContactName  string              `json:"contact_name,omitempty"`
	Organization string              `json:"organization,omitempty"`
	Status       model.ContactStatus `json:"status,omitempty"`
	CostUSD      float64             `json:"cost_usd,omitempty"`

	HasReplacement bool   `json:"has_replacement,omitempty"`
	Flagged        bool   `json:"flagged,omitempty"`
	Err            string `json:"error,omitempty"`

	// Receipt is set on batch_complete only.
	Receipt *model.Receipt `json:"receipt,omitempty"`
}

// Sink receives batch progress events. Delivery is best-effort: a returned
// error is dropped by the orchestrator and never affects the run.
type Sink interface {
	Publish(event Event) error
}
