package models

// Event kinds delivered over the realtime channel. The wire names match the
// socket event names the web clients already listen for.
type EventKind string

const (
	EventQueueUpdate EventKind = "queue:update"
	EventQueueCalled EventKind = "queue:called"
	EventQueueServed EventKind = "queue:served"
)

// Event is one queue-state-change notification, scoped to a single
// establishment. Payload is one of UpdatePayload or EntryPayload.
type Event struct {
	Kind            EventKind `json:"type"`
	EstablishmentID string    `json:"establishmentId"`
	Payload         any       `json:"payload"`
}

// UpdatePayload carries the full current waiting queue plus stats. NewEntry
// is set only when the update was triggered by an enqueue.
type UpdatePayload struct {
	EstablishmentID string        `json:"establishmentId"`
	Queue           []*QueueEntry `json:"queue"`
	Stats           Stats         `json:"stats"`
	NewEntry        *QueueEntry   `json:"newEntry,omitempty"`
}

// EntryPayload carries the single entry that was just called or served.
type EntryPayload struct {
	EstablishmentID string      `json:"establishmentId"`
	Entry           *QueueEntry `json:"entry"`
}
