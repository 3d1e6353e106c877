package realtime

import "encoding/json"

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"

	// EventResync is emitted by the feed itself, not by the backend: the
	// underlying connection dropped and recovered, so changes may have
	// been missed and consumers should reload.
	EventResync EventType = "resync"
)

// Event is the normalized shape of one row change. New carries the row
// after the change (insert/update), Old the row before it (update/delete).
// Rows stay raw JSON here; consumers decode into their own models.
type Event struct {
	Table string          `json:"table"`
	Type  EventType       `json:"type"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`
}
