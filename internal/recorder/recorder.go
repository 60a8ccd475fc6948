package recorder

import (
	"encoding/json"
	"time"

	"TrancheVault/internal/model"
)

// StoredEvent is a vault event as kept in the history database.
type StoredEvent struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Recorder persists vault history for indexers and dashboards.
type Recorder interface {
	RecordEvent(evt model.Event) error
	RecordSnapshot(st *model.VaultStatus) error
	// RecentEvents returns up to limit events, newest first.
	RecentEvents(limit int) ([]StoredEvent, error)
	Close() error
}
