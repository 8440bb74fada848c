package journal

import (
	"time"
)

// EventKind classifies a recorded key event
type EventKind string

const (
	KindFailed   EventKind = "failed"
	KindDeferred EventKind = "deferred"
)

// KeyEvent is one per-key record in the run journal: a key that failed to
// transfer, or a key routed to manual handling because of its size.
type KeyEvent struct {
	Key        string    `json:"key"`
	Kind       EventKind `json:"kind"`
	Size       int64     `json:"size"`
	Type       string    `json:"type,omitempty"`
	TTLMillis  int64     `json:"ttl_millis"`
	Detail     string    `json:"detail,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Store defines the interface for journal persistence
type Store interface {
	// Reset clears events from previous runs
	Reset() error

	RecordEvent(event *KeyEvent) error
	ListEvents(kind EventKind) ([]*KeyEvent, error)

	Close() error
}
