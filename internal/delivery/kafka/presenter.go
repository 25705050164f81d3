package kafka

import (
	"encoding/json"
	"time"
)

// Events consumed BY voyage-sync (server-side push fan-out)

// NotificationPushedEvent carries either the raw notification socket frame
// or a decoded kind and subject.
type NotificationPushedEvent struct {
	Frame     json.RawMessage `json:"frame,omitempty"`
	Kind      string          `json:"kind,omitempty"`
	SubjectID string          `json:"subject_id,omitempty"`
	Info      string          `json:"info,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Events published BY voyage-sync

type CacheInvalidatedEvent struct {
	EventID   string    `json:"event_id"`
	Origin    string    `json:"origin"`
	Kind      string    `json:"kind"`
	SubjectID string    `json:"subject_id,omitempty"`
	Keys      []string  `json:"keys"`
	Timestamp time.Time `json:"timestamp"`
}
