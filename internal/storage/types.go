package storage

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl + snapshot)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// InteractionEvent records one physical interaction with the device.
// Keep it compact and schema-stable.
type InteractionEvent struct {
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"` // "tap", "shake", "button_a", "button_b", "light"
	Routine string    `json:"routine,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	Level   float64   `json:"level,omitempty"` // sensor reading, if any
}

// StateRecord is a named state blob, e.g. the mood counters a routine
// accumulates across power cycles.
type StateRecord struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}
