package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	logx "illo/pkg/logx"
)

// Store is the minimal persistence API used by the maintenance and routine
// tasks.
type Store interface {
	AppendInteraction(ctx context.Context, e InteractionEvent) error
	PutState(ctx context.Context, key string, value json.RawMessage) error
	GetState(ctx context.Context, key string) (value json.RawMessage, ok bool, err error)
	// Compact reclaims space: trims old interaction history and folds the
	// state journal into its snapshot. Safe to call at any time; this is the
	// nightly deep-clean entry point.
	Compact(ctx context.Context) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// interactionRetention bounds how far back history is kept on Compact.
const interactionRetention = 30 * 24 * time.Hour
