package persist

import (
	"encoding/json"
	"errors"
	"fmt"
)

// #region store
// Store is the narrow persistence contract the engine depends on.
// Load returns (nil, nil) when the key has never been saved.
type Store interface {
	Load(key string) ([]byte, error)
	Save(key string, data []byte) error
	Close() error
}

// #endregion store

// #region envelope
// ErrSchemaMismatch is returned by Unwrap when a persisted payload was
// written against a different schema version. Callers treat it as a
// recoverable condition and reset to neutral state.
var ErrSchemaMismatch = errors.New("persisted schema version mismatch")

// Envelope wraps every snapshot payload with its schema version so a
// version mismatch is detected on load instead of producing garbage state.
type Envelope struct {
	SchemaVersion int             `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// Wrap serializes v inside a versioned envelope.
func Wrap(version int, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	data, err := json.Marshal(Envelope{SchemaVersion: version, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

// Unwrap parses a versioned envelope into v, rejecting version mismatches.
func Unwrap(data []byte, wantVersion int, v any) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("parse envelope: %w", err)
	}
	if env.SchemaVersion != wantVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrSchemaMismatch, env.SchemaVersion, wantVersion)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}
	return nil
}

// #endregion envelope
