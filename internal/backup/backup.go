// Package backup validates and applies import files. A backup is either the
// bare nested dataStore object or a full export envelope wrapping one; both
// shapes are accepted. Validation happens entirely before any store is
// touched, so a malformed file never destroys local state.
package backup

import (
	"encoding/json"
	"fmt"

	"github.com/aburossi/textboxv2/internal/model"
	"github.com/aburossi/textboxv2/internal/store"
)

// Parse decodes a backup file into the nested dataStore shape. It rejects
// anything whose top level is not a JSON object.
func Parse(data []byte) (model.DataStore, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("backup is not a JSON object: %w", err)
	}
	if top == nil {
		return nil, fmt.Errorf("backup is null, expected an object keyed by assignment ids")
	}

	// Envelope shape: a "payload" key next to at least one envelope marker.
	// A bare dataStore with an assignment literally named "payload" would
	// lack the markers and falls through to the bare branch.
	if raw, ok := top["payload"]; ok && hasEnvelopeMarker(top) {
		var ds model.DataStore
		if err := json.Unmarshal(raw, &ds); err != nil {
			return nil, fmt.Errorf("envelope payload is not a valid data store: %w", err)
		}
		return ds, nil
	}

	var ds model.DataStore
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("backup is not a valid data store: %w", err)
	}
	return ds, nil
}

func hasEnvelopeMarker(top map[string]json.RawMessage) bool {
	for _, key := range []string{"identifier", "signature", "createdAt"} {
		if _, ok := top[key]; ok {
			return true
		}
	}
	return false
}

// Restore parses the backup and atomically replaces all durable state with
// it. On failure nothing is applied; callers should advise retrying from the
// same file.
func Restore(s *store.Store, data []byte) error {
	ds, err := Parse(data)
	if err != nil {
		return err
	}
	if err := s.Restore(ds); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	return nil
}
