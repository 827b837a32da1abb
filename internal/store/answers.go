package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aburossi/textboxv2/internal/model"
	"github.com/aburossi/textboxv2/internal/storekey"
)

// EmptyEditorSentinel is the HTML a rich-text editor emits for an empty
// document. Saving it would wipe real content during editor initialization,
// so it is treated like an empty write.
const EmptyEditorSentinel = "<p><br></p>"

// SaveAnswer overwrites the unit's answer. Empty content and the empty-editor
// sentinel are silently skipped; the returned flag reports whether a write
// happened.
func (s *Store) SaveAnswer(u storekey.Unit, html string) (bool, error) {
	if html == "" || html == EmptyEditorSentinel {
		return false, nil
	}
	key, err := storekey.Encode(storekey.KindAnswer, u)
	if err != nil {
		return false, err
	}
	if err := s.setEntry(key, html); err != nil {
		return false, fmt.Errorf("save answer: %w", err)
	}
	return true, nil
}

// LoadAnswer returns the unit's answer, with ok=false when none is stored.
func (s *Store) LoadAnswer(u storekey.Unit) (string, bool, error) {
	key, err := storekey.Encode(storekey.KindAnswer, u)
	if err != nil {
		return "", false, err
	}
	return s.getEntry(key)
}

// SaveQuestionSnapshot persists the question mapping captured from the
// launching context. Empty mappings are skipped.
func (s *Store) SaveQuestionSnapshot(u storekey.Unit, questions map[string]string) (bool, error) {
	if len(questions) == 0 {
		return false, nil
	}
	key, err := storekey.Encode(storekey.KindQuestions, u)
	if err != nil {
		return false, err
	}
	data, err := json.Marshal(questions)
	if err != nil {
		return false, fmt.Errorf("encode questions: %w", err)
	}
	if err := s.setEntry(key, string(data)); err != nil {
		return false, fmt.Errorf("save questions: %w", err)
	}
	return true, nil
}

// LoadQuestionSnapshot returns the stored question mapping. A corrupted
// (non-JSON) value is logged and treated as absent, not as an error.
func (s *Store) LoadQuestionSnapshot(u storekey.Unit) (map[string]string, bool, error) {
	key, err := storekey.Encode(storekey.KindQuestions, u)
	if err != nil {
		return nil, false, err
	}
	raw, ok, err := s.getEntry(key)
	if err != nil || !ok {
		return nil, false, err
	}
	var questions map[string]string
	if err := json.Unmarshal([]byte(raw), &questions); err != nil {
		slog.Warn("corrupted question snapshot, treating as absent",
			"assignment_id", u.AssignmentID, "sub_id", u.SubID, "error", err)
		return nil, false, nil
	}
	return questions, true, nil
}

// EnumerateUnits scans all persisted keys and returns the distinct units that
// have an answer or a question snapshot, optionally filtered to one
// assignment. Results are ordered naturally (digit runs compared numerically)
// by assignment id, then sub id.
func (s *Store) EnumerateUnits(assignmentFilter string) ([]storekey.Unit, error) {
	rows, err := s.db.Query(`SELECT key FROM entries`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[storekey.Unit]bool)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		key, ok := storekey.Decode(raw)
		if !ok {
			continue
		}
		if key.Kind != storekey.KindAnswer && key.Kind != storekey.KindQuestions {
			continue
		}
		if assignmentFilter != "" && key.Unit.AssignmentID != assignmentFilter {
			continue
		}
		seen[key.Unit] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	units := make([]storekey.Unit, 0, len(seen))
	for u := range seen {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool {
		if units[i].AssignmentID != units[j].AssignmentID {
			return model.NaturalLess(units[i].AssignmentID, units[j].AssignmentID)
		}
		return model.NaturalLess(units[i].SubID, units[j].SubID)
	})
	return units, nil
}
