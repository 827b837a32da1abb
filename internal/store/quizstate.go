package store

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aburossi/textboxv2/internal/model"
	"github.com/aburossi/textboxv2/internal/storekey"
)

// SaveQuizState persists the selection state of a quiz run for a unit.
// A state with no answered questions is skipped.
func (s *Store) SaveQuizState(u storekey.Unit, state model.QuizState) (bool, error) {
	if len(state.AnsweredQuestions) == 0 {
		return false, nil
	}
	key, err := storekey.Encode(storekey.KindQuizState, u)
	if err != nil {
		return false, err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return false, fmt.Errorf("encode quiz state: %w", err)
	}
	if err := s.setEntry(key, string(data)); err != nil {
		return false, fmt.Errorf("save quiz state: %w", err)
	}
	return true, nil
}

// LoadQuizState returns the stored quiz state for a unit. Corrupted values
// are logged and treated as absent.
func (s *Store) LoadQuizState(u storekey.Unit) (model.QuizState, bool, error) {
	var state model.QuizState
	key, err := storekey.Encode(storekey.KindQuizState, u)
	if err != nil {
		return state, false, err
	}
	raw, ok, err := s.getEntry(key)
	if err != nil || !ok {
		return state, false, err
	}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		slog.Warn("corrupted quiz state, treating as absent",
			"assignment_id", u.AssignmentID, "sub_id", u.SubID, "error", err)
		return model.QuizState{}, false, nil
	}
	return state, true, nil
}
