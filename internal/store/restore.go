package store

import (
	"encoding/json"
	"fmt"

	"github.com/aburossi/textboxv2/internal/model"
	"github.com/aburossi/textboxv2/internal/storekey"
)

// Restore replaces all durable state with the incoming data: clear, then
// repopulate, never merge. The whole operation runs in one transaction, so a
// failing write leaves the previous state untouched and a retry starts from
// scratch. Attachment ids from the incoming data are discarded; the store
// assigns fresh ones.
func (s *Store) Restore(ds model.DataStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM entries`); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM attachments`); err != nil {
		return fmt.Errorf("clear attachments: %w", err)
	}

	for assignmentID, subs := range ds {
		for subID, unit := range subs {
			if unit == nil {
				continue
			}
			u := storekey.Unit{AssignmentID: assignmentID, SubID: subID}
			if err := storekey.Validate(u); err != nil {
				return fmt.Errorf("restore unit: %w", err)
			}
			if unit.Answer != "" {
				key, err := storekey.Encode(storekey.KindAnswer, u)
				if err != nil {
					return fmt.Errorf("restore answer: %w", err)
				}
				if _, err := tx.Exec(
					`INSERT INTO entries (key, value) VALUES (?, ?)
					 ON CONFLICT(key) DO UPDATE SET value = ?`,
					key, unit.Answer, unit.Answer,
				); err != nil {
					return fmt.Errorf("restore answer for %s/%s: %w", assignmentID, subID, err)
				}
			}
			if len(unit.Questions) > 0 {
				key, err := storekey.Encode(storekey.KindQuestions, u)
				if err != nil {
					return fmt.Errorf("restore questions: %w", err)
				}
				data, err := json.Marshal(unit.Questions)
				if err != nil {
					return fmt.Errorf("encode questions for %s/%s: %w", assignmentID, subID, err)
				}
				if _, err := tx.Exec(
					`INSERT INTO entries (key, value) VALUES (?, ?)
					 ON CONFLICT(key) DO UPDATE SET value = ?`,
					key, string(data), string(data),
				); err != nil {
					return fmt.Errorf("restore questions for %s/%s: %w", assignmentID, subID, err)
				}
			}
			for _, att := range unit.Attachments {
				if _, err := tx.Exec(
					`INSERT INTO attachments (assignment_id, sub_id, file_name, file_type, data)
					 VALUES (?, ?, ?, ?, ?)`,
					assignmentID, subID, att.FileName, att.FileType, att.Data,
				); err != nil {
					return fmt.Errorf("restore attachment %q for %s/%s: %w", att.FileName, assignmentID, subID, err)
				}
			}
		}
	}

	return tx.Commit()
}
