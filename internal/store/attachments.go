package store

import (
	"database/sql"
	"fmt"

	"github.com/aburossi/textboxv2/internal/model"
	"github.com/aburossi/textboxv2/internal/storekey"
)

// AddAttachment inserts an attachment and returns its store-assigned id. Any
// id on the input is ignored.
func (s *Store) AddAttachment(att model.Attachment) (int64, error) {
	u := storekey.Unit{AssignmentID: att.AssignmentID, SubID: att.SubID}
	if err := storekey.Validate(u); err != nil {
		return 0, err
	}
	res, err := s.db.Exec(
		`INSERT INTO attachments (assignment_id, sub_id, file_name, file_type, data)
		 VALUES (?, ?, ?, ?, ?)`,
		att.AssignmentID, att.SubID, att.FileName, att.FileType, att.Data,
	)
	if err != nil {
		return 0, fmt.Errorf("add attachment: %w", err)
	}
	return res.LastInsertId()
}

// ListAttachmentsByUnit returns the unit's attachments in insertion order.
func (s *Store) ListAttachmentsByUnit(u storekey.Unit) ([]model.Attachment, error) {
	rows, err := s.db.Query(
		`SELECT id, assignment_id, sub_id, file_name, file_type, data
		 FROM attachments WHERE assignment_id = ? AND sub_id = ? ORDER BY id`,
		u.AssignmentID, u.SubID,
	)
	if err != nil {
		return nil, err
	}
	return scanAttachments(rows)
}

// ListAttachmentsByAssignment returns all attachments of one assignment.
// Attachment volume is small (tens to low hundreds per user), so a full scan
// with a client-side filter beats maintaining a second index.
func (s *Store) ListAttachmentsByAssignment(assignmentID string) ([]model.Attachment, error) {
	all, err := s.ListAllAttachments()
	if err != nil {
		return nil, err
	}
	var out []model.Attachment
	for _, att := range all {
		if att.AssignmentID == assignmentID {
			out = append(out, att)
		}
	}
	return out, nil
}

// ListAllAttachments returns every stored attachment, used for full-corpus
// export and backup.
func (s *Store) ListAllAttachments() ([]model.Attachment, error) {
	rows, err := s.db.Query(
		`SELECT id, assignment_id, sub_id, file_name, file_type, data
		 FROM attachments ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return scanAttachments(rows)
}

// RemoveAttachment deletes an attachment by id. Removing a missing id is not
// an error.
func (s *Store) RemoveAttachment(id int64) error {
	_, err := s.db.Exec(`DELETE FROM attachments WHERE id = ?`, id)
	return err
}

// ClearAttachments deletes all attachment records.
func (s *Store) ClearAttachments() error {
	_, err := s.db.Exec(`DELETE FROM attachments`)
	return err
}

func scanAttachments(rows *sql.Rows) ([]model.Attachment, error) {
	defer rows.Close()
	var attachments []model.Attachment
	for rows.Next() {
		var att model.Attachment
		if err := rows.Scan(&att.ID, &att.AssignmentID, &att.SubID, &att.FileName, &att.FileType, &att.Data); err != nil {
			return nil, err
		}
		attachments = append(attachments, att)
	}
	return attachments, rows.Err()
}
