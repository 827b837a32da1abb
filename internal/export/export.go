// Package export assembles the signed export envelope from the answer and
// attachment stores. Gathering is read-only against durable storage; the only
// non-durable input is the set of pending autosave drafts, which override
// whatever was last flushed so an export taken inside the debounce window is
// never stale.
package export

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aburossi/textboxv2/internal/canonical"
	"github.com/aburossi/textboxv2/internal/model"
	"github.com/aburossi/textboxv2/internal/store"
	"github.com/aburossi/textboxv2/internal/storekey"
)

var (
	// ErrNoData signals that no unit in scope has any exportable content.
	ErrNoData = errors.New("no data to export")
	// ErrNoIdentifier signals a missing or declined submitter identifier.
	ErrNoIdentifier = errors.New("identifier required")
	// ErrNoScope signals a per-assignment export without an assignment id.
	ErrNoScope = errors.New("cannot export, no scope")
)

// DraftSource provides not-yet-persisted editor content keyed by unit.
type DraftSource interface {
	PendingDrafts() map[storekey.Unit]string
}

// Aggregator walks the stores and builds export envelopes.
type Aggregator struct {
	store  *store.Store
	drafts DraftSource // optional
}

// New creates an Aggregator. drafts may be nil when no live editor exists
// (CLI exports).
func New(s *store.Store, drafts DraftSource) *Aggregator {
	return &Aggregator{store: s, drafts: drafts}
}

// GatherAll builds an envelope over every known assignment.
func (a *Aggregator) GatherAll(identifier string) (*model.ExportEnvelope, error) {
	return a.gather(identifier, "")
}

// GatherAssignment builds an envelope scoped to one assignment.
func (a *Aggregator) GatherAssignment(identifier, assignmentID string) (*model.ExportEnvelope, error) {
	if assignmentID == "" {
		return nil, ErrNoScope
	}
	return a.gather(identifier, assignmentID)
}

func (a *Aggregator) gather(identifier, assignmentID string) (*model.ExportEnvelope, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, ErrNoIdentifier
	}

	units, err := a.store.EnumerateUnits(assignmentID)
	if err != nil {
		return nil, err
	}

	var attachments []model.Attachment
	if assignmentID == "" {
		attachments, err = a.store.ListAllAttachments()
	} else {
		attachments, err = a.store.ListAttachmentsByAssignment(assignmentID)
	}
	if err != nil {
		return nil, err
	}

	// Units can exist through attachments alone, with no stored entry.
	inScope := make(map[storekey.Unit]bool, len(units))
	for _, u := range units {
		inScope[u] = true
	}
	for _, att := range attachments {
		inScope[storekey.Unit{AssignmentID: att.AssignmentID, SubID: att.SubID}] = true
	}

	drafts := map[storekey.Unit]string{}
	if a.drafts != nil {
		drafts = a.drafts.PendingDrafts()
		for u, html := range drafts {
			if html == "" || html == store.EmptyEditorSentinel {
				continue
			}
			if assignmentID != "" && u.AssignmentID != assignmentID {
				continue
			}
			inScope[u] = true
		}
	}

	payload := model.DataStore{}
	for u := range inScope {
		answer, _, err := a.store.LoadAnswer(u)
		if err != nil {
			return nil, err
		}
		if draft, ok := drafts[u]; ok && draft != "" && draft != store.EmptyEditorSentinel {
			answer = draft
		}
		questions, _, err := a.store.LoadQuestionSnapshot(u)
		if err != nil {
			return nil, err
		}

		unit := &model.UnitData{Answer: answer, Questions: questions}
		for _, att := range attachments {
			if att.AssignmentID == u.AssignmentID && att.SubID == u.SubID {
				unit.Attachments = append(unit.Attachments, att.ExportCopy())
			}
		}
		if unit.Empty() {
			continue
		}
		*payload.Unit(u.AssignmentID, u.SubID) = *unit
	}

	if len(payload) == 0 {
		return nil, ErrNoData
	}

	env := &model.ExportEnvelope{
		Identifier:   identifier,
		AssignmentID: assignmentID,
		Payload:      payload,
		CreatedAt:    time.Now().UTC(),
	}
	// Best effort: an unsignable payload still exports, just unsigned.
	if sig, err := canonical.Sign(payload); err != nil {
		slog.Error("signing export payload failed", "error", err)
	} else {
		env.Signature = &sig
	}
	return env, nil
}
