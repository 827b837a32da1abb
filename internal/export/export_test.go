package export

import (
	"errors"
	"testing"

	"github.com/aburossi/textboxv2/internal/canonical"
	"github.com/aburossi/textboxv2/internal/model"
	"github.com/aburossi/textboxv2/internal/store"
	"github.com/aburossi/textboxv2/internal/storekey"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type staticDrafts map[storekey.Unit]string

func (d staticDrafts) PendingDrafts() map[storekey.Unit]string { return d }

func TestGatherRequiresIdentifier(t *testing.T) {
	agg := New(newTestStore(t), nil)
	for _, id := range []string{"", "   "} {
		if _, err := agg.GatherAll(id); !errors.Is(err, ErrNoIdentifier) {
			t.Errorf("GatherAll(%q) = %v, want ErrNoIdentifier", id, err)
		}
	}
}

func TestGatherAssignmentRequiresScope(t *testing.T) {
	agg := New(newTestStore(t), nil)
	if _, err := agg.GatherAssignment("jana", ""); !errors.Is(err, ErrNoScope) {
		t.Errorf("GatherAssignment with empty id = %v, want ErrNoScope", err)
	}
}

func TestGatherEmptyStore(t *testing.T) {
	agg := New(newTestStore(t), nil)
	if _, err := agg.GatherAll("jana"); !errors.Is(err, ErrNoData) {
		t.Errorf("GatherAll on empty store = %v, want ErrNoData", err)
	}
}

func TestGatherAllBuildsEnvelope(t *testing.T) {
	s := newTestStore(t)
	u := storekey.Unit{AssignmentID: "math_101", SubID: "algebra"}
	if _, err := s.SaveAnswer(u, "<p>Hello</p>"); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if _, err := s.SaveQuestionSnapshot(u, map[string]string{"question1": "What is x?"}); err != nil {
		t.Fatalf("SaveQuestionSnapshot: %v", err)
	}

	env, err := New(s, nil).GatherAll("jana")
	if err != nil {
		t.Fatalf("GatherAll: %v", err)
	}
	if env.Identifier != "jana" || env.AssignmentID != "" {
		t.Errorf("envelope header = %+v", env)
	}
	if env.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	unit := env.Payload["math_101"]["algebra"]
	if unit == nil || unit.Answer != "<p>Hello</p>" || unit.Questions["question1"] != "What is x?" {
		t.Fatalf("payload unit = %+v", unit)
	}

	// The signature must verify against the payload.
	if env.Signature == nil {
		t.Fatal("envelope unsigned")
	}
	want, err := canonical.Sign(env.Payload)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if *env.Signature != want {
		t.Errorf("signature = %s, want %s", *env.Signature, want)
	}
}

func TestGatherIncludesAttachmentOnlyUnits(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AddAttachment(model.Attachment{
		AssignmentID: "art", SubID: "collage",
		FileName: "photo.jpg", FileType: "image/jpeg", Data: "data:...",
	}); err != nil {
		t.Fatalf("AddAttachment: %v", err)
	}

	env, err := New(s, nil).GatherAll("jana")
	if err != nil {
		t.Fatalf("GatherAll: %v", err)
	}
	unit := env.Payload["art"]["collage"]
	if unit == nil || len(unit.Attachments) != 1 {
		t.Fatalf("attachment-only unit missing: %+v", env.Payload)
	}
	// Exported attachments carry no surrogate id.
	if unit.Attachments[0].ID != 0 || unit.Attachments[0].AssignmentID != "" {
		t.Errorf("exported attachment kept store fields: %+v", unit.Attachments[0])
	}
}

func TestGatherAssignmentScopesPayload(t *testing.T) {
	s := newTestStore(t)
	in := storekey.Unit{AssignmentID: "keep", SubID: "s"}
	out := storekey.Unit{AssignmentID: "drop", SubID: "s"}
	for _, u := range []storekey.Unit{in, out} {
		if _, err := s.SaveAnswer(u, "<p>x</p>"); err != nil {
			t.Fatalf("SaveAnswer: %v", err)
		}
	}
	if _, err := s.AddAttachment(model.Attachment{AssignmentID: "drop", SubID: "s", FileName: "f", Data: "d"}); err != nil {
		t.Fatalf("AddAttachment: %v", err)
	}

	env, err := New(s, nil).GatherAssignment("jana", "keep")
	if err != nil {
		t.Fatalf("GatherAssignment: %v", err)
	}
	if env.AssignmentID != "keep" {
		t.Errorf("AssignmentID = %q", env.AssignmentID)
	}
	if _, ok := env.Payload["drop"]; ok {
		t.Error("out-of-scope assignment leaked into payload")
	}
	if _, ok := env.Payload["keep"]; !ok {
		t.Error("in-scope assignment missing from payload")
	}
}

func TestGatherPendingDraftOverridesStored(t *testing.T) {
	s := newTestStore(t)
	u := storekey.Unit{AssignmentID: "essay", SubID: "draft"}
	if _, err := s.SaveAnswer(u, "<p>old flush</p>"); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}

	drafts := staticDrafts{u: "<p>live buffer</p>"}
	env, err := New(s, drafts).GatherAll("jana")
	if err != nil {
		t.Fatalf("GatherAll: %v", err)
	}
	if got := env.Payload["essay"]["draft"].Answer; got != "<p>live buffer</p>" {
		t.Errorf("answer = %q, want the pending draft", got)
	}
}

func TestGatherDraftOnlyUnitAppears(t *testing.T) {
	s := newTestStore(t)
	u := storekey.Unit{AssignmentID: "essay", SubID: "new"}
	drafts := staticDrafts{u: "<p>unflushed</p>"}

	env, err := New(s, drafts).GatherAll("jana")
	if err != nil {
		t.Fatalf("GatherAll: %v", err)
	}
	if got := env.Payload["essay"]["new"].Answer; got != "<p>unflushed</p>" {
		t.Errorf("draft-only unit answer = %q", got)
	}
}

func TestGatherSentinelDraftIgnored(t *testing.T) {
	s := newTestStore(t)
	u := storekey.Unit{AssignmentID: "essay", SubID: "blank"}
	drafts := staticDrafts{u: store.EmptyEditorSentinel}

	if _, err := New(s, drafts).GatherAll("jana"); !errors.Is(err, ErrNoData) {
		t.Error("sentinel-only draft should not make the export non-empty")
	}
}
