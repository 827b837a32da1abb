// Package storekey encodes and decodes the composite string keys under which
// answers, question snapshots, and quiz state are persisted. All scoping goes
// through the Unit pair (assignment id, sub id); the string form exists only at
// the storage boundary.
package storekey

import (
	"fmt"
	"strings"
)

// Kind selects the value category stored under a key.
type Kind string

const (
	// KindAnswer is the rich-text answer for a unit.
	KindAnswer Kind = "answer"
	// KindQuestions is the question snapshot captured from the launching context.
	KindQuestions Kind = "questions"
	// KindQuizState is the saved selection state of a quiz run.
	KindQuizState Kind = "quizstate"
)

const (
	answerPrefix    = "textbox-assignment_"
	questionsPrefix = "textbox-questions_"
	quizStatePrefix = "textbox-quizdata_"

	// subToken separates the assignment id from the sub id inside a key.
	// Identifiers containing this token are rejected at Encode time; the
	// historical format never guarded against the collision.
	subToken = "_textbox-sub_"
)

// Unit is the (assignment id, sub id) pair under which one answer, one
// question snapshot, and zero or more attachments are grouped.
type Unit struct {
	AssignmentID string
	SubID        string
}

// Key is a decoded storage key.
type Key struct {
	Kind Kind
	Unit Unit
}

func prefixFor(kind Kind) string {
	switch kind {
	case KindAnswer:
		return answerPrefix
	case KindQuestions:
		return questionsPrefix
	case KindQuizState:
		return quizStatePrefix
	}
	return ""
}

// Validate reports whether the unit's identifiers are usable as key parts.
func Validate(u Unit) error {
	if u.AssignmentID == "" || u.SubID == "" {
		return fmt.Errorf("assignment id and sub id must be non-empty")
	}
	if strings.Contains(u.AssignmentID, subToken) {
		return fmt.Errorf("assignment id %q contains reserved token %q", u.AssignmentID, subToken)
	}
	if strings.Contains(u.SubID, subToken) {
		return fmt.Errorf("sub id %q contains reserved token %q", u.SubID, subToken)
	}
	return nil
}

// Encode produces the storage key for a kind and unit.
func Encode(kind Kind, u Unit) (string, error) {
	prefix := prefixFor(kind)
	if prefix == "" {
		return "", fmt.Errorf("unknown key kind %q", kind)
	}
	if err := Validate(u); err != nil {
		return "", err
	}
	return prefix + u.AssignmentID + subToken + u.SubID, nil
}

// Decode inverts Encode. It returns false for keys that do not match any known
// prefix or that lack the separator token. The assignment id is taken up to
// the first occurrence of the separator.
func Decode(s string) (Key, bool) {
	for _, kind := range []Kind{KindAnswer, KindQuestions, KindQuizState} {
		prefix := prefixFor(kind)
		rest, found := strings.CutPrefix(s, prefix)
		if !found {
			continue
		}
		aid, sid, found := strings.Cut(rest, subToken)
		if !found || aid == "" || sid == "" {
			return Key{}, false
		}
		return Key{Kind: kind, Unit: Unit{AssignmentID: aid, SubID: sid}}, true
	}
	return Key{}, false
}
