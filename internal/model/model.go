// Package model holds the shared data types of the answer store: attachments,
// the nested export payload, the signed export envelope, and the quiz
// definition format.
package model

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// Attachment is one binary object (image or file) stored for a unit. Data is
// an inline-encoded data URL. ID is assigned by the store and never reused;
// exported copies carry no id.
type Attachment struct {
	ID           int64  `json:"id,omitempty"`
	AssignmentID string `json:"assignmentId,omitempty"`
	SubID        string `json:"subId,omitempty"`
	FileName     string `json:"fileName"`
	FileType     string `json:"fileType"`
	Data         string `json:"data"`
}

// ExportCopy returns the attachment stripped of its surrogate id and scoping
// fields, the shape emitted inside an export payload.
func (a Attachment) ExportCopy() Attachment {
	return Attachment{FileName: a.FileName, FileType: a.FileType, Data: a.Data}
}

// UnitData groups everything persisted for one (assignment, sub) unit.
// Absent fields are omitted from exports.
type UnitData struct {
	Answer      string            `json:"answer,omitempty"`
	Questions   map[string]string `json:"questions,omitempty"`
	Attachments []Attachment      `json:"attachments,omitempty"`
}

// Empty reports whether the unit carries no exportable content.
func (u *UnitData) Empty() bool {
	return u == nil || (u.Answer == "" && len(u.Questions) == 0 && len(u.Attachments) == 0)
}

// DataStore is the nested payload shape: assignment id -> sub id -> unit data.
// It is both the export payload and the accepted backup file format.
type DataStore map[string]map[string]*UnitData

// Unit returns the UnitData for the pair, creating intermediate maps as needed.
func (d DataStore) Unit(assignmentID, subID string) *UnitData {
	subs, ok := d[assignmentID]
	if !ok {
		subs = make(map[string]*UnitData)
		d[assignmentID] = subs
	}
	u, ok := subs[subID]
	if !ok {
		u = &UnitData{}
		subs[subID] = u
	}
	return u
}

// ExportEnvelope is the signed, timestamped wrapper around an export payload.
// Signature is the hex SHA-256 of the canonical serialization of Payload, or
// null when the digest could not be computed.
type ExportEnvelope struct {
	Identifier   string    `json:"identifier"`
	AssignmentID string    `json:"assignmentId,omitempty"`
	Payload      DataStore `json:"payload"`
	Signature    *string   `json:"signature"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SubmitResult is the response of the remote submission endpoint.
type SubmitResult struct {
	Status      string `json:"status"`
	FileName    string `json:"fileName,omitempty"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	FolderURL   string `json:"folderUrl,omitempty"`
	Message     string `json:"message,omitempty"`
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	SubmitURL     string        // remote submission endpoint, empty disables submission
	QuizDir       string        // directory containing quiz definition JSON files
	AutosaveDelay time.Duration // trailing-edge debounce window for answer writes
	Lang          string        // UI language for status messages
}

// QuizQuestionType discriminates quiz question kinds.
type QuizQuestionType string

const (
	QuizMultipleChoice QuizQuestionType = "MultipleChoice"
	QuizTrueFalse      QuizQuestionType = "TrueFalse"
)

// QuizDefinition is a loaded quiz file.
type QuizDefinition struct {
	AssignmentID    string         `json:"assignmentId"`
	SubID           string         `json:"subId"`
	Title           string         `json:"title,omitempty"`
	CustomIntroText string         `json:"customIntroText,omitempty"`
	Questions       []QuizQuestion `json:"questions"`
}

// QuizQuestion is one question in a quiz definition. Options is set for
// MultipleChoice; CorrectAnswer and the feedback pair for TrueFalse.
type QuizQuestion struct {
	Type              QuizQuestionType `json:"type"`
	Question          string           `json:"question"`
	Options           []QuizOption     `json:"options,omitempty"`
	CorrectAnswer     *bool            `json:"correct_answer,omitempty"`
	FeedbackCorrect   string           `json:"feedback_correct,omitempty"`
	FeedbackIncorrect string           `json:"feedback_incorrect,omitempty"`
}

// QuizOption is one selectable answer of a MultipleChoice question.
type QuizOption struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
	Feedback  string `json:"feedback,omitempty"`
}

// QuizState is the persisted selection state of a quiz run, keyed by the
// positional question key ("q0", "q1", ...).
type QuizState struct {
	AnsweredQuestions map[string]QuizAnswer `json:"answeredQuestions"`
}

// QuizAnswer records one selection. Answer is the option index for
// MultipleChoice or "true"/"false" for TrueFalse.
type QuizAnswer struct {
	Question string           `json:"question"`
	Type     QuizQuestionType `json:"type"`
	Answer   string           `json:"answer"`
}

// OrderedQuestionKeys returns the snapshot keys sorted by the numeric ordinal
// embedded in them, so "question10" follows "question2". Keys without a
// parseable ordinal sort after numbered ones, in plain string order.
func OrderedQuestionKeys(questions map[string]string) []string {
	keys := make([]string, 0, len(questions))
	for k := range questions {
		keys = append(keys, k)
	}
	ordinal := func(k string) (int, bool) {
		n, err := strconv.Atoi(strings.TrimPrefix(k, "question"))
		return n, err == nil
	}
	slices.SortFunc(keys, func(a, b string) int {
		na, aok := ordinal(a)
		nb, bok := ordinal(b)
		switch {
		case aok && bok:
			return na - nb
		case aok:
			return -1
		case bok:
			return 1
		default:
			return strings.Compare(a, b)
		}
	})
	return keys
}

// NaturalLess compares strings with embedded digit runs numerically, so
// "Thema 2" sorts before "Thema 10". Used for ordering units in listings.
func NaturalLess(a, b string) bool {
	for a != "" && b != "" {
		if isDigit(a[0]) && isDigit(b[0]) {
			na, ra := leadingInt(a)
			nb, rb := leadingInt(b)
			if na != nb {
				return na < nb
			}
			a, b = ra, rb
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func leadingInt(s string) (int, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	n, _ := strconv.Atoi(s[:i])
	return n, s[i:]
}
