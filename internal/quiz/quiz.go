// Package quiz loads and grades quiz definition files (MultipleChoice and
// TrueFalse questions with per-option feedback).
package quiz

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strconv"

	"github.com/aburossi/textboxv2/internal/model"
)

// Load reads and validates a quiz definition file.
func Load(path string) (*model.QuizDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return def, nil
}

// Parse decodes and validates a quiz definition.
func Parse(data []byte) (*model.QuizDefinition, error) {
	var def model.QuizDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the structural requirements of a definition.
func Validate(def *model.QuizDefinition) error {
	if def.AssignmentID == "" || def.SubID == "" {
		return fmt.Errorf("quiz must carry assignmentId and subId")
	}
	if len(def.Questions) == 0 {
		return fmt.Errorf("quiz has no questions")
	}
	for i, q := range def.Questions {
		switch q.Type {
		case model.QuizMultipleChoice:
			if len(q.Options) < 2 {
				return fmt.Errorf("question %d: MultipleChoice needs at least 2 options", i)
			}
			correct := false
			for _, opt := range q.Options {
				if opt.IsCorrect {
					correct = true
					break
				}
			}
			if !correct {
				return fmt.Errorf("question %d: no option marked correct", i)
			}
		case model.QuizTrueFalse:
			if q.CorrectAnswer == nil {
				return fmt.Errorf("question %d: TrueFalse needs correct_answer", i)
			}
		default:
			return fmt.Errorf("question %d: unknown type %q", i, q.Type)
		}
	}
	return nil
}

// Shuffle randomizes question order in place.
func Shuffle(questions []model.QuizQuestion) {
	rand.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
}

// QuestionFeedback is the graded outcome of one answered question.
type QuestionFeedback struct {
	Key      string `json:"key"`
	Correct  bool   `json:"correct"`
	Feedback string `json:"feedback,omitempty"`
}

// Result is the graded outcome of a quiz run.
type Result struct {
	Total     int                `json:"total"`
	Answered  int                `json:"answered"`
	Correct   int                `json:"correct"`
	Questions []QuestionFeedback `json:"questions"`
}

// Grade evaluates saved selections against a definition. Selections with an
// unknown key or an unparseable answer count as answered but wrong.
func Grade(def *model.QuizDefinition, state model.QuizState) Result {
	res := Result{Total: len(def.Questions)}
	for i, q := range def.Questions {
		key := "q" + strconv.Itoa(i)
		sel, ok := state.AnsweredQuestions[key]
		if !ok {
			continue
		}
		res.Answered++

		fb := QuestionFeedback{Key: key}
		switch q.Type {
		case model.QuizMultipleChoice:
			if idx, err := strconv.Atoi(sel.Answer); err == nil && idx >= 0 && idx < len(q.Options) {
				fb.Correct = q.Options[idx].IsCorrect
				fb.Feedback = q.Options[idx].Feedback
			}
		case model.QuizTrueFalse:
			fb.Correct = sel.Answer == strconv.FormatBool(*q.CorrectAnswer)
			if fb.Correct {
				fb.Feedback = q.FeedbackCorrect
			} else {
				fb.Feedback = q.FeedbackIncorrect
			}
		}
		if fb.Correct {
			res.Correct++
		}
		res.Questions = append(res.Questions, fb)
	}
	return res
}
