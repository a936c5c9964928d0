package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type Survey struct {
	ID        int64     `json:"pk"`
	Title     string    `json:"title"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// IsActiveAt reports whether now falls within [StartDate, EndDate].
func (s Survey) IsActiveAt(now time.Time) bool {
	return !now.Before(s.StartDate) && !now.After(s.EndDate)
}

type QuestionType int

const (
	Text QuestionType = iota + 1
	Choice
	Checkbox
)

var questionTypeNames = map[QuestionType]string{
	Text:     "Text",
	Choice:   "Choice",
	Checkbox: "Checkbox",
}

func (t QuestionType) Valid() bool {
	_, ok := questionTypeNames[t]
	return ok
}

func (t QuestionType) String() string {
	if name, ok := questionTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("QuestionType(%d)", int(t))
}

// HasOptions reports whether answers to questions of this type select from
// predefined AnswerOptions.
func (t QuestionType) HasOptions() bool {
	return t == Choice || t == Checkbox
}

type Question struct {
	ID       int64          `json:"pk"`
	SurveyID int64          `json:"survey"`
	Type     QuestionType   `json:"type"`
	Text     string         `json:"text"`
	Answers  []AnswerOption `json:"answers"`
}

// HasOption reports whether optionID is one of the question's options.
func (q Question) HasOption(optionID int64) bool {
	for _, o := range q.Answers {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

type AnswerOption struct {
	ID         int64  `json:"pk"`
	QuestionID int64  `json:"question,omitempty"`
	Text       string `json:"text"`
}

type Respondent struct {
	ID        int64  `json:"pk"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Age       int    `json:"age"`
}

type Form struct {
	Token         string     `json:"pk"`
	SurveyID      int64      `json:"survey"`
	RespondentID  *int64     `json:"respondent"`
	Submitted     bool       `json:"submitted"`
	SubmittedDate *time.Time `json:"submitted_date"`
}

// AnswerPayload is the validated content of a FormAnswer. Exactly one field
// is populated, depending on the question type.
type AnswerPayload struct {
	Text    string
	Choice  *int64
	Choices []int64
}

type FormAnswer struct {
	ID         int64
	FormToken  string
	QuestionID int64
	AnswerPayload
}

func (a FormAnswer) MarshalJSON() ([]byte, error) {
	choices := a.Choices
	if choices == nil {
		choices = []int64{}
	}
	return json.Marshal(struct {
		ID       int64   `json:"pk"`
		Form     string  `json:"form"`
		Question int64   `json:"question"`
		Text     string  `json:"text"`
		Choice   *int64  `json:"choice"`
		Choices  []int64 `json:"choices"`
	}{a.ID, a.FormToken, a.QuestionID, a.Text, a.Choice, choices})
}

// AnswerInput is an answer as submitted by a client. Nil fields were omitted
// from the request.
type AnswerInput struct {
	Question *int64   `json:"question"`
	Text     *string  `json:"text"`
	Choice   *int64   `json:"choice"`
	Choices  *[]int64 `json:"choices"`
}
