// Package validation checks answer payloads against the question they answer.
package validation

import (
	"sort"

	"github.com/mbolis/quick-survey-forms/errs"
	"github.com/mbolis/quick-survey-forms/model"
)

type rule func(q model.Question, in model.AnswerInput) (model.AnswerPayload, error)

var rules = map[model.QuestionType]rule{
	model.Text:     validateText,
	model.Choice:   validateChoice,
	model.Checkbox: validateCheckbox,
}

// Validate checks in against q and returns the payload to persist.
func Validate(q model.Question, in model.AnswerInput) (model.AnswerPayload, error) {
	validate, ok := rules[q.Type]
	if !ok {
		return model.AnswerPayload{}, errs.Validation("answer.question_type",
			"unsupported question type %d", int(q.Type))
	}
	return validate(q, in)
}

// Merge fills the fields omitted from patch with the persisted payload, so
// that an update is validated as the full resulting answer.
func Merge(current model.AnswerPayload, patch model.AnswerInput) model.AnswerInput {
	if patch.Text == nil && current.Text != "" {
		text := current.Text
		patch.Text = &text
	}
	if patch.Choice == nil && current.Choice != nil {
		choice := *current.Choice
		patch.Choice = &choice
	}
	if patch.Choices == nil && len(current.Choices) > 0 {
		choices := append([]int64(nil), current.Choices...)
		patch.Choices = &choices
	}
	return patch
}

func hasText(in model.AnswerInput) bool {
	return in.Text != nil && *in.Text != ""
}

func hasChoices(in model.AnswerInput) bool {
	return in.Choices != nil && len(*in.Choices) > 0
}

func notAllowed(field string) error {
	return errs.Validation("answer."+field+".not_allowed", "`%s` field not allowed", field)
}

func required(field string) error {
	return errs.Validation("answer."+field+".required", "`%s` is required", field)
}

func validateText(q model.Question, in model.AnswerInput) (model.AnswerPayload, error) {
	switch {
	case in.Choice != nil:
		return model.AnswerPayload{}, notAllowed("choice")
	case hasChoices(in):
		return model.AnswerPayload{}, notAllowed("choices")
	case !hasText(in):
		return model.AnswerPayload{}, required("text")
	}
	return model.AnswerPayload{Text: *in.Text}, nil
}

func validateChoice(q model.Question, in model.AnswerInput) (model.AnswerPayload, error) {
	switch {
	case hasText(in):
		return model.AnswerPayload{}, notAllowed("text")
	case hasChoices(in):
		return model.AnswerPayload{}, notAllowed("choices")
	case in.Choice == nil:
		return model.AnswerPayload{}, required("choice")
	}

	if !q.HasOption(*in.Choice) {
		return model.AnswerPayload{}, errs.Validation("answer.choice.foreign",
			"`choice` should be in question choices")
	}
	choice := *in.Choice
	return model.AnswerPayload{Choice: &choice}, nil
}

func validateCheckbox(q model.Question, in model.AnswerInput) (model.AnswerPayload, error) {
	switch {
	case hasText(in):
		return model.AnswerPayload{}, notAllowed("text")
	case in.Choice != nil:
		return model.AnswerPayload{}, notAllowed("choice")
	case !hasChoices(in):
		return model.AnswerPayload{}, required("choices")
	}

	seen := make(map[int64]bool, len(*in.Choices))
	var choices, foreign []int64
	for _, id := range *in.Choices {
		if seen[id] {
			continue
		}
		seen[id] = true

		if q.HasOption(id) {
			choices = append(choices, id)
		} else {
			foreign = append(foreign, id)
		}
	}
	if len(foreign) > 0 {
		return model.AnswerPayload{}, errs.Validation("answer.choices.foreign",
			"`choices` should be in question choices: %v", foreign)
	}

	sort.Slice(choices, func(i, j int) bool { return choices[i] < choices[j] })
	return model.AnswerPayload{Choices: choices}, nil
}

// Options checks that a question of type t can be created with the given
// number of options.
func Options(t model.QuestionType, n int) error {
	if !t.Valid() {
		return errs.Validation("question.type", "`type` must be one of 1 (Text), 2 (Choice), 3 (Checkbox)")
	}
	if t.HasOptions() && n == 0 {
		return errs.Validation("question.answers.required",
			"`answers` is required for %s questions", t)
	}
	return nil
}
