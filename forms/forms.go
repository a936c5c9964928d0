// Package forms governs the lifecycle of a form: starting it on an active
// survey, storing its answers while it is open, and submitting it once
// every question is answered. Operations run in one transaction each.
package forms

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-survey-forms/errs"
	"github.com/mbolis/quick-survey-forms/log"
	"github.com/mbolis/quick-survey-forms/model"
	"github.com/mbolis/quick-survey-forms/store"
	"github.com/mbolis/quick-survey-forms/validation"
)

type Service struct {
	db *sql.DB
	// Now is the clock used for activity checks and submission dates.
	Now func() time.Time
	// NewToken generates form tokens.
	NewToken func() (string, error)
}

func NewService(db *sql.DB) *Service {
	return &Service{
		db:       db,
		Now:      time.Now,
		NewToken: newToken,
	}
}

// newToken returns a random 128-bit identifier, so that forms cannot be
// enumerated.
func newToken() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", errors.Wrap(err, "forms.new_token")
	}
	return id.String(), nil
}

func (s *Service) Start(ctx context.Context, surveyID int64) (form model.Form, err error) {
	now := s.Now()
	err = store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		survey, err := store.GetSurvey(ctx, tx, surveyID)
		if err != nil {
			return err
		}
		if !survey.IsActiveAt(now) {
			return errs.PreconditionFailed("forms.start.inactive", "survey is not active")
		}

		token, err := s.NewToken()
		if err != nil {
			return err
		}
		form = model.Form{Token: token, SurveyID: survey.ID}
		return store.InsertForm(ctx, tx, form, now)
	})
	if err != nil {
		return model.Form{}, err
	}

	log.Debugf("forms.start: form %s started on survey %d", form.Token, surveyID)
	return form, nil
}

func (s *Service) Get(ctx context.Context, token string) (model.Form, error) {
	return store.GetForm(ctx, s.db, token)
}

func (s *Service) List(ctx context.Context) ([]model.Form, error) {
	return store.ListForms(ctx, s.db)
}

// Survey returns the survey the form was started on.
func (s *Service) Survey(ctx context.Context, token string) (model.Survey, error) {
	form, err := store.GetForm(ctx, s.db, token)
	if err != nil {
		return model.Survey{}, err
	}
	return store.GetSurvey(ctx, s.db, form.SurveyID)
}

// Questions returns the questions to answer in the form.
func (s *Service) Questions(ctx context.Context, token string) ([]model.Question, error) {
	form, err := store.GetForm(ctx, s.db, token)
	if err != nil {
		return nil, err
	}
	return store.ListQuestions(ctx, s.db, form.SurveyID)
}

const (
	maxNameLength = 128
	maxAge        = 32767
)

func validateRespondent(r model.Respondent) error {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	switch {
	case r.FirstName == "":
		return errs.Validation("respondent.first_name.required", "`first_name` is required")
	case r.LastName == "":
		return errs.Validation("respondent.last_name.required", "`last_name` is required")
	case len(r.FirstName) > maxNameLength:
		return errs.Validation("respondent.first_name.length", "`first_name` must be at most %d characters", maxNameLength)
	case len(r.LastName) > maxNameLength:
		return errs.Validation("respondent.last_name.length", "`last_name` must be at most %d characters", maxNameLength)
	case r.Age < 0 || r.Age > maxAge:
		return errs.Validation("respondent.age.range", "`age` must be between 0 and %d", maxAge)
	}
	return nil
}

// AttachRespondent creates the respondent of the form, or updates the one
// already attached. It is allowed whether or not the form is submitted.
func (s *Service) AttachRespondent(ctx context.Context, token string, r model.Respondent) (form model.Form, respondent model.Respondent, err error) {
	if err = validateRespondent(r); err != nil {
		return
	}
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)

	err = store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		form, err = store.GetForm(ctx, tx, token)
		if err != nil {
			return err
		}

		if form.RespondentID != nil {
			r.ID = *form.RespondentID
			return store.UpdateRespondent(ctx, tx, &r)
		}

		if err = store.InsertRespondent(ctx, tx, &r); err != nil {
			return err
		}
		form.RespondentID = &r.ID
		return store.SetFormRespondent(ctx, tx, token, r.ID)
	})
	if err != nil {
		return model.Form{}, model.Respondent{}, err
	}

	log.Debugf("forms.attach_respondent: respondent %d attached to form %s", r.ID, token)
	return form, r, nil
}

// Respondent returns the respondent attached to the form.
func (s *Service) Respondent(ctx context.Context, token string) (model.Respondent, error) {
	form, err := store.GetForm(ctx, s.db, token)
	if err != nil {
		return model.Respondent{}, err
	}
	if form.RespondentID == nil {
		return model.Respondent{}, errs.NotFound("respondent.not_found", "form %s has no respondent", token)
	}
	return store.GetRespondent(ctx, s.db, *form.RespondentID)
}

func (s *Service) ListAnswers(ctx context.Context, token string) ([]model.FormAnswer, error) {
	if _, err := store.GetForm(ctx, s.db, token); err != nil {
		return nil, err
	}
	return store.ListAnswers(ctx, s.db, token)
}

func (s *Service) GetAnswer(ctx context.Context, answerID int64) (model.FormAnswer, error) {
	return store.GetAnswer(ctx, s.db, answerID)
}

// ListAllAnswers returns the answers of every form.
func (s *Service) ListAllAnswers(ctx context.Context) ([]model.FormAnswer, error) {
	return store.ListAllAnswers(ctx, s.db)
}

func openForm(ctx context.Context, q store.Querier, token string) (model.Form, error) {
	form, err := store.GetForm(ctx, q, token)
	if err != nil {
		return form, err
	}
	if form.Submitted {
		return form, errs.Conflict("forms.submitted", "form already submitted")
	}
	return form, nil
}

// CreateAnswer stores the answer to one question of an open form.
func (s *Service) CreateAnswer(ctx context.Context, token string, in model.AnswerInput) (answer model.FormAnswer, err error) {
	err = store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		form, err := openForm(ctx, tx, token)
		if err != nil {
			return err
		}

		if in.Question == nil {
			return errs.Validation("answer.question.required", "`question` is required")
		}
		question, err := store.GetQuestion(ctx, tx, *in.Question)
		if errs.Is(err, errs.KindNotFound) {
			return errs.Validation("answer.question.not_found", "invalid question %d: object does not exist", *in.Question)
		}
		if err != nil {
			return err
		}
		if question.SurveyID != form.SurveyID {
			return errs.Validation("answer.question.foreign", "question %d does not belong to the form survey", question.ID)
		}

		payload, err := validation.Validate(question, in)
		if err != nil {
			return err
		}

		answer = model.FormAnswer{FormToken: form.Token, QuestionID: question.ID, AnswerPayload: payload}
		return store.InsertAnswer(ctx, tx, &answer)
	})
	if err != nil {
		return model.FormAnswer{}, err
	}

	log.Debugf("forms.create_answer: answer %d to question %d stored in form %s", answer.ID, answer.QuestionID, token)
	return answer, nil
}

// BatchError reports the failure of one item of CreateAnswers.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return e.Err.Error()
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// CreateAnswers stores each answer independently: a failing item does not
// undo the items stored before it. The returned error, if any, is a
// *multierror.Error of *BatchError.
func (s *Service) CreateAnswers(ctx context.Context, token string, in []model.AnswerInput) ([]model.FormAnswer, error) {
	var result *multierror.Error
	answers := []model.FormAnswer{}
	for i, item := range in {
		answer, err := s.CreateAnswer(ctx, token, item)
		if err != nil {
			result = multierror.Append(result, &BatchError{Index: i, Err: err})
			continue
		}
		answers = append(answers, answer)
	}
	return answers, result.ErrorOrNil()
}

// UpdateAnswer replaces the payload of an existing answer. Fields omitted
// from the input keep their stored value.
func (s *Service) UpdateAnswer(ctx context.Context, answerID int64, in model.AnswerInput) (answer model.FormAnswer, err error) {
	err = store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		answer, err = store.GetAnswer(ctx, tx, answerID)
		if err != nil {
			return err
		}
		if _, err = openForm(ctx, tx, answer.FormToken); err != nil {
			return err
		}
		if in.Question != nil && *in.Question != answer.QuestionID {
			return errs.Validation("answer.question.immutable", "changing `question` is not allowed")
		}

		question, err := store.GetQuestion(ctx, tx, answer.QuestionID)
		if err != nil {
			return err
		}
		payload, err := validation.Validate(question, validation.Merge(answer.AnswerPayload, in))
		if err != nil {
			return err
		}

		answer.AnswerPayload = payload
		return store.UpdateAnswer(ctx, tx, &answer)
	})
	if err != nil {
		return model.FormAnswer{}, err
	}

	log.Debugf("forms.update_answer: answer %d updated in form %s", answer.ID, answer.FormToken)
	return answer, nil
}

func (s *Service) DeleteAnswer(ctx context.Context, answerID int64) error {
	return store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		answer, err := store.GetAnswer(ctx, tx, answerID)
		if err != nil {
			return err
		}
		if _, err = openForm(ctx, tx, answer.FormToken); err != nil {
			return err
		}
		return store.DeleteAnswer(ctx, tx, answerID)
	})
}

// Submit finalizes the form once every question of its survey is answered.
func (s *Service) Submit(ctx context.Context, token string) (form model.Form, err error) {
	now := s.Now()
	err = store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		form, err = openForm(ctx, tx, token)
		if err != nil {
			return err
		}

		unanswered, err := store.CountUnanswered(ctx, tx, form)
		if err != nil {
			return err
		}
		if unanswered > 0 {
			return errs.Validation("forms.submit.incomplete", "form is incomplete: %d left", unanswered)
		}

		ok, err := store.SubmitForm(ctx, tx, token, now)
		if err != nil {
			return err
		}
		if !ok {
			return errs.Conflict("forms.submitted", "form already submitted")
		}

		form.Submitted = true
		form.SubmittedDate = &now
		return nil
	})
	if err != nil {
		return model.Form{}, err
	}

	log.WithField("form", token).Debugf("forms.submit: submitted at %s", form.SubmittedDate.Format(time.RFC3339))
	return form, nil
}
