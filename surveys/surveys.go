// Package surveys administers surveys, their questions and answer options,
// and selects the surveys open to respondents.
package surveys

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/mbolis/quick-survey-forms/errs"
	"github.com/mbolis/quick-survey-forms/log"
	"github.com/mbolis/quick-survey-forms/model"
	"github.com/mbolis/quick-survey-forms/store"
	"github.com/mbolis/quick-survey-forms/validation"
)

const (
	maxTitleLength        = 128
	maxQuestionTextLength = 512
	maxOptionTextLength   = 128
)

type Service struct {
	db  *sql.DB
	Now func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, Now: time.Now}
}

func checkText(code, field, value string, max int) error {
	switch {
	case strings.TrimSpace(value) == "":
		return errs.Validation(code+".required", "`%s` is required", field)
	case len(value) > max:
		return errs.Validation(code+".length", "`%s` must be at most %d characters", field, max)
	}
	return nil
}

func validateSurvey(s model.Survey) error {
	if err := checkText("survey.title", "title", s.Title, maxTitleLength); err != nil {
		return err
	}
	switch {
	case s.StartDate.IsZero():
		return errs.Validation("survey.start_date.required", "`start_date` is required")
	case s.EndDate.IsZero():
		return errs.Validation("survey.end_date.required", "`end_date` is required")
	case s.EndDate.Before(s.StartDate):
		return errs.Validation("survey.end_date.before_start", "`end_date` must not precede `start_date`")
	}
	return nil
}

// ListActive returns the surveys open at now, ordered by id.
func (s *Service) ListActive(ctx context.Context) ([]model.Survey, error) {
	return store.ListActiveSurveys(ctx, s.db, s.Now())
}

func (s *Service) Create(ctx context.Context, survey model.Survey) (model.Survey, error) {
	if err := validateSurvey(survey); err != nil {
		return model.Survey{}, err
	}
	if err := store.InsertSurvey(ctx, s.db, &survey); err != nil {
		return model.Survey{}, err
	}

	log.Debugf("surveys.create: survey %d created", survey.ID)
	return survey, nil
}

func (s *Service) List(ctx context.Context) ([]model.Survey, error) {
	return store.ListSurveys(ctx, s.db)
}

func (s *Service) Get(ctx context.Context, id int64) (model.Survey, error) {
	return store.GetSurvey(ctx, s.db, id)
}

// SurveyPatch holds the fields of an update request; nil fields are left
// unchanged.
type SurveyPatch struct {
	Title     *string    `json:"title"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

// Update changes title and end date. The start date cannot be changed once
// the survey exists.
func (s *Service) Update(ctx context.Context, id int64, patch SurveyPatch) (survey model.Survey, err error) {
	if patch.StartDate != nil {
		return model.Survey{}, errs.Validation("survey.start_date.immutable", "changing `start_date` is not allowed")
	}

	err = store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		survey, err = store.GetSurvey(ctx, tx, id)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			survey.Title = *patch.Title
		}
		if patch.EndDate != nil {
			survey.EndDate = *patch.EndDate
		}
		if err = validateSurvey(survey); err != nil {
			return err
		}
		return store.UpdateSurvey(ctx, tx, &survey)
	})
	if err != nil {
		return model.Survey{}, err
	}
	return survey, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := store.DeleteSurvey(ctx, s.db, id); err != nil {
		return err
	}
	log.Debugf("surveys.delete: survey %d deleted", id)
	return nil
}

func validateQuestion(q model.Question) error {
	if err := checkText("question.text", "text", q.Text, maxQuestionTextLength); err != nil {
		return err
	}
	if err := validation.Options(q.Type, len(q.Answers)); err != nil {
		return err
	}
	for _, o := range q.Answers {
		if err := checkText("answer_option.text", "text", o.Text, maxOptionTextLength); err != nil {
			return err
		}
	}
	return nil
}

// CreateQuestion adds q, with its answer options, to the survey.
func (s *Service) CreateQuestion(ctx context.Context, surveyID int64, q model.Question) (model.Question, error) {
	q.SurveyID = surveyID
	if q.Answers == nil {
		q.Answers = []model.AnswerOption{}
	}
	if err := validateQuestion(q); err != nil {
		return model.Question{}, err
	}

	err := store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		return store.InsertQuestion(ctx, tx, &q)
	})
	if err != nil {
		return model.Question{}, err
	}

	log.Debugf("surveys.create_question: question %d added to survey %d", q.ID, surveyID)
	return q, nil
}

func (s *Service) ListQuestions(ctx context.Context, surveyID int64) ([]model.Question, error) {
	if _, err := store.GetSurvey(ctx, s.db, surveyID); err != nil {
		return nil, err
	}
	return store.ListQuestions(ctx, s.db, surveyID)
}

func (s *Service) ListAllQuestions(ctx context.Context) ([]model.Question, error) {
	return store.ListAllQuestions(ctx, s.db)
}

func (s *Service) GetQuestion(ctx context.Context, id int64) (model.Question, error) {
	return store.GetQuestion(ctx, s.db, id)
}

type QuestionPatch struct {
	Survey *int64              `json:"survey"`
	Type   *model.QuestionType `json:"type"`
	Text   *string             `json:"text"`
}

// UpdateQuestion changes text and type of a question. A question cannot be
// moved to another survey, and its type is fixed once it has answers.
func (s *Service) UpdateQuestion(ctx context.Context, id int64, patch QuestionPatch) (q model.Question, err error) {
	err = store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		q, err = store.GetQuestion(ctx, tx, id)
		if err != nil {
			return err
		}
		if patch.Survey != nil && *patch.Survey != q.SurveyID {
			return errs.Validation("question.survey.immutable", "changing `survey` is not allowed")
		}
		if patch.Type != nil && *patch.Type != q.Type {
			answered, err := store.CountQuestionAnswers(ctx, tx, id)
			if err != nil {
				return err
			}
			if answered > 0 {
				return errs.Conflict("question.type.answered",
					"changing `type` is not allowed: question already answered")
			}
			q.Type = *patch.Type
		}
		if patch.Text != nil {
			q.Text = *patch.Text
		}
		if err = validateQuestion(q); err != nil {
			return err
		}
		return store.UpdateQuestion(ctx, tx, &q)
	})
	if err != nil {
		return model.Question{}, err
	}
	return q, nil
}

func (s *Service) DeleteQuestion(ctx context.Context, id int64) error {
	return store.DeleteQuestion(ctx, s.db, id)
}

func (s *Service) CreateOption(ctx context.Context, questionID int64, text string) (model.AnswerOption, error) {
	if err := checkText("answer_option.text", "text", text, maxOptionTextLength); err != nil {
		return model.AnswerOption{}, err
	}

	o := model.AnswerOption{QuestionID: questionID, Text: text}
	if err := store.InsertOption(ctx, s.db, &o); err != nil {
		return model.AnswerOption{}, err
	}
	return o, nil
}

func (s *Service) ListOptions(ctx context.Context, questionID int64) ([]model.AnswerOption, error) {
	if _, err := store.GetQuestion(ctx, s.db, questionID); err != nil {
		return nil, err
	}
	return store.ListOptions(ctx, s.db, questionID)
}

func (s *Service) GetOption(ctx context.Context, id int64) (model.AnswerOption, error) {
	return store.GetOption(ctx, s.db, id)
}

func (s *Service) UpdateOption(ctx context.Context, id int64, text string) (o model.AnswerOption, err error) {
	if err = checkText("answer_option.text", "text", text, maxOptionTextLength); err != nil {
		return
	}

	err = store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		o, err = store.GetOption(ctx, tx, id)
		if err != nil {
			return err
		}
		o.Text = text
		return store.UpdateOption(ctx, tx, &o)
	})
	if err != nil {
		return model.AnswerOption{}, err
	}
	return o, nil
}

// DeleteOption removes an answer option. The last option of a CHOICE or
// CHECKBOX question cannot be removed, nor can an option selected by any
// form answer.
func (s *Service) DeleteOption(ctx context.Context, id int64) error {
	return store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		o, err := store.GetOption(ctx, tx, id)
		if err != nil {
			return err
		}
		q, err := store.GetQuestion(ctx, tx, o.QuestionID)
		if err != nil {
			return err
		}
		if err = validation.Options(q.Type, len(q.Answers)-1); err != nil {
			return err
		}
		selected, err := store.CountOptionAnswers(ctx, tx, id)
		if err != nil {
			return err
		}
		if selected > 0 {
			return errs.Conflict("answer_option.selected",
				"answer option %d is selected by %d form answers", id, selected)
		}
		return store.DeleteOption(ctx, tx, id)
	})
}
