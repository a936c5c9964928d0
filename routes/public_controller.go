package routes

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-survey-forms/app"
	"github.com/mbolis/quick-survey-forms/errs"
	"github.com/mbolis/quick-survey-forms/forms"
	"github.com/mbolis/quick-survey-forms/httpx"
	"github.com/mbolis/quick-survey-forms/log"
	"github.com/mbolis/quick-survey-forms/model"
)

func ListActiveSurveys(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveys, err := app.Surveys.ListActive(r.Context())
		if err != nil {
			httpx.LogError(w, r, "surveys.list_active", err)
			return
		}

		render.JSON(w, r, surveys)
	}
}

func StartSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyId, err := idParam(r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		form, err := app.Forms.Start(r.Context(), surveyId)
		if err != nil {
			httpx.LogError(w, r, "forms.start", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, form)
	}
}

func PublicListSurveyQuestions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyId, err := idParam(r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		questions, err := app.Surveys.ListQuestions(r.Context(), surveyId)
		if err != nil {
			httpx.LogError(w, r, "surveys.list_questions", err)
			return
		}

		render.JSON(w, r, questions)
	}
}

func GetForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := app.Forms.Get(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			httpx.LogError(w, r, "forms.get", err)
			return
		}

		render.JSON(w, r, form)
	}
}

func GetFormSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		survey, err := app.Forms.Survey(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			httpx.LogError(w, r, "forms.get_survey", err)
			return
		}

		render.JSON(w, r, survey)
	}
}

func GetFormQuestions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questions, err := app.Forms.Questions(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			httpx.LogError(w, r, "forms.get_questions", err)
			return
		}

		render.JSON(w, r, questions)
	}
}

func GetFormRespondent(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondent, err := app.Forms.Respondent(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			httpx.LogError(w, r, "forms.get_respondent", err)
			return
		}

		render.JSON(w, r, respondent)
	}
}

// PutFormRespondent creates or replaces the respondent of a form. With
// partial set, fields missing from the body keep their current value.
func PutFormRespondent(app app.App, partial bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")

		respondent := model.Respondent{}
		if partial {
			current, err := app.Forms.Respondent(r.Context(), token)
			switch {
			case err == nil:
				respondent = current
			case !errs.Is(err, errs.KindNotFound):
				httpx.LogError(w, r, "forms.get_respondent", err)
				return
			}
		}

		err := render.DecodeJSON(r.Body, &respondent)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		_, respondent, err = app.Forms.AttachRespondent(r.Context(), token, respondent)
		if err != nil {
			httpx.LogError(w, r, "forms.attach_respondent", err)
			return
		}

		render.JSON(w, r, respondent)
	}
}

func ListFormAnswers(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		answers, err := app.Forms.ListAnswers(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			httpx.LogError(w, r, "forms.list_answers", err)
			return
		}

		render.JSON(w, r, answers)
	}
}

type batchItemError struct {
	Index int `json:"index"`
	httpx.ErrorBody
}

// batchFailures reports each failed item of a batch with its index, and the
// status of the first failure. Internal errors are logged and reported with
// a generic detail.
func batchFailures(merr *multierror.Error) (status int, failures []batchItemError) {
	failures = []batchItemError{}
	for i, itemErr := range merr.Errors {
		index := i
		var batchErr *forms.BatchError
		if errors.As(itemErr, &batchErr) {
			index = batchErr.Index
			itemErr = batchErr.Err
		}

		itemBody, ok := httpx.Body(itemErr)
		if !ok {
			log.Errorf("forms.create_answers.item: %d: %+v", index, itemErr)
			itemBody = httpx.ErrorBody{
				Kind:   errs.KindInternal.String(),
				Detail: http.StatusText(http.StatusInternalServerError),
			}
		}
		if status == 0 {
			status = httpx.Status(errs.KindOf(itemErr))
		}
		failures = append(failures, batchItemError{Index: index, ErrorBody: itemBody})
	}
	return
}

// CreateFormAnswers accepts a single answer object or an array of them.
// Array items are stored independently of each other.
func CreateFormAnswers(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")

		var body json.RawMessage
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("[")) {
			input := model.AnswerInput{}
			if err = json.Unmarshal(body, &input); err != nil {
				httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
				return
			}

			answer, err := app.Forms.CreateAnswer(r.Context(), token, input)
			if err != nil {
				httpx.LogError(w, r, "forms.create_answer", err)
				return
			}

			render.Status(r, http.StatusCreated)
			render.JSON(w, r, answer)
			return
		}

		inputs := []model.AnswerInput{}
		if err = json.Unmarshal(body, &inputs); err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		answers, err := app.Forms.CreateAnswers(r.Context(), token, inputs)
		if err == nil {
			render.Status(r, http.StatusCreated)
			render.JSON(w, r, answers)
			return
		}

		var merr *multierror.Error
		if !errors.As(err, &merr) {
			httpx.LogInternalError(w, "forms.create_answers", err)
			return
		}

		status, failures := batchFailures(merr)
		log.Debugf("forms.create_answers: %d of %d answers rejected", len(failures), len(inputs))
		render.Status(r, status)
		render.JSON(w, r, map[string]any{
			"answers": answers,
			"errors":  failures,
		})
	}
}

func GetFormAnswer(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		answerId, err := idParam(r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		answer, err := app.Forms.GetAnswer(r.Context(), answerId)
		if err != nil {
			httpx.LogError(w, r, "forms.get_answer", err)
			return
		}

		render.JSON(w, r, answer)
	}
}

func UpdateFormAnswer(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		answerId, err := idParam(r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		input := model.AnswerInput{}
		err = render.DecodeJSON(r.Body, &input)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		answer, err := app.Forms.UpdateAnswer(r.Context(), answerId, input)
		if err != nil {
			httpx.LogError(w, r, "forms.update_answer", err)
			return
		}

		render.JSON(w, r, answer)
	}
}

func DeleteFormAnswer(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		answerId, err := idParam(r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		err = app.Forms.DeleteAnswer(r.Context(), answerId)
		if err != nil {
			httpx.LogError(w, r, "forms.delete_answer", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func SubmitForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := app.Forms.Submit(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			httpx.LogError(w, r, "forms.submit", err)
			return
		}

		render.JSON(w, r, form)
	}
}
