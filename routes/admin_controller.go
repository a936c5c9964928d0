package routes

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/mbolis/quick-survey-forms/app"
	"github.com/mbolis/quick-survey-forms/httpx"
	"github.com/mbolis/quick-survey-forms/log"
	"github.com/mbolis/quick-survey-forms/model"
	"github.com/mbolis/quick-survey-forms/surveys"
)

func CreateSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		survey := model.Survey{}
		err := render.DecodeJSON(r.Body, &survey)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		survey, err = app.Surveys.Create(r.Context(), survey)
		if err != nil {
			httpx.LogError(w, r, "surveys.create", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, survey)
	}
}

func ListSurveys(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := app.Surveys.List(r.Context())
		if err != nil {
			httpx.LogError(w, r, "surveys.list", err)
			return
		}

		render.JSON(w, r, list)
	}
}

func GetSurveyById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyId, err := idParam(r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		survey, err := app.Surveys.Get(r.Context(), surveyId)
		if err != nil {
			httpx.LogError(w, r, "surveys.get", err)
			return
		}

		render.JSON(w, r, survey)
	}
}

func UpdateSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyId, err := idParam(r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		patch := surveys.SurveyPatch{}
		err = render.DecodeJSON(r.Body, &patch)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		survey, err := app.Surveys.Update(r.Context(), surveyId, patch)
		if err != nil {
			httpx.LogError(w, r, "surveys.update", err)
			return
		}

		render.JSON(w, r, survey)
	}
}

func DeleteSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyId, err := idParam(r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		err = app.Surveys.Delete(r.Context(), surveyId)
		if err != nil {
			httpx.LogError(w, r, "surveys.delete", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func CreateQuestion(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyId, err := idParam(r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		question := model.Question{}
		err = render.DecodeJSON(r.Body, &question)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		question, err = app.Surveys.CreateQuestion(r.Context(), surveyId, question)
		if err != nil {
			httpx.LogError(w, r, "surveys.create_question", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, question)
	}
}

func ListSurveyQuestions(app app.App) http.HandlerFunc {
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

func ListQuestions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questions, err := app.Surveys.ListAllQuestions(r.Context())
		if err != nil {
			httpx.LogError(w, r, "surveys.list_all_questions", err)
			return
		}

		render.JSON(w, r, questions)
	}
}

func GetQuestionById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questionId, err := idParam(r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		question, err := app.Surveys.GetQuestion(r.Context(), questionId)
		if err != nil {
			httpx.LogError(w, r, "surveys.get_question", err)
			return
		}

		render.JSON(w, r, question)
	}
}

func UpdateQuestion(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questionId, err := idParam(r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		patch := surveys.QuestionPatch{}
		err = render.DecodeJSON(r.Body, &patch)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		question, err := app.Surveys.UpdateQuestion(r.Context(), questionId, patch)
		if err != nil {
			httpx.LogError(w, r, "surveys.update_question", err)
			return
		}

		render.JSON(w, r, question)
	}
}

func DeleteQuestion(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questionId, err := idParam(r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		err = app.Surveys.DeleteQuestion(r.Context(), questionId)
		if err != nil {
			httpx.LogError(w, r, "surveys.delete_question", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

type optionBody struct {
	Text string `json:"text"`
}

func CreateOption(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questionId, err := idParam(r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		body := optionBody{}
		err = render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		option, err := app.Surveys.CreateOption(r.Context(), questionId, body.Text)
		if err != nil {
			httpx.LogError(w, r, "surveys.create_option", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, option)
	}
}

func ListOptions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questionId, err := idParam(r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		options, err := app.Surveys.ListOptions(r.Context(), questionId)
		if err != nil {
			httpx.LogError(w, r, "surveys.list_options", err)
			return
		}

		render.JSON(w, r, options)
	}
}

func GetOptionById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		optionId, err := idParam(r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		option, err := app.Surveys.GetOption(r.Context(), optionId)
		if err != nil {
			httpx.LogError(w, r, "surveys.get_option", err)
			return
		}

		render.JSON(w, r, option)
	}
}

func UpdateOption(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		optionId, err := idParam(r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		body := optionBody{}
		err = render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		option, err := app.Surveys.UpdateOption(r.Context(), optionId, body.Text)
		if err != nil {
			httpx.LogError(w, r, "surveys.update_option", err)
			return
		}

		render.JSON(w, r, option)
	}
}

func DeleteOption(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		optionId, err := idParam(r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		err = app.Surveys.DeleteOption(r.Context(), optionId)
		if err != nil {
			httpx.LogError(w, r, "surveys.delete_option", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forms, err := app.Forms.List(r.Context())
		if err != nil {
			httpx.LogError(w, r, "forms.list", err)
			return
		}

		render.JSON(w, r, forms)
	}
}

func ListAllFormAnswers(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		answers, err := app.Forms.ListAllAnswers(r.Context())
		if err != nil {
			httpx.LogError(w, r, "forms.list_all_answers", err)
			return
		}

		render.JSON(w, r, answers)
	}
}
