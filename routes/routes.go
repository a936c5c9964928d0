package routes

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mbolis/quick-survey-forms/app"
	"github.com/mbolis/quick-survey-forms/log"
	"github.com/mbolis/quick-survey-forms/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	requestLogger := middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  log.Logger,
		NoColor: true,
	})

	root := chi.NewRouter()
	root.Use(middleware.RequestID, requestLogger, middleware.Recoverer)

	root.Mount("/api", apiRouter(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	api.Get("/surveys/active", ListActiveSurveys(app))
	api.Post(`/surveys/{id:^\d+$}/start`, StartSurvey(app))
	api.Get(`/surveys/{id:^\d+$}/questions`, PublicListSurveyQuestions(app))

	api.Route("/forms", func(r chi.Router) {
		r.Get(`/answers/{id:^\d+$}`, GetFormAnswer(app))
		r.Patch(`/answers/{id:^\d+$}`, UpdateFormAnswer(app))
		r.Delete(`/answers/{id:^\d+$}`, DeleteFormAnswer(app))

		r.Route("/{token}", func(r chi.Router) {
			r.Get("/", GetForm(app))
			r.Get("/survey", GetFormSurvey(app))
			r.Get("/survey/questions", GetFormQuestions(app))
			r.Get("/respondent", GetFormRespondent(app))
			r.Put("/respondent", PutFormRespondent(app, false))
			r.Patch("/respondent", PutFormRespondent(app, true))
			r.Get("/answers", ListFormAnswers(app))
			r.Post("/answers", CreateFormAnswers(app))
			r.Patch("/submit", SubmitForm(app))
		})
	})

	api.Route("/admin", func(r chi.Router) {
		r.Use(middlewares.Admin(app.TokenSecret))

		// CRUD survey
		r.Post("/surveys", CreateSurvey(app))
		r.Get("/surveys", ListSurveys(app))
		r.Get(`/surveys/{id:^\d+$}`, GetSurveyById(app))
		r.Put(`/surveys/{id:^\d+$}`, UpdateSurvey(app))
		r.Patch(`/surveys/{id:^\d+$}`, UpdateSurvey(app))
		r.Delete(`/surveys/{id:^\d+$}`, DeleteSurvey(app))

		// CRUD question
		r.Post(`/surveys/{id:^\d+$}/questions`, CreateQuestion(app))
		r.Get(`/surveys/{id:^\d+$}/questions`, ListSurveyQuestions(app))
		r.Get("/questions", ListQuestions(app))
		r.Get(`/questions/{id:^\d+$}`, GetQuestionById(app))
		r.Patch(`/questions/{id:^\d+$}`, UpdateQuestion(app))
		r.Delete(`/questions/{id:^\d+$}`, DeleteQuestion(app))

		// CRUD answer option
		r.Post(`/questions/{id:^\d+$}/answers`, CreateOption(app))
		r.Get(`/questions/{id:^\d+$}/answers`, ListOptions(app))
		r.Get(`/answers/{id:^\d+$}`, GetOptionById(app))
		r.Patch(`/answers/{id:^\d+$}`, UpdateOption(app))
		r.Delete(`/answers/{id:^\d+$}`, DeleteOption(app))

		r.Get("/forms", ListForms(app))
		r.Get("/forms/answers", ListAllFormAnswers(app))
	})

	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))

	return api
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
