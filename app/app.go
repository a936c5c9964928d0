package app

import (
	"database/sql"

	"github.com/go-chi/oauth"

	"github.com/mbolis/quick-survey-forms/config"
	"github.com/mbolis/quick-survey-forms/forms"
	"github.com/mbolis/quick-survey-forms/surveys"
)

type App struct {
	*sql.DB
	*oauth.BearerServer
	config.Config

	Surveys *surveys.Service
	Forms   *forms.Service
}

func New(db *sql.DB, bearerServer *oauth.BearerServer, cfg config.Config) App {
	return App{
		DB:           db,
		BearerServer: bearerServer,
		Config:       cfg,
		Surveys:      surveys.NewService(db),
		Forms:        forms.NewService(db),
	}
}
