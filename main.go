package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/mbolis/quick-survey-forms/app"
	"github.com/mbolis/quick-survey-forms/config"
	"github.com/mbolis/quick-survey-forms/database"
	"github.com/mbolis/quick-survey-forms/httpx"
	"github.com/mbolis/quick-survey-forms/log"
	"github.com/mbolis/quick-survey-forms/routes"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal("main.config: ", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("main.db.open: %+v", err)
	}
	defer db.Close()

	if cfg.AdminUser != "" {
		err = database.EnsureAdmin(context.Background(), db, cfg.AdminUser, cfg.AdminPassword)
		if err != nil {
			log.Fatalf("main.db.ensure_admin: %+v", err)
		}
	}

	bearerServer := httpx.NewBearerServer(db, cfg)
	handler := routes.Wire(app.New(db, bearerServer, cfg))

	err = runServer(cfg, handler)
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server: ", err)
	}
}

func runServer(cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
