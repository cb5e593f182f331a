package handler

import (
	"context"
	"net/http"

	"github.com/wadjakorntonsri/tinylinks/pkg/app"
	"github.com/wadjakorntonsri/tinylinks/pkg/config"
	"github.com/wadjakorntonsri/tinylinks/pkg/logger"
)

var mux http.Handler

func init() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.AppEnv)

	// Note: On Vercel, a local sqlite file is ephemeral unless DATABASE_URL points at Turso or postgres
	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		panic(err)
	}
	mux = a.Router()
}

// Handler is the entrypoint for Vercel. Periodic checks run through `cli check` from an external cron.
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
