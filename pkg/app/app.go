// Package app wires the link store, the core services and the HTTP router
// for the server, the CLI and the serverless entry point.
package app

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/tinylinks/pkg/adapters/handler"
	"github.com/wadjakorntonsri/tinylinks/pkg/adapters/repository"
	"github.com/wadjakorntonsri/tinylinks/pkg/config"
	"github.com/wadjakorntonsri/tinylinks/pkg/core/services"
	"github.com/wadjakorntonsri/tinylinks/pkg/ports"
)

type App struct {
	Config    *config.Config
	Repo      ports.LinkRepository
	Service   *services.LinkService
	Validator *services.Validator
	Checker   *services.Checker
	Log       zerolog.Logger
}

// New opens the store named by cfg.DatabaseURL and builds the services on top of it.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	repo, err := repository.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	return NewWithRepository(cfg, repo, log), nil
}

// NewWithRepository builds the services on an already opened store.
func NewWithRepository(cfg *config.Config, repo ports.LinkRepository, log zerolog.Logger) *App {
	validator := services.NewValidator(repo, cfg.ValidatorConfig(),
		services.WithValidatorLogger(log.With().Str("component", "validator").Logger()))
	slugs := services.NewSlugGenerator(repo, cfg.SlugConfig())
	service := services.NewLinkService(repo, slugs, validator,
		services.WithServiceLogger(log.With().Str("component", "links").Logger()))
	checker := services.NewChecker(repo, validator, cfg.CheckerConfig(),
		services.WithCheckerLogger(log.With().Str("component", "checker").Logger()))

	return &App{
		Config:    cfg,
		Repo:      repo,
		Service:   service,
		Validator: validator,
		Checker:   checker,
		Log:       log,
	}
}

func (a *App) Router() http.Handler {
	return handler.NewRouter(a.Config, a.Service, a.Repo, a.Log)
}

func (a *App) Close() error {
	return a.Repo.Close()
}
