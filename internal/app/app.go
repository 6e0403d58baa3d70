package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/clipperhq/growthcore/internal/config"
	"github.com/clipperhq/growthcore/internal/database"
	"github.com/clipperhq/growthcore/pkg/budget"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Application wires configuration, database, router, and server lifecycle.
type Application struct {
	cfg       config.Application
	db        *pgxpool.Pool
	router    *mux.Router
	srv       *http.Server
	scheduler *budget.CycleScheduler
}

// NewApplication constructs the full HTTP application, ready to Run().
func NewApplication() (*Application, error) {
	cfg, err := config.Load("./config/application.yaml")
	if err != nil {
		return nil, err
	}

	// DB + migrations
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(cfg.Database); err != nil {
		db.Close()
		return nil, err
	}

	r := mux.NewRouter()

	deps := BuildDependencies(db, cfg)

	SetupMiddleware(r, deps)

	RegisterRoutes(r, deps)

	srv := &http.Server{
		Handler:      r,
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		WriteTimeout: 30 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{cfg: cfg, db: db, router: r, srv: srv, scheduler: deps.CycleScheduler}, nil
}

// Run starts the HTTP server and blocks.
func (a *Application) Run() error {
	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start budget cycle scheduler: %w", err)
	}
	log.Infof("Starting server on %s (%s)", a.srv.Addr, a.cfg.Host)
	return a.srv.ListenAndServe()
}

func (a *Application) Close() {
	a.scheduler.Stop()
	a.db.Close()
}
