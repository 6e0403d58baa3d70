package app

import (
	"github.com/clipperhq/growthcore/internal/config"
	"github.com/clipperhq/growthcore/internal/event_bus"
	"github.com/clipperhq/growthcore/internal/utils"
	"github.com/clipperhq/growthcore/pkg/budget"
	"github.com/clipperhq/growthcore/pkg/sms"
	"github.com/clipperhq/growthcore/pkg/user"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	EventBus *event_bus.EventBus
	Clock    utils.Clock

	UserService user.Service
	UserHandler *user.Handler

	BudgetRepo     budget.Repository
	BudgetService  budget.Service
	BudgetHandler  *budget.Handler
	CycleScheduler *budget.CycleScheduler

	SmsAuditRepo sms.AuditRepository
	SmsProvider  sms.Provider
	SmsRouter    *sms.Router
	SmsHandler   *sms.Handler
	SmsCORS      *cors.Cors
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.EventBus = event_bus.NewEventBus()
	deps.Clock = &utils.SystemClock{}

	deps.UserService = user.NewUserService(user.NewUserRepo(db))
	deps.UserHandler = user.NewHandler(deps.UserService)

	deps.BudgetRepo = budget.NewRepository(db)
	deps.BudgetService = budget.NewService(deps.BudgetRepo, deps.UserService, deps.Clock, cfg.Budget)
	deps.BudgetHandler = budget.NewHandler(deps.BudgetService)
	deps.CycleScheduler = budget.NewCycleScheduler(deps.BudgetService, cfg.Budget.CycleSchedule)

	deps.SmsAuditRepo = sms.NewAuditRepository(db)
	sms.RegisterAuditSubscribers(deps.EventBus, deps.SmsAuditRepo)
	deps.SmsProvider = sms.NewTwilioClient(cfg.SMS.Twilio)
	deps.SmsRouter = sms.NewRouter(deps.SmsProvider, cfg.SMS, deps.EventBus)
	deps.SmsHandler = sms.NewHandler(deps.SmsRouter, deps.SmsAuditRepo)
	deps.SmsCORS = sms.NewCORS()

	return deps
}
