package router

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/Alijeyrad/medvault_backend/config"
	"github.com/Alijeyrad/medvault_backend/internal/api/http/handler"
	"github.com/Alijeyrad/medvault_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/medvault_backend/internal/service/access"
	"github.com/Alijeyrad/medvault_backend/internal/service/escrow"
	"github.com/Alijeyrad/medvault_backend/internal/service/record"
	"github.com/Alijeyrad/medvault_backend/internal/service/user"
	"github.com/Alijeyrad/medvault_backend/pkg/authorize"
	pasetotoken "github.com/Alijeyrad/medvault_backend/pkg/paseto"
	"github.com/Alijeyrad/medvault_backend/pkg/redis"
)

// Module provides the Router to the fx graph.
var Module = fx.Module("router", fx.Provide(NewRouter))

type Params struct {
	fx.In

	Cfg       *config.Config
	Sessions  *redis.Sessions `optional:"true"`
	Auth      authorize.IAuthorization
	UserSvc   user.Service
	RecordSvc record.Service
	AccessSvc access.Service
	EscrowSvc escrow.Service
	PasetoMgr *pasetotoken.Manager
}

type Router struct {
	p Params
}

func NewRouter(p Params) *Router {
	return &Router{p: p}
}

func (r *Router) Register(app *fiber.App) {
	// 1. Health & Metrics
	r.registerSystemRoutes(app)

	// 2. Initialize Middlewares
	var sessions middleware.SessionVerifier
	if r.p.Sessions != nil {
		sessions = r.p.Sessions
	}
	authRequired := middleware.AuthRequired(r.p.PasetoMgr, sessions)

	// Permission helper
	requirePerm := func(res authorize.Resource, act authorize.Action) fiber.Handler {
		return middleware.RequirePermission(r.p.Auth, res, act)
	}

	// 3. Initialize Handlers
	userH := handler.NewUserHandler(r.p.UserSvc)
	recordH := handler.NewRecordHandler(r.p.RecordSvc, r.p.EscrowSvc)
	accessH := handler.NewAccessHandler(r.p.AccessSvc, r.p.EscrowSvc)
	patientH := handler.NewPatientHandler(r.p.RecordSvc, r.p.EscrowSvc)

	api := app.Group("/api/v1")

	// 4. Delegate to sub-files
	r.registerUserRoutes(api, userH, authRequired, requirePerm)
	r.registerRecordRoutes(api, recordH, authRequired, requirePerm)
	r.registerAccessRoutes(api, accessH, authRequired, requirePerm)
	r.registerPatientRoutes(api, patientH, authRequired, requirePerm)
}

func (r *Router) registerSystemRoutes(app *fiber.App) {
	app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	app.Get(healthcheck.ReadinessEndpoint, healthcheck.New(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool { return authorize.IsPolicyHealthy() },
	}))
	app.Get(healthcheck.StartupEndpoint, healthcheck.New())

	if r.p.Cfg.Observability.Enabled && r.p.Cfg.Observability.Metrics.Enabled {
		path := r.p.Cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}
}
