package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/logger"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/medvault_backend/config"
	"github.com/Alijeyrad/medvault_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/medvault_backend/internal/api/http/router"
	"github.com/Alijeyrad/medvault_backend/pkg/observability"
)

// Module provides the HTTP Server to the fx graph.
var Module = fx.Module("http", fx.Provide(NewServer))

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Cfg       *config.Config
	Redis     *redis.Client `optional:"true"`
	Router    *router.Router
	OTel      *observability.Provider `optional:"true"`
}

// NewApp builds the fiber app with global middleware and routes. It does not
// listen.
func NewApp(cfg *config.Config, rdb *redis.Client, r *router.Router, instrument bool) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      cfg.Observability.ServiceName,
		ErrorHandler: errorHandler,
		BodyLimit:    bodyLimit(cfg),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	})

	configureGlobalMiddleware(app, cfg, rdb)
	// After RequestID so spans carry the request id.
	if instrument {
		app.Use(observability.FiberMiddleware())
	}

	r.Register(app)
	return app
}

func NewServer(p Params) *fiber.App {
	instrument := p.OTel != nil && (p.OTel.Tracer != nil || p.OTel.Meter != nil)
	app := NewApp(p.Cfg, p.Redis, p.Router, instrument)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			addr := fmt.Sprintf(":%d", p.Cfg.Server.Port)
			go func() {
				if err := app.Listen(addr); err != nil {
					slog.Error("HTTP server error", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})

	return app
}

// errorHandler renders errors that escape handlers, mostly middleware
// rejections, in the same {"error": ...} shape handlers use.
func errorHandler(c fiber.Ctx, err error) error {
	status, msg := fiber.StatusInternalServerError, "internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status, msg = fe.Code, strings.ToLower(fe.Message)
	} else {
		slog.ErrorContext(c.Context(), "unhandled error", "path", c.Path(), "err", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// bodyLimit leaves room for multipart framing around the largest upload.
func bodyLimit(cfg *config.Config) int {
	mb := cfg.Records.MaxUploadMB
	if mb <= 0 {
		return fiber.DefaultBodyLimit
	}
	return (mb + 1) << 20
}

func configureGlobalMiddleware(app *fiber.App, cfg *config.Config, rdb *redis.Client) {
	app.Use(middleware.RequestID())
	app.Use(recoverer.New())

	if cfg.Server.Environment == "production" {
		app.Use(helmet.New())
		if cfg.Server.CORS.Enabled {
			app.Use(cors.New(cors.Config{
				AllowOrigins:     cfg.Server.CORS.AllowOrigins,
				AllowCredentials: cfg.Server.CORS.AllowCredentials,
			}))
		}
		if rdb != nil {
			app.Use(middleware.NewLimiterWithRedis(rdb, cfg.Server.RateLimit))
		} else {
			app.Use(middleware.NewLimiter(cfg.Server.RateLimit))
		}
	}

	app.Use(logger.New(logger.Config{
		Format: "${ip} - [${time}] [req_id=${respHeader:X-Request-Id}] ${method} ${url} ${status}\n",
	}))
}
