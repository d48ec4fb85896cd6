package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Alijeyrad/medvault_backend/config"
	"github.com/Alijeyrad/medvault_backend/internal/api/http/router"
	"github.com/Alijeyrad/medvault_backend/internal/app"
)

// Options is the full dependency graph of the API process.
func Options(cfg *config.Config, logger *slog.Logger) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.WithLogger(func() fxevent.Logger { return &fxevent.SlogLogger{Logger: logger} }),
		app.InfraModule,
		app.ServiceModule,
		app.WorkerModule,
		router.Module,
		Module,
		// Requesting the app is what registers its listen hook.
		fx.Invoke(func(*fiber.App) {}),
	)
}

// Start builds the graph and blocks until SIGINT or SIGTERM. A graph that
// fails to build is returned without starting anything.
func Start(cfg *config.Config, logger *slog.Logger, stopTimeout time.Duration) error {
	fxApp := fx.New(Options(cfg, logger), fx.StopTimeout(stopTimeout))
	if err := fxApp.Err(); err != nil {
		return err
	}
	fxApp.Run()
	return nil
}
