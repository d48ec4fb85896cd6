package http

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/medvault_backend/config"
	"github.com/Alijeyrad/medvault_backend/internal/api/http"
	"github.com/Alijeyrad/medvault_backend/pkg/logs"
)

func NewStartCommand() *cobra.Command {
	var stopTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Serve the API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.ReadConfig(filepath.Dir(path))
			if err != nil {
				return err
			}

			logger := logs.New(cfg)
			slog.SetDefault(logger)
			logger.Info("starting api", "env", cfg.Server.Environment, "port", cfg.Server.Port)

			return http.Start(cfg, logger, stopTimeout)
		},
	}

	cmd.Flags().DurationVar(&stopTimeout, "shutdown-timeout", 30*time.Second, "grace period for in-flight requests on shutdown")
	return cmd
}
