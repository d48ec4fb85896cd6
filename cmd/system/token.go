package system

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Alijeyrad/medvault_backend/internal/repo"
	"github.com/Alijeyrad/medvault_backend/pkg/database"
	pasetotoken "github.com/Alijeyrad/medvault_backend/pkg/paseto"
	"github.com/Alijeyrad/medvault_backend/pkg/redis"
)

// NewTokenCommand issues access tokens for existing users. Sign-in flows live
// outside this service; operators and the client commands use this.
func NewTokenCommand() *cobra.Command {
	var (
		userID      string
		withSession bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := context.Background()

			db, err := database.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			u, err := repo.NewPostgresManager().Users(db).Get(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load user: %w", err)
			}

			mgr, err := pasetotoken.NewPasetoManager(cfg)
			if err != nil {
				return fmt.Errorf("failed to create token manager: %w", err)
			}

			var sid *uuid.UUID
			if withSession {
				rdb, err := redis.NewRedisFromCentral(cfg.Redis)
				if err != nil {
					return fmt.Errorf("failed to connect to redis: %w", err)
				}
				defer rdb.Close()

				ttl := time.Duration(cfg.Authentication.SessionTTLMinutes) * time.Minute
				s, err := redis.NewSessions(rdb).Create(ctx, u.ID, ttl)
				if err != nil {
					return fmt.Errorf("failed to create session: %w", err)
				}
				sid = &s
			}

			tok, err := mgr.IssueAccess(u.ID, string(u.Role), sid)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}

			fmt.Println(tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().BoolVar(&withSession, "session", true, "bind the token to a revocable redis session")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
