package system

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/medvault_backend/internal/repo"
	"github.com/Alijeyrad/medvault_backend/internal/service/user"
	"github.com/Alijeyrad/medvault_backend/pkg/authorize"
	"github.com/Alijeyrad/medvault_backend/pkg/database"
	"github.com/Alijeyrad/medvault_backend/pkg/util/codes"
)

func NewUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserCreateCommand())
	return cmd
}

func newUserCreateCommand() *cobra.Command {
	var req user.CreateRequest
	var role string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a patient or doctor",
		Example: `  medvault system user create --role patient --name "Sara Ahmadi" --email sara@example.com --phone 09121234567
  medvault system user create --role doctor --name "Dr. Karimi" --email karimi@example.com --specialty cardiology`,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			acfg := authorize.FromCentralConfig(cfg.Authorization)
			enforcer, cleanup, err := authorize.NewEnforcer(acfg, database.NewDSN(cfg.CasbinDatabase))
			if err != nil {
				return fmt.Errorf("failed to create enforcer: %w", err)
			}
			defer cleanup(context.Background())

			auth, err := authorize.NewAuthorization(enforcer, acfg)
			if err != nil {
				return fmt.Errorf("failed to create authorization: %w", err)
			}

			svc := user.New(db, repo.NewPostgresManager(), auth, codes.FromCentralConfig(cfg.Codes), cfg.SMS.DefaultRegion)

			req.Role = repo.Role(role)
			u, err := svc.Create(ctx, req)
			if err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}

			fmt.Printf("Created %s %s (%s)\n", u.Role, u.FullName, u.ID)
			if u.ShareCode != nil {
				fmt.Printf("Share code: %s\n", codes.FormatCode(*u.ShareCode, codes.ShareCodeGroupSize))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "patient or doctor")
	cmd.Flags().StringVar(&req.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "mobile number, national or E.164")
	cmd.Flags().StringVar(&req.Specialty, "specialty", "", "doctor specialty")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}
