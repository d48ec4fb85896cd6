package system

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/medvault_backend/pkg/database"
)

func NewInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the record and policy databases if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			created, err := database.EnsureDatabases(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if len(created) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "all databases already exist:", strings.Join(database.Targets(cfg), ", "))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "created:", strings.Join(created, ", "))
			return nil
		},
	}
}
