package client

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func NewOpenCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "open <patient-id> <record-id>",
		Short: "Download and decrypt a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid patient id: %w", err)
			}
			recordID, err := uuid.Parse(args[1])
			if err != nil {
				return fmt.Errorf("invalid record id: %w", err)
			}

			c, err := newVaultClient(cmd)
			if err != nil {
				return err
			}
			defer c.Logout()

			f, err := c.OpenRecord(cmd.Context(), patientID, recordID)
			if err != nil {
				return fmt.Errorf("open failed: %w", err)
			}

			dest := out
			if dest == "" {
				dest = filepath.Base(f.Name)
			}
			if err := os.WriteFile(dest, f.Data, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", dest, err)
			}

			fmt.Printf("Wrote %s (%s, %d bytes)\n", dest, f.MimeType, len(f.Data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (defaults to the original file name)")

	return cmd
}
