package client

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/medvault_backend/pkg/envelope"
)

func NewUploadCommand() *cobra.Command {
	var (
		category string
		escrow   bool
	)

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Encrypt a file locally and upload it as a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			c, err := newVaultClient(cmd)
			if err != nil {
				return err
			}

			f := envelope.File{Name: filepath.Base(path), MimeType: detectType(path, data), Data: data}
			rec, err := c.UploadRecord(cmd.Context(), f, category, escrow)
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}

			fmt.Printf("Uploaded %s as record %s (%d bytes encrypted)\n", f.Name, rec.ID, rec.FileSize)
			if !escrow {
				fmt.Println("Key was not escrowed; doctors cannot open this record.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "other", "prescription, lab-result, scan, report or other")
	cmd.Flags().BoolVar(&escrow, "escrow", true, "send the key so it can be shared with granted doctors")

	return cmd
}

func detectType(path string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return http.DetectContentType(data)
}
