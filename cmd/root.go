// Package cmd is the medvault command tree.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	clientcmd "github.com/Alijeyrad/medvault_backend/cmd/client"
	httpcmd "github.com/Alijeyrad/medvault_backend/cmd/http"
	systemcmd "github.com/Alijeyrad/medvault_backend/cmd/system"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "medvault",
		Short: "Client-side encrypted medical record vault",
		Long: `MedVault keeps patient records encrypted before they leave the device.
Patients approve doctors one by one; an approval escrows the record keys for
that doctor and a revocation takes them back.`,
		SilenceUsage: true,
	}

	// Commands read the file's directory; the name and format are fixed.
	root.PersistentFlags().String("config", "config.yaml", "config file path")

	root.AddCommand(
		systemcmd.NewSystemCommand(),
		httpcmd.NewHTTPCommand(),
		clientcmd.NewClientCommand(),
	)
	return root
}

func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
