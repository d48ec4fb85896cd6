package client

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/medvault_backend/config"
	"github.com/Alijeyrad/medvault_backend/pkg/vaultclient"
)

func NewClientCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Encrypt, upload and open records against a MedVault server",
	}

	cmd.PersistentFlags().String("base-url", "", "server base url (overrides client.base_url)")
	cmd.PersistentFlags().String("token", "", "access token (overrides client.token)")
	cmd.PersistentFlags().Duration("timeout", 0, "request timeout (overrides client.timeout_seconds)")

	cmd.AddCommand(NewUploadCommand())
	cmd.AddCommand(NewOpenCommand())

	return cmd
}

func newVaultClient(cmd *cobra.Command) (*vaultclient.Client, error) {
	cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.ReadClientConfig(filepath.Dir(cfgPath))
	if err != nil {
		return nil, err
	}

	vcfg := vaultclient.FromCentralConfig(cfg.Client, cfg.KeyCache)
	if v, _ := cmd.Flags().GetString("base-url"); v != "" {
		vcfg.BaseURL = v
	}
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		vcfg.Token = v
	}
	if v, _ := cmd.Flags().GetDuration("timeout"); v > 0 {
		vcfg.Timeout = v
	}
	if vcfg.Timeout == 0 {
		vcfg.Timeout = 30 * time.Second
	}

	return vaultclient.New(vcfg)
}
