// Package http holds the `medvault http` commands that run the API server.
package http

import "github.com/spf13/cobra"

func NewHTTPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "http",
		Aliases: []string{"serve"},
		Short:   "Run the record vault API",
	}
	cmd.AddCommand(NewStartCommand())
	return cmd
}
