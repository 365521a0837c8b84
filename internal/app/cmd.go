// Package app wires configuration, logging, registry, hub and server into
// the root command.
package app

import (
	"github.com/spf13/cobra"

	"github.com/palaverhq/palaver/internal/config"
)

// Palaver returns the root command running the relay server.
func Palaver() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "palaver",
		Short: "Palaver",
		Long:  "Palaver – ephemeral chat relay with named rooms and a public directory",
		Run: func(cmd *cobra.Command, args []string) {
			Run(cmd, configFile)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "config.json", "path to config file")
	config.DefineFlags(cmd)
	return cmd
}
