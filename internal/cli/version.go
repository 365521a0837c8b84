package cli

import (
	"fmt"
	"runtime"

	"github.com/palaverhq/palaver/internal/build"

	"github.com/spf13/cobra"
)

// Version returns the version subcommand.
func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Palaver version information",
		Long:  `Print the version information of Palaver`,
		Run: func(cmd *cobra.Command, args []string) {
			version()
		},
	}
}

func version() {
	fmt.Printf("Palaver v%s (Go version: %s)\n", build.Version, runtime.Version())
}
