package main

import (
	"os"

	"github.com/palaverhq/palaver/internal/app"
	"github.com/palaverhq/palaver/internal/cli"
)

func main() {
	cmd := app.Palaver()
	cmd.AddCommand(cli.Version())
	cmd.AddCommand(cli.Client())
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
