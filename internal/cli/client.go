package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/palaverhq/palaver/internal/client"
	"github.com/palaverhq/palaver/internal/config"
	"github.com/palaverhq/palaver/internal/logging"
	"github.com/palaverhq/palaver/internal/store"
)

// Client returns the terminal client subcommand.
func Client() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Terminal chat client",
		Long:  `Connect to a relay, restore persisted memberships and chat from the terminal`,
		Run: func(cmd *cobra.Command, args []string) {
			runClient(cmd, configFile)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to config file")
	config.DefineFlags(cmd)
	return cmd
}

func runClient(cmd *cobra.Command, configFile string) {
	cfg, err := config.GetConfig(cmd, configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("error getting config")
	}
	if closeFn := logging.Setup(cfg); closeFn != nil {
		defer closeFn()
	}

	var st store.Store
	if cfg.Client.StateDir != "" {
		fileStore, err := store.NewFileStore(cfg.Client.StateDir)
		if err != nil {
			log.Fatal().Err(err).Msg("error opening state directory")
		}
		st = fileStore
	} else {
		st = store.NewMemStore()
	}

	app := client.NewApp(client.Options{
		ServerURL:  cfg.Client.ServerURL,
		MemberName: cfg.Client.MemberName,
		Store:      st,
		In:         os.Stdin,
		Out:        os.Stdout,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := app.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("client stopped")
	}
}
