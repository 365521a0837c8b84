package app

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/palaverhq/palaver/internal/build"
	"github.com/palaverhq/palaver/internal/config"
	"github.com/palaverhq/palaver/internal/dispatch"
	"github.com/palaverhq/palaver/internal/hub"
	"github.com/palaverhq/palaver/internal/logging"
	"github.com/palaverhq/palaver/internal/metrics"
	"github.com/palaverhq/palaver/internal/registry"
	"github.com/palaverhq/palaver/internal/server"
)

// Run starts the relay server and blocks until a termination signal.
func Run(cmd *cobra.Command, configFile string) {
	cfg, err := config.GetConfig(cmd, configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("error getting config")
	}
	if closeFn := logging.Setup(cfg); closeFn != nil {
		defer closeFn()
	}
	if err := metrics.Init(metrics.Config{}); err != nil {
		log.Fatal().Err(err).Msg("error initializing metrics")
	}

	log.Info().
		Str("version", build.Version).
		Str("runtime", runtime.Version()).
		Int("pid", os.Getpid()).
		Msg("starting Palaver")

	reg := registry.New(registry.Config{
		MaxChats:       cfg.Limits.MaxChats,
		MaxPublicChats: cfg.Limits.MaxPublicChats,
	})
	h := hub.New(cfg.DeathRowDuration)
	proc := dispatch.New(reg, h)
	srv := server.New(server.Config{
		Address: cfg.HTTP.Address,
		Port:    cfg.HTTP.Port,
	}, proc)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("bye")
}
