package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/codexec/codexec/internal/config"
	"github.com/codexec/codexec/internal/driver/docker"
	"github.com/codexec/codexec/internal/server"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the executor, the live-edit server and the session sweeper",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

func init() {
	RootCmd.AddCommand(runCmd)
}

func runServer() {
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Str("service", cfg.Build.ServiceName).Msg("Starting codexec")

	drv, err := docker.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize docker driver")
	}
	defer drv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	srv := server.New(cfg, drv)
	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server startup failed")
	}
	log.Info().Msg("Shutdown complete")
}
