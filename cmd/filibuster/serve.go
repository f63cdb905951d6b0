package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/filibuster-io/filibuster-go/cmd/filibuster/di"
)

var (
	logLevel  string
	logFormat string
	listen    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control plane in server-only mode",
	Long: `Start the control plane without driving a local functional test
command. A separate test harness drives iterations by calling
/filibuster/complete-iteration itself.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error) - overrides config")
	serveCmd.Flags().StringVar(&logFormat, "log-format", "",
		"log format (json, console) - overrides config")
	serveCmd.Flags().StringVar(&listen, "listen", "",
		"control plane listen address - overrides config")
}

func runServe(_ *cobra.Command, _ []string) error {
	configPath := cfgFile
	if configPath == "" {
		configPath = findConfigFile()
	}

	container, err := di.NewContainer(configPath)
	if err != nil {
		log.Error().Err(err).Str("path", configPath).Msg("failed to initialize services")
		return err
	}

	cfgSvc := di.MustInvoke[*di.ConfigService](container)
	cfg := cfgSvc.Config
	cfg.Orchestrator.ServerOnly = true

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if listen != "" {
		cfg.Server.Listen = listen
	}

	loggerSvc := di.MustInvoke[*di.LoggerService](container)
	log.Logger = *loggerSvc.Logger
	zerolog.DefaultContextLogger = loggerSvc.Logger

	cpSvc, err := di.Invoke[*di.ControlPlaneService](container)
	if err != nil {
		log.Error().Err(err).Msg("failed to build control plane")
		return err
	}

	catalogSvc := di.MustInvoke[*di.CatalogService](container)
	ctx := context.Background()
	catalogSvc.StartWatching(ctx)
	cfgSvc.StartWatching(ctx)

	return runWithGracefulShutdown(cpSvc.Server, container, cfg.Server.Listen)
}

func runWithGracefulShutdown(server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}, container *di.Container, listenAddr string) error {
	done := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info().Msg("shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}

		if err := container.ShutdownWithContext(ctx); err != nil {
			log.Error().Err(err).Msg("service shutdown error")
		}

		close(done)
	}()

	log.Info().Str("listen", listenAddr).Msg("starting filibuster control plane")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server error")
		return err
	}

	<-done
	log.Info().Msg("server stopped")

	return nil
}
