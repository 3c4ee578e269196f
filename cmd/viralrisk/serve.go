package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpapi "github.com/sawpanic/viralrisk/internal/interfaces/http"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP scoring server",
		Long:  "Serves predictions, configuration management, A/B tests, training, /metrics and the /events stream",
		RunE:  runServe,
	}
	cmd.Flags().String("host", "", "HTTP server host (overrides config)")
	cmd.Flags().Int("port", 0, "HTTP server port (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	if host := stringFlag(cmd.Flags(), "host"); host != "" {
		appConfig.HTTP.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		appConfig.HTTP.Port = port
	}

	hub := httpapi.NewHub(appConfig.HTTP.WriteTimeout)

	initCtx, cancel := commandContext(cmd)
	rt, err := buildRuntime(initCtx, appConfig, hub.Listener())
	cancel()
	if err != nil {
		return err
	}
	defer rt.Close()

	serverCfg := httpapi.ServerConfigFrom(appConfig)
	serverCfg.Version = version

	circuits := make([]httpapi.CircuitReporter, 0, len(rt.guards))
	for _, g := range rt.guards {
		circuits = append(circuits, g)
	}
	server := httpapi.NewServer(rt.engine, rt.metrics, hub, serverCfg).WithCircuits(circuits...)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info().Msg("Server stopped")
	return nil
}
