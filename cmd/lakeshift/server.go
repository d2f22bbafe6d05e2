package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lakeshift/lakeshift/internal/apiserver"
	"github.com/lakeshift/lakeshift/internal/config"
)

func newServerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage the Lakeshift API server",
	}
	cmd.AddCommand(newServerStartCommand())
	return cmd
}

func newServerStartCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the API server in the foreground",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServerForeground(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides LAKESHIFT_PORT)")
	return cmd
}

// runServerForeground starts the API server and blocks until SIGINT/SIGTERM
func runServerForeground(port int) error {
	config.AppVersion = version

	serverCfg := config.NewServerConfig()
	if err := serverCfg.LoadFromEnv(); err != nil {
		return fmt.Errorf("failed to load server configuration: %w", err)
	}
	if port != 0 {
		serverCfg.Port = port
	}
	if err := serverCfg.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	appCfg := config.LoadConfig()

	ctx := context.Background()
	components, err := apiserver.BuildComponents(ctx, serverCfg, appCfg)
	if err != nil {
		return fmt.Errorf("failed to assemble components: %w", err)
	}
	components.WorkerPool.Start()

	server, err := apiserver.NewAPIServer(serverCfg, components)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		fmt.Printf("\nReceived %v, shutting down...\n", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown did not complete cleanly: %w", err)
	}
	fmt.Println("Server stopped")
	return nil
}
