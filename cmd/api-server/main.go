// Command api-server runs the Lakeshift API server as a standalone binary,
// configured entirely from the environment.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lakeshift/lakeshift/internal/apiserver"
	"github.com/lakeshift/lakeshift/internal/config"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	config.AppVersion = version

	serverCfg := config.NewServerConfig()
	if err := serverCfg.LoadFromEnv(); err != nil {
		return fmt.Errorf("failed to load server configuration: %w", err)
	}
	if err := serverCfg.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}
	appCfg := config.LoadConfig()

	components, err := apiserver.BuildComponents(context.Background(), serverCfg, appCfg)
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
	case <-sigChan:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
