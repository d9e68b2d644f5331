package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xiaobei/rulesconv/internal/api"
	"github.com/xiaobei/rulesconv/internal/logger"
	"github.com/xiaobei/rulesconv/internal/storage"
)

var (
	dataDir string
	port    int
)

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the cache refresh scheduler",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	// Get default data directory
	homeDir, _ := os.UserHomeDir()
	defaultDataDir := filepath.Join(homeDir, ".rulesconv")

	serveCommand.Flags().StringVar(&dataDir, "data", defaultDataDir, "Data directory")
	serveCommand.Flags().IntVar(&port, "port", 9090, "Web service port")
}

func runServe(cmd *cobra.Command, args []string) error {
	dir, err := filepath.Abs(dataDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	// Initialize logging system
	if err := logger.InitLogManager(dir); err != nil {
		return fmt.Errorf("failed to initialize logging system: %w", err)
	}

	logger.Printf("rulesconv v%s", version)
	logger.Printf("Data directory: %s", dir)
	logger.Printf("Web port: %d", port)

	store, err := storage.NewSQLiteStore(dir)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	server := api.NewServer(store, version)
	server.StartScheduler()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Println("Shutting down...")
		_ = server.Close()
	}()

	addr := fmt.Sprintf(":%d", port)
	logger.Printf("Starting Web service: http://0.0.0.0%s", addr)
	if err := server.Run(addr); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	return nil
}
