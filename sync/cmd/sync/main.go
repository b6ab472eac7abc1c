package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gi-connect/gi-connect-stack/common/gcauth"
	"github.com/gi-connect/gi-connect-stack/common/logging"
	"github.com/gi-connect/gi-connect-stack/common/middleware"
	"github.com/gi-connect/gi-connect-stack/sync/internal/audit"
	"github.com/gi-connect/gi-connect-stack/sync/internal/config"
	"github.com/gi-connect/gi-connect-stack/sync/internal/handlers"
	"github.com/gi-connect/gi-connect-stack/sync/internal/server"
	"github.com/gi-connect/gi-connect-stack/sync/internal/warehouse"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logger.Info("starting sync service", "port", cfg.Server.Port, "project", cfg.Warehouse.ProjectID)

	issuer := gcauth.NewIssuer(cfg.Warehouse.Timeout)
	wh := warehouse.New(cfg.Warehouse.BaseURL, cfg.Warehouse.ProjectID, cfg.Warehouse.Timeout)

	publisher, err := audit.New(cfg.Audit.NATSURL, cfg.Audit.Subject, logger)
	if err != nil {
		// Audit fan-out is best effort; the relay runs without it.
		logger.Warn("audit publisher disabled", "error", err)
	}
	defer publisher.Close()

	handler := handlers.NewSyncHandler(cfg, issuer, wh, publisher, logger)
	router := server.NewRouter(handler, middleware.CORSConfig{AllowedOrigins: cfg.CORS.AllowedOrigins})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("sync service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down sync service")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("sync service stopped")
}
