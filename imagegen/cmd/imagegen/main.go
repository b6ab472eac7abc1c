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
	"github.com/gi-connect/gi-connect-stack/imagegen/internal/config"
	"github.com/gi-connect/gi-connect-stack/imagegen/internal/genai"
	"github.com/gi-connect/gi-connect-stack/imagegen/internal/handlers"
	"github.com/gi-connect/gi-connect-stack/imagegen/internal/pipeline"
	"github.com/gi-connect/gi-connect-stack/imagegen/internal/server"
	"github.com/gi-connect/gi-connect-stack/imagegen/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logger.Info("starting imagegen service", "port", cfg.Server.Port, "max_images", cfg.Model.MaxImages)

	issuer := gcauth.NewIssuer(cfg.Model.Timeout)
	model := genai.New(cfg.Model.BaseURL, cfg.Model.VisionModel, cfg.Model.ImageModel, cfg.Model.Timeout)
	uploader := storage.New(cfg.Storage.UploadBaseURL, cfg.Storage.PublicBaseURL, cfg.Storage.Bucket, cfg.Model.Timeout)

	pipe := pipeline.New(model, uploader, issuer, cfg.Credentials.Scope, cfg.Model.MaxImages, cfg.Model.Timeout, logger)
	handler := handlers.NewGenerateHandler(cfg, pipe, logger)
	router := server.NewRouter(handler, middleware.CORSConfig{AllowedOrigins: cfg.CORS.AllowedOrigins})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("imagegen service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down imagegen service")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("imagegen service stopped")
}
