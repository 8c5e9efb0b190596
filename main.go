package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tutortoise/object-detection-service/annotate"
	"github.com/Tutortoise/object-detection-service/config"
	"github.com/Tutortoise/object-detection-service/detections"
	"github.com/Tutortoise/object-detection-service/logger"
	"github.com/Tutortoise/object-detection-service/pipeline"
)

func main() {
	bootLog := logger.New(logger.Options{Level: "info", Env: os.Getenv("APP_ENV")})
	if err := config.LoadDotEnv(); err != nil {
		bootLog.Fatalf("Error loading .env file: %v", err)
	}

	cfg, err := config.LoadServer(detections.DefaultSharedLibraryPath())
	if err != nil {
		bootLog.Fatalf("Invalid configuration: %v", err)
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Env: cfg.Env})

	if err := detections.InitEnvironment(cfg.LibraryPath); err != nil {
		log.Fatalf("Failed to initialize ONNX environment: %v", err)
	}
	defer detections.DestroyEnvironment()

	engine, err := detections.New(detections.Options{
		ModelPath: cfg.ModelPath,
		Sessions:  cfg.Sessions,
		Threads:   cfg.Threads,
		Logger:    log,
	})
	if err != nil {
		log.Fatalf("Failed to load detection model %s: %v", cfg.ModelPath, err)
	}
	defer engine.Close()

	server, err := NewServer(
		WithConfig(cfg),
		WithLogger(log),
		WithProcessor(pipeline.New(engine, annotate.NewRenderer(), log)),
		WithStats(engine),
	)
	if err != nil {
		log.Fatal(err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Run()
	}()

	select {
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("Shutting down server...")
	case err := <-serveErr:
		if err != nil {
			log.Errorf("Error starting server: %v", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Graceful shutdown incomplete: %v", err)
	}
	log.Info("Server stopped")
}
