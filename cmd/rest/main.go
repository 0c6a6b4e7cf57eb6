package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"clinical-intake-be/internal/bootstrap"
	"clinical-intake-be/internal/config"
	"clinical-intake-be/internal/server"
	"clinical-intake-be/internal/tracer"
	"clinical-intake-be/pkg/database"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer := tracer.InitTracer()
	defer func() { _ = shutdownTracer(context.Background()) }()

	cfg := config.Load()

	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.IsProduction())
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(gormDB); err != nil {
			log.Fatalf("Schema migration failed: %v", err)
		}
	}

	container, err := bootstrap.NewContainer(ctx, gormDB, cfg)
	if err != nil {
		log.Fatalf("Unable to bootstrap: %v", err)
	}
	defer container.Close()

	srv := server.New(cfg, container)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return container.ConsumerService.Consume(gctx)
	})
	g.Go(func() error {
		container.WebSocketHub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return container.AlertService.Start(gctx)
	})
	g.Go(func() error {
		return srv.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		// finalization and event publishing still in flight
		container.Executor.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("Exited with error: %v", err)
	}
	container.ConsumerService.Wait()
	log.Println("Shutdown complete")
}
