package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/zhouzirui/nexus-social/backend/internal/app"
	"github.com/zhouzirui/nexus-social/backend/internal/config"
	"github.com/zhouzirui/nexus-social/backend/internal/handler"
	"github.com/zhouzirui/nexus-social/backend/internal/service/assistant"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	core, err := app.NewCore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize chat core: %v", err)
	}

	router := handler.NewRouter(core.Catalog, core.Chat, core.Orchestrator, handler.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		EventBuffer:    cfg.Chat.EventBuffer,
	})

	startServer(ctx, cfg.Server, router, core.Orchestrator)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, orchestrator *assistant.Orchestrator) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Nexus Social backend listening on %s", addr)
	if err := runServer(ctx, srv, orchestrator); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server, orchestrator *assistant.Orchestrator) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		// Let pending assistant replies land before exiting.
		if err := orchestrator.Shutdown(shutdownCtx); err != nil {
			log.Printf("warning: pending replies abandoned: %v", err)
		}
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
