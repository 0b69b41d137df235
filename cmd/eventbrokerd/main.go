// Command eventbrokerd runs the durable event-stream broker: the HTTP/SSE
// edge, the per-path append-only logs, and the built-in llm-loop processor,
// all in one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iteratehq/eventbroker/internal/config"
	"github.com/iteratehq/eventbroker/internal/httpapi"
	"github.com/iteratehq/eventbroker/internal/llmloop"
	"github.com/iteratehq/eventbroker/internal/manager"
	"github.com/iteratehq/eventbroker/internal/processor"
	"github.com/iteratehq/eventbroker/internal/storage"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	// The YAML/env-file locations are themselves configured out-of-band via
	// environment variables, since config.Load's own flag set (-host,
	// -port, -data-dir, -env) is what owns os.Args.
	configPath := getEnv("EVENTBROKER_CONFIG", "")
	envPath := getEnv("EVENTBROKER_ENV_FILE", ".env")

	cfg, err := config.Load(configPath, envPath, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "eventbrokerd: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "eventbrokerd: logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	store, err := newStore(cfg, log)
	if err != nil {
		log.Fatal("init storage", zap.Error(err))
	}
	defer store.Close()

	mgr := manager.New(store, log)

	proc := llmloop.NewProcessor(mgr, llmloop.EchoModel{}, log)
	rt := processor.New(proc, mgr, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := make(chan struct{})
	go func() {
		if err := rt.Start(ctx, started); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("llm-loop processor exited", zap.Error(err))
		}
	}()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		log.Warn("llm-loop processor did not signal ready within 5s")
	}

	gin.SetMode(ginModeFor(cfg.Env))
	router := httpapi.NewRouter(mgr, log)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
	}

	go func() {
		log.Info("eventbrokerd listening", zap.String("addr", srv.Addr), zap.String("data_dir", cfg.DataDir))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "dev" || env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func ginModeFor(env string) string {
	if env == "dev" || env == "development" {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

func newStore(cfg config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.DataDir == "" {
		log.Info("using in-memory store (no data_dir configured)")
		return storage.NewMemoryStore(), nil
	}
	st, err := storage.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}
	log.Info("using file-backed store", zap.String("data_dir", cfg.DataDir))
	return st, nil
}
