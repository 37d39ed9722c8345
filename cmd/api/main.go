// @title Cattery Breeding API
// @version 1.0
// @description Motor de cría: calendario de montas, reglas NG y ciclo de preñez/parto.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cattery-breeding/internal/adapters/auth/odin"
	"cattery-breeding/internal/adapters/registry"
	pg "cattery-breeding/internal/adapters/storage/postgres"
	"cattery-breeding/internal/adapters/storage/sqlite"
	"cattery-breeding/internal/platform/config"
	"cattery-breeding/internal/platform/logger"
	"cattery-breeding/internal/platform/metrics"
	"cattery-breeding/internal/ports/auth"
	"cattery-breeding/internal/router"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg := config.FromEnv()
	log := logger.NewFromEnv()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", map[string]any{"error": err})
		os.Exit(1)
	}
}

func run(cfg config.Config, log logger.Logger) error {
	opts := router.Options{
		Logger:             log,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts.Metrics = metrics.New(reg)

	if cfg.DBDSN != "" {
		db, err := pg.Open(cfg.DBDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = pg.EnsureSchema(ctx, db)
		cancel()
		if err != nil {
			return err
		}
		opts.DB = db
		log.Info("using postgres", nil)
	} else {
		log.Warn("DB_DSN not set, remote records are in-memory", nil)
	}

	if cfg.LocalStorePath != "" {
		store, err := sqlite.Open(cfg.LocalStorePath)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.LocalStore = store
		log.Info("using sqlite local store", map[string]any{"path": store.Path()})
	}

	if cfg.RegistryBaseURL != "" {
		repo, err := registry.New(registry.Config{BaseURL: cfg.RegistryBaseURL, APIKey: cfg.RegistryAPIKey})
		if err != nil {
			return err
		}
		opts.Animals = repo
		log.Info("using remote animal registry", map[string]any{"base_url": cfg.RegistryBaseURL})
	}

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}
	if verifier == nil {
		log.Warn("ODIN not configured, dev mode with X-Debug-User-ID", nil)
	}
	opts.AuthVerifier = verifier

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.NewRouter(opts),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", map[string]any{"timeout": cfg.ShutdownTimeout.String()})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newVerifier devuelve nil (interfaz nil) en modo dev.
func newVerifier(cfg config.Config) (auth.AuthVerifier, error) {
	if cfg.OdinBaseURL == "" || cfg.OdinAPIKey == "" {
		return nil, nil
	}
	client, err := odin.NewClient(odin.Config{BaseURL: cfg.OdinBaseURL, APIKey: cfg.OdinAPIKey})
	if err != nil {
		return nil, err
	}
	return odin.NewVerifier(client), nil
}
