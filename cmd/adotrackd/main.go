// Command adotrackd hosts the Azure DevOps tracker over HTTP: the
// connectivity check and build link resolution endpoints a deployment server
// calls into.
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

	"github.com/quayside/adotrack/internal/config"
	"github.com/quayside/adotrack/internal/configstore"
	"github.com/quayside/adotrack/internal/logging"
	"github.com/quayside/adotrack/internal/web"
	"github.com/quayside/adotrack/internal/workitems"
)

// Version is set at build time
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() (exitCode int) {
	defer func() {
		if r := recover(); r != nil {
			logging.CapturePanic(r, "component", "main")
			fmt.Fprintf(os.Stderr, "FATAL: unrecovered panic: %v\n", r)
			exitCode = 2
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}

	if err := logging.Init(logging.Config{
		Level:     logging.ParseLevel(cfg.Logging.Level),
		SentryDSN: cfg.Logging.SentryDSN,
		Env:       envName(),
		Version:   Version,
		LogFile:   cfg.Logging.File,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	defer logging.Flush(2 * time.Second)
	log := logging.Default()

	store, err := configstore.Open(cfg.Storage.Database)
	if err != nil {
		log.Error("failed to open settings database", "error", err, "path", cfg.Storage.Database)
		return 1
	}
	defer store.Close()

	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}
	resolver := workitems.NewResolver(log, store, httpClient)
	mapper := workitems.NewMapper(log, store, resolver)
	check := web.NewCheckAction(store, resolver)
	server := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: web.NewServer(log, check, mapper),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting adotrackd", "version", Version, "listen", cfg.Server.Listen)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			return 1
		}
	case sig := <-stop:
		log.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Warn("shutdown was not clean", "error", err)
		}
	}
	return 0
}

func envName() string {
	if env := os.Getenv("ADOTRACK_ENV"); env != "" {
		return env
	}
	return "development"
}
