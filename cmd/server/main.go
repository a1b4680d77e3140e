package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/reporover/reporover/archive"
	"github.com/reporover/reporover/githubapi"
	"github.com/reporover/reporover/internal/config"
	"github.com/reporover/reporover/internal/logging"
	"github.com/reporover/reporover/server"
	"github.com/reporover/reporover/session"
)

func main() {
	if err := run(); err != nil {
		// Configuration failures (a missing session secret above all)
		// must stop the process before it serves any traffic.
		log := zerolog.New(os.Stderr).With().Timestamp().Logger()
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.Production())

	displayAppName(cfg.AppName)

	codec, err := session.NewCodec(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		return err
	}
	store := session.NewCookieStore(cfg.Session.CookieName, cfg.Production(), cfg.Session.TTL)
	sessions, err := session.NewManager(codec, store, log)
	if err != nil {
		return err
	}

	identity := githubapi.NewClient(cfg.GitHub.APIBaseURL)
	archives := archive.NewService(cfg.Dirs.Clones, cfg.Dirs.Archives, cfg.Dirs.Uploads, log)

	srv, err := server.New(cfg, log, sessions, identity, archives)
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: srv}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Str("environment", cfg.Environment).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-stopSignal():
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

func stopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func displayAppName(appName string) {
	figure.NewFigure(appName, "cybermedium", true).Print()
	fmt.Println()
}
