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

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/versus-relay/internal/config"
	"github.com/DoyleJ11/versus-relay/internal/httpapi"
	"github.com/DoyleJ11/versus-relay/internal/lobby"
	"github.com/DoyleJ11/versus-relay/internal/logging"
	"github.com/DoyleJ11/versus-relay/internal/store"
	"github.com/DoyleJ11/versus-relay/internal/ws"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, st.Close()) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	lb := lobby.NewLobby(gctx, log.Named("lobby"), st)

	opts := ws.DefaultOptions()
	opts.HandshakeTimeout = cfg.HandshakeTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PingInterval = cfg.PingInterval
	opts.OutboxSize = cfg.OutboxSize

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Lobby: lb,
			Store: st,
			WS:    opts,
			Log:   log.Named("http"),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		// lobby first: it closes every outbox so the handlers return
		<-lb.Done()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func openStore(cfg config.Config, log *zap.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info("no DATABASE_URL, keeping scores in memory")
		return store.NewMemoryStore(), nil
	}
	st, err := store.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	log.Info("connected to postgres")
	return st, nil
}
