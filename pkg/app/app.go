// Package app wires configuration, asset verification, the HTTP listeners and
// the asset probe into one process lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/klazomenai/provider-static-server/pkg/api"
	"github.com/klazomenai/provider-static-server/pkg/assets"
	"github.com/klazomenai/provider-static-server/pkg/config"
	"github.com/klazomenai/provider-static-server/pkg/metrics"
	"github.com/klazomenai/provider-static-server/pkg/probe"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle state of an App.
type State int32

const (
	StateNotReady State = iota
	StateServing
)

func (s State) String() string {
	switch s {
	case StateNotReady:
		return "NOT_READY"
	case StateServing:
		return "SERVING"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// App is the verified, not yet listening server process.
type App struct {
	cfg     *config.Config
	logger  zerolog.Logger
	dir     *assets.Directory
	metrics *metrics.Metrics
	server  *api.Server
	probe   *probe.Worker

	state         atomic.Int32
	listener      net.Listener
	adminListener net.Listener
}

// New verifies the asset directory and builds every component. It never
// opens a socket; a *assets.MissingError means the build step has not run.
func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	dir, err := assets.Verify(cfg.Assets.Dir, cfg.Assets.EntryDocument)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	worker := probe.NewWorker(&probe.WorkerConfig{
		CheckInterval: cfg.Probe.Interval,
		Dir:           dir.Root,
		EntryDocument: dir.EntryDocument,
	}, m, logger)
	m.EntryDocumentPresent.Set(1)

	return &App{
		cfg:     cfg,
		logger:  logger,
		dir:     dir,
		metrics: m,
		server:  api.NewServer(assets.NewDirectoryResolver(dir), m, logger),
		probe:   worker,
	}, nil
}

// State reports the current lifecycle state.
func (a *App) State() State {
	return State(a.state.Load())
}

// Addr returns the bound address of the main listener, or nil before Listen.
func (a *App) Addr() net.Addr {
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// AdminAddr returns the bound address of the admin listener, or nil when it
// is disabled.
func (a *App) AdminAddr() net.Addr {
	if a.adminListener == nil {
		return nil
	}
	return a.adminListener.Addr()
}

// Listen binds the main listener and, when configured, the admin listener.
// On success the app is SERVING.
func (a *App) Listen() error {
	if a.State() == StateServing {
		return errors.New("already listening")
	}

	ln, err := net.Listen("tcp", a.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.Server.Addr(), err)
	}

	if a.cfg.Admin.Addr != "" {
		adminLn, err := net.Listen("tcp", a.cfg.Admin.Addr)
		if err != nil {
			ln.Close()
			return fmt.Errorf("failed to listen on admin address %s: %w", a.cfg.Admin.Addr, err)
		}
		a.adminListener = adminLn
		a.logger.Info().Str("addr", adminLn.Addr().String()).Msg("admin endpoints: GET /metrics, GET /healthz")
	}

	a.listener = ln
	a.state.Store(int32(StateServing))

	port := a.cfg.Server.Port
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}
	a.logger.Info().
		Int("port", port).
		Str("dir", a.dir.Root).
		Str("entry", a.dir.EntryDocument).
		Msgf("Server is running on port %d", port)

	return nil
}

// Serve runs the listeners and the asset probe until ctx is cancelled or a
// listener fails, then shuts the servers down within the configured timeout.
func (a *App) Serve(ctx context.Context) error {
	if a.State() != StateServing {
		return errors.New("serve called before listen")
	}

	srv := a.httpServer(a.server.Handler())
	servers := []*http.Server{srv}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	if a.adminListener != nil {
		adminSrv := a.httpServer(api.NewAdminRouter(a.metrics, a.probe))
		servers = append(servers, adminSrv)
		g.Go(func() error {
			if err := adminSrv.Serve(a.adminListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin server failed: %w", err)
			}
			return nil
		})
	}

	// Stopped by the shutdown goroutine below.
	g.Go(func() error {
		a.probe.Start(context.Background())
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutting down")
		a.probe.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	if err == nil {
		a.logger.Info().Msg("shutdown complete")
	}
	return err
}

// Run is Listen followed by Serve.
func (a *App) Run(ctx context.Context) error {
	if err := a.Listen(); err != nil {
		return err
	}
	return a.Serve(ctx)
}

func (a *App) httpServer(h http.Handler) *http.Server {
	return &http.Server{
		Handler:           h,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
		IdleTimeout:       a.cfg.Server.IdleTimeout,
		ErrorLog:          log.New(a.logger.With().Str("component", "net/http").Logger(), "", 0),
	}
}
