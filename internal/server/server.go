// Package server wires the subsystems together and owns the process
// lifecycle: the request-reply listener, the live-edit listener, the
// periodic session sweeper, and the coordinated shutdown cleanup.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/codexec/codexec/internal/api"
	"github.com/codexec/codexec/internal/cleanup"
	"github.com/codexec/codexec/internal/config"
	"github.com/codexec/codexec/internal/driver"
	"github.com/codexec/codexec/internal/editor"
	"github.com/codexec/codexec/internal/executor"
	"github.com/codexec/codexec/internal/liveedit"
	"github.com/codexec/codexec/internal/session"
	"github.com/codexec/codexec/internal/wspool"
)

const shutdownTimeout = 10 * time.Second

// Server holds every injected subsystem handle. Tests construct fresh
// instances; nothing here is process-global.
type Server struct {
	cfg      *config.Config
	addrs    *config.Addresses
	drv      driver.Driver
	registry *session.Registry
	cache    *editor.Cache
	pool     *wspool.Pool
	cleaner  *cleanup.Service

	requestSrv  *echo.Echo
	liveEditSrv *echo.Echo
}

// New wires a Server from cfg and an engine driver.
func New(cfg *config.Config, drv driver.Driver) *Server {
	registry := session.NewRegistry(session.Config{
		TTL:            time.Duration(cfg.SessionConfigs.SessionTimeout) * time.Second,
		SessionTimeout: time.Duration(cfg.SessionConfigs.SessionTimeout) * time.Second,
		MaxSessions:    cfg.SessionConfigs.MaxSessions,
	})
	cache := editor.NewCache()
	pool := wspool.NewPool(cfg.WebsocketPoolConfig.MaxConnections)
	cleaner := cleanup.NewService(drv, cfg.Constants.DockerCreatedByLabel, cfg.PodTag(), cfg.Paths.TarPath)
	exec := executor.NewService(cfg, drv, registry, cleaner)

	requestSrv := echo.New()
	requestSrv.HideBanner = true
	requestSrv.HidePort = true
	api.NewHandler(exec).RegisterRoutes(requestSrv)

	liveEditSrv := echo.New()
	liveEditSrv.HideBanner = true
	liveEditSrv.HidePort = true
	liveedit.NewServer(cache, pool).RegisterRoutes(liveEditSrv)

	return &Server{
		cfg:         cfg,
		addrs:       config.NewAddresses(cfg),
		drv:         drv,
		registry:    registry,
		cache:       cache,
		pool:        pool,
		cleaner:     cleaner,
		requestSrv:  requestSrv,
		liveEditSrv: liveEditSrv,
	}
}

// Run starts both listeners and the sweeper, then blocks until ctx is
// cancelled or a listener fails to start. On cancellation the accept loops
// stop first and the owned resources are purged; cleanup failures are
// logged, not returned.
func (s *Server) Run(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.drv.Ping(pingCtx); err != nil {
		return err
	}

	serverErr := make(chan error, 2)
	go func() {
		log.Info().Str("addr", s.addrs.ServiceAddr()).Msg("Executor service listening")
		serverErr <- s.requestSrv.Start(s.addrs.ServiceAddr())
	}()
	go func() {
		log.Info().Str("addr", s.addrs.WebSocketAddr()).Msg("Live-edit server listening")
		serverErr <- s.liveEditSrv.Start(s.addrs.WebSocketAddr())
	}()

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go s.runSweeper(sweepCtx)

	select {
	case <-ctx.Done():
		s.shutdown()
		return nil
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// runSweeper drives the registry sweep every cleanup interval, skipping a
// tick when a sweep already ran inside the current window.
func (s *Server) runSweeper(ctx context.Context) {
	interval := time.Duration(s.cfg.SessionConfigs.SessionCleanupInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(s.registry.LastCleanup()) < interval {
				log.Debug().Msg("Sweep skipped, registry was cleaned recently")
				continue
			}
			s.registry.Sweep()
		}
	}
}

// shutdown stops the accept loops, then removes every resource this pod
// owns: labelled containers, build-context archives, and the bound ports.
func (s *Server) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.requestSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Executor service forced to shutdown")
	}
	if err := s.liveEditSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Live-edit server forced to shutdown")
	}

	activity := cleanup.Activity{
		Container: cleanup.ActivityContainer,
		AllTars:   cleanup.ActivityAllTars,
		Ports:     s.addrs.AllPorts(),
	}
	if err := s.cleaner.Run(shutdownCtx, activity); err != nil {
		log.Error().Err(err).Msg("Shutdown cleanup failed")
	}
}
